package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/auden/internal/classifier"
	"github.com/dshills/auden/pkg/types"
)

func newTestChunker() *Chunker {
	return New(nil, nil)
}

func TestExtractObjectLevel(t *testing.T) {
	c := newTestChunker()
	content := []byte("fn foo() {}\n")

	drafts, err := c.Extract(context.Background(), "a.rs", content,
		classifier.Rule{Strategy: classifier.StrategyObject, Language: classifier.LangRust})
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, 0, d.StartByte)
	assert.Equal(t, 11, d.EndByte)
	assert.Equal(t, "fn foo() {}", d.Text)
	assert.Equal(t, "function_item", d.Kind)
	assert.NoError(t, d.Validate())
}

func TestExtractNoOverlap(t *testing.T) {
	c := newTestChunker()
	content := []byte(`use std::fmt;

pub struct A;

impl fmt::Display for A {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result { write!(f, "a") }
}

pub fn run() { let _ = A; }
`)

	drafts, err := c.Extract(context.Background(), "lib.rs", content,
		classifier.Rule{Strategy: classifier.StrategyObject, Language: classifier.LangRust})
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	for i, d := range drafts {
		assert.Less(t, d.StartByte, d.EndByte)
		assert.Equal(t, string(content[d.StartByte:d.EndByte]), d.Text)
		if i > 0 {
			assert.LessOrEqual(t, drafts[i-1].EndByte, d.StartByte)
		}
	}
}

func TestExtractWholeFile(t *testing.T) {
	c := newTestChunker()

	for _, tt := range []struct {
		path string
		lang classifier.Language
		body string
	}{
		{"b.md", classifier.LangMarkdown, "# Title\n\nSome prose.\n"},
		{"c.toml", classifier.LangTOML, "[package]\nname = \"demo\"\n"},
	} {
		t.Run(tt.path, func(t *testing.T) {
			drafts, err := c.Extract(context.Background(), tt.path, []byte(tt.body),
				classifier.Rule{Strategy: classifier.StrategyWholeFile, Language: tt.lang})
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			assert.Equal(t, 0, drafts[0].StartByte)
			assert.Equal(t, len(tt.body), drafts[0].EndByte)
			assert.Equal(t, types.KindWholeFile, drafts[0].Kind)
		})
	}
}

func TestExtractFallback(t *testing.T) {
	c := newTestChunker()
	rule := classifier.Rule{Strategy: classifier.StrategyObject, Language: classifier.LangRust}

	t.Run("malformed syntax downgrades to whole file", func(t *testing.T) {
		content := []byte("fn broken( {{{ ")
		drafts, err := c.Extract(context.Background(), "bad.rs", content, rule)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, types.KindWholeFile, drafts[0].Kind)
		assert.Equal(t, len(content), drafts[0].EndByte)
	})

	t.Run("file without units becomes whole file", func(t *testing.T) {
		content := []byte("use std::io;\n")
		drafts, err := c.Extract(context.Background(), "uses.rs", content, rule)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, types.KindWholeFile, drafts[0].Kind)
	})

	t.Run("empty file yields nothing", func(t *testing.T) {
		drafts, err := c.Extract(context.Background(), "empty.rs", nil, rule)
		require.NoError(t, err)
		assert.Empty(t, drafts)
	})
}

func TestEmbedText(t *testing.T) {
	text := EmbedText("src/a.rs", classifier.LangRust, "fn foo() {}")
	assert.Equal(t, "The below is a code snippet from the 'src/a.rs' file.\n```rust\nfn foo() {}\n```", text)

	long := strings.Repeat("x", MaxEmbedBytes+100)
	assert.Less(t, len(EmbedText("a.txt", classifier.LangText, long)), len(long)+100)
}
