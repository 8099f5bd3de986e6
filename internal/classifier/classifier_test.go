package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		path     string
		ok       bool
		strategy Strategy
		lang     Language
	}{
		{"a.rs", true, StrategyObject, LangRust},
		{"src/main.go", true, StrategyObject, LangGo},
		{"pkg/util.PY", true, StrategyObject, LangPython},
		{"b.md", true, StrategyWholeFile, LangMarkdown},
		{"c.toml", true, StrategyWholeFile, LangTOML},
		{"config.yml", true, StrategyWholeFile, LangYAML},
		{"image.png", false, 0, ""},
		{"Makefile", false, 0, ""},
		{"archive.tar.gz", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rule, ok := c.Classify(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.strategy, rule.Strategy)
				assert.Equal(t, tt.lang, rule.Language)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	c := New()

	_, ok := c.Classify("notes.rst")
	assert.False(t, ok)

	c.Register("rst", StrategyWholeFile, LangText)
	rule, ok := c.Classify("notes.rst")
	assert.True(t, ok)
	assert.Equal(t, StrategyWholeFile, rule.Strategy)

	// Re-registering replaces the rule
	c.Register(".md", StrategyWholeFile, LangText)
	rule, _ = c.Classify("b.md")
	assert.Equal(t, LangText, rule.Language)

	c.Register("", StrategyObject, LangGo)
	assert.NotContains(t, c.Extensions(), "")
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "object", StrategyObject.String())
	assert.Equal(t, "whole-file", StrategyWholeFile.String())
	assert.Equal(t, "unknown", Strategy(0).String())
}
