package chunker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/auden/internal/classifier"
	"github.com/dshills/auden/internal/parser"
	"github.com/dshills/auden/pkg/types"
)

const (
	// MaxEmbedBytes bounds the span text placed in the embedding template.
	// Providers reject very long inputs; the chunk's byte range is kept intact.
	MaxEmbedBytes = 24 * 1024
)

// Chunker turns file content into chunk drafts according to a classifier rule
type Chunker struct {
	parser *parser.Parser
	logger *slog.Logger
}

// New creates a new Chunker instance
func New(p *parser.Parser, logger *slog.Logger) *Chunker {
	if p == nil {
		p = parser.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		parser: p,
		logger: logger.With("component", "chunker"),
	}
}

// Extract produces the chunk drafts for one file. Parse failures and files
// without any recognized unit fall back to a single whole-file chunk; the
// only error returned is context cancellation.
func (c *Chunker) Extract(ctx context.Context, path string, content []byte, rule classifier.Rule) ([]types.ChunkDraft, error) {
	if len(content) == 0 {
		return nil, nil
	}

	switch rule.Strategy {
	case classifier.StrategyObject:
		return c.extractObjects(ctx, path, content, rule.Language)
	case classifier.StrategyWholeFile:
		return wholeFile(content), nil
	default:
		return nil, fmt.Errorf("unknown strategy %d for %s", rule.Strategy, path)
	}
}

func (c *Chunker) extractObjects(ctx context.Context, path string, content []byte, lang classifier.Language) ([]types.ChunkDraft, error) {
	spans, err := c.parser.Parse(ctx, lang, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, parser.ErrSyntax) && !errors.Is(err, parser.ErrUnsupportedLanguage) {
			c.logger.Warn("parse failed", "path", path, "error", err)
		} else {
			c.logger.Debug("falling back to whole-file chunk", "path", path, "reason", err)
		}
		return wholeFile(content), nil
	}

	drafts := make([]types.ChunkDraft, 0, len(spans))
	lastEnd := 0
	for _, span := range spans {
		// Parsers report top-level units only; this guards the invariant
		// against grammars that report overlapping siblings.
		if span.StartByte < lastEnd || span.EndByte > len(content) || span.EndByte <= span.StartByte {
			continue
		}
		drafts = append(drafts, types.ChunkDraft{
			StartByte: span.StartByte,
			EndByte:   span.EndByte,
			Text:      string(content[span.StartByte:span.EndByte]),
			Kind:      span.Kind,
		})
		lastEnd = span.EndByte
	}

	// If no units were found, keep the file searchable as a whole
	if len(drafts) == 0 {
		return wholeFile(content), nil
	}
	return drafts, nil
}

func wholeFile(content []byte) []types.ChunkDraft {
	return []types.ChunkDraft{{
		StartByte: 0,
		EndByte:   len(content),
		Text:      string(content),
		Kind:      types.KindWholeFile,
	}}
}

// EmbedText wraps a chunk's text with the file it came from so the
// embedding captures location as well as content
func EmbedText(relPath string, lang classifier.Language, text string) string {
	if len(text) > MaxEmbedBytes {
		text = text[:MaxEmbedBytes]
	}
	return fmt.Sprintf("The below is a code snippet from the '%s' file.\n```%s\n%s\n```", relPath, lang, text)
}
