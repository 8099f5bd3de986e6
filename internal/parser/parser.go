package parser

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/auden/internal/classifier"
	"github.com/dshills/auden/pkg/types"
)

var (
	// ErrSyntax is returned when content cannot be parsed cleanly
	ErrSyntax = errors.New("syntax error")
	// ErrUnsupportedLanguage is returned for languages without a registered grammar
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Parser locates embeddable units in source files. Go is parsed with the
// standard library's go/parser, other languages with tree-sitter grammars.
type Parser struct {
	grammars map[classifier.Language]*grammar
}

// New creates a Parser with all built-in grammars registered
func New() *Parser {
	return &Parser{
		grammars: defaultGrammars(),
	}
}

// Supports reports whether lang can be parsed
func (p *Parser) Supports(lang classifier.Language) bool {
	if lang == classifier.LangGo {
		return true
	}
	_, ok := p.grammars[lang]
	return ok
}

// Parse returns the top-most embeddable spans of content ordered by start
// byte. A unit nested inside an already selected unit is not returned.
// Malformed input yields ErrSyntax.
func (p *Parser) Parse(ctx context.Context, lang classifier.Language, content []byte) ([]types.Span, error) {
	var (
		spans []types.Span
		err   error
	)

	if lang == classifier.LangGo {
		spans, err = parseGo(content)
	} else {
		g, ok := p.grammars[lang]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
		}
		spans, err = g.parse(ctx, content)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].StartByte < spans[j].StartByte
	})
	return spans, nil
}
