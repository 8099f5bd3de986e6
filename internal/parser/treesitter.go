package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/dshills/auden/internal/classifier"
	"github.com/dshills/auden/pkg/types"
)

// grammar pairs a tree-sitter language with the node kinds treated as
// embeddable units
type grammar struct {
	language *sitter.Language
	units    map[string]bool
}

func defaultGrammars() map[classifier.Language]*grammar {
	return map[classifier.Language]*grammar{
		classifier.LangRust: {
			language: rust.GetLanguage(),
			units: kindSet(
				"function_item",
				"struct_item",
				"enum_item",
				"union_item",
				"trait_item",
				"impl_item",
				"macro_definition",
			),
		},
		classifier.LangPython: {
			language: python.GetLanguage(),
			units: kindSet(
				"function_definition",
				"class_definition",
				"decorated_definition",
			),
		},
		classifier.LangJavaScript: {
			language: javascript.GetLanguage(),
			units: kindSet(
				"function_declaration",
				"generator_function_declaration",
				"class_declaration",
			),
		},
	}
}

func kindSet(kinds ...string) map[string]bool {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// parse builds a concrete syntax tree and selects unit nodes top-down.
// tree-sitter parsers are not safe for concurrent use, so one is created
// per call.
func (g *grammar) parse(ctx context.Context, content []byte) ([]types.Span, error) {
	p := sitter.NewParser()
	p.SetLanguage(g.language)

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%w: empty syntax tree", ErrSyntax)
	}
	if root.HasError() {
		return nil, fmt.Errorf("%w: tree contains error nodes", ErrSyntax)
	}

	var spans []types.Span
	g.collect(root, content, &spans)
	return spans, nil
}

// collect emits n if it is a unit, otherwise descends into its children
func (g *grammar) collect(n *sitter.Node, content []byte, spans *[]types.Span) {
	if g.units[n.Type()] {
		span := types.Span{
			Kind:      n.Type(),
			StartByte: int(n.StartByte()),
			EndByte:   int(n.EndByte()),
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
		}
		if name := n.ChildByFieldName("name"); name != nil {
			span.Name = name.Content(content)
		}
		if span.EndByte > span.StartByte {
			*spans = append(*spans, span)
		}
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		g.collect(n.NamedChild(i), content, spans)
	}
}
