package parser

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"

	"github.com/dshills/auden/pkg/types"
)

// Go declaration kinds reported on spans
const (
	KindGoFunc   = "func"
	KindGoMethod = "method"
	KindGoType   = "type"
	KindGoConst  = "const"
	KindGoVar    = "var"
)

// parseGo extracts top-level declarations. Doc comments are included in
// the span of the declaration they document.
func parseGo(content []byte) ([]types.Span, error) {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, "", content, goparser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	e := &declExtractor{fset: fset}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			e.extractFunc(d)
		case *ast.GenDecl:
			e.extractGenDecl(d)
		}
	}
	return e.spans, nil
}

type declExtractor struct {
	fset  *token.FileSet
	spans []types.Span
}

func (e *declExtractor) extractFunc(fn *ast.FuncDecl) {
	kind := KindGoFunc
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		kind = KindGoMethod
	}

	start := fn.Pos()
	if fn.Doc != nil {
		start = fn.Doc.Pos()
	}
	e.add(kind, fn.Name.Name, start, fn.End())
}

func (e *declExtractor) extractGenDecl(decl *ast.GenDecl) {
	var kind string
	switch decl.Tok {
	case token.TYPE:
		kind = KindGoType
	case token.CONST:
		kind = KindGoConst
	case token.VAR:
		kind = KindGoVar
	default:
		// Imports are context, not units
		return
	}

	start := decl.Pos()
	if decl.Doc != nil {
		start = decl.Doc.Pos()
	}
	e.add(kind, genDeclName(decl), start, decl.End())
}

func (e *declExtractor) add(kind, name string, start, end token.Pos) {
	startPos := e.fset.Position(start)
	endPos := e.fset.Position(end)
	if endPos.Offset <= startPos.Offset {
		return
	}

	e.spans = append(e.spans, types.Span{
		Kind:      kind,
		Name:      name,
		StartByte: startPos.Offset,
		EndByte:   endPos.Offset,
		StartLine: startPos.Line,
		EndLine:   endPos.Line,
	})
}

// genDeclName names a declaration group after its first spec
func genDeclName(decl *ast.GenDecl) string {
	if len(decl.Specs) == 0 {
		return ""
	}
	switch s := decl.Specs[0].(type) {
	case *ast.TypeSpec:
		return s.Name.Name
	case *ast.ValueSpec:
		if len(s.Names) > 0 {
			return s.Names[0].Name
		}
	}
	return ""
}
