// Package parser locates embeddable units in source files.
//
// Go files are parsed with go/parser and yield one span per top-level
// declaration (functions, methods, type/const/var groups), including the
// declaration's doc comment. Rust, Python and JavaScript files are parsed
// with tree-sitter; the grammar registry lists which node kinds count as
// units for each language:
//
//	rust:       function_item, struct_item, enum_item, union_item,
//	            trait_item, impl_item, macro_definition
//	python:     function_definition, class_definition, decorated_definition
//	javascript: function_declaration, generator_function_declaration,
//	            class_declaration
//
// Selection is top-down: once a node is selected its descendants are not
// visited, so functions inside an impl block belong to the impl span and
// spans returned for one file never overlap. Nodes that are not units (a
// Rust mod block, a JavaScript export statement) are descended into.
//
// Any syntax error yields ErrSyntax; callers fall back to whole-file
// chunking for that file.
package parser
