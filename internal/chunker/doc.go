// Package chunker cuts file content into chunk drafts.
//
// Two strategies are supported, selected by the classifier:
//
//   - object-level: the file is parsed with a grammar and every top-level
//     unit (function, type, impl block, ...) becomes one draft. Drafts from
//     one file never overlap.
//   - whole-file: the entire file becomes one draft.
//
// Object-level extraction downgrades to whole-file when the file does not
// parse or contains no units, so a malformed file never aborts a pass.
// Empty files yield no drafts.
//
// EmbedText builds the text actually sent to the embedding provider:
//
//	The below is a code snippet from the 'src/lib.rs' file.
//	```rust
//	fn foo() {}
//	```
package chunker
