package types

// Span is an embeddable unit located by a grammar parser
type Span struct {
	Kind      string // Syntax node kind, e.g. "function_item" or "func"
	Name      string // Best-effort identifier, may be empty
	StartByte int
	EndByte   int
	StartLine int // 1-based
	EndLine   int
}

// Len returns the span length in bytes
func (s Span) Len() int {
	return s.EndByte - s.StartByte
}

// Contains reports whether other lies entirely within s
func (s Span) Contains(other Span) bool {
	return other.StartByte >= s.StartByte && other.EndByte <= s.EndByte
}

// Overlaps reports whether the two spans share any byte
func (s Span) Overlaps(other Span) bool {
	return s.StartByte < other.EndByte && other.StartByte < s.EndByte
}
