package template

import "fmt"

// Position tracks the location of a template construct inside the raw SQL text.
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based
}

// SyntaxError reports a malformed template invocation. It is surfaced to the
// caller before any database round trip; a malformed invocation is never
// silently dropped, because dropping a requested unnesting would export wrong
// data.
type SyntaxError struct {
	pos Position
	msg string
}

// NewSyntaxError creates a new syntax error at the given position.
func NewSyntaxError(pos Position, msg string) *SyntaxError {
	return &SyntaxError{pos: pos, msg: msg}
}

// NewSyntaxErrorf creates a new syntax error with formatting.
func NewSyntaxErrorf(pos Position, format string, args ...any) *SyntaxError {
	return &SyntaxError{pos: pos, msg: fmt.Sprintf(format, args...)}
}

// Position returns the location of the offending construct.
func (e *SyntaxError) Position() Position { return e.pos }

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at %d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}
