package compiler

import "fmt"

// SyntaxError is raised by the compiler with a source id and line
// (spec.md §7): compilation aborts immediately, there is no recovery.
type SyntaxError struct {
	SourceID string
	Line     int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error: %s", e.SourceID, e.Line, e.Msg)
}

func (c *Compiler) errorf(line int, format string, args ...interface{}) error {
	return &SyntaxError{SourceID: c.sourceID, Line: line, Msg: fmt.Sprintf(format, args...)}
}
