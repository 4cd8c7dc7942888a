// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"

	"github.com/pyro-lang/pyro/pkg/value"
)

// PanicError is what an unrecovered `panic` (spec.md §9) surfaces as to
// Go callers of Interpret/CallValue: the message, the call stack at the
// point of the panic, and — when the panic carries a Pyro value rather
// than a bare string (`panic err` vs `panic "message"`) — that value,
// so a `try` expression recovering it can hand back the original value
// instead of a re-stringified copy.
//
// Adapted from this file's original RuntimeError/StackFrame pair: the
// shape (message plus a call-stack slice) carries over, but frames now
// come from vm.stackTrace's closure/source/line bookkeeping rather than
// a message-send selector, since Pyro has no message-send protocol to
// describe.
type PanicError struct {
	Message string
	Stack   []string
	Value   value.Value
}

func (e *PanicError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Stack) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(e.Stack, "\n"))
	}
	return b.String()
}

// panicWithValue builds a PanicError carrying v as its recoverable
// payload (spec.md §9's `panic <expr>` form), stringifying v for the
// Go-level Error() text while preserving v itself for `try` to recover.
func (vm *VM) panicWithValue(v value.Value) *PanicError {
	return &PanicError{Message: fmt.Sprintf("%v", v), Stack: vm.stackTrace(), Value: v}
}

// asErrValue converts any error propagating out of a recursive run()
// call into the *object.Err a `try expr` pushes on catch: a PanicError
// built from a Pyro `panic <expr>` carries its original value through
// unchanged (spec.md §9 — catching a panicked value must not lossily
// restringify it), anything else becomes a fresh Err wrapping its
// message.
func (vm *VM) asErrValue(err error) value.Value {
	if pe, ok := err.(*PanicError); ok && !pe.Value.IsNull() {
		return pe.Value
	}
	return value.Obj(vm.allocErr(err.Error()))
}
