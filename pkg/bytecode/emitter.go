package bytecode

import (
	"fmt"

	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// MaxJump is the largest forward/backward jump offset a 2-byte operand
// can encode, spec.md §4.2's "max jump distance is 2^16-1".
const MaxJump = 1<<16 - 1

// Writer emits instructions into a target Fn's Code array, recording a
// line-number table entry for every byte (spec.md §4.2). It is the
// compiler's only way to produce bytecode: nothing else appends to
// Fn.Code.
type Writer struct {
	Fn *object.Fn
}

// NewWriter returns a Writer appending to fn.
func NewWriter(fn *object.Fn) *Writer { return &Writer{Fn: fn} }

func (w *Writer) emitByte(b byte, line int) int {
	w.Fn.Code = append(w.Fn.Code, b)
	w.Fn.Lines.Record(line)
	return len(w.Fn.Code) - 1
}

// Op emits a bare opcode with no operand.
func (w *Writer) Op(op Opcode, line int) int {
	return w.emitByte(byte(op), line)
}

// Op1 emits an opcode followed by a one-byte operand.
func (w *Writer) Op1(op Opcode, operand byte, line int) int {
	offset := w.emitByte(byte(op), line)
	w.emitByte(operand, line)
	return offset
}

// Op2 emits an opcode followed by a two-byte big-endian operand.
func (w *Writer) Op2(op Opcode, operand uint16, line int) int {
	offset := w.emitByte(byte(op), line)
	w.emitByte(byte(operand>>8), line)
	w.emitByte(byte(operand), line)
	return offset
}

// Op4 emits an opcode followed by two packed two-byte big-endian
// operands (MAKE_ENUM, IMPORT_NAMED_MEMBERS).
func (w *Writer) Op4(op Opcode, a, b uint16, line int) int {
	offset := w.emitByte(byte(op), line)
	w.emitByte(byte(a>>8), line)
	w.emitByte(byte(a), line)
	w.emitByte(byte(b>>8), line)
	w.emitByte(byte(b), line)
	return offset
}

// OpNameArg emits an opcode followed by a two-byte constant-pool index
// (the method name) and a one-byte argument count — CALL_METHOD and its
// pub/super/unpack variants, which need both to dispatch (spec.md §4.2).
func (w *Writer) OpNameArg(op Opcode, nameIdx uint16, argc byte, line int) int {
	offset := w.emitByte(byte(op), line)
	w.emitByte(byte(nameIdx>>8), line)
	w.emitByte(byte(nameIdx), line)
	w.emitByte(argc, line)
	return offset
}

// EmitClosure emits op (MAKE_CLOSURE) with a two-byte constant-pool
// index for the Fn template, followed by one (isLocal, index) byte pair
// per upvalue the closure captures (spec.md §4.8). It writes no
// default-argument count; MAKE_CLOSURE_WITH_DEF_ARGS goes through
// EmitClosureWithDefaults. isLocal/index are parallel slices of the
// same length.
func (w *Writer) EmitClosure(op Opcode, fnIdx uint16, isLocal []bool, index []byte, line int) int {
	offset := w.emitByte(byte(op), line)
	w.emitByte(byte(fnIdx>>8), line)
	w.emitByte(byte(fnIdx), line)
	for i := range isLocal {
		if isLocal[i] {
			w.emitByte(1, line)
		} else {
			w.emitByte(0, line)
		}
		w.emitByte(index[i], line)
	}
	return offset
}

// EmitClosureWithDefaults emits MAKE_CLOSURE_WITH_DEF_ARGS: a two-byte Fn
// constant index, a one-byte count of default-argument values the caller
// has already pushed (popped into the new Closure's Defaults, in
// parameter order), then the same upvalue-pair encoding as EmitClosure.
func (w *Writer) EmitClosureWithDefaults(fnIdx uint16, defaultCount byte, isLocal []bool, index []byte, line int) int {
	offset := w.emitByte(byte(OpMakeClosureWithDefArgs), line)
	w.emitByte(byte(fnIdx>>8), line)
	w.emitByte(byte(fnIdx), line)
	w.emitByte(defaultCount, line)
	for i := range isLocal {
		if isLocal[i] {
			w.emitByte(1, line)
		} else {
			w.emitByte(0, line)
		}
		w.emitByte(index[i], line)
	}
	return offset
}

// EmitJump writes op followed by a two-byte placeholder, returning the
// offset of the placeholder's high byte for PatchJump to fill in later.
func (w *Writer) EmitJump(op Opcode, line int) int {
	w.emitByte(byte(op), line)
	offset := len(w.Fn.Code)
	w.emitByte(0xFF, line)
	w.emitByte(0xFF, line)
	return offset
}

// PatchJump backfills the two-byte operand at offset (as returned by
// EmitJump) with the distance from just past the operand to the current
// end of Code. Returns an error if that distance doesn't fit in 16 bits,
// the syntax error spec.md §4.2 and §8 both call for.
func (w *Writer) PatchJump(offset int) error {
	dist := len(w.Fn.Code) - (offset + 2)
	if dist < 0 || dist > MaxJump {
		return fmt.Errorf("jump distance %d exceeds maximum of %d bytes", dist, MaxJump)
	}
	w.Fn.Code[offset] = byte(dist >> 8)
	w.Fn.Code[offset+1] = byte(dist)
	return nil
}

// EmitLoop writes a JUMP_BACK to loopStart (the Code offset the loop
// condition begins at).
func (w *Writer) EmitLoop(op Opcode, loopStart int, line int) error {
	w.emitByte(byte(op), line)
	dist := len(w.Fn.Code) - loopStart + 2
	if dist > MaxJump {
		return fmt.Errorf("loop body too large: back-jump distance %d exceeds maximum of %d bytes", dist, MaxJump)
	}
	w.emitByte(byte(dist>>8), line)
	w.emitByte(byte(dist), line)
	return nil
}

// Here returns the offset the next emitted byte will land at.
func (w *Writer) Here() int { return len(w.Fn.Code) }

// AddConstant appends val to the constant pool, returning its index, or
// an error if the pool has grown past what a 2-byte index can address.
func (w *Writer) AddConstant(val value.Value) (int, error) {
	if len(w.Fn.Constants) >= 1<<16 {
		return 0, fmt.Errorf("too many constants in one function (limit %d)", 1<<16)
	}
	w.Fn.Constants = append(w.Fn.Constants, val)
	return len(w.Fn.Constants) - 1, nil
}
