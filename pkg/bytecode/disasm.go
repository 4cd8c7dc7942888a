package bytecode

import (
	"fmt"
	"strings"

	"github.com/pyro-lang/pyro/pkg/object"
)

// Disassemble renders fn's bytecode as human-readable text, one
// instruction per line, in the "OFFSET LINE OPCODE OPERAND" layout
// smog's disassembler used (pkg/bytecode/format.go in the teacher
// repo) adapted to Pyro's byte-oriented instruction stream.
func Disassemble(fn *object.Fn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (source %s) ==\n", fn.Name, fn.SourceID)
	offset := 0
	for offset < len(fn.Code) {
		offset = disassembleInstruction(&b, fn, offset)
	}
	return b.String()
}

func disassembleInstruction(b *strings.Builder, fn *object.Fn, offset int) int {
	op := Opcode(fn.Code[offset])
	line := fn.Lines.LineFor(offset)
	fmt.Fprintf(b, "%04d %4d %-28s", offset, line, op.String())

	switch op.Width() {
	case Operand0:
		b.WriteByte('\n')
		return offset + 1
	case Operand1:
		operand := fn.Code[offset+1]
		fmt.Fprintf(b, " %d", operand)
		b.WriteByte('\n')
		return offset + 2
	case Operand2:
		operand := readU16(fn.Code[offset+1:])
		fmt.Fprintf(b, " %d", operand)
		annotateConstant(b, fn, op, int(operand))
		annotateJump(b, op, offset, int(operand))
		b.WriteByte('\n')
		return offset + 3
	case Operand4:
		a := readU16(fn.Code[offset+1:])
		c := readU16(fn.Code[offset+3:])
		fmt.Fprintf(b, " %d, %d", a, c)
		b.WriteByte('\n')
		return offset + 5
	case OperandNameArg:
		nameIdx := readU16(fn.Code[offset+1:])
		argc := fn.Code[offset+3]
		fmt.Fprintf(b, " %d argc=%d", nameIdx, argc)
		annotateConstant(b, fn, op, int(nameIdx))
		b.WriteByte('\n')
		return offset + 4
	case OperandVariable:
		return disassembleClosure(b, fn, op, offset)
	default:
		b.WriteByte('\n')
		return offset + 1
	}
}

// disassembleClosure renders MAKE_CLOSURE[_WITH_DEF_ARGS]: a two-byte Fn
// constant index (MAKE_CLOSURE_WITH_DEF_ARGS additionally carries a
// one-byte default-argument count right after it) followed by one
// (isLocal, index) byte pair per upvalue the target Fn declares (spec.md
// §4.8).
func disassembleClosure(b *strings.Builder, fn *object.Fn, op Opcode, offset int) int {
	fnIdx := int(readU16(fn.Code[offset+1:]))
	fmt.Fprintf(b, " %d", fnIdx)
	cursor := offset + 3
	if op == OpMakeClosureWithDefArgs {
		defaultCount := fn.Code[cursor]
		fmt.Fprintf(b, " defaults=%d", defaultCount)
		cursor++
	}
	upvalueCount := 0
	if fnIdx >= 0 && fnIdx < len(fn.Constants) {
		c := fn.Constants[fnIdx]
		fmt.Fprintf(b, " ; %v", c)
		if c.IsObj() {
			if target, ok := c.AsObj().(*object.Fn); ok {
				upvalueCount = target.UpvalueCount
			}
		}
	}
	for i := 0; i < upvalueCount; i++ {
		isLocal := fn.Code[cursor]
		idx := fn.Code[cursor+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, " [%s %d]", kind, idx)
		cursor += 2
	}
	b.WriteByte('\n')
	return cursor
}

func readU16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

func annotateConstant(b *strings.Builder, fn *object.Fn, op Opcode, idx int) {
	switch op {
	case OpLoadConstant, OpGetGlobal, OpSetGlobal, OpDefinePubGlobal, OpDefinePriGlobal,
		OpGetField, OpGetPubField, OpSetField, OpSetPubField,
		OpGetMethod, OpGetPubMethod, OpGetSuperMethod, OpGetMember,
		OpCallMethod, OpCallMethodWithUnpack, OpCallPubMethod, OpCallPubMethodWithUnpack,
		OpCallSuperMethod, OpCallSuperMethodWithUnpack,
		OpDefinePubMethod, OpDefinePriMethod, OpDefineStaticMethod,
		OpDefinePubField, OpDefinePriField, OpDefineStaticField:
		if idx >= 0 && idx < len(fn.Constants) {
			fmt.Fprintf(b, " ; %v", fn.Constants[idx])
		}
	}
}

func annotateJump(b *strings.Builder, op Opcode, offset, dist int) {
	switch op {
	case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpJumpIfErr, OpJumpIfNotErr,
		OpJumpIfNotNull, OpPopJumpIfFalse, OpBreak:
		fmt.Fprintf(b, " -> %04d", offset+3+dist)
	case OpJumpBack:
		fmt.Fprintf(b, " -> %04d", offset+3-dist)
	}
}
