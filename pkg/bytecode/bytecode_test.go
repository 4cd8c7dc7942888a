package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

func TestWriterEmitsOperands(t *testing.T) {
	fn := object.NewFn("main", "src-1", "main.pyro")
	w := NewWriter(fn)
	w.Op(OpLoadNull, 1)
	w.Op1(OpGetLocal, 3, 1)
	w.Op2(OpLoadConstant, 0x0102, 2)

	require.Equal(t, []byte{
		byte(OpLoadNull),
		byte(OpGetLocal), 3,
		byte(OpLoadConstant), 0x01, 0x02,
	}, fn.Code)
}

func TestJumpPatchingRoundTrips(t *testing.T) {
	fn := object.NewFn("main", "src-1", "main.pyro")
	w := NewWriter(fn)
	offset := w.EmitJump(OpJumpIfFalse, 1)
	w.Op(OpLoadTrue, 2)
	w.Op(OpLoadFalse, 3)
	require.NoError(t, w.PatchJump(offset))

	dist := int(fn.Code[offset])<<8 | int(fn.Code[offset+1])
	require.Equal(t, len(fn.Code)-(offset+2), dist)
}

func TestJumpTooFarIsRejected(t *testing.T) {
	fn := object.NewFn("main", "src-1", "main.pyro")
	w := NewWriter(fn)
	offset := w.EmitJump(OpJump, 1)
	fn.Code = append(fn.Code, make([]byte, MaxJump+1)...)
	require.Error(t, w.PatchJump(offset))
}

func TestDisassembleRendersInstructions(t *testing.T) {
	fn := object.NewFn("main", "src-1", "main.pyro")
	w := NewWriter(fn)
	idx, err := w.AddConstant(value.I64(42))
	require.NoError(t, err)
	w.Op2(OpLoadConstant, uint16(idx), 1)
	w.Op(OpPop, 1)

	out := Disassemble(fn)
	require.Contains(t, out, "LOAD_CONSTANT")
	require.Contains(t, out, "42")
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	fn := object.NewFn("main", "src-1", "main.pyro")
	fn.Arity = 2
	fn.UpvalueCount = 1
	w := NewWriter(fn)
	idx, err := w.AddConstant(value.I64(7))
	require.NoError(t, err)
	w.Op2(OpLoadConstant, uint16(idx), 1)
	w.Op(OpReturn, 1)

	var buf bytes.Buffer
	require.NoError(t, Marshal(&buf, fn))

	pool := object.NewPool()
	got, err := Unmarshal(&buf, pool, func() *object.Fn { return &object.Fn{} }, func(int64) *object.Str { return &object.Str{} })
	require.NoError(t, err)
	require.Equal(t, fn.Code, got.Code)
	require.Equal(t, fn.Arity, got.Arity)
	require.Equal(t, fn.UpvalueCount, got.UpvalueCount)
	require.Equal(t, int64(7), got.Constants[0].AsI64())
}
