package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// Binary .pyroc format, grounded on smog's pkg/bytecode/format.go .sg
// layout: a magic number + version header, then a constants section and
// a raw code section. Bytecode is explicitly not guaranteed to be
// stable across versions (spec.md §1's Non-goals), so Version exists
// only to let the loader refuse a file it can't read rather than to
// promise forward compatibility.
const (
	magicNumber  uint32 = 0x50595243 // "PYRC"
	formatVersion uint32 = 1
)

const (
	constNull byte = iota
	constBool
	constI64
	constF64
	constRune
	constStr
	constFn
)

// Marshal writes fn (recursively, following any nested-Fn constants
// produced by closures) to w in the .pyroc binary format.
func Marshal(w io.Writer, fn *object.Fn) error {
	if err := binary.Write(w, binary.BigEndian, magicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return err
	}
	return marshalFn(w, fn)
}

func marshalFn(w io.Writer, fn *object.Fn) error {
	if err := writeString(w, fn.Name); err != nil {
		return err
	}
	if err := writeString(w, fn.SourceID); err != nil {
		return err
	}
	if err := writeString(w, fn.SourceName); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(fn.Arity)); err != nil {
		return err
	}
	variadic := byte(0)
	if fn.Variadic {
		variadic = 1
	}
	if err := binary.Write(w, binary.BigEndian, variadic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(fn.UpvalueCount)); err != nil {
		return err
	}

	if err := binary.Write(w, binary.BigEndian, int32(len(fn.Constants))); err != nil {
		return err
	}
	for _, c := range fn.Constants {
		if err := marshalConstant(w, c); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.BigEndian, int32(len(fn.Code))); err != nil {
		return err
	}
	_, err := w.Write(fn.Code)
	return err
}

func marshalConstant(w io.Writer, v value.Value) error {
	switch {
	case v.IsNull():
		return writeTag(w, constNull)
	case v.IsBool():
		if err := writeTag(w, constBool); err != nil {
			return err
		}
		b := byte(0)
		if v.AsBool() {
			b = 1
		}
		return binary.Write(w, binary.BigEndian, b)
	case v.IsI64():
		if err := writeTag(w, constI64); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, v.AsI64())
	case v.IsF64():
		if err := writeTag(w, constF64); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, math.Float64bits(v.AsF64()))
	case v.IsRune():
		if err := writeTag(w, constRune); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, int32(v.AsRune()))
	case v.IsObjKind(value.ObjStr):
		if err := writeTag(w, constStr); err != nil {
			return err
		}
		return writeString(w, v.AsObj().(*object.Str).String())
	case v.IsObjKind(value.ObjFn):
		if err := writeTag(w, constFn); err != nil {
			return err
		}
		return marshalFn(w, v.AsObj().(*object.Fn))
	default:
		return fmt.Errorf("bytecode: constant of kind %v is not serializable", v.Tag())
	}
}

func writeTag(w io.Writer, tag byte) error {
	return binary.Write(w, binary.BigEndian, tag)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Unmarshal reads a .pyroc file produced by Marshal, interning strings
// through pool and routing every allocation through newFn/newStr so the
// VM's heap accounting stays centralized (spec.md §4.5).
func Unmarshal(r io.Reader, pool *object.Pool, newFn func() *object.Fn, newStr func(size int64) *object.Str) (*object.Fn, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != magicNumber {
		return nil, fmt.Errorf("bytecode: not a .pyroc file (bad magic number)")
	}
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported .pyroc format version %d", version)
	}
	return unmarshalFn(r, pool, newFn, newStr)
}

func unmarshalFn(r io.Reader, pool *object.Pool, newFn func() *object.Fn, newStr func(size int64) *object.Str) (*object.Fn, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	sourceID, err := readString(r)
	if err != nil {
		return nil, err
	}
	sourceName, err := readString(r)
	if err != nil {
		return nil, err
	}
	var arity int32
	if err := binary.Read(r, binary.BigEndian, &arity); err != nil {
		return nil, err
	}
	var variadic byte
	if err := binary.Read(r, binary.BigEndian, &variadic); err != nil {
		return nil, err
	}
	var upvalueCount int32
	if err := binary.Read(r, binary.BigEndian, &upvalueCount); err != nil {
		return nil, err
	}

	fn := newFn()
	fn.Name = name
	fn.SourceID = sourceID
	fn.SourceName = sourceName
	fn.Arity = int(arity)
	fn.Variadic = variadic != 0
	fn.UpvalueCount = int(upvalueCount)

	var constCount int32
	if err := binary.Read(r, binary.BigEndian, &constCount); err != nil {
		return nil, err
	}
	fn.Constants = make([]value.Value, constCount)
	for i := range fn.Constants {
		v, err := unmarshalConstant(r, pool, newFn, newStr)
		if err != nil {
			return nil, err
		}
		fn.Constants[i] = v
	}

	var codeLen int32
	if err := binary.Read(r, binary.BigEndian, &codeLen); err != nil {
		return nil, err
	}
	fn.Code = make([]byte, codeLen)
	if _, err := io.ReadFull(r, fn.Code); err != nil {
		return nil, err
	}
	return fn, nil
}

func unmarshalConstant(r io.Reader, pool *object.Pool, newFn func() *object.Fn, newStr func(size int64) *object.Str) (value.Value, error) {
	var tag byte
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return value.Null, err
	}
	switch tag {
	case constNull:
		return value.Null, nil
	case constBool:
		var b byte
		if err := binary.Read(r, binary.BigEndian, &b); err != nil {
			return value.Null, err
		}
		return value.Bool(b != 0), nil
	case constI64:
		var n int64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return value.Null, err
		}
		return value.I64(n), nil
	case constF64:
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return value.Null, err
		}
		return value.F64(math.Float64frombits(bits)), nil
	case constRune:
		var r32 int32
		if err := binary.Read(r, binary.BigEndian, &r32); err != nil {
			return value.Null, err
		}
		return value.Rune(rune(r32)), nil
	case constStr:
		s, err := readString(r)
		if err != nil {
			return value.Null, err
		}
		return value.Obj(pool.InternString(s, newStr)), nil
	case constFn:
		nested, err := unmarshalFn(r, pool, newFn, newStr)
		if err != nil {
			return value.Null, err
		}
		return value.Obj(nested), nil
	default:
		return value.Null, fmt.Errorf("bytecode: unknown constant tag %d", tag)
	}
}

func readString(r io.Reader) (string, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
