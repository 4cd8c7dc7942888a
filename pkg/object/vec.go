package object

import "github.com/pyro-lang/pyro/pkg/value"

// Vec is a contiguous, growable Value array. AsStack turns it into a
// VecAsStack, the same layout restricted by convention (push/pop only)
// at the builtins layer.
type Vec struct {
	Header
	AsStack bool
	Values  []value.Value
}

func (v *Vec) Kind() value.ObjKind {
	if v.AsStack {
		return value.ObjVecAsStack
	}
	return value.ObjVec
}
func (v *Vec) ObjHeader() *Header { return &v.Header }

func (v *Vec) Trace(walk func(value.Value)) {
	for _, elem := range v.Values {
		walk(elem)
	}
}

// NewVec builds an empty vector.
func NewVec(asStack bool) *Vec { return &Vec{AsStack: asStack} }

func (v *Vec) Len() int { return len(v.Values) }

func (v *Vec) Push(val value.Value) {
	v.Values = append(v.Values, val)
}

// Pop removes and returns the last element.
func (v *Vec) Pop() (value.Value, bool) {
	if len(v.Values) == 0 {
		return value.Null, false
	}
	last := v.Values[len(v.Values)-1]
	v.Values = v.Values[:len(v.Values)-1]
	return last, true
}

// resolveIndex implements spec.md §4.7's indexing rule: negative
// indices wrap once from the end, out-of-range indices are reported via
// ok=false for the caller to turn into a panic.
func resolveIndex(i int64, length int) (int, bool) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, false
	}
	return int(i), true
}

func (v *Vec) Get(i int64) (value.Value, bool) {
	idx, ok := resolveIndex(i, len(v.Values))
	if !ok {
		return value.Null, false
	}
	return v.Values[idx], true
}

func (v *Vec) Set(i int64, val value.Value) bool {
	idx, ok := resolveIndex(i, len(v.Values))
	if !ok {
		return false
	}
	v.Values[idx] = val
	return true
}

// Tup is a fixed-count Value array, built once at creation time.
type Tup struct {
	Header
	Values []value.Value
}

func (t *Tup) Kind() value.ObjKind { return value.ObjTup }
func (t *Tup) ObjHeader() *Header  { return &t.Header }
func (t *Tup) Trace(walk func(value.Value)) {
	for _, elem := range t.Values {
		walk(elem)
	}
}
func (t *Tup) Get(i int64) (value.Value, bool) {
	idx, ok := resolveIndex(i, len(t.Values))
	if !ok {
		return value.Null, false
	}
	return t.Values[idx], true
}

// NewTup builds a tuple from the given values (copied).
func NewTup(values []value.Value) *Tup {
	return &Tup{Values: append([]value.Value(nil), values...)}
}

// Buf is a growable byte array, Pyro's mutable binary-data container.
type Buf struct {
	Header
	Bytes []byte
}

func (b *Buf) Kind() value.ObjKind { return value.ObjBuf }
func (b *Buf) ObjHeader() *Header  { return &b.Header }

func (b *Buf) Get(i int64) (byte, bool) {
	idx, ok := resolveIndex(i, len(b.Bytes))
	if !ok {
		return 0, false
	}
	return b.Bytes[idx], true
}

func (b *Buf) Set(i int64, v byte) bool {
	idx, ok := resolveIndex(i, len(b.Bytes))
	if !ok {
		return false
	}
	b.Bytes[idx] = v
	return true
}
