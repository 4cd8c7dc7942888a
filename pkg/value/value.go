// Package value defines Pyro's tagged value representation.
//
// A Value is a small, copyable struct: the interpreter passes it by value
// on the operand stack, in call frames, and inside every object that can
// hold other values (maps, vectors, tuples, closures...). Heap-allocated
// content is never embedded directly in a Value — it is reached through
// the Obj variant, which carries a HeapObject reference defined by the
// sibling pkg/object package.
//
// pkg/value intentionally has no dependency on pkg/object: HeapObject is
// the narrow interface pkg/object's concrete types satisfy, which keeps
// the import graph one-directional (object -> value, never the reverse).
package value

import "math"

// Tag discriminates the variant a Value currently holds.
type Tag byte

const (
	TagNull Tag = iota
	TagBool
	TagTombstone
	TagI64
	TagF64
	TagRune
	TagObj
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagBool:
		return "bool"
	case TagTombstone:
		return "tombstone"
	case TagI64:
		return "i64"
	case TagF64:
		return "f64"
	case TagRune:
		return "rune"
	case TagObj:
		return "obj"
	default:
		return "unknown"
	}
}

// ObjKind tags the kind of heap object an Obj Value refers to.
type ObjKind byte

const (
	ObjStr ObjKind = iota
	ObjMap
	ObjMapAsSet
	ObjVec
	ObjVecAsStack
	ObjTup
	ObjBuf
	ObjFn
	ObjClosure
	ObjNativeFn
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
	ObjModule
	ObjIter
	ObjQueue
	ObjFile
	ObjErr
	ObjResourcePointer
)

func (k ObjKind) String() string {
	names := [...]string{
		"str", "map", "set", "vec", "stack", "tup", "buf", "fn", "closure",
		"native_fn", "upvalue", "class", "instance", "bound_method",
		"module", "iter", "queue", "file", "err", "resource_pointer",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// HeapObject is the sealed surface every pkg/object value must implement
// to be stored inside a Value. The garbage collector and the VM talk to
// heap content only through this interface and the richer one declared
// in pkg/object (Object, which additionally exposes the GC header).
type HeapObject interface {
	Kind() ObjKind
}

// Value is Pyro's discriminated-union runtime value. The zero Value is
// Null.
type Value struct {
	tag Tag
	i   int64
	f   float64
	o   HeapObject
}

// Null is the singleton null value.
var Null = Value{tag: TagNull}

// Tombstone marks a deleted map slot. It is never visible to Pyro code.
var Tombstone = Value{tag: TagTombstone}

// Bool wraps a boolean.
func Bool(b bool) Value {
	if b {
		return Value{tag: TagBool, i: 1}
	}
	return Value{tag: TagBool, i: 0}
}

// I64 wraps a signed 64-bit integer.
func I64(n int64) Value { return Value{tag: TagI64, i: n} }

// F64 wraps an IEEE-754 double.
func F64(f float64) Value { return Value{tag: TagF64, f: f} }

// Rune wraps a 32-bit Unicode scalar value.
func Rune(r rune) Value { return Value{tag: TagRune, i: int64(r)} }

// Obj wraps a heap object reference.
func Obj(o HeapObject) Value { return Value{tag: TagObj, o: o} }

// Tag reports which variant is currently held.
func (v Value) Tag() Tag { return v.tag }

func (v Value) IsNull() bool      { return v.tag == TagNull }
func (v Value) IsTombstone() bool { return v.tag == TagTombstone }
func (v Value) IsBool() bool      { return v.tag == TagBool }
func (v Value) IsI64() bool       { return v.tag == TagI64 }
func (v Value) IsF64() bool       { return v.tag == TagF64 }
func (v Value) IsRune() bool      { return v.tag == TagRune }
func (v Value) IsObj() bool       { return v.tag == TagObj }

// IsNumeric reports whether v participates in cross-kind numeric
// comparison and arithmetic (i64, f64 and rune all qualify).
func (v Value) IsNumeric() bool {
	return v.tag == TagI64 || v.tag == TagF64 || v.tag == TagRune
}

func (v Value) AsBool() bool { return v.i != 0 }
func (v Value) AsI64() int64 { return v.i }
func (v Value) AsF64() float64 {
	return v.f
}
func (v Value) AsRune() rune         { return rune(v.i) }
func (v Value) AsObj() HeapObject    { return v.o }
func (v Value) ObjKind() ObjKind     { return v.o.Kind() }
func (v Value) IsObjKind(k ObjKind) bool {
	return v.tag == TagObj && v.o != nil && v.o.Kind() == k
}

// TypeName names v's runtime type the way Pyro error messages describe
// it: an object's ObjKind name, or the scalar Tag name for everything
// else (spec.md §9's runtime-error text).
func (v Value) TypeName() string {
	if v.tag == TagObj {
		if v.o == nil {
			return "null"
		}
		return v.o.Kind().String()
	}
	return v.tag.String()
}

// AsF64Numeric widens any numeric Value to float64, matching the
// int/float/rune cross-kind comparisons spec.md §3 requires.
func (v Value) AsF64Numeric() float64 {
	switch v.tag {
	case TagF64:
		return v.f
	case TagI64:
		return float64(v.i)
	case TagRune:
		return float64(v.i)
	default:
		return math.NaN()
	}
}

// Truthy implements Pyro's truthiness rule: null and false are falsy,
// every other value (including 0, 0.0, and the empty string) is truthy.
func (v Value) Truthy() bool {
	switch v.tag {
	case TagNull:
		return false
	case TagBool:
		return v.i != 0
	default:
		return true
	}
}

// Equals implements value equality, including the cross-kind numeric
// rule from spec.md §3: i64, f64 and rune compare by numeric value.
// Obj equality goes through objEquals, which pkg/object installs:
// identity, except that strings, tuples and sets compare by content (for
// strings produced through the pool, interning makes that pointer
// identity again).
func (v Value) Equals(other Value) bool {
	if v.tag == other.tag {
		switch v.tag {
		case TagNull, TagTombstone:
			return true
		case TagBool:
			return v.i == other.i
		case TagI64:
			return v.i == other.i
		case TagF64:
			return v.f == other.f
		case TagRune:
			return v.i == other.i
		case TagObj:
			return objEquals(v.o, other.o)
		}
	}
	if v.IsNumeric() && other.IsNumeric() {
		return numericEquals(v, other)
	}
	return false
}

// numericEquals routes through CompareNumeric rather than widening an
// i64 to float64 directly, so equality gets the same ±2^63
// precision-safe treatment spec.md §3/§4.7 require of ordering (e.g.
// I64(9223372036854775807) must not equal F64(9223372036854775808.0)).
func numericEquals(a, b Value) bool {
	return CompareNumeric(a, b) == OrderEqual
}

// objEquals is overridden by pkg/object via RegisterObjEquals because
// pkg/value cannot import pkg/object (see package doc). Content-based
// object equality (strings, tuples, sets...) is installed there; until
// installed this falls back to identity comparison.
var objEquals = func(a, b HeapObject) bool { return a == b }

// RegisterObjEquals lets pkg/object install content-aware equality for
// heap objects once it exists, without pkg/value depending on it.
func RegisterObjEquals(fn func(a, b HeapObject) bool) { objEquals = fn }

// Hash is overridden the same way via RegisterObjHash; it defaults to a
// hash of the tag and scalar payload only, which is correct for every
// non-Obj variant without pkg/object's help.
func (v Value) Hash() uint64 {
	switch v.tag {
	case TagObj:
		return objHash(v.o)
	case TagF64:
		// Integral floats hash identically to the equal i64/rune so that
		// map lookups succeed across numeric kinds, per spec.md §3.
		if f := v.f; f == math.Trunc(f) && !math.IsInf(f, 0) {
			return hashInt(int64(f))
		}
		return hashBits(math.Float64bits(v.f))
	case TagI64, TagRune:
		return hashInt(v.i)
	case TagBool:
		return hashInt(v.i)
	default:
		return hashInt(int64(v.tag))
	}
}

var objHash = func(o HeapObject) uint64 { return hashInt(0) }

// RegisterObjHash lets pkg/object install content-aware hashing
// (string/tuple/etc.) without creating an import cycle.
func RegisterObjHash(fn func(o HeapObject) uint64) { objHash = fn }

func hashInt(n int64) uint64 { return hashBits(uint64(n)) }

// hashBits applies a 64-bit finalizer (splitmix64) so scalar values hash
// well as map-bucket indices.
func hashBits(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x = x ^ (x >> 31)
	return x
}

