// Package object implements Pyro's heap-allocated object kinds: strings,
// maps, vectors, tuples, buffers, closures, classes, instances, bound
// methods, modules, iterators, queues, files, errors and upvalues.
//
// Every concrete type embeds Header, giving it the "next pointer, class
// pointer, kind tag, mark bit" common header spec.md §3 requires. The
// intrusive Next pointer is how the VM threads every live object onto a
// single list for sweep; Marked is the collector's mark bit.
package object

import "github.com/pyro-lang/pyro/pkg/value"

// Header is embedded in every object kind. It is the "common header"
// spec.md §3 mandates: a next-pointer threading the object onto the
// VM's global object list, an optional class pointer, and a mark bit.
// The kind tag itself is reported by each type's Kind() method rather
// than stored redundantly in the header.
type Header struct {
	Next   Object
	Class  *Class
	Marked bool
	// Size is the byte count Track charged the accountant for this
	// object (spec.md §4.5); sweep subtracts it back out on free so
	// BytesAllocated reflects the live set rather than growing
	// monotonically.
	Size int64
}

// Object is the sealed interface every heap object implements: it
// extends value.HeapObject (the Kind() tag pkg/value needs) with access
// to the shared header the collector and allocator operate on.
type Object interface {
	value.HeapObject
	ObjHeader() *Header
}

// Tracer is implemented by every object kind that can hold references to
// other values — maps, vectors, tuples, closures, classes, instances,
// modules, iterators, queues, bound methods and upvalues. The collector
// calls Trace to blacken a grey object: walk fires a callback for every
// Value the object directly references.
type Tracer interface {
	Trace(walk func(value.Value))
}

func init() {
	value.RegisterObjEquals(objEquals)
	value.RegisterObjHash(objHash)
}

// objEquals gives Pyro's built-in reference types content equality where
// the language defines it (strings compare by content pre-interning
// collapse, tuples and sets compare element-wise) and falls back to
// pointer identity for everything else (vectors, instances, classes...).
func objEquals(a, b value.HeapObject) bool {
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case *Str:
		bv := b.(*Str)
		return av.Hash == bv.Hash && string(av.Bytes) == string(bv.Bytes)
	case *Tup:
		bv := b.(*Tup)
		return tupEquals(av, bv)
	case *Map:
		bv := b.(*Map)
		if av.IsSet != bv.IsSet || !av.IsSet {
			return false
		}
		return setEquals(av, bv)
	default:
		return false
	}
}

func tupEquals(a, b *Tup) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !a.Values[i].Equals(b.Values[i]) {
			return false
		}
	}
	return true
}

// setEquals compares two MapAsSet objects order-independently over their
// live (non-tombstoned) keys, per spec.md §4.4.
func setEquals(a, b *Map) bool {
	if a.LiveCount() != b.LiveCount() {
		return false
	}
	match := true
	a.Each(func(k, _ value.Value) bool {
		if !b.Has(k) {
			match = false
			return false
		}
		return true
	})
	return match
}

func objHash(o value.HeapObject) uint64 {
	switch v := o.(type) {
	case *Str:
		return v.Hash
	case *Tup:
		var h uint64 = 14695981039346656037 // FNV offset basis, mixed per element
		for _, elem := range v.Values {
			h ^= elem.Hash()
			h *= 1099511628211
		}
		return h
	default:
		return identityHash(o)
	}
}
