// Package gc implements Pyro's heap allocator and mark-and-sweep
// collector (spec.md §4.5/§4.6): a single allocation choke-point that
// accounts bytes and triggers collection, and a stop-the-world
// mark-and-sweep pass over the VM-owned object list using a grey
// worklist. The VM supplies roots; gc knows nothing about frames,
// stacks or upvalue lists.
package gc

import (
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// Accountant is the allocator's bookkeeping half of spec.md §4.5: every
// allocation and free adjusts BytesAllocated, and ShouldCollect reports
// whether the next allocation should trigger a collection first.
type Accountant struct {
	BytesAllocated int64
	NextThreshold  int64
	GrowthFactor   float64
	Disallows      int
	Failed         bool
}

// NewAccountant builds an Accountant with the given initial threshold
// and the default growth factor of 2 (spec.md §4.6 "Tune").
func NewAccountant(initialThreshold int64) *Accountant {
	return &Accountant{NextThreshold: initialThreshold, GrowthFactor: 2}
}

// Adjust records a size delta (positive on growth, negative on free).
func (a *Accountant) Adjust(delta int64) { a.BytesAllocated += delta }

// ShouldCollect reports whether bytes_allocated has crossed
// next_gc_threshold and collection isn't currently disallowed.
func (a *Accountant) ShouldCollect() bool {
	return a.Disallows == 0 && a.BytesAllocated > a.NextThreshold
}

// Tune recomputes next_gc_threshold after a collection.
func (a *Accountant) Tune() {
	factor := a.GrowthFactor
	if factor <= 0 {
		factor = 2
	}
	a.NextThreshold = int64(float64(a.BytesAllocated) * factor)
}

// Disable increments the nesting count that suppresses collection
// (spec.md §3's "while vm.gc_disallows > 0 ... the collector is a
// no-op"), used while running finalizers or other GC-unsafe sections.
func (a *Accountant) Disable() { a.Disallows++ }

// Enable reverses one Disable call.
func (a *Accountant) Enable() {
	if a.Disallows > 0 {
		a.Disallows--
	}
}

// MarkFn is called by the VM's root-marking routine once per reachable
// root value; Collect passes it a closure that blackens and enqueues.
type MarkFn func(value.Value)

// Heap owns the intrusive linked list of every live object (threaded
// through Header.Next, spec.md §3's "next pointer") plus the string
// pool and the allocation accountant.
type Heap struct {
	Head   object.Object
	Pool   *object.Pool
	Acct   *Accountant
	Forced bool // force-collect on every Track call, for debug/testing
}

// NewHeap builds an empty heap backed by pool, with the given initial
// GC threshold in bytes.
func NewHeap(pool *object.Pool, initialThreshold int64) *Heap {
	return &Heap{Pool: pool, Acct: NewAccountant(initialThreshold)}
}

// Track is the single choke-point every object constructor in pkg/vm
// routes through (spec.md §4.5's "a single reallocate-or-free function
// performs every allocation"): it may trigger a collection first, then
// adjusts the byte count and prepends o to the live-object list.
func (h *Heap) Track(o object.Object, size int64, markRoots func(MarkFn)) object.Object {
	if h.Forced || h.Acct.BytesAllocated+size > h.Acct.NextThreshold {
		h.Collect(markRoots)
	}
	h.Acct.Adjust(size)
	hdr := o.ObjHeader()
	hdr.Size = size
	hdr.Next = h.Head
	h.Head = o
	return o
}

// Collect runs one mark-and-sweep pass: markRoots blackens every root
// (pushing it onto the grey worklist), Trace is then followed
// transitively until the worklist drains, and sweep frees everything
// left unmarked. It is a no-op while collection is disallowed.
func (h *Heap) Collect(markRoots func(MarkFn)) {
	if h.Acct.Disallows > 0 {
		return
	}

	var grey []object.Object
	mark := func(v value.Value) {
		if !v.IsObj() {
			return
		}
		o, ok := v.AsObj().(object.Object)
		if !ok || o == nil {
			return
		}
		hdr := o.ObjHeader()
		if hdr.Marked {
			return
		}
		hdr.Marked = true
		grey = append(grey, o)
	}

	markRoots(mark)

	for len(grey) > 0 {
		n := len(grey) - 1
		o := grey[n]
		grey = grey[:n]
		if hdr := o.ObjHeader(); hdr.Class != nil {
			mark(value.Obj(hdr.Class))
		}
		if t, ok := o.(object.Tracer); ok {
			t.Trace(mark)
		}
	}

	h.sweep()
	h.Acct.Tune()
}

func (h *Heap) sweep() {
	var prev object.Object
	cur := h.Head
	for cur != nil {
		hdr := cur.ObjHeader()
		next := hdr.Next
		if hdr.Marked {
			hdr.Marked = false
			prev = cur
		} else {
			if prev == nil {
				h.Head = next
			} else {
				prev.ObjHeader().Next = next
			}
			h.Acct.Adjust(-hdr.Size)
			h.finalize(cur)
		}
		cur = next
	}
}

// finalize runs the per-kind destructor spec.md §4.6 calls for: interned
// strings drop out of the pool, and a ResourcePointer's free callback
// runs. Closing files is deliberately not done here, per spec.md §4.6.
func (h *Heap) finalize(o object.Object) {
	switch v := o.(type) {
	case *object.Str:
		h.Pool.Remove(v)
	case *object.ResourcePointer:
		if v.Free != nil {
			v.Free(v.Ptr)
		}
	}
}

// Live reports the number of objects currently reachable from Head, for
// diagnostics and tests.
func (h *Heap) Live() int {
	n := 0
	for cur := h.Head; cur != nil; cur = cur.ObjHeader().Next {
		n++
	}
	return n
}
