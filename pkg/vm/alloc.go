package vm

import (
	"github.com/pyro-lang/pyro/pkg/gc"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// Every heap-object constructor the VM (and, transitively, builtins.go's
// native methods) uses routes through one of these helpers so
// gc.Heap.Track is the single allocation choke-point spec.md §4.5
// mandates, and so markRoots below is the only place root-marking logic
// needs to live.

func (vm *VM) track(o object.Object, size int64) {
	vm.Heap.Track(o, size, vm.markRoots)
}

func (vm *VM) allocStr(s string) *object.Str {
	return vm.Pool.InternString(s, func(size int64) *object.Str {
		str := &object.Str{}
		vm.track(str, size+16)
		return str
	})
}

func (vm *VM) allocMap(asSet bool) *object.Map {
	m := object.NewMap(asSet)
	vm.track(m, 64)
	return m
}

func (vm *VM) allocVec(asStack bool) *object.Vec {
	v := object.NewVec(asStack)
	vm.track(v, 32)
	return v
}

func (vm *VM) allocTup(values []value.Value) *object.Tup {
	t := object.NewTup(values)
	vm.track(t, int64(24+8*len(values)))
	return t
}

func (vm *VM) allocBuf(initial []byte) *object.Buf {
	b := &object.Buf{Bytes: append([]byte(nil), initial...)}
	vm.track(b, int64(24+len(initial)))
	return b
}

func (vm *VM) allocClosure(fn *object.Fn, mod *object.Module) *object.Closure {
	cl := object.NewClosure(fn, mod)
	vm.track(cl, int64(48+8*fn.UpvalueCount))
	return cl
}

func (vm *VM) allocClass(name string) *object.Class {
	c := object.NewClass(name)
	vm.track(c, 96)
	return c
}

func (vm *VM) allocInstance(cls *object.Class) *object.Instance {
	inst := object.NewInstance(cls)
	vm.track(inst, int64(16+8*len(inst.Fields)))
	return inst
}

func (vm *VM) allocBoundMethod(receiver, method value.Value) *object.BoundMethod {
	b := &object.BoundMethod{Receiver: receiver, Method: method}
	vm.track(b, 32)
	return b
}

func (vm *VM) allocModule(name string) *object.Module {
	m := object.NewModule(name)
	vm.track(m, 48)
	return m
}

func (vm *VM) allocIter(kind object.IterKind, src value.Value) *object.Iter {
	it := object.NewIter(kind, src)
	vm.track(it, 48)
	return it
}

func (vm *VM) allocQueue() *object.Queue {
	q := object.NewQueue()
	vm.track(q, 24)
	return q
}

func (vm *VM) allocErr(message string) *object.Err {
	e := object.NewErr(message)
	vm.track(e, int64(32+len(message)))
	return e
}

// allocNativeFn wraps a host Go function as a heap object so it can sit
// in a Builtins class's method table or a Superglobals slot like any
// other callable value. It holds no Values of its own (no Trace
// method), but still threads onto the heap's sweep list like everything
// else pkg/vm allocates.
func (vm *VM) allocNativeFn(name string, arity int, fn func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error)) *object.NativeFn {
	n := object.NewNativeFn(name, arity, fn)
	vm.track(n, 32)
	return n
}

func (vm *VM) allocOpenUpvalue(stackIndex int) *object.Upvalue {
	uv := object.NewOpenUpvalue(stackIndex)
	vm.track(uv, 32)
	return uv
}

// markRoots implements spec.md §4.6's root set: the value stack, the
// open-upvalue list, every call frame's closure (and the module it
// closes over), the with-stack, the built-in class table, the global
// module, the superglobals module, the module cache, and the stdio
// file objects. A PanicError in
// flight needs no entry here: it only exists as a Go return value
// threaded through run()'s call stack, which is itself reachable only
// through the frames/stack roots already marked above.
func (vm *VM) markRoots(mark gc.MarkFn) {
	for i := 0; i < vm.sp; i++ {
		mark(vm.stack[i])
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		mark(value.Obj(uv))
	}
	for _, f := range vm.frames {
		mark(value.Obj(f.closure))
	}
	for _, w := range vm.withStack {
		mark(w.resource)
	}
	for _, cls := range vm.Builtins {
		mark(value.Obj(cls))
	}
	if vm.Globals != nil {
		mark(value.Obj(vm.Globals))
	}
	if vm.Superglobals != nil {
		mark(value.Obj(vm.Superglobals))
	}
	for _, mod := range vm.moduleCache {
		mark(value.Obj(mod))
	}
	for _, f := range []*object.File{vm.Stdin, vm.Stdout, vm.Stderr} {
		if f != nil {
			mark(value.Obj(f))
		}
	}
}
