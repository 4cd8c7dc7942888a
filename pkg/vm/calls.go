package vm

import (
	"fmt"

	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// CallValue is the general entry point for invoking any callable Pyro
// value: a Closure, a BoundMethod, a NativeFn, or a Class used as a
// constructor (spec.md §4.8's CALL_VALUE family, and the surface
// pkg/object.NativeVM exposes so native methods can call back into
// Pyro code). It is also what a `try expr` uses to drive a call from
// outside the dispatch loop.
func (vm *VM) CallValue(callee value.Value, args []value.Value) (value.Value, error) {
	if !callee.IsObj() {
		return value.Null, vm.Panic("%s is not callable", callee.TypeName())
	}
	switch fn := callee.AsObj().(type) {
	case *object.Closure:
		reserved := value.Null
		if fn.Fn.ReservesSelf {
			reserved = callee
		}
		return vm.invokeClosure(fn, reserved, args)
	case *object.BoundMethod:
		return vm.callBound(fn, args)
	case *object.NativeFn:
		return vm.callNative(fn, value.Null, args)
	case *object.Class:
		return vm.construct(fn, args)
	default:
		return value.Null, vm.Panic("%s is not callable", callee.TypeName())
	}
}

// callBound invokes a BoundMethod's underlying callable with its
// receiver reserved at slot 0 (spec.md §3: self inside a method body is
// the receiver the method was looked up on, not the class it was
// defined in).
func (vm *VM) callBound(b *object.BoundMethod, args []value.Value) (value.Value, error) {
	switch method := b.Method.AsObj().(type) {
	case *object.Closure:
		return vm.invokeClosure(method, b.Receiver, args)
	case *object.NativeFn:
		return vm.callNative(method, b.Receiver, args)
	default:
		return value.Null, vm.Panic("bound method wraps a non-callable value")
	}
}

// construct allocates a new instance of cls and, if it declares $init,
// runs it with the instance reserved at slot 0, discarding $init's own
// return value (spec.md §3's constructor protocol: a class call always
// yields the instance, never whatever $init returns).
func (vm *VM) construct(cls *object.Class, args []value.Value) (value.Value, error) {
	inst := vm.allocInstance(cls)
	instVal := value.Obj(inst)
	if cls.InitMethod.IsNull() {
		if len(args) != 0 {
			return value.Null, vm.Panic("%s takes no arguments (no $init declared)", cls.Name)
		}
		return instVal, nil
	}
	switch init := cls.InitMethod.AsObj().(type) {
	case *object.Closure:
		if _, err := vm.invokeClosure(init, instVal, args); err != nil {
			return value.Null, err
		}
	case *object.NativeFn:
		if _, err := vm.callNative(init, instVal, args); err != nil {
			return value.Null, err
		}
	default:
		return value.Null, vm.Panic("%s's $init is not callable", cls.Name)
	}
	return instVal, nil
}

// callNative invokes a host-provided function directly — no frame, no
// recursive run(), since native code runs to completion in a single Go
// call. It still satisfies object.NativeVM for any callback the native
// makes back into Pyro (e.g. the user callback iter:map applies).
func (vm *VM) callNative(fn *object.NativeFn, receiver value.Value, args []value.Value) (value.Value, error) {
	if fn.Arity >= 0 && len(args) != fn.Arity {
		return value.Null, vm.Panic("%s expects %d argument(s), got %d", fn.Name, fn.Arity, len(args))
	}
	return fn.Fn(vm, receiver, args)
}

// invokeClosure is the heart of Pyro's call convention (spec.md §4.8):
// it lays out a new frame's locals — an optional reserved slot 0 (the
// closure itself for a self-recursing named function, or a receiver
// for a method), then the declared parameters, filling any trailing
// ones the caller omitted from cl.Defaults — pushes the frame, and
// recurses into run() so that, from Go's perspective, one Pyro call is
// one Go call: the recursion depth of this function mirrors the Pyro
// call-stack depth, and an error return unwinds exactly as far as the
// nearest Go (and thus Pyro) caller, with run() restoring vm.frames and
// vm.sp to this call's entry state before propagating it.
func (vm *VM) invokeClosure(cl *object.Closure, reserved value.Value, args []value.Value) (value.Value, error) {
	fn := cl.Fn
	nDefaults := len(cl.Defaults)
	required := fn.Arity - nDefaults

	argc := len(args)
	if argc < required {
		return value.Null, vm.Panic("%s expects %s, got %d", fn.Name, arityDescription(required, fn.Arity, fn.Variadic), argc)
	}
	if !fn.Variadic && argc > fn.Arity {
		return value.Null, vm.Panic("%s expects %s, got %d", fn.Name, arityDescription(required, fn.Arity, fn.Variadic), argc)
	}

	baseFrameDepth := len(vm.frames)
	base := vm.sp

	if fn.ReservesSelf {
		vm.push(reserved)
	}
	for i := 0; i < fn.Arity; i++ {
		switch {
		case i < argc:
			vm.push(args[i])
		default:
			vm.push(cl.Defaults[i-required])
		}
	}
	if fn.Variadic {
		rest := vm.allocVec(false)
		rest.Values = append([]value.Value(nil), args[fn.Arity:]...)
		vm.push(value.Obj(rest))
	}

	if err := vm.pushFrame(cl, base); err != nil {
		vm.sp = base
		return value.Null, err
	}

	result, err := vm.run(baseFrameDepth, base)
	if err != nil {
		return value.Null, err
	}
	return result, nil
}

// arityDescription renders the "N argument(s)" / "at least N" / "N to
// M" clause of an arity-mismatch panic, depending on whether the
// function is variadic or has trailing default parameters.
func arityDescription(required, arity int, variadic bool) string {
	switch {
	case variadic:
		return pluralArgs(required) + " or more"
	case required == arity:
		return pluralArgs(arity)
	default:
		return fmtRange(required, arity)
	}
}

func pluralArgs(n int) string {
	if n == 1 {
		return "1 argument"
	}
	return fmt.Sprintf("%d arguments", n)
}

func fmtRange(lo, hi int) string {
	return fmt.Sprintf("%d to %d arguments", lo, hi)
}

// dispatchCall implements CALL_VALUE and CALL_VALUE_0..9 (the unpacking
// form goes through dispatchCallWithUnpack): pop
// argc arguments and the callee beneath them, invoke it, and push the
// result.
func (vm *VM) dispatchCall(argc int) error {
	args := vm.popN(argc)
	callee := vm.pop()
	result, err := vm.CallValue(callee, args)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}
