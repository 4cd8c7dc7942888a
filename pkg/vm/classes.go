package vm

import (
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// builtinClassKey names the entry in vm.Builtins a receiver's native
// methods live under (spec.md §3: every primitive kind — str, vec,
// map, etc. — has a method table just like a user class, populated by
// builtins.go's registerBuiltins).
func builtinClassKey(v value.Value) string {
	if v.IsObj() {
		return v.ObjKind().String()
	}
	return v.TypeName()
}

// classOf returns the Class a receiver's methods resolve through: its
// own Class for an Instance, or the shared built-in class for every
// other kind of value.
func (vm *VM) classOf(receiver value.Value) *object.Class {
	if receiver.IsObjKind(value.ObjInstance) {
		return receiver.AsObj().(*object.Instance).Class
	}
	return vm.Builtins[builtinClassKey(receiver)]
}

// resolveMethod looks up name on receiver's class (pubOnly restricts
// the search to PubMethods, the rule external callers of a
// CALL_PUB_METHOD must respect).
func (vm *VM) resolveMethod(receiver value.Value, name string, pubOnly bool) (value.Value, error) {
	cls := vm.classOf(receiver)
	if cls == nil {
		return value.Null, vm.Panic("%s has no methods", receiver.TypeName())
	}
	method, ok := cls.LookupMethod(name, pubOnly)
	if !ok {
		return value.Null, vm.Panic("%s has no method %q", receiver.TypeName(), name)
	}
	return method, nil
}

// callMethodOpcode implements CALL_METHOD/CALL_PUB_METHOD (their
// _WITH_UNPACK variants go through callMethodOpcodeWithUnpack in
// step.go): pop argc args and the receiver,
// resolve name on the receiver's class, and invoke with the receiver
// reserved at slot 0.
func (vm *VM) callMethodOpcode(name string, argc int, pubOnly bool) error {
	args := vm.popN(argc)
	receiver := vm.pop()
	method, err := vm.resolveMethod(receiver, name, pubOnly)
	if err != nil {
		return err
	}
	result, err := vm.invokeBoundLike(method, receiver, args)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// callSuperMethodOpcode implements CALL_SUPER_METHOD: the bytecode only
// carries [self, args...] (no explicit superclass operand), so the
// class to search is derived from the currently executing closure's
// HomeClass — the class that method was itself installed into — rather
// than from self's own (possibly further-overridden) runtime class.
func (vm *VM) callSuperMethodOpcode(f *frame, name string, argc int) error {
	args := vm.popN(argc)
	self := vm.pop()
	home := f.closure.HomeClass
	if home == nil || home.Super == nil {
		return vm.Panic("super:%s called outside a subclass method", name)
	}
	method, ok := home.Super.LookupMethod(name, false)
	if !ok {
		return vm.Panic("%s's superclass has no method %q", home.Name, name)
	}
	result, err := vm.invokeBoundLike(method, self, args)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// opMakeClass implements MAKE_CLASS: push a fresh, empty class for the
// given name. INHERIT (if the class declaration has a superclass
// clause) and the DEFINE_* member opcodes that follow mutate it in
// place, per compileClassMember's contract.
func (vm *VM) opMakeClass(name string) {
	vm.push(value.Obj(vm.allocClass(name)))
}

// opInherit implements INHERIT: pop the superclass (pushed by the
// `: Super` clause), copy its method/field tables into the subclass
// already on the stack, and leave the subclass on top.
func (vm *VM) opInherit() error {
	super := vm.pop()
	if !super.IsObjKind(value.ObjClass) {
		return vm.Panic("cannot inherit from %s, it is not a class", super.TypeName())
	}
	sub := vm.peek(0)
	if !sub.IsObjKind(value.ObjClass) {
		return vm.Panic("INHERIT target is not a class")
	}
	sub.AsObj().(*object.Class).Inherit(super.AsObj().(*object.Class))
	return nil
}

// defineMethod pops the just-compiled closure and installs it on the
// class beneath it, stamping the closure's HomeClass so a future
// super:name() call inside its body knows whose superclass to search
// (spec.md §3; see Closure.HomeClass's doc in pkg/object/fn.go).
func (vm *VM) defineMethod(name string, public, static bool) error {
	method := vm.pop()
	classVal := vm.peek(0)
	if !classVal.IsObjKind(value.ObjClass) {
		return vm.Panic("cannot define method %q: not inside a class", name)
	}
	cls := classVal.AsObj().(*object.Class)
	if cl, ok := method.AsObj().(*object.Closure); ok {
		cl.HomeClass = cls
	}
	if static {
		cls.Static[name] = method
		return nil
	}
	cls.DefineMethod(name, method, public)
	return nil
}

func (vm *VM) defineField(name string, public, static bool) error {
	defaultValue := vm.pop()
	classVal := vm.peek(0)
	if !classVal.IsObjKind(value.ObjClass) {
		return vm.Panic("cannot define field %q: not inside a class", name)
	}
	cls := classVal.AsObj().(*object.Class)
	if static {
		cls.Static[name] = defaultValue
		return nil
	}
	cls.DefineField(name, defaultValue, public)
	return nil
}

// getField/setField implement GET_FIELD/GET_PUB_FIELD/SET_FIELD/
// SET_PUB_FIELD: direct instance-field access by compiled index lookup
// (spec.md §3), falling back to a class's Static table for `Class.name`
// access. When name isn't a field of an instance, getField yields the
// method of that name bound to the receiver; it does not call $get or
// $set.
func (vm *VM) getField(name string, pubOnly bool) error {
	receiver := vm.pop()
	switch obj := receiver.AsObj().(type) {
	case *object.Instance:
		index := obj.Class.AllFieldIndex
		if pubOnly {
			index = obj.Class.PubFieldIndex
		}
		if idx, ok := index[name]; ok {
			vm.push(obj.Fields[idx])
			return nil
		}
		if method, ok := obj.Class.LookupMethod(name, pubOnly); ok {
			vm.push(value.Obj(vm.allocBoundMethod(receiver, method)))
			return nil
		}
		return vm.Panic("%s has no field or method %q", obj.Class.Name, name)
	case *object.Class:
		if v, ok := obj.Static[name]; ok {
			vm.push(v)
			return nil
		}
		return vm.Panic("%s has no static member %q", obj.Name, name)
	default:
		return vm.Panic("%s has no field %q", receiver.TypeName(), name)
	}
}

func (vm *VM) setField(name string, pubOnly bool) error {
	val := vm.pop()
	receiver := vm.pop()
	switch obj := receiver.AsObj().(type) {
	case *object.Instance:
		index := obj.Class.AllFieldIndex
		if pubOnly {
			index = obj.Class.PubFieldIndex
		}
		idx, ok := index[name]
		if !ok {
			return vm.Panic("%s has no field %q", obj.Class.Name, name)
		}
		obj.Fields[idx] = val
		vm.push(val)
		return nil
	case *object.Class:
		if _, ok := obj.Static[name]; !ok {
			return vm.Panic("%s has no static member %q", obj.Name, name)
		}
		obj.Static[name] = val
		vm.push(val)
		return nil
	default:
		return vm.Panic("%s has no field %q", receiver.TypeName(), name)
	}
}

// getMethod/getSuperMethod implement GET_METHOD/GET_PUB_METHOD/
// GET_SUPER_METHOD: produce a BoundMethod value rather than calling
// immediately, for first-class method references (`let f = obj.name`).
func (vm *VM) getMethod(name string, pubOnly bool) error {
	receiver := vm.pop()
	method, err := vm.resolveMethod(receiver, name, pubOnly)
	if err != nil {
		return err
	}
	vm.push(value.Obj(vm.allocBoundMethod(receiver, method)))
	return nil
}

func (vm *VM) getSuperMethod(f *frame, name string) error {
	self := vm.pop()
	home := f.closure.HomeClass
	if home == nil || home.Super == nil {
		return vm.Panic("super.%s referenced outside a subclass method", name)
	}
	method, ok := home.Super.LookupMethod(name, false)
	if !ok {
		return vm.Panic("%s's superclass has no method %q", home.Name, name)
	}
	vm.push(value.Obj(vm.allocBoundMethod(self, method)))
	return nil
}
