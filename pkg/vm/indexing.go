package vm

import (
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// getIndex implements GET_INDEX across every built-in indexable kind
// plus the $get protocol-method fallback for instances (spec.md §4.7).
func (vm *VM) getIndex() error {
	index := vm.pop()
	receiver := vm.pop()
	if !receiver.IsObj() {
		return vm.Panic("%s is not indexable", receiver.TypeName())
	}
	switch obj := receiver.AsObj().(type) {
	case *object.Vec:
		i, err := requireInt(vm, index)
		if err != nil {
			return err
		}
		v, ok := obj.Get(i)
		if !ok {
			return vm.Panic("index %d out of range (length %d)", i, obj.Len())
		}
		vm.push(v)
		return nil
	case *object.Tup:
		i, err := requireInt(vm, index)
		if err != nil {
			return err
		}
		v, ok := obj.Get(i)
		if !ok {
			return vm.Panic("index %d out of range (length %d)", i, len(obj.Values))
		}
		vm.push(v)
		return nil
	case *object.Buf:
		i, err := requireInt(vm, index)
		if err != nil {
			return err
		}
		b, ok := obj.Get(i)
		if !ok {
			return vm.Panic("index %d out of range (length %d)", i, len(obj.Bytes))
		}
		vm.push(value.I64(int64(b)))
		return nil
	case *object.Map:
		v, ok := obj.Get(index)
		if !ok {
			return vm.Panic("key not found in map")
		}
		vm.push(v)
		return nil
	case *object.Str:
		i, err := requireInt(vm, index)
		if err != nil {
			return err
		}
		runes := []rune(obj.String())
		idx, ok := resolveRuneIndex(i, len(runes))
		if !ok {
			return vm.Panic("index %d out of range (length %d)", i, len(runes))
		}
		vm.push(value.Rune(runes[idx]))
		return nil
	case *object.Instance:
		method, ok := obj.Class.LookupMethod("$get", false)
		if !ok {
			return vm.Panic("%s does not support indexing", obj.Class.Name)
		}
		result, err := vm.invokeBoundLike(method, receiver, []value.Value{index})
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	default:
		return vm.Panic("%s is not indexable", receiver.TypeName())
	}
}

// setIndex implements SET_INDEX, the assignment-target counterpart of
// getIndex, including the $set protocol-method fallback.
func (vm *VM) setIndex() error {
	val := vm.pop()
	index := vm.pop()
	receiver := vm.pop()
	if !receiver.IsObj() {
		return vm.Panic("%s is not indexable", receiver.TypeName())
	}
	switch obj := receiver.AsObj().(type) {
	case *object.Vec:
		i, err := requireInt(vm, index)
		if err != nil {
			return err
		}
		if !obj.Set(i, val) {
			return vm.Panic("index %d out of range (length %d)", i, obj.Len())
		}
	case *object.Buf:
		i, err := requireInt(vm, index)
		if err != nil {
			return err
		}
		bv, err := requireByte(vm, val)
		if err != nil {
			return err
		}
		if !obj.Set(i, bv) {
			return vm.Panic("index %d out of range (length %d)", i, len(obj.Bytes))
		}
	case *object.Map:
		obj.Set(index, val)
	case *object.Instance:
		method, ok := obj.Class.LookupMethod("$set", false)
		if !ok {
			return vm.Panic("%s does not support index assignment", obj.Class.Name)
		}
		if _, err := vm.invokeBoundLike(method, receiver, []value.Value{index, val}); err != nil {
			return err
		}
	default:
		return vm.Panic("%s does not support index assignment", receiver.TypeName())
	}
	vm.push(val)
	return nil
}

func requireInt(vm *VM, v value.Value) (int64, error) {
	if v.IsI64() {
		return v.AsI64(), nil
	}
	if v.IsRune() {
		return int64(v.AsRune()), nil
	}
	return 0, vm.Panic("index must be an integer, got %s", v.TypeName())
}

func requireByte(vm *VM, v value.Value) (byte, error) {
	i, err := requireInt(vm, v)
	if err != nil {
		return 0, err
	}
	if i < 0 || i > 255 {
		return 0, vm.Panic("byte value %d out of range", i)
	}
	return byte(i), nil
}

func resolveRuneIndex(i int64, length int) (int, bool) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, false
	}
	return int(i), true
}
