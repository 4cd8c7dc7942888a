package vm

import (
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// getIterator implements GET_ITERATOR: convert the value on top of the
// stack into the *object.Iter that drives a `for x in expr` loop
// (spec.md §3's iteration protocol), dispatching on the source's kind,
// or delegating to a user $iter method for class instances.
func (vm *VM) getIterator() error {
	src := vm.pop()
	if !src.IsObj() {
		return vm.Panic("%s is not iterable", src.TypeName())
	}
	switch obj := src.AsObj().(type) {
	case *object.Vec:
		vm.push(value.Obj(vm.allocIter(object.IterVec, src)))
	case *object.Tup:
		vm.push(value.Obj(vm.allocIter(object.IterTup, src)))
	case *object.Str:
		vm.push(value.Obj(vm.allocIter(object.IterStrRunes, src)))
	case *object.Map:
		vm.push(value.Obj(vm.allocIter(object.IterMapEntries, src)))
	case *object.Queue:
		vm.push(value.Obj(vm.allocIter(object.IterQueue, src)))
	case *object.Iter:
		vm.push(src)
	case *object.Instance:
		method, ok := obj.Class.LookupMethod("$iter", false)
		if !ok {
			return vm.Panic("%s is not iterable", obj.Class.Name)
		}
		result, err := vm.invokeBoundLike(method, src, nil)
		if err != nil {
			return err
		}
		return vm.wrapUserIterator(result)
	default:
		return vm.Panic("%s is not iterable", src.TypeName())
	}
	return nil
}

// wrapUserIterator accepts whatever a user $iter method returned: an
// Iter already, or any other value treated as a generic one-shot
// source whose $next method drives GET_NEXT_FROM_ITERATOR.
func (vm *VM) wrapUserIterator(v value.Value) error {
	if v.IsObjKind(value.ObjIter) {
		vm.push(v)
		return nil
	}
	vm.push(value.Obj(vm.allocIter(object.IterGeneric, v)))
	return nil
}

// getNextFromIterator implements GET_NEXT_FROM_ITERATOR: pop the Iter
// the caller just reloaded via GET_LOCAL and push exactly one value —
// the next item on success, or an *object.Err sentinel once exhausted
// — matching compileForInStatement's JUMP_IF_ERR/JUMP_IF_NOT_ERR
// convention (spec.md §4.8): those opcodes test the top of stack
// without popping it, so the non-exhausted path can turn straight
// around and bind that same value as the loop variable.
func (vm *VM) getNextFromIterator() error {
	top := vm.pop()
	it, ok := top.AsObj().(*object.Iter)
	if !ok {
		return vm.Panic("GET_NEXT_FROM_ITERATOR on a non-iterator value")
	}
	val, more, err := vm.advanceIter(it)
	if err != nil {
		return err
	}
	if !more {
		vm.push(value.Obj(vm.allocErr("stop iteration")))
		return nil
	}
	vm.push(val)
	return nil
}

func (vm *VM) advanceIter(it *object.Iter) (value.Value, bool, error) {
	if it.Exhausted {
		return value.Null, false, nil
	}
	switch it.IKind {
	case object.IterVec:
		v := it.Source.AsObj().(*object.Vec)
		if it.Cursor >= len(v.Values) {
			it.Exhausted = true
			return value.Null, false, nil
		}
		val := v.Values[it.Cursor]
		it.Cursor++
		return val, true, nil
	case object.IterTup:
		t := it.Source.AsObj().(*object.Tup)
		if it.Cursor >= len(t.Values) {
			it.Exhausted = true
			return value.Null, false, nil
		}
		val := t.Values[it.Cursor]
		it.Cursor++
		return val, true, nil
	case object.IterStrRunes:
		runes := []rune(it.Source.AsObj().(*object.Str).String())
		if it.Cursor >= len(runes) {
			it.Exhausted = true
			return value.Null, false, nil
		}
		r := runes[it.Cursor]
		it.Cursor++
		return value.Rune(r), true, nil
	case object.IterStrBytes:
		bytes := it.Source.AsObj().(*object.Str).Bytes
		if it.Cursor >= len(bytes) {
			it.Exhausted = true
			return value.Null, false, nil
		}
		b := bytes[it.Cursor]
		it.Cursor++
		return value.I64(int64(b)), true, nil
	case object.IterMapEntries, object.IterMapKeys, object.IterMapValues:
		m := it.Source.AsObj().(*object.Map)
		for it.Cursor < len(m.Entries) {
			entry := m.Entries[it.Cursor]
			it.Cursor++
			if entry.Tombstone {
				continue
			}
			switch it.IKind {
			case object.IterMapKeys:
				return entry.Key, true, nil
			case object.IterMapValues:
				return entry.Val, true, nil
			default:
				pair := vm.allocTup([]value.Value{entry.Key, entry.Val})
				return value.Obj(pair), true, nil
			}
		}
		it.Exhausted = true
		return value.Null, false, nil
	case object.IterQueue:
		// A queue iterator consumes via repeated Dequeue, mirroring
		// `for x in queue` draining it (spec.md §3: Queue has no stable
		// index to iterate non-destructively).
		q := it.Source.AsObj().(*object.Queue)
		v, ok := q.Dequeue()
		if !ok {
			it.Exhausted = true
			return value.Null, false, nil
		}
		return v, true, nil
	case object.IterRange:
		if it.RangeStep > 0 && it.RangeNext >= it.RangeStop ||
			it.RangeStep < 0 && it.RangeNext <= it.RangeStop ||
			it.RangeStep == 0 {
			it.Exhausted = true
			return value.Null, false, nil
		}
		v := it.RangeNext
		it.RangeNext += it.RangeStep
		return value.I64(v), true, nil
	case object.IterEnumerate:
		inner := it.Source.AsObj().(*object.Iter)
		val, more, err := vm.advanceIter(inner)
		if err != nil || !more {
			it.Exhausted = !more
			return value.Null, more, err
		}
		pair := vm.allocTup([]value.Value{value.I64(int64(it.Cursor)), val})
		it.Cursor++
		return value.Obj(pair), true, nil
	case object.IterFuncMap:
		inner := it.Source.AsObj().(*object.Iter)
		val, more, err := vm.advanceIter(inner)
		if err != nil || !more {
			it.Exhausted = !more
			return value.Null, more, err
		}
		mapped, err := vm.CallValue(it.Callback, []value.Value{val})
		if err != nil {
			return value.Null, false, err
		}
		return mapped, true, nil
	case object.IterFuncFilter:
		inner := it.Source.AsObj().(*object.Iter)
		for {
			val, more, err := vm.advanceIter(inner)
			if err != nil || !more {
				it.Exhausted = !more
				return value.Null, more, err
			}
			keep, err := vm.CallValue(it.Callback, []value.Value{val})
			if err != nil {
				return value.Null, false, err
			}
			if keep.Truthy() {
				return val, true, nil
			}
		}
	case object.IterGeneric:
		return vm.advanceGenericIter(it)
	default:
		return value.Null, false, vm.Panic("unsupported iterator kind")
	}
}

// advanceGenericIter drives a user-defined iterator object (whatever a
// $iter method returned that wasn't already an Iter) through its own
// $next method, per spec.md §4.8's `$next` protocol: exhaustion is
// signaled by returning an *object.Err, exactly like the native
// iterators above (getNextFromIterator's own "stop iteration" sentinel)
// rather than any tuple convention.
func (vm *VM) advanceGenericIter(it *object.Iter) (value.Value, bool, error) {
	inst, ok := it.Source.AsObj().(*object.Instance)
	if !ok {
		it.Exhausted = true
		return value.Null, false, nil
	}
	method, ok := inst.Class.LookupMethod("$next", false)
	if !ok {
		return value.Null, false, vm.Panic("%s has no $next method", inst.Class.Name)
	}
	result, err := vm.invokeBoundLike(method, it.Source, nil)
	if err != nil {
		return value.Null, false, err
	}
	if _, ok := result.AsObj().(*object.Err); ok {
		it.Exhausted = true
		return value.Null, false, nil
	}
	return result, true, nil
}
