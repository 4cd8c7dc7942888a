package vm

import (
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// startWith implements START_WITH: push the already-evaluated resource
// expression's value onto vm.withStack so END_WITH (or an unwinding
// break/continue/return) knows to invoke its $end_with, recording the
// frame depth it was opened at per spec.md §4.8's with-block protocol.
func (vm *VM) startWith() {
	resource := vm.peek(0)
	vm.withStack = append(vm.withStack, withEntry{resource: resource, frameIdx: len(vm.frames)})
}

// endWith implements END_WITH: pop the innermost with-entry and invoke
// its resource's $end_with method, if it declares one (resources that
// don't are simply let go, same as falling out of scope).
func (vm *VM) endWith() error {
	if len(vm.withStack) == 0 {
		return vm.Panic("END_WITH with no active with-block")
	}
	entry := vm.withStack[len(vm.withStack)-1]
	vm.withStack = vm.withStack[:len(vm.withStack)-1]
	return vm.invokeEndWith(entry.resource)
}

func (vm *VM) invokeEndWith(resource value.Value) error {
	inst, ok := resource.AsObj().(*object.Instance)
	if !ok {
		return nil
	}
	method, ok := inst.Class.LookupMethod("$end_with", false)
	if !ok {
		return nil
	}
	_, err := vm.invokeBoundLike(method, resource, nil)
	return err
}

// unwindWithTo closes every with-block opened at or after the current
// frame depth (a break/continue/return jumping out of their lexical
// scope must still run their $end_with, spec.md §4.8), down to the
// frame depth toBreakFrame.
func (vm *VM) unwindWithTo(toBreakFrame int) error {
	for len(vm.withStack) > 0 && vm.withStack[len(vm.withStack)-1].frameIdx >= toBreakFrame {
		entry := vm.withStack[len(vm.withStack)-1]
		vm.withStack = vm.withStack[:len(vm.withStack)-1]
		if err := vm.invokeEndWith(entry.resource); err != nil {
			return err
		}
	}
	return nil
}
