package vm

import "github.com/pyro-lang/pyro/pkg/object"

// captureUpvalue finds or creates the open upvalue for stack slot
// index, threading vm.openUpvalues as a singly-linked list sorted by
// descending StackIndex so MAKE_CLOSURE's upvalue capture and
// closeUpvalues' teardown can both walk it in one pass (spec.md §4.8).
func (vm *VM) captureUpvalue(index int) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.StackIndex > index {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.StackIndex == index {
		return cur
	}
	fresh := vm.allocOpenUpvalue(index)
	fresh.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = fresh
	} else {
		prev.NextOpen = fresh
	}
	return fresh
}

// closeUpvalues closes every open upvalue at or above stack index
// from, copying each one's current stack value into its own Closed
// field so it survives the stack slot being reused or shrunk — done on
// CLOSE_UPVALUE and whenever a frame returns (spec.md §4.8).
func (vm *VM) closeUpvalues(from int) {
	for vm.openUpvalues != nil && vm.openUpvalues.StackIndex >= from {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.StackIndex]
		uv.Open = false
		vm.openUpvalues = uv.NextOpen
		uv.NextOpen = nil
	}
}
