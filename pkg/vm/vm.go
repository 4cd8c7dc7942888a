// Package vm implements Pyro's bytecode interpreter (spec.md §4.8): a
// stack machine that executes the instruction stream pkg/compiler
// produces, dispatching every opcode in pkg/bytecode, maintaining the
// call-frame stack, the open-upvalue list, the with-block stack and the
// try/panic machinery, and routing every heap allocation through
// pkg/gc's Heap so the collector can reclaim what the program no longer
// reaches.
package vm

import (
	"fmt"

	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/gc"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

const initialStackSize = 256
const maxFrames = 512

// frame is one call's activation record: the closure being executed,
// its instruction pointer, and the stack index its locals begin at
// (spec.md §4.8's "base pointer").
type frame struct {
	closure *object.Closure
	ip      int
	base    int
}

// withEntry records one active `with` block: the resource value (so
// END_WITH can invoke its $end_with) and the frame depth it was opened
// at, so break/continue/return can unwind every pending with-block that
// lexically encloses the jump (spec.md §4.8).
type withEntry struct {
	resource value.Value
	frameIdx int
}

// VM is Pyro's single-threaded bytecode interpreter. One VM corresponds
// to one running program: it owns the value stack, the frame stack, the
// live-object heap, the global module, the built-in class table, the
// resolved-module cache, and the stack of open with-blocks.
type VM struct {
	stack []value.Value
	sp    int

	frames []frame

	openUpvalues *object.Upvalue // linked via NextOpen, sorted by descending StackIndex

	withStack []withEntry

	Heap *gc.Heap
	Pool *object.Pool

	Globals *object.Module

	// Superglobals holds host-registered names visible from every module
	// without import (spec.md's glossary entry for "Superglobal", and the
	// define_superglobal/define_superglobal_fn host API of §6) — the
	// $range/$map/$is_err-style free functions pkg/vm/builtins.go
	// registers. OpGetGlobal falls back to it once a module's own
	// members miss; it is never a SET_GLOBAL target.
	Superglobals *object.Module

	Builtins map[string]*object.Class

	moduleCache map[string]*object.Module
	importRoots []string

	Stdin  *object.File
	Stdout *object.File
	Stderr *object.File
}

// New builds a VM ready to run compiled code. importRoots is the
// ordered list of filesystem directories `import` searches (spec.md
// §4.9). The resolved-module cache is a plain map that never evicts: a
// module must run its top-level statements exactly once for the life of
// the VM (spec.md §4.9's idempotent re-import), so there is no size to
// bound it by.
func New(pool *object.Pool, heap *gc.Heap, importRoots []string) *VM {
	vm := &VM{
		stack:        make([]value.Value, initialStackSize),
		Heap:         heap,
		Pool:         pool,
		Globals:      object.NewModule("$main"),
		Superglobals: object.NewModule("$superglobals"),
		Builtins:     make(map[string]*object.Class),
		moduleCache:  make(map[string]*object.Module),
		importRoots:  importRoots,
	}
	registerBuiltins(vm)
	return vm
}

// --- stack primitives ---

func (vm *VM) push(v value.Value) {
	if vm.sp == len(vm.stack) {
		vm.stack = append(vm.stack, v)
	} else {
		vm.stack[vm.sp] = v
	}
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = value.Null
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) popN(n int) []value.Value {
	out := make([]value.Value, n)
	copy(out, vm.stack[vm.sp-n:vm.sp])
	for i := vm.sp - n; i < vm.sp; i++ {
		vm.stack[i] = value.Null
	}
	vm.sp -= n
	return out
}

// currentFrame returns a pointer into the frames slice's backing array.
// Only pushFrame appends to vm.frames. It runs inside a step when that
// step makes a call; no step reads its *frame again after such a call
// returns, and run() fetches the frame afresh on every iteration, so a
// reallocation of the backing array is never observed through a stale
// pointer.
func (vm *VM) currentFrame() *frame { return &vm.frames[len(vm.frames)-1] }

func (vm *VM) pushFrame(cl *object.Closure, base int) error {
	if len(vm.frames) >= maxFrames {
		return vm.Panic("stack overflow")
	}
	vm.frames = append(vm.frames, frame{closure: cl, base: base})
	return nil
}

// Interpret wraps fn in a top-level Closure bound to vm.Globals and runs
// it to completion, returning its final value. This is the entry point
// cmd/pyro uses for both script execution and each REPL line.
func (vm *VM) Interpret(fn *object.Fn) (value.Value, error) {
	cl := vm.allocClosure(fn, vm.Globals)
	return vm.invokeClosure(cl, value.Obj(cl), nil)
}

// run executes bytecode until the frame stack unwinds back to
// baseFrameDepth (the depth it had before the call that invoked run
// pushed its frame) via RETURN, or an error/panic propagates out of it.
// On error, run closes, innermost first, the with-blocks its own frame
// still has open (a panic raised by one of their $end_with methods is
// dropped) and restores the frame stack and stack pointer to exactly
// that pre-call state before returning, so a try-expression (which
// calls back into CallValue) or an enclosing call can continue from a
// consistent VM state.
func (vm *VM) run(baseFrameDepth, base int) (value.Value, error) {
	for {
		f := vm.currentFrame()
		code := f.closure.Fn.Code
		if f.ip >= len(code) {
			return value.Null, vm.Panic("fell off the end of %s's bytecode", f.closure.Fn.Name)
		}
		op := bytecode.Opcode(code[f.ip])
		f.ip++

		switch {
		case op >= bytecode.OpLoadI64_0 && op <= bytecode.OpLoadI64_9:
			vm.push(value.I64(int64(op - bytecode.OpLoadI64_0)))
			continue
		case op >= bytecode.OpLoadConstant_0 && op <= bytecode.OpLoadConstant_9:
			vm.push(f.closure.Fn.Constants[int(op-bytecode.OpLoadConstant_0)])
			continue
		case op >= bytecode.OpGetLocal_0 && op <= bytecode.OpGetLocal_9:
			vm.push(vm.stack[f.base+int(op-bytecode.OpGetLocal_0)])
			continue
		case op >= bytecode.OpSetLocal_0 && op <= bytecode.OpSetLocal_9:
			vm.stack[f.base+int(op-bytecode.OpSetLocal_0)] = vm.peek(0)
			continue
		case op >= bytecode.OpCallValue_0 && op <= bytecode.OpCallValue_9:
			if err := vm.dispatchCall(int(op - bytecode.OpCallValue_0)); err != nil {
				vm.frames = vm.frames[:baseFrameDepth]
				_ = vm.unwindWithTo(baseFrameDepth + 1)
				vm.sp = base
				return value.Null, err
			}
			continue
		}

		done, result, err := vm.step(f, op, baseFrameDepth)
		if err != nil {
			vm.frames = vm.frames[:baseFrameDepth]
			_ = vm.unwindWithTo(baseFrameDepth + 1)
			vm.sp = base
			return value.Null, err
		}
		if done {
			return result, nil
		}
	}
}

// fetchU16 reads the two-byte big-endian operand at the frame's current
// ip and advances past it.
func (vm *VM) fetchU16(f *frame) uint16 {
	code := f.closure.Fn.Code
	v := uint16(code[f.ip])<<8 | uint16(code[f.ip+1])
	f.ip += 2
	return v
}

func (vm *VM) fetchByte(f *frame) byte {
	b := f.closure.Fn.Code[f.ip]
	f.ip++
	return b
}

// Panic builds a PanicError carrying the current call stack for
// diagnostics (spec.md §9's single-panic rule: only one panic may be in
// flight at a time; the OpTry handler in step.go catches it).
func (vm *VM) Panic(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return &PanicError{Message: msg, Stack: vm.stackTrace()}
}

func (vm *VM) stackTrace() []string {
	out := make([]string, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		line := f.closure.Fn.Lines.LineFor(f.ip)
		out = append(out, fmt.Sprintf("  at %s (%s:%d)", f.closure.Fn.Name, f.closure.Fn.SourceName, line))
	}
	return out
}

// NewStr interns s through the shared pool, routing the allocation
// through the heap so it is tracked for collection. It implements the
// narrow object.NativeVM surface the native methods in builtins.go call back
// through.
func (vm *VM) NewStr(s string) *object.Str {
	return vm.allocStr(s)
}
