package vm

import (
	"strings"

	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// step executes a single non-fast-path opcode (run's switch in vm.go
// already handles the suffixed small-index forms). It returns done=true
// once the current run() invocation's frame has returned, in which case
// result is the value to hand back to invokeClosure.
//
// baseFrameDepth is the frame depth run() was entered at; since every
// Pyro call recurses into its own run() (spec.md §4.8's call
// convention), this invocation only ever sees exactly one frame — the
// one at len(vm.frames)-1 — for its whole lifetime, so RETURN/
// RETURN_TUPLE always terminate this call rather than resuming an outer
// loop.
func (vm *VM) step(f *frame, op bytecode.Opcode, baseFrameDepth int) (bool, value.Value, error) {
	switch op {

	// --- Stack ---
	case bytecode.OpPop:
		vm.pop()
	case bytecode.OpDup:
		vm.push(vm.peek(0))
	case bytecode.OpDup2:
		a, b := vm.peek(1), vm.peek(0)
		vm.push(a)
		vm.push(b)
	case bytecode.OpPopEchoInRepl:
		// A lone trailing expression statement at top level in REPL mode
		// (compiler.Compile's replMode rewrite) prints its value the way
		// ECHO does, rather than silently discarding it like an ordinary
		// statement-expression POP would.
		vm.opEcho([]value.Value{vm.pop()})

	// --- Load ---
	case bytecode.OpLoadNull:
		vm.push(value.Null)
	case bytecode.OpLoadTrue:
		vm.push(value.Bool(true))
	case bytecode.OpLoadFalse:
		vm.push(value.Bool(false))
	case bytecode.OpLoadConstant:
		idx := vm.fetchU16(f)
		vm.push(f.closure.Fn.Constants[idx])

	// --- Local / Upvalue / Global ---
	case bytecode.OpGetLocal:
		idx := vm.fetchByte(f)
		vm.push(vm.stack[f.base+int(idx)])
	case bytecode.OpSetLocal:
		idx := vm.fetchByte(f)
		vm.stack[f.base+int(idx)] = vm.peek(0)
	case bytecode.OpGetUpvalue:
		idx := vm.fetchU16(f)
		uv := f.closure.Upvalues[idx]
		if uv.Open {
			vm.push(vm.stack[uv.StackIndex])
		} else {
			vm.push(uv.Closed)
		}
	case bytecode.OpSetUpvalue:
		idx := vm.fetchU16(f)
		uv := f.closure.Upvalues[idx]
		if uv.Open {
			vm.stack[uv.StackIndex] = vm.peek(0)
		} else {
			uv.Closed = vm.peek(0)
		}
	case bytecode.OpCloseUpvalue:
		vm.closeUpvalues(vm.sp - 1)
		vm.pop()
	case bytecode.OpGetGlobal:
		idx := vm.fetchU16(f)
		name := mustStr(f.closure.Fn.Constants[idx])
		v, ok := f.closure.Module.Get(name, false)
		if !ok {
			v, ok = vm.Superglobals.Get(name, false)
		}
		if !ok {
			return false, value.Null, vm.Panic("undefined global %q", name)
		}
		vm.push(v)
	case bytecode.OpSetGlobal:
		idx := vm.fetchU16(f)
		name := mustStr(f.closure.Fn.Constants[idx])
		if !f.closure.Module.Set(name, vm.peek(0)) {
			return false, value.Null, vm.Panic("undefined global %q", name)
		}
	case bytecode.OpDefinePubGlobal:
		idx := vm.fetchU16(f)
		name := mustStr(f.closure.Fn.Constants[idx])
		f.closure.Module.Define(name, vm.pop(), true)
	case bytecode.OpDefinePriGlobal:
		idx := vm.fetchU16(f)
		name := mustStr(f.closure.Fn.Constants[idx])
		f.closure.Module.Define(name, vm.pop(), false)
	case bytecode.OpDefinePubGlobals:
		count := int(vm.fetchByte(f))
		vm.defineGlobalsN(f, count, true)
	case bytecode.OpDefinePriGlobals:
		count := int(vm.fetchByte(f))
		vm.defineGlobalsN(f, count, false)

	// --- Arithmetic / Logic ---
	case bytecode.OpAdd:
		if err := vm.arith("add", vm.numAdd); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpSubtract:
		if err := vm.arith("sub", vm.numSub); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpMultiply:
		if err := vm.arith("mul", vm.numMul); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpDivide:
		if err := vm.arith("div", vm.numDiv); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpFloorDivide:
		if err := vm.arith("floordiv", vm.numFloorDiv); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpModulo:
		if err := vm.arith("mod", vm.numMod); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpPower:
		if err := vm.arith("pow", numPow); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpI64Add:
		b, a := vm.pop(), vm.pop()
		vm.push(value.I64(a.AsI64() + b.AsI64()))
	case bytecode.OpNegate:
		v := vm.pop()
		if !v.IsNumeric() {
			return false, value.Null, vm.Panic("cannot negate %s", v.TypeName())
		}
		if v.IsI64() {
			vm.push(value.I64(-v.AsI64()))
		} else {
			vm.push(value.F64(-v.AsF64Numeric()))
		}
	case bytecode.OpNot:
		vm.push(value.Bool(!vm.pop().Truthy()))
	case bytecode.OpBitwiseNot:
		v := vm.pop()
		if !v.IsI64() {
			return false, value.Null, vm.Panic("bitwise '~' requires an i64, got %s", v.TypeName())
		}
		vm.push(value.I64(^v.AsI64()))
	case bytecode.OpBitwiseAnd:
		b, a, err := vm.popTwoInts()
		if err != nil {
			return false, value.Null, err
		}
		vm.push(value.I64(a & b))
	case bytecode.OpBitwiseOr:
		b, a, err := vm.popTwoInts()
		if err != nil {
			return false, value.Null, err
		}
		vm.push(value.I64(a | b))
	case bytecode.OpBitwiseXor:
		b, a, err := vm.popTwoInts()
		if err != nil {
			return false, value.Null, err
		}
		vm.push(value.I64(a ^ b))
	case bytecode.OpShiftLeft:
		b, a, err := vm.popTwoInts()
		if err != nil {
			return false, value.Null, err
		}
		vm.push(value.I64(a << uint(b)))
	case bytecode.OpShiftRight:
		b, a, err := vm.popTwoInts()
		if err != nil {
			return false, value.Null, err
		}
		vm.push(value.I64(a >> uint(b)))

	// --- Comparison ---
	case bytecode.OpLess:
		if err := vm.compare("lt", func(o value.Ordering) bool { return o == value.OrderLess }); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpLessEqual:
		if err := vm.compare("le", func(o value.Ordering) bool { return o == value.OrderLess || o == value.OrderEqual }); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGreater:
		if err := vm.compare("gt", func(o value.Ordering) bool { return o == value.OrderGreater }); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGreaterEqual:
		if err := vm.compare("ge", func(o value.Ordering) bool { return o == value.OrderGreater || o == value.OrderEqual }); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpEqualEqual:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(a.Equals(b)))
	case bytecode.OpBangEqual:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(!a.Equals(b)))
	case bytecode.OpBinaryIn:
		b, a := vm.pop(), vm.pop()
		result, err := vm.binaryIn(a, b)
		if err != nil {
			return false, value.Null, err
		}
		vm.push(value.Bool(result))

	// --- Control flow ---
	case bytecode.OpJump:
		offset := vm.fetchU16(f)
		f.ip += int(offset)
	case bytecode.OpJumpBack:
		offset := vm.fetchU16(f)
		f.ip -= int(offset)
	case bytecode.OpJumpIfTrue:
		offset := vm.fetchU16(f)
		if vm.peek(0).Truthy() {
			f.ip += int(offset)
		}
	case bytecode.OpJumpIfFalse:
		offset := vm.fetchU16(f)
		if !vm.peek(0).Truthy() {
			f.ip += int(offset)
		}
	case bytecode.OpJumpIfErr:
		offset := vm.fetchU16(f)
		if vm.peek(0).IsObjKind(value.ObjErr) {
			f.ip += int(offset)
		}
	case bytecode.OpJumpIfNotErr:
		offset := vm.fetchU16(f)
		if !vm.peek(0).IsObjKind(value.ObjErr) {
			f.ip += int(offset)
		}
	case bytecode.OpJumpIfNotNull:
		offset := vm.fetchU16(f)
		if !vm.peek(0).IsNull() {
			f.ip += int(offset)
		}
	case bytecode.OpPopJumpIfFalse:
		offset := vm.fetchU16(f)
		if !vm.pop().Truthy() {
			f.ip += int(offset)
		}
	case bytecode.OpBreak:
		offset := vm.fetchU16(f)
		f.ip += int(offset)

	// --- Calls ---
	case bytecode.OpCallValue:
		argc := int(vm.fetchByte(f))
		if err := vm.dispatchCall(argc); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpCallValueWithUnpack:
		argc := int(vm.fetchU16(f))
		if err := vm.dispatchCallWithUnpack(argc); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpCallMethod:
		name, argc := vm.fetchNameArg(f)
		if err := vm.callMethodOpcode(name, argc, false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpCallMethodWithUnpack:
		name, argc := vm.fetchNameArg(f)
		if err := vm.callMethodOpcodeWithUnpack(name, argc, false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpCallPubMethod:
		name, argc := vm.fetchNameArg(f)
		if err := vm.callMethodOpcode(name, argc, true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpCallPubMethodWithUnpack:
		name, argc := vm.fetchNameArg(f)
		if err := vm.callMethodOpcodeWithUnpack(name, argc, true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpCallSuperMethod:
		name, argc := vm.fetchNameArg(f)
		if err := vm.callSuperMethodOpcode(f, name, argc); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpCallSuperMethodWithUnpack:
		name, argc := vm.fetchNameArg(f)
		if err := vm.callSuperMethodOpcodeWithUnpack(f, name, argc); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpReturn:
		result := vm.pop()
		if err := vm.unwindWithTo(len(vm.frames)); err != nil {
			return false, value.Null, err
		}
		return vm.finishFrame(baseFrameDepth, result)
	case bytecode.OpReturnTuple:
		count := int(vm.fetchByte(f))
		vals := vm.popN(count)
		if err := vm.unwindWithTo(len(vm.frames)); err != nil {
			return false, value.Null, err
		}
		return vm.finishFrame(baseFrameDepth, value.Obj(vm.allocTup(vals)))

	// --- Classes ---
	case bytecode.OpMakeClass:
		idx := vm.fetchU16(f)
		name := mustStr(f.closure.Fn.Constants[idx])
		vm.opMakeClass(name)
	case bytecode.OpInherit:
		if err := vm.opInherit(); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpDefinePubMethod:
		idx := vm.fetchU16(f)
		if err := vm.defineMethod(mustStr(f.closure.Fn.Constants[idx]), true, false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpDefinePriMethod:
		idx := vm.fetchU16(f)
		if err := vm.defineMethod(mustStr(f.closure.Fn.Constants[idx]), false, false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpDefineStaticMethod:
		idx := vm.fetchU16(f)
		if err := vm.defineMethod(mustStr(f.closure.Fn.Constants[idx]), false, true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpDefinePubField:
		idx := vm.fetchU16(f)
		if err := vm.defineField(mustStr(f.closure.Fn.Constants[idx]), true, false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpDefinePriField:
		idx := vm.fetchU16(f)
		if err := vm.defineField(mustStr(f.closure.Fn.Constants[idx]), false, false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpDefineStaticField:
		idx := vm.fetchU16(f)
		if err := vm.defineField(mustStr(f.closure.Fn.Constants[idx]), false, true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetField:
		idx := vm.fetchU16(f)
		if err := vm.getField(mustStr(f.closure.Fn.Constants[idx]), false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetPubField:
		idx := vm.fetchU16(f)
		if err := vm.getField(mustStr(f.closure.Fn.Constants[idx]), true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpSetField:
		idx := vm.fetchU16(f)
		if err := vm.setField(mustStr(f.closure.Fn.Constants[idx]), false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpSetPubField:
		idx := vm.fetchU16(f)
		if err := vm.setField(mustStr(f.closure.Fn.Constants[idx]), true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetMethod:
		idx := vm.fetchU16(f)
		if err := vm.getMethod(mustStr(f.closure.Fn.Constants[idx]), false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetPubMethod:
		idx := vm.fetchU16(f)
		if err := vm.getMethod(mustStr(f.closure.Fn.Constants[idx]), true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetSuperMethod:
		idx := vm.fetchU16(f)
		if err := vm.getSuperMethod(f, mustStr(f.closure.Fn.Constants[idx])); err != nil {
			return false, value.Null, err
		}

	// --- Modules / Import ---
	case bytecode.OpImportModule:
		idx := vm.fetchU16(f)
		path := mustStr(f.closure.Fn.Constants[idx])
		if err := vm.importModule(path); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpImportNamedMembers:
		pathIdx := vm.fetchU16(f)
		count := vm.fetchU16(f)
		path := mustStr(f.closure.Fn.Constants[pathIdx])
		names := make([]string, count)
		for i := range names {
			names[i] = mustStr(f.closure.Fn.Constants[int(pathIdx)+1+i])
		}
		if err := vm.importNamedMembers(path, names); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetMember:
		idx := vm.fetchU16(f)
		name := mustStr(f.closure.Fn.Constants[idx])
		if err := vm.getMember(name); err != nil {
			return false, value.Null, err
		}

	// --- Data construction ---
	case bytecode.OpMakeMap:
		count := int(vm.fetchU16(f))
		m := vm.allocMap(false)
		raw := vm.popN(count * 2)
		for i := 0; i < count; i++ {
			m.Set(raw[2*i], raw[2*i+1])
		}
		vm.push(value.Obj(m))
	case bytecode.OpMakeSet:
		count := int(vm.fetchU16(f))
		m := vm.allocMap(true)
		raw := vm.popN(count)
		for _, v := range raw {
			m.Set(v, value.Bool(true))
		}
		vm.push(value.Obj(m))
	case bytecode.OpMakeVec:
		count := int(vm.fetchU16(f))
		vec := vm.allocVec(false)
		vec.Values = append(vec.Values, vm.popN(count)...)
		vm.push(value.Obj(vec))
	case bytecode.OpMakeTup:
		count := int(vm.fetchU16(f))
		vm.push(value.Obj(vm.allocTup(vm.popN(count))))
	case bytecode.OpMakeEnum:
		nameIdx := vm.fetchU16(f)
		count := vm.fetchU16(f)
		if err := vm.opMakeEnum(f, nameIdx, count); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpMakeClosure:
		if err := vm.opMakeClosure(f, false); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpMakeClosureWithDefArgs:
		if err := vm.opMakeClosure(f, true); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpConcatStrings:
		count := int(vm.fetchU16(f))
		parts := vm.popN(count)
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.AsObj().(*object.Str).String())
		}
		vm.push(value.Obj(vm.allocStr(b.String())))
	case bytecode.OpStringify:
		v := vm.pop()
		vm.push(value.Obj(vm.allocStr(vm.displayString(v))))
	case bytecode.OpFormat:
		vm.fetchByte(f) // reserved flag, always 1 today
		spec := vm.pop()
		v := vm.pop()
		s, err := vm.formatValue(v, spec.AsObj().(*object.Str).String())
		if err != nil {
			return false, value.Null, err
		}
		vm.push(value.Obj(vm.allocStr(s)))

	// --- Iteration ---
	case bytecode.OpGetIterator:
		if err := vm.getIterator(); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetNextFromIterator:
		if err := vm.getNextFromIterator(); err != nil {
			return false, value.Null, err
		}

	// --- with ---
	case bytecode.OpStartWith:
		vm.startWith()
	case bytecode.OpEndWith:
		if err := vm.endWith(); err != nil {
			return false, value.Null, err
		}

	// --- Misc ---
	case bytecode.OpEcho:
		argc := int(vm.fetchByte(f))
		vm.opEcho(vm.popN(argc))
	case bytecode.OpAssert:
		v := vm.pop()
		if !v.Truthy() {
			return false, value.Null, vm.Panic("assertion failed")
		}
	case bytecode.OpTry:
		// compileTryExpr wraps the guarded expression in a synthetic
		// zero-arg closure and leaves it on top of stack; TRY calls it
		// here and turns a propagating panic into an *object.Err rather
		// than letting it continue unwinding (spec.md §7/§9's single
		// panic rule: only the panic that crosses this boundary is ever
		// reported, and pending with-blocks between the panic site and
		// here were already closed by run()'s error path).
		closure := vm.pop()
		result, err := vm.CallValue(closure, nil)
		if err != nil {
			if _, ok := err.(*PanicError); !ok {
				return false, value.Null, err
			}
			result = vm.asErrValue(err)
		}
		vm.push(result)
	case bytecode.OpUnpack:
		count := int(vm.fetchByte(f))
		if err := vm.opUnpack(count); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpGetIndex:
		if err := vm.getIndex(); err != nil {
			return false, value.Null, err
		}
	case bytecode.OpSetIndex:
		if err := vm.setIndex(); err != nil {
			return false, value.Null, err
		}

	default:
		return false, value.Null, vm.Panic("unimplemented opcode %s", op)
	}
	return false, value.Null, nil
}

// finishFrame pops the current (and only) frame this run() invocation
// owns, closes any upvalues still open into it, restores vm.sp to the
// call's base, and signals run() to stop.
func (vm *VM) finishFrame(baseFrameDepth int, result value.Value) (bool, value.Value, error) {
	f := vm.currentFrame()
	vm.closeUpvalues(f.base)
	vm.frames = vm.frames[:baseFrameDepth]
	vm.sp = f.base
	return true, result, nil
}

func mustStr(v value.Value) string {
	return v.AsObj().(*object.Str).String()
}

func (vm *VM) popTwoInts() (int64, int64, error) {
	b, a := vm.pop(), vm.pop()
	if !a.IsI64() || !b.IsI64() {
		return 0, 0, vm.Panic("bitwise operators require i64 operands, got %s and %s", a.TypeName(), b.TypeName())
	}
	return a.AsI64(), b.AsI64(), nil
}

// compare implements LESS/LESS_EQUAL/GREATER/GREATER_EQUAL: numeric
// ordering per value.CompareNumeric, Go byte-ordering for Str, and the
// $op_binary_<op>/$rop_binary_<op> fallback for everything else
// (spec.md §4.7).
func (vm *VM) compare(op string, allowed func(value.Ordering) bool) error {
	b, a := vm.pop(), vm.pop()
	if a.IsNumeric() && b.IsNumeric() {
		vm.push(value.Bool(allowed(value.CompareNumeric(a, b))))
		return nil
	}
	if sa, ok := a.AsObj().(*object.Str); ok {
		if sb, ok := b.AsObj().(*object.Str); ok {
			cmp := strings.Compare(sa.String(), sb.String())
			ord := value.OrderEqual
			switch {
			case cmp < 0:
				ord = value.OrderLess
			case cmp > 0:
				ord = value.OrderGreater
			}
			vm.push(value.Bool(allowed(ord)))
			return nil
		}
	}
	result, err := vm.tryOperatorFallback(op, a, b)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// binaryIn implements BINARY_IN (`a in b`): membership test dispatched
// on b's kind, falling back to a $contains method for class instances.
func (vm *VM) binaryIn(a, b value.Value) (bool, error) {
	if !b.IsObj() {
		return false, vm.Panic("%s is not a container", b.TypeName())
	}
	switch obj := b.AsObj().(type) {
	case *object.Vec:
		for _, v := range obj.Values {
			if v.Equals(a) {
				return true, nil
			}
		}
		return false, nil
	case *object.Tup:
		for _, v := range obj.Values {
			if v.Equals(a) {
				return true, nil
			}
		}
		return false, nil
	case *object.Map:
		return obj.Has(a), nil
	case *object.Str:
		needle, ok := a.AsObj().(*object.Str)
		if !ok {
			return false, vm.Panic("'in' on a string requires a string operand")
		}
		return strings.Contains(obj.String(), needle.String()), nil
	case *object.Instance:
		method, ok := obj.Class.LookupMethod("$contains", false)
		if !ok {
			return false, vm.Panic("%s does not support 'in'", obj.Class.Name)
		}
		result, err := vm.invokeBoundLike(method, b, []value.Value{a})
		if err != nil {
			return false, err
		}
		return result.Truthy(), nil
	default:
		return false, vm.Panic("%s is not a container", b.TypeName())
	}
}

// opMakeEnum implements MAKE_ENUM: build the enum as an *object.Module
// so EnumName::Member resolves through the same GET_MEMBER/Module.Get
// path as an imported module's members (spec.md §3's enum semantics),
// rather than inventing a dedicated enum object kind.
func (vm *VM) opMakeEnum(f *frame, nameIdx, count uint16) error {
	name := mustStr(f.closure.Fn.Constants[nameIdx])
	mod := vm.allocModule(name)
	for i := 0; i < int(count); i++ {
		member := mustStr(f.closure.Fn.Constants[int(nameIdx)+1+i])
		mod.Define(member, value.I64(int64(i)), true)
	}
	vm.push(value.Obj(mod))
	return nil
}

// getMember implements GET_MEMBER (`recv::name`): pub-only lookup on a
// Module (an import or an enum), matching spec.md §4.9's cross-boundary
// access rule.
func (vm *VM) getMember(name string) error {
	recv := vm.pop()
	mod, ok := recv.AsObj().(*object.Module)
	if !ok {
		return vm.Panic("%s has no member %q", recv.TypeName(), name)
	}
	v, ok := mod.Get(name, true)
	if !ok {
		return vm.Panic("%s has no public member %q", mod.Name, name)
	}
	vm.push(v)
	return nil
}

// opMakeClosure implements MAKE_CLOSURE/MAKE_CLOSURE_WITH_DEF_ARGS: the
// target Fn's own UpvalueCount tells us how many (isLocal, index) pairs
// follow rather than it being separately encoded (spec.md §4.8; see
// pkg/bytecode/emitter.go's EmitClosure).
func (vm *VM) opMakeClosure(f *frame, withDefaults bool) error {
	fnIdx := vm.fetchU16(f)
	target, ok := f.closure.Fn.Constants[fnIdx].AsObj().(*object.Fn)
	if !ok {
		return vm.Panic("MAKE_CLOSURE constant is not a function template")
	}

	var defaults []value.Value
	if withDefaults {
		defaultCount := int(vm.fetchByte(f))
		defaults = vm.popN(defaultCount)
		for i, j := 0, len(defaults)-1; i < j; i, j = i+1, j-1 {
			defaults[i], defaults[j] = defaults[j], defaults[i]
		}
	}

	cl := vm.allocClosure(target, f.closure.Module)
	cl.Defaults = defaults
	cl.Upvalues = make([]*object.Upvalue, target.UpvalueCount)
	for i := 0; i < target.UpvalueCount; i++ {
		isLocal := vm.fetchByte(f)
		index := int(vm.fetchByte(f))
		if isLocal != 0 {
			cl.Upvalues[i] = vm.captureUpvalue(f.base + index)
		} else {
			cl.Upvalues[i] = f.closure.Upvalues[index]
		}
	}
	vm.push(value.Obj(cl))
	return nil
}

// opEcho implements ECHO: print each argument's display form
// space-separated, followed by a newline (spec.md §4.2).
func (vm *VM) opEcho(args []value.Value) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vm.displayString(a)
	}
	if vm.Stdout != nil && vm.Stdout.Stream != nil {
		vm.Stdout.Stream.Write([]byte(strings.Join(parts, " ") + "\n"))
	}
}

// opUnpack implements UNPACK: pop a Tup or Vec and push its elements
// back in order, for destructuring forms the compiler doesn't currently
// emit (`let (a, b) = pair;`) but whose bytecode-level shape spec.md §6
// still reserves.
func (vm *VM) opUnpack(count int) error {
	v := vm.pop()
	var values []value.Value
	switch obj := v.AsObj().(type) {
	case *object.Tup:
		values = obj.Values
	case *object.Vec:
		values = obj.Values
	default:
		return vm.Panic("cannot unpack a %s", v.TypeName())
	}
	if len(values) != count {
		return vm.Panic("cannot unpack %d values into %d targets", len(values), count)
	}
	for _, val := range values {
		vm.push(val)
	}
	return nil
}

// defineGlobalsN implements DEFINE_PUB_GLOBALS/DEFINE_PRI_GLOBALS, the
// plural destructuring-declaration form the compiler doesn't currently
// emit (every global declaration it produces is singular): the stack
// holds count (name, value) pairs, pushed name-then-value per entry, so
// they come off in reverse, value first.
func (vm *VM) defineGlobalsN(f *frame, count int, public bool) {
	for i := 0; i < count; i++ {
		val := vm.pop()
		nameVal := vm.pop()
		name := nameVal.AsObj().(*object.Str).String()
		f.closure.Module.Define(name, val, public)
	}
}

func (vm *VM) dispatchCallWithUnpack(argc int) error {
	spread := vm.pop()
	fixed := vm.popN(argc)
	extra, err := vm.spreadToArgs(spread)
	if err != nil {
		return err
	}
	callee := vm.pop()
	result, err := vm.CallValue(callee, append(fixed, extra...))
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

func (vm *VM) callMethodOpcodeWithUnpack(name string, argc int, pubOnly bool) error {
	spread := vm.pop()
	fixed := vm.popN(argc)
	extra, err := vm.spreadToArgs(spread)
	if err != nil {
		return err
	}
	receiver := vm.pop()
	method, err := vm.resolveMethod(receiver, name, pubOnly)
	if err != nil {
		return err
	}
	result, err := vm.invokeBoundLike(method, receiver, append(fixed, extra...))
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

func (vm *VM) callSuperMethodOpcodeWithUnpack(f *frame, name string, argc int) error {
	spread := vm.pop()
	fixed := vm.popN(argc)
	extra, err := vm.spreadToArgs(spread)
	if err != nil {
		return err
	}
	self := vm.pop()
	home := f.closure.HomeClass
	if home == nil || home.Super == nil {
		return vm.Panic("super:%s called outside a subclass method", name)
	}
	method, ok := home.Super.LookupMethod(name, false)
	if !ok {
		return vm.Panic("%s's superclass has no method %q", home.Name, name)
	}
	result, err := vm.invokeBoundLike(method, self, append(fixed, extra...))
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// spreadToArgs expands the trailing `...expr` argument a *_WITH_UNPACK
// call carries into a plain argument slice.
func (vm *VM) spreadToArgs(v value.Value) ([]value.Value, error) {
	switch obj := v.AsObj().(type) {
	case *object.Vec:
		return append([]value.Value(nil), obj.Values...), nil
	case *object.Tup:
		return append([]value.Value(nil), obj.Values...), nil
	default:
		return nil, vm.Panic("cannot spread a %s as call arguments", v.TypeName())
	}
}

// fetchNameArg reads CALL_METHOD's family's OperandNameArg encoding: a
// 2-byte name-constant index followed by a 1-byte argc.
func (vm *VM) fetchNameArg(f *frame) (string, int) {
	idx := vm.fetchU16(f)
	argc := int(vm.fetchByte(f))
	return mustStr(f.closure.Fn.Constants[idx]), argc
}
