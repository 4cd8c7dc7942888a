package vm

import (
	"math"

	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// arith pops two operands and applies numeric when both are numeric.
// Otherwise it uses the $op_binary_*/$rop_binary_* method-fallback
// protocol spec.md §4.7 defines: the VM looks for a method named
// "$op_binary_"+op on the left operand's class, then "$rop_binary_"+op
// on the right's, before giving up.
func (vm *VM) arith(op string, numeric func(a, b value.Value) (value.Value, error)) error {
	b := vm.pop()
	a := vm.pop()
	if a.IsNumeric() && b.IsNumeric() {
		result, err := numeric(a, b)
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	}
	result, err := vm.tryOperatorFallback(op, a, b)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// tryOperatorFallback dispatches $op_binary_<op>/$rop_binary_<op> for
// operands that are class instances, per spec.md §4.7.
func (vm *VM) tryOperatorFallback(op string, a, b value.Value) (value.Value, error) {
	if a.IsObjKind(value.ObjInstance) {
		inst := a.AsObj().(*object.Instance)
		if method, ok := inst.Class.LookupMethod("$op_binary_"+op, false); ok {
			return vm.invokeBoundLike(method, a, []value.Value{b})
		}
	}
	if b.IsObjKind(value.ObjInstance) {
		inst := b.AsObj().(*object.Instance)
		if method, ok := inst.Class.LookupMethod("$rop_binary_"+op, false); ok {
			return vm.invokeBoundLike(method, b, []value.Value{a})
		}
	}
	return value.Null, vm.Panic("unsupported operand types for %s: %s and %s", op, a.TypeName(), b.TypeName())
}

func (vm *VM) invokeBoundLike(method value.Value, receiver value.Value, args []value.Value) (value.Value, error) {
	switch m := method.AsObj().(type) {
	case *object.Closure:
		return vm.invokeClosure(m, receiver, args)
	case *object.NativeFn:
		return vm.callNative(m, receiver, args)
	default:
		return value.Null, vm.Panic("operator method is not callable")
	}
}

// numAdd/numSub/numMul take the VM receiver (rather than being bare
// funcs like the other numeric helpers) so they can panic on i64
// overflow per spec.md §8: "(x + y) - y == x for all x, y where the
// arithmetic does not overflow i64 (overflow must panic, not wrap)".
func (vm *VM) numAdd(a, b value.Value) (value.Value, error) {
	if a.IsI64() && b.IsI64() {
		x, y := a.AsI64(), b.AsI64()
		sum := x + y
		if (sum > x) != (y > 0) && y != 0 {
			return value.Null, vm.Panic("integer overflow: %d + %d", x, y)
		}
		return value.I64(sum), nil
	}
	return value.F64(a.AsF64Numeric() + b.AsF64Numeric()), nil
}
func (vm *VM) numSub(a, b value.Value) (value.Value, error) {
	if a.IsI64() && b.IsI64() {
		x, y := a.AsI64(), b.AsI64()
		diff := x - y
		if (diff < x) != (y > 0) && y != 0 {
			return value.Null, vm.Panic("integer overflow: %d - %d", x, y)
		}
		return value.I64(diff), nil
	}
	return value.F64(a.AsF64Numeric() - b.AsF64Numeric()), nil
}
func (vm *VM) numMul(a, b value.Value) (value.Value, error) {
	if a.IsI64() && b.IsI64() {
		x, y := a.AsI64(), b.AsI64()
		prod := x * y
		if x != 0 && (prod/x != y || (x == -1 && y == math.MinInt64)) {
			return value.Null, vm.Panic("integer overflow: %d * %d", x, y)
		}
		return value.I64(prod), nil
	}
	return value.F64(a.AsF64Numeric() * b.AsF64Numeric()), nil
}

func (vm *VM) numDiv(a, b value.Value) (value.Value, error) {
	if b.AsF64Numeric() == 0 {
		return value.Null, vm.Panic("division by zero")
	}
	return value.F64(a.AsF64Numeric() / b.AsF64Numeric()), nil
}

func (vm *VM) numFloorDiv(a, b value.Value) (value.Value, error) {
	if a.IsI64() && b.IsI64() {
		bi := b.AsI64()
		if bi == 0 {
			return value.Null, vm.Panic("division by zero")
		}
		ai := a.AsI64()
		q := ai / bi
		if (ai%bi != 0) && ((ai < 0) != (bi < 0)) {
			q--
		}
		return value.I64(q), nil
	}
	if b.AsF64Numeric() == 0 {
		return value.Null, vm.Panic("division by zero")
	}
	return value.F64(floorFloat(a.AsF64Numeric() / b.AsF64Numeric())), nil
}

func floorFloat(f float64) float64 {
	i := int64(f)
	if float64(i) > f {
		i--
	}
	return float64(i)
}

func (vm *VM) numMod(a, b value.Value) (value.Value, error) {
	if a.IsI64() && b.IsI64() {
		bi := b.AsI64()
		if bi == 0 {
			return value.Null, vm.Panic("modulo by zero")
		}
		ai := a.AsI64()
		m := ai % bi
		if m != 0 && ((m < 0) != (bi < 0)) {
			m += bi
		}
		return value.I64(m), nil
	}
	if b.AsF64Numeric() == 0 {
		return value.Null, vm.Panic("modulo by zero")
	}
	af, bf := a.AsF64Numeric(), b.AsF64Numeric()
	m := af - floorFloat(af/bf)*bf
	return value.F64(m), nil
}

func numPow(a, b value.Value) (value.Value, error) {
	if a.IsI64() && b.IsI64() && b.AsI64() >= 0 {
		result := int64(1)
		base := a.AsI64()
		for e := b.AsI64(); e > 0; e-- {
			result *= base
		}
		return value.I64(result), nil
	}
	return value.F64(math.Pow(a.AsF64Numeric(), b.AsF64Numeric())), nil
}

func compareOp(a, b value.Value, allowed func(value.Ordering) bool) (value.Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return value.Null, nil // caller handles fallback
	}
	return value.Bool(allowed(value.CompareNumeric(a, b))), nil
}
