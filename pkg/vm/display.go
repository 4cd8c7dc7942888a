package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// displayString renders v the way ECHO and STRINGIFY do (spec.md §4.2):
// strings print bare (no quoting), every other kind prints its literal
// form, falling back to a user $str method for class instances.
func (vm *VM) displayString(v value.Value) string {
	switch v.Tag() {
	case value.TagNull:
		return "null"
	case value.TagBool:
		return strconv.FormatBool(v.AsBool())
	case value.TagI64:
		return strconv.FormatInt(v.AsI64(), 10)
	case value.TagF64:
		return strconv.FormatFloat(v.AsF64(), 'g', -1, 64)
	case value.TagRune:
		return string(v.AsRune())
	}
	if !v.IsObj() {
		return v.TypeName()
	}
	switch obj := v.AsObj().(type) {
	case *object.Str:
		return obj.String()
	case *object.Vec:
		return vm.displayVec(obj.Values, obj.AsStack)
	case *object.Tup:
		return vm.displayTup(obj.Values)
	case *object.Map:
		return vm.displayMap(obj)
	case *object.Buf:
		return fmt.Sprintf("buf(%d bytes)", len(obj.Bytes))
	case *object.Class:
		return "<class " + obj.Name + ">"
	case *object.Module:
		return "<module " + obj.Name + ">"
	case *object.Closure:
		return "<fn " + obj.Fn.Name + ">"
	case *object.NativeFn:
		return "<native fn " + obj.Name + ">"
	case *object.BoundMethod:
		return vm.displayString(obj.Method)
	case *object.Err:
		return "err(" + obj.Message + ")"
	case *object.Instance:
		if method, ok := obj.Class.LookupMethod("$str", false); ok {
			result, err := vm.invokeBoundLike(method, v, nil)
			if err == nil {
				if s, ok := result.AsObj().(*object.Str); ok {
					return s.String()
				}
			}
		}
		return "<instance of " + obj.Class.Name + ">"
	default:
		return v.TypeName()
	}
}

func (vm *VM) displayVec(values []value.Value, asStack bool) string {
	open := "["
	if asStack {
		open = "stack["
	}
	parts := make([]string, len(values))
	for i, e := range values {
		parts[i] = vm.reprString(e)
	}
	return open + strings.Join(parts, ", ") + "]"
}

func (vm *VM) displayTup(values []value.Value) string {
	parts := make([]string, len(values))
	for i, e := range values {
		parts[i] = vm.reprString(e)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (vm *VM) displayMap(m *object.Map) string {
	var parts []string
	if m.IsSet {
		m.Each(func(k, _ value.Value) bool {
			parts = append(parts, vm.reprString(k))
			return true
		})
		return "{" + strings.Join(parts, ", ") + "}"
	}
	m.Each(func(k, v value.Value) bool {
		parts = append(parts, vm.reprString(k)+": "+vm.reprString(v))
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// reprString is displayString's nested form: a Str inside a vec/map/tup
// prints quoted, matching how the literal would read back in source.
func (vm *VM) reprString(v value.Value) string {
	if s, ok := v.AsObj().(*object.Str); ok {
		return strconv.Quote(s.String())
	}
	return vm.displayString(v)
}

// formatValue implements FORMAT, interpreting the spec of an
// interpolated `{expr;spec}` the way Go's fmt verbs do for the subset
// Pyro supports: a bare width/precision/type tail borrowed from strconv.
// It interprets spec itself and calls no $fmt method on the value.
func (vm *VM) formatValue(v value.Value, spec string) (string, error) {
	if spec == "" {
		return vm.displayString(v), nil
	}
	switch {
	case strings.HasSuffix(spec, "x"):
		if !v.IsI64() {
			return "", vm.Panic("format spec %q requires an i64", spec)
		}
		return fmt.Sprintf("%"+spec, v.AsI64()), nil
	case strings.HasSuffix(spec, "b"):
		if !v.IsI64() {
			return "", vm.Panic("format spec %q requires an i64", spec)
		}
		return fmt.Sprintf("%"+spec, v.AsI64()), nil
	case strings.HasSuffix(spec, "f") || strings.HasSuffix(spec, "e") || strings.HasSuffix(spec, "g"):
		return fmt.Sprintf("%"+spec, v.AsF64Numeric()), nil
	default:
		return fmt.Sprintf("%"+spec+"s", vm.displayString(v)), nil
	}
}
