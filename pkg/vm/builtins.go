package vm

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// nativeFunc is the Go shape every built-in method and superglobal
// function is written against (spec.md §6's `fn(vm, argc, argv)`,
// narrowed to the object.NativeVM callback surface so this package
// never needs pkg/object to import pkg/vm back).
type nativeFunc = func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error)

// registerBuiltins populates vm.Builtins (one Class per primitive
// kind — str, vec, map, etc. — with a native method table exactly like
// a user class's, spec.md §4.10) and vm.Superglobals (the `$`-prefixed
// free functions every module sees without import, spec.md §6's
// define_superglobal/define_superglobal_fn). The method tables are
// grounded on original_source/src/builtins/map.c's
// pyro_load_std_builtins_map registration, the only built-in-type
// source file the retrieval pack kept; the rest are modelled on its
// naming convention (count/is_empty/contains/copy/clear/iter, `$`
// protocol hooks) since their C sources weren't included.
func registerBuiltins(vm *VM) {
	vm.registerStrBuiltins()
	vm.registerVecBuiltins()
	vm.registerMapBuiltins()
	vm.registerTupBuiltins()
	vm.registerBufBuiltins()
	vm.registerIterBuiltins()
	vm.registerQueueBuiltins()
	vm.registerErrBuiltins()
	vm.registerFileBuiltins()
	vm.registerCharBuiltins()
	vm.registerModuleBuiltins()
	vm.registerSuperglobals()
}

// builtinClass returns (creating on first use) the Class vm.Builtins
// keys under key — the same key builtinClassKey computes for a
// receiver of that kind.
func (vm *VM) builtinClass(key string) *object.Class {
	cls, ok := vm.Builtins[key]
	if !ok {
		cls = vm.allocClass(key)
		vm.Builtins[key] = cls
	}
	return cls
}

// method installs a public native method named name on cls.
func (vm *VM) method(cls *object.Class, name string, arity int, fn nativeFunc) {
	cls.DefineMethod(name, value.Obj(vm.allocNativeFn(name, arity, fn)), true)
}

// superglobal installs a host-registered name visible from every
// module without import (spec.md's Superglobal glossary entry).
func (vm *VM) superglobal(name string, arity int, fn nativeFunc) {
	vm.Superglobals.Define(name, value.Obj(vm.allocNativeFn(name, arity, fn)), true)
}

// --- shared argument helpers ---

func argStr(nvm object.NativeVM, args []value.Value, i int) (*object.Str, error) {
	if i >= len(args) || !args[i].IsObjKind(value.ObjStr) {
		return nil, nvm.Panic("argument %d must be a str", i+1)
	}
	return args[i].AsObj().(*object.Str), nil
}

func argInt(nvm object.NativeVM, args []value.Value, i int) (int64, error) {
	if i >= len(args) {
		return 0, nvm.Panic("argument %d must be an i64", i+1)
	}
	v := args[i]
	if v.IsI64() {
		return v.AsI64(), nil
	}
	if v.IsRune() {
		return int64(v.AsRune()), nil
	}
	return 0, nvm.Panic("argument %d must be an i64, got %s", i+1, v.TypeName())
}

// --- str ---

func (vm *VM) registerStrBuiltins() {
	cls := vm.builtinClass(value.ObjStr.String())
	recvStr := func(receiver value.Value) *object.Str { return receiver.AsObj().(*object.Str) }

	vm.method(cls, "count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(len([]rune(recvStr(receiver).String())))), nil
	})
	vm.method(cls, "byte_count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(recvStr(receiver).Len())), nil
	})
	vm.method(cls, "is_empty", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvStr(receiver).Len() == 0), nil
	})
	vm.method(cls, "upper", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(strings.ToUpper(recvStr(receiver).String()))), nil
	})
	vm.method(cls, "lower", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(strings.ToLower(recvStr(receiver).String()))), nil
	})
	vm.method(cls, "trim", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(strings.TrimSpace(recvStr(receiver).String()))), nil
	})
	vm.method(cls, "starts_with", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		prefix, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(strings.HasPrefix(recvStr(receiver).String(), prefix.String())), nil
	})
	vm.method(cls, "ends_with", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		suffix, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(strings.HasSuffix(recvStr(receiver).String(), suffix.String())), nil
	})
	vm.method(cls, "contains", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		needle, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(strings.Contains(recvStr(receiver).String(), needle.String())), nil
	})
	vm.method(cls, "replace", 2, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		old, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		repl, err := argStr(nvm, args, 1)
		if err != nil {
			return value.Null, err
		}
		return value.Obj(vm.allocStr(strings.ReplaceAll(recvStr(receiver).String(), old.String(), repl.String()))), nil
	})
	vm.method(cls, "split", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		sep, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		parts := strings.Split(recvStr(receiver).String(), sep.String())
		out := vm.allocVec(false)
		for _, p := range parts {
			out.Push(value.Obj(vm.allocStr(p)))
		}
		return value.Obj(out), nil
	})
	vm.method(cls, "join", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		vec, ok := args[0].AsObj().(*object.Vec)
		if len(args) != 1 || !ok {
			return value.Null, nvm.Panic("join expects a vec argument")
		}
		parts := make([]string, len(vec.Values))
		for i, v := range vec.Values {
			parts[i] = vm.displayString(v)
		}
		return value.Obj(vm.allocStr(strings.Join(parts, recvStr(receiver).String()))), nil
	})
	vm.method(cls, "to_i64", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(recvStr(receiver).String()), 10, 64)
		if err != nil {
			return value.Obj(vm.allocErr("cannot parse str as i64")), nil
		}
		return value.I64(n), nil
	})
	vm.method(cls, "to_f64", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(recvStr(receiver).String()), 64)
		if err != nil {
			return value.Obj(vm.allocErr("cannot parse str as f64")), nil
		}
		return value.F64(f), nil
	})
	vm.method(cls, "$iter", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocIter(object.IterStrRunes, receiver)), nil
	})
	vm.method(cls, "$contains", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		needle, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(strings.Contains(recvStr(receiver).String(), needle.String())), nil
	})
	vm.method(cls, "$op_binary_plus", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		other, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		return value.Obj(vm.allocStr(recvStr(receiver).String() + other.String())), nil
	})
}

// --- vec / stack ---

func (vm *VM) registerVecBuiltins() {
	vm.registerVecLikeBuiltins(vm.builtinClass(value.ObjVec.String()), false)
	vm.registerVecLikeBuiltins(vm.builtinClass(value.ObjVecAsStack.String()), true)
}

func (vm *VM) registerVecLikeBuiltins(cls *object.Class, stackOnly bool) {
	recvVec := func(receiver value.Value) *object.Vec { return receiver.AsObj().(*object.Vec) }

	vm.method(cls, "count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(recvVec(receiver).Len())), nil
	})
	vm.method(cls, "is_empty", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvVec(receiver).Len() == 0), nil
	})
	vm.method(cls, "push", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		recvVec(receiver).Push(args[0])
		return receiver, nil
	})
	vm.method(cls, "pop", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		v, ok := recvVec(receiver).Pop()
		if !ok {
			return value.Null, nvm.Panic("pop on an empty %s", receiver.TypeName())
		}
		return v, nil
	})
	vm.method(cls, "$iter", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocIter(object.IterVec, receiver)), nil
	})
	if stackOnly {
		vm.method(cls, "peek", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
			vec := recvVec(receiver)
			v, ok := vec.Get(int64(vec.Len() - 1))
			if !ok {
				return value.Null, nvm.Panic("peek on an empty stack")
			}
			return v, nil
		})
		return
	}

	vm.method(cls, "get", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		v, ok := recvVec(receiver).Get(i)
		if !ok {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return v, nil
	})
	vm.method(cls, "set", 2, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		if !recvVec(receiver).Set(i, args[1]) {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return receiver, nil
	})
	vm.method(cls, "contains", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		for _, v := range recvVec(receiver).Values {
			if v.Equals(args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	})
	vm.method(cls, "index_of", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		for i, v := range recvVec(receiver).Values {
			if v.Equals(args[0]) {
				return value.I64(int64(i)), nil
			}
		}
		return value.Obj(vm.allocErr("value not found")), nil
	})
	vm.method(cls, "copy", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		out := vm.allocVec(false)
		out.Values = append(out.Values, recvVec(receiver).Values...)
		return value.Obj(out), nil
	})
	vm.method(cls, "reverse", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		vals := recvVec(receiver).Values
		for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
			vals[i], vals[j] = vals[j], vals[i]
		}
		return receiver, nil
	})
	vm.method(cls, "sort", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		vals := recvVec(receiver).Values
		sort.SliceStable(vals, func(i, j int) bool {
			return value.CompareNumeric(vals[i], vals[j]) == value.OrderLess
		})
		return receiver, nil
	})
	vm.method(cls, "$get", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		v, ok := recvVec(receiver).Get(i)
		if !ok {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return v, nil
	})
	vm.method(cls, "$set", 2, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		if !recvVec(receiver).Set(i, args[1]) {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return args[1], nil
	})
	vm.method(cls, "$contains", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		for _, v := range recvVec(receiver).Values {
			if v.Equals(args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	})
	vm.method(cls, "$op_binary_plus", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		other, ok := args[0].AsObj().(*object.Vec)
		if !ok {
			return value.Null, nvm.Panic("+ requires two vecs")
		}
		out := vm.allocVec(false)
		out.Values = append(out.Values, recvVec(receiver).Values...)
		out.Values = append(out.Values, other.Values...)
		return value.Obj(out), nil
	})
}

// --- map / set ---
//
// Method names and the set's combinator operators are grounded directly
// on original_source/src/builtins/map.c's pyro_load_std_builtins_map.

func (vm *VM) registerMapBuiltins() {
	vm.registerMapLikeBuiltins(vm.builtinClass(value.ObjMap.String()), false)
	vm.registerMapLikeBuiltins(vm.builtinClass(value.ObjMapAsSet.String()), true)
}

func (vm *VM) registerMapLikeBuiltins(cls *object.Class, isSet bool) {
	recvMap := func(receiver value.Value) *object.Map { return receiver.AsObj().(*object.Map) }

	vm.method(cls, "count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(recvMap(receiver).LiveCount())), nil
	})
	vm.method(cls, "is_empty", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvMap(receiver).LiveCount() == 0), nil
	})
	vm.method(cls, "contains", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvMap(receiver).Has(args[0])), nil
	})
	vm.method(cls, "remove", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvMap(receiver).Delete(args[0])), nil
	})
	vm.method(cls, "clear", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		m := recvMap(receiver)
		*m = *object.NewMap(isSet)
		return value.Null, nil
	})
	vm.method(cls, "copy", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		out := vm.allocMap(isSet)
		recvMap(receiver).Each(func(k, v value.Value) bool {
			out.Set(k, v)
			return true
		})
		return value.Obj(out), nil
	})
	vm.method(cls, "$iter", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		kind := object.IterMapEntries
		if isSet {
			kind = object.IterMapKeys
		}
		return value.Obj(vm.allocIter(kind, receiver)), nil
	})
	vm.method(cls, "$contains", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvMap(receiver).Has(args[0])), nil
	})

	if isSet {
		vm.method(cls, "add", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
			recvMap(receiver).Set(args[0], value.Bool(true))
			return receiver, nil
		})
		vm.method(cls, "values", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
			out := vm.allocVec(false)
			recvMap(receiver).Each(func(k, _ value.Value) bool {
				out.Push(k)
				return true
			})
			return value.Obj(out), nil
		})
		combine := func(op func(a, b bool) bool) nativeFunc {
			return func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
				other, ok := args[0].AsObj().(*object.Map)
				if !ok || !other.IsSet {
					return value.Null, nvm.Panic("set combinators require another set")
				}
				out := vm.allocMap(true)
				recvMap(receiver).Each(func(k, _ value.Value) bool {
					if op(true, other.Has(k)) {
						out.Set(k, value.Bool(true))
					}
					return true
				})
				other.Each(func(k, _ value.Value) bool {
					if !recvMap(receiver).Has(k) && op(false, true) {
						out.Set(k, value.Bool(true))
					}
					return true
				})
				return value.Obj(out), nil
			}
		}
		vm.method(cls, "union", 1, combine(func(a, b bool) bool { return a || b }))
		vm.method(cls, "intersection", 1, combine(func(a, b bool) bool { return a && b }))
		vm.method(cls, "difference", 1, combine(func(a, b bool) bool { return a && !b }))
		vm.method(cls, "symmetric_difference", 1, combine(func(a, b bool) bool { return a != b }))
		vm.method(cls, "is_subset_of", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
			other, ok := args[0].AsObj().(*object.Map)
			if !ok || !other.IsSet {
				return value.Null, nvm.Panic("is_subset_of requires another set")
			}
			subset := true
			recvMap(receiver).Each(func(k, _ value.Value) bool {
				if !other.Has(k) {
					subset = false
					return false
				}
				return true
			})
			return value.Bool(subset), nil
		})
		vm.method(cls, "$op_binary_bar", 1, combine(func(a, b bool) bool { return a || b }))
		vm.method(cls, "$op_binary_amp", 1, combine(func(a, b bool) bool { return a && b }))
		vm.method(cls, "$op_binary_minus", 1, combine(func(a, b bool) bool { return a && !b }))
		vm.method(cls, "$op_binary_caret", 1, combine(func(a, b bool) bool { return a != b }))
		return
	}

	vm.method(cls, "get", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		v, ok := recvMap(receiver).Get(args[0])
		if !ok {
			return value.Obj(vm.allocErr("key not found in map")), nil
		}
		return v, nil
	})
	vm.method(cls, "set", 2, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		recvMap(receiver).Set(args[0], args[1])
		return receiver, nil
	})
	vm.method(cls, "keys", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		out := vm.allocVec(false)
		recvMap(receiver).Each(func(k, _ value.Value) bool {
			out.Push(k)
			return true
		})
		return value.Obj(out), nil
	})
	vm.method(cls, "values", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		out := vm.allocVec(false)
		recvMap(receiver).Each(func(_, v value.Value) bool {
			out.Push(v)
			return true
		})
		return value.Obj(out), nil
	})
	vm.method(cls, "entries", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		out := vm.allocVec(false)
		recvMap(receiver).Each(func(k, v value.Value) bool {
			out.Push(value.Obj(vm.allocTup([]value.Value{k, v})))
			return true
		})
		return value.Obj(out), nil
	})
	vm.method(cls, "$get", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		v, ok := recvMap(receiver).Get(args[0])
		if !ok {
			return value.Null, nvm.Panic("key not found in map")
		}
		return v, nil
	})
	vm.method(cls, "$set", 2, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		recvMap(receiver).Set(args[0], args[1])
		return args[1], nil
	})
}

// --- tup ---

func (vm *VM) registerTupBuiltins() {
	cls := vm.builtinClass(value.ObjTup.String())
	recvTup := func(receiver value.Value) *object.Tup { return receiver.AsObj().(*object.Tup) }

	vm.method(cls, "count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(len(recvTup(receiver).Values))), nil
	})
	vm.method(cls, "get", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		v, ok := recvTup(receiver).Get(i)
		if !ok {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return v, nil
	})
	vm.method(cls, "to_vec", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		out := vm.allocVec(false)
		out.Values = append(out.Values, recvTup(receiver).Values...)
		return value.Obj(out), nil
	})
	vm.method(cls, "$iter", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocIter(object.IterTup, receiver)), nil
	})
	vm.method(cls, "$get", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		v, ok := recvTup(receiver).Get(i)
		if !ok {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return v, nil
	})
}

// --- buf ---

func (vm *VM) registerBufBuiltins() {
	cls := vm.builtinClass(value.ObjBuf.String())
	recvBuf := func(receiver value.Value) *object.Buf { return receiver.AsObj().(*object.Buf) }

	vm.method(cls, "count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(len(recvBuf(receiver).Bytes))), nil
	})
	vm.method(cls, "get", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		b, ok := recvBuf(receiver).Get(i)
		if !ok {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return value.I64(int64(b)), nil
	})
	vm.method(cls, "set", 2, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		i, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		bv, err := argInt(nvm, args, 1)
		if err != nil {
			return value.Null, err
		}
		if bv < 0 || bv > 255 {
			return value.Null, nvm.Panic("byte value %d out of range", bv)
		}
		if !recvBuf(receiver).Set(i, byte(bv)) {
			return value.Null, nvm.Panic("index %d out of range", i)
		}
		return receiver, nil
	})
	vm.method(cls, "to_str", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(string(recvBuf(receiver).Bytes))), nil
	})
	vm.method(cls, "$iter", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		str := vm.allocStr(string(recvBuf(receiver).Bytes))
		return value.Obj(vm.allocIter(object.IterStrBytes, value.Obj(str))), nil
	})
}

// --- iter ---

func (vm *VM) registerIterBuiltins() {
	cls := vm.builtinClass(value.ObjIter.String())
	recvIter := func(receiver value.Value) *object.Iter { return receiver.AsObj().(*object.Iter) }

	vm.method(cls, "next", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		val, more, err := vm.advanceIter(recvIter(receiver))
		if err != nil {
			return value.Null, err
		}
		return value.Obj(vm.allocTup([]value.Value{val, value.Bool(more)})), nil
	})
	vm.method(cls, "$iter", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return receiver, nil
	})
	vm.method(cls, "$next", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		val, more, err := vm.advanceIter(recvIter(receiver))
		if err != nil {
			return value.Null, err
		}
		return value.Obj(vm.allocTup([]value.Value{val, value.Bool(more)})), nil
	})
	vm.method(cls, "map", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		wrapped := vm.allocIter(object.IterFuncMap, receiver)
		wrapped.Callback = args[0]
		return value.Obj(wrapped), nil
	})
	vm.method(cls, "filter", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		wrapped := vm.allocIter(object.IterFuncFilter, receiver)
		wrapped.Callback = args[0]
		return value.Obj(wrapped), nil
	})
	vm.method(cls, "enumerate", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocIter(object.IterEnumerate, receiver)), nil
	})
	vm.method(cls, "to_vec", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		out := vm.allocVec(false)
		it := recvIter(receiver)
		for {
			val, more, err := vm.advanceIter(it)
			if err != nil {
				return value.Null, err
			}
			if !more {
				break
			}
			out.Push(val)
		}
		return value.Obj(out), nil
	})
}

// --- queue ---

func (vm *VM) registerQueueBuiltins() {
	cls := vm.builtinClass(value.ObjQueue.String())
	recvQueue := func(receiver value.Value) *object.Queue { return receiver.AsObj().(*object.Queue) }

	vm.method(cls, "count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(recvQueue(receiver).Len())), nil
	})
	vm.method(cls, "is_empty", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvQueue(receiver).Len() == 0), nil
	})
	vm.method(cls, "enqueue", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		recvQueue(receiver).Enqueue(args[0])
		return receiver, nil
	})
	vm.method(cls, "dequeue", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		v, ok := recvQueue(receiver).Dequeue()
		if !ok {
			return value.Null, nvm.Panic("dequeue on an empty queue")
		}
		return v, nil
	})
	vm.method(cls, "peek", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		v, ok := recvQueue(receiver).Peek()
		if !ok {
			return value.Null, nvm.Panic("peek on an empty queue")
		}
		return v, nil
	})
	vm.method(cls, "$iter", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocIter(object.IterQueue, receiver)), nil
	})
}

// --- err ---

func (vm *VM) registerErrBuiltins() {
	cls := vm.builtinClass(value.ObjErr.String())
	recvErr := func(receiver value.Value) *object.Err { return receiver.AsObj().(*object.Err) }

	vm.method(cls, "message", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(recvErr(receiver).Message)), nil
	})
	vm.method(cls, "details", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(recvErr(receiver).Details), nil
	})
	vm.method(cls, "$str", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(recvErr(receiver).Message)), nil
	})
}

// --- file ---

func (vm *VM) registerFileBuiltins() {
	cls := vm.builtinClass(value.ObjFile.String())
	recvFile := func(receiver value.Value) *object.File { return receiver.AsObj().(*object.File) }

	vm.method(cls, "write", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		s, err := argStr(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		n, werr := recvFile(receiver).Stream.Write(s.Bytes)
		if werr != nil {
			return value.Obj(vm.allocErr(werr.Error())), nil
		}
		return value.I64(int64(n)), nil
	})
	vm.method(cls, "close", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		if err := recvFile(receiver).Stream.Close(); err != nil {
			return value.Obj(vm.allocErr(err.Error())), nil
		}
		return value.Null, nil
	})
	vm.method(cls, "read", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		n, err := argInt(nvm, args, 0)
		if err != nil {
			return value.Null, err
		}
		buf := make([]byte, n)
		read, rerr := recvFile(receiver).Stream.Read(buf)
		if rerr != nil && read == 0 {
			return value.Obj(vm.allocErr(rerr.Error())), nil
		}
		return value.Obj(vm.allocBuf(buf[:read])), nil
	})
}

// --- char (rune) ---

// registerCharBuiltins is grounded directly on
// original_source/src/builtins/rune.c's pyro_load_std_builtins_rune:
// the same eight is_ascii*/is_unicode_ws predicates, unchanged in name
// and arity. Runes are a scalar Tag rather than a heap object, so the
// class is keyed under TypeName()'s "rune" (builtinClassKey's actual
// lookup key for a non-Obj receiver) rather than the spec's "char"
// vocabulary.
func (vm *VM) registerCharBuiltins() {
	cls := vm.builtinClass(value.TagRune.String())
	recvRune := func(receiver value.Value) rune { return receiver.AsRune() }

	vm.method(cls, "is_ascii", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(recvRune(receiver) < 128), nil
	})
	vm.method(cls, "is_ascii_ws", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		r := recvRune(receiver)
		return value.Bool(r < 128 && isAsciiWhitespace(byte(r))), nil
	})
	vm.method(cls, "is_unicode_ws", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(unicode.IsSpace(recvRune(receiver))), nil
	})
	vm.method(cls, "is_ascii_decimal", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		r := recvRune(receiver)
		return value.Bool(r < 128 && r >= '0' && r <= '9'), nil
	})
	vm.method(cls, "is_ascii_octal", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		r := recvRune(receiver)
		return value.Bool(r < 128 && r >= '0' && r <= '7'), nil
	})
	vm.method(cls, "is_ascii_hex", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		r := recvRune(receiver)
		return value.Bool(r < 128 && isAsciiHexDigit(byte(r))), nil
	})
	vm.method(cls, "is_ascii_alpha", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		r := recvRune(receiver)
		return value.Bool(r < 128 && ((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))), nil
	})
	vm.method(cls, "is_ascii_printable", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		r := recvRune(receiver)
		return value.Bool(r >= 32 && r < 127), nil
	})
	vm.method(cls, "$str", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(string(recvRune(receiver)))), nil
	})
}

func isAsciiWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isAsciiHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// --- module ---

// registerModuleBuiltins has no original_source grounding (Pyro's
// modules are a host-side VM concept there, not a builtin class with
// its own method table) so it follows the count/is_empty naming
// convention registerMapLikeBuiltins and registerVecLikeBuiltins
// already use for "how many / is there anything" queries, applied to a
// Module's public member set.
func (vm *VM) registerModuleBuiltins() {
	cls := vm.builtinClass(value.ObjModule.String())
	recvModule := func(receiver value.Value) *object.Module { return receiver.AsObj().(*object.Module) }

	vm.method(cls, "name", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(recvModule(receiver).Name)), nil
	})
	vm.method(cls, "count", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(len(recvModule(receiver).PubIndex))), nil
	})
	vm.method(cls, "is_empty", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(len(recvModule(receiver).PubIndex) == 0), nil
	})
	vm.method(cls, "members", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		m := recvModule(receiver)
		names := make([]string, 0, len(m.PubIndex))
		for name := range m.PubIndex {
			names = append(names, name)
		}
		sort.Strings(names)
		out := vm.allocVec(false)
		for _, name := range names {
			out.Values = append(out.Values, value.Obj(vm.allocStr(name)))
		}
		return value.Obj(out), nil
	})
	vm.method(cls, "$str", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr("<module " + recvModule(receiver).Name + ">")), nil
	})
}

// --- superglobals ---
//
// $map/$is_map, $set/$is_set (isSet variant), and $rune/$is_rune are
// grounded directly on original_source/src/builtins/map.c and
// src/builtins/rune.c's superglobal registrations; the rest of the
// constructor/predicate family follows the same naming convention for
// the remaining primitive kinds.
func (vm *VM) registerSuperglobals() {
	vm.superglobal("$range", -1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		var start, stop, step int64 = 0, 0, 1
		switch len(args) {
		case 1:
			stop = args[0].AsI64()
		case 2:
			start, stop = args[0].AsI64(), args[1].AsI64()
		case 3:
			start, stop, step = args[0].AsI64(), args[1].AsI64(), args[2].AsI64()
		default:
			return value.Null, nvm.Panic("$range expects 1 to 3 arguments, got %d", len(args))
		}
		it := object.NewRangeIter(start, stop, step)
		vm.track(it, 48)
		return value.Obj(it), nil
	})

	vm.superglobal("$err", -1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		msg := ""
		if len(args) > 0 {
			msg = vm.displayString(args[0])
		}
		e := vm.allocErr(msg)
		for i := 1; i+1 < len(args); i += 2 {
			key, err := argStr(nvm, args, i)
			if err != nil {
				return value.Null, err
			}
			e.Details.Set(value.Obj(key), args[i+1])
		}
		return value.Obj(e), nil
	})
	vm.superglobal("$is_err", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjErr)), nil
	})

	vm.superglobal("$map", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocMap(false)), nil
	})
	vm.superglobal("$is_map", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjMap)), nil
	})
	vm.superglobal("$set", -1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		m := vm.allocMap(true)
		for _, a := range args {
			m.Set(a, value.Bool(true))
		}
		return value.Obj(m), nil
	})
	vm.superglobal("$is_set", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjMapAsSet)), nil
	})

	vm.superglobal("$vec", -1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		v := vm.allocVec(false)
		v.Values = append(v.Values, args...)
		return value.Obj(v), nil
	})
	vm.superglobal("$is_vec", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjVec)), nil
	})
	vm.superglobal("$stack", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocVec(true)), nil
	})
	vm.superglobal("$is_stack", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjVecAsStack)), nil
	})
	vm.superglobal("$tup", -1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocTup(args)), nil
	})
	vm.superglobal("$is_tup", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjTup)), nil
	})
	vm.superglobal("$buf", -1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		var initial []byte
		if len(args) == 1 {
			if s, ok := args[0].AsObj().(*object.Str); ok {
				initial = s.Bytes
			}
		}
		return value.Obj(vm.allocBuf(initial)), nil
	})
	vm.superglobal("$is_buf", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjBuf)), nil
	})
	vm.superglobal("$queue", 0, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocQueue()), nil
	})
	vm.superglobal("$is_queue", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjQueue)), nil
	})

	vm.superglobal("$str", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Obj(vm.allocStr(vm.displayString(args[0]))), nil
	})
	vm.superglobal("$is_str", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsObjKind(value.ObjStr)), nil
	})
	vm.superglobal("$i64", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.I64(int64(args[0].AsF64Numeric())), nil
	})
	vm.superglobal("$is_i64", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsI64()), nil
	})
	vm.superglobal("$f64", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.F64(args[0].AsF64Numeric()), nil
	})
	vm.superglobal("$is_f64", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsF64()), nil
	})
	vm.superglobal("$rune", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		if !args[0].IsI64() {
			return value.Null, nvm.Panic("$rune expects an i64")
		}
		return value.Rune(rune(args[0].AsI64())), nil
	})
	vm.superglobal("$is_rune", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsRune()), nil
	})
	vm.superglobal("$bool", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].Truthy()), nil
	})
	vm.superglobal("$is_bool", 1, func(nvm object.NativeVM, receiver value.Value, args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsBool()), nil
	})
}
