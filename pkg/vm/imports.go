package vm

import (
	"os"
	"path/filepath"

	"github.com/pyro-lang/pyro/pkg/compiler"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

// resolveModule implements spec.md §4.9's import resolution: search
// each of vm.importRoots in order for <path>.pyro, compile and run it
// exactly once (its top-level statements execute with a fresh Module
// as their global scope), and cache the resulting Module keyed by the
// resolved filesystem path so a second `import` of the same module
// reuses its state rather than re-running side effects.
func (vm *VM) resolveModule(path string) (*object.Module, error) {
	resolved, source, err := vm.readModuleSource(path)
	if err != nil {
		return nil, vm.Panic("cannot import %q: %v", path, err)
	}
	if cached, ok := vm.moduleCache[resolved]; ok {
		return cached, nil
	}

	fn, err := compiler.Compile(source, resolved, resolved, vm.Pool, func() *object.Fn {
		return object.NewFn("", resolved, resolved)
	}, false)
	if err != nil {
		return nil, vm.Panic("cannot compile %q: %v", path, err)
	}

	mod := vm.allocModule(moduleNameFromPath(path))
	// Cache before running the module body so a cyclic import sees the
	// (still-populating) module instead of recursing into compiling it
	// again — members it hasn't reached yet simply read as undefined.
	vm.moduleCache[resolved] = mod

	cl := vm.allocClosure(fn, mod)
	if _, err := vm.invokeClosure(cl, value.Null, nil); err != nil {
		return nil, err
	}
	return mod, nil
}

func (vm *VM) readModuleSource(path string) (resolvedPath, source string, err error) {
	for _, root := range vm.importRoots {
		candidate := filepath.Join(root, path+".pyro")
		data, readErr := os.ReadFile(candidate)
		if readErr == nil {
			return candidate, string(data), nil
		}
	}
	return "", "", os.ErrNotExist
}

func moduleNameFromPath(path string) string {
	return filepath.Base(path)
}

// importModule implements IMPORT_MODULE: resolve and run the module,
// then bind it as a whole (as a Module value) to the importing scope —
// DEFINE_PUB_GLOBAL/DEFINE_PRI_GLOBAL (already compiled around this
// opcode) installs the binding under the alias the `import` statement
// named.
func (vm *VM) importModule(path string) error {
	mod, err := vm.resolveModule(path)
	if err != nil {
		return err
	}
	vm.push(value.Obj(mod))
	return nil
}

// importNamedMembers implements IMPORT_NAMED_MEMBERS: resolve the
// module, then push each requested member's current value in the order
// named (`import math::{sqrt, pi}`), pub-only since an import always
// crosses a module boundary.
func (vm *VM) importNamedMembers(path string, names []string) error {
	mod, err := vm.resolveModule(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		v, ok := mod.Get(name, true)
		if !ok {
			return vm.Panic("module %q has no public member %q", path, name)
		}
		vm.push(v)
	}
	return nil
}
