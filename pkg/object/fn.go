package object

import "github.com/pyro-lang/pyro/pkg/value"

// LineRun is one run of the run-length-encoded line-number table: Count
// consecutive bytes of bytecode all originate from source line Line.
// spec.md §4.2 calls this "bytes-per-line"; line_for(ip) sums Counts
// until it passes ip.
type LineRun struct {
	Line  int
	Count int
}

// LineTable accumulates LineRuns as the compiler emits bytecode.
type LineTable struct {
	Runs []LineRun
}

// Record notes that one more byte was emitted at the given source line.
func (lt *LineTable) Record(line int) {
	if n := len(lt.Runs); n > 0 && lt.Runs[n-1].Line == line {
		lt.Runs[n-1].Count++
		return
	}
	lt.Runs = append(lt.Runs, LineRun{Line: line, Count: 1})
}

// LineFor computes the source line an instruction at byte offset ip
// originated from, by linear accumulation over the run table.
func (lt *LineTable) LineFor(ip int) int {
	acc := 0
	for _, run := range lt.Runs {
		acc += run.Count
		if ip < acc {
			return run.Line
		}
	}
	if len(lt.Runs) > 0 {
		return lt.Runs[len(lt.Runs)-1].Line
	}
	return 0
}

// Fn is a compiled function prototype: its bytecode, constant pool,
// declared arity, and line table. Fn is immutable once compiled; the
// mutable, capturing part of a callable is Closure.
type Fn struct {
	Header
	Name         string
	SourceID     string
	SourceName   string
	Code         []byte
	Constants    []value.Value
	Arity        int
	Variadic     bool
	UpvalueCount int
	// ReservesSelf marks local slot 0 as an implicit binding rather than
	// the function's first declared parameter: for a named plain
	// function it holds the closure itself (self-recursion by name), and
	// for a method it holds the receiver (self). Anonymous functions and
	// with-block thunks leave it false, so their first parameter occupies
	// slot 0 directly.
	ReservesSelf bool
	Lines        LineTable
}

func (f *Fn) Kind() value.ObjKind { return value.ObjFn }
func (f *Fn) ObjHeader() *Header  { return &f.Header }
func (f *Fn) Trace(walk func(value.Value)) {
	for _, c := range f.Constants {
		walk(c)
	}
}

// NewFn builds an empty Fn ready for the compiler to emit into.
func NewFn(name, sourceID, sourceName string) *Fn {
	return &Fn{Name: name, SourceID: sourceID, SourceName: sourceName}
}

// Closure binds an Fn to the upvalues captured from its defining scope
// plus the module it was defined in (for global lookups) and, for
// functions with default parameter values, the sidecar vector of
// literal defaults (spec.md §4.2).
type Closure struct {
	Header
	Fn       *Fn
	Module   *Module
	Upvalues []*Upvalue
	Defaults []value.Value
	// HomeClass is the class this closure was installed into as a
	// method, set by the VM's DEFINE_PUB_METHOD/DEFINE_PRI_METHOD/
	// DEFINE_STATIC_METHOD handlers at the moment the closure is bound
	// onto a class body. A `super:name(...)` call has no explicit
	// superclass operand on the stack (spec.md §3's CALL_SUPER_METHOD
	// only carries [self, args...]), so the VM resolves "whose super" by
	// reading HomeClass off the currently executing frame's closure and
	// walking HomeClass.Super. Nil for closures that are never installed
	// as methods (plain functions, anonymous functions, with-thunks).
	HomeClass *Class
}

func (c *Closure) Kind() value.ObjKind { return value.ObjClosure }
func (c *Closure) ObjHeader() *Header  { return &c.Header }
func (c *Closure) Trace(walk func(value.Value)) {
	walk(value.Obj(c.Fn))
	if c.Module != nil {
		walk(value.Obj(c.Module))
	}
	for _, uv := range c.Upvalues {
		walk(value.Obj(uv))
	}
	for _, d := range c.Defaults {
		walk(d)
	}
	if c.HomeClass != nil {
		walk(value.Obj(c.HomeClass))
	}
}

// NewClosure wraps fn with freshly-allocated (but not yet populated)
// upvalue slots; the VM's MAKE_CLOSURE handler fills Upvalues in.
func NewClosure(fn *Fn, mod *Module) *Closure {
	return &Closure{Fn: fn, Module: mod, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
}

// NativeVM is the minimal surface pkg/object's NativeFn needs from the
// VM in order to call back into Pyro code (e.g. to invoke a user-
// supplied $iter or $fmt callback) without pkg/object importing pkg/vm.
type NativeVM interface {
	CallValue(callee value.Value, args []value.Value) (value.Value, error)
	Panic(format string, args ...interface{}) error
	NewStr(s string) *Str
}

// NativeFn wraps a host Go function exposed to Pyro code. Arity -1
// marks a variadic native (argv carries whatever was actually passed).
type NativeFn struct {
	Header
	Name  string
	Arity int
	Fn    func(vm NativeVM, receiver value.Value, args []value.Value) (value.Value, error)
}

func (n *NativeFn) Kind() value.ObjKind { return value.ObjNativeFn }
func (n *NativeFn) ObjHeader() *Header  { return &n.Header }

// NewNativeFn builds a native function/method entry for registration on
// a module or a built-in class's method table.
func NewNativeFn(name string, arity int, fn func(vm NativeVM, receiver value.Value, args []value.Value) (value.Value, error)) *NativeFn {
	return &NativeFn{Name: name, Arity: arity, Fn: fn}
}

// Upvalue is either open (Location indexes into the still-live VM value
// stack) or closed (it owns Closed directly). Open upvalues form a
// singly-linked list, sorted by descending stack depth, threaded
// through NextOpen by the VM so CLOSE_UPVALUE / frame-return can close
// every upvalue at or above a given stack depth in one pass.
//
// Tracking the open location by stack *index* rather than a raw pointer
// into the stack's backing array is a deliberate adaptation from
// spec.md §4.8's raw-pointer description: Go slices relocate their
// backing array on growth, and indices are growth-invariant, so no
// "rebase every frame pointer and upvalue location" pass is needed after
// a stack grow — see DESIGN.md's note on this open question.
type Upvalue struct {
	Header
	Open       bool
	StackIndex int
	Closed     value.Value
	NextOpen   *Upvalue
}

func (u *Upvalue) Kind() value.ObjKind { return value.ObjUpvalue }
func (u *Upvalue) ObjHeader() *Header  { return &u.Header }
func (u *Upvalue) Trace(walk func(value.Value)) {
	if !u.Open {
		walk(u.Closed)
	}
}

// NewOpenUpvalue builds an upvalue pointing at a live stack slot.
func NewOpenUpvalue(stackIndex int) *Upvalue {
	return &Upvalue{Open: true, StackIndex: stackIndex}
}
