// Package compiler implements Pyro's single-pass compiler (spec.md
// §4.2): tokens are consumed left-to-right and bytecode is emitted
// directly as expressions and statements are recognized. There is no
// AST — every parse* method both recognizes grammar and emits code in
// the same pass, tracking locals, upvalues, loops, classes and
// with-blocks on a stack of per-function Compiler contexts.
package compiler

import (
	"strconv"

	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/lexer"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
)

const maxLocals = 256
const maxUpvalues = 256

// local is one entry of a function's local-variable table (spec.md
// §4.2): name, scope depth, whether it has finished initializing (so
// `var x = x;` can't see its own not-yet-assigned slot), whether any
// nested closure has captured it, and whether it was declared with
// `let` (assignment to it is a syntax error).
type local struct {
	name        string
	depth       int
	initialized bool
	captured    bool
	constant    bool
}

// upvalueRef records how a compiled function reaches a variable owned
// by an enclosing function: either directly from the enclosing
// function's local slot, or by forwarding the enclosing function's own
// upvalue of the same name.
type upvalueRef struct {
	name     string
	index    int
	isLocal  bool
	constant bool
}

// loopCtx tracks the state needed to patch `break`/`continue` and to
// unwind pending with-blocks on exit (spec.md §4.8's with-block
// protocol).
type loopCtx struct {
	continueTarget int
	breaks         []int
	scopeDepth     int
	withDepth      int
}

// classCtx tracks the class currently being compiled, for `self`/`super`
// resolution and to reject `super` outside of a subclass.
type classCtx struct {
	enclosing    *classCtx
	hasSuperclass bool
}

// Compiler is one function's compilation context. The top-level module
// compiler has no enclosing context; every `def` creates a child
// Compiler so name resolution can walk outward for upvalues.
type Compiler struct {
	lex      *lexer.Lexer
	cur, nxt lexer.Token

	sourceID   string
	sourceName string

	pool  *object.Pool
	newFn func() *object.Fn

	fn     *object.Fn
	writer *bytecode.Writer

	enclosing *Compiler
	locals    []local
	scopeDepth int
	upvalues  []upvalueRef

	loops []*loopCtx
	class *classCtx

	withDepth int

	// globalConstants and globalAssignments implement spec.md §4.2's
	// "after the whole unit compiles, every assignment is checked against
	// the constant list" pass: the top-level compiler accumulates both
	// lists and runs the check once, after the whole module compiles.
	globalConstants   map[string]bool
	globalAssignments []globalAssignment

	replMode bool
}

type globalAssignment struct {
	name string
	line int
}

// Compile compiles a complete Pyro source unit into a top-level Fn ready
// to be wrapped in a Closure and run. replMode, when true, rewrites a
// lone trailing expression statement's POP into POP_ECHO_IN_REPL
// (spec.md §4.2).
func Compile(source, sourceID, sourceName string, pool *object.Pool, newFn func() *object.Fn, replMode bool) (fn *object.Fn, err error) {
	c := &Compiler{
		lex:             lexer.New(source),
		sourceID:        sourceID,
		sourceName:      sourceName,
		pool:            pool,
		newFn:           newFn,
		fn:              newFn(),
		globalConstants: make(map[string]bool),
		replMode:        replMode,
	}
	c.fn.Name = "$main"
	c.fn.SourceID = sourceID
	c.fn.SourceName = sourceName
	c.writer = bytecode.NewWriter(c.fn)

	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*SyntaxError); ok {
				err = se
				return
			}
			panic(r)
		}
	}()

	c.advance()
	c.advance()

	var lastPopOffset = -1
	for c.cur.Kind != lexer.EOF {
		offset := c.compileStatement()
		if c.replMode {
			lastPopOffset = offset
		}
	}
	if c.replMode && lastPopOffset >= 0 && c.fn.Code[lastPopOffset] == byte(bytecode.OpPop) {
		c.fn.Code[lastPopOffset] = byte(bytecode.OpPopEchoInRepl)
	}
	c.writer.Op(bytecode.OpLoadNull, c.cur.Line)
	c.writer.Op(bytecode.OpReturn, c.cur.Line)

	c.checkGlobalConstantReassignments()

	return c.fn, nil
}

func (c *Compiler) checkGlobalConstantReassignments() {
	root := c
	for root.enclosing != nil {
		root = root.enclosing
	}
	for _, a := range root.globalAssignments {
		if root.globalConstants[a.name] {
			panic(c.errorf(a.line, "cannot assign to constant '%s'", a.name))
		}
	}
}

func (c *Compiler) advance() {
	c.cur = c.nxt
	c.nxt = c.lex.NextToken()
}

func (c *Compiler) check(k lexer.Kind) bool { return c.cur.Kind == k }

func (c *Compiler) match(k lexer.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) expect(k lexer.Kind, what string) lexer.Token {
	if !c.check(k) {
		panic(c.errorf(c.cur.Line, "expected %s, got %q", what, c.cur.Literal))
	}
	tok := c.cur
	c.advance()
	return tok
}

// addConstant interns val into the function's constant pool.
func (c *Compiler) addConstant(val value.Value) int {
	idx, err := c.writer.AddConstant(val)
	if err != nil {
		panic(c.errorf(c.cur.Line, "%s", err))
	}
	return idx
}

func (c *Compiler) internString(s string) *object.Str {
	return c.pool.InternString(s, func(size int64) *object.Str { return &object.Str{} })
}

func (c *Compiler) stringConstant(s string) int {
	return c.addConstant(value.Obj(c.internString(s)))
}

// --- scope management ---

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope pops every local declared in the scope being left, emitting
// CLOSE_UPVALUE for any that a nested closure captured and POP for the
// rest (spec.md §4.8: CLOSE_UPVALUE detaches it from the stack before
// the slot is discarded).
func (c *Compiler) endScope(line int) {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		if last.captured {
			c.writer.Op(bytecode.OpCloseUpvalue, line)
		} else {
			c.writer.Op(bytecode.OpPop, line)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string, constant bool, line int) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			panic(c.errorf(line, "'%s' is already declared in this scope", name))
		}
	}
	if len(c.locals) >= maxLocals {
		panic(c.errorf(line, "too many local variables in one function (limit %d)", maxLocals))
	}
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, constant: constant})
	return len(c.locals) - 1
}

func (c *Compiler) markInitialized() {
	if len(c.locals) > 0 {
		c.locals[len(c.locals)-1].initialized = true
	}
}

// resolveLocal finds name among this function's own locals, innermost
// scope first.
func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i, true
		}
	}
	return -1, false
}

// resolveUpvalue recursively walks enclosing compilers building the
// upvalue chain (spec.md §4.2's name-resolution order: locals, then
// upvalues). Constantness is threaded eagerly at capture time, per
// SPEC_FULL.md §C's resolution of spec.md §9's open question.
func (c *Compiler) resolveUpvalue(name string) (int, bool, bool) {
	if c.enclosing == nil {
		return -1, false, false
	}
	if idx, ok := c.enclosing.resolveLocal(name); ok {
		c.enclosing.locals[idx].captured = true
		return c.addUpvalue(idx, true, c.enclosing.locals[idx].constant, name), true, c.enclosing.locals[idx].constant
	}
	if idx, ok, isConst := c.enclosing.resolveUpvalue(name); ok {
		return c.addUpvalue(idx, false, isConst, name), true, isConst
	}
	return -1, false, false
}

func (c *Compiler) addUpvalue(index int, isLocal, constant bool, name string) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxUpvalues {
		panic(c.errorf(c.cur.Line, "too many captured variables in one function (limit %d)", maxUpvalues))
	}
	c.upvalues = append(c.upvalues, upvalueRef{name: name, index: index, isLocal: isLocal, constant: constant})
	return len(c.upvalues) - 1
}

func intLiteral(lit string) (int64, error) {
	return strconv.ParseInt(lit, 0, 64)
}

func i64Value(n int64) value.Value { return value.I64(n) }
