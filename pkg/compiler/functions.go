package compiler

import (
	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/lexer"
	"github.com/pyro-lang/pyro/pkg/value"
)

// newChildCompiler opens a fresh Compiler for a nested function body
// (named `def`, anonymous function expression, or a `try expr`'s
// synthetic thunk), sharing the lexer so tokens keep flowing in a
// single pass (spec.md §4.2). The caller must advance the child's
// lexer state itself via its own compileStatement/compileExpression
// calls, then hand it to finishChildClosure.
func (c *Compiler) newChildCompiler(name string) *Compiler {
	child := &Compiler{
		lex:        c.lex,
		cur:        c.cur,
		nxt:        c.nxt,
		sourceID:   c.sourceID,
		sourceName: c.sourceName,
		pool:       c.pool,
		newFn:      c.newFn,
		fn:         c.newFn(),
		enclosing:  c,
		class:      c.class,
	}
	child.fn.Name = name
	child.fn.SourceID = c.sourceID
	child.fn.SourceName = c.sourceName
	child.writer = bytecode.NewWriter(child.fn)
	child.beginScope()
	return child
}

// syncFrom copies other's token cursor into c. Called in both directions
// (parent from child, then child from parent), it lets the parent
// compiler borrow the shared token cursor to compile a fragment (a
// default-argument expression) against its OWN scope while a child
// compiler otherwise owns parsing — the same cursor hand-off
// finishChildClosure uses once the child's body is done.
func (c *Compiler) syncFrom(other *Compiler) {
	c.cur = other.cur
	c.nxt = other.nxt
}

// finishChildClosure closes out a child Compiler's function body,
// resynchronizes the parent's token cursor to wherever the child left
// off, interns the child's Fn as a constant in the parent, and emits
// MAKE_CLOSURE with one (isLocal, index) pair per captured upvalue
// (spec.md §4.8). The child's own top-level locals are never POPped
// explicitly: RETURN tears down the whole frame, and the VM closes any
// upvalues pointing into it as part of that teardown.
func (c *Compiler) finishChildClosure(child *Compiler, line int) {
	c.cur = child.cur
	c.nxt = child.nxt

	idx := c.addConstant(value.Obj(child.fn))
	child.fn.UpvalueCount = len(child.upvalues)

	isLocal := make([]bool, len(child.upvalues))
	index := make([]byte, len(child.upvalues))
	for i, uv := range child.upvalues {
		isLocal[i] = uv.isLocal
		index[i] = byte(uv.index)
	}
	c.writer.EmitClosure(bytecode.OpMakeClosure, uint16(idx), isLocal, index, line)
}

// finishChildClosureWithDefaults is finishChildClosure's counterpart for
// a function that declared one or more `name = expr` parameters: the
// caller has already compiled each default expression against the
// PARENT's own scope, pushing defaultCount values that
// MAKE_CLOSURE_WITH_DEF_ARGS pops into the new Closure's Defaults, in
// parameter order, each time the closure is (re-)created (spec.md §4.2).
func (c *Compiler) finishChildClosureWithDefaults(child *Compiler, defaultCount int, line int) {
	c.cur = child.cur
	c.nxt = child.nxt

	idx := c.addConstant(value.Obj(child.fn))
	child.fn.UpvalueCount = len(child.upvalues)

	isLocal := make([]bool, len(child.upvalues))
	index := make([]byte, len(child.upvalues))
	for i, uv := range child.upvalues {
		isLocal[i] = uv.isLocal
		index[i] = byte(uv.index)
	}
	c.writer.EmitClosureWithDefaults(uint16(idx), byte(defaultCount), isLocal, index, line)
}

// compileFunctionExpr compiles `def [name](params...) { body }` as an
// expression, leaving the resulting closure on the stack. name is the
// fallback name; an identifier right after `def` (as in every `def`
// statement, which passes "") takes precedence, and a non-empty name is
// bound as a local so recursive calls inside the body resolve it
// (spec.md §4.3).
//
// Parameter names are declared as locals of the CHILD (the function
// being defined); a parameter's default-value expression, by contrast,
// must see the PARENT's locals/upvalues (a default can't reference its
// own or a sibling parameter), so it is compiled against c, not child,
// with the shared token cursor handed back and forth around each one.
func (c *Compiler) compileFunctionExpr(name string) *Compiler {
	line := c.cur.Line
	c.advance() // 'def'

	fnName := name
	if c.check(lexer.Identifier) {
		fnName = c.cur.Literal
		c.advance()
	}
	c.expect(lexer.LParen, "'(' after function name")

	child := c.newChildCompiler(fnName)
	if fnName != "" {
		// A named function expression can call itself by name from
		// within its own body; reserve slot 0 for it, marked
		// initialized before any parameter is declared.
		child.declareLocal(fnName, true, line)
		child.markInitialized()
		child.fn.ReservesSelf = true
	}

	defaultCount := 0
	for !child.check(lexer.RParen) {
		paramLine := child.cur.Line
		paramName := child.expect(lexer.Identifier, "parameter name").Literal
		child.declareLocal(paramName, false, paramLine)
		child.markInitialized()
		child.fn.Arity++
		if child.match(lexer.Assign) {
			c.syncFrom(child)
			c.compileExpression(precAssignment)
			child.syncFrom(c)
			defaultCount++
		}
		if !child.match(lexer.Comma) {
			break
		}
	}
	child.expect(lexer.RParen, "')'")

	child.expect(lexer.LBrace, "'{' to begin function body")
	for !child.check(lexer.RBrace) {
		child.compileStatement()
	}
	child.expect(lexer.RBrace, "'}' to end function body")
	child.writer.Op(bytecode.OpLoadNull, child.cur.Line)
	child.writer.Op(bytecode.OpReturn, child.cur.Line)

	if defaultCount > 0 {
		c.finishChildClosureWithDefaults(child, defaultCount, line)
	} else {
		c.finishChildClosure(child, line)
	}
	return child
}

// compileMethodExpr compiles a class body member `def name(params...) {
// body }` the way compileFunctionExpr compiles a standalone function
// expression, except slot 0 is unconditionally reserved for the
// receiver rather than for self-recursion-by-name: inside a method
// body, `self` resolves through ordinary name lookup (compileNamedLoad
// in parse_expr.go), so it must actually be bound to a local, and that
// local has to live at slot 0 the same way a named function's own name
// does. A method's name is never itself bound as a local — Pyro has no
// "call myself by my own method name, unqualified" form; recursion
// inside a method body goes through self:name(...).
func (c *Compiler) compileMethodExpr(name string) *Compiler {
	line := c.cur.Line
	c.advance() // 'def'

	if c.check(lexer.Identifier) {
		c.advance() // method name already known to the caller (memberName)
	}
	c.expect(lexer.LParen, "'(' after method name")

	child := c.newChildCompiler(name)
	child.declareLocal("self", true, line)
	child.markInitialized()
	child.fn.ReservesSelf = true

	defaultCount := 0
	for !child.check(lexer.RParen) {
		paramLine := child.cur.Line
		paramName := child.expect(lexer.Identifier, "parameter name").Literal
		child.declareLocal(paramName, false, paramLine)
		child.markInitialized()
		child.fn.Arity++
		if child.match(lexer.Assign) {
			c.syncFrom(child)
			c.compileExpression(precAssignment)
			child.syncFrom(c)
			defaultCount++
		}
		if !child.match(lexer.Comma) {
			break
		}
	}
	child.expect(lexer.RParen, "')'")

	child.expect(lexer.LBrace, "'{' to begin method body")
	for !child.check(lexer.RBrace) {
		child.compileStatement()
	}
	child.expect(lexer.RBrace, "'}' to end method body")
	child.writer.Op(bytecode.OpLoadNull, child.cur.Line)
	child.writer.Op(bytecode.OpReturn, child.cur.Line)

	if defaultCount > 0 {
		c.finishChildClosureWithDefaults(child, defaultCount, line)
	} else {
		c.finishChildClosure(child, line)
	}
	return child
}
