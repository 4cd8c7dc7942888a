package compiler

import (
	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/lexer"
)

// compileStatement recognizes and emits one top-level or block-level
// statement, returning the Code offset of a trailing POP if one was
// emitted (replMode uses this to echo the last expression statement's
// value instead of discarding it).
func (c *Compiler) compileStatement() int {
	switch c.cur.Kind {
	case lexer.Pub, lexer.Pri:
		return c.compileVisibilityStatement()
	case lexer.Var, lexer.Let:
		c.compileVarDecl(c.cur.Kind == lexer.Let, true)
		return -1
	case lexer.Def:
		c.compileDefStatement(true)
		return -1
	case lexer.Class:
		c.compileClassStatement(true)
		return -1
	case lexer.Enum:
		c.compileEnumStatement(true)
		return -1
	case lexer.If:
		c.compileIfStatement()
		return -1
	case lexer.While:
		c.compileWhileStatement()
		return -1
	case lexer.Loop:
		c.compileLoopStatement()
		return -1
	case lexer.For:
		c.compileForInStatement()
		return -1
	case lexer.Echo:
		c.compileEchoStatement()
		return -1
	case lexer.Assert:
		c.compileAssertStatement()
		return -1
	case lexer.Break:
		c.compileBreakStatement()
		return -1
	case lexer.Continue:
		c.compileContinueStatement()
		return -1
	case lexer.Return:
		c.compileReturnStatement()
		return -1
	case lexer.Import:
		c.compileImportStatement()
		return -1
	case lexer.With:
		c.compileWithStatement()
		return -1
	case lexer.LBrace:
		c.beginScope()
		line := c.cur.Line
		c.advance()
		for !c.check(lexer.RBrace) && !c.check(lexer.EOF) {
			c.compileStatement()
		}
		c.expect(lexer.RBrace, "'}'")
		c.endScope(line)
		return -1
	case lexer.Semi:
		c.advance()
		return -1
	default:
		return c.compileExpressionStatement()
	}
}

// compileVisibilityStatement handles a leading `pub`/`pri` marker, valid
// only at module top level ahead of `var`, `let`, `def`, `class`, or
// `enum` (spec.md §4.2's global-visibility declarations).
func (c *Compiler) compileVisibilityStatement() int {
	line := c.cur.Line
	if c.scopeDepth > 0 {
		panic(c.errorf(line, "'%s' is only valid at module top level", c.cur.Literal))
	}
	public := c.cur.Kind == lexer.Pub
	c.advance()
	switch c.cur.Kind {
	case lexer.Var, lexer.Let:
		c.compileVarDeclGlobalVisibility(c.cur.Kind == lexer.Let, public)
	case lexer.Def:
		c.compileDefStatementGlobalVisibility(public)
	case lexer.Class:
		c.compileClassStatementGlobalVisibility(public)
	case lexer.Enum:
		c.compileEnumStatementGlobalVisibility(public)
	default:
		panic(c.errorf(line, "expected a declaration after '%s'", map[bool]string{true: "pub", false: "pri"}[public]))
	}
	return -1
}

func (c *Compiler) compileVarDecl(constant, defaultPublic bool) {
	c.compileVarDeclGlobalVisibility(constant, defaultPublic)
}

// compileVarDeclGlobalVisibility compiles `var name = expr;` / `let name
// = expr;`, as a local declaration inside a scope or a global definition
// at top level. public only matters at top level.
func (c *Compiler) compileVarDeclGlobalVisibility(constant, public bool) {
	line := c.cur.Line
	c.advance() // 'var'/'let'
	name := c.expect(lexer.Identifier, "variable name").Literal

	if c.match(lexer.Assign) {
		c.compileExpression(precAssignment)
	} else {
		if constant {
			panic(c.errorf(line, "'let' declaration requires an initializer"))
		}
		c.writer.Op(bytecode.OpLoadNull, line)
	}
	c.expectSemi()

	if c.scopeDepth == 0 {
		idx := c.stringConstant(name)
		if constant {
			c.globalConstants[name] = true
		}
		if public {
			c.writer.Op2(bytecode.OpDefinePubGlobal, uint16(idx), line)
		} else {
			c.writer.Op2(bytecode.OpDefinePriGlobal, uint16(idx), line)
		}
		return
	}
	c.declareLocal(name, constant, line)
	c.markInitialized()
}

func (c *Compiler) expectSemi() {
	c.expect(lexer.Semi, "';'")
}

// compileDefStatement compiles `def name(params) { body }` as a
// statement: the closure is bound to a local or global of the same
// name (spec.md §4.3). At top level the global is public when
// defaultPublic is set (compileStatement always sets it); inside a
// scope it becomes a local. Explicit pub/pri prefixes are handled by
// compileVisibilityStatement.
func (c *Compiler) compileDefStatement(defaultPublic bool) {
	c.compileDefStatementGlobalVisibility(defaultPublic && c.scopeDepth == 0)
}

func (c *Compiler) compileDefStatementGlobalVisibility(public bool) {
	line := c.cur.Line
	nameTok := peekAfter(c, lexer.Def)
	c.compileFunctionExpr("")
	if c.scopeDepth == 0 {
		idx := c.stringConstant(nameTok)
		if public {
			c.writer.Op2(bytecode.OpDefinePubGlobal, uint16(idx), line)
		} else {
			c.writer.Op2(bytecode.OpDefinePriGlobal, uint16(idx), line)
		}
		return
	}
	slot := c.declareLocal(nameTok, false, line)
	c.markInitialized()
	c.emitSetLocal(slot, line)
	c.writer.Op(bytecode.OpPop, line)
}

// peekAfter returns the identifier naming a `def`/`class`/`enum`
// declaration without consuming anything beyond what compileFunctionExpr
// itself will re-walk; since the grammar requires `def NAME(`, the name
// always follows immediately.
func peekAfter(c *Compiler, kw lexer.Kind) string {
	if c.nxt.Kind != lexer.Identifier {
		panic(c.errorf(c.cur.Line, "expected a name after '%s'", kw.String()))
	}
	return c.nxt.Literal
}

// compileClassStatement compiles `class Name [extends Super] { members }`.
func (c *Compiler) compileClassStatement(defaultPublic bool) {
	c.compileClassStatementGlobalVisibility(defaultPublic && c.scopeDepth == 0)
}

func (c *Compiler) compileClassStatementGlobalVisibility(public bool) {
	line := c.cur.Line
	c.advance() // 'class'
	name := c.expect(lexer.Identifier, "class name").Literal

	enclosingClass := c.class

	c.emitLoadConstantIndex(c.stringConstant(name), line)
	c.writer.Op(bytecode.OpMakeClass, line)

	hasSuper := c.match(lexer.Extends)
	if hasSuper {
		c.compileExpression(precCall)
		c.writer.Op(bytecode.OpInherit, line)
	}

	c.class = &classCtx{enclosing: enclosingClass, hasSuperclass: hasSuper}

	c.expect(lexer.LBrace, "'{' to begin class body")
	for !c.check(lexer.RBrace) {
		c.compileClassMember()
	}
	c.expect(lexer.RBrace, "'}' to end class body")

	c.class = enclosingClass

	if c.scopeDepth == 0 {
		idx := c.stringConstant(name)
		if public {
			c.writer.Op2(bytecode.OpDefinePubGlobal, uint16(idx), line)
		} else {
			c.writer.Op2(bytecode.OpDefinePriGlobal, uint16(idx), line)
		}
		return
	}
	slot := c.declareLocal(name, false, line)
	c.markInitialized()
	c.emitSetLocal(slot, line)
	c.writer.Op(bytecode.OpPop, line)
}

// compileClassMember compiles one `[pub|pri|static] def name(...) {...}`
// method or `[pub|pri|static] var name [= expr];` field inside a class
// body. The class value stays on the operand stack throughout; each
// DEFINE_* opcode pops the member's value and mutates the class beneath
// it in place (spec.md §3/§4.3).
func (c *Compiler) compileClassMember() {
	line := c.cur.Line
	visibility := lexer.Pri
	if c.check(lexer.Pub) || c.check(lexer.Pri) || c.check(lexer.Static) {
		visibility = c.cur.Kind
		c.advance()
	}

	switch c.cur.Kind {
	case lexer.Def:
		memberName := peekAfter(c, lexer.Def)
		if visibility == lexer.Static {
			// A static method has no receiver; it behaves like an
			// ordinary named function whose own name self-recurses.
			c.compileFunctionExpr(memberName)
		} else {
			c.compileMethodExpr(memberName)
		}
		idx := c.stringConstant(memberName)
		switch visibility {
		case lexer.Static:
			c.writer.Op2(bytecode.OpDefineStaticMethod, uint16(idx), line)
		case lexer.Pub:
			c.writer.Op2(bytecode.OpDefinePubMethod, uint16(idx), line)
		default:
			c.writer.Op2(bytecode.OpDefinePriMethod, uint16(idx), line)
		}
	case lexer.Var:
		c.advance()
		memberName := c.expect(lexer.Identifier, "field name").Literal
		if c.match(lexer.Assign) {
			c.compileExpression(precAssignment)
		} else {
			c.writer.Op(bytecode.OpLoadNull, line)
		}
		c.expectSemi()
		idx := c.stringConstant(memberName)
		switch visibility {
		case lexer.Static:
			c.writer.Op2(bytecode.OpDefineStaticField, uint16(idx), line)
		case lexer.Pub:
			c.writer.Op2(bytecode.OpDefinePubField, uint16(idx), line)
		default:
			c.writer.Op2(bytecode.OpDefinePriField, uint16(idx), line)
		}
	default:
		panic(c.errorf(line, "expected a method or field declaration in class %q", c.cur.Literal))
	}
}

// compileEnumStatement compiles `enum Name { A, B, C }` into MAKE_ENUM,
// whose packed operand pair is (name-constant-index, member-count); the
// member names follow as a run of string constants the VM reads off the
// constant pool starting at name-index+1 (spec.md §4.3's enum sugar for
// a set of named integer-valued singletons).
func (c *Compiler) compileEnumStatement(defaultPublic bool) {
	c.compileEnumStatementGlobalVisibility(defaultPublic && c.scopeDepth == 0)
}

func (c *Compiler) compileEnumStatementGlobalVisibility(public bool) {
	line := c.cur.Line
	c.advance() // 'enum'
	name := c.expect(lexer.Identifier, "enum name").Literal
	nameIdx := c.stringConstant(name)

	c.expect(lexer.LBrace, "'{' to begin enum body")
	count := 0
	for !c.check(lexer.RBrace) {
		member := c.expect(lexer.Identifier, "enum member name").Literal
		memberIdx := c.stringConstant(member)
		if memberIdx != nameIdx+1+count {
			panic(c.errorf(line, "enum member constants must be contiguous"))
		}
		count++
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.expect(lexer.RBrace, "'}' to end enum body")

	c.writer.Op4(bytecode.OpMakeEnum, uint16(nameIdx), uint16(count), line)

	if c.scopeDepth == 0 {
		if public {
			c.writer.Op2(bytecode.OpDefinePubGlobal, uint16(nameIdx), line)
		} else {
			c.writer.Op2(bytecode.OpDefinePriGlobal, uint16(nameIdx), line)
		}
		return
	}
	slot := c.declareLocal(name, false, line)
	c.markInitialized()
	c.emitSetLocal(slot, line)
	c.writer.Op(bytecode.OpPop, line)
}

func (c *Compiler) compileIfStatement() {
	line := c.cur.Line
	c.advance() // 'if'
	c.compileExpression(precAssignment)
	thenJump := c.writer.EmitJump(bytecode.OpJumpIfFalse, line)
	c.writer.Op(bytecode.OpPop, line)
	c.compileStatement()

	if c.check(lexer.Else) {
		elseLine := c.cur.Line
		elseJump := c.writer.EmitJump(bytecode.OpJump, elseLine)
		c.patch(thenJump)
		c.writer.Op(bytecode.OpPop, elseLine)
		c.advance() // 'else'
		c.compileStatement()
		c.patch(elseJump)
		return
	}
	c.patch(thenJump)
	c.writer.Op(bytecode.OpPop, line)
}

// pushLoop/popLoop manage the loop-context stack compileBreakStatement
// and compileContinueStatement consult.
func (c *Compiler) pushLoop(continueTarget int) *loopCtx {
	l := &loopCtx{continueTarget: continueTarget, scopeDepth: c.scopeDepth, withDepth: c.withDepth}
	c.loops = append(c.loops, l)
	return l
}

func (c *Compiler) popLoop() {
	c.loops = c.loops[:len(c.loops)-1]
}

func (c *Compiler) compileWhileStatement() {
	line := c.cur.Line
	c.advance() // 'while'
	loopStart := c.writer.Here()
	c.compileExpression(precAssignment)
	exitJump := c.writer.EmitJump(bytecode.OpJumpIfFalse, line)
	c.writer.Op(bytecode.OpPop, line)

	l := c.pushLoop(loopStart)
	c.compileStatement()
	bodyEndLine := c.cur.Line
	if err := c.writer.EmitLoop(bytecode.OpJumpBack, loopStart, bodyEndLine); err != nil {
		panic(c.errorf(bodyEndLine, "%s", err))
	}

	c.patch(exitJump)
	c.writer.Op(bytecode.OpPop, bodyEndLine)
	for _, b := range l.breaks {
		c.patch(b)
	}
	c.popLoop()
}

// compileLoopStatement compiles `loop { body }`, an unconditional loop
// whose only exits are `break` or a non-local `return` (spec.md's
// worked examples use this for `while true`-style server loops).
func (c *Compiler) compileLoopStatement() {
	c.advance() // 'loop'
	loopStart := c.writer.Here()
	l := c.pushLoop(loopStart)
	c.compileStatement()
	line := c.cur.Line
	if err := c.writer.EmitLoop(bytecode.OpJumpBack, loopStart, line); err != nil {
		panic(c.errorf(line, "%s", err))
	}
	for _, b := range l.breaks {
		c.patch(b)
	}
	c.popLoop()
}

// compileForInStatement compiles `for name in iterable { body }` using
// spec.md §4.8's iteration protocol: GET_ITERATOR once, then
// GET_NEXT_FROM_ITERATOR each pass, exiting when it returns an err. The
// iterator lives in an outer scope that spans the whole loop; the loop
// variable lives in an inner scope reopened and closed every pass so
// the same physical stack slot is reused without leaking across
// iterations.
func (c *Compiler) compileForInStatement() {
	line := c.cur.Line
	c.advance() // 'for'
	name := c.expect(lexer.Identifier, "loop variable name").Literal
	c.expect(lexer.In, "'in'")
	c.compileExpression(precAssignment)
	c.writer.Op(bytecode.OpGetIterator, line)

	c.beginScope()
	iterSlot := c.declareLocal("$iter", false, line)
	c.markInitialized()

	loopStart := c.writer.Here()
	itemLine := c.cur.Line
	c.emitGetLocal(iterSlot, itemLine)
	c.writer.Op(bytecode.OpGetNextFromIterator, itemLine)
	exitJump := c.writer.EmitJump(bytecode.OpJumpIfErr, itemLine)

	c.beginScope()
	c.declareLocal(name, false, itemLine)
	c.markInitialized()

	l := c.pushLoop(loopStart)
	c.compileStatement()
	c.endScope(c.cur.Line) // pops the loop variable (and any nested locals)

	bodyEndLine := c.cur.Line
	if err := c.writer.EmitLoop(bytecode.OpJumpBack, loopStart, bodyEndLine); err != nil {
		panic(c.errorf(bodyEndLine, "%s", err))
	}

	c.patch(exitJump)
	c.writer.Op(bytecode.OpPop, bodyEndLine) // discard the err sentinel
	for _, b := range l.breaks {
		c.patch(b)
	}
	c.popLoop()
	c.endScope(bodyEndLine) // pops $iter
}

func (c *Compiler) compileEchoStatement() {
	line := c.cur.Line
	c.advance() // 'echo'
	argc := 0
	for !c.check(lexer.Semi) {
		c.compileExpression(precAssignment)
		argc++
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.expectSemi()
	c.writer.Op1(bytecode.OpEcho, byte(argc), line)
}

func (c *Compiler) compileAssertStatement() {
	line := c.cur.Line
	c.advance() // 'assert'
	c.compileExpression(precAssignment)
	c.expectSemi()
	c.writer.Op(bytecode.OpAssert, line)
}

// compileBreakStatement emits END_WITH for every with-block opened
// since the enclosing loop started, then a placeholder BREAK jump the
// loop patches once its body finishes compiling (spec.md §4.8).
func (c *Compiler) compileBreakStatement() {
	line := c.cur.Line
	c.advance() // 'break'
	c.expectSemi()
	if len(c.loops) == 0 {
		panic(c.errorf(line, "'break' used outside of a loop"))
	}
	l := c.loops[len(c.loops)-1]
	for i := c.withDepth; i > l.withDepth; i-- {
		c.writer.Op(bytecode.OpEndWith, line)
	}
	jump := c.writer.EmitJump(bytecode.OpBreak, line)
	l.breaks = append(l.breaks, jump)
}

// compileContinueStatement unwinds pending with-blocks the same way,
// then jumps straight back to the loop's continueTarget.
func (c *Compiler) compileContinueStatement() {
	line := c.cur.Line
	c.advance() // 'continue'
	c.expectSemi()
	if len(c.loops) == 0 {
		panic(c.errorf(line, "'continue' used outside of a loop"))
	}
	l := c.loops[len(c.loops)-1]
	for i := c.withDepth; i > l.withDepth; i-- {
		c.writer.Op(bytecode.OpEndWith, line)
	}
	if err := c.writer.EmitLoop(bytecode.OpJumpBack, l.continueTarget, line); err != nil {
		panic(c.errorf(line, "%s", err))
	}
}

// compileReturnStatement compiles `return;`, `return expr;`, and
// `return e1, e2, ...;` (RETURN_TUPLE, spec.md §4.2).
func (c *Compiler) compileReturnStatement() {
	line := c.cur.Line
	c.advance() // 'return'
	if c.check(lexer.Semi) {
		c.writer.Op(bytecode.OpLoadNull, line)
		c.expectSemi()
		c.writer.Op(bytecode.OpReturn, line)
		return
	}
	c.compileExpression(precAssignment)
	count := 1
	for c.match(lexer.Comma) {
		c.compileExpression(precAssignment)
		count++
	}
	c.expectSemi()
	if count > 1 {
		c.writer.Op1(bytecode.OpReturnTuple, byte(count), line)
		return
	}
	c.writer.Op(bytecode.OpReturn, line)
}

// compileImportStatement compiles `import path;` and `import path as
// alias;` (IMPORT_MODULE) and `import path::{a, b};`
// (IMPORT_NAMED_MEMBERS, spec.md §4.9). IMPORT_NAMED_MEMBERS carries the
// path constant and the member count; the member names are the
// constants that directly follow the path, and the VM resolves the
// module itself before pushing each member.
func (c *Compiler) compileImportStatement() {
	line := c.cur.Line
	c.advance() // 'import'
	path := c.expect(lexer.Identifier, "module path").Literal
	named := false
	for c.match(lexer.ColonColon) {
		if c.check(lexer.LBrace) {
			named = true
			break
		}
		path += "::" + c.expect(lexer.Identifier, "module path segment").Literal
	}
	pathIdx := c.stringConstant(path)

	if named {
		c.advance() // '{'
		var members []string
		for !c.check(lexer.RBrace) {
			members = append(members, c.expect(lexer.Identifier, "imported member name").Literal)
			if !c.match(lexer.Comma) {
				break
			}
		}
		c.expect(lexer.RBrace, "'}'")
		c.expectSemi()

		for _, m := range members {
			c.stringConstant(m)
		}
		c.writer.Op4(bytecode.OpImportNamedMembers, uint16(pathIdx), uint16(len(members)), line)
		for _, m := range members {
			c.declareLocal(m, false, line)
			c.markInitialized()
		}
		return
	}

	alias := path
	if c.match(lexer.As) {
		alias = c.expect(lexer.Identifier, "module alias").Literal
	}
	c.expectSemi()
	c.writer.Op2(bytecode.OpImportModule, uint16(pathIdx), line)

	if c.scopeDepth == 0 {
		idx := c.stringConstant(alias)
		c.writer.Op2(bytecode.OpDefinePriGlobal, uint16(idx), line)
		return
	}
	slot := c.declareLocal(alias, false, line)
	c.markInitialized()
	c.emitSetLocal(slot, line)
	c.writer.Op(bytecode.OpPop, line)
}

// compileWithStatement compiles `with expr { body }` (spec.md §4.8):
// START_WITH pushes the resource onto the VM's with-stack, the body
// runs, and END_WITH invokes `$end_with()` on scope exit.
func (c *Compiler) compileWithStatement() {
	line := c.cur.Line
	c.advance() // 'with'
	c.compileExpression(precAssignment)
	c.writer.Op(bytecode.OpStartWith, line)
	c.withDepth++

	c.compileStatement()

	c.withDepth--
	c.writer.Op(bytecode.OpEndWith, c.cur.Line)
}

func (c *Compiler) compileExpressionStatement() int {
	line := c.cur.Line
	c.compileExpression(precAssignment)
	c.expectSemi()
	return c.writer.Op(bytecode.OpPop, line)
}
