package compiler

import (
	"strconv"

	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/lexer"
	"github.com/pyro-lang/pyro/pkg/value"
)

// Precedence levels, low to high, per spec.md §4.2's grammar table.
const (
	precNone = iota
	precAssignment
	precTernary
	precLogicalOr  // ||, ??, !!
	precLogicalAnd // &&
	precEquality   // ==, !=
	precRelational // <, <=, >, >=, in
	precAdditive
	precMultiplicative
	precBitwise
	precUnary
	precPower
	precCall // call / index / dot / colon / ::
)

func infixPrecedence(k lexer.Kind) int {
	switch k {
	case lexer.Assign, lexer.PlusEq, lexer.MinusEq:
		return precAssignment
	case lexer.Question:
		return precTernary
	case lexer.OrOr, lexer.QuestionQuestion, lexer.BangBang:
		return precLogicalOr
	case lexer.AndAnd:
		return precLogicalAnd
	case lexer.EqEq, lexer.NotEq:
		return precEquality
	case lexer.Lt, lexer.Le, lexer.Gt, lexer.Ge, lexer.In:
		return precRelational
	case lexer.Plus, lexer.Minus:
		return precAdditive
	case lexer.Star, lexer.Slash, lexer.SlashSlash, lexer.Percent:
		return precMultiplicative
	case lexer.Amp, lexer.Pipe, lexer.Caret, lexer.Shl, lexer.Shr:
		return precBitwise
	case lexer.StarStar:
		return precPower
	case lexer.LParen, lexer.LBracket, lexer.Dot, lexer.Colon, lexer.ColonColon:
		return precCall
	default:
		return precNone
	}
}

// compileExpression parses and emits an expression at or above minPrec.
// canAssign (minPrec <= precAssignment) tells compilePrefix whether a
// bare identifier may be the target of `=`/`+=`/`-=` rather than always
// being compiled as a load: without this, `x = 5` would already have
// emitted a GET for `x` before the `=` was even seen.
func (c *Compiler) compileExpression(minPrec int) {
	canAssign := minPrec <= precAssignment
	c.compilePrefix(canAssign)
	for {
		prec := infixPrecedence(c.cur.Kind)
		if prec < minPrec || prec == precNone {
			return
		}
		c.compileInfix(prec)
	}
}

func (c *Compiler) compilePrefix(canAssign bool) {
	line := c.cur.Line
	switch c.cur.Kind {
	case lexer.Integer:
		n, err := intLiteral(c.cur.Literal)
		if err != nil {
			panic(c.errorf(line, "invalid integer literal %q", c.cur.Literal))
		}
		c.advance()
		c.emitLoadI64(n, line)
	case lexer.Float:
		f, err := strconv.ParseFloat(c.cur.Literal, 64)
		if err != nil {
			panic(c.errorf(line, "invalid float literal %q", c.cur.Literal))
		}
		c.advance()
		c.emitLoadConstantIndex(c.addConstant(value.F64(f)), line)
	case lexer.Rune:
		r := []rune(c.cur.Literal)
		if len(r) == 0 {
			panic(c.errorf(line, "empty rune literal"))
		}
		c.advance()
		c.emitLoadConstantIndex(c.addConstant(value.Rune(r[0])), line)
	case lexer.RawString:
		lit := c.cur.Literal
		c.advance()
		c.emitLoadConstantIndex(c.stringConstant(lit), line)
	case lexer.StringFragment, lexer.StringFragmentFinal:
		c.compileInterpolatedString()
	case lexer.True:
		c.advance()
		c.writer.Op(bytecode.OpLoadTrue, line)
	case lexer.False:
		c.advance()
		c.writer.Op(bytecode.OpLoadFalse, line)
	case lexer.Null:
		c.advance()
		c.writer.Op(bytecode.OpLoadNull, line)
	case lexer.Self:
		c.advance()
		c.compileNamedLoad("self", line)
	case lexer.Super:
		c.compileSuperAccess()
	case lexer.Identifier:
		name := c.cur.Literal
		c.advance()
		if canAssign && (c.check(lexer.Assign) || c.check(lexer.PlusEq) || c.check(lexer.MinusEq)) {
			c.compileNamedAssignment(name, line)
		} else {
			c.compileNamedLoad(name, line)
		}
	case lexer.LParen:
		c.compileParenOrTuple()
	case lexer.LBracket:
		c.compileVecLiteral()
	case lexer.LBrace:
		c.compileMapOrSetLiteral()
	case lexer.Def:
		c.compileFunctionExpr("")
	case lexer.Minus:
		c.advance()
		c.compileExpression(precUnary)
		c.writer.Op(bytecode.OpNegate, line)
	case lexer.Plus:
		c.advance()
		c.compileExpression(precUnary)
	case lexer.Bang:
		c.advance()
		c.compileExpression(precUnary)
		c.writer.Op(bytecode.OpNot, line)
	case lexer.Tilde:
		c.advance()
		c.compileExpression(precUnary)
		c.writer.Op(bytecode.OpBitwiseNot, line)
	case lexer.Try:
		c.compileTryExpr()
	default:
		panic(c.errorf(line, "unexpected token %q in expression", c.cur.Literal))
	}
}

// compileNamedLoad resolves name through locals, then upvalues, then
// falls back to a global lookup (spec.md §4.2's resolution order).
func (c *Compiler) compileNamedLoad(name string, line int) {
	if idx, ok := c.resolveLocal(name); ok {
		c.emitGetLocal(idx, line)
		return
	}
	if idx, ok, _ := c.resolveUpvalue(name); ok {
		c.writer.Op2(bytecode.OpGetUpvalue, uint16(idx), line)
		return
	}
	c.writer.Op2(bytecode.OpGetGlobal, uint16(c.stringConstant(name)), line)
}

func (c *Compiler) compileInfix(prec int) {
	line := c.cur.Line
	op := c.cur.Kind

	switch op {
	case lexer.Assign, lexer.PlusEq, lexer.MinusEq:
		// Identifier targets are consumed directly in compilePrefix via
		// compileNamedAssignment; dot targets check for '=', '+=' and '-='
		// inline in compileDotAccess, index targets for '=' in
		// compileIndex. Reaching here means the LHS
		// was some other, non-assignable expression.
		panic(c.errorf(line, "invalid assignment target"))
	case lexer.Question:
		c.compileTernary(line)
		return
	case lexer.QuestionQuestion:
		c.advance()
		// `??` short-circuits when the left operand is non-null.
		jmp := c.writer.EmitJump(bytecode.OpJumpIfNotNull, line)
		c.writer.Op(bytecode.OpPop, line)
		c.compileExpression(precLogicalOr + 1)
		c.patch(jmp)
		return
	case lexer.BangBang:
		c.advance()
		// `!!` short-circuits when the left operand is not an err.
		jmp := c.writer.EmitJump(bytecode.OpJumpIfNotErr, line)
		c.writer.Op(bytecode.OpPop, line)
		c.compileExpression(precLogicalOr + 1)
		c.patch(jmp)
		return
	case lexer.OrOr:
		c.advance()
		jmp := c.writer.EmitJump(bytecode.OpJumpIfTrue, line)
		c.writer.Op(bytecode.OpPop, line)
		c.compileExpression(precLogicalOr + 1)
		c.patch(jmp)
		return
	case lexer.AndAnd:
		c.advance()
		jmp := c.writer.EmitJump(bytecode.OpJumpIfFalse, line)
		c.writer.Op(bytecode.OpPop, line)
		c.compileExpression(precLogicalAnd + 1)
		c.patch(jmp)
		return
	case lexer.LParen:
		c.compileCall(line)
		return
	case lexer.LBracket:
		c.compileIndex(line)
		return
	case lexer.Dot:
		c.compileDotAccess(line)
		return
	case lexer.Colon:
		c.compileColonCall(line)
		return
	case lexer.ColonColon:
		c.compileNamespaceAccess(line)
		return
	}

	c.advance()
	nextMin := prec + 1
	if op == lexer.StarStar {
		nextMin = prec // right-associative
	}
	c.compileExpression(nextMin)
	c.emitBinaryOp(op, line)
}

func (c *Compiler) patch(offset int) {
	if err := c.writer.PatchJump(offset); err != nil {
		panic(c.errorf(c.cur.Line, "%s", err))
	}
}

func (c *Compiler) emitBinaryOp(op lexer.Kind, line int) {
	switch op {
	case lexer.Plus:
		c.writer.Op(bytecode.OpAdd, line)
	case lexer.Minus:
		c.writer.Op(bytecode.OpSubtract, line)
	case lexer.Star:
		c.writer.Op(bytecode.OpMultiply, line)
	case lexer.Slash:
		c.writer.Op(bytecode.OpDivide, line)
	case lexer.SlashSlash:
		c.writer.Op(bytecode.OpFloorDivide, line)
	case lexer.Percent:
		c.writer.Op(bytecode.OpModulo, line)
	case lexer.StarStar:
		c.writer.Op(bytecode.OpPower, line)
	case lexer.Amp:
		c.writer.Op(bytecode.OpBitwiseAnd, line)
	case lexer.Pipe:
		c.writer.Op(bytecode.OpBitwiseOr, line)
	case lexer.Caret:
		c.writer.Op(bytecode.OpBitwiseXor, line)
	case lexer.Shl:
		c.writer.Op(bytecode.OpShiftLeft, line)
	case lexer.Shr:
		c.writer.Op(bytecode.OpShiftRight, line)
	case lexer.Lt:
		c.writer.Op(bytecode.OpLess, line)
	case lexer.Le:
		c.writer.Op(bytecode.OpLessEqual, line)
	case lexer.Gt:
		c.writer.Op(bytecode.OpGreater, line)
	case lexer.Ge:
		c.writer.Op(bytecode.OpGreaterEqual, line)
	case lexer.EqEq:
		c.writer.Op(bytecode.OpEqualEqual, line)
	case lexer.NotEq:
		c.writer.Op(bytecode.OpBangEqual, line)
	case lexer.In:
		c.writer.Op(bytecode.OpBinaryIn, line)
	default:
		panic(c.errorf(line, "unsupported binary operator %q", op.String()))
	}
}

// compileTernary compiles `cond ? then : else`.
func (c *Compiler) compileTernary(line int) {
	c.advance() // '?'
	thenJump := c.writer.EmitJump(bytecode.OpJumpIfFalse, line)
	c.writer.Op(bytecode.OpPop, line)
	c.compileExpression(precAssignment)
	elseJump := c.writer.EmitJump(bytecode.OpJump, line)
	c.patch(thenJump)
	c.writer.Op(bytecode.OpPop, line)
	c.expect(lexer.Colon, "':' in ternary expression")
	c.compileExpression(precAssignment)
	c.patch(elseJump)
}

// compileTryExpr compiles `try expr` into a synthetic zero-arg closure
// invoked via TRY (spec.md §4.2/§4.8): the closure's body is the
// expression itself, ending in RETURN.
func (c *Compiler) compileTryExpr() {
	line := c.cur.Line
	c.advance() // 'try'
	child := c.newChildCompiler("$try")
	child.compileExpression(precUnary)
	child.writer.Op(bytecode.OpReturn, child.cur.Line)
	c.finishChildClosure(child, line)
	c.writer.Op(bytecode.OpTry, line)
}

func (c *Compiler) compileParenOrTuple() {
	line := c.cur.Line
	c.advance() // '('
	if c.check(lexer.RParen) {
		c.advance()
		c.writer.Op2(bytecode.OpMakeTup, 0, line)
		return
	}
	c.compileExpression(precAssignment)
	count := 1
	for c.match(lexer.Comma) {
		if c.check(lexer.RParen) {
			break
		}
		c.compileExpression(precAssignment)
		count++
	}
	c.expect(lexer.RParen, "')'")
	if count > 1 {
		c.writer.Op2(bytecode.OpMakeTup, uint16(count), line)
	}
}

func (c *Compiler) compileVecLiteral() {
	line := c.cur.Line
	c.advance() // '['
	count := 0
	for !c.check(lexer.RBracket) {
		c.compileExpression(precAssignment)
		count++
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.expect(lexer.RBracket, "']'")
	c.writer.Op2(bytecode.OpMakeVec, uint16(count), line)
}

// compileMapOrSetLiteral compiles `{k: v, ...}` as a map and `{e, ...}`
// (no colons) as a set; `{}` is the empty map.
func (c *Compiler) compileMapOrSetLiteral() {
	line := c.cur.Line
	c.advance() // '{'
	if c.check(lexer.RBrace) {
		c.advance()
		c.writer.Op2(bytecode.OpMakeMap, 0, line)
		return
	}
	c.compileExpression(precAssignment)
	isMap := c.check(lexer.Colon)
	count := 1
	if isMap {
		c.advance()
		c.compileExpression(precAssignment)
	}
	for c.match(lexer.Comma) {
		if c.check(lexer.RBrace) {
			break
		}
		c.compileExpression(precAssignment)
		if isMap {
			c.expect(lexer.Colon, "':' in map literal")
			c.compileExpression(precAssignment)
		}
		count++
	}
	c.expect(lexer.RBrace, "'}'")
	if isMap {
		c.writer.Op2(bytecode.OpMakeMap, uint16(count), line)
	} else {
		c.writer.Op2(bytecode.OpMakeSet, uint16(count), line)
	}
}

// compileInterpolatedString compiles the StringFragment/
// StringFragmentFinal/expression/FormatSpecifier token sequence the
// lexer produces for a "..." literal into a sequence of STRINGIFY/
// FORMAT and CONCAT_STRINGS opcodes (spec.md §4.2, §6).
func (c *Compiler) compileInterpolatedString() {
	line := c.cur.Line
	parts := 0
	for {
		switch c.cur.Kind {
		case lexer.StringFragment:
			c.emitLoadConstantIndex(c.stringConstant(c.cur.Literal), line)
			c.advance()
			parts++
			c.compileExpression(precAssignment)
			if c.check(lexer.FormatSpecifier) {
				spec := c.cur.Literal
				c.advance()
				c.emitLoadConstantIndex(c.stringConstant(spec), line)
				c.writer.Op1(bytecode.OpFormat, 1, line)
			} else {
				c.writer.Op(bytecode.OpStringify, line)
			}
			parts++
		case lexer.StringFragmentFinal:
			c.emitLoadConstantIndex(c.stringConstant(c.cur.Literal), line)
			c.advance()
			parts++
			if parts > 1 {
				c.writer.Op2(bytecode.OpConcatStrings, uint16(parts), line)
			}
			return
		default:
			panic(c.errorf(line, "malformed string literal"))
		}
	}
}

func (c *Compiler) compileCall(line int) {
	c.advance() // '('
	argc := 0
	for !c.check(lexer.RParen) {
		c.compileExpression(precAssignment)
		argc++
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.expect(lexer.RParen, "')'")
	c.emitCallValue(argc, line)
}

func (c *Compiler) compileIndex(line int) {
	c.advance() // '['
	c.compileExpression(precAssignment)
	c.expect(lexer.RBracket, "']'")
	if c.check(lexer.Assign) {
		c.advance()
		c.compileExpression(precAssignment)
		c.writer.Op(bytecode.OpSetIndex, line)
		return
	}
	c.writer.Op(bytecode.OpGetIndex, line)
}

// compileDotAccess compiles `recv.field`, `recv.field = v` and
// `recv.field += v` / `-= v`. Inside a class body it emits the
// private-capable GET_FIELD/SET_FIELD; elsewhere GET_PUB_FIELD/
// SET_PUB_FIELD. Module members are reached with `::`
// (compileNamespaceAccess), not with `.`.
func (c *Compiler) compileDotAccess(line int) {
	c.advance() // '.'
	name := c.expect(lexer.Identifier, "field name").Literal
	idx := c.stringConstant(name)
	getOp, setOp := bytecode.OpGetPubField, bytecode.OpSetPubField
	if c.class != nil {
		getOp, setOp = bytecode.OpGetField, bytecode.OpSetField
	}
	if c.check(lexer.Assign) {
		c.advance()
		c.compileExpression(precAssignment)
		c.writer.Op2(setOp, uint16(idx), line)
		return
	}
	if c.check(lexer.PlusEq) || c.check(lexer.MinusEq) {
		combine := bytecode.OpAdd
		if c.check(lexer.MinusEq) {
			combine = bytecode.OpSubtract
		}
		c.advance()
		c.writer.Op(bytecode.OpDup, line)
		c.writer.Op2(getOp, uint16(idx), line)
		c.compileExpression(precAssignment)
		c.writer.Op(combine, line)
		c.writer.Op2(setOp, uint16(idx), line)
		return
	}
	c.writer.Op2(getOp, uint16(idx), line)
}

// compileColonCall compiles `recv:method(args...)`, the private-capable
// method-call syntax (spec.md's worked example #3: `c:tick()`).
func (c *Compiler) compileColonCall(line int) {
	c.advance() // ':'
	name := c.expect(lexer.Identifier, "method name").Literal
	idx := c.stringConstant(name)
	c.expect(lexer.LParen, "'(' after method name")
	argc := 0
	for !c.check(lexer.RParen) {
		c.compileExpression(precAssignment)
		argc++
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.expect(lexer.RParen, "')'")
	c.writer.OpNameArg(bytecode.OpCallMethod, uint16(idx), byte(argc), line)
}

func (c *Compiler) compileNamespaceAccess(line int) {
	c.advance() // '::'
	name := c.expect(lexer.Identifier, "name after '::'").Literal
	idx := c.stringConstant(name)
	c.writer.Op2(bytecode.OpGetMember, uint16(idx), line)
}

// compileSuperAccess compiles `super:name(args...)` (spec.md §4.2):
// LOAD self, push args, CALL_SUPER_METHOD. No superclass value is
// pushed; the VM takes the superclass from the running closure's
// HomeClass.
func (c *Compiler) compileSuperAccess() {
	line := c.cur.Line
	c.advance() // 'super'
	if c.class == nil || !c.class.hasSuperclass {
		panic(c.errorf(line, "'super' used outside of a subclass"))
	}
	c.compileNamedLoad("self", line)
	c.expect(lexer.Colon, "':' after 'super'")
	name := c.expect(lexer.Identifier, "method name").Literal
	idx := c.stringConstant(name)
	c.expect(lexer.LParen, "'(' after method name")
	argc := 0
	for !c.check(lexer.RParen) {
		c.compileExpression(precAssignment)
		argc++
		if !c.match(lexer.Comma) {
			break
		}
	}
	c.expect(lexer.RParen, "')'")
	c.writer.OpNameArg(bytecode.OpCallSuperMethod, uint16(idx), byte(argc), line)
}
