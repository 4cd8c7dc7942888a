package compiler

import (
	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/lexer"
)

// compileNamedAssignment compiles `name = expr`, `name += expr`, and
// `name -= expr` once compilePrefix has already consumed the bare
// identifier and recognized one of those three tokens follows (spec.md
// §4.2). For `+=`/`-=` it loads the current value first so an ADD or
// SUBTRACT can combine it with the right-hand side before storing.
func (c *Compiler) compileNamedAssignment(name string, line int) {
	op := c.cur.Kind
	c.advance()

	localIdx, isLocal := c.resolveLocal(name)
	var upvalIdx int
	var isUpval, upvalConst bool
	if !isLocal {
		upvalIdx, isUpval, upvalConst = c.resolveUpvalue(name)
	}

	if isLocal && c.locals[localIdx].constant {
		panic(c.errorf(line, "cannot assign to '%s': declared with 'let'", name))
	}
	if isUpval && upvalConst {
		panic(c.errorf(line, "cannot assign to '%s': declared with 'let'", name))
	}

	if op != lexer.Assign {
		c.compileNamedLoad(name, line)
	}
	c.compileExpression(precAssignment)
	if op == lexer.PlusEq {
		c.writer.Op(bytecode.OpAdd, line)
	} else if op == lexer.MinusEq {
		c.writer.Op(bytecode.OpSubtract, line)
	}

	switch {
	case isLocal:
		if !c.locals[localIdx].initialized {
			panic(c.errorf(line, "cannot assign to '%s' in its own initializer", name))
		}
		c.emitSetLocal(localIdx, line)
	case isUpval:
		c.writer.Op2(bytecode.OpSetUpvalue, uint16(upvalIdx), line)
	default:
		idx := c.stringConstant(name)
		root := c
		for root.enclosing != nil {
			root = root.enclosing
		}
		root.globalAssignments = append(root.globalAssignments, globalAssignment{name: name, line: line})
		c.writer.Op2(bytecode.OpSetGlobal, uint16(idx), line)
	}
}
