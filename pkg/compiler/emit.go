package compiler

import "github.com/pyro-lang/pyro/pkg/bytecode"

// The small-index specialization tables below implement spec.md §4.2's
// "small-integer and small-constant-index instructions ... are selected
// when the operand fits" rule.

var loadI64Specials = [10]bytecode.Opcode{
	bytecode.OpLoadI64_0, bytecode.OpLoadI64_1, bytecode.OpLoadI64_2, bytecode.OpLoadI64_3,
	bytecode.OpLoadI64_4, bytecode.OpLoadI64_5, bytecode.OpLoadI64_6, bytecode.OpLoadI64_7,
	bytecode.OpLoadI64_8, bytecode.OpLoadI64_9,
}

var loadConstantSpecials = [10]bytecode.Opcode{
	bytecode.OpLoadConstant_0, bytecode.OpLoadConstant_1, bytecode.OpLoadConstant_2, bytecode.OpLoadConstant_3,
	bytecode.OpLoadConstant_4, bytecode.OpLoadConstant_5, bytecode.OpLoadConstant_6, bytecode.OpLoadConstant_7,
	bytecode.OpLoadConstant_8, bytecode.OpLoadConstant_9,
}

var getLocalSpecials = [10]bytecode.Opcode{
	bytecode.OpGetLocal_0, bytecode.OpGetLocal_1, bytecode.OpGetLocal_2, bytecode.OpGetLocal_3,
	bytecode.OpGetLocal_4, bytecode.OpGetLocal_5, bytecode.OpGetLocal_6, bytecode.OpGetLocal_7,
	bytecode.OpGetLocal_8, bytecode.OpGetLocal_9,
}

var setLocalSpecials = [10]bytecode.Opcode{
	bytecode.OpSetLocal_0, bytecode.OpSetLocal_1, bytecode.OpSetLocal_2, bytecode.OpSetLocal_3,
	bytecode.OpSetLocal_4, bytecode.OpSetLocal_5, bytecode.OpSetLocal_6, bytecode.OpSetLocal_7,
	bytecode.OpSetLocal_8, bytecode.OpSetLocal_9,
}

var callValueSpecials = [10]bytecode.Opcode{
	bytecode.OpCallValue_0, bytecode.OpCallValue_1, bytecode.OpCallValue_2, bytecode.OpCallValue_3,
	bytecode.OpCallValue_4, bytecode.OpCallValue_5, bytecode.OpCallValue_6, bytecode.OpCallValue_7,
	bytecode.OpCallValue_8, bytecode.OpCallValue_9,
}

func (c *Compiler) emitLoadI64(n int64, line int) {
	if n >= 0 && n < 10 {
		c.writer.Op(loadI64Specials[n], line)
		return
	}
	idx := c.addConstant(i64Value(n))
	c.emitLoadConstantIndex(idx, line)
}

func (c *Compiler) emitLoadConstantIndex(idx int, line int) {
	if idx < 10 {
		c.writer.Op(loadConstantSpecials[idx], line)
		return
	}
	c.writer.Op2(bytecode.OpLoadConstant, uint16(idx), line)
}

func (c *Compiler) emitGetLocal(slot int, line int) {
	if slot < 10 {
		c.writer.Op(getLocalSpecials[slot], line)
		return
	}
	c.writer.Op1(bytecode.OpGetLocal, byte(slot), line)
}

func (c *Compiler) emitSetLocal(slot int, line int) {
	if slot < 10 {
		c.writer.Op(setLocalSpecials[slot], line)
		return
	}
	c.writer.Op1(bytecode.OpSetLocal, byte(slot), line)
}

func (c *Compiler) emitCallValue(argc int, line int) {
	if argc < 10 {
		c.writer.Op(callValueSpecials[argc], line)
		return
	}
	c.writer.Op1(bytecode.OpCallValue, byte(argc), line)
}
