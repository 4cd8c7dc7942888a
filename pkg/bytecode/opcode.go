// Package bytecode defines Pyro's instruction set and the low-level
// tools for emitting, disassembling, and serializing it: opcodes are
// single bytes, operands are 1 byte (small indices) or 2 bytes
// big-endian (constant-pool indices, jump offsets, collection counts),
// per spec.md §6.
package bytecode

// Opcode identifies a single bytecode instruction.
type Opcode byte

// The full instruction set, grouped the way spec.md §4.8 groups it.
const (
	// --- Stack ---
	OpPop Opcode = iota
	OpDup
	OpDup2
	OpPopEchoInRepl

	// --- Load ---
	OpLoadNull
	OpLoadTrue
	OpLoadFalse
	OpLoadI64_0
	OpLoadI64_1
	OpLoadI64_2
	OpLoadI64_3
	OpLoadI64_4
	OpLoadI64_5
	OpLoadI64_6
	OpLoadI64_7
	OpLoadI64_8
	OpLoadI64_9
	OpLoadConstant
	OpLoadConstant_0
	OpLoadConstant_1
	OpLoadConstant_2
	OpLoadConstant_3
	OpLoadConstant_4
	OpLoadConstant_5
	OpLoadConstant_6
	OpLoadConstant_7
	OpLoadConstant_8
	OpLoadConstant_9

	// --- Local / Upvalue / Global ---
	OpGetLocal
	OpGetLocal_0
	OpGetLocal_1
	OpGetLocal_2
	OpGetLocal_3
	OpGetLocal_4
	OpGetLocal_5
	OpGetLocal_6
	OpGetLocal_7
	OpGetLocal_8
	OpGetLocal_9
	OpSetLocal
	OpSetLocal_0
	OpSetLocal_1
	OpSetLocal_2
	OpSetLocal_3
	OpSetLocal_4
	OpSetLocal_5
	OpSetLocal_6
	OpSetLocal_7
	OpSetLocal_8
	OpSetLocal_9
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue
	OpGetGlobal
	OpSetGlobal
	OpDefinePubGlobal
	OpDefinePriGlobal
	OpDefinePubGlobals
	OpDefinePriGlobals

	// --- Arithmetic / Logic ---
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpFloorDivide
	OpModulo
	OpPower
	OpNegate
	OpNot
	OpBitwiseNot
	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseXor
	OpShiftLeft
	OpShiftRight
	OpI64Add

	// --- Comparison ---
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpEqualEqual
	OpBangEqual
	OpBinaryIn

	// --- Control flow ---
	OpJump
	OpJumpBack
	OpJumpIfTrue
	OpJumpIfFalse
	OpJumpIfErr
	OpJumpIfNotErr
	OpJumpIfNotNull
	OpPopJumpIfFalse
	OpBreak

	// --- Calls ---
	OpCallValue
	OpCallValue_0
	OpCallValue_1
	OpCallValue_2
	OpCallValue_3
	OpCallValue_4
	OpCallValue_5
	OpCallValue_6
	OpCallValue_7
	OpCallValue_8
	OpCallValue_9
	OpCallValueWithUnpack
	OpCallMethod
	OpCallMethodWithUnpack
	OpCallPubMethod
	OpCallPubMethodWithUnpack
	OpCallSuperMethod
	OpCallSuperMethodWithUnpack
	OpReturn
	OpReturnTuple

	// --- Classes ---
	OpMakeClass
	OpInherit
	OpDefinePubMethod
	OpDefinePriMethod
	OpDefineStaticMethod
	OpDefinePubField
	OpDefinePriField
	OpDefineStaticField
	OpGetField
	OpGetPubField
	OpSetField
	OpSetPubField
	OpGetMethod
	OpGetPubMethod
	OpGetSuperMethod

	// --- Modules / Import ---
	OpImportModule
	OpImportNamedMembers
	OpGetMember

	// --- Data construction ---
	OpMakeMap
	OpMakeSet
	OpMakeVec
	OpMakeTup
	OpMakeEnum
	OpMakeClosure
	OpMakeClosureWithDefArgs
	OpConcatStrings
	OpStringify
	OpFormat

	// --- Iteration ---
	OpGetIterator
	OpGetNextFromIterator

	// --- with ---
	OpStartWith
	OpEndWith

	// --- Misc ---
	OpEcho
	OpAssert
	OpTry
	OpUnpack
	OpGetIndex
	OpSetIndex
)

var opcodeNames = map[Opcode]string{
	OpPop: "POP", OpDup: "DUP", OpDup2: "DUP_2", OpPopEchoInRepl: "POP_ECHO_IN_REPL",
	OpLoadNull: "LOAD_NULL", OpLoadTrue: "LOAD_TRUE", OpLoadFalse: "LOAD_FALSE",
	OpLoadI64_0: "LOAD_I64_0", OpLoadI64_1: "LOAD_I64_1", OpLoadI64_2: "LOAD_I64_2",
	OpLoadI64_3: "LOAD_I64_3", OpLoadI64_4: "LOAD_I64_4", OpLoadI64_5: "LOAD_I64_5",
	OpLoadI64_6: "LOAD_I64_6", OpLoadI64_7: "LOAD_I64_7", OpLoadI64_8: "LOAD_I64_8",
	OpLoadI64_9: "LOAD_I64_9", OpLoadConstant: "LOAD_CONSTANT",
	OpLoadConstant_0: "LOAD_CONSTANT_0", OpLoadConstant_1: "LOAD_CONSTANT_1",
	OpLoadConstant_2: "LOAD_CONSTANT_2", OpLoadConstant_3: "LOAD_CONSTANT_3",
	OpLoadConstant_4: "LOAD_CONSTANT_4", OpLoadConstant_5: "LOAD_CONSTANT_5",
	OpLoadConstant_6: "LOAD_CONSTANT_6", OpLoadConstant_7: "LOAD_CONSTANT_7",
	OpLoadConstant_8: "LOAD_CONSTANT_8", OpLoadConstant_9: "LOAD_CONSTANT_9",
	OpGetLocal: "GET_LOCAL", OpGetLocal_0: "GET_LOCAL_0", OpGetLocal_1: "GET_LOCAL_1",
	OpGetLocal_2: "GET_LOCAL_2", OpGetLocal_3: "GET_LOCAL_3", OpGetLocal_4: "GET_LOCAL_4",
	OpGetLocal_5: "GET_LOCAL_5", OpGetLocal_6: "GET_LOCAL_6", OpGetLocal_7: "GET_LOCAL_7",
	OpGetLocal_8: "GET_LOCAL_8", OpGetLocal_9: "GET_LOCAL_9",
	OpSetLocal: "SET_LOCAL", OpSetLocal_0: "SET_LOCAL_0", OpSetLocal_1: "SET_LOCAL_1",
	OpSetLocal_2: "SET_LOCAL_2", OpSetLocal_3: "SET_LOCAL_3", OpSetLocal_4: "SET_LOCAL_4",
	OpSetLocal_5: "SET_LOCAL_5", OpSetLocal_6: "SET_LOCAL_6", OpSetLocal_7: "SET_LOCAL_7",
	OpSetLocal_8: "SET_LOCAL_8", OpSetLocal_9: "SET_LOCAL_9",
	OpGetUpvalue: "GET_UPVALUE", OpSetUpvalue: "SET_UPVALUE", OpCloseUpvalue: "CLOSE_UPVALUE",
	OpGetGlobal: "GET_GLOBAL", OpSetGlobal: "SET_GLOBAL",
	OpDefinePubGlobal: "DEFINE_PUB_GLOBAL", OpDefinePriGlobal: "DEFINE_PRI_GLOBAL",
	OpDefinePubGlobals: "DEFINE_PUB_GLOBALS", OpDefinePriGlobals: "DEFINE_PRI_GLOBALS",
	OpAdd: "ADD", OpSubtract: "SUBTRACT", OpMultiply: "MULTIPLY", OpDivide: "DIVIDE",
	OpFloorDivide: "FLOOR_DIVIDE", OpModulo: "MODULO", OpPower: "POWER", OpNegate: "NEGATE",
	OpNot: "NOT", OpBitwiseNot: "BITWISE_NOT", OpBitwiseAnd: "BITWISE_AND",
	OpBitwiseOr: "BITWISE_OR", OpBitwiseXor: "BITWISE_XOR", OpShiftLeft: "SHIFT_LEFT",
	OpShiftRight: "SHIFT_RIGHT", OpI64Add: "I64_ADD",
	OpLess: "LESS", OpLessEqual: "LESS_EQUAL", OpGreater: "GREATER",
	OpGreaterEqual: "GREATER_EQUAL", OpEqualEqual: "EQUAL_EQUAL", OpBangEqual: "BANG_EQUAL",
	OpBinaryIn: "BINARY_IN",
	OpJump: "JUMP", OpJumpBack: "JUMP_BACK", OpJumpIfTrue: "JUMP_IF_TRUE",
	OpJumpIfFalse: "JUMP_IF_FALSE", OpJumpIfErr: "JUMP_IF_ERR",
	OpJumpIfNotErr: "JUMP_IF_NOT_ERR", OpJumpIfNotNull: "JUMP_IF_NOT_NULL",
	OpPopJumpIfFalse: "POP_JUMP_IF_FALSE", OpBreak: "BREAK",
	OpCallValue: "CALL_VALUE", OpCallValue_0: "CALL_VALUE_0", OpCallValue_1: "CALL_VALUE_1",
	OpCallValue_2: "CALL_VALUE_2", OpCallValue_3: "CALL_VALUE_3", OpCallValue_4: "CALL_VALUE_4",
	OpCallValue_5: "CALL_VALUE_5", OpCallValue_6: "CALL_VALUE_6", OpCallValue_7: "CALL_VALUE_7",
	OpCallValue_8: "CALL_VALUE_8", OpCallValue_9: "CALL_VALUE_9",
	OpCallValueWithUnpack: "CALL_VALUE_WITH_UNPACK",
	OpCallMethod: "CALL_METHOD", OpCallMethodWithUnpack: "CALL_METHOD_WITH_UNPACK",
	OpCallPubMethod: "CALL_PUB_METHOD", OpCallPubMethodWithUnpack: "CALL_PUB_METHOD_WITH_UNPACK",
	OpCallSuperMethod: "CALL_SUPER_METHOD", OpCallSuperMethodWithUnpack: "CALL_SUPER_METHOD_WITH_UNPACK",
	OpReturn: "RETURN", OpReturnTuple: "RETURN_TUPLE",
	OpMakeClass: "MAKE_CLASS", OpInherit: "INHERIT",
	OpDefinePubMethod: "DEFINE_PUB_METHOD", OpDefinePriMethod: "DEFINE_PRI_METHOD",
	OpDefineStaticMethod: "DEFINE_STATIC_METHOD",
	OpDefinePubField: "DEFINE_PUB_FIELD", OpDefinePriField: "DEFINE_PRI_FIELD",
	OpDefineStaticField: "DEFINE_STATIC_FIELD",
	OpGetField: "GET_FIELD", OpGetPubField: "GET_PUB_FIELD",
	OpSetField: "SET_FIELD", OpSetPubField: "SET_PUB_FIELD",
	OpGetMethod: "GET_METHOD", OpGetPubMethod: "GET_PUB_METHOD", OpGetSuperMethod: "GET_SUPER_METHOD",
	OpImportModule: "IMPORT_MODULE", OpImportNamedMembers: "IMPORT_NAMED_MEMBERS",
	OpGetMember: "GET_MEMBER",
	OpMakeMap: "MAKE_MAP", OpMakeSet: "MAKE_SET", OpMakeVec: "MAKE_VEC", OpMakeTup: "MAKE_TUP",
	OpMakeEnum: "MAKE_ENUM", OpMakeClosure: "MAKE_CLOSURE",
	OpMakeClosureWithDefArgs: "MAKE_CLOSURE_WITH_DEF_ARGS",
	OpConcatStrings: "CONCAT_STRINGS", OpStringify: "STRINGIFY", OpFormat: "FORMAT",
	OpGetIterator: "GET_ITERATOR", OpGetNextFromIterator: "GET_NEXT_FROM_ITERATOR",
	OpStartWith: "START_WITH", OpEndWith: "END_WITH",
	OpEcho: "ECHO", OpAssert: "ASSERT", OpTry: "TRY", OpUnpack: "UNPACK",
	OpGetIndex: "GET_INDEX", OpSetIndex: "SET_INDEX",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// OperandWidth describes how many bytes follow an opcode and how they
// should be interpreted, for both the emitter and the disassembler.
type OperandWidth int

const (
	Operand0     OperandWidth = 0
	Operand1     OperandWidth = 1  // one byte: small index/count
	Operand2     OperandWidth = 2  // two bytes, big-endian: constant index, jump offset, count
	Operand4     OperandWidth = 4  // MAKE_ENUM: two packed 2-byte operands
	OperandNameArg OperandWidth = 3 // method calls: 2-byte name-constant index + 1-byte argc
	OperandVariable OperandWidth = -1 // MAKE_CLOSURE[_WITH_DEF_ARGS]: see EmitClosure
)

// Width reports the operand width for op, per spec.md §6: opcodes with
// a small-index/arity suffix (GET_LOCAL_0, CALL_VALUE_3, ...) take no
// operand bytes at all — the index is baked into the opcode itself.
// Name lookups (fields, methods, globals, members) are constant-pool
// indices and so take the 2-byte form spec.md §6 reserves for those;
// only bare counts/arities use the 1-byte form.
func (op Opcode) Width() OperandWidth {
	switch op {
	case OpLoadConstant, OpGetGlobal, OpSetGlobal, OpDefinePubGlobal, OpDefinePriGlobal,
		OpJump, OpJumpBack, OpJumpIfTrue, OpJumpIfFalse, OpJumpIfErr, OpJumpIfNotErr,
		OpJumpIfNotNull, OpPopJumpIfFalse, OpBreak, OpCallValueWithUnpack,
		OpMakeMap, OpMakeSet, OpMakeVec, OpMakeTup, OpConcatStrings, OpImportModule, OpGetUpvalue, OpSetUpvalue,
		OpGetField, OpGetPubField, OpSetField, OpSetPubField,
		OpGetMethod, OpGetPubMethod, OpGetSuperMethod, OpGetMember,
		OpDefinePubMethod, OpDefinePriMethod, OpDefineStaticMethod,
		OpDefinePubField, OpDefinePriField, OpDefineStaticField:
		return Operand2
	case OpMakeEnum, OpImportNamedMembers:
		return Operand4
	case OpCallMethod, OpCallMethodWithUnpack, OpCallPubMethod, OpCallPubMethodWithUnpack,
		OpCallSuperMethod, OpCallSuperMethodWithUnpack:
		return OperandNameArg
	case OpMakeClosure, OpMakeClosureWithDefArgs:
		return OperandVariable
	case OpGetLocal, OpSetLocal, OpCallValue, OpReturnTuple, OpEcho, OpUnpack,
		OpDefinePubGlobals, OpDefinePriGlobals, OpFormat:
		return Operand1
	default:
		return Operand0
	}
}
