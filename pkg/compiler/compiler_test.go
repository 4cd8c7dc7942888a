package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyro-lang/pyro/pkg/bytecode"
	"github.com/pyro-lang/pyro/pkg/compiler"
	"github.com/pyro-lang/pyro/pkg/object"
)

func compile(t *testing.T, source string, replMode bool) *object.Fn {
	t.Helper()
	pool := object.NewPool()
	fn, err := compiler.Compile(source, "compiler_test", "compiler_test.pyro", pool, func() *object.Fn {
		return object.NewFn("$main", "compiler_test", "compiler_test.pyro")
	}, replMode)
	require.NoError(t, err)
	return fn
}

// Every compiled top-level Fn ends in an unconditional OpLoadNull +
// OpReturn (compiler.Compile appends both after the last statement), regardless of replMode
// or whether the source has an explicit return.
func TestCompileAppendsTrailingReturn(t *testing.T) {
	fn := compile(t, `echo 1;`, false)
	require.GreaterOrEqual(t, len(fn.Code), 2)
	require.Equal(t, byte(bytecode.OpReturn), fn.Code[len(fn.Code)-1])
	require.Equal(t, byte(bytecode.OpLoadNull), fn.Code[len(fn.Code)-2])
}

// In REPL mode, a lone trailing expression statement gets its OpPop
// rewritten into OpPopEchoInRepl so the REPL can print its value; the
// same source compiled outside REPL mode keeps the ordinary OpPop.
func TestReplModeRewritesTrailingPop(t *testing.T) {
	replFn := compile(t, `1 + 1;`, true)
	require.Contains(t, bytecode.Disassemble(replFn), "POP_ECHO_IN_REPL")

	scriptFn := compile(t, `1 + 1;`, false)
	require.NotContains(t, bytecode.Disassemble(scriptFn), "POP_ECHO_IN_REPL")
}

// A statement preceding the trailing expression keeps its own ordinary
// OpPop; only the last statement's pop is rewritten.
func TestReplModeOnlyRewritesFinalStatement(t *testing.T) {
	require.Equal(t, []string{"POP", "POP_ECHO_IN_REPL"}, mnemonics(compile(t, `1; 2;`, true), "POP", "POP_ECHO_IN_REPL"))
}

// A non-expression trailing statement (here, a var declaration) leaves
// no OpPop for the replMode rewrite to touch.
func TestReplModeDeclarationLeavesNoEcho(t *testing.T) {
	fn := compile(t, `var x = 1;`, true)
	require.NotContains(t, bytecode.Disassemble(fn), "POP_ECHO_IN_REPL")
}

func TestCompileRejectsMalformedSource(t *testing.T) {
	pool := object.NewPool()
	_, err := compiler.Compile(`var = ;`, "compiler_test", "compiler_test.pyro", pool, func() *object.Fn {
		return object.NewFn("$main", "compiler_test", "compiler_test.pyro")
	}, false)
	require.Error(t, err)
	var synErr *compiler.SyntaxError
	require.ErrorAs(t, err, &synErr)
	require.Equal(t, "compiler_test", synErr.SourceID)
}

func TestCompileRejectsConstantReassignment(t *testing.T) {
	pool := object.NewPool()
	_, err := compiler.Compile(`
		let x = 1;
		x = 2;
	`, "compiler_test", "compiler_test.pyro", pool, func() *object.Fn {
		return object.NewFn("$main", "compiler_test", "compiler_test.pyro")
	}, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "constant")
}

// mnemonics returns, in order, every disassembled instruction's opcode
// name that's a member of want - used to check which of a handful of
// opcodes appear, and in what order, without hand-parsing offsets.
func mnemonics(fn *object.Fn, want ...string) []string {
	wanted := make(map[string]bool, len(want))
	for _, w := range want {
		wanted[w] = true
	}
	var out []string
	for _, line := range strings.Split(bytecode.Disassemble(fn), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if wanted[fields[2]] {
			out = append(out, fields[2])
		}
	}
	return out
}
