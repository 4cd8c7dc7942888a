package vm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyro-lang/pyro/pkg/compiler"
	"github.com/pyro-lang/pyro/pkg/gc"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/vm"
)

type memStream struct {
	buf strings.Builder
}

func (m *memStream) Read(p []byte) (int, error)  { return 0, nil }
func (m *memStream) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memStream) Close() error                { return nil }

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	pool := object.NewPool()
	fn, err := compiler.Compile(source, "vm_test", "vm_test.pyro", pool, func() *object.Fn {
		return object.NewFn("$main", "vm_test", "vm_test.pyro")
	}, false)
	require.NoError(t, err)

	heap := gc.NewHeap(pool, 1<<20)
	machine := vm.New(pool, heap, nil)
	out := &memStream{}
	machine.Stdout = object.NewFile(out, "")

	_, runErr := machine.Interpret(fn)
	return out.buf.String(), runErr
}

func TestAddOverflowPanics(t *testing.T) {
	_, err := run(t, `echo 9223372036854775807 + 1;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "overflow")
}

func TestSubOverflowPanics(t *testing.T) {
	// -9223372036854775807 - 1 lands exactly on i64's minimum (no
	// overflow); subtracting 1 more must panic rather than wrap.
	_, err := run(t, `
		var min = -9223372036854775807 - 1;
		echo min - 1;
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "overflow")
}

func TestMulOverflowPanics(t *testing.T) {
	_, err := run(t, `echo 9223372036854775807 * 2;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "overflow")
}

func TestAddWithinRangeDoesNotPanic(t *testing.T) {
	out, err := run(t, `echo 100 + 200;`)
	require.NoError(t, err)
	require.Equal(t, "300\n", out)
}

func TestNegativeOperandsDoNotFalselyOverflow(t *testing.T) {
	out, err := run(t, `echo -5 + -10;`)
	require.NoError(t, err)
	require.Equal(t, "-15\n", out)
}

func TestFloatArithmeticUnaffectedByOverflowCheck(t *testing.T) {
	out, err := run(t, `echo 1.5 + 2.5;`)
	require.NoError(t, err)
	require.Equal(t, "4\n", out)
}

func TestBuiltinVecMethods(t *testing.T) {
	out, err := run(t, `
		var v = $vec(1, 2, 3);
		echo v:count();
		v:push(4);
		echo v:count();
		echo v:get(3);
	`)
	require.NoError(t, err)
	require.Equal(t, "3\n4\n4\n", out)
}

func TestBuiltinStrMethods(t *testing.T) {
	out, err := run(t, `
		var s = "Hello";
		echo s:upper();
		echo s:lower();
		echo s:count();
	`)
	require.NoError(t, err)
	require.Equal(t, "HELLO\nhello\n5\n", out)
}

func TestRangeSuperglobalProducesExpectedCount(t *testing.T) {
	out, err := run(t, `
		var n = 0;
		for i in $range(0, 5) { n += 1; }
		echo n;
	`)
	require.NoError(t, err)
	require.Equal(t, "5\n", out)
}
