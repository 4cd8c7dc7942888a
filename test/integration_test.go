// Package test runs whole Pyro programs end to end: lex, compile and
// execute source text through pkg/lexer, pkg/compiler and pkg/vm
// exactly the way cmd/pyro does, and assert on what they echo to
// stdout. These exercise the scenarios spec.md §8 lists rather than any
// single package's internals.
package test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/pyro-lang/pyro/pkg/compiler"
	"github.com/pyro-lang/pyro/pkg/gc"
	"github.com/pyro-lang/pyro/pkg/object"
	"github.com/pyro-lang/pyro/pkg/value"
	"github.com/pyro-lang/pyro/pkg/vm"
)

// valueComparer lets go-cmp diff value.Value despite its unexported
// fields, deferring entirely to the same content-aware Equals every
// other part of the VM (map keys, $op_binary_* dispatch) relies on.
var valueComparer = cmp.Comparer(func(a, b value.Value) bool { return a.Equals(b) })

// memStream is an in-memory object.Stream so tests can capture what a
// program echoes without touching the real stdout.
type memStream struct {
	buf strings.Builder
}

func (m *memStream) Read(p []byte) (int, error)  { return 0, nil }
func (m *memStream) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memStream) Close() error                { return nil }

// run compiles and executes source, returning everything it echoed.
func run(t *testing.T, source string) (string, error) {
	t.Helper()
	pool := object.NewPool()
	fn, err := compiler.Compile(source, "test", "test.pyro", pool, func() *object.Fn {
		return object.NewFn("$main", "test", "test.pyro")
	}, false)
	require.NoError(t, err)

	heap := gc.NewHeap(pool, 1<<20)
	machine := vm.New(pool, heap, nil)
	out := &memStream{}
	machine.Stdout = object.NewFile(out, "")

	_, runErr := machine.Interpret(fn)
	return out.buf.String(), runErr
}

// evalValue is like run but returns the program's final expression
// value instead of its echoed output, for tests that need to compare
// composite results (vecs, tuples, maps) structurally.
func evalValue(t *testing.T, source string) (value.Value, error) {
	t.Helper()
	pool := object.NewPool()
	fn, err := compiler.Compile(source, "test", "test.pyro", pool, func() *object.Fn {
		return object.NewFn("$main", "test", "test.pyro")
	}, false)
	require.NoError(t, err)

	heap := gc.NewHeap(pool, 1<<20)
	machine := vm.New(pool, heap, nil)
	out := &memStream{}
	machine.Stdout = object.NewFile(out, "")

	return machine.Interpret(fn)
}

// TestVecSortReordersElements checks a composite Vec result against an
// expected element list with go-cmp rather than unpacking it by hand.
func TestVecSortReordersElements(t *testing.T) {
	result, err := evalValue(t, `
		var v = $vec(3, 1, 2);
		v:sort();
		return v;
	`)
	require.NoError(t, err)

	expected := []value.Value{value.I64(1), value.I64(2), value.I64(3)}
	vec, ok := result.AsObj().(*object.Vec)
	require.True(t, ok)
	if diff := cmp.Diff(expected, vec.Values, valueComparer); diff != "" {
		t.Fatalf("sorted vec mismatch (-want +got):\n%s", diff)
	}
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, `echo 2 + 3 * 4;`)
	require.NoError(t, err)
	require.Equal(t, "14\n", out)
}

func TestRangeLoopAccumulates(t *testing.T) {
	out, err := run(t, `
		var total = 0;
		for i in $range(1, 11) { total += i; }
		echo total;
	`)
	require.NoError(t, err)
	require.Equal(t, "55\n", out)
}

func TestClassMethodMutatesField(t *testing.T) {
	out, err := run(t, `
		class Counter {
			var n = 0;
			pub def tick() { self.n += 1; return self.n; }
		}
		var c = Counter();
		echo c:tick(); echo c:tick(); echo c:tick();
	`)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, err := run(t, `
		def make_adder(x) { return def(y) { return x + y; }; }
		var add5 = make_adder(5);
		echo add5(10);
	`)
	require.NoError(t, err)
	require.Equal(t, "15\n", out)
}

func TestTryCatchesDivisionByZeroAsErr(t *testing.T) {
	out, err := run(t, `
		var r = try (1 / 0);
		echo $is_err(r);
	`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestSetDeduplicatesOnAdd(t *testing.T) {
	out, err := run(t, `
		var s = $set();
		s:add(1); s:add(2); s:add(1);
		echo s:count();
	`)
	require.NoError(t, err)
	require.Equal(t, "2\n", out)
}

func TestUncaughtPanicPropagatesAsError(t *testing.T) {
	_, err := run(t, `echo 1 / 0;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "division by zero")
}

func TestIntegerOverflowPanics(t *testing.T) {
	_, err := run(t, `echo 9223372036854775807 + 1;`)
	require.Error(t, err)
}
