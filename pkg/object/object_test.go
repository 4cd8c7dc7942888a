package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyro-lang/pyro/pkg/value"
)

func allocStr(size int64) *Str { return &Str{} }

func TestPoolInterns(t *testing.T) {
	pool := NewPool()
	a := pool.InternString("hello", allocStr)
	b := pool.InternString("hello", allocStr)
	require.Same(t, a, b)
	require.Equal(t, 1, pool.Count())

	c := pool.InternString("world", allocStr)
	require.NotSame(t, a, c)
	require.Equal(t, 2, pool.Count())
}

func TestMapSetGetDelete(t *testing.T) {
	m := NewMap(false)
	for i := int64(0); i < 100; i++ {
		m.Set(value.I64(i), value.I64(i*i))
	}
	require.Equal(t, 100, m.LiveCount())

	v, ok := m.Get(value.I64(42))
	require.True(t, ok)
	require.Equal(t, int64(42*42), v.AsI64())

	require.True(t, m.Delete(value.I64(42)))
	_, ok = m.Get(value.I64(42))
	require.False(t, ok)
	require.Equal(t, 99, m.LiveCount())
}

func TestMapCrossKindNumericKey(t *testing.T) {
	m := NewMap(false)
	m.Set(value.I64(5), value.Bool(true))
	v, ok := m.Get(value.F64(5.0))
	require.True(t, ok)
	require.True(t, v.AsBool())
}

func TestMapLoadFactorInvariant(t *testing.T) {
	m := NewMap(false)
	for i := int64(0); i < 1000; i++ {
		m.Set(value.I64(i), value.Null)
		require.LessOrEqual(t, float64(m.LiveCount()), float64(len(m.Index))*maxLoadFactor+1)
	}
}

func TestVecPushPopAndNegativeIndex(t *testing.T) {
	v := NewVec(false)
	v.Push(value.I64(1))
	v.Push(value.I64(2))
	v.Push(value.I64(3))
	require.Equal(t, 3, v.Len())

	last, ok := v.Get(-1)
	require.True(t, ok)
	require.Equal(t, int64(3), last.AsI64())

	_, ok = v.Get(10)
	require.False(t, ok)

	top, ok := v.Pop()
	require.True(t, ok)
	require.Equal(t, int64(3), top.AsI64())
	require.Equal(t, 2, v.Len())
}

func TestTupEqualityIsElementwise(t *testing.T) {
	a := NewTup([]value.Value{value.I64(1), value.I64(2)})
	b := NewTup([]value.Value{value.I64(1), value.F64(2.0)})
	require.True(t, value.Obj(a).Equals(value.Obj(b)))
}

func TestSetEqualityIsOrderIndependent(t *testing.T) {
	a := NewMap(true)
	a.Set(value.I64(1), value.Null)
	a.Set(value.I64(2), value.Null)

	b := NewMap(true)
	b.Set(value.I64(2), value.Null)
	b.Set(value.I64(1), value.Null)

	require.True(t, value.Obj(a).Equals(value.Obj(b)))
}

func TestClassMethodLookupWalksSuperclass(t *testing.T) {
	base := NewClass("Base")
	base.DefineMethod("greet", value.I64(1), true)

	derived := NewClass("Derived")
	derived.Inherit(base)

	v, ok := derived.LookupMethod("greet", false)
	require.True(t, ok)
	require.Equal(t, int64(1), v.AsI64())
}

func TestInstanceFieldsCopiedFromClassDefaults(t *testing.T) {
	cls := NewClass("Counter")
	cls.DefineField("n", value.I64(0), true)

	inst := NewInstance(cls)
	require.Len(t, inst.Fields, 1)
	require.Equal(t, int64(0), inst.Fields[0].AsI64())

	inst.Fields[0] = value.I64(5)
	other := NewInstance(cls)
	require.Equal(t, int64(0), other.Fields[0].AsI64(), "instances must not share backing storage")
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Enqueue(value.I64(1))
	q.Enqueue(value.I64(2))

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, int64(1), v.AsI64())
	require.Equal(t, 1, q.Len())
}
