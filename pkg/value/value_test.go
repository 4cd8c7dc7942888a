package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null, false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero int", I64(0), true},
		{"zero float", F64(0), true},
		{"empty rune", Rune(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.v.Truthy())
		})
	}
}

func TestNumericEquality(t *testing.T) {
	require.True(t, I64(5).Equals(F64(5.0)))
	require.True(t, I64(5).Equals(Rune(5)))
	require.True(t, F64(5.0).Equals(Rune(5)))
	require.False(t, I64(5).Equals(F64(5.5)))
	require.False(t, F64(math.NaN()).Equals(F64(math.NaN())))
}

func TestCompareNumericPrecisionBoundary(t *testing.T) {
	// 2^63 cannot be represented exactly by an int64, but as a float64 it
	// sits just above math.MaxInt64. A naive `float64(i) < f` comparison
	// rounds MaxInt64 up to 2^63 and calls the pair equal; this test pins
	// the exact answer at both ends of the i64 range.
	// -9223372036854777856.0 is the nearest float64 below -2^63.
	big := int64(math.MaxInt64)
	require.Equal(t, OrderLess, CompareNumeric(I64(big), F64(9223372036854775808.0)))
	require.Equal(t, OrderGreater, CompareNumeric(I64(math.MinInt64), F64(-9223372036854777856.0)))
}

func TestCompareNumericFractional(t *testing.T) {
	require.Equal(t, OrderLess, CompareNumeric(I64(5), F64(5.5)))
	require.Equal(t, OrderGreater, CompareNumeric(I64(6), F64(5.5)))
	require.Equal(t, OrderEqual, CompareNumeric(I64(5), F64(5.0)))
}

func TestCompareNumericNaN(t *testing.T) {
	require.Equal(t, OrderUnordered, CompareNumeric(I64(1), F64(math.NaN())))
	require.Equal(t, OrderUnordered, CompareNumeric(F64(math.NaN()), F64(math.NaN())))
}

func TestCompareNumericInfinity(t *testing.T) {
	require.Equal(t, OrderLess, CompareNumeric(I64(100), F64(math.Inf(1))))
	require.Equal(t, OrderGreater, CompareNumeric(I64(100), F64(math.Inf(-1))))
}
