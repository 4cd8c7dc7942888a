package value

import "math"

// Ordering is the result of a three-way comparison; OrderUnordered is
// returned for NaN comparisons, which must never satisfy <, <=, > or >=.
type Ordering int

const (
	OrderLess Ordering = iota - 1
	OrderEqual
	OrderGreater
	OrderUnordered
)

// CompareNumeric implements the precise int/float comparison algorithm
// described in spec.md §4.7 and §8: naively widening an i64 to float64
// loses precision above ±2^63, which can make `i < f` answer wrong for
// huge magnitudes. Instead, when comparing an integer against a
// non-integral or out-of-range float we split the float into its
// truncated integer part and fractional remainder and compare those
// separately against the integer operand.
func CompareNumeric(a, b Value) Ordering {
	switch {
	case a.tag == TagF64 && math.IsNaN(a.f):
		return OrderUnordered
	case b.tag == TagF64 && math.IsNaN(b.f):
		return OrderUnordered
	}

	if a.tag != TagF64 && b.tag != TagF64 {
		ai, bi := intPayload(a), intPayload(b)
		switch {
		case ai < bi:
			return OrderLess
		case ai > bi:
			return OrderGreater
		default:
			return OrderEqual
		}
	}

	// Exactly one side (or both) is a float: route through the
	// int-vs-float splitting routine so magnitudes beyond ±2^63 compare
	// correctly.
	if a.tag == TagF64 && b.tag == TagF64 {
		return compareFloats(a.f, b.f)
	}
	if a.tag == TagF64 {
		return invert(compareIntToFloat(intPayload(b), a.f))
	}
	return compareIntToFloat(intPayload(a), b.f)
}

func intPayload(v Value) int64 { return v.i }

func compareFloats(a, b float64) Ordering {
	switch {
	case a < b:
		return OrderLess
	case a > b:
		return OrderGreater
	default:
		return OrderEqual
	}
}

func invert(o Ordering) Ordering {
	switch o {
	case OrderLess:
		return OrderGreater
	case OrderGreater:
		return OrderLess
	default:
		return o
	}
}

// compareIntToFloat compares an int64 against a float64 without ever
// round-tripping the integer through float64, which is the step that
// loses precision around ±2^63.
func compareIntToFloat(i int64, f float64) Ordering {
	if math.IsNaN(f) {
		return OrderUnordered
	}
	if math.IsInf(f, 1) {
		return OrderLess
	}
	if math.IsInf(f, -1) {
		return OrderGreater
	}

	truncated := math.Trunc(f)
	frac := f - truncated

	// If the float's integral part is outside int64's range, the sign of
	// the float alone decides the comparison.
	if truncated >= 9223372036854775808.0 {
		return OrderLess
	}
	if truncated < -9223372036854775808.0 {
		return OrderGreater
	}

	ti := int64(truncated)
	switch {
	case i < ti:
		return OrderLess
	case i > ti:
		return OrderGreater
	case frac > 0:
		// i == ti but f has a positive fractional remainder: f is larger.
		return OrderLess
	case frac < 0:
		return OrderGreater
	default:
		return OrderEqual
	}
}
