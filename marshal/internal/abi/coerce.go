package abi

import "math"

// FloatToInt64 converts an integral f that fits in int64.
func FloatToInt64(f float64) (int64, bool) {
	// 2^63 is exactly representable; anything at or above it overflows
	if f < math.MinInt64 || f >= math.MaxInt64 || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// FloatToUint64 converts an integral, non-negative f that fits in uint64.
func FloatToUint64(f float64) (uint64, bool) {
	if f < 0 || f >= math.MaxUint64 || f != math.Trunc(f) {
		return 0, false
	}
	return uint64(f), true
}

// IntToUint64 rejects negative n.
func IntToUint64(n int64) (uint64, bool) {
	if n < 0 {
		return 0, false
	}
	return uint64(n), true
}
