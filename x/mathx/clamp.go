package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundU32 rounds a non-negative float to the nearest uint32, saturating at
// the type bounds. Negative and NaN inputs yield 0.
func RoundU32[F constraints.Float](f F) uint32 {
	if !(f > 0) {
		return 0
	}
	if f >= F(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(f + 0.5)
}

// SatAddU32 adds without wrapping.
func SatAddU32(a, b uint32) uint32 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint32(0)
}
