// Package fixed implements Q16.16 signed fixed-point arithmetic used for all
// voltage math. Operations saturate to the representable range instead of
// wrapping; division rounds to nearest.
package fixed

// Q1616 is a signed fixed-point value with 16 integer and 16 fractional bits
// (1/65536 resolution).
type Q1616 int32

const (
	// One is 1.0 in Q16.16.
	One Q1616 = 1 << 16

	// Max and Min bound the representable range.
	Max Q1616 = 0x7FFFFFFF
	Min Q1616 = -0x80000000

	fracBits = 16
	half     = 1 << (fracBits - 1)
)

func saturate(v int64) Q1616 {
	if v > int64(Max) {
		return Max
	}
	if v < int64(Min) {
		return Min
	}
	return Q1616(v)
}

// FromInt converts an integer to Q16.16, saturating.
func FromInt(n int) Q1616 {
	return saturate(int64(n) << fracBits)
}

// FromFraction returns num/den as Q16.16, rounded to nearest. A zero
// denominator yields the signed extreme matching the numerator's sign.
func FromFraction(num, den int64) Q1616 {
	if den == 0 {
		if num < 0 {
			return Min
		}
		return Max
	}
	v := num << fracBits
	if (v < 0) == (den < 0) {
		return saturate((v + den/2) / den)
	}
	return saturate((v - den/2) / den)
}

// Add returns a+b with saturation.
func Add(a, b Q1616) Q1616 {
	return saturate(int64(a) + int64(b))
}

// Sub returns a-b with saturation.
func Sub(a, b Q1616) Q1616 {
	return saturate(int64(a) - int64(b))
}

// Mul returns a*b with saturation and round-to-nearest.
func Mul(a, b Q1616) Q1616 {
	p := int64(a) * int64(b)
	if p >= 0 {
		p += half
	} else {
		p -= half
	}
	return saturate(p >> fracBits)
}

// Div returns a/b with saturation and round-to-nearest. Division by zero
// yields the signed extreme matching the dividend's sign.
func Div(a, b Q1616) Q1616 {
	if b == 0 {
		if a < 0 {
			return Min
		}
		return Max
	}
	return FromFraction(int64(a), int64(b))
}

// Round returns the nearest integer to v.
func Round(v Q1616) int {
	if v >= 0 {
		return int((int64(v) + half) >> fracBits)
	}
	return -int((-int64(v) + half) >> fracBits)
}

// MulInt returns round(v*n) as an integer, computed in 64 bits so large
// multipliers cannot overflow before rounding.
func MulInt(v Q1616, n int64) int64 {
	p := int64(v) * n
	if p >= 0 {
		return (p + half) >> fracBits
	}
	return -((-p + half) >> fracBits)
}

// Float returns v as a float64, for logging only.
func Float(v Q1616) float64 {
	return float64(v) / float64(One)
}
