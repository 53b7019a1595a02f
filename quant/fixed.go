package quant

import (
	"fmt"
	"math"
)

// FixedPoint is a binary fixed-point number with IntBits integer bits and
// FracBits fractional bits. When Signed, the first integer bit is a
// two's-complement sign bit. Out-of-range inputs are not clamped; callers
// scale values into range first.
type FixedPoint struct {
	IntBits  int
	FracBits int
	Signed   bool
}

func (f FixedPoint) Width() int { return f.IntBits + f.FracBits }

func (f FixedPoint) String() string {
	if f.Signed {
		return fmt.Sprintf("signed-fixed(i%d,f%d)", f.IntBits, f.FracBits)
	}
	return fmt.Sprintf("unsigned-fixed(i%d,f%d)", f.IntBits, f.FracBits)
}

// Step is the weight of the least significant bit.
func (f FixedPoint) Step() float64 { return math.Ldexp(1, -f.FracBits) }

// Range returns the smallest and largest representable values.
func (f FixedPoint) Range() (lo, hi float64) {
	if f.Signed {
		lo = -math.Ldexp(1, f.IntBits-1)
		hi = math.Ldexp(1, f.IntBits-1) - f.Step()
		return lo, hi
	}
	return 0, math.Ldexp(1, f.IntBits) - f.Step()
}

func (f FixedPoint) encode(values []float64, b *BitArray) {
	for i, v := range values {
		row := b.Row(i)
		col := 0
		cur := 0.0
		if f.Signed {
			if v < 0 {
				row[0] = 1
				cur = -math.Ldexp(1, f.IntBits-1)
			}
			col = 1
		}
		for e := f.IntBits - 1 - col; e >= 0; e-- {
			cur = thresholdBit(row, col, cur, math.Ldexp(1, e), v)
			col++
		}
		for k := 1; k <= f.FracBits; k++ {
			cur = thresholdBit(row, col, cur, math.Ldexp(1, -k), v)
			col++
		}
	}
}

func (f FixedPoint) decode(b *BitArray, out []float64) {
	for i := range out {
		row := b.Row(i)
		col := 0
		cur := 0.0
		if f.Signed {
			cur -= math.Ldexp(1, f.IntBits-1) * float64(row[0])
			col = 1
		}
		for e := f.IntBits - 1 - col; e >= 0; e-- {
			cur += math.Ldexp(1, e) * float64(row[col])
			col++
		}
		for k := 1; k <= f.FracBits; k++ {
			cur += math.Ldexp(1, -k) * float64(row[col])
			col++
		}
		out[i] = cur
	}
}

// thresholdBit sets row[col] when cur+weight does not exceed target and
// returns the updated partial sum. Applied over descending weights it
// extracts a binary expansion the way a successive-approximation search does.
func thresholdBit(row []uint8, col int, cur, weight, target float64) float64 {
	if cur+weight <= target {
		row[col] = 1
		return cur + weight
	}
	row[col] = 0
	return cur
}
