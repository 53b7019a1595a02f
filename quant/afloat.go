package quant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// AdaptiveFloat is the AdaptivFloat format: a sign bit, MantissaBits
// fraction bits and ExponentBits exponent bits, with an exponent bias shared
// by every value of a batch and derived from the batch's largest magnitude.
type AdaptiveFloat struct {
	MantissaBits int
	ExponentBits int
}

func (f AdaptiveFloat) Width() int { return 1 + f.MantissaBits + f.ExponentBits }

func (f AdaptiveFloat) String() string {
	return fmt.Sprintf("adaptive-float(m%d,e%d)", f.MantissaBits, f.ExponentBits)
}

// Bias returns floor(log2(max|x|)) - (2^ExponentBits - 1) for the batch.
func (f AdaptiveFloat) Bias(values []float64) int {
	maxAbs := 0.0
	if len(values) > 0 {
		abs := make([]float64, len(values))
		for i, v := range values {
			abs[i] = math.Abs(v)
		}
		maxAbs = floats.Max(abs)
	}
	_, exp := math.Frexp(maxAbs)
	return exp - 1 - (1<<f.ExponentBits - 1)
}

// Limits returns the smallest normal and the largest representable magnitude
// for a batch with the given bias.
func (f AdaptiveFloat) Limits(bias int) (lo, hi float64) {
	minExp := bias
	maxExp := 1<<f.ExponentBits - 1 + bias
	ulp := math.Ldexp(1, -f.MantissaBits)
	lo = math.Ldexp(1+ulp, minExp)
	hi = math.Ldexp(2-ulp, maxExp)
	return lo, hi
}

func (f AdaptiveFloat) encode(values []float64, b *BitArray) {
	bias := f.Bias(values)
	lo, hi := f.Limits(bias)
	ulp := math.Ldexp(1, -f.MantissaBits)

	b.Bias = bias
	b.Implicit = make([]bool, len(values))
	for i, v := range values {
		row := b.Row(i)
		if v < 0 {
			row[0] = 1
		}

		a := math.Abs(v)
		switch {
		case a < lo || math.IsNaN(a):
			a = 0
		case a > hi:
			a = hi
		}

		frac, exp := math.Frexp(a)
		mant := 2 * frac
		exp--

		mant = math.RoundToEven(mant/ulp) * ulp
		// rounding may carry the mantissa out of [1, 2)
		if mant > 2 {
			mant /= 4
			exp += 2
		} else if mant == 2 {
			mant /= 2
			exp++
		}
		if mant >= 1 {
			mant--
			b.Implicit[i] = true
		}

		stored := 0
		if b.Implicit[i] {
			stored = exp - bias
		}

		col := 1
		cur := 0.0
		for k := 1; k <= f.MantissaBits; k++ {
			cur = thresholdBit(row, col, cur, math.Ldexp(1, -k), mant)
			col++
		}
		cur = 0
		for e := f.ExponentBits - 1; e >= 0; e-- {
			cur = thresholdBit(row, col, cur, math.Ldexp(1, e), float64(stored))
			col++
		}
	}
}

func (f AdaptiveFloat) decode(b *BitArray, out []float64) {
	for i := range out {
		row := b.Row(i)
		sign := 1.0
		if row[0] == 1 {
			sign = -1
		}
		col := 1
		mant := 0.0
		for k := 1; k <= f.MantissaBits; k++ {
			mant += math.Ldexp(1, -k) * float64(row[col])
			col++
		}
		if b.Implicit == nil || b.Implicit[i] {
			mant++
		}
		exp := 0
		for e := f.ExponentBits - 1; e >= 0; e-- {
			exp += int(row[col]) << e
			col++
		}
		out[i] = sign * math.Ldexp(mant, exp+b.Bias)
	}
}
