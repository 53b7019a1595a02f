// Package sparse implements bitmask encoding: a one-bit-per-element mask of
// nonzero positions plus the dense list of nonzero values.
package sparse

import (
	"gonum.org/v1/gonum/floats"
)

func nonzero(v float64) bool { return v != 0 }

// Split returns the mask of nonzero positions of values, as 0/1 entries,
// and the nonzero values in order.
func Split(values []float64) (mask, nz []float64) {
	mask = make([]float64, len(values))
	nz = make([]float64, 0, floats.Count(nonzero, values))
	for i, v := range values {
		if nonzero(v) {
			mask[i] = 1
			nz = append(nz, v)
		}
	}
	return mask, nz
}

// Scatter rebuilds a dense array from a mask and nonzero values. Mask
// entries of 0.5 or more are set positions and take the next value in
// order. A set position with no value left gets 0; values left over once
// the mask is exhausted are dropped.
func Scatter(mask, nz []float64) []float64 {
	out := make([]float64, len(mask))
	k := 0
	for i, m := range mask {
		if m < 0.5 {
			continue
		}
		if k < len(nz) {
			out[i] = nz[k]
		}
		k++
	}
	return out
}

// Capacity is the number of bits needed to store n values of width bits
// with nnz nonzeros under bitmask encoding.
func Capacity(n, nnz, width int) int {
	return n + nnz*width
}
