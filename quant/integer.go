package quant

import (
	"fmt"
	"math"
)

// Integer is a two's-complement integer of Bits bits. Inputs are rounded
// half to even and saturated to the representable range.
type Integer struct {
	Bits int
}

func (f Integer) Width() int { return f.Bits }

func (f Integer) String() string { return fmt.Sprintf("integer(%d)", f.Bits) }

// Range returns the saturation bounds.
func (f Integer) Range() (lo, hi int64) {
	hi = int64(1)<<(f.Bits-1) - 1
	return -hi - 1, hi
}

// Quantize rounds and saturates v the way encode does.
func (f Integer) Quantize(v float64) int64 {
	lo, hi := f.Range()
	r := math.RoundToEven(v)
	switch {
	case math.IsNaN(r):
		return 0
	case r >= float64(hi):
		return hi
	case r <= float64(lo):
		return lo
	}
	return int64(r)
}

func (f Integer) encode(values []float64, b *BitArray) {
	for i, v := range values {
		putUint(b.Row(i), uint64(f.Quantize(v)))
	}
}

func (f Integer) decode(b *BitArray, out []float64) {
	for i := range out {
		row := b.Row(i)
		u := getUint(row)
		if row[0] == 1 && f.Bits < 64 {
			u |= ^uint64(0) << f.Bits
		}
		out[i] = float64(int64(u))
	}
}
