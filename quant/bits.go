package quant

import "fmt"

// BitArray holds Rows values of Width bits each, most significant bit first.
type BitArray struct {
	Rows  int
	Width int
	Bits  []uint8

	// Bias is the shared exponent bias of an adaptive-float batch.
	Bias int
	// Implicit marks adaptive-float rows whose mantissa carries the hidden
	// leading one. Rows flushed to zero have it cleared. The flag is
	// metadata and is never faulted.
	Implicit []bool
}

func NewBitArray(rows, width int) *BitArray {
	return &BitArray{
		Rows:  rows,
		Width: width,
		Bits:  make([]uint8, rows*width),
	}
}

// Row returns the bits of value i. The slice aliases the array.
func (b *BitArray) Row(i int) []uint8 {
	return b.Bits[i*b.Width : (i+1)*b.Width]
}

func (b *BitArray) Clone() *BitArray {
	out := &BitArray{
		Rows:  b.Rows,
		Width: b.Width,
		Bits:  append([]uint8(nil), b.Bits...),
		Bias:  b.Bias,
	}
	if b.Implicit != nil {
		out.Implicit = append([]bool(nil), b.Implicit...)
	}
	return out
}

// Ones counts the set bits.
func (b *BitArray) Ones() int {
	n := 0
	for _, v := range b.Bits {
		n += int(v)
	}
	return n
}

func (b *BitArray) String() string {
	return fmt.Sprintf("BitArray(%dx%d)", b.Rows, b.Width)
}

// putUint writes the low len(dst) bits of u into dst, MSB first.
func putUint(dst []uint8, u uint64) {
	w := len(dst)
	for i := 0; i < w; i++ {
		dst[i] = uint8(u>>(w-1-i)) & 1
	}
}

// getUint reads dst as an unsigned integer, MSB first.
func getUint(src []uint8) uint64 {
	var u uint64
	for _, b := range src {
		u = u<<1 | uint64(b&1)
	}
	return u
}
