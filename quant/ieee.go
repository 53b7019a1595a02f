package quant

import (
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// IEEEFloat reinterprets the IEEE 754 binary16/32/64 bit pattern of a value.
type IEEEFloat struct {
	Bits int
}

func (f IEEEFloat) Width() int { return f.Bits }

func (f IEEEFloat) String() string { return fmt.Sprintf("ieee-float%d", f.Bits) }

func (f IEEEFloat) encode(values []float64, b *BitArray) {
	for i, v := range values {
		var u uint64
		switch f.Bits {
		case 16:
			u = uint64(float16.Fromfloat32(float32(v)).Bits())
		case 32:
			u = uint64(math.Float32bits(float32(v)))
		case 64:
			u = math.Float64bits(v)
		}
		putUint(b.Row(i), u)
	}
}

func (f IEEEFloat) decode(b *BitArray, out []float64) {
	for i := range out {
		u := getUint(b.Row(i))
		switch f.Bits {
		case 16:
			out[i] = float64(float16.Frombits(uint16(u)).Float32())
		case 32:
			out[i] = float64(math.Float32frombits(uint32(u)))
		case 64:
			out[i] = math.Float64frombits(u)
		}
	}
}

// BFloat16 is the upper half of an IEEE binary32 word.
type BFloat16 struct{}

func (BFloat16) Width() int { return 16 }

func (BFloat16) String() string { return "bfloat16" }

func (BFloat16) encode(values []float64, b *BitArray) {
	f32s := make([]float32, len(values))
	for i, v := range values {
		f32s[i] = float32(v)
	}
	// little-endian pairs
	buf := bfloat16.EncodeFloat32(f32s)
	for i := range values {
		u := uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
		putUint(b.Row(i), uint64(u))
	}
}

func (BFloat16) decode(b *BitArray, out []float64) {
	buf := make([]byte, 2*len(out))
	for i := range out {
		u := uint16(getUint(b.Row(i)))
		buf[2*i] = byte(u)
		buf[2*i+1] = byte(u >> 8)
	}
	for i, v := range bfloat16.DecodeFloat32(buf) {
		out[i] = float64(v)
	}
}
