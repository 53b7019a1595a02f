package quant

// Format is the closed set of numeric encodings: FixedPoint, Integer,
// IEEEFloat, BFloat16 and AdaptiveFloat.
type Format interface {
	// Width is the number of bits per encoded value.
	Width() int
	String() string

	encode(values []float64, b *BitArray)
	decode(b *BitArray, out []float64)
}

// Encode converts values into a BitArray of len(values) rows.
func Encode(values []float64, f Format) *BitArray {
	b := NewBitArray(len(values), f.Width())
	f.encode(values, b)
	return b
}

// Decode is the inverse of Encode.
func Decode(b *BitArray, f Format) []float64 {
	out := make([]float64, b.Rows)
	f.decode(b, out)
	return out
}

// RoundTrip returns Decode(Encode(values)), the values as they are stored.
func RoundTrip(values []float64, f Format) []float64 {
	return Decode(Encode(values, f), f)
}
