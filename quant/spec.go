// Package quant converts float values to and from fixed-width bit rows under
// the numeric formats used for memory fault studies.
package quant

import (
	"fmt"
	"strings"

	"msxfi/types/errtypes"
)

// Kind names a numeric format.
type Kind int

const (
	KindInvalid Kind = iota
	KindSigned
	KindUnsigned
	KindAdaptiveFloat
	KindInteger
	KindFloat16
	KindFloat32
	KindFloat64
	KindBFloat16
)

var kindNames = map[Kind]string{
	KindSigned:        "signed-fixed",
	KindUnsigned:      "unsigned-fixed",
	KindAdaptiveFloat: "adaptive-float",
	KindInteger:       "integer",
	KindFloat16:       "ieee-float16",
	KindFloat32:       "ieee-float32",
	KindFloat64:       "ieee-float64",
	KindBFloat16:      "bfloat16",
}

// short tags accepted on the command line and used in output file names
var kindTags = map[Kind]string{
	KindSigned:        "signed",
	KindUnsigned:      "unsigned",
	KindAdaptiveFloat: "afloat",
	KindInteger:       "int",
	KindFloat16:       "float16",
	KindFloat32:       "float32",
	KindFloat64:       "float64",
	KindBFloat16:      "bfloat16",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Tag is the short name of the format, e.g. "afloat".
func (k Kind) Tag() string {
	return kindTags[k]
}

// IsFloat reports whether the format has a width fixed by the IEEE or
// bfloat16 layout.
func (k Kind) IsFloat() bool {
	switch k {
	case KindFloat16, KindFloat32, KindFloat64, KindBFloat16:
		return true
	}
	return false
}

// ParseKind accepts both the long names ("signed-fixed") and the short tags
// ("signed").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if s == name || s == kindTags[k] {
			return k, nil
		}
	}
	return KindInvalid, errtypes.Configf("q_type", "unsupported format %q (supported: float16, bfloat16, float32, float64, signed, unsigned, afloat, int)", s)
}

// Spec is a quantization specification. For adaptive-float, FracBits holds
// the exponent bits and IntBits-1 the mantissa bits.
type Spec struct {
	Kind     Kind
	IntBits  int
	FracBits int
}

const (
	maxWidth        = 64
	maxExponentBits = 10
)

// Width is the number of bits per value.
func (s Spec) Width() int {
	switch s.Kind {
	case KindFloat16, KindBFloat16:
		return 16
	case KindFloat32:
		return 32
	case KindFloat64:
		return 64
	}
	return s.IntBits + s.FracBits
}

// Validate rejects format/width combinations that cannot be encoded.
func (s Spec) Validate() error {
	if _, ok := kindNames[s.Kind]; !ok {
		return errtypes.Configf("q_type", "unknown format %v", s.Kind)
	}
	if s.Kind.IsFloat() {
		if s.IntBits != 0 || s.FracBits != 0 {
			return errtypes.Configf("int_bits/frac_bits", "not applicable for %s", s.Kind)
		}
		return nil
	}
	if s.IntBits < 0 || s.FracBits < 0 {
		return errtypes.Configf("int_bits/frac_bits", "must not be negative (got %d, %d)", s.IntBits, s.FracBits)
	}
	w := s.Width()
	if w <= 0 {
		return errtypes.Configf("int_bits/frac_bits", "%s needs a positive bit width", s.Kind)
	}
	if w > maxWidth {
		return errtypes.Configf("int_bits/frac_bits", "bit width %d exceeds %d", w, maxWidth)
	}
	switch s.Kind {
	case KindSigned:
		if s.IntBits < 1 {
			return errtypes.Configf("int_bits", "signed fixed point needs a sign bit")
		}
	case KindAdaptiveFloat:
		if s.IntBits < 1 {
			return errtypes.Configf("int_bits", "adaptive float needs a sign bit")
		}
		if s.FracBits < 1 || s.FracBits > maxExponentBits {
			return errtypes.Configf("frac_bits", "adaptive float exponent bits must be in [1, %d], got %d", maxExponentBits, s.FracBits)
		}
	}
	return nil
}

// Format returns the codec for s after validating it.
func (s Spec) Format() (Format, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case KindSigned:
		return FixedPoint{IntBits: s.IntBits, FracBits: s.FracBits, Signed: true}, nil
	case KindUnsigned:
		return FixedPoint{IntBits: s.IntBits, FracBits: s.FracBits}, nil
	case KindInteger:
		return Integer{Bits: s.Width()}, nil
	case KindAdaptiveFloat:
		return AdaptiveFloat{MantissaBits: s.IntBits - 1, ExponentBits: s.FracBits}, nil
	case KindFloat16:
		return IEEEFloat{Bits: 16}, nil
	case KindFloat32:
		return IEEEFloat{Bits: 32}, nil
	case KindFloat64:
		return IEEEFloat{Bits: 64}, nil
	case KindBFloat16:
		return BFloat16{}, nil
	}
	return nil, errtypes.Configf("q_type", "unknown format %v", s.Kind)
}

func (s Spec) String() string {
	if s.Kind.IsFloat() {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(i%d,f%d)", s.Kind, s.IntBits, s.FracBits)
}
