package cell

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"msxfi/quant"
	"msxfi/types/errtypes"
)

func TestConfigWidth(t *testing.T) {
	assert.Equal(t, 8, SLC(8).Width())
	assert.Equal(t, 6, Config{8, 8}.Width())
	assert.Equal(t, 7, Config{2, 4, 16}.Width())
	assert.Equal(t, 16, Config{2, 4, 16}.MaxLevels())
	assert.Equal(t, 0, Config{}.MaxLevels())
}

func TestValidateCapacity(t *testing.T) {
	for width := 1; width <= 12; width++ {
		for cells := 1; cells <= 12; cells++ {
			c := SLC(cells)
			err := c.Validate(width)
			if cells == width {
				assert.NoError(t, err)
				continue
			}
			require.Error(t, err, "width %d cells %d", width, cells)
			assert.True(t, errors.Is(err, errtypes.ErrConfiguration))
		}
	}
	// off by one with MLCs
	assert.Error(t, Config{8, 8}.Validate(5))
	assert.Error(t, Config{8, 8}.Validate(7))
	assert.NoError(t, Config{8, 8}.Validate(6))
}

func TestValidateLevels(t *testing.T) {
	for _, c := range []Config{{3, 2}, {1, 4}, {0, 8}, {-2, 8}, {512}, {}} {
		err := c.Validate(c.Width())
		require.Error(t, err, fmt.Sprint(c))
		assert.True(t, errors.Is(err, errtypes.ErrConfiguration))
	}
}

func TestPackKnownValues(t *testing.T) {
	f := quant.FixedPoint{IntBits: 4}
	b := quant.Encode([]float64{0, 5, 10, 15}, f)

	p, err := Pack(b, Config{4, 4})
	require.NoError(t, err)
	// 5 = 01|01, 10 = 10|10, 15 = 11|11
	assert.Equal(t, []uint8{0, 0, 1, 1, 2, 2, 3, 3}, p.Symbols)
	assert.Equal(t, uint8(2), p.At(2, 1))

	p, err = Pack(b, Config{2, 8})
	require.NoError(t, err)
	// 10 = 1|010
	assert.Equal(t, uint8(1), p.At(2, 0))
	assert.Equal(t, uint8(2), p.At(2, 1))
}

func TestPackUnpackLossless(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	configs := []Config{SLC(8), {4, 4, 4, 4}, {16, 16}, {2, 8, 16}, {256}, {4, 64}}
	for _, c := range configs {
		t.Run(c.String(), func(t *testing.T) {
			b := quant.NewBitArray(50, c.Width())
			for i := range b.Bits {
				b.Bits[i] = uint8(rng.Intn(2))
			}
			p, err := Pack(b, c)
			require.NoError(t, err)
			for r := 0; r < p.Rows; r++ {
				for i := range c {
					assert.Less(t, int(p.At(r, i)), c[i])
				}
			}
			out := quant.NewBitArray(b.Rows, b.Width)
			require.NoError(t, Unpack(p, out))
			assert.Equal(t, b.Bits, out.Bits)
		})
	}
}

func TestPackRejectsMismatch(t *testing.T) {
	b := quant.NewBitArray(2, 8)
	_, err := Pack(b, Config{4, 4})
	assert.True(t, errors.Is(err, errtypes.ErrConfiguration))

	p := &Packed{Rows: 2, Config: Config{4, 4}, Symbols: make([]uint8, 4)}
	assert.Error(t, Unpack(p, b))
}
