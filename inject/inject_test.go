package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"msxfi/cell"
	"msxfi/errmap"
	"msxfi/logutil"
	"msxfi/quant"
)

// fourLevelMap returns a map whose 4-level cells use the given rows of
// (down, up) probabilities.
func fourLevelMap(t *testing.T, rows ...float64) *errmap.NVM {
	t.Helper()
	m, err := errmap.NewNVM("test", mat.NewDense(2, 2, nil), mat.NewDense(4, 2, rows))
	require.NoError(t, err)
	return m
}

func pack(t *testing.T, values []float64, f quant.Format, c cell.Config) *cell.Packed {
	t.Helper()
	p, err := cell.Pack(quant.Encode(values, f), c)
	require.NoError(t, err)
	return p
}

func unpack(t *testing.T, p *cell.Packed, f quant.Format) []float64 {
	t.Helper()
	b := quant.NewBitArray(p.Rows, f.Width())
	require.NoError(t, cell.Unpack(p, b))
	return quant.Decode(b, f)
}

func TestDenseKnownMatrix(t *testing.T) {
	f := quant.FixedPoint{IntBits: 4}
	m := fourLevelMap(t,
		0, 0,
		1, 0,
		0, 0,
		0, 0,
	)
	p := pack(t, []float64{0, 5, 10, 15}, f, cell.Config{4, 4})

	stats, err := Dense(p, m, 1, logutil.Discard())
	require.NoError(t, err)
	// 5 = 01|01, both cells sit at level 1 and drop to 0
	assert.Equal(t, []float64{0, 0, 10, 15}, unpack(t, p, f))
	assert.Equal(t, 2, stats.Faults)
	assert.Equal(t, 1, stats.Affected)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 8, stats.Cells)
	assert.Equal(t, 0.25, stats.FaultRate())
}

func TestDenseExpectedCount(t *testing.T) {
	f := quant.FixedPoint{IntBits: 2}
	m := fourLevelMap(t,
		0, 0,
		0.25, 0.25,
		0, 0,
		0, 0,
	)
	values := make([]float64, 400)
	for i := range values {
		values[i] = 1
	}
	p := pack(t, values, f, cell.Config{4})

	stats, err := Dense(p, m, 42, logutil.Discard())
	require.NoError(t, err)
	assert.Equal(t, 200, stats.Faults)

	counts := map[float64]int{}
	for _, v := range unpack(t, p, f) {
		counts[v]++
	}
	assert.Equal(t, map[float64]int{0: 100, 1: 200, 2: 100}, counts)
}

func TestDenseBoundaryLevels(t *testing.T) {
	f := quant.FixedPoint{IntBits: 2}
	m := fourLevelMap(t,
		0, 1,
		0, 0,
		0, 0,
		1, 0,
	)
	p := pack(t, []float64{0, 3, 0, 3}, f, cell.Config{4})

	stats, err := Dense(p, m, 3, logutil.Discard())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 1, 2}, unpack(t, p, f))
	assert.Equal(t, 4, stats.Affected)
}

func TestDenseZeroMapIsIdentity(t *testing.T) {
	f := quant.FixedPoint{IntBits: 2, FracBits: 6, Signed: true}
	values := []float64{-1.5, 0.25, 1.984375, 0, -2}
	p := pack(t, values, f, cell.Config{4, 4, 4, 4})

	stats, err := Dense(p, errmap.Zero(4), 9, logutil.Discard())
	require.NoError(t, err)
	assert.Equal(t, values, unpack(t, p, f))
	assert.Equal(t, 0, stats.Faults)
	assert.Equal(t, 0.0, stats.FaultRate())
}

func TestDenseDeterministic(t *testing.T) {
	f := quant.FixedPoint{IntBits: 4}
	m := fourLevelMap(t,
		0, 0.1,
		0.1, 0.2,
		0.3, 0.1,
		0.2, 0,
	)
	values := make([]float64, 300)
	for i := range values {
		values[i] = float64(i % 16)
	}
	run := func(seed uint64) []uint8 {
		p := pack(t, values, f, cell.Config{4, 4})
		_, err := Dense(p, m, seed, logutil.Discard())
		require.NoError(t, err)
		return p.Symbols
	}
	assert.Equal(t, run(5), run(5))
	assert.NotEqual(t, run(5), run(6))
}

func TestDenseMissingLevels(t *testing.T) {
	f := quant.FixedPoint{IntBits: 4}
	p := pack(t, []float64{1}, f, cell.Config{16})
	_, err := Dense(p, errmap.Zero(4), 1, logutil.Discard())
	assert.Error(t, err)
}

func TestDRAM(t *testing.T) {
	f := quant.Integer{Bits: 8}
	values := []float64{-1, 127, 0, 85}
	b := quant.Encode(values, f)
	ones := b.Ones()

	stats := DRAM(b, &errmap.DRAM{FlipProbability: 0}, 1, logutil.Discard())
	assert.Equal(t, values, quant.Decode(b, f))
	assert.Equal(t, 0, stats.Faults)

	stats = DRAM(b, &errmap.DRAM{FlipProbability: 1}, 1, logutil.Discard())
	assert.Equal(t, ones, stats.Faults)
	assert.Equal(t, 3, stats.Affected)
	assert.Equal(t, 32, stats.Cells)
	assert.Equal(t, 0, b.Ones())
}

func TestDRAMOnlyClearsBits(t *testing.T) {
	f := quant.IEEEFloat{Bits: 32}
	values := make([]float64, 200)
	for i := range values {
		values[i] = float64(i) - 100.5
	}
	orig := quant.Encode(values, f)

	run := func(seed uint64) *quant.BitArray {
		b := orig.Clone()
		DRAM(b, &errmap.DRAM{FlipProbability: 0.3}, seed, logutil.Discard())
		return b
	}
	b := run(11)
	for i, bit := range b.Bits {
		assert.LessOrEqual(t, bit, orig.Bits[i])
	}
	assert.Less(t, b.Ones(), orig.Ones())
	assert.Equal(t, b.Bits, run(11).Bits)
}

func TestStatsAdd(t *testing.T) {
	var s Stats
	s.Add(Stats{Faults: 3, Affected: 2, Total: 10, Cells: 40})
	s.Add(Stats{Faults: 1, Affected: 1, Total: 10, Cells: 40})
	assert.Equal(t, Stats{Faults: 4, Affected: 3, Total: 20, Cells: 80}, s)
	assert.InDelta(t, 0.15, s.FaultRate(), 1e-12)
	assert.InDelta(t, 0.05, s.CellFaultRate(), 1e-12)
	assert.Equal(t, 0.0, Stats{}.FaultRate())
}
