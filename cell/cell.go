// Package cell groups encoded bits into per-cell symbols for single- and
// multi-level memory cells.
package cell

import (
	"fmt"
	"math/bits"
	"slices"

	"msxfi/quant"
	"msxfi/types/errtypes"
)

// MaxLevels bounds the levels of one cell so symbols fit in a byte.
const MaxLevels = 256

// Config lists the number of storage levels of each physical cell used to
// hold one value, in bit order. [2 2 2 2] stores four bits in SLCs; [4 4]
// stores them in two 2-bit MLCs.
type Config []int

// SLC returns a configuration of width single-level cells.
func SLC(width int) Config {
	c := make(Config, width)
	for i := range c {
		c[i] = 2
	}
	return c
}

// Bits returns log2 of the levels of cell i.
func (c Config) Bits(i int) int {
	return bits.TrailingZeros(uint(c[i]))
}

// Width is the number of bits the configuration stores.
func (c Config) Width() int {
	w := 0
	for i := range c {
		w += c.Bits(i)
	}
	return w
}

// MaxLevels is the largest level count of any cell.
func (c Config) MaxLevels() int {
	if len(c) == 0 {
		return 0
	}
	return slices.Max(c)
}

// Validate checks every level count is a power of two in [2, MaxLevels] and
// that the cells hold exactly width bits.
func (c Config) Validate(width int) error {
	if len(c) == 0 {
		return errtypes.Configf("rep_conf", "no cells configured")
	}
	for _, l := range c {
		if l <= 1 || l&(l-1) != 0 {
			return errtypes.Configf("rep_conf", "levels must be powers of 2 and > 1, found %d", l)
		}
		if l > MaxLevels {
			return errtypes.Configf("rep_conf", "levels per cell must not exceed %d, found %d", MaxLevels, l)
		}
	}
	switch capacity := c.Width(); {
	case capacity > width:
		return errtypes.Configf("rep_conf", "capacity (%d bits) is greater than the format width (%d bits)", capacity, width)
	case capacity < width:
		return errtypes.Configf("rep_conf", "capacity (%d bits) is less than the format width (%d bits); every bit must map to a cell", capacity, width)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprint([]int(c))
}

// Packed holds Rows values of len(Config) cells each, row-major. A symbol
// is the level stored in one cell, in [0, Config[i]-1].
type Packed struct {
	Rows    int
	Config  Config
	Symbols []uint8
}

func (p *Packed) Cells() int { return len(p.Config) }

func (p *Packed) At(row, cell int) uint8 {
	return p.Symbols[row*len(p.Config)+cell]
}

func (p *Packed) Set(row, cell int, level uint8) {
	p.Symbols[row*len(p.Config)+cell] = level
}

func (p *Packed) Clone() *Packed {
	return &Packed{
		Rows:    p.Rows,
		Config:  slices.Clone(p.Config),
		Symbols: slices.Clone(p.Symbols),
	}
}

// Pack consumes log2(levels) bits per cell, MSB first, for every row of b.
func Pack(b *quant.BitArray, c Config) (*Packed, error) {
	if err := c.Validate(b.Width); err != nil {
		return nil, err
	}
	p := &Packed{
		Rows:    b.Rows,
		Config:  slices.Clone(c),
		Symbols: make([]uint8, b.Rows*len(c)),
	}
	for r := 0; r < b.Rows; r++ {
		row := b.Row(r)
		idx := 0
		for i := range c {
			n := c.Bits(i)
			var sym uint
			for _, bit := range row[idx : idx+n] {
				sym = sym<<1 | uint(bit)
			}
			p.Set(r, i, uint8(sym))
			idx += n
		}
	}
	return p, nil
}

// Unpack expands each symbol of p back into dst, which must have p.Rows rows
// and the configuration's width. Adaptive-float metadata on dst is kept.
func Unpack(p *Packed, dst *quant.BitArray) error {
	if dst.Rows != p.Rows || dst.Width != p.Config.Width() {
		return fmt.Errorf("unpack into %v: need %dx%d", dst, p.Rows, p.Config.Width())
	}
	for r := 0; r < p.Rows; r++ {
		row := dst.Row(r)
		idx := 0
		for i := range p.Config {
			n := p.Config.Bits(i)
			sym := p.At(r, i)
			for k := 0; k < n; k++ {
				row[idx+k] = (sym >> (n - 1 - k)) & 1
			}
			idx += n
		}
	}
	return nil
}
