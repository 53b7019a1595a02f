// Package inject applies fault models to stored data: level shifts on packed
// NVM cells and charge loss on DRAM bits.
package inject

import (
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"

	"msxfi/cell"
	"msxfi/errmap"
	"msxfi/logutil"
	"msxfi/quant"
	"msxfi/types/errtypes"
)

// Stats counts the faults of one injection pass.
type Stats struct {
	Faults   int // level shifts or bit flips applied
	Affected int // values holding at least one fault
	Total    int // values inspected
	Cells    int // cells or bits inspected
}

// FaultRate is the fraction of values that hold at least one fault.
func (s Stats) FaultRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Affected) / float64(s.Total)
}

// CellFaultRate is the fraction of cells that were disturbed.
func (s Stats) CellFaultRate() float64 {
	if s.Cells == 0 {
		return 0
	}
	return float64(s.Faults) / float64(s.Cells)
}

func (s *Stats) Add(o Stats) {
	s.Faults += o.Faults
	s.Affected += o.Affected
	s.Total += o.Total
	s.Cells += o.Cells
}

func (s Stats) String() string {
	return fmt.Sprintf("%d/%d values (%.4f%%), %d faults in %d cells", s.Affected, s.Total, 100*s.FaultRate(), s.Faults, s.Cells)
}

// Dense shifts cell levels of p in place. For each cell position and level,
// round(n*(up+down)) of the n rows at that level are picked without
// replacement; the first share, in proportion to up, move one level up and
// the rest one level down. Levels are read before any shift of the same
// cell position, so a cell moves at most once.
func Dense(p *cell.Packed, m *errmap.NVM, seed uint64, log *slog.Logger) (Stats, error) {
	src := rand.NewSource(seed)
	stats := Stats{Total: p.Rows, Cells: p.Rows * p.Cells()}
	affected := make([]bool, p.Rows)
	var defect error

	for c, levels := range p.Config {
		probs, err := m.Matrix(levels)
		if err != nil {
			return Stats{}, err
		}

		byLevel := make([][]int, levels)
		for r := 0; r < p.Rows; r++ {
			l := p.At(r, c)
			if int(l) >= levels {
				return Stats{}, &errtypes.NumericDefectError{Cell: c, Row: r, Level: int(l), Levels: levels}
			}
			byLevel[l] = append(byLevel[l], r)
		}

		for l, rows := range byLevel {
			down, up := probs.At(l, errmap.Down), probs.At(l, errmap.Up)
			total := up + down
			if len(rows) == 0 || total == 0 {
				continue
			}
			n := min(int(math.Round(float64(len(rows))*total)), len(rows))
			if n == 0 {
				continue
			}
			picked := make([]int, n)
			sampleuv.WithoutReplacement(picked, len(rows), src)

			nUp := int(float64(n) * up / total)
			switch {
			case down == 0:
				nUp = n
			case up == 0:
				nUp = 0
			}
			logutil.Trace(log, "level faults", "cell", c, "level", l, "rows", len(rows), "up", nUp, "down", n-nUp)
			for k, i := range picked {
				r := rows[i]
				next := l - 1
				if k < nUp {
					next = l + 1
				}
				if next < 0 || next >= levels {
					defect = &errtypes.NumericDefectError{Cell: c, Row: r, Level: next, Levels: levels}
					log.Error("level shift out of range", "cell", c, "row", r, "level", l, "to", next, "levels", levels)
					continue
				}
				p.Set(r, c, uint8(next))
				stats.Faults++
				affected[r] = true
			}
		}
	}

	for _, a := range affected {
		if a {
			stats.Affected++
		}
	}
	if defect != nil {
		return stats, defect
	}
	return stats, nil
}

// DRAM clears each set bit of b in place with the map's flip probability.
// Cleared bits stay cleared: charge leaks away, it is never gained.
func DRAM(b *quant.BitArray, m *errmap.DRAM, seed uint64, log *slog.Logger) Stats {
	flip := distuv.Bernoulli{P: m.FlipProbability, Src: rand.NewSource(seed)}
	stats := Stats{Total: b.Rows, Cells: len(b.Bits)}
	for r := 0; r < b.Rows; r++ {
		row := b.Row(r)
		hit := false
		for i, bit := range row {
			if bit == 1 && flip.Rand() == 1 {
				row[i] = 0
				stats.Faults++
				hit = true
			}
		}
		if hit {
			stats.Affected++
		}
	}
	log.Debug("dram injection", "p", m.FlipProbability, "flips", stats.Faults, "bits", stats.Cells)
	return stats
}
