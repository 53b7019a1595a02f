// Package errmap turns device characterization data into fault
// probabilities: per-level transition matrices for NVM cells and a single
// bit-flip probability for DRAM.
package errmap

import (
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"msxfi/techdata"
	"msxfi/types/errtypes"
)

// Columns of an NVM transition matrix.
const (
	Down = 0
	Up   = 1
)

// NVM holds one levels x 2 matrix per cell bit width. Row j, column Down is
// the probability a cell at level j reads back as j-1; column Up is the
// probability it reads back as j+1. Level 0 never shifts down and the top
// level never shifts up.
type NVM struct {
	Technology string
	maps       []*mat.Dense
}

// NewNVM wraps explicit matrices, the i-th describing cells of 2^(i+1)
// levels.
func NewNVM(technology string, maps ...*mat.Dense) (*NVM, error) {
	for i, m := range maps {
		levels := 2 << i
		r, c := m.Dims()
		if r != levels || c != 2 {
			return nil, fmt.Errorf("error map for %d levels is %dx%d", levels, r, c)
		}
		if m.At(0, Down) != 0 || m.At(levels-1, Up) != 0 {
			return nil, fmt.Errorf("error map for %d levels shifts out of range", levels)
		}
		for j := 0; j < levels; j++ {
			down, up := m.At(j, Down), m.At(j, Up)
			if down < 0 || up < 0 || down+up > 1 || math.IsNaN(down+up) {
				return nil, fmt.Errorf("error map for %d levels: level %d has invalid probabilities %g, %g", levels, j, down, up)
			}
		}
	}
	return &NVM{Technology: technology, maps: maps}, nil
}

// Zero returns a map without faults covering cells of up to maxLevels
// levels.
func Zero(maxLevels int) *NVM {
	n := bits.Len(uint(maxLevels)) - 1
	m := &NVM{Technology: "none", maps: make([]*mat.Dense, n)}
	for i := range m.maps {
		m.maps[i] = mat.NewDense(2<<i, 2, nil)
	}
	return m
}

// MaxLevels is the largest level count covered.
func (m *NVM) MaxLevels() int {
	if len(m.maps) == 0 {
		return 0
	}
	return 1 << len(m.maps)
}

// Matrix returns the transition matrix of cells with the given level count.
func (m *NVM) Matrix(levels int) (*mat.Dense, error) {
	i := bits.Len(uint(levels)) - 2
	if levels < 2 || levels&(levels-1) != 0 || i >= len(m.maps) {
		return nil, errtypes.Configf("rep_conf", "no error map for %d-level cells (maximum %d)", levels, m.MaxLevels())
	}
	return m.maps[i], nil
}

// Probabilities returns the down and up shift probabilities of one level.
func (m *NVM) Probabilities(levels, level int) (down, up float64, err error) {
	d, err := m.Matrix(levels)
	if err != nil {
		return 0, 0, err
	}
	return d.At(level, Down), d.At(level, Up), nil
}

// distribution is the part of a distuv distribution the map needs.
type distribution interface {
	CDF(x float64) float64
	Survival(x float64) float64
	Quantile(p float64) float64
}

// shifted moves a distribution right by loc.
type shifted struct {
	dist distribution
	loc  float64
}

func (s shifted) CDF(x float64) float64      { return s.dist.CDF(x - s.loc) }
func (s shifted) Survival(x float64) float64 { return s.dist.Survival(x - s.loc) }
func (s shifted) Quantile(p float64) float64 { return s.dist.Quantile(p) + s.loc }

func newDistribution(family techdata.Family, l techdata.Level) distribution {
	if family == techdata.Gamma {
		return shifted{dist: distuv.Gamma{Alpha: l.Shape, Beta: 1 / l.Scale}, loc: l.Loc}
	}
	return distuv.Normal{Mu: l.Mean, Sigma: l.Std}
}

// BuildNVM computes transition matrices for every cell width up to
// log2(maxLevels) bits.
func BuildNVM(tech *techdata.NVMTechnology, maxLevels int) (*NVM, error) {
	if maxLevels < 2 || maxLevels&(maxLevels-1) != 0 {
		return nil, errtypes.Configf("rep_conf", "levels must be powers of 2 and > 1, found %d", maxLevels)
	}
	n := bits.Len(uint(maxLevels)) - 1
	if avail := tech.MaxBits(); avail < n {
		return nil, errtypes.Configf("rep_conf", "%s is characterized for cells of up to %d levels, need %d", tech.Name, 1<<avail, maxLevels)
	}

	m := &NVM{Technology: tech.Name, maps: make([]*mat.Dense, n)}
	for i := range m.maps {
		levels, err := tech.Levels(i + 1)
		if err != nil {
			return nil, err
		}
		dists := make([]distribution, len(levels))
		for j, l := range levels {
			dists[j] = newDistribution(tech.Family, l)
		}

		d := mat.NewDense(len(levels), 2, nil)
		for j := 0; j < len(levels)-1; j++ {
			var th float64
			if tech.Family == techdata.Gamma {
				th = (dists[j].Quantile(0.5) + dists[j+1].Quantile(0.5)) / 2
			} else {
				th = gaussThreshold(levels[j], levels[j+1])
			}
			d.Set(j+1, Down, dists[j+1].CDF(th))
			d.Set(j, Up, dists[j].Survival(th))
		}
		m.maps[i] = d
	}
	return m, nil
}

// gaussThreshold returns the point between the two means where both
// densities are equal, or the midpoint of the means if the densities never
// cross there.
func gaussThreshold(lo, hi techdata.Level) float64 {
	mid := (lo.Mean + hi.Mean) / 2
	v1, v2 := lo.Std*lo.Std, hi.Std*hi.Std
	a := 1/(2*v1) - 1/(2*v2)
	b := hi.Mean/v2 - lo.Mean/v1
	c := lo.Mean*lo.Mean/(2*v1) - hi.Mean*hi.Mean/(2*v2) - math.Log(hi.Std/lo.Std)

	between := func(x float64) bool {
		return x >= math.Min(lo.Mean, hi.Mean) && x <= math.Max(lo.Mean, hi.Mean)
	}
	if math.Abs(a) < 1e-12*math.Max(math.Abs(b), 1) {
		if b == 0 {
			return mid
		}
		if x := -c / b; between(x) {
			return x
		}
		return mid
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return mid
	}
	sq := math.Sqrt(disc)
	for _, x := range []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)} {
		if between(x) {
			return x
		}
	}
	return mid
}
