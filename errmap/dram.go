package errmap

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"msxfi/techdata"
	"msxfi/types/errtypes"
)

const (
	boltzmann = 1.380649e-23   // J/K
	charge    = 1.60217663e-19 // C
)

// DRAMParams are the operating conditions of a DRAM fault model.
type DRAMParams struct {
	Temperature       float64 // K
	FeatureSize       int     // nm
	RefreshTime       float64 // s
	VthSigma          float64 // V
	Vdd               float64 // V, 0 keeps the node's supply
	SubthresholdSwing float64 // mV/decade
}

// DRAM is the bit-flip probability of a storage cell holding a 1 together
// with the intermediate quantities it was derived from.
type DRAM struct {
	Technology      string
	FlipProbability float64

	FeatureSize     int // selected node, nm
	Temperature     int // selected leakage table entry, K
	Vdd             float64
	Leakage         float64 // mean off current, A
	LeakageSigma    float64 // A
	CriticalCurrent float64 // A
}

func (p DRAMParams) validate() error {
	switch {
	case !(p.RefreshTime > 0):
		return errtypes.Configf("refresh_t", "a positive refresh time is required for DRAM, got %g", p.RefreshTime)
	case !(p.Temperature > 0):
		return errtypes.Configf("temperature", "must be positive, got %g", p.Temperature)
	case !(p.SubthresholdSwing > 0):
		return errtypes.Configf("subthreshold_swing", "must be positive, got %g", p.SubthresholdSwing)
	case p.VthSigma < 0 || math.IsNaN(p.VthSigma):
		return errtypes.Configf("vth_sigma", "must not be negative, got %g", p.VthSigma)
	case p.Vdd < 0 || math.IsNaN(p.Vdd):
		return errtypes.Configf("vdd", "must not be negative, got %g", p.Vdd)
	}
	return nil
}

// BuildDRAM derives the probability that a cell's log-normally distributed
// leakage drains more than half its charge within one refresh interval.
func BuildDRAM(tech *techdata.DRAMTechnology, p DRAMParams, log *slog.Logger) (*DRAM, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	size, node, exact, err := tech.Node(p.FeatureSize)
	if err != nil {
		return nil, err
	}
	if !exact {
		log.Warn("feature size not characterized, using nearest node", "technology", tech.Name, "requested", p.FeatureSize, "node", size)
	}
	temp, ioff, err := node.LeakageAt(p.Temperature)
	if err != nil {
		return nil, &errtypes.DataUnavailableError{Technology: tech.Name, Key: "leakage"}
	}
	if float64(temp) != p.Temperature {
		log.Debug("temperature not characterized, using nearest", "requested", p.Temperature, "temperature", temp)
	}

	vdd := node.Vdd
	if p.Vdd > 0 {
		vdd = p.Vdd
	}

	vt := boltzmann * p.Temperature / charge
	n := p.SubthresholdSwing * 1e-3 / (vt * math.Ln10)
	sigmaLn := p.VthSigma / (n * vt)
	sigma := ioff * math.Sqrt(math.Expm1(sigmaLn*sigmaLn))
	icrit := node.CellCapacitance * vdd / 2 / p.RefreshTime

	var prob float64
	if sigma > 0 {
		prob = distuv.Normal{Mu: ioff, Sigma: sigma}.Survival(icrit)
	} else if ioff > icrit {
		prob = 1
	}
	prob = math.Min(math.Max(prob, 0), 1)

	m := &DRAM{
		Technology:      tech.Name,
		FlipProbability: prob,
		FeatureSize:     size,
		Temperature:     temp,
		Vdd:             vdd,
		Leakage:         ioff,
		LeakageSigma:    sigma,
		CriticalCurrent: icrit,
	}
	log.Debug("dram error map", "technology", tech.Name, "node", size, "temperature", temp,
		"ioff", ioff, "sigma", sigma, "icrit", icrit, "p", prob)
	return m, nil
}
