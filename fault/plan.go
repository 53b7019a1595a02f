package fault

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"msxfi/cell"
	"msxfi/errmap"
	"msxfi/inject"
	"msxfi/quant"
	"msxfi/sparse"
	"msxfi/techdata"
	"msxfi/types/errtypes"
)

// Bitmask masks are stored as unsigned one-bit values in SLCs.
var (
	maskFormat = quant.FixedPoint{IntBits: 1}
	maskCells  = cell.Config{2}
)

// plan is a validated injection with its error map built. It is shared
// read-only by concurrent runs.
type plan struct {
	technology string
	class      techdata.Class
	format     quant.Format
	cells      cell.Config
	nvm        *errmap.NVM
	dram       *errmap.DRAM
	opts       Options
	log        *slog.Logger
	buildTime  time.Duration
}

type result struct {
	stats       inject.Stats
	encodedBits int
	timings     Timings
}

// prepare validates o against the context and builds the error map. Every
// configuration error surfaces here, before any data is touched.
func (c *Context) prepare(o Options) (*plan, error) {
	if c.Store == nil {
		return nil, errtypes.Configf("tech_data", "no technology store")
	}
	format, err := o.Spec.Format()
	if err != nil {
		return nil, err
	}
	if o.Encoding != Dense && o.Encoding != Bitmask {
		return nil, errtypes.Configf("encode", "unknown encoding %v", o.Encoding)
	}
	class, err := c.Store.Class(c.Technology)
	if err != nil {
		return nil, err
	}

	p := &plan{
		technology: c.Technology,
		class:      class,
		format:     format,
		opts:       o,
		log:        c.logger().With("technology", c.Technology),
	}
	start := time.Now()
	switch class {
	case techdata.NVM:
		if err := o.Cells.Validate(format.Width()); err != nil {
			return nil, err
		}
		tech, err := c.Store.NVMTechnology(c.Technology)
		if err != nil {
			return nil, err
		}
		p.cells = slices.Clone(o.Cells)
		if p.nvm, err = errmap.BuildNVM(tech, o.Cells.MaxLevels()); err != nil {
			return nil, err
		}
	case techdata.DRAM:
		if o.Encoding == Bitmask {
			return nil, errtypes.Configf("encode", "bitmask encoding is not supported for DRAM")
		}
		tech, err := c.Store.DRAMTechnology(c.Technology)
		if err != nil {
			return nil, err
		}
		p.cells = cell.SLC(format.Width())
		p.dram, err = errmap.BuildDRAM(tech, errmap.DRAMParams{
			Temperature:       c.Temperature,
			FeatureSize:       c.FeatureSize,
			RefreshTime:       o.RefreshTime,
			VthSigma:          o.VthSigma,
			Vdd:               o.Vdd,
			SubthresholdSwing: c.SubthresholdSwing,
		}, p.log)
		if err != nil {
			return nil, err
		}
	}
	p.buildTime = time.Since(start)
	p.log.Debug("error map ready", "class", class, "format", format, "cells", p.cells, "encoding", o.Encoding, "elapsed", p.buildTime)
	return p, nil
}

// run returns a faulty copy of values.
func (p *plan) run(values []float64, seed uint64) ([]float64, result, error) {
	switch {
	case p.class == techdata.DRAM:
		return p.runDRAM(values, seed)
	case p.opts.Encoding == Bitmask:
		return p.runBitmask(values, seed)
	}
	return p.runDense(values, p.format, p.cells, seed)
}

func (p *plan) runDense(values []float64, f quant.Format, cells cell.Config, seed uint64) ([]float64, result, error) {
	var res result
	t := time.Now()
	b := quant.Encode(values, f)
	packed, err := cell.Pack(b, cells)
	if err != nil {
		return nil, res, err
	}
	res.timings.Encode = time.Since(t)

	t = time.Now()
	stats, err := inject.Dense(packed, p.nvm, seed, p.log)
	res.timings.Inject = time.Since(t)
	if err != nil {
		return nil, res, err
	}

	t = time.Now()
	if err := cell.Unpack(packed, b); err != nil {
		return nil, res, err
	}
	out := quant.Decode(b, f)
	res.timings.Decode = time.Since(t)

	res.stats = stats
	res.encodedBits = len(values) * f.Width()
	return out, res, nil
}

// runBitmask faults the nonzero values with seed and the mask with seed+1,
// then scatters the values back through the faulty mask.
func (p *plan) runBitmask(values []float64, seed uint64) ([]float64, result, error) {
	mask, nz := sparse.Split(values)
	nzOut, data, err := p.runDense(nz, p.format, p.cells, seed)
	if err != nil {
		return nil, result{}, err
	}
	maskOut, occ, err := p.runDense(mask, maskFormat, maskCells, seed+1)
	if err != nil {
		return nil, result{}, err
	}
	out := sparse.Scatter(maskOut, nzOut)
	clean := sparse.Scatter(mask, quant.RoundTrip(nz, p.format))

	res := result{
		stats: inject.Stats{
			Faults: data.stats.Faults + occ.stats.Faults,
			Cells:  data.stats.Cells + occ.stats.Cells,
			Total:  len(values),
		},
		encodedBits: sparse.Capacity(len(values), len(nz), p.format.Width()),
	}
	for i := range out {
		if out[i] != clean[i] && !(math.IsNaN(out[i]) && math.IsNaN(clean[i])) {
			res.stats.Affected++
		}
	}
	res.timings.add(data.timings)
	res.timings.add(occ.timings)
	return out, res, nil
}

func (p *plan) runDRAM(values []float64, seed uint64) ([]float64, result, error) {
	var res result
	t := time.Now()
	b := quant.Encode(values, p.format)
	res.timings.Encode = time.Since(t)

	t = time.Now()
	res.stats = inject.DRAM(b, p.dram, seed, p.log)
	res.timings.Inject = time.Since(t)

	t = time.Now()
	out := quant.Decode(b, p.format)
	res.timings.Decode = time.Since(t)
	res.encodedBits = len(values) * p.format.Width()
	return out, res, nil
}
