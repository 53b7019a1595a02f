// Package fault is the entry point for fault studies: it binds a technology
// and its operating conditions, then injects faults into single matrices or
// whole sets of model parameters.
package fault

import (
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"msxfi/cell"
	"msxfi/quant"
	"msxfi/techdata"
	"msxfi/tensor"
	"msxfi/types/errtypes"
)

const (
	DefaultTemperature       = 300.0 // K
	DefaultFeatureSize       = 16    // nm
	DefaultSubthresholdSwing = 70.0  // mV/decade
)

// Encoding selects how an array is laid out in memory.
type Encoding int

const (
	// Dense stores every element.
	Dense Encoding = iota
	// Bitmask stores a one-bit occupancy mask and the nonzero elements.
	Bitmask
)

func (e Encoding) String() string {
	switch e {
	case Dense:
		return "dense"
	case Bitmask:
		return "bitmask"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dense":
		return Dense, nil
	case "bitmask", "bitmask_sparse":
		return Bitmask, nil
	}
	return 0, errtypes.Configf("encode", "unsupported encoding %q (supported: dense, bitmask)", s)
}

// Options describe one injection.
type Options struct {
	Spec quant.Spec
	// Cells is the cell configuration of NVM technologies. DRAM stores
	// every bit in its own cell and ignores it.
	Cells    cell.Config
	Encoding Encoding
	Seed     uint64

	// DRAM only.
	RefreshTime float64 // s
	VthSigma    float64 // V
	Vdd         float64 // V, 0 keeps the node's supply

	// Parallelism bounds concurrent parameters in InjectIntoModel;
	// 0 uses GOMAXPROCS.
	Parallelism int
}

// Context is a technology and its operating conditions. It is read-only
// during injection and may be shared between goroutines.
type Context struct {
	Store             *techdata.Store
	Technology        string
	Temperature       float64 // K
	FeatureSize       int     // nm
	SubthresholdSwing float64 // mV/decade
	Logger            *slog.Logger
}

// NewContext returns a context for technology with default conditions.
func NewContext(store *techdata.Store, technology string) *Context {
	return &Context{
		Store:             store,
		Technology:        technology,
		Temperature:       DefaultTemperature,
		FeatureSize:       DefaultFeatureSize,
		SubthresholdSwing: DefaultSubthresholdSwing,
		Logger:            slog.Default(),
	}
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// InjectIntoMatrix returns a faulty copy of t. t itself is not modified.
func (c *Context) InjectIntoMatrix(t *tensor.Tensor, o Options) (*tensor.Tensor, Report, error) {
	start := time.Now()
	p, err := c.prepare(o)
	if err != nil {
		return nil, Report{}, err
	}
	out, res, err := p.run(t.Data, o.Seed)
	if err != nil {
		return nil, Report{}, err
	}
	faulty, err := tensor.View(out, t.Shape...)
	if err != nil {
		return nil, Report{}, err
	}

	rep := p.report()
	rep.add(res)
	rep.Timings.Total = time.Since(start)
	p.log.Info("injected faults", "run", rep.RunID,
		"affected", rep.Stats.Affected, "total", rep.Stats.Total, "rate", rep.Stats.FaultRate())
	return faulty, rep, nil
}

type parameter struct {
	name string
	t    *tensor.Tensor
}

// InjectIntoModel injects faults into every parameter in place. Each
// parameter gets its own pass seeded with o.Seed, so identical parameters
// receive identical faults. Parameters are processed concurrently; if any
// of them fails, none is modified.
func (c *Context) InjectIntoModel(params iter.Seq2[string, *tensor.Tensor], o Options) (Report, error) {
	start := time.Now()
	p, err := c.prepare(o)
	if err != nil {
		return Report{}, err
	}

	var list []parameter
	for name, t := range params {
		list = append(list, parameter{name: name, t: t})
	}

	outs := make([][]float64, len(list))
	results := make([]result, len(list))
	var g errgroup.Group
	limit := o.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, prm := range list {
		g.Go(func() error {
			out, res, err := p.run(prm.t.Data, o.Seed)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", prm.name, err)
			}
			outs[i], results[i] = out, res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := p.report()
	for i, prm := range list {
		copy(prm.t.Data, outs[i])
		rep.add(results[i])
		rep.Parameters = append(rep.Parameters, ParameterReport{
			Name:        prm.name,
			Shape:       prm.t.Shape,
			Stats:       results[i].stats,
			EncodedBits: results[i].encodedBits,
		})
		p.log.Debug("injected parameter", "name", prm.name, "affected", results[i].stats.Affected, "total", results[i].stats.Total)
	}
	rep.Timings.Total = time.Since(start)
	p.log.Info("injected faults into model", "run", rep.RunID, "parameters", len(list),
		"affected", rep.Stats.Affected, "total", rep.Stats.Total, "rate", rep.Stats.FaultRate())
	return rep, nil
}

func (p *plan) report() Report {
	return Report{
		RunID:      uuid.New().String(),
		Technology: p.technology,
		Class:      p.class,
		Format:     p.format.String(),
		Cells:      p.cells,
		Encoding:   p.opts.Encoding,
		Seed:       p.opts.Seed,
		DRAM:       p.dram,
		Timings:    Timings{ErrorMap: p.buildTime},
	}
}
