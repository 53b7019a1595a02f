package fault

import (
	"time"

	"msxfi/cell"
	"msxfi/errmap"
	"msxfi/inject"
	"msxfi/techdata"
)

// Timings splits the wall time of an injection by stage. Encode, Inject and
// Decode are summed over parameters, so they may exceed Total when
// parameters run concurrently.
type Timings struct {
	ErrorMap time.Duration
	Encode   time.Duration
	Inject   time.Duration
	Decode   time.Duration
	Total    time.Duration
}

func (t *Timings) add(o Timings) {
	t.Encode += o.Encode
	t.Inject += o.Inject
	t.Decode += o.Decode
}

type ParameterReport struct {
	Name        string
	Shape       []int
	Stats       inject.Stats
	EncodedBits int
}

// Report summarizes one InjectIntoMatrix or InjectIntoModel call.
type Report struct {
	RunID      string
	Technology string
	Class      techdata.Class
	Format     string
	Cells      cell.Config
	Encoding   Encoding
	Seed       uint64

	// DRAM is the derived DRAM fault model, nil for NVM technologies.
	DRAM *errmap.DRAM

	Stats       inject.Stats
	EncodedBits int
	Parameters  []ParameterReport
	Timings     Timings
}

func (r *Report) add(res result) {
	r.Stats.Add(res.stats)
	r.EncodedBits += res.encodedBits
	r.Timings.add(res.timings)
}
