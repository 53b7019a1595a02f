// Package techdata is a read-only store of device characterization data:
// per-level read distributions of NVM cells and leakage tables of DRAM
// technology nodes.
package techdata

import (
	"cmp"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"msxfi/types/errtypes"
)

// Family is the statistical model of an NVM cell's read signal.
type Family string

const (
	Gaussian Family = "gaussian"
	Gamma    Family = "gamma"
)

// Class tells which fault model a technology uses.
type Class int

const (
	NVM Class = iota + 1
	DRAM
)

func (c Class) String() string {
	switch c {
	case NVM:
		return "nvm"
	case DRAM:
		return "dram"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Level describes the read signal of a cell programmed to one level:
// Mean/Std for Gaussian technologies, Shape/Loc/Scale for Gamma ones.
type Level struct {
	Mean  float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std   float64 `json:"std,omitempty" yaml:"std,omitempty"`
	Shape float64 `json:"shape,omitempty" yaml:"shape,omitempty"`
	Loc   float64 `json:"loc,omitempty" yaml:"loc,omitempty"`
	Scale float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
}

type NVMTechnology struct {
	Name   string `json:"-" yaml:"-"`
	Family Family `json:"family" yaml:"family"`
	// Cells maps a cell bit width to the distributions of its 2^bits levels,
	// lowest level first.
	Cells map[int][]Level `json:"cells" yaml:"cells"`
}

// MaxBits is the widest cell the technology is characterized for.
func (t *NVMTechnology) MaxBits() int {
	n := 0
	for bits := range t.Cells {
		n = max(n, bits)
	}
	return n
}

// Levels returns the distributions of a cell storing bits bits.
func (t *NVMTechnology) Levels(bits int) ([]Level, error) {
	levels, ok := t.Cells[bits]
	if !ok {
		return nil, &errtypes.DataUnavailableError{Technology: t.Name, Key: fmt.Sprintf("%d-bit cells", bits)}
	}
	return levels, nil
}

func (t *NVMTechnology) validate() error {
	if t.Family != Gaussian && t.Family != Gamma {
		return fmt.Errorf("nvm technology %q: unknown family %q", t.Name, t.Family)
	}
	for bits, levels := range t.Cells {
		if bits < 1 || len(levels) != 1<<bits {
			return fmt.Errorf("nvm technology %q: %d-bit cells need %d levels, got %d", t.Name, bits, 1<<bits, len(levels))
		}
		for i, l := range levels {
			switch t.Family {
			case Gaussian:
				if !(l.Std > 0) {
					return fmt.Errorf("nvm technology %q: %d-bit level %d: std must be positive", t.Name, bits, i)
				}
			case Gamma:
				if !(l.Shape > 0) || !(l.Scale > 0) {
					return fmt.Errorf("nvm technology %q: %d-bit level %d: shape and scale must be positive", t.Name, bits, i)
				}
			}
		}
	}
	return nil
}

// DRAMNode is one characterized technology node.
type DRAMNode struct {
	CellCapacitance float64 `json:"cell_capacitance" yaml:"cell_capacitance"`
	Vdd             float64 `json:"vdd" yaml:"vdd"`
	// Leakage maps temperature in kelvin to the mean off current in amperes.
	Leakage map[int]float64 `json:"leakage" yaml:"leakage"`
}

// LeakageAt returns the characterized temperature closest to temperature
// and its off current. Ties go to the lower temperature.
func (n DRAMNode) LeakageAt(temperature float64) (int, float64, error) {
	if len(n.Leakage) == 0 {
		return 0, 0, fmt.Errorf("no leakage data")
	}
	temps := make([]int, 0, len(n.Leakage))
	for t := range n.Leakage {
		temps = append(temps, t)
	}
	slices.Sort(temps)
	best := temps[0]
	for _, t := range temps[1:] {
		if math.Abs(float64(t)-temperature) < math.Abs(float64(best)-temperature) {
			best = t
		}
	}
	return best, n.Leakage[best], nil
}

type DRAMTechnology struct {
	Name string `json:"-" yaml:"-"`
	// Nodes maps feature size in nanometres to node data.
	Nodes map[int]DRAMNode `json:"nodes" yaml:"nodes"`
}

// FeatureSizes returns the characterized nodes in ascending order.
func (t *DRAMTechnology) FeatureSizes() []int {
	sizes := make([]int, 0, len(t.Nodes))
	for s := range t.Nodes {
		sizes = append(sizes, s)
	}
	slices.Sort(sizes)
	return sizes
}

// Node selects the largest node at or below featureSize, or the smallest
// node when every node is larger. exact reports whether featureSize itself
// is characterized.
func (t *DRAMTechnology) Node(featureSize int) (size int, node DRAMNode, exact bool, err error) {
	sizes := t.FeatureSizes()
	if len(sizes) == 0 {
		return 0, DRAMNode{}, false, &errtypes.DataUnavailableError{Technology: t.Name, Key: "technology nodes"}
	}
	size = sizes[0]
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] <= featureSize {
			size = sizes[i]
			break
		}
	}
	return size, t.Nodes[size], size == featureSize, nil
}

func (t *DRAMTechnology) validate() error {
	for size, n := range t.Nodes {
		if !(n.CellCapacitance > 0) || !(n.Vdd > 0) {
			return fmt.Errorf("dram technology %q: %dnm: cell capacitance and vdd must be positive", t.Name, size)
		}
		if len(n.Leakage) == 0 {
			return fmt.Errorf("dram technology %q: %dnm: no leakage data", t.Name, size)
		}
	}
	return nil
}

// Store maps technology tags to their characterization data.
type Store struct {
	NVM  map[string]*NVMTechnology  `json:"nvm" yaml:"nvm"`
	DRAM map[string]*DRAMTechnology `json:"dram" yaml:"dram"`
}

// Technologies lists every tag, sorted.
func (s *Store) Technologies() []string {
	var tags []string
	for tag := range s.NVM {
		tags = append(tags, tag)
	}
	for tag := range s.DRAM {
		tags = append(tags, tag)
	}
	slices.SortFunc(tags, cmp.Compare[string])
	return tags
}

// Class reports whether tag is an NVM or DRAM technology.
func (s *Store) Class(tag string) (Class, error) {
	if _, ok := s.NVM[tag]; ok {
		return NVM, nil
	}
	if _, ok := s.DRAM[tag]; ok {
		return DRAM, nil
	}
	return 0, &errtypes.DataUnavailableError{Technology: tag}
}

func (s *Store) NVMTechnology(tag string) (*NVMTechnology, error) {
	t, ok := s.NVM[tag]
	if !ok {
		return nil, &errtypes.DataUnavailableError{Technology: tag}
	}
	return t, nil
}

func (s *Store) DRAMTechnology(tag string) (*DRAMTechnology, error) {
	t, ok := s.DRAM[tag]
	if !ok {
		return nil, &errtypes.DataUnavailableError{Technology: tag}
	}
	return t, nil
}

// Validate checks the store for malformed entries and fills in names.
func (s *Store) Validate() error {
	for tag, t := range s.NVM {
		if t == nil {
			return fmt.Errorf("nvm technology %q is empty", tag)
		}
		if _, dup := s.DRAM[tag]; dup {
			return fmt.Errorf("technology %q is both nvm and dram", tag)
		}
		t.Name = tag
		if err := t.validate(); err != nil {
			return err
		}
	}
	for tag, t := range s.DRAM {
		if t == nil {
			return fmt.Errorf("dram technology %q is empty", tag)
		}
		t.Name = tag
		if err := t.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Parse decodes a store; yaml selects YAML over JSON.
func Parse(data []byte, yamlFormat bool) (*Store, error) {
	var s Store
	if yamlFormat {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tech data: %w", err)
		}
	} else if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tech data: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a store from a .json, .yaml or .yml file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tech data: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return Parse(data, true)
	case ".json", "":
		return Parse(data, false)
	default:
		return nil, fmt.Errorf("unsupported tech data format %q", ext)
	}
}

//go:embed sample.json
var sample []byte

// Sample returns the bundled illustrative store. Its distributions are
// shaped like published RRAM/FeFET MLC characterizations and its DRAM
// leakage follows the LOP roadmap values; it is not measured data.
func Sample() *Store {
	s, err := Parse(sample, false)
	if err != nil {
		panic(err)
	}
	return s
}
