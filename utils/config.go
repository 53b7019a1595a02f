package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"msxfi/cell"
	"msxfi/fault"
	"msxfi/quant"
	"msxfi/techdata"
	"msxfi/types/errtypes"
)

// Fixed-point widths used when a fixed-point q_type is given without them.
const (
	DefaultIntBits  = 2
	DefaultFracBits = 4
)

// DefaultRepConf stores a 6-bit value in two 3-bit MLCs.
var DefaultRepConf = []int{8, 8}

// Config holds the settings of one fault injection experiment. Pointer
// fields are nil when not provided.
type Config struct {
	Technology string
	QType      string
	IntBits    *int
	FracBits   *int
	RepConf    []int
	Encoding   string
	Seed       *uint64

	RefreshTime       *float64 // µs
	VthSigma          float64  // mV
	Vdd               *float64 // V
	Temperature       float64  // K
	FeatureSize       int      // nm
	SubthresholdSwing float64  // mV/decade

	// TechData is a JSON or YAML store; empty uses the bundled sample.
	TechData    string
	MatrixSize  int
	Parallelism int
	Debug       int
}

// LoadConfig reads defaults from MSXFI_* environment variables, after
// loading .env from the working directory if there is one.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	repConf, err := ParseRepConf(os.Getenv("MSXFI_REP_CONF"))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Technology:        getEnv("MSXFI_MODE", "rram_mlc"),
		QType:             getEnv("MSXFI_Q_TYPE", "afloat"),
		IntBits:           getEnvIntPtr("MSXFI_INT_BITS"),
		FracBits:          getEnvIntPtr("MSXFI_FRAC_BITS"),
		RepConf:           repConf,
		Encoding:          getEnv("MSXFI_ENCODE", "dense"),
		RefreshTime:       getEnvFloatPtr("MSXFI_REFRESH_T"),
		VthSigma:          getEnvFloat("MSXFI_VTH_SIGMA", 50),
		Vdd:               getEnvFloatPtr("MSXFI_VDD"),
		Temperature:       getEnvFloat("MSXFI_TEMPERATURE", fault.DefaultTemperature),
		FeatureSize:       getEnvInt("MSXFI_FEATURE_SIZE", fault.DefaultFeatureSize),
		SubthresholdSwing: getEnvFloat("MSXFI_SS", fault.DefaultSubthresholdSwing),
		TechData:          os.Getenv("MSXFI_TECH_DATA"),
		MatrixSize:        getEnvInt("MSXFI_MATRIX_SIZE", 1000),
		Parallelism:       getEnvInt("MSXFI_PARALLELISM", 0),
		Debug:             getEnvInt("MSXFI_DEBUG", 0),
	}
	if v := os.Getenv("MSXFI_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MSXFI_SEED: %w", err)
		}
		cfg.Seed = &seed
	}
	return cfg, nil
}

// ParseRepConf parses space or comma separated level counts. An empty
// string yields DefaultRepConf.
func ParseRepConf(s string) ([]int, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(parts) == 0 {
		return append([]int(nil), DefaultRepConf...), nil
	}
	levels := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, errtypes.Configf("rep_conf", "all values must be integers: %q", p)
		}
		levels[i] = n
	}
	return levels, nil
}

// LoadStore opens the configured technology store.
func (c *Config) LoadStore() (*techdata.Store, error) {
	if c.TechData == "" {
		return techdata.Sample(), nil
	}
	return techdata.Load(c.TechData)
}

// ValidateConfig checks cfg against store and fills in defaults: float
// formats must not carry int/frac bits, fixed-point formats get
// DefaultIntBits and DefaultFracBits when omitted.
func ValidateConfig(cfg *Config, store *techdata.Store) error {
	kind, err := quant.ParseKind(cfg.QType)
	if err != nil {
		return err
	}
	if kind.IsFloat() {
		if cfg.IntBits != nil || cfg.FracBits != nil {
			return errtypes.Configf("int_bits/frac_bits", "not applicable for q_type %q", cfg.QType)
		}
	} else {
		if cfg.IntBits == nil {
			n := DefaultIntBits
			cfg.IntBits = &n
		}
		if cfg.FracBits == nil {
			n := DefaultFracBits
			cfg.FracBits = &n
		}
	}
	if _, err := fault.ParseEncoding(cfg.Encoding); err != nil {
		return err
	}

	spec, err := cfg.Spec()
	if err != nil {
		return err
	}

	class, err := store.Class(cfg.Technology)
	if err != nil {
		return err
	}
	switch class {
	case techdata.DRAM:
		if cfg.RefreshTime == nil {
			return errtypes.Configf("refresh_t", "required for DRAM technology %s", cfg.Technology)
		}
	case techdata.NVM:
		if err := cell.Config(cfg.RepConf).Validate(spec.Width()); err != nil {
			return err
		}
	}

	switch {
	case cfg.MatrixSize <= 0:
		return errtypes.Configf("matrix_size", "must be positive")
	case cfg.VthSigma < 0:
		return errtypes.Configf("vth_sigma", "must not be negative")
	case cfg.Temperature <= 0:
		return errtypes.Configf("temperature", "must be positive")
	}
	return nil
}

// Spec returns the quantization spec. Call ValidateConfig first so
// fixed-point defaults are applied.
func (c *Config) Spec() (quant.Spec, error) {
	kind, err := quant.ParseKind(c.QType)
	if err != nil {
		return quant.Spec{}, err
	}
	s := quant.Spec{Kind: kind}
	if c.IntBits != nil {
		s.IntBits = *c.IntBits
	}
	if c.FracBits != nil {
		s.FracBits = *c.FracBits
	}
	return s, s.Validate()
}

// Options converts the configuration to injection options, turning the
// refresh time from µs into seconds and vth sigma from mV into volts.
func (c *Config) Options(seed uint64) (fault.Options, error) {
	spec, err := c.Spec()
	if err != nil {
		return fault.Options{}, err
	}
	enc, err := fault.ParseEncoding(c.Encoding)
	if err != nil {
		return fault.Options{}, err
	}
	o := fault.Options{
		Spec:        spec,
		Cells:       cell.Config(c.RepConf),
		Encoding:    enc,
		Seed:        seed,
		VthSigma:    c.VthSigma / 1000,
		Parallelism: c.Parallelism,
	}
	if c.RefreshTime != nil {
		o.RefreshTime = *c.RefreshTime * 1e-6
	}
	if c.Vdd != nil {
		o.Vdd = *c.Vdd
	}
	return o, nil
}

// Context binds the configured technology and conditions to store.
func (c *Config) Context(store *techdata.Store) *fault.Context {
	ctx := fault.NewContext(store, c.Technology)
	ctx.Temperature = c.Temperature
	ctx.FeatureSize = c.FeatureSize
	ctx.SubthresholdSwing = c.SubthresholdSwing
	return ctx
}

// OutputFilename names the faulty copy of a model file:
// <base>_<tech>_s<seed>_q<qtype>[_i<int>_f<frac>][_rt<refresh>][_vdd<v>]<ext>,
// next to the original.
func OutputFilename(modelPath string, cfg *Config, class techdata.Class, seed uint64) string {
	ext := filepath.Ext(modelPath)
	base := strings.TrimSuffix(filepath.Base(modelPath), ext)
	parts := []string{base, cfg.Technology, fmt.Sprintf("s%d", seed)}

	kind, err := quant.ParseKind(cfg.QType)
	if err != nil {
		parts = append(parts, "q"+cfg.QType)
	} else {
		parts = append(parts, "q"+kind.Tag())
		if !kind.IsFloat() && cfg.IntBits != nil && cfg.FracBits != nil {
			parts = append(parts, fmt.Sprintf("i%d", *cfg.IntBits), fmt.Sprintf("f%d", *cfg.FracBits))
		}
	}
	if class == techdata.DRAM {
		if cfg.RefreshTime != nil {
			parts = append(parts, "rt"+formatFloat(*cfg.RefreshTime))
		}
		if cfg.Vdd != nil {
			parts = append(parts, "vdd"+formatFloat(*cfg.Vdd))
		}
	}
	return filepath.Join(filepath.Dir(modelPath), strings.Join(parts, "_")+ext)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvIntPtr(key string) *int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return &intVal
		}
	}
	return nil
}

func getEnvFloatPtr(key string) *float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return &f
		}
	}
	return nil
}
