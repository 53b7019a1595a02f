package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"msxfi/errmap"
	"msxfi/logutil"
	"msxfi/techdata"
	"msxfi/tensor"
	"msxfi/utils"
)

// maxRandomSeed bounds seeds drawn when none is given.
const maxRandomSeed = 1 << 10

// run is the state shared by the subcommands once flags are parsed.
type run struct {
	cfg   *utils.Config
	store *techdata.Store
	class techdata.Class
	seed  uint64
}

func NewCLI(cfg *utils.Config) *cobra.Command {
	r := &run{cfg: cfg}
	var (
		intBits, fracBits int
		repConf           string
		seed              uint64
		refresh, vdd      float64
		verbose           int
	)

	rootCmd := &cobra.Command{
		Use:   "msxfi",
		Short: "Inject NVM and DRAM faults into matrices and model weights",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(max(verbose, cfg.Debug))))

			flags := cmd.Flags()
			if flags.Changed("int_bits") {
				cfg.IntBits = &intBits
			}
			if flags.Changed("frac_bits") {
				cfg.FracBits = &fracBits
			}
			if flags.Changed("rep_conf") {
				levels, err := utils.ParseRepConf(repConf)
				if err != nil {
					return err
				}
				cfg.RepConf = levels
			}
			if flags.Changed("refresh_t") {
				cfg.RefreshTime = &refresh
			}
			if flags.Changed("vdd") {
				cfg.Vdd = &vdd
			}
			if flags.Changed("seed") {
				cfg.Seed = &seed
			}
			return r.setup(cmd.Name() != "techs")
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.Technology, "mode", cfg.Technology, "memory technology (see 'msxfi techs')")
	f.StringVar(&cfg.QType, "q_type", cfg.QType, "quantization: float16, bfloat16, float32, float64, signed, unsigned, afloat, int")
	f.IntVar(&intBits, "int_bits", 0, "integer bits of fixed-point formats (default 2)")
	f.IntVar(&fracBits, "frac_bits", 0, "fractional bits of fixed-point formats (default 4)")
	f.StringVar(&repConf, "rep_conf", "", "levels of each cell, e.g. \"8 8\" (default \"8 8\")")
	f.StringVar(&cfg.Encoding, "encode", cfg.Encoding, "memory layout: dense or bitmask")
	f.Uint64Var(&seed, "seed", 0, "random seed (default random)")
	f.Float64Var(&refresh, "refresh_t", 0, "DRAM refresh time in µs")
	f.Float64Var(&cfg.VthSigma, "vth_sigma", cfg.VthSigma, "DRAM threshold voltage sigma in mV")
	f.Float64Var(&vdd, "vdd", 0, "DRAM supply override in V")
	f.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "DRAM temperature in K")
	f.IntVar(&cfg.FeatureSize, "feature_size", cfg.FeatureSize, "DRAM feature size in nm")
	f.Float64Var(&cfg.SubthresholdSwing, "ss", cfg.SubthresholdSwing, "DRAM subthreshold swing in mV/decade")
	f.StringVar(&cfg.TechData, "tech_data", cfg.TechData, "technology store (.json, .yaml); default is the bundled sample")
	f.IntVar(&cfg.Parallelism, "parallelism", cfg.Parallelism, "parameters injected concurrently (0 = GOMAXPROCS)")
	f.CountVarP(&verbose, "verbose", "v", "log debug (-v) or trace (-vv) records")

	cobra.EnableCommandSorting = false

	matrixCmd := &cobra.Command{
		Use:   "matrix",
		Short: "Inject faults into a random square matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.matrix(cmd)
		},
	}
	matrixCmd.Flags().IntVar(&cfg.MatrixSize, "matrix_size", cfg.MatrixSize, "matrix rows and columns")

	var output string
	modelCmd := &cobra.Command{
		Use:   "model WEIGHTS",
		Short: "Inject faults into every weight and bias of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.model(cmd, args[0], output)
		},
	}
	modelCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default derived from the settings)")

	errmapCmd := &cobra.Command{
		Use:   "errmap",
		Short: "Print the fault probabilities of a technology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.printErrorMap(cmd)
		},
	}

	techsCmd := &cobra.Command{
		Use:   "techs",
		Short: "List the technologies of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			utils.PrintTechnologies(cmd.OutOrStdout(), r.store)
			return nil
		},
	}

	rootCmd.AddCommand(matrixCmd, modelCmd, errmapCmd, techsCmd)
	return rootCmd
}

// setup loads the store and, if validate is set, checks the configuration
// and settles the seed.
func (r *run) setup(validate bool) error {
	store, err := r.cfg.LoadStore()
	if err != nil {
		return err
	}
	r.store = store
	if !validate {
		return nil
	}
	if err := utils.ValidateConfig(r.cfg, store); err != nil {
		return err
	}
	if r.class, err = store.Class(r.cfg.Technology); err != nil {
		return err
	}

	if r.cfg.Seed != nil {
		r.seed = *r.cfg.Seed
		slog.Info("using user-provided seed", "seed", r.seed)
	} else {
		r.seed = uint64(rand.Intn(maxRandomSeed + 1))
		slog.Info("no seed provided, using randomly generated seed", "seed", r.seed)
	}
	return nil
}

func (r *run) matrix(cmd *cobra.Command) error {
	n := r.cfg.MatrixSize
	uniform := distuv.Uniform{Min: -1, Max: 1, Src: rand.NewSource(r.seed)}
	m := tensor.New(n, n)
	for i := range m.Data {
		m.Data[i] = uniform.Rand()
	}

	opts, err := r.cfg.Options(r.seed)
	if err != nil {
		return err
	}
	faulty, rep, err := r.cfg.Context(r.store).InjectIntoMatrix(m, opts)
	if err != nil {
		return err
	}
	diff, err := tensor.Diff(m, faulty)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	utils.PrintSample(w, fmt.Sprintf("Original %s matrix (sample):", r.cfg.Technology), m, 5, 5)
	utils.PrintSample(w, "Faulty matrix (sample):", faulty, 5, 5)
	utils.PrintSample(w, "Difference (faults):", diff, 5, 5)
	fmt.Fprintln(w)
	utils.PrintReport(w, rep)

	utils.Output = w
	utils.PrintTimingStats(rep.Timings, m.Len())
	return nil
}

func (r *run) model(cmd *cobra.Command, path, output string) error {
	start := time.Now()
	weights, err := utils.LoadWeights(path)
	if err != nil {
		return err
	}
	slog.Debug("loaded weights", "path", path, "layers", len(weights.Layers), "elapsed", time.Since(start))

	opts, err := r.cfg.Options(r.seed)
	if err != nil {
		return err
	}
	rep, err := r.cfg.Context(r.store).InjectIntoModel(weights.Parameters(), opts)
	if err != nil {
		return err
	}

	if output == "" {
		output = utils.OutputFilename(path, r.cfg, r.class, r.seed)
	}
	if err := utils.SaveWeights(output, weights); err != nil {
		return fmt.Errorf("failed to save faulty model: %w", err)
	}

	w := cmd.OutOrStdout()
	utils.PrintReport(w, rep)
	fmt.Fprintf(w, "faulty model saved to %s\n", output)
	return nil
}

func (r *run) printErrorMap(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	switch r.class {
	case techdata.NVM:
		tech, err := r.store.NVMTechnology(r.cfg.Technology)
		if err != nil {
			return err
		}
		m, err := errmap.BuildNVM(tech, 1<<tech.MaxBits())
		if err != nil {
			return err
		}
		return utils.PrintErrorMap(w, m)
	case techdata.DRAM:
		opts, err := r.cfg.Options(r.seed)
		if err != nil {
			return err
		}
		tech, err := r.store.DRAMTechnology(r.cfg.Technology)
		if err != nil {
			return err
		}
		ctx := r.cfg.Context(r.store)
		m, err := errmap.BuildDRAM(tech, errmap.DRAMParams{
			Temperature:       ctx.Temperature,
			FeatureSize:       ctx.FeatureSize,
			RefreshTime:       opts.RefreshTime,
			VthSigma:          opts.VthSigma,
			Vdd:               opts.Vdd,
			SubthresholdSwing: ctx.SubthresholdSwing,
		}, slog.Default())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %dnm @ %dK, vdd %gV\n", m.Technology, m.FeatureSize, m.Temperature, m.Vdd)
		fmt.Fprintf(w, "ioff %.4e A, sigma %.4e A, icrit %.4e A\n", m.Leakage, m.LeakageSigma, m.CriticalCurrent)
		fmt.Fprintf(w, "bit flip probability %.6g\n", m.FlipProbability)
	}
	return nil
}
