package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thalesfsp/bayesopt"
	"github.com/thalesfsp/bayesopt/internal/config"
	"github.com/thalesfsp/bayesopt/internal/logger"
	"github.com/thalesfsp/bayesopt/internal/metrics"
	"github.com/thalesfsp/bayesopt/internal/objective"
	"github.com/thalesfsp/bayesopt/internal/trace"
)

type runOptions struct {
	configPath string
	flags      config.Config
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{flags: config.Default()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Minimize a benchmark problem",
		Long: `Runs Bayesian optimization on a registered benchmark problem and prints
the best point found. Flags override the values of --config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimization(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML run configuration")
	f.StringVar(&opts.flags.Problem, "problem", opts.flags.Problem, "Benchmark problem, see the problems command")
	f.IntVar(&opts.flags.Iterations, "iters", opts.flags.Iterations, "Number of evaluations")
	f.Uint64Var(&opts.flags.Optimizer.Seed, "seed", opts.flags.Optimizer.Seed, "Random seed")
	f.IntVar(&opts.flags.Optimizer.InitPoints, "init-points", opts.flags.Optimizer.InitPoints, "Random evaluations before the surrogate is used")
	f.IntVar(&opts.flags.Optimizer.AcqSamples, "acq-samples", opts.flags.Optimizer.AcqSamples, "Candidates scored per proposal")
	f.Float64Var(&opts.flags.Optimizer.Noise, "noise", opts.flags.Optimizer.Noise, "Gaussian Process noise level")
	f.Float64Var(&opts.flags.Optimizer.Xi, "xi", opts.flags.Optimizer.Xi, "Exploration bonus of ei and pi")
	f.Float64Var(&opts.flags.Optimizer.Beta, "beta", opts.flags.Optimizer.Beta, "Exploration weight of ucb")
	f.StringVar(&opts.flags.Optimizer.Acquisition, "acquisition", opts.flags.Optimizer.Acquisition, "Acquisition function: ei, pi, ucb, thompson")
	f.IntVar(&opts.flags.Optimizer.JitterRetries, "jitter-retries", opts.flags.Optimizer.JitterRetries, "Cholesky retries with diagonal jitter")
	f.Float64Var(&opts.flags.Optimizer.NonFinitePenalty, "nonfinite-penalty", opts.flags.Optimizer.NonFinitePenalty, "Value recorded for NaN or infinite objective values")
	f.StringVar(&opts.flags.Kernel.Type, "kernel", opts.flags.Kernel.Type, "Kernel: squared_exponential (se), matern52")
	f.Float64Var(&opts.flags.Kernel.LengthScale, "length-scale", opts.flags.Kernel.LengthScale, "Kernel length-scale")
	f.Float64Var(&opts.flags.Kernel.Variance, "variance", opts.flags.Kernel.Variance, "Kernel signal variance")
	f.StringVar(&opts.flags.Output.Trace, "trace", "", "Write every evaluation to this JSONL file")
	f.StringVar(&opts.flags.Output.Metrics, "metrics", "", "Write Prometheus metrics to this textfile")

	return cmd
}

// resolveConfig merges the configuration file with the flags set on the
// command line.
func resolveConfig(cmd *cobra.Command, opts *runOptions) (config.Config, error) {
	if opts.configPath == "" {
		cfg := opts.flags
		cfg.ApplyDefaults()

		return cfg, cfg.Validate()
	}

	cfg, err := config.Load(opts.configPath)
	if config.IsNotExist(err) {
		return config.Config{}, fmt.Errorf("config file %s does not exist", opts.configPath)
	}

	if err != nil {
		return config.Config{}, err
	}

	overrides := map[string]func(){
		"problem":           func() { cfg.Problem = opts.flags.Problem },
		"iters":             func() { cfg.Iterations = opts.flags.Iterations },
		"seed":              func() { cfg.Optimizer.Seed = opts.flags.Optimizer.Seed },
		"init-points":       func() { cfg.Optimizer.InitPoints = opts.flags.Optimizer.InitPoints },
		"acq-samples":       func() { cfg.Optimizer.AcqSamples = opts.flags.Optimizer.AcqSamples },
		"noise":             func() { cfg.Optimizer.Noise = opts.flags.Optimizer.Noise },
		"xi":                func() { cfg.Optimizer.Xi = opts.flags.Optimizer.Xi },
		"beta":              func() { cfg.Optimizer.Beta = opts.flags.Optimizer.Beta },
		"acquisition":       func() { cfg.Optimizer.Acquisition = opts.flags.Optimizer.Acquisition },
		"jitter-retries":    func() { cfg.Optimizer.JitterRetries = opts.flags.Optimizer.JitterRetries },
		"nonfinite-penalty": func() { cfg.Optimizer.NonFinitePenalty = opts.flags.Optimizer.NonFinitePenalty },
		"kernel":            func() { cfg.Kernel.Type = opts.flags.Kernel.Type },
		"length-scale":      func() { cfg.Kernel.LengthScale = opts.flags.Kernel.LengthScale },
		"variance":          func() { cfg.Kernel.Variance = opts.flags.Kernel.Variance },
		"trace":             func() { cfg.Output.Trace = opts.flags.Output.Trace },
		"metrics":           func() { cfg.Output.Metrics = opts.flags.Output.Metrics },
	}

	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func runOptimization(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	log := global.logger

	// The file decides the logging setup unless it was given on the command line.
	if opts.configPath != "" && !cmd.Flags().Changed("log-env") && !cmd.Flags().Changed("log-level") {
		if log, err = logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level); err != nil {
			return err
		}

		global.logger = log
	}

	problem, err := objective.Lookup(cfg.Problem)
	if err != nil {
		return err
	}

	kernel, err := cfg.Kernel.Build()
	if err != nil {
		return err
	}

	optCfg, err := cfg.Optimizer.ToOptimizerConfig()
	if err != nil {
		return err
	}

	// Room for every update, so none is dropped.
	progress := make(chan bayesopt.ProgressUpdate, cfg.Iterations)
	optCfg.ProgressChan = progress
	optCfg.Logger = log

	opt, err := bayesopt.New(problem.Bounds, kernel, optCfg)
	if err != nil {
		return err
	}

	var tw *trace.Writer
	if cfg.Output.Trace != "" {
		if tw, err = trace.NewWriter(cfg.Output.Trace); err != nil {
			return err
		}
		defer tw.Close()
	}

	var recorder *metrics.Recorder
	if cfg.Output.Metrics != "" {
		recorder = metrics.NewRecorder(problem.Name)
	}

	log.Info("Starting optimization", cfg.LogFields()...)

	done := make(chan error, 1)
	go func() {
		done <- consumeProgress(progress, tw, recorder, log)
	}()

	calls := 0
	start := time.Now()

	fn := objective.Finite(objective.Counted(problem.Func, &calls), cfg.Optimizer.NonFinitePenalty)

	best, runErr := opt.Optimize(fn, cfg.Iterations)

	close(progress)

	if err := <-done; err != nil && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		return fmt.Errorf("optimize %s: %w", problem.Name, runErr)
	}

	if tw != nil {
		if err := tw.Close(); err != nil {
			return err
		}

		log.Info("Trace written", zap.String("path", tw.Path()))
	}

	if recorder != nil {
		if err := recorder.WriteTextfile(cfg.Output.Metrics); err != nil {
			return err
		}
	}

	log.Info("Optimization complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("evaluations", calls),
		zap.Float64s("best_x", best.X),
		zap.Float64("best_value", best.Y),
		zap.Float64("regret", problem.Regret(best.Y)),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "problem: %s\nkernel: %s\nevaluations: %d\nbest x: %v\nbest value: %.6g\nknown minimum: %g\n",
		problem.Name, describeKernel(cfg.Kernel.Type, opt.GP().Kernel()), opt.Len(), best.X, best.Y, problem.Minimum)

	return nil
}

// hyperparameters is implemented by the built-in kernels.
type hyperparameters interface {
	LengthScale() float64
	Variance() float64
}

// describeKernel formats the kernel name with the hyperparameters it was
// built with.
func describeKernel(name string, k bayesopt.Kernel) string {
	h, ok := k.(hyperparameters)
	if !ok {
		return name
	}

	return fmt.Sprintf("%s (length_scale %g, variance %g)", name, h.LengthScale(), h.Variance())
}

// consumeProgress writes every update to the trace and the recorder until
// progress is closed.
func consumeProgress(progress <-chan bayesopt.ProgressUpdate, tw *trace.Writer, recorder *metrics.Recorder, log *zap.Logger) error {
	last := time.Now()

	var firstErr error

	for update := range progress {
		now := time.Now()

		if recorder != nil {
			recorder.Observe(update, now.Sub(last))
		}

		// Each entry reaches the disk before the next evaluation starts.
		if tw != nil && firstErr == nil {
			if err := tw.Write(trace.EntryFrom(update, now)); err != nil {
				firstErr = err
			} else if err := tw.Flush(); err != nil {
				firstErr = err
			}
		}

		log.Debug("Progress",
			zap.String("phase", string(update.Phase)),
			zap.Int("iteration", update.CurrentIteration),
			zap.Float64("value", update.CurrentValue),
			zap.Float64("best", update.CurrentBestValue),
		)

		last = now
	}

	return firstErr
}
