// Package config loads the YAML configuration of an optimization run.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/bayesopt"
	"github.com/thalesfsp/bayesopt/internal/logger"
)

// Config holds the configuration of one optimization run.
type Config struct {
	Problem    string          `yaml:"problem"`
	Iterations int             `yaml:"iterations"`
	Optimizer  OptimizerConfig `yaml:"optimizer"`
	Kernel     KernelConfig    `yaml:"kernel"`
	Output     OutputConfig    `yaml:"output"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// OptimizerConfig mirrors bayesopt.Config.
type OptimizerConfig struct {
	InitPoints    int     `yaml:"init_points"`
	AcqSamples    int     `yaml:"acq_samples"`
	Noise         float64 `yaml:"noise"`
	Xi            float64 `yaml:"xi"`
	Beta          float64 `yaml:"beta"`
	Acquisition   string  `yaml:"acquisition"` // ei, pi, ucb, thompson (default: ei)
	Seed          uint64  `yaml:"seed"`
	JitterRetries int     `yaml:"jitter_retries"`

	// NonFinitePenalty replaces NaN and infinite objective values before
	// they reach the optimizer (default: 1e6).
	NonFinitePenalty float64 `yaml:"nonfinite_penalty"`
}

// KernelConfig selects the covariance function.
type KernelConfig struct {
	Type        string  `yaml:"type"` // squared_exponential, matern52 (default: squared_exponential)
	LengthScale float64 `yaml:"length_scale"`
	Variance    float64 `yaml:"variance"`
}

// OutputConfig holds the optional run artifacts. Empty paths disable them.
type OutputConfig struct {
	Trace   string `yaml:"trace"`
	Metrics string `yaml:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, ci, prod (default: local)
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Default returns the configuration of the reference Branin run.
func Default() Config {
	return Config{
		Problem:    "branin",
		Iterations: 25,
		Optimizer: OptimizerConfig{
			InitPoints:  5,
			AcqSamples:  1000,
			Noise:       1e-6,
			Xi:          0.01,
			Beta:        2.0,
			Acquisition: "ei",

			NonFinitePenalty: 1e6,
		},
		Kernel: KernelConfig{
			Type:        "squared_exponential",
			LengthScale: 2.0,
			Variance:    1.0,
		},
		Logging: LoggingConfig{Env: "local"},
	}
}

// Load reads configuration from a YAML file. Keys missing from the file keep
// their Default value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Problem == "" {
		c.Problem = "branin"
	}
	if c.Iterations <= 0 {
		c.Iterations = 25
	}
	if c.Optimizer.InitPoints <= 0 {
		c.Optimizer.InitPoints = 5
	}
	if c.Optimizer.AcqSamples <= 0 {
		c.Optimizer.AcqSamples = 1000
	}
	if c.Optimizer.Acquisition == "" {
		c.Optimizer.Acquisition = "ei"
	}
	if c.Optimizer.NonFinitePenalty == 0 {
		c.Optimizer.NonFinitePenalty = 1e6
	}
	if c.Kernel.Type == "" {
		c.Kernel.Type = "squared_exponential"
	}
	if c.Kernel.LengthScale <= 0 {
		c.Kernel.LengthScale = 2.0
	}
	if c.Kernel.Variance <= 0 {
		c.Kernel.Variance = 1.0
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", c.Iterations)
	}

	if p := c.Optimizer.NonFinitePenalty; math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("optimizer.nonfinite_penalty must be finite, got %v", p)
	}

	if _, err := ParseAcquisition(c.Optimizer.Acquisition); err != nil {
		return err
	}

	if _, err := c.Kernel.Build(); err != nil {
		return err
	}

	if !logger.ValidEnvironment(c.Logging.Env) {
		return fmt.Errorf("logging.env must be one of %s, got %q",
			strings.Join(logger.Environments, ", "), c.Logging.Env)
	}

	cfg, err := c.Optimizer.ToOptimizerConfig()
	if err != nil {
		return err
	}

	return cfg.Validate()
}

// ParseAcquisition maps an acquisition name to its function.
func ParseAcquisition(name string) (bayesopt.AcquisitionFunc, error) {
	switch strings.ToLower(name) {
	case "ei", "expected_improvement":
		return bayesopt.EI, nil
	case "pi", "probability_of_improvement":
		return bayesopt.PI, nil
	case "ucb":
		return bayesopt.UCB, nil
	case "thompson", "thompson_sampling":
		return bayesopt.ThompsonSampling, nil
	default:
		return nil, fmt.Errorf("%w: optimizer.acquisition must be ei, pi, ucb or thompson, got %q", bayesopt.ErrInvalidConfig, name)
	}
}

// Build returns the configured kernel.
func (k KernelConfig) Build() (bayesopt.Kernel, error) {
	switch strings.ToLower(k.Type) {
	case "squared_exponential", "se", "rbf":
		se, err := bayesopt.NewSquaredExponential(k.LengthScale, k.Variance)
		if err != nil {
			return nil, err
		}

		return se, nil
	case "matern52", "matern":
		m, err := bayesopt.NewMatern52(k.LengthScale, k.Variance)
		if err != nil {
			return nil, err
		}

		return m, nil
	default:
		return nil, fmt.Errorf("%w: kernel.type must be squared_exponential or matern52, got %q", bayesopt.ErrInvalidKernel, k.Type)
	}
}

// ToOptimizerConfig converts the section into a bayesopt.Config without
// progress channel or logger.
func (o OptimizerConfig) ToOptimizerConfig() (bayesopt.Config, error) {
	acquisition, err := ParseAcquisition(o.Acquisition)
	if err != nil {
		return bayesopt.Config{}, err
	}

	cfg := bayesopt.DefaultConfig()
	cfg.InitPoints = o.InitPoints
	cfg.AcqSamples = o.AcqSamples
	cfg.Noise = o.Noise
	cfg.JitterRetries = o.JitterRetries
	cfg.AcquisitionFunc = acquisition
	cfg.AcqParams.Xi = o.Xi
	cfg.AcqParams.Beta = o.Beta
	cfg.RandomState = o.Seed

	return cfg, nil
}

// LogFields returns the configuration as zap fields.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("problem", c.Problem),
		zap.Int("iterations", c.Iterations),
		zap.String("acquisition", c.Optimizer.Acquisition),
		zap.Int("init_points", c.Optimizer.InitPoints),
		zap.Int("acq_samples", c.Optimizer.AcqSamples),
		zap.Float64("noise", c.Optimizer.Noise),
		zap.Uint64("seed", c.Optimizer.Seed),
		zap.String("kernel", c.Kernel.Type),
		zap.Float64("length_scale", c.Kernel.LengthScale),
	}
}

// IsNotExist reports whether err comes from a missing configuration file.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
