// Package logger builds the zap loggers used by the command line. Logs go to
// stderr so that stdout only carries run results.
package logger

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environments lists the accepted values of the log environment:
//   - local: colored console output for a terminal
//   - ci: plain console output for captured logs
//   - prod: JSON lines
var Environments = []string{"local", "ci", "prod"}

// ValidEnvironment reports whether env is one of Environments.
func ValidEnvironment(env string) bool {
	return slices.Contains(Environments, env)
}

// NewLogger creates a zap logger for env. A non-empty level (debug, info,
// warn, error) replaces the default level of the environment.
func NewLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch env {
	case "local":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "ci":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	case "prod":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown environment %q for logger, want one of %s",
			env, strings.Join(Environments, ", "))
	}

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}

		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return l, nil
}
