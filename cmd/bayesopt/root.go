package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thalesfsp/bayesopt/internal/logger"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	logEnv   string
	logLevel string
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "bayesopt",
		Short: "Bayesian optimization of black-box functions",
		Long: `bayesopt minimizes expensive black-box functions over a box with a
Gaussian Process surrogate and an acquisition function, Expected
Improvement by default.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logger.NewLogger(opts.logEnv, opts.logLevel)
			if err != nil {
				return err
			}

			opts.logger = l

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logEnv, "log-env", "local",
		"Log environment ("+strings.Join(logger.Environments, ", ")+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newProblemsCmd(),
		newVersionCmd(),
	)

	return cmd
}
