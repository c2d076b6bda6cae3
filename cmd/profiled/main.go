package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel  string
	LogFormat string // "json" | "text"
}

// validLogFormats defines the allowed log formats.
var validLogFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the profiler daemon.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "profiled",
		Short: "Model serving configuration search daemon",
		Long: `profiled proposes model serving configurations for measurement and
searches for the best one: it explores the declared parameter grid, then
refines the concurrency of the best configurations of every model.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validLogFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, validLogFormats)
			}
			logger.SetDefault(logger.NewFormat(opts.LogFormat, opts.LogLevel, cmd.ErrOrStderr()))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
