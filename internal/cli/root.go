package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/qshape/internal/config"
	"github.com/roach88/qshape/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is resolved once per invocation by the root pre-run hook.
	// Commands constructed on their own resolve it lazily.
	Config *config.Config

	closeLogger func()
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qshape CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qshape",
		Short: "qshape - result shapes for relational queries",
		Long: `Plan, execute and test relational queries whose rows are materialized
into nested, nullability-aware result objects.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := opts.config(cmd)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}

			logOpts := cfg.LoggingOptions()
			if opts.Verbose {
				logOpts.Level = "debug"
			}
			logOpts.Writer = cmd.ErrOrStderr()
			logger, closeLogger, err := logging.New(logOpts)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to configure logging", err)
			}
			slog.SetDefault(logger)
			opts.closeLogger = closeLogger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.closeLogger != nil {
				opts.closeLogger()
			}
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default ./qshape.yaml if present)")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.String("log-format", "text", "log format (text|json)")
	pf.String("seq-url", "", "also ship logs to this Seq server")

	// Add subcommands
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// config returns the resolved configuration, loading it on first use from
// the config file, the environment and the flags of cmd.
func (o *RootOptions) config(cmd *cobra.Command) (*config.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}
	cfg, err := config.Load(o.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	o.Config = cfg
	return cfg, nil
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
