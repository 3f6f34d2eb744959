package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/appsim/internal/config"
)

// RootOptions holds global flags for all commands, plus the configuration
// and logger resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	DBPath      string
	LogFormat   string
	MetricsPath string // Prometheus text file written after exec or invoke

	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the appsim CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "appsim",
		Short: "appsim - declarative app simulator",
		Long: `Run simulated apps described by declarative definitions.

An app definition lists actions, their parameters and a small logic
program per action. appsim validates definitions, executes actions for
agents against app state, and persists state between calls.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json, overrides config)")
	cmd.PersistentFlags().StringVar(&opts.MetricsPath, "metrics-file", "", "write execution metrics (Prometheus text format) to this file")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewObserveCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve validates global flags, loads configuration and builds the
// logger. Flags override the config file, which overrides defaults.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DBPath != "" {
		cfg.Store.Path = o.DBPath
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	o.Config = cfg
	o.Logger = NewLogger(cmd.ErrOrStderr(), cfg.Log)
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
