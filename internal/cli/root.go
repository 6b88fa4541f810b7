package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/instrumentd/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogFormat string // "json" | "text"; empty falls back to the environment

	// Env holds INSTRUMENTD_* settings, loaded before any subcommand runs.
	Env config.Env

	// LogWriter receives log output. Defaults to stderr.
	LogWriter io.Writer

	logger *slog.Logger
}

// ValidFormats defines the allowed output and log formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the instrumentd CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "instrumentd",
		Short: "instrumentd - instrument issuance engine",
		Long: `Run escrow-backed financial instruments against a durable action journal.

Instruments are declared in a CUE catalog; every action is journaled to
SQLite with its events and can be replayed to rebuild and verify state.

Environment:
  INSTRUMENTD_DB          default --db path (instrumentd.db)
  INSTRUMENTD_CONFIG      default --config catalog path
  INSTRUMENTD_LOG_LEVEL   debug|info|warn|error (info)
  INSTRUMENTD_LOG_FORMAT  text|json (text)`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.LogFormat != "" && !isValidFormat(opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats)
			}
			env, err := config.LoadEnv()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			opts.Env = env
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Logger returns the logger configured from flags and environment:
// --verbose selects debug, otherwise INSTRUMENTD_LOG_LEVEL applies.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}

	level, err := o.Env.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	w := o.LogWriter
	if w == nil {
		w = os.Stderr
	}
	format := o.LogFormat
	if format == "" {
		format = o.Env.LogFormat
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	o.logger = slog.New(handler)
	return o.logger
}

// database returns the --db flag value, or INSTRUMENTD_DB when unset.
func (o *RootOptions) database(flag string) string {
	if flag != "" {
		return flag
	}
	return o.Env.DB
}

// catalogPath returns the --config flag value, or INSTRUMENTD_CONFIG when
// unset. Returns an error when neither is given.
func (o *RootOptions) catalogPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if o.Env.Config != "" {
		return o.Env.Config, nil
	}
	return "", NewExitError(ExitCommandError, "catalog required: pass --config or set INSTRUMENTD_CONFIG")
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
