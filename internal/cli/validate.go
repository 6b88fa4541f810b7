package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/instrumentd/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	Owner       string              `json:"owner,omitempty"`
	Instruments []config.Instrument `json:"instruments,omitempty"`
	Error       *ValidationError    `json:"error,omitempty"`
}

// ValidationError locates a catalog error.
type ValidationError struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog]",
		Short: "Validate an instrument catalog",
		Long: `Load an instrument catalog and check it against the catalog schema.

The catalog may be a .cue file or a directory holding one CUE package.
Without an argument, INSTRUMENTD_CONFIG is used.

Exit codes:
  0 - Catalog is valid
  1 - Catalog is invalid
  2 - Command error (catalog not found, etc.)

Examples:
  instrumentd validate ./catalog.cue
  instrumentd validate ./catalog --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			flag := ""
			if len(args) == 1 {
				flag = args[0]
			}
			return runValidate(rootOpts, flag, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, flag string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	path, err := opts.catalogPath(flag)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "no catalog given", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("catalog not found: %s", path), nil)
	}
	formatter.VerboseLog("Loading catalog %s", path)

	catalog, err := loadCatalog(path)
	if err != nil {
		return outputValidationError(formatter, err)
	}

	if _, err := catalog.RegistryOptions(); err != nil {
		return outputValidationError(formatter, err)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{
			Valid:       true,
			Owner:       string(catalog.Registry.Owner),
			Instruments: catalog.Instruments,
		})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Catalog valid (owner %s, deposit asset %s)\n", catalog.Registry.Owner, catalog.Registry.DepositAsset)
	for _, inst := range catalog.Instruments {
		fmt.Fprintf(w, "  %s  %s  owner=%s  terminates_at=%d  override_at=%d\n",
			inst.Name, inst.Variant, inst.Owner, inst.TerminatesAt, inst.OverrideAt)
	}
	return nil
}

// outputValidationError prints a catalog error with its position.
func outputValidationError(formatter *OutputFormatter, err error) error {
	verr := &ValidationError{Message: err.Error()}
	var le *config.LoadError
	if errors.As(err, &le) {
		verr.Message = le.Message
		if le.Pos.IsValid() {
			verr.File = le.Pos.Filename()
			verr.Line = le.Pos.Line()
			verr.Column = le.Pos.Column()
		}
	}

	if formatter.JSON() {
		if werr := writeResponse(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Error: verr},
			Error:  &CLIError{Code: ErrCodeCatalog, Message: verr.Message},
		}); werr != nil {
			return werr
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		if verr.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", verr.File, verr.Line, verr.Column)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeCatalog, verr.Message)
	}
	// Catalog failures = exit code 1 (validation failure)
	return WrapExitError(ExitFailure, "catalog invalid", err)
}
