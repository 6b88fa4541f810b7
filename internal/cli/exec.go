package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/ir"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
	Config   string

	// FlowGenerator and TimeSource override the engine defaults (for testing).
	// If nil, flow tokens are UUIDv7 and action times come from the wall clock.
	FlowGenerator engine.FlowTokenGenerator
	TimeSource    ir.TimeSource
}

// ExecAction is the outcome of one executed action.
type ExecAction struct {
	Seq        int64           `json:"seq"`
	Kind       string          `json:"kind"`
	ActionID   string          `json:"action_id"`
	Outcome    ir.Outcome      `json:"outcome"`
	Code       ir.ErrorCode    `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Events     int             `json:"events"`
	Instrument ir.InstrumentID `json:"instrument,omitempty"`
	Issuance   ir.IssuanceID   `json:"issuance,omitempty"`
}

// ExecResult holds the overall exec result.
type ExecResult struct {
	Restored int          `json:"restored"`
	Booted   int          `json:"booted"`
	Actions  []ExecAction `json:"actions"`
	Rejected int          `json:"rejected"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <actions.yaml>",
		Short: "Execute actions against the journal",
		Long: `Execute a YAML list of actions against the registry stored in a journal.

The registry is rebuilt from the journal first; an empty journal is booted
from the catalog (wallet funding and instrument activation). Each action is
then executed in order and journaled with its events, whether it succeeds
or is rejected.

Actions use the same fields as harness flow steps:

  - kind: deposit
    instrument: 1
    sender: maker
    asset: USDC
    amount: 20000
  - kind: create_issuance
    instrument: 1
    sender: maker
    params: {lending_asset: USDC, lending_amount: 20000, ...}

Exit codes:
  0 - All actions succeeded
  1 - One or more actions were rejected
  2 - Command error (bad catalog, journal mismatch, etc.)

Examples:
  instrumentd exec --db ./instrumentd.db --config ./catalog.cue actions.yaml
  instrumentd exec actions.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $INSTRUMENTD_DB)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to catalog (default $INSTRUMENTD_CONFIG)")

	return cmd
}

// loadActions reads a YAML list of actions, rejecting unknown fields.
func loadActions(path string) ([]engine.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions file: %w", err)
	}

	var actions []engine.Action
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&actions); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse actions: %w", err)
	}
	for i, a := range actions {
		if a.Kind == "" {
			return nil, fmt.Errorf("actions[%d]: kind is required", i)
		}
	}
	return actions, nil
}

func runExec(opts *ExecOptions, actionsFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := opts.Logger()

	catalogPath, err := opts.catalogPath(opts.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCatalog, err.Error(), nil)
	}
	actions, err := loadActions(actionsFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid actions file", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var extra []engine.Option
	if opts.FlowGenerator != nil {
		extra = append(extra, engine.WithFlowGenerator(opts.FlowGenerator))
	}
	if opts.TimeSource != nil {
		extra = append(extra, engine.WithTimeSource(opts.TimeSource))
	}

	s, err := openSession(ctx, opts.RootOptions, opts.database(opts.Database), catalogPath, extra...)
	if err != nil {
		code := ErrCodeJournal
		if isCatalogError(err) {
			code = ErrCodeCatalog
		}
		return formatter.Fail(ExitCommandError, code, "failed to open session", err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	done := make(chan error, 1)
	go func() { done <- s.engine.Run(ctx) }()

	result := ExecResult{
		Restored: s.restored,
		Booted:   s.booted,
		Actions:  make([]ExecAction, 0, len(actions)),
	}
	runErr := submitAll(ctx, s.engine, actions, &result)

	s.engine.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("engine stopped with error", "error", err)
	}
	if runErr != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "execution stopped", runErr)
	}

	return outputExec(formatter, result)
}

// submitAll feeds actions to the engine's run loop one at a time and
// collects their outcomes. It stops at the first infrastructure failure.
func submitAll(ctx context.Context, eng *engine.Engine, actions []engine.Action, result *ExecResult) error {
	for i, a := range actions {
		reply, ok := eng.Submit(a)
		if !ok {
			return fmt.Errorf("action %d (%s): engine stopped", i, a.Kind)
		}

		var out engine.Outcome
		select {
		case out = <-reply:
		case <-ctx.Done():
			return ctx.Err()
		}
		if out.Err != nil {
			return fmt.Errorf("action %d (%s): %w", i, a.Kind, out.Err)
		}

		res := out.Result
		result.Actions = append(result.Actions, ExecAction{
			Seq:        res.Action.Seq,
			Kind:       res.Action.Kind,
			ActionID:   res.Action.ID,
			Outcome:    res.Action.Outcome,
			Code:       res.Action.ErrorCode,
			Message:    res.Action.ErrorMessage,
			Events:     len(res.Events),
			Instrument: res.InstrumentID,
			Issuance:   res.IssuanceID,
		})
		if res.Err != nil {
			result.Rejected++
		}
	}
	return nil
}

func outputExec(formatter *OutputFormatter, result ExecResult) error {
	if formatter.JSON() {
		response := CLIResponse{Status: "ok", Data: result}
		if result.Rejected > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeRejected,
				Message: fmt.Sprintf("%d action(s) rejected", result.Rejected),
			}
		}
		if err := writeResponse(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if result.Restored > 0 {
			fmt.Fprintf(w, "Restored %d journaled action(s)\n", result.Restored)
		}
		if result.Booted > 0 {
			fmt.Fprintf(w, "Booted catalog with %d action(s)\n", result.Booted)
		}
		for _, a := range result.Actions {
			if a.Outcome == ir.OutcomeOK {
				fmt.Fprintf(w, "✓ [%d] %s (%d events)", a.Seq, a.Kind, a.Events)
				if a.Instrument != 0 {
					fmt.Fprintf(w, " instrument=%d", a.Instrument)
				}
				if a.Issuance != 0 {
					fmt.Fprintf(w, " issuance=%d", a.Issuance)
				}
				fmt.Fprintln(w)
				continue
			}
			fmt.Fprintf(w, "✗ [%d] %s %s: %s\n", a.Seq, a.Kind, a.Code, a.Message)
		}
		fmt.Fprintf(w, "\nExec Summary: %d executed, %d rejected\n", len(result.Actions), result.Rejected)
	}

	if result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d action(s) rejected", result.Rejected))
	}
	return nil
}
