package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	Config    string
	FlowToken string // optional - report a specific flow only
}

// ReplayFlowResult holds the replay result for a single flow.
type ReplayFlowResult struct {
	FlowToken     string `json:"flow_token"`
	Actions       int    `json:"actions"`
	Events        int    `json:"events"`
	Failed        int    `json:"failed"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayMismatch is one journaled action whose re-execution diverged.
type ReplayMismatch struct {
	Seq      int64  `json:"seq"`
	ActionID string `json:"action_id"`
	Reason   string `json:"reason"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Flows            []ReplayFlowResult `json:"flows"`
	TotalFlows       int                `json:"total_flows"`
	Actions          int                `json:"actions"`
	Events           int                `json:"events"`
	Mismatches       []ReplayMismatch   `json:"mismatches"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Replay the journal on a fresh engine and verify determinism.

Every journaled action is re-executed in seq order against a registry built
from the catalog. Each must reproduce its journaled action id, outcome,
error code and event ids. Per-flow statistics are reported alongside any
mismatches.

Exit codes:
  0 - The journal replays identically
  1 - Determinism verification failed (mismatches detected)
  2 - Command error (database not found, bad catalog, etc.)

Examples:
  instrumentd replay --db ./instrumentd.db --config ./catalog.cue
  instrumentd replay --db ./instrumentd.db --flow 0190f1b2-...
  instrumentd replay --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $INSTRUMENTD_DB)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to catalog (default $INSTRUMENTD_CONFIG)")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "report specific flow only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dbPath := opts.database(opts.Database)
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), nil)
	}
	catalogPath, err := opts.catalogPath(opts.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCatalog, err.Error(), nil)
	}
	catalog, err := loadCatalog(catalogPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCatalog, "failed to load catalog", err)
	}
	engOpts, err := engineOptions(opts.RootOptions, catalog)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCatalog, "invalid catalog", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.ReadJournal(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read journal", err)
	}

	report, err := engine.Replay(ctx, st, catalog.Registry.Owner, engOpts...)
	if err != nil && !engine.IsReplayMismatch(err) {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "replay failed", err)
	}

	result := buildReplayResult(entries, report, opts.FlowToken)
	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result, opts.Verbose)
}

// buildReplayResult groups the journal by flow token, in order of first
// appearance, and marks flows holding a mismatched action.
func buildReplayResult(entries []store.Entry, report engine.Report, flowToken string) ReplayResult {
	bad := make(map[string]bool, len(report.Mismatches))
	mismatches := make([]ReplayMismatch, 0, len(report.Mismatches))
	for _, m := range report.Mismatches {
		bad[m.ActionID] = true
		mismatches = append(mismatches, ReplayMismatch{Seq: m.Seq, ActionID: m.ActionID, Reason: m.Reason})
	}

	index := make(map[string]int)
	flows := make([]ReplayFlowResult, 0)
	for _, e := range entries {
		token := e.Action.FlowToken
		if flowToken != "" && token != flowToken {
			continue
		}
		i, ok := index[token]
		if !ok {
			i = len(flows)
			index[token] = i
			flows = append(flows, ReplayFlowResult{FlowToken: token, Deterministic: true})
		}
		flows[i].Actions++
		flows[i].Events += len(e.Events)
		if e.Action.ErrorCode != "" {
			flows[i].Failed++
		}
		if bad[e.Action.ID] {
			flows[i].Deterministic = false
		}
	}

	return ReplayResult{
		Flows:            flows,
		TotalFlows:       len(flows),
		Actions:          report.Actions,
		Events:           report.Events,
		Mismatches:       mismatches,
		AllDeterministic: report.OK(),
	}
}

var errNotDeterministic = errors.New("determinism verification failed")

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDeterminism,
			Message: errNotDeterministic.Error(),
		}
	}

	if err := writeResponse(formatter.Writer, response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return WrapExitError(ExitFailure, "replay", errNotDeterministic)
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult, verbose bool) error {
	w := formatter.Writer

	if result.Actions == 0 {
		fmt.Fprintln(w, "No actions found in journal.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d action(s), %d event(s), %d flow(s)\n", result.Actions, result.Events, result.TotalFlows)
	fmt.Fprintln(w)

	for _, flow := range result.Flows {
		status := "✓"
		if !flow.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Flow: %s\n", status, flow.FlowToken)
		if verbose {
			fmt.Fprintf(w, "  Actions: %d\n", flow.Actions)
			fmt.Fprintf(w, "  Events: %d\n", flow.Events)
			fmt.Fprintf(w, "  Failed: %d\n", flow.Failed)
		} else {
			fmt.Fprintf(w, "  %d actions, %d events\n", flow.Actions, flow.Events)
		}
		fmt.Fprintln(w)
	}

	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  Mismatch at seq %d (%s): %s\n", m.Seq, truncateID(m.ActionID), m.Reason)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ Journal verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return WrapExitError(ExitFailure, "replay", errNotDeterministic)
}
