package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	FlowToken  string // optional - filter to specific flow
	Kind       string // optional - filter to specific action kind
	Instrument int64  // optional - events of one instrument
	Issuance   int64  // optional - events of one issuance (needs Instrument)
}

// TraceAction is one journaled action in the trace timeline.
type TraceAction struct {
	Seq       int64          `json:"seq"`
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	FlowToken string         `json:"flow_token"`
	Now       int64          `json:"now"`
	Args      map[string]any `json:"args,omitempty"`
	Outcome   ir.Outcome     `json:"outcome"`
	Code      ir.ErrorCode   `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	Events    []TraceEvent   `json:"events"`
}

// TraceEvent is one event emitted by a traced action.
type TraceEvent struct {
	Index      int             `json:"index"`
	ID         string          `json:"id"`
	Kind       ir.EventKind    `json:"kind"`
	Instrument ir.InstrumentID `json:"instrument,omitempty"`
	Issuance   ir.IssuanceID   `json:"issuance,omitempty"`
	Payload    map[string]any  `json:"payload"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceAction `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Actions    int            `json:"actions"`
	Events     int            `json:"events"`
	Failed     int            `json:"failed"`
	EventKinds map[string]int `json:"event_kinds"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled timeline",
		Long: `Show journaled actions and the events they emitted.

The timeline lists actions in seq order with their outcome and events.
Rejected actions appear with their error code and no events.

Filters narrow the timeline:
- --flow keeps actions of one flow token
- --kind keeps actions of one kind
- --instrument keeps events of one instrument, and the actions that emitted them
- --issuance narrows --instrument to one issuance

Examples:
  instrumentd trace --db ./instrumentd.db
  instrumentd trace --db ./instrumentd.db --instrument 1 --issuance 1
  instrumentd trace --db ./instrumentd.db --kind deposit --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $INSTRUMENTD_DB)")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "filter to specific flow token")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to specific action kind")
	cmd.Flags().Int64Var(&opts.Instrument, "instrument", 0, "filter to events of an instrument")
	cmd.Flags().Int64Var(&opts.Issuance, "issuance", 0, "filter to events of an issuance")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Issuance != 0 && opts.Instrument == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--issuance requires --instrument", nil)
	}

	dbPath := opts.database(opts.Database)
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), nil)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open database", err)
	}
	defer st.Close()

	var entries []store.Entry
	if opts.Instrument != 0 {
		entries, err = entriesFor(ctx, st, store.EventFilter{
			Instrument: ir.InstrumentID(opts.Instrument),
			IssuanceID: ir.IssuanceID(opts.Issuance),
		})
	} else {
		entries, err = st.ReadJournal(ctx)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read journal", err)
	}

	result := buildTrace(entries, opts.FlowToken, opts.Kind)
	if formatter.JSON() {
		return writeResponse(formatter.Writer, CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// entriesFor groups the events matching f under the actions that emitted
// them, in seq order.
func entriesFor(ctx context.Context, st *store.Store, f store.EventFilter) ([]store.Entry, error) {
	events, err := st.ReadEventsFor(ctx, f)
	if err != nil {
		return nil, err
	}

	var entries []store.Entry
	index := make(map[string]int)
	for _, ev := range events {
		i, ok := index[ev.ActionID]
		if !ok {
			action, err := st.ReadAction(ctx, ev.ActionID)
			if err != nil {
				return nil, fmt.Errorf("action %s: %w", ev.ActionID, err)
			}
			i = len(entries)
			index[ev.ActionID] = i
			entries = append(entries, store.Entry{Action: action})
		}
		entries[i].Events = append(entries[i].Events, ev)
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Action.Seq < entries[b].Action.Seq
	})
	return entries, nil
}

// buildTrace converts journal entries to the timeline, applying the flow
// and kind filters.
func buildTrace(entries []store.Entry, flowToken, kind string) TraceResult {
	result := TraceResult{
		Timeline: make([]TraceAction, 0, len(entries)),
		Stats:    TraceStats{EventKinds: make(map[string]int)},
	}

	for _, e := range entries {
		rec := e.Action
		if flowToken != "" && rec.FlowToken != flowToken {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}

		action := TraceAction{
			Seq:       rec.Seq,
			Kind:      rec.Kind,
			ID:        rec.ID,
			FlowToken: rec.FlowToken,
			Now:       int64(rec.Now),
			Args:      rec.Args,
			Outcome:   rec.Outcome,
			Code:      rec.ErrorCode,
			Message:   rec.ErrorMessage,
			Events:    make([]TraceEvent, 0, len(e.Events)),
		}
		for _, ev := range e.Events {
			action.Events = append(action.Events, TraceEvent{
				Index:      ev.Index,
				ID:         ev.ID,
				Kind:       ev.Kind,
				Instrument: ev.Instrument,
				Issuance:   ev.IssuanceID,
				Payload:    ev.Payload,
			})
			result.Stats.EventKinds[string(ev.Kind)]++
		}

		result.Timeline = append(result.Timeline, action)
		result.Stats.Actions++
		result.Stats.Events += len(e.Events)
		if rec.Outcome != ir.OutcomeOK {
			result.Stats.Failed++
		}
	}
	return result
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no actions)")
	} else {
		for _, action := range result.Timeline {
			formatTimelineAction(w, action, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Actions: %d\n", result.Stats.Actions)
	fmt.Fprintf(w, "  Events: %d\n", result.Stats.Events)
	fmt.Fprintf(w, "  Failed: %d\n", result.Stats.Failed)

	kinds := make([]string, 0, len(result.Stats.EventKinds))
	for k := range result.Stats.EventKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, result.Stats.EventKinds[k])
	}
	return nil
}

// formatTimelineAction formats one action and its events for text output.
func formatTimelineAction(w io.Writer, action TraceAction, verbose bool) {
	if action.Outcome == ir.OutcomeOK {
		fmt.Fprintf(w, "  [%d] %s @%d\n", action.Seq, action.Kind, action.Now)
	} else {
		fmt.Fprintf(w, "  [%d] %s @%d ERROR %s: %s\n", action.Seq, action.Kind, action.Now, action.Code, action.Message)
	}
	if verbose {
		if len(action.Args) > 0 {
			fmt.Fprintf(w, "       Args: %s\n", formatArgs(action.Args))
		}
		fmt.Fprintf(w, "       ID: %s\n", truncateID(action.ID))
	}

	for _, ev := range action.Events {
		fmt.Fprintf(w, "       %d. %s\n", ev.Index, ev.Kind)
		if verbose {
			fmt.Fprintf(w, "          %s\n", formatArgs(ev.Payload))
		}
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
