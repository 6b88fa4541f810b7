package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/instrumentd/internal/codec"
	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/escrow"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/registry"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []TraceAction // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, a := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s", a.Seq, a.Kind, a.Args, a.Outcome)
			if a.Code != "" {
				fmt.Fprintf(&buf, " %s", a.Code)
			}
			fmt.Fprintf(&buf, " (%d events)\n", len(a.Events))
		}
	}
	return buf.String()
}

// assertEventContains checks that some event of the given kind carries all
// the expected fields (subset match).
func assertEventContains(result *Result, a Assertion) error {
	for _, ev := range result.events() {
		if ev.Kind == a.Event && matchFields(ev.Payload, a.Fields) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("event %s with fields %v", a.Event, a.Fields),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertEventOrder checks that the listed event kinds occur in order.
// Other events may appear between them.
func assertEventOrder(result *Result, a Assertion) error {
	next := 0
	for _, ev := range result.events() {
		if next < len(a.Events) && ev.Kind == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("matched %v, then no %s", a.Events[:next], a.Events[next]),
		Trace:    result.Trace,
	}
}

// assertEventCount checks that the event kind occurs exactly Count times.
func assertEventCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.events() {
		if ev.Kind == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertBalance checks an owner's balance in an instrument escrow, or in an
// issuance escrow when Issuance is set.
func assertBalance(h *Harness, a Assertion) error {
	return h.engine.View(func(r *registry.Registry) error {
		m, err := r.LookupInstrumentManager(a.Instrument)
		if err != nil {
			return err
		}
		var ledger escrow.Reader = m.InstrumentEscrow()
		if a.Issuance != 0 {
			if ledger, err = m.IssuanceEscrow(a.Issuance); err != nil {
				return err
			}
		}
		got := ledger.AssetBalance(a.Owner, a.Asset)
		if got != *a.Amount {
			return &AssertionError{
				Type:     AssertBalance,
				Expected: fmt.Sprintf("%s holds %d %s in %s", a.Owner, *a.Amount, a.Asset, ledger.ID()),
				Actual:   fmt.Sprintf("%d", got),
			}
		}
		return nil
	})
}

// assertWallet checks an owner's registry wallet. Asset defaults to the
// registry's deposit asset.
func assertWallet(h *Harness, a Assertion) error {
	return h.engine.View(func(r *registry.Registry) error {
		asset := a.Asset
		if asset == "" {
			asset = r.DepositAsset()
		}
		got := r.Wallet().AssetBalance(a.Owner, asset)
		if got != *a.Amount {
			return &AssertionError{
				Type:     AssertWallet,
				Expected: fmt.Sprintf("%s wallet holds %d %s", a.Owner, *a.Amount, asset),
				Actual:   fmt.Sprintf("%d", got),
			}
		}
		return nil
	})
}

// assertState checks an issuance's lifecycle state.
func assertState(h *Harness, a Assertion) error {
	want, err := ir.ParseState(a.State)
	if err != nil {
		return err
	}
	return h.engine.View(func(r *registry.Registry) error {
		m, err := r.LookupInstrumentManager(a.Instrument)
		if err != nil {
			return err
		}
		got, err := m.IssuanceState(a.Issuance)
		if err != nil {
			return err
		}
		if got != want {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("instrument %d issuance %d in %s", a.Instrument, a.Issuance, want),
				Actual:   got.String(),
			}
		}
		return nil
	})
}

// assertCustomData decodes the issuance's custom data under Key and checks
// the expected fields (subset match).
func assertCustomData(h *Harness, a Assertion) error {
	return h.engine.View(func(r *registry.Registry) error {
		m, err := r.LookupInstrumentManager(a.Instrument)
		if err != nil {
			return err
		}
		data, err := m.CustomData(a.Issuance, a.Key)
		if err != nil {
			return err
		}
		fields, err := codec.Fields(a.Key, data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", a.Key, err)
		}

		keys := make([]string, 0, len(a.Fields))
		for k := range a.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			want := fmt.Sprint(a.Fields[k])
			got, ok := fields[k]
			if !ok || got != want {
				return &AssertionError{
					Type:     AssertCustomData,
					Expected: fmt.Sprintf("%s.%s = %s", a.Key, k, want),
					Actual:   fmt.Sprintf("%s.%s = %q (present: %t)", a.Key, k, got, ok),
				}
			}
		}
		return nil
	})
}

// assertReplay rebuilds the registry from the scenario's journal on a fresh
// engine and checks that every action reproduces its journaled outcome and
// events.
func assertReplay(ctx context.Context, h *Harness, result *Result) error {
	report, err := engine.Replay(ctx, h.store, h.catalog.Registry.Owner, h.options...)
	if err != nil && !engine.IsReplayMismatch(err) {
		return err
	}
	if !report.OK() {
		reasons := make([]string, 0, len(report.Mismatches))
		for _, m := range report.Mismatches {
			reasons = append(reasons, fmt.Sprintf("seq %d: %s", m.Seq, m.Reason))
		}
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "journal replays identically",
			Actual:   strings.Join(reasons, "; "),
			Trace:    result.Trace,
		}
	}
	if report.Actions != len(result.Trace) {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("%d journaled actions", len(result.Trace)),
			Actual:   fmt.Sprintf("%d replayed", report.Actions),
		}
	}
	return nil
}

// matchFields checks if actual contains all expected fields (subset match).
// Values compare by their printed form, so YAML ints match int64 payloads.
func matchFields(actual map[string]any, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result and the
// harness's final state. Returns one message per failed assertion.
func EvaluateAssertions(ctx context.Context, h *Harness, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertEventContains:
			err = assertEventContains(result, a)
		case AssertEventOrder:
			err = assertEventOrder(result, a)
		case AssertEventCount:
			err = assertEventCount(result, a)
		case AssertBalance:
			err = assertBalance(h, a)
		case AssertWallet:
			err = assertWallet(h, a)
		case AssertState:
			err = assertState(h, a)
		case AssertCustomData:
			err = assertCustomData(h, a)
		case AssertReplay:
			err = assertReplay(ctx, h, result)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s", i, err))
		}
	}
	return errors
}
