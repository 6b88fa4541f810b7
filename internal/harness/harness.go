package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/instrumentd/internal/config"
	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/store"
	"github.com/roach88/instrumentd/internal/testutil"
)

// Harness executes one scenario against a real engine.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	clock   *testutil.FakeTime
	catalog *config.Catalog
	logger  *slog.Logger

	// options rebuilds an identical engine for replay assertions.
	options []engine.Option
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fake clock
// starting at scenario.Start and a fixed flow token, so two runs of the
// same scenario journal identical records.
//
// Execution flow:
//  1. Load the catalog and build the engine
//  2. Execute the catalog's boot actions, which must succeed
//  3. Execute flow steps, advancing the clock and checking expect clauses
//  4. Evaluate assertions against the trace and final state
//
// The returned error is reserved for failures that stop the scenario from
// running; failed expectations and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	catalog, err := loadCatalog(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	catOpts, err := catalog.EngineOptions()
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	options := append(catOpts, engine.WithLogger(logger))

	clock := testutil.NewFakeTime(scenario.Start)
	h := &Harness{
		store:   st,
		clock:   clock,
		catalog: catalog,
		logger:  logger,
		options: options,
	}
	h.engine = engine.New(st, catalog.Registry.Owner, append(options,
		engine.WithTimeSource(clock),
		engine.WithFlowGenerator(testutil.NewFixedFlowGenerator(scenario.FlowToken)),
	)...)

	ctx := context.Background()
	result := NewResult()

	if err := h.executeBoot(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to execute boot actions: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(ctx, h, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadCatalog(s *Scenario) (*config.Catalog, error) {
	if s.CatalogFile != "" {
		c, err := config.Load(s.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		return c, nil
	}
	c, err := config.Parse(s.Name+".cue", []byte(s.Catalog))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return c, nil
}

// executeBoot funds wallets and activates the catalog's instruments.
func (h *Harness) executeBoot(ctx context.Context, result *Result) error {
	for i, a := range h.catalog.BootActions() {
		res, err := h.engine.Execute(ctx, a)
		if err != nil {
			return fmt.Errorf("boot action %d (%s): %w", i, a.Kind, err)
		}
		if res.Err != nil {
			return fmt.Errorf("boot action %d (%s): %w", i, a.Kind, res.Err)
		}
		result.Trace = append(result.Trace, traceOf(res))
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
//  1. Advances the fake clock by advance seconds and advance_days days
//  2. Executes the action on the engine, which journals it
//  3. Appends the journaled action and its events to the trace
//  4. Compares the outcome with the expect clause (default: ok)
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if step.Advance > 0 {
			h.clock.Advance(step.Advance)
		}
		if step.AdvanceDays > 0 {
			h.clock.AdvanceDays(step.AdvanceDays)
		}

		res, err := h.engine.Execute(ctx, step.Action)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Kind, err)
		}
		result.Trace = append(result.Trace, traceOf(res))

		for _, msg := range checkExpect(step, res) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Kind, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"kind", step.Kind,
			"action_id", res.Action.ID,
			"outcome", res.Action.Outcome,
			"events", len(res.Events),
		)
	}
	return nil
}

// checkExpect returns one message per way res differs from the step's
// expect clause.
func checkExpect(step FlowStep, res engine.Result) []string {
	want := ExpectClause{Outcome: string(ir.OutcomeOK)}
	if step.Expect != nil {
		want = *step.Expect
	}

	var msgs []string
	got := res.Action
	if string(got.Outcome) != want.Outcome {
		msg := fmt.Sprintf("expected outcome %s, got %s", want.Outcome, got.Outcome)
		if got.ErrorMessage != "" {
			msg += fmt.Sprintf(" (%s: %s)", got.ErrorCode, got.ErrorMessage)
		}
		return append(msgs, msg)
	}
	if want.Code != "" && string(got.ErrorCode) != want.Code {
		msgs = append(msgs, fmt.Sprintf("expected error code %s, got %s", want.Code, got.ErrorCode))
	}
	if want.Instrument != 0 && res.InstrumentID != want.Instrument {
		msgs = append(msgs, fmt.Sprintf("expected instrument %d, got %d", want.Instrument, res.InstrumentID))
	}
	if want.Issuance != 0 && res.IssuanceID != want.Issuance {
		msgs = append(msgs, fmt.Sprintf("expected issuance %d, got %d", want.Issuance, res.IssuanceID))
	}
	return msgs
}

// traceOf converts an engine result to its trace entry. Ids and hashes are
// left out so traces stay readable; replay assertions cover them.
func traceOf(res engine.Result) TraceAction {
	t := TraceAction{
		Seq:     res.Action.Seq,
		Kind:    res.Action.Kind,
		Args:    res.Action.Args,
		Now:     int64(res.Action.Now),
		Outcome: string(res.Action.Outcome),
		Code:    string(res.Action.ErrorCode),
		Events:  make([]TraceEvent, 0, len(res.Events)),
	}
	for _, ev := range res.Events {
		t.Events = append(t.Events, TraceEvent{Kind: string(ev.Kind), Payload: ev.Payload})
	}
	return t
}
