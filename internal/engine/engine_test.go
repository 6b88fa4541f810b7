package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/instrumentd/internal/instruments"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/registry"
	"github.com/roach88/instrumentd/internal/store"
	"github.com/roach88/instrumentd/internal/testutil"
)

const (
	owner ir.Address = "registry-owner"
	fsp   ir.Address = "fsp"
	maker ir.Address = "maker"
	taker ir.Address = "taker"

	start ir.Timestamp = 1000
)

const lendingParams = `{"collateral_asset":"WETH","lending_asset":"USDC","lending_amount":20000,` +
	`"tenor_days":20,"collateral_ratio":15000,"interest_rate":10000}`

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func engineOptions(t *testing.T, clock *testutil.FakeTime) []Option {
	t.Helper()
	oracle := instruments.NewStaticOracle()
	require.NoError(t, oracle.Set("USDC", "WETH", 100, 1))
	return []Option{
		WithTimeSource(clock),
		WithFlowGenerator(testutil.NewFixedFlowGenerator("test-flow")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRegistryOptions(
			registry.WithOracle(oracle),
			registry.WithInstrumentDeposit(100),
			registry.WithIssuanceDeposit(5),
		),
	}
}

func newTestEngine(t *testing.T, s *store.Store) (*Engine, *testutil.FakeTime) {
	t.Helper()
	clock := testutil.NewFakeTime(start)
	return New(s, owner, engineOptions(t, clock)...), clock
}

func mustExecute(t *testing.T, e *Engine, a Action) Result {
	t.Helper()
	res, err := e.Execute(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, res.Err, "action %s", a.Kind)
	return res
}

// lendingLifecycle drives one lending issuance from activation to
// repayment and returns the instrument id.
func lendingLifecycle(t *testing.T, e *Engine, clock *testutil.FakeTime) ir.InstrumentID {
	t.Helper()
	mustExecute(t, e, Action{Kind: KindFundRegistry, Sender: fsp, Amount: 100})
	res := mustExecute(t, e, Action{
		Kind:         KindActivateInstrument,
		Sender:       fsp,
		Name:         "loans",
		Variant:      instruments.Lending,
		TerminatesAt: start + 100*ir.Day,
		OverrideAt:   start + 200*ir.Day,
	})
	id := res.InstrumentID
	require.Equal(t, ir.InstrumentID(1), id)

	mustExecute(t, e, Action{Kind: KindDeposit, Instrument: id, Sender: maker, Asset: "USDC", Amount: 20000})
	mustExecute(t, e, Action{Kind: KindDeposit, Instrument: id, Sender: maker, Asset: "NUTS", Amount: 5})
	res = mustExecute(t, e, Action{Kind: KindCreateIssuance, Instrument: id, Sender: maker, Params: lendingParams})
	require.Equal(t, ir.IssuanceID(1), res.IssuanceID)

	clock.Advance(ir.Day)
	mustExecute(t, e, Action{Kind: KindDeposit, Instrument: id, Sender: taker, Asset: "WETH", Amount: 3000000})
	mustExecute(t, e, Action{Kind: KindEngageIssuance, Instrument: id, Issuance: 1, Sender: taker})

	clock.AdvanceDays(10)
	mustExecute(t, e, Action{Kind: KindDeposit, Instrument: id, Sender: taker, Asset: "USDC", Amount: 4000})
	mustExecute(t, e, Action{Kind: KindDepositToIssuance, Instrument: id, Issuance: 1, Sender: taker, Asset: "USDC", Amount: 24000})
	return id
}

func TestEngine_ExecuteLendingLifecycle(t *testing.T) {
	s := setupTestStore(t)
	e, clock := newTestEngine(t, s)

	id := lendingLifecycle(t, e, clock)

	err := e.View(func(r *registry.Registry) error {
		m, err := r.LookupInstrumentManager(id)
		require.NoError(t, err)
		state, err := m.IssuanceState(1)
		require.NoError(t, err)
		assert.Equal(t, ir.StateCompleteEngaged, state)
		assert.Equal(t, int64(24000), m.InstrumentEscrow().AssetBalance(maker, "USDC"))
		assert.Equal(t, int64(3000000), m.InstrumentEscrow().AssetBalance(taker, "WETH"))
		assert.Equal(t, int64(100), r.Held(id))
		return nil
	})
	require.NoError(t, err)

	actions, err := s.ReadActions(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 10)
	for i, a := range actions {
		assert.Equal(t, int64(i+1), a.Seq)
		assert.Equal(t, ir.OutcomeOK, a.Outcome)
		assert.Equal(t, "test-flow", a.FlowToken)
	}
	assert.Equal(t, int64(10), e.Clock().Current())
}

func TestEngine_ExecuteJournalsEvents(t *testing.T) {
	s := setupTestStore(t)
	e, _ := newTestEngine(t, s)

	res := mustExecute(t, e, Action{Kind: KindFundRegistry, Sender: fsp, Amount: 100})
	require.NotEmpty(t, res.Events)
	assert.Equal(t, start, res.Action.Now)
	assert.Equal(t, map[string]any{"sender": "fsp", "amount": int64(100)}, res.Action.Args)

	events, err := s.ReadEvents(context.Background(), res.Action.ID)
	require.NoError(t, err)
	require.Len(t, events, len(res.Events))
	for i := range events {
		assert.Equal(t, res.Events[i].ID, events[i].ID)
		assert.Equal(t, i, events[i].Index)
	}
}

func TestEngine_FailedActionJournaledWithoutEvents(t *testing.T) {
	s := setupTestStore(t)
	e, _ := newTestEngine(t, s)

	res, err := e.Execute(context.Background(), Action{Kind: KindDefundRegistry, Sender: fsp, Amount: 5})
	require.NoError(t, err)
	require.Error(t, res.Err)
	assert.True(t, ir.IsInsufficientBalance(res.Err))
	assert.Empty(t, res.Events)

	got, err := s.ReadAction(context.Background(), res.Action.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeError, got.Outcome)
	assert.Equal(t, ir.ErrCodeInsufficientBalance, got.ErrorCode)
	assert.NotEmpty(t, got.ErrorMessage)

	events, err := s.ReadEvents(context.Background(), res.Action.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEngine_UnknownKindAndInstrument(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res, err := e.Execute(context.Background(), Action{Kind: "mint", Sender: fsp})
	require.NoError(t, err)
	assert.Equal(t, ir.ErrCodeValidation, ir.CodeOf(res.Err))

	res, err = e.Execute(context.Background(), Action{Kind: KindDeposit, Instrument: 7, Sender: maker, Asset: "USDC", Amount: 1})
	require.NoError(t, err)
	assert.True(t, ir.IsNotFound(res.Err))
}

func TestEngine_ExplicitActionTime(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	res := mustExecute(t, e, Action{Kind: KindFundRegistry, Sender: fsp, Amount: 1, At: 5000})
	assert.Equal(t, ir.Timestamp(5000), res.Action.Now)
}

func TestEngine_PoisonedAfterPersistFailure(t *testing.T) {
	s := setupTestStore(t)
	e, _ := newTestEngine(t, s)
	mustExecute(t, e, Action{Kind: KindFundRegistry, Sender: fsp, Amount: 1})

	require.NoError(t, s.Close())
	_, err := e.Execute(context.Background(), Action{Kind: KindFundRegistry, Sender: fsp, Amount: 1})
	require.Error(t, err)
	assert.True(t, IsPersistError(err))
	assert.Error(t, e.Poisoned())

	_, err = e.Execute(context.Background(), Action{Kind: KindFundRegistry, Sender: fsp, Amount: 1})
	assert.True(t, IsPoisoned(err))
}

func TestEngine_CancelledContext(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, Action{Kind: KindFundRegistry, Sender: fsp, Amount: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), e.Clock().Current())
}

func TestEngine_ActionIDsAreDeterministic(t *testing.T) {
	e1, _ := newTestEngine(t, nil)
	e2, _ := newTestEngine(t, nil)

	a := Action{Kind: KindFundRegistry, Sender: fsp, Amount: 10}
	r1 := mustExecute(t, e1, a)
	r2 := mustExecute(t, e2, a)
	assert.Equal(t, r1.Action.ID, r2.Action.ID)
	require.Equal(t, len(r1.Events), len(r2.Events))
	for i := range r1.Events {
		assert.Equal(t, r1.Events[i].ID, r2.Events[i].ID)
	}

	r3 := mustExecute(t, e1, a)
	assert.NotEqual(t, r1.Action.ID, r3.Action.ID, "seq is part of the id")
}

func TestDecodeAction(t *testing.T) {
	a := Action{
		Kind:       KindCreateIssuance,
		Sender:     maker,
		Instrument: 2,
		Params:     lendingParams,
	}
	got, err := DecodeAction(a.Kind, a.Args())
	require.NoError(t, err)
	assert.Equal(t, a, got)

	args := a.Args()
	assert.NotContains(t, args, "amount")
	assert.Equal(t, int64(2), args["instrument"])
}

func TestJSONText_UnmarshalYAML(t *testing.T) {
	var a Action
	err := yaml.Unmarshal([]byte("kind: create_issuance\nparams:\n  lending_amount: 20000\n  lending_asset: USDC\n"), &a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lending_amount":20000,"lending_asset":"USDC"}`, string(a.Params))

	err = yaml.Unmarshal([]byte("kind: engage_issuance\ndata: '{\"x\":1}'\n"), &a)
	require.NoError(t, err)
	assert.Equal(t, JSONText(`{"x":1}`), a.Data)
}
