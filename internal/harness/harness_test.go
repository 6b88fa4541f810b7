package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/ir"
)

func amount(n int64) *int64 { return &n }

func walletScenario() *Scenario {
	return &Scenario{
		Name:        "wallet",
		Description: "fund then overdraw",
		Catalog:     minimalCatalog,
		Start:       DefaultStart,
		FlowToken:   "test-flow-wallet",
		Flow: []FlowStep{
			{Action: engine.Action{Kind: engine.KindFundRegistry, Sender: "fsp", Amount: 100}},
			{
				Action:  engine.Action{Kind: engine.KindDefundRegistry, Sender: "fsp", Amount: 150},
				Advance: 60,
				Expect:  &ExpectClause{Outcome: "error", Code: string(ir.ErrCodeInsufficientBalance)},
			},
		},
		Assertions: []Assertion{
			{Type: AssertWallet, Owner: "fsp", Amount: amount(100)},
			{Type: AssertReplay},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(walletScenario())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)

	first := result.Trace[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(1000), first.Now)
	assert.Equal(t, "ok", first.Outcome)
	require.Len(t, first.Events, 1)
	assert.Equal(t, "BalanceIncreased", first.Events[0].Kind)

	second := result.Trace[1]
	assert.Equal(t, int64(1060), second.Now)
	assert.Equal(t, "error", second.Outcome)
	assert.Equal(t, "INSUFFICIENT_BALANCE", second.Code)
	assert.Empty(t, second.Events)
}

func TestRun_UnexpectedOutcome(t *testing.T) {
	scenario := walletScenario()
	scenario.Flow[1].Expect = nil

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[1] defund_registry: expected outcome ok, got error")
}

func TestRun_WrongErrorCode(t *testing.T) {
	scenario := walletScenario()
	scenario.Flow[1].Expect.Code = string(ir.ErrCodeUnauthorized)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error code UNAUTHORIZED")
}

func TestRun_BootActionsTraced(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/lending_lifecycle.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 9)
	assert.Equal(t, engine.KindFundRegistry, result.Trace[0].Kind)
	assert.Equal(t, engine.KindActivateInstrument, result.Trace[1].Kind)
	assert.Equal(t, int64(1000+11*ir.Day), result.Trace[8].Now)
}

func TestRun_BadCatalog(t *testing.T) {
	scenario := walletScenario()
	scenario.Catalog = `registry: {}`

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog")
}

func TestRun_FailingBootAction(t *testing.T) {
	scenario := walletScenario()
	scenario.Catalog = `
registry: owner: "registry-owner"
registry: instrument_deposit: 500
funding: [{owner: "fsp", amount: 100}]
instruments: [{name: "loans", variant: "lending", owner: "fsp", terminates_at: 9000, override_at: 9000}]
`
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boot action 1 (activate_instrument)")
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/lending_lifecycle.yaml")
	require.NoError(t, err)

	r1, err := Run(scenario)
	require.NoError(t, err)
	r2, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, r1.Trace, r2.Trace)
}
