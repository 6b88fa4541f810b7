// Package harness runs instrument lifecycle scenarios against the engine.
//
// A scenario names a catalog, a flow of actions and the assertions that must
// hold afterwards. The harness builds a real engine on an in-memory journal,
// executes the catalog's boot actions and then the flow, and records every
// journaled action with its events as the trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: lending_lifecycle
//	description: "What this scenario validates"
//	catalog_file: ../catalogs/lending.cue
//	start: 1000
//	flow:
//	  - kind: deposit
//	    instrument: 1
//	    sender: maker
//	    asset: USDC
//	    amount: 20000
//	  - kind: engage_issuance
//	    advance_days: 1
//	    instrument: 1
//	    issuance: 1
//	    sender: taker
//	    expect:
//	      outcome: error
//	      code: INVALID_STATE
//	assertions:
//	  - type: state
//	    instrument: 1
//	    issuance: 1
//	    state: CompleteEngaged
//	  - type: replay
//
// Flow steps carry the action fields inline. params, data and payload may be
// written as YAML mappings; they are stored as JSON text.
//
// # Assertion Types
//
//   - event_contains: some event of a kind carries the given fields
//   - event_order: event kinds occur in order, gaps allowed
//   - event_count: an event kind occurs exactly N times
//   - balance: an owner's balance in an instrument or issuance escrow
//   - wallet: an owner's registry wallet balance
//   - state: an issuance's lifecycle state
//   - custom_data: decoded custom data fields of an issuance
//   - replay: the journal rebuilds identically on a fresh engine
//
// # Deterministic Testing
//
// The harness uses:
//   - A fake clock starting at scenario.start, moved only by advance steps
//   - Fixed flow tokens (from scenario.flow_token or "test-flow-default")
//   - In-memory SQLite database (isolated per run)
//
// Two runs of one scenario journal identical ids, which is what makes
// golden trace comparison meaningful.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/lending_lifecycle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
