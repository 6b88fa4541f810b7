package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/store"
)

func runReplayCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(quietRoot(format))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestReplayDeterministic(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runReplayCmd(t, "text", "--db", dbPath, "--config", testCatalog)
	require.NoError(t, err)

	assert.Contains(t, output, "Replay Summary: 7 action(s)")
	assert.Contains(t, output, "✓ Flow: cli-flow")
	assert.Contains(t, output, "✓ Journal verified deterministic")
}

func TestReplayDeterministicJSON(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runReplayCmd(t, "json", "--db", dbPath, "--config", testCatalog)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllDeterministic)
	assert.Equal(t, 7, resp.Data.Actions)
	assert.Empty(t, resp.Data.Mismatches)
	require.Len(t, resp.Data.Flows, 1)
	assert.Equal(t, 7, resp.Data.Flows[0].Actions)
}

func TestReplayDetectsDrift(t *testing.T) {
	dbPath := seedJournal(t)

	// A larger instrument deposit makes the journaled activation fail
	output, err := runReplayCmd(t, "text", "--db", dbPath, "--config", filepath.Join("testdata", "drifted.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, output, "✗ Flow: cli-flow")
	assert.Contains(t, output, "Mismatch at seq 2")
	assert.Contains(t, output, "✗ Determinism verification failed")
}

func TestReplayDetectsDriftJSON(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runReplayCmd(t, "json", "--db", dbPath, "--config", filepath.Join("testdata", "drifted.cue"))
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDeterminism, resp.Error.Code)
}

func TestReplayEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	output, err := runReplayCmd(t, "text", "--db", dbPath, "--config", testCatalog)
	require.NoError(t, err)
	assert.Contains(t, output, "No actions found in journal.")
}

func TestReplayNonExistentDatabase(t *testing.T) {
	output, err := runReplayCmd(t, "text", "--db", "/nonexistent/path/journal.db", "--config", testCatalog)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "E005")
}

func TestReplayHelpText(t *testing.T) {
	cmd := NewReplayCommand(quietRoot("text"))

	assert.Equal(t, "replay", cmd.Use)
	assert.Contains(t, cmd.Short, "determinism")
	assert.Contains(t, cmd.Long, "Exit codes")
}

func TestBuildReplayResult(t *testing.T) {
	entries := []store.Entry{
		{Action: ir.ActionRecord{ID: "a1", Seq: 1, FlowToken: "f1", Outcome: ir.OutcomeOK},
			Events: []ir.EventRecord{{ID: "e1"}, {ID: "e2"}}},
		{Action: ir.ActionRecord{ID: "a2", Seq: 2, FlowToken: "f2", Outcome: ir.OutcomeError, ErrorCode: ir.ErrCodeUnauthorized}},
		{Action: ir.ActionRecord{ID: "a3", Seq: 3, FlowToken: "f1", Outcome: ir.OutcomeOK},
			Events: []ir.EventRecord{{ID: "e3"}}},
	}
	report := engine.Report{
		Actions:    3,
		Events:     3,
		Mismatches: []engine.Mismatch{{Seq: 3, ActionID: "a3", Reason: "1 events, journaled 2"}},
	}

	result := buildReplayResult(entries, report, "")
	assert.False(t, result.AllDeterministic)
	assert.Equal(t, 2, result.TotalFlows)
	require.Len(t, result.Flows, 2)

	assert.Equal(t, ReplayFlowResult{FlowToken: "f1", Actions: 2, Events: 3, Deterministic: false}, result.Flows[0])
	assert.Equal(t, ReplayFlowResult{FlowToken: "f2", Actions: 1, Failed: 1, Deterministic: true}, result.Flows[1])
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, int64(3), result.Mismatches[0].Seq)

	filtered := buildReplayResult(entries, report, "f2")
	require.Len(t, filtered.Flows, 1)
	assert.Equal(t, "f2", filtered.Flows[0].FlowToken)
}
