package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/testutil"
)

var testCatalog = filepath.Join("testdata", "catalog.cue")

func quietRoot(format string) *RootOptions {
	return &RootOptions{Format: format, LogWriter: io.Discard}
}

// execFile runs the exec command on a fake clock starting at start.
func execFile(t *testing.T, dbPath, actionsFile, format string, start ir.Timestamp) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	opts := &ExecOptions{
		RootOptions:   quietRoot(format),
		Database:      dbPath,
		Config:        testCatalog,
		FlowGenerator: testutil.NewFixedFlowGenerator("cli-flow"),
		TimeSource:    testutil.NewFakeTime(start),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())

	err := runExec(opts, actionsFile, cmd)
	return buf.String(), err
}

// seedJournal executes the lending actions into a fresh database.
func seedJournal(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	_, err := execFile(t, dbPath, filepath.Join("testdata", "actions.yaml"), "text", 1000)
	require.NoError(t, err)
	return dbPath
}

func TestExecBootsAndExecutes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	output, err := execFile(t, dbPath, filepath.Join("testdata", "actions.yaml"), "text", 1000)
	require.NoError(t, err)

	// One funding and one activation in the catalog
	assert.Contains(t, output, "Booted catalog with 2 action(s)")
	assert.NotContains(t, output, "Restored")
	assert.Contains(t, output, "✓ [4] create_issuance")
	assert.Contains(t, output, "issuance=1")
	assert.Contains(t, output, "✓ [7] engage_issuance")
	assert.Contains(t, output, "Exec Summary: 5 executed, 0 rejected")
}

func TestExecRestoresJournal(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := execFile(t, dbPath, filepath.Join("testdata", "rejected.yaml"), "text", 5000)
	require.Error(t, err)

	assert.Contains(t, output, "Restored 7 journaled action(s)")
	assert.NotContains(t, output, "Booted")
	// The restored clock continues from the last journaled seq
	assert.Contains(t, output, "✓ [8] deposit")
}

func TestExecRejectedAction(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	output, err := execFile(t, dbPath, filepath.Join("testdata", "rejected.yaml"), "text", 1000)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, output, "✓ [3] deposit")
	assert.Contains(t, output, "✗ [4] withdraw INSUFFICIENT_BALANCE")
	assert.Contains(t, output, "Exec Summary: 2 executed, 1 rejected")
}

func TestExecJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	output, err := execFile(t, dbPath, filepath.Join("testdata", "rejected.yaml"), "json", 1000)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ExecResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRejected, resp.Error.Code)

	assert.Equal(t, 2, resp.Data.Booted)
	assert.Equal(t, 1, resp.Data.Rejected)
	require.Len(t, resp.Data.Actions, 2)
	assert.Equal(t, ir.OutcomeOK, resp.Data.Actions[0].Outcome)
	assert.Equal(t, ir.ErrCodeInsufficientBalance, resp.Data.Actions[1].Code)
	assert.Equal(t, 0, resp.Data.Actions[1].Events)
}

func TestExecMissingCatalog(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &ExecOptions{
		RootOptions: quietRoot("text"),
		Database:    filepath.Join(t.TempDir(), "journal.db"),
		Config:      filepath.Join(t.TempDir(), "missing.cue"),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := runExec(opts, filepath.Join("testdata", "actions.yaml"), cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E010")
}

func TestExecNoCatalog(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewExecCommand(quietRoot("text"))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "journal.db"), filepath.Join("testdata", "actions.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "INSTRUMENTD_CONFIG")
}

func TestExecRequiresActionsArg(t *testing.T) {
	cmd := NewExecCommand(quietRoot("text"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestLoadActions(t *testing.T) {
	actions, err := loadActions(filepath.Join("testdata", "actions.yaml"))
	require.NoError(t, err)
	require.Len(t, actions, 5)

	assert.Equal(t, "create_issuance", actions[2].Kind)
	assert.JSONEq(t, `{
		"collateral_asset": "WETH",
		"lending_asset": "USDC",
		"lending_amount": 20000,
		"tenor_days": 20,
		"collateral_ratio": 15000,
		"interest_rate": 10000
	}`, string(actions[2].Params))
}

func TestLoadActionsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "- kind: deposit\n  amout: 5\n", "failed to parse actions"},
		{"missing kind", "- sender: maker\n", "actions[0]: kind is required"},
		{"not a list", "kind: deposit\n", "failed to parse actions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "actions.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := loadActions(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadActionsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	actions, err := loadActions(path)
	require.NoError(t, err)
	assert.Empty(t, actions)
}
