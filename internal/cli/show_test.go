package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/store"
)

func runShowCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewShowCommand(quietRoot(format))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestShowRegistry(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runShowCmd(t, "text", "--db", dbPath, "--config", testCatalog)
	require.NoError(t, err)

	assert.Contains(t, output, "Registry owner registry-owner (deposit asset NUTS, policy burn)")
	assert.Contains(t, output, "=== Wallet ===")
	assert.Contains(t, output, "[1] loans (lending, active) owner fsp: 1 issuances, 1 pending, 100 held")
}

func TestShowInstrument(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runShowCmd(t, "text", "--db", dbPath, "--config", testCatalog, "--name", "loans")
	require.NoError(t, err)

	assert.Contains(t, output, "=== Escrow ===")
	assert.Contains(t, output, "=== Issuances ===")
	assert.Contains(t, output, "1: Engaged")
}

func TestShowIssuanceJSON(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runShowCmd(t, "json", "--db", dbPath, "--config", testCatalog, "--instrument", "1", "--issuance", "1")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   IssuanceView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)

	v := resp.Data
	assert.Equal(t, ir.IssuanceID(1), v.Issuance)
	assert.Equal(t, "Engaged", v.State)
	assert.Equal(t, "maker", v.Data["maker"])
	assert.Equal(t, "taker", v.Data["taker"])
	assert.Equal(t, "Engaged", v.Data["state"])
	assert.Equal(t, "USDC", v.Properties["lending_asset"])
	assert.Equal(t, "4000", v.Properties["interest_amount"])
	assert.Equal(t, "3000000", v.Properties["collateral_amount"])
}

func TestShowIssuanceKey(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runShowCmd(t, "text", "--db", dbPath, "--config", testCatalog,
		"--instrument", "1", "--issuance", "1", "--key", "lending_data")
	require.NoError(t, err)

	assert.Contains(t, output, "=== Data ===")
	assert.Contains(t, output, "lending_asset = USDC")
	assert.NotContains(t, output, "=== Properties ===")
}

func TestShowIssuanceUnknownKey(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runShowCmd(t, "text", "--db", dbPath, "--config", testCatalog,
		"--instrument", "1", "--issuance", "1", "--key", "swap_data")
	require.Error(t, err)
	assert.Contains(t, output, "E005")
}

func TestShowKeyRequiresIssuance(t *testing.T) {
	output, err := runShowCmd(t, "text", "--config", testCatalog, "--instrument", "1", "--key", "issuance_data")
	require.Error(t, err)
	assert.Contains(t, output, "--key requires --issuance")
}

func TestShowDoesNotWrite(t *testing.T) {
	dbPath := seedJournal(t)

	_, err := runShowCmd(t, "text", "--db", dbPath, "--config", testCatalog)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	seq, err := st.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestShowUnknownInstrument(t *testing.T) {
	dbPath := seedJournal(t)

	output, err := runShowCmd(t, "text", "--db", dbPath, "--config", testCatalog, "--instrument", "9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "E005")
}

func TestShowIssuanceRequiresInstrument(t *testing.T) {
	output, err := runShowCmd(t, "text", "--config", testCatalog, "--issuance", "1")
	require.Error(t, err)
	assert.Contains(t, output, "--issuance requires --instrument or --name")
}

func TestShowMissingDatabase(t *testing.T) {
	output, err := runShowCmd(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"), "--config", testCatalog)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "E020")
	assert.Contains(t, output, "database not found")
}
