package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walletScenario = `name: wallet
description: Funding reaches the registry wallet
catalog: |
  registry: {owner: "registry-owner"}
flow:
  - kind: fund_registry
    sender: alice
    amount: 40
assertions:
  - type: wallet
    owner: alice
    amount: %d
`

func writeWalletScenario(t *testing.T, dir string, amount int) string {
	t.Helper()
	path := filepath.Join(dir, "wallet.yaml")
	content := []byte(fmt.Sprintf(walletScenario, amount))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(quietRoot(format))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	output, err := runTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	output, err := runTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	output, err := runTestCmd(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := t.TempDir()
	writeWalletScenario(t, dir, 40)

	output, err := runTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ wallet")
	assert.Contains(t, output, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeWalletScenario(t, dir, 41)

	output, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ wallet")
	assert.Contains(t, output, "assertion[0]")
	assert.Contains(t, output, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeWalletScenario(t, dir, 41)

	output, err := runTestCmd(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeWalletScenario(t, dir, 40)
	goldenPath := filepath.Join(dir, "golden", "wallet.golden")

	output, err := runTestCmd(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ wallet (golden updated)")
	require.FileExists(t, goldenPath)

	// Matches its own golden file
	_, err = runTestCmd(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"wallet","trace":[]}`), 0644))
	output, err = runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "trace does not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	output, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ broken.yaml")
	assert.Contains(t, output, "failed to load scenario")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	scenariosDir := filepath.Join("..", "harness", "testdata", "scenarios")
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		t.Skip("harness scenarios not found")
	}

	output, err := runTestCmd(t, "text", scenariosDir)
	require.NoError(t, err, output)
	assert.Contains(t, output, "✓ lending_lifecycle")
	assert.Contains(t, output, "✓ registry_wallet")
}

func TestTestHelpText(t *testing.T) {
	output, err := runTestCmd(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "scenarios")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create scenario files
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "lending_ok.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "lending_late.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "swap_ok.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "lending_*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "lending")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "nested.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
