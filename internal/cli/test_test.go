package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const toggleScenario = `name: toggle_once
description: "completing a task grants its reward"
steps:
  - action: toggle
    args: { id: task-hydrate }
assertions:
  - type: final_state
    expect: { xp: 8, coins: 53 }
`

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "golden")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestTestCommandHarnessScenariosPass(t *testing.T) {
	out, err := runTestCommand(t, "text", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "scenario_a")
	assert.Contains(t, out, "sync_toggle")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", harnessScenarios, "--filter", "scenario_")
	require.NoError(t, err, out)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 3, response.Data.Total)
	assert.Equal(t, 3, response.Data.Passed)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "toggle.yaml"), []byte(toggleScenario), 0o644))

	_, err := runTestCommand(t, "text", scenarios)
	require.Error(t, err, "missing golden must fail")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = runTestCommand(t, "text", scenarios, "--update")
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join(root, "golden", "toggle_once.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "toggle_once"`)

	out, err := runTestCommand(t, "text", scenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "toggle_once")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	goldenDir := filepath.Join(root, "elsewhere")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	require.NoError(t, os.MkdirAll(goldenDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "toggle.yaml"), []byte(toggleScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "toggle_once.golden"), []byte("{}\n"), 0o644))

	out, err := runTestCommand(t, "text", scenarios, "--golden", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.yaml"), []byte("name: bad\n"), 0o644))

	out, err := runTestCommand(t, "text", root)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load")
}
