package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: one_book
description: "Create one book"
flow:
  - invoke: library.create_book
    args:
      title: Alpha
    expect:
      case: ok
      result:
        id: 1
assertions:
  - type: final_state
    table: books
    where:
      id: 1
    expect:
      title: Alpha
`

const failingScenario = `
name: wrong_title
description: "Expects the wrong title"
flow:
  - invoke: library.create_book
    args:
      title: Alpha
assertions:
  - type: final_state
    table: books
    where:
      id: 1
    expect:
      title: Omega
`

func writeScenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommand_MissingArgs(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_MissingDir(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_Empty(t *testing.T) {
	env := newCLIEnv(t)
	dir := writeScenarioDir(t, map[string]string{"notes.txt": "not a scenario"})

	out := env.mustRun(t, "test", dir)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_PassAndGoldenUpdate(t *testing.T) {
	env := newCLIEnv(t)
	dir := writeScenarioDir(t, map[string]string{"one_book.yaml": passingScenario})

	out := env.mustRun(t, "test", dir, "--update")
	assert.Contains(t, out, "✓ one_book (golden updated)")
	golden := filepath.Join(dir, "golden", "one_book.golden")
	require.FileExists(t, golden)

	out = env.mustRun(t, "test", dir)
	assert.Contains(t, out, "✓ one_book")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err := env.run(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailureJSON(t *testing.T) {
	env := newCLIEnv(t)
	dir := writeScenarioDir(t, map[string]string{
		"one_book.yaml":    passingScenario,
		"wrong_title.yaml": failingScenario,
	})

	out, err := env.run(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "one_book", resp.Data.Scenarios[0].Name)
	assert.False(t, resp.Data.Scenarios[1].Pass)
	assert.Contains(t, resp.Data.Scenarios[1].Errors[0], `field "title" = Omega`)
}

func TestTestCommand_Filter(t *testing.T) {
	env := newCLIEnv(t)
	dir := writeScenarioDir(t, map[string]string{
		"one_book.yaml":    passingScenario,
		"wrong_title.yaml": failingScenario,
	})

	var result TestResult
	env.data(t, &result, "test", dir, "--filter", "one_*")
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)

	_, err := env.run(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_LoadErrorReported(t *testing.T) {
	env := newCLIEnv(t)
	dir := writeScenarioDir(t, map[string]string{"broken.yaml": "name: [\n"})

	out, err := env.run(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}
