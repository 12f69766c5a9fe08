// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/internal/observability"
	"github.com/trainingloop/coursepilot/internal/progress"
)

// runCommand executes the CLI against an isolated working directory and
// captures stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	observability.ResetForTest()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestProgressCommand_EmptyStore(t *testing.T) {
	out, err := runCommand(t, "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "No modules tracked yet")
}

func TestProgressCommand_ReadsPersistedDocument(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	observability.ResetForTest()

	store := progress.NewStore("training_progress.json", zap.NewNop())
	store.MarkVideoWatched("m1")
	store.RecordAttempt("m1", true, 5, 5)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"progress"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "Assessments passed: 1/1")
	assert.Contains(t, out.String(), "m1: PASSED")
}

func TestRunCommand_RejectsMissingAPIKey(t *testing.T) {
	// No config file and no env key present.
	t.Setenv("COURSEPILOT_COLLABORATOR_API_KEY", "")
	_, err := runCommand(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestRunCommand_RejectsMalformedAPIKey(t *testing.T) {
	t.Setenv("COURSEPILOT_COLLABORATOR_API_KEY", "not-a-real-key")
	_, err := runCommand(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	_, err := runCommand(t, "does-not-exist")
	require.Error(t, err)
}

func TestMainHelpers(t *testing.T) {
	// Config file flag is honored.
	dir := t.TempDir()
	t.Chdir(dir)
	observability.ResetForTest()
	require.NoError(t, os.WriteFile("custom.yaml", []byte("logger:\n  level: debug\n"), 0o644))

	root := NewRootCommand()
	root.SetArgs([]string{"--config", "custom.yaml", "version"})
	var out bytes.Buffer
	root.SetOut(&out)
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), Version)
}
