package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateValidConfig(t *testing.T) {
	path := writeConfigFile(t, "liquidator.cue", `
db_path:       "liquidator.db"
follow:        true
poll_interval: "500ms"
submitter:     "jsonl"
action_log:    "actions.jsonl"
`)

	stdout, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "✓ "+path+" is valid\n", stdout)
}

func TestValidateValidConfigJSON(t *testing.T) {
	path := writeConfigFile(t, "liquidator.json", `{"event_log": "events.yaml", "log_level": "warn"}`)

	stdout, _, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, path, resp.Data.Path)
}

func TestValidateSchemaViolation(t *testing.T) {
	path := writeConfigFile(t, "liquidator.cue", `log_level: "trace"`)

	stdout, _, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigInvalid, resp.Error.Code)
}

func TestValidateConsistencyErrors(t *testing.T) {
	path := writeConfigFile(t, "liquidator.cue", `
submitter: "jsonl"
follow:    true
`)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E010]: config is invalid")
	assert.Contains(t, stdout, "  submitter jsonl requires action_log\n")
	assert.Contains(t, stdout, "  follow requires db_path\n")
}

func TestValidateMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.cue")

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E005]")
}

func TestSplitErrors(t *testing.T) {
	err := textError("first\nsecond\n\n  third  ")
	assert.Equal(t, []string{"first", "second", "third"}, splitErrors(err))
}

type textError string

func (e textError) Error() string { return string(e) }
