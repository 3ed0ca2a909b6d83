package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	dir := writeFixture(t, nil)

	out, _, err := execute(t, "validate", filepath.Join(dir, "rules"))
	require.NoError(t, err)
	assert.Contains(t, out, "ruleset workerRow: 3 rule(s), watches [worker yield]")
	assert.Contains(t, out, "warning: ruleset loop: field cycle: a → b → a")
	assert.Contains(t, out, "✓ All rule sets valid")
}

func TestValidate_ValidJSON(t *testing.T) {
	dir := writeFixture(t, nil)

	out, _, err := execute(t, "--format", "json", "validate", filepath.Join(dir, "rules"))
	require.NoError(t, err)

	var resp struct {
		Status   string           `json:"status"`
		Data     ValidationResult `json:"data"`
		Warnings []string         `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.RuleSets, 2)

	names := []string{resp.Data.RuleSets[0].Name, resp.Data.RuleSets[1].Name}
	assert.ElementsMatch(t, []string{"workerRow", "loop"}, names)
	assert.Len(t, resp.Warnings, 1)
}

func TestValidate_CompileErrors(t *testing.T) {
	dir := t.TempDir()
	src := `package rules

ruleset: bad: rules: [
	{trigger: "a", action: {type: "calculate", targetField: "a", expr: "1.0"}},
]
ruleset: worse: rules: [
	{trigger: "a", action: {type: "teleport", targetField: "b"}},
]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(src), 0644))

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E106")
	assert.Contains(t, out, "E104")
	assert.Contains(t, out, "rules.cue:4")
}

func TestValidate_CompileErrorsJSON(t *testing.T) {
	dir := t.TempDir()
	src := "package rules\n\nruleset: bad: rules: [{trigger: \"a\"}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(src), 0644))

	out, _, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "E103", resp.Data.Errors[0].Code)
	assert.Equal(t, "ruleset.bad.rules[0].action", resp.Data.Errors[0].Field)
	assert.Equal(t, 3, resp.Data.Errors[0].Line)
	assert.Equal(t, "E103", resp.Error.Code)
}

func TestValidate_NonExistentDirectory(t *testing.T) {
	out, _, err := execute(t, "validate", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "not found")
}

func TestValidate_EmptyDirectory(t *testing.T) {
	_, _, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
}
