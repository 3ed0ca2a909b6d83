package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatched_Text(t *testing.T) {
	dir := writeFixture(t, nil)

	out, _, err := execute(t, "watched", filepath.Join(dir, "rules"), "workerRow")
	require.NoError(t, err)
	assert.Equal(t, "worker\nyield\n", out)
}

func TestWatched_Edges(t *testing.T) {
	dir := writeFixture(t, nil)

	out, _, err := execute(t, "watched", "--edges", filepath.Join(dir, "rules"), "workerRow")
	require.NoError(t, err)
	assert.Equal(t, "worker\nyield\n\nworker -> yieldValue\nyield -> totalDeal\nyield -> value\n", out)
}

func TestWatched_JSON(t *testing.T) {
	dir := writeFixture(t, nil)

	out, _, err := execute(t, "--format", "json", "watched", filepath.Join(dir, "rules"), "loop")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   WatchedResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "loop", resp.Data.RuleSet)
	assert.Equal(t, []string{"a", "b"}, resp.Data.Watched)
	assert.Empty(t, resp.Data.Edges)
}

func TestWatched_UnknownRuleSet(t *testing.T) {
	dir := writeFixture(t, nil)

	out, _, err := execute(t, "watched", filepath.Join(dir, "rules"), "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E107")
	assert.Contains(t, out, `rule set "nope" not found`)
}

func TestWatched_InvalidRuleSet(t *testing.T) {
	dir := t.TempDir()
	src := "package rules\n\nruleset: ok: rules: []\nruleset: bad: rules: [{trigger: \"a\"}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(src), 0644))

	out, _, err := execute(t, "watched", dir, "bad")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E103")

	out, _, err = execute(t, "watched", dir, "ok")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWatched_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "watched", "only-one")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg")
}
