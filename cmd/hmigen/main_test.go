package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/testutil"
)

func TestRun_TemplatesOnly(t *testing.T) {
	doc := testutil.WriteFile(t, "pump_station.txt", testutil.PumpFDS)
	out := t.TempDir()

	require.NoError(t, run("", out, "none", 2, doc))

	data, err := os.ReadFile(filepath.Join(out, "screens.json"))
	require.NoError(t, err)
	var list models.ScreenList
	require.NoError(t, json.Unmarshal(data, &list))
	require.NotEmpty(t, list.ScreenList)

	for i := range list.ScreenList {
		base := filepath.Join(out, "screen_"+strconv.Itoa(i+1))
		assert.FileExists(t, base+".png")
		assert.FileExists(t, base+".json")
	}
	assert.FileExists(t, filepath.Join(out, "combined.png"))
	assert.FileExists(t, filepath.Join(out, "workflow.json"))
	assert.FileExists(t, filepath.Join(out, "summary.json"))
}

func TestRun_MissingCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	doc := testutil.WriteFile(t, "fds.txt", testutil.PumpFDS)

	err := run("", t.TempDir(), "anthropic", 0, doc)
	assert.Error(t, err)
}
