package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// PumpFDS is a small functional design specification used across
// pipeline, session and API tests.
const PumpFDS = `1. Introduction
This document describes the HMI for the booster pump station.
The pump system supplies water at 4.5 bar with a flow of 120 m3/h.

2. Screens
2.1 Main Overview Screen
Shows pump status, discharge pressure and tank level.

2.2 Pump Control Panel
Operators start and stop each pump and adjust the pressure setpoint.

2.3 Alarm Summary Display
Lists active alarms with acknowledge buttons.

2.4 Trend Display
Shows historical pressure and flow trends.

3. Settings
Maintenance staff configure motor speed limits and alarm thresholds.
`

// Markers that route FakeLLM requests to a stage.
const (
	IdentifyPrompt = `"screenList"`
	WorkflowPrompt = `"screenAnalysis"`
	SpecPrompt     = `"screenTitle"`
)

// WriteFile writes content under t.TempDir() and returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}
