package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFDS = `This document describes the generator control HMI.
It is intended for commissioning engineers.

1. INTRODUCTION
The system monitors two gensets.

2.1 Main Overview Screen
Shows generator status, breaker position and load.
  A trend of kW is displayed.

## Alarm Screen
Active alarms are listed with timestamps.

Settings
Operators can change setpoints.
`

func TestSegment_SplitsAtHeadings(t *testing.T) {
	sections := Segment(sampleFDS)

	headings := make([]string, len(sections))
	for i, s := range sections {
		headings[i] = s.Heading
	}
	assert.Equal(t, []string{
		DefaultHeading,
		"1. INTRODUCTION",
		"2.1 Main Overview Screen",
		"Alarm Screen",
		"Settings",
	}, headings)

	main := sections[2]
	assert.Equal(t, []string{
		"2.1 Main Overview Screen",
		"Shows generator status, breaker position and load.",
		"A trend of kW is displayed.",
	}, main.Content)
}

func TestSegment_ReproducesNonEmptyLines(t *testing.T) {
	inputs := []string{
		sampleFDS,
		"no headings at all\njust prose\n\nand more prose",
		"HEADER ONLY",
		"\n\n   \n",
		"Chapter 3 Control Modes\nAuto Mode\nManual mode lets the operator jog the motor.\n4.2) Pump Panel:\nDetails",
	}

	for _, in := range inputs {
		var want []string
		for _, l := range strings.Split(in, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				want = append(want, l)
			}
		}
		assert.Equal(t, want, Lines(Segment(in)), "input %q", in)
	}
}

func TestSegment_EmptyDocument(t *testing.T) {
	sections := Segment("")

	require.Len(t, sections, 1)
	assert.Equal(t, DefaultHeading, sections[0].Heading)
	assert.Empty(t, sections[0].Content)
}

func TestSegment_LeadingHeadingHasNoImplicitSection(t *testing.T) {
	sections := Segment("OVERVIEW\nbody")

	require.Len(t, sections, 1)
	assert.Equal(t, "OVERVIEW", sections[0].Heading)
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"# Title", true},
		{"3.4.1 Pump Control", true},
		{"4.2) Pump Panel:", true},
		{"Chapter 2 Operation", true},
		{"Appendix A", true},
		{"SYSTEM ARCHITECTURE", true},
		{"Main Menu", true},
		{"Auto Mode", true},
		{"Alarm Display:", true},
		{"introduction", true},
		{"Alarms:", true},
		{"The pump starts when the level is high.", false},
		{"A-1", false},
		{"Operators use this screen to acknowledge alarms raised by the generator protection relay and the transfer switch", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeading(tt.line))
		})
	}
}

func TestSegment_Idempotent(t *testing.T) {
	assert.Equal(t, Segment(sampleFDS), Segment(sampleFDS))
}
