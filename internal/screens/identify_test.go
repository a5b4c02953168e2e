package screens

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.prompts = append(f.prompts, req.Prompt)
	return llm.Response{Text: f.text}, f.err
}

func newTestIdentifier(c llm.Client) *Identifier {
	return NewIdentifier(c, llm.MustLoadPrompts(), Options{Model: "test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testSections = []models.Section{
	{Heading: "Document Content", Content: []string{"Preface text."}},
	{Heading: "1. Introduction", Content: []string{"1. Introduction", "This document covers the plant."}},
	{Heading: "3.1 Overview Screen", Content: []string{"3.1 Overview Screen", "Shows the generator status indicator."}},
	{Heading: "3.2 Alarm Page", Content: []string{"3.2 Alarm Page", "Lists active alarms."}},
	{Heading: "3.2 Alarm Page", Content: []string{"3.2 Alarm Page", "Duplicate heading."}},
	{Heading: "Revision History", Content: []string{"Revision History", "Rev A by JS."}},
}

func TestFilter(t *testing.T) {
	got := Filter(testSections)

	var headings []string
	for _, s := range got {
		headings = append(headings, s.Heading)
	}
	assert.Equal(t, []string{"3.1 Overview Screen", "3.2 Alarm Page"}, headings)
}

func TestIdentify_FencedResponse(t *testing.T) {
	client := &fakeClient{text: "Sure! Here is the analysis:\n```json\n" +
		`{"totalScreens": 2, "screenList": [` +
		`{"screenId": 1, "screenName": "Overview Screen", "screenPurpose": "Plant overview", "screenType": "overview"},` +
		`{"screenId": 2, "screenName": "Alarm Page", "screenPurpose": "Alarms"}],` +
		`"reasoning": "Two screen headings"}` + "\n```"}

	list, err := newTestIdentifier(client).Identify(context.Background(), testSections, models.Document{})
	require.NoError(t, err)

	assert.Equal(t, 2, list.TotalScreens)
	assert.Equal(t, []string{"Overview Screen", "Alarm Page"}, list.Names())
	assert.Equal(t, "screen_1", list.ScreenList[0].ScreenID)
	assert.Equal(t, "alarm", list.ScreenList[1].ScreenType)
	assert.Equal(t, "Two screen headings", list.Reasoning)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Overview Screen")
	assert.NotContains(t, client.prompts[0], "Revision History")
}

func TestIdentify_Failures(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeClient
		wantErr error
	}{
		{"model error", &fakeClient{err: errors.New("timeout")}, nil},
		{"disabled", &fakeClient{err: llm.ErrDisabled}, llm.ErrDisabled},
		{"garbage", &fakeClient{text: "I cannot help with that."}, llm.ErrUnparsable},
		{"empty list", &fakeClient{text: `{"totalScreens": 0, "screenList": []}`}, llm.ErrUnparsable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := newTestIdentifier(tt.client).Identify(context.Background(), testSections, models.Document{})
			require.Error(t, err)
			assert.True(t, IsAnalysisError(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, list.ScreenList)
			assert.Len(t, tt.client.prompts, 1, "single attempt only")
		})
	}
}

func TestParseScreenList_Shapes(t *testing.T) {
	list, err := ParseScreenList(`{"screens": ["Home", {"name": "Pump Control"}, "", "home"], "reasoning": 42}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Home", "Pump Control", "home (2)"}, list.Names())
	assert.Equal(t, 3, list.TotalScreens)
	assert.Equal(t, "42", list.Reasoning)
	assert.Equal(t, "screen_3", list.ScreenList[2].ScreenID)
	assert.Equal(t, CategoryControl, list.ScreenList[1].ScreenType)
	assert.NotEmpty(t, list.ScreenList[1].ScreenPurpose)
}

func TestNormalize_UniqueNames(t *testing.T) {
	list := Normalize([]models.Screen{
		{ScreenName: "  Main   Screen "},
		{ScreenName: "main screen"},
		{ScreenName: "Main Screen (2)"},
		{ScreenName: "   "},
	})

	assert.Equal(t, []string{"Main Screen", "main screen (2)", "Main Screen (2) (2)"}, list.Names())
	seen := map[string]bool{}
	for _, name := range list.Names() {
		key := strings.ToLower(name)
		assert.False(t, seen[key], "duplicate %q", name)
		seen[key] = true
	}
}

func TestCategory(t *testing.T) {
	tests := map[string]string{
		"Home Screen":        CategoryHome,
		"Alarm Overview":     CategoryAlarm,
		"Generator Control":  CategoryControl,
		"Engine Status":      CategoryMonitoring,
		"Trend Display":      CategoryTrend,
		"System Settings":    CategorySettings,
		"Event Log":          CategoryAlarm,
		"Maintenance":        CategoryDiagnostic,
		"User Login":         CategorySecurity,
		"Production Reports": CategoryReport,
		"Widget Garden":      CategoryGeneric,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, Category(name))
		})
	}
}

func TestFromTemplate(t *testing.T) {
	t.Run("screen headings", func(t *testing.T) {
		list := FromTemplate(testSections, models.KeywordProfile{SystemType: "generator_control"})

		assert.Equal(t, []string{"Overview Screen", "Alarm Page", "Alarm Page (2)"}, list.Names())
		assert.Equal(t, "Shows the generator status indicator.", list.ScreenList[0].ScreenPurpose)
	})

	t.Run("defaults when no headings", func(t *testing.T) {
		list := FromTemplate([]models.Section{{Heading: "Document Content"}}, models.KeywordProfile{SystemType: "pump_system"})

		require.Equal(t, 6, list.TotalScreens)
		assert.Equal(t, "System Overview", list.ScreenList[0].ScreenName)
		assert.Contains(t, list.ScreenList[0].ScreenPurpose, "pump system")
		assert.Equal(t, CategoryAlarm, list.ScreenList[3].ScreenType)
	})

	t.Run("all caps headings", func(t *testing.T) {
		list := FromTemplate([]models.Section{{Heading: "## MAIN DISPLAY:", Content: []string{"## MAIN DISPLAY:"}}}, models.KeywordProfile{})
		assert.Equal(t, []string{"Main Display"}, list.Names())
	})
}

func TestFromTemplate_SkipsChapterTitles(t *testing.T) {
	sections := []models.Section{
		{Heading: "2. Screens", Content: []string{"2. Screens"}},
		{Heading: "2.1 Main Overview Screen", Content: []string{"2.1 Main Overview Screen", "Pump status."}},
	}
	list := FromTemplate(sections, models.KeywordProfile{})
	assert.Equal(t, []string{"Main Overview Screen"}, list.Names())
}
