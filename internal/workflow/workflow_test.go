package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	text  string
	err   error
	calls int
	last  llm.Request
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.calls++
	f.last = req
	return llm.Response{Text: f.text}, f.err
}

func newTestComposer(c llm.Client) *Composer {
	return NewComposer(c, llm.MustLoadPrompts(), Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func screenList(names ...string) []models.Screen {
	out := make([]models.Screen, len(names))
	for i, n := range names {
		out[i] = models.Screen{ScreenName: n}
	}
	return out
}

var generatorDoc = models.Document{Profile: models.KeywordProfile{
	SystemType: "generator_control",
	Components: []string{"generator", "engine", "breaker", "transformer", "battery", "sensor"},
	Operations: []string{"start", "stop"},
}}

func TestCompose_SmallListUsesTemplate(t *testing.T) {
	client := &fakeClient{text: `{}`}

	d := newTestComposer(client).Compose(context.Background(), screenList("Home Screen", "Settings Screen"), generatorDoc)

	assert.Equal(t, 0, client.calls)
	assert.Equal(t, SourceTemplate, d.Source)
	require.Len(t, d.ScreenAnalysis, 2)
	assert.Equal(t, "Home Screen", d.ScreenAnalysis[0].ScreenName)
	assert.Equal(t, "Settings Screen", d.ScreenAnalysis[0].Navigation.Next)
	require.Len(t, d.NavigationFlow.ScreenTransitions, 1)
	assert.Equal(t, "Home Screen", d.NavigationFlow.ScreenTransitions[0].From)
	assert.Equal(t, "Settings Screen", d.NavigationFlow.ScreenTransitions[0].To)
	assert.Equal(t, 2, d.SystemOverview.TotalScreens)
	assert.Equal(t, "Generator Control System", d.SystemOverview.SystemName)
}

func TestCompose_ModelPath(t *testing.T) {
	client := &fakeClient{text: "```json\n" + `{
		"systemOverview": {"systemName": "Genset Plant", "totalScreens": 99},
		"screenAnalysis": [
			{"screenName": "alarms", "purpose": "Alarm handling", "keyElements": ["List", 3, {"name": "Ack button"}]},
			{"screenName": "Ghost Screen", "purpose": "Not requested"}
		],
		"navigationFlow": {"screenTransitions": [
			"Overview -> Alarms",
			{"from": "Alarms", "to": "Ghost Screen"},
			"garbage",
			{"from": "Control", "to": "Trends", "trigger": "Trend button"}
		]},
		"technicalSpecifications": {"platform": "Web", "communication": "Modbus RTU"}
	}` + "\n```"}

	list := screenList("Overview", "Control", "Alarms", "Trends")
	d := newTestComposer(client).Compose(context.Background(), list, generatorDoc)

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, SourceModel, d.Source)
	assert.Contains(t, client.last.Prompt, "generator, engine, breaker, transformer, battery")
	assert.NotContains(t, client.last.Prompt, "sensor")

	require.Len(t, d.ScreenAnalysis, 4)
	for i, a := range d.ScreenAnalysis {
		assert.Equal(t, list[i].ScreenName, a.ScreenName)
		assert.NotEmpty(t, a.Purpose)
		assert.NotEmpty(t, a.Functionality)
		assert.NotEmpty(t, a.Behavior)
		assert.NotEmpty(t, a.DataVisualization)
		assert.NotEmpty(t, a.UserRoles)
	}
	assert.Equal(t, "Alarm handling", d.ScreenAnalysis[2].Purpose)
	assert.Equal(t, []string{"List", "3", "Ack button"}, d.ScreenAnalysis[2].KeyElements)

	assert.Equal(t, []models.Transition{
		{From: "Overview", To: "Alarms", Trigger: "Navigation button", Description: "Navigate from Overview to Alarms"},
		{From: "Control", To: "Trends", Trigger: "Trend button", Description: "Navigate from Control to Trends"},
	}, d.NavigationFlow.ScreenTransitions)

	assert.Equal(t, "Genset Plant", d.SystemOverview.SystemName)
	assert.Equal(t, 4, d.SystemOverview.TotalScreens)
	assert.Equal(t, "Overview -> Control -> Alarms -> Trends", d.NavigationFlow.Diagram)
	assert.Equal(t, []string{"Modbus RTU"}, d.TechnicalSpecifications.Communication)
	assert.Equal(t, "800x600", d.TechnicalSpecifications.Resolution)
}

func TestCompose_ModelFailureFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{"call error", &fakeClient{err: errors.New("timeout")}},
		{"unparsable", &fakeClient{text: "no json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := screenList("A", "B", "C", "D")
			d := newTestComposer(tt.client).Compose(context.Background(), list, models.Document{})

			assert.Equal(t, 1, tt.client.calls)
			assert.Equal(t, SourceTemplate, d.Source)
			assert.Len(t, d.ScreenAnalysis, 4)
			assert.Len(t, d.NavigationFlow.ScreenTransitions, 3)
			assert.Equal(t, models.SystemTypeIndustrialControl, d.SystemOverview.SystemType)
		})
	}
}

func TestParseTransition(t *testing.T) {
	tests := []struct {
		in   string
		want [][2]string
	}{
		{"Home -> Alarms", [][2]string{{"Home", "Alarms"}}},
		{"Home→Alarms", [][2]string{{"Home", "Alarms"}}},
		{"Home => Alarms => Trends", [][2]string{{"Home", "Alarms"}, {"Alarms", "Trends"}}},
		{"Home --> Alarms", [][2]string{{"Home", "Alarms"}}},
		{"Home to Alarms", nil},
		{"-> Alarms", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTransition(tt.in)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w[0], got[i].From)
				assert.Equal(t, w[1], got[i].To)
				assert.NotEmpty(t, got[i].Trigger)
			}
		})
	}
}

func TestReconcile_DropsDanglingTransitions(t *testing.T) {
	list := screenList("Home", "Pumps", "Alarms")
	d := models.WorkflowDiagram{
		NavigationFlow: models.NavigationFlow{ScreenTransitions: []models.Transition{
			{From: "home", To: "PUMPS"},
			{From: "Home", To: "Pumps"},
			{From: "Pumps", To: "Nowhere"},
			{From: "Alarms", To: "Alarms"},
		}},
	}

	got := Reconcile(d, list, models.Document{})

	require.Len(t, got.NavigationFlow.ScreenTransitions, 1)
	assert.Equal(t, "Home", got.NavigationFlow.ScreenTransitions[0].From)
	assert.Equal(t, "Pumps", got.NavigationFlow.ScreenTransitions[0].To)
	assert.Len(t, got.ScreenAnalysis, 3)
	assert.Equal(t, 3, got.SystemOverview.TotalScreens)
}

func TestReconcile_EmptyList(t *testing.T) {
	got := Reconcile(models.WorkflowDiagram{}, nil, models.Document{})
	assert.Empty(t, got.ScreenAnalysis)
	assert.Empty(t, got.NavigationFlow.ScreenTransitions)
	assert.Equal(t, 0, got.SystemOverview.TotalScreens)
}

func TestTemplateAnalysis_Navigation(t *testing.T) {
	names := []string{"Home", "Control", "Alarms", "Trends"}
	nav := TemplateAnalysis(models.Screen{ScreenName: "Alarms"}, names, 2).Navigation

	assert.Equal(t, "Control", nav.Previous)
	assert.Equal(t, "Trends", nav.Next)
	assert.Equal(t, []string{"Control", "Trends", "Home"}, nav.Links)
}
