package specgen

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
	text   string
	err    error
	panics bool
	prompt string
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	if f.panics {
		panic("provider exploded")
	}
	f.prompt = req.Prompt
	return llm.Response{Text: f.text}, f.err
}

func newTestGenerator(c llm.Client) *Generator {
	return NewGenerator(c, llm.MustLoadPrompts(), Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func assertSpecInvariants(t *testing.T, spec models.ScreenSpecification) {
	t.Helper()
	assert.GreaterOrEqual(t, len(spec.Elements), MinElements)
	assert.NotEmpty(t, spec.ScreenTitle)
	assert.NotEmpty(t, spec.ScreenPurpose)
	assert.NotEmpty(t, spec.ColorScheme)
	assert.NotEmpty(t, spec.Navigation)
	assert.NotEmpty(t, spec.FunctionalDescription)
	assert.NotEmpty(t, spec.Recommendations)

	all := append(append(append([]models.Element(nil), spec.Elements...), spec.Layout.Header.Elements...), spec.Layout.Footer.Elements...)
	for _, el := range all {
		p := el.Position
		assert.GreaterOrEqual(t, p.X, 0, el.Label)
		assert.GreaterOrEqual(t, p.Y, 0, el.Label)
		assert.LessOrEqual(t, p.X+p.Width, models.CanvasWidth, el.Label)
		assert.LessOrEqual(t, p.Y+p.Height, models.CanvasHeight, el.Label)
		assert.GreaterOrEqual(t, p.Width, minWidth, el.Label)
		assert.LessOrEqual(t, p.Width, maxWidth, el.Label)
		assert.GreaterOrEqual(t, p.Height, minHeight, el.Label)
	}
	for _, el := range spec.Layout.Header.Elements {
		assert.GreaterOrEqual(t, el.Position.Y, 10, el.Label)
		assert.LessOrEqual(t, el.Position.Y, 70, el.Label)
	}
	for _, el := range spec.Layout.Footer.Elements {
		assert.GreaterOrEqual(t, el.Position.Y, 540, el.Label)
		assert.LessOrEqual(t, el.Position.Y, 590, el.Label)
	}
	assert.True(t, hasType(spec.Elements, models.ElementStatusIndicator))
	assert.True(t, hasType(spec.Elements, models.ElementHeaderTitle, models.ElementText) ||
		hasType(spec.Layout.Header.Elements, models.ElementHeaderTitle, models.ElementText))
}

func TestGenerate_AlarmScreenFallback(t *testing.T) {
	clients := map[string]llm.Client{
		"no client":   nil,
		"model error": &fakeClient{err: errors.New("timeout")},
		"disabled":    llm.Disabled{},
		"garbage":     &fakeClient{text: "sorry, no layout today"},
		"panic":       &fakeClient{panics: true},
	}

	for name, c := range clients {
		t.Run(name, func(t *testing.T) {
			g := newTestGenerator(c)
			if c == nil {
				g = NewGenerator(nil, nil, Options{}, nil)
			}

			spec := g.Generate(context.Background(), models.Screen{ScreenName: "Alarm Screen"}, models.Document{})

			assert.Equal(t, SourceFallback, spec.Source)
			assert.True(t, hasType(spec.Elements, models.ElementAlarmIndicator))
			assertSpecInvariants(t, spec)
		})
	}
}

func TestGenerate_ModelSpecIsRepaired(t *testing.T) {
	client := &fakeClient{text: "```json\n" + `{
		"screenTitle": "Engine Monitor",
		"layout": {
			"header": {"height": 80, "title": "Engine"},
			"mainArea": {"elements": [{"type": "status indicator", "label": "Pump"}]},
			"footer": {"height": 60, "elements": [{"type": "navigation_button", "label": "Home", "position": {"x": 10, "y": 300, "width": 100, "height": 35}}]}
		},
		"colorScheme": {"primary": "#101010", "background": 7},
		"elements": [
			{"type": "Gauge", "label": "Speed", "position": {"x": 700.6, "y": -20, "width": 300, "height": 10}},
			{"type": "trend_chart", "text": "Trend", "position": {"x": 10, "y": 100, "width": 50, "height": 40}}
		],
		"navigation": ["Home", {"label": "Alarms", "target": "Alarm Screen"}]
	}` + "\n```"}

	doc := models.Document{Text: "The Engine Monitor shows oil pressure 4.5 bar.", Profile: models.KeywordProfile{SystemType: "generator_control"}}
	spec := newTestGenerator(client).Generate(context.Background(), models.Screen{ScreenName: "Engine Monitor"}, doc)

	assert.Equal(t, SourceModel, spec.Source)
	assertSpecInvariants(t, spec)
	assert.Len(t, spec.Elements, padTarget)

	assert.Equal(t, "gauge", spec.Elements[0].Type)
	assert.Equal(t, models.Position{X: 500, Y: 0, Width: 300, Height: 30}, spec.Elements[0].Position)
	assert.Equal(t, "trend_chart", spec.Elements[1].Type, "unknown types are kept")
	assert.Equal(t, "Trend", spec.Elements[1].Label)
	assert.Equal(t, "status_indicator", spec.Elements[2].Type)

	assert.Equal(t, models.ElementHeaderTitle, spec.Layout.Header.Elements[0].Type)
	assert.Equal(t, "Engine Monitor", spec.Layout.Header.Elements[0].Label)
	assert.Equal(t, 540, spec.Layout.Footer.Elements[0].Position.Y)

	assert.Equal(t, "#101010", spec.ColorScheme["primary"])
	assert.Equal(t, []models.NavLink{{Label: "Home", Target: "Home"}, {Label: "Alarms", Target: "Alarm Screen"}}, spec.Navigation)

	assert.Contains(t, client.prompt, "alarm_indicator")
	assert.Contains(t, client.prompt, "y between 10 and 70")
	assert.Contains(t, client.prompt, "y between 540 and 590")
	assert.Contains(t, client.prompt, "4.5 bar")
}

func TestFallback_AllCategoriesSatisfyInvariants(t *testing.T) {
	names := []string{
		"Home Screen", "Generator Control", "Engine Monitoring", "Alarm Screen", "System Settings",
		"Trend Display", "Event Reports", "Maintenance", "User Login", "Widget Garden",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			screen := models.Screen{ScreenName: name}
			spec := Repair(Fallback(screen, "pump_system", ScreenContext{}), screen, "pump_system")
			assertSpecInvariants(t, spec)
			assert.Equal(t, "#154360", spec.ColorScheme["primary"])
		})
	}
}

func TestFallback_UsesDocumentVariables(t *testing.T) {
	sc := ScreenContext{Parameters: []string{"1500 rpm", "oil pressure"}, Equipment: []string{"plc", "generator"}}
	spec := Fallback(models.Screen{ScreenName: "Home"}, "", sc)

	var labels []string
	for _, el := range spec.Elements {
		labels = append(labels, el.Label)
	}
	assert.Contains(t, labels, "Oil Pressure")
	assert.Contains(t, labels, "Generator Status")
	assert.Contains(t, labels, "Temperature")
}

func TestPadElements(t *testing.T) {
	t.Run("pads to eight", func(t *testing.T) {
		spec := PadElements(models.ScreenSpecification{Elements: []models.Element{{Type: "gauge"}}})
		require.Len(t, spec.Elements, padTarget)
		assert.Equal(t, models.ElementDataDisplay, spec.Elements[1].Type)
		assert.Equal(t, models.Position{X: 280, Y: 100, Width: 240, Height: 80}, spec.Elements[1].Position)
		assert.Equal(t, models.Position{X: 280, Y: 300, Width: 240, Height: 80}, spec.Elements[7].Position)
	})

	t.Run("leaves six alone", func(t *testing.T) {
		in := make([]models.Element, MinElements)
		spec := PadElements(models.ScreenSpecification{Elements: in})
		assert.Len(t, spec.Elements, MinElements)
	})
}

func TestClampElements(t *testing.T) {
	tests := []struct {
		name string
		in   models.Position
		want models.Position
	}{
		{"already valid", models.Position{X: 10, Y: 100, Width: 200, Height: 50}, models.Position{X: 10, Y: 100, Width: 200, Height: 50}},
		{"negative origin", models.Position{X: -5, Y: -5, Width: 100, Height: 40}, models.Position{X: 0, Y: 0, Width: 100, Height: 40}},
		{"too narrow and short", models.Position{X: 0, Y: 0, Width: 10, Height: 5}, models.Position{X: 0, Y: 0, Width: 80, Height: 30}},
		{"too wide", models.Position{X: 0, Y: 0, Width: 900, Height: 40}, models.Position{X: 0, Y: 0, Width: 400, Height: 40}},
		{"off canvas", models.Position{X: 790, Y: 590, Width: 100, Height: 50}, models.Position{X: 700, Y: 550, Width: 100, Height: 50}},
		{"taller than canvas", models.Position{X: 0, Y: 0, Width: 100, Height: 900}, models.Position{X: 0, Y: 0, Width: 100, Height: 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ClampElements(models.ScreenSpecification{Elements: []models.Element{{Position: tt.in}}})
			assert.Equal(t, tt.want, spec.Elements[0].Position)
		})
	}

	t.Run("bands", func(t *testing.T) {
		spec := ClampElements(models.ScreenSpecification{Layout: models.Layout{
			Header: models.Band{Elements: []models.Element{{Position: models.Position{Y: 300, Width: 100, Height: 200}}}},
			Footer: models.Band{Elements: []models.Element{{Position: models.Position{Y: 10, Width: 100, Height: 35}}}},
		}})
		assert.Equal(t, models.Position{X: 0, Y: 10, Width: 100, Height: 70}, spec.Layout.Header.Elements[0].Position)
		assert.Equal(t, models.Position{X: 0, Y: 540, Width: 100, Height: 35}, spec.Layout.Footer.Elements[0].Position)
	})
}

func TestEnsureTitleAndStatus(t *testing.T) {
	spec := EnsureTitleAndStatus(models.ScreenSpecification{ScreenTitle: "Pumps"})
	require.Len(t, spec.Layout.Header.Elements, 1)
	assert.Equal(t, models.ElementHeaderTitle, spec.Layout.Header.Elements[0].Type)
	require.Len(t, spec.Elements, 1)
	assert.Equal(t, models.ElementStatusIndicator, spec.Elements[0].Type)

	existing := models.ScreenSpecification{Elements: []models.Element{
		{Type: models.ElementText, Label: "Title"},
		{Type: models.ElementStatusIndicator, Label: "Run"},
	}}
	spec = EnsureTitleAndStatus(existing)
	assert.Len(t, spec.Elements, 2)
	assert.Empty(t, spec.Layout.Header.Elements)
}

func TestFillMissing(t *testing.T) {
	spec := FillMissing(models.ScreenSpecification{Layout: models.Layout{Header: models.Band{Height: 5}}},
		models.Screen{ScreenName: "Alarm Page", ScreenPurpose: "See alarms"}, "water_treatment")

	assert.Equal(t, "Alarm Page", spec.ScreenTitle)
	assert.Equal(t, "See alarms", spec.ScreenPurpose)
	assert.Equal(t, models.DefaultHeaderHeight, spec.Layout.Header.Height)
	assert.Equal(t, models.DefaultFooterHeight, spec.Layout.Footer.Height)
	assert.Equal(t, "#117A8B", spec.ColorScheme["primary"])
	assert.Equal(t, "The Alarm Page screen provides see alarms. Sort alarms by priority and time.", spec.FunctionalDescription)
	for _, link := range spec.Navigation {
		assert.NotEqual(t, "Alarms", link.Label)
	}
	assert.NotEmpty(t, spec.Recommendations)
}

func TestBuildContext(t *testing.T) {
	filler := strings.Repeat("Unrelated paragraph text. ", 200)
	text := filler + "\nThe Alarm Screen lists generator trips. Oil pressure 4.5 bar and speed 1500 rpm.\n" + filler

	sc := BuildContext(models.Screen{ScreenName: "Alarm Screen"}, text)

	assert.LessOrEqual(t, len(sc.Excerpt), maxContextChars)
	assert.Contains(t, sc.Excerpt, "Alarm Screen lists")
	assert.Equal(t, []string{"generator"}, sc.Equipment)
	assert.Contains(t, sc.Operations, "trip")
	assert.Equal(t, []string{"4.5 bar", "1500 rpm", "oil pressure", "speed"}, sc.Parameters)

	t.Run("category words when name is absent", func(t *testing.T) {
		sc := BuildContext(models.Screen{ScreenName: "Faults"}, filler+"\nALARM list of the pump.\n")
		assert.Contains(t, sc.Excerpt, "ALARM list")
	})

	t.Run("document head when nothing matches", func(t *testing.T) {
		sc := BuildContext(models.Screen{ScreenName: "Widget"}, filler)
		assert.Len(t, sc.Excerpt, maxContextChars)
	})
}

func TestParameters(t *testing.T) {
	got := Parameters("Rated 400 V, 50 Hz, 80% load. Tank level 2.5 m3/h. 3 apples. 10kVAr")
	assert.Equal(t, []string{"400 V", "50 Hz", "80 %", "2.5 m3/h", "10 kVAr", "load", "level"}, got)
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "status_indicator", NormalizeType(" Status Indicator "))
	assert.Equal(t, "date_time_display", NormalizeType("date-time-display"))
}
