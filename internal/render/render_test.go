package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmi-forge/backend/internal/models"
)

func sampleSpec() models.ScreenSpecification {
	el := func(typ, label string, x, y, w, h int) models.Element {
		return models.Element{Type: typ, Label: label, Position: models.Position{X: x, Y: y, Width: w, Height: h}}
	}
	return models.ScreenSpecification{
		ScreenTitle: "Pump Overview",
		Layout: models.Layout{
			Header: models.Band{Height: 80, Elements: []models.Element{
				el(models.ElementHeaderTitle, "Pump Overview", 20, 20, 360, 40),
				el(models.ElementDateTimeDisplay, "Clock", 600, 25, 180, 30),
			}},
			Footer: models.Band{Height: 60, Elements: []models.Element{
				el(models.ElementNavigationButton, "Home", 20, 550, 130, 35),
			}},
		},
		Elements: []models.Element{
			el(models.ElementControlButton, "Start", 20, 100, 240, 80),
			el(models.ElementStatusIndicator, "Pump Running", 280, 100, 240, 80),
			el(models.ElementAlarmIndicator, "High Pressure", 540, 100, 240, 80),
			el(models.ElementDataDisplay, "Flow Rate", 20, 200, 240, 80),
			el(models.ElementValueInput, "Setpoint", 280, 200, 240, 80),
			el(models.ElementGauge, "Pressure", 540, 200, 240, 120),
			el(models.ElementProgressBar, "Tank Level", 20, 300, 240, 40),
			el(models.ElementText, "Information", 280, 300, 240, 40),
			el(models.ElementToggle, "Auto / Manual", 20, 360, 240, 40),
			el(models.ElementBatteryIndicator, "Battery Charge", 280, 360, 240, 60),
			el(models.ElementDataTable, "Alarm History", 20, 420, 500, 110),
		},
	}
}

func TestRenderTraced_DrawLog(t *testing.T) {
	r := NewRenderer(FixedValues{}, nil)
	spec := sampleSpec()

	img, calls, err := r.RenderTraced(spec)
	require.NoError(t, err)
	assert.Equal(t, models.CanvasWidth, img.Bounds().Dx())
	assert.Equal(t, models.CanvasHeight, img.Bounds().Dy())

	var want []DrawCall
	for _, group := range [][]models.Element{spec.Elements, spec.Layout.Header.Elements, spec.Layout.Footer.Elements} {
		for _, el := range group {
			want = append(want, DrawCall{Type: el.Type, Label: el.Label})
		}
	}
	assert.Equal(t, want, calls)
}

func TestRender_EveryElementType(t *testing.T) {
	r := NewRenderer(FixedValues{}, nil)
	for _, typ := range models.ElementTypes {
		t.Run(typ, func(t *testing.T) {
			spec := models.ScreenSpecification{
				ScreenTitle: "Single",
				Elements: []models.Element{{
					Type:     typ,
					Label:    "Motor Speed",
					Position: models.Position{X: 100, Y: 150, Width: 300, Height: 120},
				}},
			}
			_, calls, err := r.RenderTraced(spec)
			require.NoError(t, err)
			require.Len(t, calls, 1)
			assert.Equal(t, typ, calls[0].Type)
		})
	}
}

func TestRender_UnknownTypeDrawsButton(t *testing.T) {
	r := NewRenderer(FixedValues{}, nil)
	var drawn []string
	r.Register(models.ElementControlButton, WidgetFunc(func(c *Canvas, el models.Element, env Env) {
		drawn = append(drawn, el.Label)
	}))

	spec := models.ScreenSpecification{Elements: []models.Element{
		{Type: "trend_chart", Label: "Trend", Position: models.Position{X: 10, Y: 100, Width: 200, Height: 100}},
	}}
	_, calls, err := r.RenderTraced(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"Trend"}, drawn)
	assert.Equal(t, []DrawCall{{Type: "trend_chart", Label: "Trend"}}, calls)
}

func TestRender_WidgetPanicBecomesError(t *testing.T) {
	r := NewRenderer(FixedValues{}, nil)
	r.Register(models.ElementGauge, WidgetFunc(func(*Canvas, models.Element, Env) {
		panic("broken gauge")
	}))

	spec := models.ScreenSpecification{ScreenTitle: "Boom", Elements: []models.Element{
		{Type: models.ElementGauge, Label: "Pressure", Position: models.Position{X: 10, Y: 100, Width: 200, Height: 100}},
	}}
	img, err := r.Render(spec)
	require.Error(t, err)
	assert.Nil(t, img)
	assert.Contains(t, err.Error(), "broken gauge")
}

func TestRenderPNG(t *testing.T) {
	r := NewRenderer(nil, nil)
	data, err := r.RenderPNG(sampleSpec())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestRender_SeededValuesAreDeterministic(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	render := func() ([]byte, error) {
		r := NewRenderer(NewRandomValues(7), nil)
		r.SetClock(clock)
		return r.RenderPNG(sampleSpec())
	}
	a, err := render()
	require.NoError(t, err)
	b, err := render()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_SeededValuesIgnoreDrawOrder(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	other := sampleSpec()
	other.ScreenTitle = "Alarm Summary"

	alone := NewRenderer(NewRandomValues(7), nil)
	alone.SetClock(clock)
	want, err := alone.RenderPNG(sampleSpec())
	require.NoError(t, err)

	shared := NewRenderer(NewRandomValues(7), nil)
	shared.SetClock(clock)
	_, err = shared.RenderPNG(other)
	require.NoError(t, err)
	got, err := shared.RenderPNG(sampleSpec())
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestRandomValues(t *testing.T) {
	v := NewRandomValues(7)
	pump := v.ForScreen("Pump Overview")

	assert.Equal(t, pump.Reading("Pressure"), v.ForScreen("Pump Overview").Reading("Pressure"))
	assert.NotEqual(t, pump.Reading("Pressure"), v.ForScreen("Boiler Overview").Reading("Pressure"))
	assert.NotEqual(t, pump.Reading("Pressure"), NewRandomValues(8).ForScreen("Pump Overview").Reading("Pressure"))

	r := pump.Reading("Discharge Pressure")
	assert.GreaterOrEqual(t, r.Value, 1.0)
	assert.LessOrEqual(t, r.Value, 10.0)
	assert.Equal(t, "bar", r.Unit)
}

func TestBandClamped(t *testing.T) {
	l := models.Layout{
		Header: models.Band{Height: 80, Elements: []models.Element{
			{Type: models.ElementText, Position: models.Position{Y: 0, Height: 30}},
			{Type: models.ElementText, Position: models.Position{Y: 70, Height: 30}},
		}},
		Footer: models.Band{Height: 60, Elements: []models.Element{
			{Type: models.ElementNavigationButton, Position: models.Position{Y: 100, Height: 35}},
		}},
	}
	got := bandClamped(l)
	assert.Equal(t, models.HeaderMinY, got.Header.Elements[0].Position.Y)
	assert.Equal(t, 50, got.Header.Elements[1].Position.Y)
	assert.Equal(t, 540, got.Footer.Elements[0].Position.Y)
	// the input layout is not modified
	assert.Equal(t, 0, l.Header.Elements[0].Position.Y)
}

func TestGrid(t *testing.T) {
	tests := []struct {
		i        int
		row, col int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{6, 2, 0},
	}
	for _, tt := range tests {
		row, col := GridPosition(tt.i)
		assert.Equal(t, tt.row, row, "row of %d", tt.i)
		assert.Equal(t, tt.col, col, "col of %d", tt.i)
	}

	assert.Equal(t, 0, GridRows(0))
	assert.Equal(t, 1, GridRows(3))
	assert.Equal(t, 3, GridRows(7))

	w, h := CombinedSize(7)
	assert.Equal(t, 2*25+3*650, w)
	assert.Equal(t, 140+3*450+60, h)
}

func TestRenderCombined(t *testing.T) {
	r := NewRenderer(FixedValues{}, nil)
	var entries []Entry
	for i := range 7 {
		spec := sampleSpec()
		name := fmt.Sprintf("Screen %d", i+1)
		spec.ScreenTitle = name
		entries = append(entries, Entry{Name: name, Spec: &spec})
	}
	entries[4] = Entry{Name: "Screen 5", Err: errors.New("model timeout")}

	transitions := []models.Transition{
		{From: "Screen 1", To: "Screen 2"},
		{From: "screen 2", To: "Screen 7"},
		{From: "Screen 3", To: "Missing Screen"},
	}
	img, err := r.RenderCombined(entries, transitions, models.SystemOverview{SystemName: "Pump System", SystemType: "pump"})
	require.NoError(t, err)

	w, h := CombinedSize(7)
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
}

func TestRenderCombined_Empty(t *testing.T) {
	img, err := NewRenderer(nil, nil).RenderCombined(nil, nil, models.SystemOverview{})
	require.NoError(t, err)
	_, h := CombinedSize(0)
	assert.Equal(t, h, img.Bounds().Dy())
}

func TestRenderComprehensive(t *testing.T) {
	spec := sampleSpec()
	entries := []Entry{
		{Name: "A", Spec: &spec},
		{Name: "B", Spec: &spec},
		{Name: "C", Spec: &spec},
		{Name: "D"},
		{Name: "E", Spec: &spec},
	}
	img, err := NewRenderer(FixedValues{}, nil).RenderComprehensive(entries, "All Screens")
	require.NoError(t, err)
	assert.Equal(t, 3*ComprehensiveCellWidth, img.Bounds().Dx())
	assert.Equal(t, 60+2*ComprehensiveCellHeight, img.Bounds().Dy())
}

func TestEdgeFraction(t *testing.T) {
	assert.InDelta(t, 0.5, edgeFraction(650, 0, 310, 210), 0.03)
	assert.InDelta(t, 210.0/450.0, edgeFraction(0, 450, 310, 210), 1e-9)
	assert.Equal(t, 0.0, edgeFraction(0, 0, 310, 210))
}

func TestRangeFor(t *testing.T) {
	tests := []struct {
		label  string
		lo, hi float64
		unit   string
	}{
		{"Boiler Temperature", 20, 50, "°C"},
		{"Discharge Pressure", 1, 10, "bar"},
		{"Bus Voltage", 380, 420, "V"},
		{"Grid Frequency", 49.5, 50.5, "Hz"},
		{"Tank Level", 0, 100, "%"},
		{"Flow Rate", 10, 200, "m³/h"},
		{"Widget", 0, 100, ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			lo, hi, unit := RangeFor(tt.label)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func TestReadingFraction(t *testing.T) {
	assert.Equal(t, 0.5, Reading{Value: 5, Min: 0, Max: 10}.Fraction())
	assert.Equal(t, 1.0, Reading{Value: 20, Min: 0, Max: 10}.Fraction())
	assert.Equal(t, 0.0, Reading{Value: 5, Min: 10, Max: 10}.Fraction())

	r := FixedValues{}.Reading("Pressure")
	assert.Equal(t, 5.5, r.Value)
}
