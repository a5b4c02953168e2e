package models

import (
	"encoding/json"
	"math"
)

// Canvas geometry shared by the generator and the renderer.
const (
	CanvasWidth         = 800
	CanvasHeight        = 600
	DefaultHeaderHeight = 80
	DefaultFooterHeight = 60
	// HeaderMinY is the topmost y allowed for a header element.
	HeaderMinY = 10
)

// Element types. The set is closed; the renderer draws anything else as
// a control button.
const (
	ElementControlButton    = "control_button"
	ElementStatusIndicator  = "status_indicator"
	ElementDataTable        = "data_table"
	ElementDataDisplay      = "data_display"
	ElementValueInput       = "value_input"
	ElementAlarmIndicator   = "alarm_indicator"
	ElementGauge            = "gauge"
	ElementProgressBar      = "progress_bar"
	ElementText             = "text"
	ElementToggle           = "toggle"
	ElementNavigationButton = "navigation_button"
	ElementDateTimeDisplay  = "date_time_display"
	ElementBatteryIndicator = "battery_indicator"
	ElementHeaderTitle      = "header_title"
)

// ElementTypes lists the closed widget vocabulary in a stable order.
var ElementTypes = []string{
	ElementControlButton,
	ElementStatusIndicator,
	ElementDataTable,
	ElementDataDisplay,
	ElementValueInput,
	ElementAlarmIndicator,
	ElementGauge,
	ElementProgressBar,
	ElementText,
	ElementToggle,
	ElementNavigationButton,
	ElementDateTimeDisplay,
	ElementBatteryIndicator,
	ElementHeaderTitle,
}

// IsElementType reports whether t belongs to the closed vocabulary.
func IsElementType(t string) bool {
	for _, known := range ElementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ColorScheme maps a color role (background, primary, text, ...) to a
// #rrggbb value.
type ColorScheme map[string]string

// ScreenSpecification is the full layout description of one screen.
// Elements holds the main-area widgets; header and footer widgets live in
// their Layout band.
type ScreenSpecification struct {
	ScreenTitle           string      `json:"screenTitle"`
	ScreenPurpose         string      `json:"screenPurpose"`
	Layout                Layout      `json:"layout"`
	ColorScheme           ColorScheme `json:"colorScheme"`
	Elements              []Element   `json:"elements"`
	FunctionalDescription string      `json:"functionalDescription"`
	Navigation            []NavLink   `json:"navigation"`
	Recommendations       []string    `json:"recommendations"`
	Source                string      `json:"source,omitempty"` // "model" or "fallback"
}

// Layout splits the canvas into header, main area and footer bands.
type Layout struct {
	Header   Band `json:"header"`
	MainArea Band `json:"mainArea"`
	Footer   Band `json:"footer"`
}

// Band is one horizontal region of the canvas.
type Band struct {
	Height      int       `json:"height"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Elements    []Element `json:"elements,omitempty"`
}

// HeaderHeight returns the header band height, defaulting to 80.
func (l Layout) HeaderHeight() int {
	if l.Header.Height > 0 {
		return l.Header.Height
	}
	return DefaultHeaderHeight
}

// FooterHeight returns the footer band height, defaulting to 60.
func (l Layout) FooterHeight() int {
	if l.Footer.Height > 0 {
		return l.Footer.Height
	}
	return DefaultFooterHeight
}

// FooterY is the top edge of the footer band.
func (l Layout) FooterY() int {
	return CanvasHeight - l.FooterHeight()
}

// NavLink is a navigation target listed on a screen.
type NavLink struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// Element is one widget placed on the canvas.
type Element struct {
	Type     string         `json:"type"`
	Label    string         `json:"label"`
	Position Position       `json:"position"`
	Style    map[string]any `json:"style,omitempty"`
}

// Position is an element bounding box in canvas units.
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UnmarshalJSON accepts fractional coordinates and rounds them.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.X = int(math.Round(raw.X))
	p.Y = int(math.Round(raw.Y))
	p.Width = int(math.Round(raw.Width))
	p.Height = int(math.Round(raw.Height))
	return nil
}

// StyleString returns a string style value or def.
func (e Element) StyleString(key, def string) string {
	if v, ok := e.Style[key].(string); ok && v != "" {
		return v
	}
	return def
}
