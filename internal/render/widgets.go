package render

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/theme"
)

// Env is what a widget may consult while drawing.
type Env struct {
	Scheme models.ColorScheme
	Values ValueSource
	Now    time.Time
}

// Color resolves a scheme role.
func (e Env) Color(role string) color.RGBA {
	return theme.Color(e.Scheme, role)
}

// Widget draws one element type. Coordinates are logical canvas units.
type Widget interface {
	Draw(c *Canvas, el models.Element, env Env)
}

// WidgetFunc adapts a function to Widget.
type WidgetFunc func(c *Canvas, el models.Element, env Env)

func (f WidgetFunc) Draw(c *Canvas, el models.Element, env Env) {
	f(c, el, env)
}

var (
	white     = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	lightGray = color.RGBA{R: 0xE5, G: 0xE8, B: 0xE8, A: 0xFF}
	midGray   = color.RGBA{R: 0x95, G: 0xA5, B: 0xA6, A: 0xFF}
	darkGray  = color.RGBA{R: 0x56, G: 0x65, B: 0x73, A: 0xFF}
)

func defaultWidgets() map[string]Widget {
	return map[string]Widget{
		models.ElementControlButton:    WidgetFunc(drawButton),
		models.ElementStatusIndicator:  WidgetFunc(drawStatus),
		models.ElementDataTable:        WidgetFunc(drawTable),
		models.ElementDataDisplay:      WidgetFunc(drawDataDisplay),
		models.ElementValueInput:       WidgetFunc(drawValueInput),
		models.ElementAlarmIndicator:   WidgetFunc(drawAlarm),
		models.ElementGauge:            WidgetFunc(drawGauge),
		models.ElementProgressBar:      WidgetFunc(drawProgress),
		models.ElementText:             WidgetFunc(drawText),
		models.ElementToggle:           WidgetFunc(drawToggle),
		models.ElementNavigationButton: WidgetFunc(drawNavButton),
		models.ElementDateTimeDisplay:  WidgetFunc(drawDateTime),
		models.ElementBatteryIndicator: WidgetFunc(drawBattery),
		models.ElementHeaderTitle:      WidgetFunc(drawHeaderTitle),
	}
}

func box(el models.Element) (x, y, w, h float64) {
	p := el.Position
	return float64(p.X), float64(p.Y), float64(p.Width), float64(p.Height)
}

// styleColor reads a #rrggbb override from the element style.
func styleColor(el models.Element, key string, def color.RGBA) color.RGBA {
	if c, ok := theme.ParseHex(el.StyleString(key, "")); ok {
		return c
	}
	return def
}

func fontSize(h, ratio, lo, hi float64) float64 {
	return min(max(h*ratio, lo), hi)
}

func drawButton(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	bg := styleColor(el, "backgroundColor", env.Color(theme.RoleAccent))
	lower := strings.ToLower(el.Label)
	switch {
	case strings.Contains(lower, "stop") || strings.Contains(lower, "trip"):
		bg = styleColor(el, "backgroundColor", env.Color(theme.RoleDanger))
	case strings.Contains(lower, "start") || strings.Contains(lower, "run"):
		bg = styleColor(el, "backgroundColor", env.Color(theme.RoleSuccess))
	}
	c.FillRect(x+2, y+3, w, h, color.RGBA{R: 0, G: 0, B: 0, A: 0x30})
	c.FillRect(x, y, w, h, bg)
	c.StrokeRect(x, y, w, h, 1, darken(bg))
	c.TextIn(x+6, y, w-12, h, el.Label, fontSize(h, 0.35, 10, 18), true, 0, styleColor(el, "color", white))
}

func drawNavButton(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	bg := styleColor(el, "backgroundColor", env.Color(theme.RoleSecondary))
	c.FillRect(x, y, w, h, bg)
	c.StrokeRect(x, y, w, h, 1, env.Color(theme.RoleBorder))
	c.TextIn(x+6, y, w-12, h, el.Label, fontSize(h, 0.4, 10, 16), false, 0, white)
}

func isFaultLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, k := range []string{"fault", "trip", "fail", "error", "stop", "off"} {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func drawStatus(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	c.FillRect(x, y, w, h, white)
	c.StrokeRect(x, y, w, h, 1, env.Color(theme.RoleBorder))

	state, text := env.Color(theme.RoleSuccess), "RUNNING"
	if isFaultLabel(el.Label) {
		state, text = env.Color(theme.RoleDanger), "FAULT"
	}
	r := max(min(h/2-5, 12), 3)
	c.FillCircle(x+8+r, y+h/2, r, state)
	c.StrokeCircle(x+8+r, y+h/2, r, 1, darken(state))

	size := fontSize(h, 0.32, 9, 15)
	textX := x + 16 + 2*r
	stateW := c.TextWidth(text, size*0.85, true)
	c.TextIn(textX, y, w-(textX-x)-stateW-12, h, el.Label, size, false, -1, env.Color(theme.RoleText))
	c.TextIn(x+w-stateW-8, y, stateW, h, text, size*0.85, true, 1, state)
}

func drawAlarm(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	bg := env.Color(theme.RoleDanger)
	if strings.Contains(strings.ToLower(el.Label), "warn") {
		bg = env.Color(theme.RoleWarning)
	}
	c.FillRect(x, y, w, h, bg)
	c.StrokeRect(x, y, w, h, 2, darken(bg))

	s := min(h-12, 28)
	tx, ty := x+8, y+(h-s)/2
	c.Polygon([][2]float64{{tx + s/2, ty}, {tx + s, ty + s}, {tx, ty + s}}, white)
	c.TextIn(tx, ty+s*0.3, s, s*0.7, "!", s*0.6, true, 0, bg)
	c.TextIn(tx+s+8, y, w-s-24, h, el.Label, fontSize(h, 0.35, 9, 16), true, -1, white)
}

func drawDataDisplay(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	c.FillRect(x, y, w, h, white)
	c.StrokeRect(x, y, w, h, 1, env.Color(theme.RoleBorder))
	c.FillRect(x, y, 4, h, env.Color(theme.RoleAccent))

	r := env.Values.Reading(el.Label)
	labelH := min(h*0.4, 22)
	c.TextIn(x+10, y+2, w-16, labelH, el.Label, fontSize(labelH, 0.6, 9, 13), false, -1, darkGray)
	c.TextIn(x+10, y+labelH, w-16, h-labelH, formatReading(r), fontSize(h-labelH, 0.5, 10, 24), true, -1, env.Color(theme.RoleText))
}

func drawValueInput(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	labelW := w * 0.5
	c.TextIn(x, y, labelW-6, h, el.Label, fontSize(h, 0.32, 9, 14), false, -1, env.Color(theme.RoleText))
	c.FillRect(x+labelW, y+4, w-labelW, h-8, env.Color(theme.RoleInput))
	c.StrokeRect(x+labelW, y+4, w-labelW, h-8, 1, env.Color(theme.RoleAccent))
	r := env.Values.Reading(el.Label)
	c.TextIn(x+labelW+6, y+4, w-labelW-12, h-8, formatReading(r), fontSize(h, 0.32, 9, 14), false, 1, env.Color(theme.RoleText))
}

func drawGauge(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	c.FillRect(x, y, w, h, white)
	c.StrokeRect(x, y, w, h, 1, env.Color(theme.RoleBorder))

	labelH := min(max(h*0.14, 14), 24)
	c.TextIn(x+4, y+2, w-8, labelH, el.Label, fontSize(labelH, 0.65, 9, 14), true, 0, env.Color(theme.RoleText))

	r := env.Values.Reading(el.Label)
	valueH := labelH
	radius := max(min(w/2-10, (h-labelH-valueH)/2-4), 6)
	cx, cy := x+w/2, y+labelH+(h-labelH-valueH)/2+2

	start, sweep := 0.75*math.Pi, 1.5*math.Pi
	lw := max(radius*0.15, 3)
	c.Arc(cx, cy, radius, start, start+sweep, lw, lightGray)
	arcColor := env.Color(theme.RoleSuccess)
	if r.Fraction() > 0.85 {
		arcColor = env.Color(theme.RoleDanger)
	} else if r.Fraction() > 0.7 {
		arcColor = env.Color(theme.RoleWarning)
	}
	c.Arc(cx, cy, radius, start, start+sweep*r.Fraction(), lw, arcColor)

	for i := 0; i <= 10; i++ {
		a := start + sweep*float64(i)/10
		inner := radius - lw - radius*0.08
		c.Line(cx+inner*math.Cos(a), cy+inner*math.Sin(a), cx+(radius-lw)*math.Cos(a), cy+(radius-lw)*math.Sin(a), 1, midGray)
	}

	needle := start + sweep*r.Fraction()
	c.Line(cx, cy, cx+radius*0.8*math.Cos(needle), cy+radius*0.8*math.Sin(needle), max(radius*0.04, 1.5), env.Color(theme.RolePrimary))
	c.FillCircle(cx, cy, max(radius*0.08, 2), env.Color(theme.RolePrimary))

	c.TextIn(x+4, y+h-valueH-2, w-8, valueH, formatReading(r), fontSize(valueH, 0.7, 9, 16), true, 0, env.Color(theme.RoleText))
}

func drawProgress(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	r := env.Values.Reading(el.Label)
	labelH := h * 0.45
	pct := fmt.Sprintf("%.0f%%", r.Fraction()*100)
	size := fontSize(labelH, 0.7, 9, 14)
	c.TextIn(x, y, w-50, labelH, el.Label, size, false, -1, env.Color(theme.RoleText))
	c.TextIn(x+w-50, y, 50, labelH, pct, size, true, 1, env.Color(theme.RoleText))

	barY, barH := y+labelH+2, h-labelH-4
	c.FillRect(x, barY, w, barH, lightGray)
	c.FillRect(x, barY, w*r.Fraction(), barH, env.Color(theme.RoleAccent))
	c.StrokeRect(x, barY, w, barH, 1, env.Color(theme.RoleBorder))
}

func drawText(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	col := styleColor(el, "color", env.Color(theme.RoleText))
	bold := el.StyleString("fontWeight", "") == "bold"
	c.TextIn(x, y, w, h, el.Label, fontSize(h, 0.55, 9, 20), bold, -1, col)
}

func drawHeaderTitle(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	c.TextIn(x, y, w, h, el.Label, fontSize(h, 0.6, 12, 26), true, -1, styleColor(el, "color", white))
}

func drawToggle(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	trackH := min(h-8, 26)
	trackW := trackH * 2
	tx, ty := x+w-trackW-4, y+(h-trackH)/2
	on := !isFaultLabel(el.Label)

	trackColor := midGray
	if on {
		trackColor = env.Color(theme.RoleSuccess)
	}
	rad := trackH / 2
	c.FillRect(tx+rad, ty, trackW-trackH, trackH, trackColor)
	c.FillCircle(tx+rad, ty+rad, rad, trackColor)
	c.FillCircle(tx+trackW-rad, ty+rad, rad, trackColor)
	knobX := tx + rad
	if on {
		knobX = tx + trackW - rad
	}
	c.FillCircle(knobX, ty+rad, rad-3, white)

	c.TextIn(x, y, w-trackW-12, h, el.Label, fontSize(h, 0.35, 9, 15), false, -1, env.Color(theme.RoleText))
}

func drawDateTime(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	c.TextIn(x, y, w, h, env.Now.Format("2006-01-02 15:04:05"), fontSize(h, 0.5, 9, 16), false, 1, styleColor(el, "color", white))
}

func drawBattery(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	r := env.Values.Reading("battery " + el.Label)
	labelW := w * 0.45
	c.TextIn(x, y, labelW, h, el.Label, fontSize(h, 0.3, 9, 14), false, -1, env.Color(theme.RoleText))

	bw, bh := w-labelW-14, min(h-10, 30)
	bx, by := x+labelW+4, y+(h-bh)/2
	c.StrokeRect(bx, by, bw, bh, 2, darkGray)
	c.FillRect(bx+bw, by+bh*0.3, 5, bh*0.4, darkGray)

	fill := env.Color(theme.RoleSuccess)
	if r.Fraction() < 0.2 {
		fill = env.Color(theme.RoleDanger)
	} else if r.Fraction() < 0.5 {
		fill = env.Color(theme.RoleWarning)
	}
	c.FillRect(bx+3, by+3, (bw-6)*r.Fraction(), bh-6, fill)
	c.TextIn(bx, by, bw, bh, fmt.Sprintf("%.0f%%", r.Fraction()*100), fontSize(bh, 0.5, 8, 14), true, 0, env.Color(theme.RoleText))
}

// tableColumns picks column headers from keywords in the table label.
func tableColumns(label string) []string {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "alarm"):
		return []string{"Time", "Alarm", "Priority"}
	case strings.Contains(lower, "event") || strings.Contains(lower, "log"):
		return []string{"Time", "Event", "Source"}
	case strings.Contains(lower, "parameter") || strings.Contains(lower, "limit") || strings.Contains(lower, "setting"):
		return []string{"Parameter", "Value", "Unit"}
	case strings.Contains(lower, "user"):
		return []string{"User", "Level", "Last Login"}
	case strings.Contains(lower, "trend") || strings.Contains(lower, "history"):
		return []string{"Time", "Value", "Change"}
	default:
		return []string{"Equipment", "Status", "Value"}
	}
}

var tableSubjects = []string{"Pressure", "Temperature", "Speed", "Level", "Flow", "Voltage", "Current", "Power"}

func tableCell(column string, row int, env Env) string {
	subject := tableSubjects[row%len(tableSubjects)]
	switch column {
	case "Time", "Last Login":
		return env.Now.Add(-time.Duration(row*7) * time.Minute).Format("15:04:05")
	case "Alarm":
		return subject + " high"
	case "Priority":
		return []string{"High", "Medium", "Low"}[row%3]
	case "Event":
		return subject + " changed"
	case "Source":
		return fmt.Sprintf("Unit %d", row+1)
	case "Parameter", "Equipment":
		return subject
	case "Status":
		return []string{"Running", "Stopped", "Standby"}[row%3]
	case "Level":
		return []string{"Operator", "Engineer", "Admin"}[row%3]
	case "User":
		return fmt.Sprintf("user%d", row+1)
	case "Unit":
		_, _, unit := RangeFor(subject)
		return unit
	case "Change":
		return fmt.Sprintf("%+.1f", env.Values.Reading(subject).Fraction()*10-5)
	default:
		return formatReading(env.Values.Reading(subject))
	}
}

func drawTable(c *Canvas, el models.Element, env Env) {
	x, y, w, h := box(el)
	c.FillRect(x, y, w, h, env.Color(theme.RoleTableRow))
	c.StrokeRect(x, y, w, h, 1, env.Color(theme.RoleBorder))

	titleH := min(24.0, h*0.2)
	c.FillRect(x, y, w, titleH, env.Color(theme.RoleSecondary))
	c.TextIn(x+6, y, w-12, titleH, el.Label, fontSize(titleH, 0.6, 9, 14), true, -1, white)

	cols := tableColumns(el.Label)
	colW := w / float64(len(cols))
	rowH := min(22.0, max((h-titleH)/4, 12))
	headY := y + titleH
	c.FillRect(x, headY, w, rowH, env.Color(theme.RoleTableHeader))
	size := fontSize(rowH, 0.55, 8, 12)
	for i, col := range cols {
		c.TextIn(x+float64(i)*colW+4, headY, colW-8, rowH, col, size, true, -1, env.Color(theme.RoleText))
	}

	rows := min(int((h-titleH-rowH)/rowH), 8)
	for r := 0; r < rows; r++ {
		ry := headY + rowH*float64(r+1)
		if r%2 == 1 {
			c.FillRect(x+1, ry, w-2, rowH, color.RGBA{R: 0, G: 0, B: 0, A: 0x0C})
		}
		for i, col := range cols {
			c.TextIn(x+float64(i)*colW+4, ry, colW-8, rowH, tableCell(col, r, env), size, false, -1, env.Color(theme.RoleText))
		}
		c.Line(x, ry+rowH, x+w, ry+rowH, 0.5, lightGray)
	}
}

func formatReading(r Reading) string {
	switch {
	case r.Max-r.Min <= 2:
		return strings.TrimSpace(fmt.Sprintf("%.2f %s", r.Value, r.Unit))
	case r.Max >= 1000:
		return strings.TrimSpace(fmt.Sprintf("%.0f %s", r.Value, r.Unit))
	default:
		return strings.TrimSpace(fmt.Sprintf("%.1f %s", r.Value, r.Unit))
	}
}

func darken(c color.RGBA) color.RGBA {
	return color.RGBA{R: uint8(float64(c.R) * 0.75), G: uint8(float64(c.G) * 0.75), B: uint8(float64(c.B) * 0.75), A: c.A}
}
