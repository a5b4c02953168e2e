package render

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/theme"
)

// Combined layout geometry.
const (
	GridColumns    = 3
	CellWidth      = 650
	CellHeight     = 450
	CombinedHeader = 140
	CombinedFooter = 60
	combinedMargin = 25
	cellPadding    = 15
	cellTitleBar   = 30

	ComprehensiveCellWidth  = 400
	ComprehensiveCellHeight = 300
	comprehensiveHeader     = 60
)

// Entry is one screen in a combined layout. A nil Spec or a non-nil Err
// marks a screen that could not be produced; it is drawn as an error tile.
type Entry struct {
	Name string
	Spec *models.ScreenSpecification
	Err  error
}

func (e Entry) failed() bool {
	return e.Spec == nil || e.Err != nil
}

// GridPosition returns the cell of the i-th screen.
func GridPosition(i int) (row, col int) {
	return i / GridColumns, i % GridColumns
}

// GridRows is the number of rows needed for n screens.
func GridRows(n int) int {
	return (n + GridColumns - 1) / GridColumns
}

// CombinedSize is the pixel size of a combined layout of n screens.
func CombinedSize(n int) (width, height int) {
	rows := max(GridRows(n), 1)
	return 2*combinedMargin + GridColumns*CellWidth, CombinedHeader + rows*CellHeight + CombinedFooter
}

func cellOrigin(i int) (x, y float64) {
	row, col := GridPosition(i)
	return float64(combinedMargin + col*CellWidth), float64(CombinedHeader + row*CellHeight)
}

// screenBox is the mini-screen frame inside cell i.
func screenBox(i int) (x, y, w, h float64) {
	cx, cy := cellOrigin(i)
	return cx + cellPadding, cy + cellPadding, CellWidth - 2*cellPadding, CellHeight - 2*cellPadding
}

// MiniScale is the factor applied to the 800x600 logical canvas inside
// a combined-layout cell.
func MiniScale() float64 {
	_, _, w, h := screenBox(0)
	return math.Min(w/models.CanvasWidth, (h-cellTitleBar)/models.CanvasHeight)
}

// RenderCombined lays all screens out on a three-column grid under a
// header describing the system, and draws an arrow for every transition
// whose endpoints are both present.
func (r *Renderer) RenderCombined(entries []Entry, transitions []models.Transition, overview models.SystemOverview) (img *image.RGBA, err error) {
	width, height := CombinedSize(len(entries))
	c, err := NewCanvas(width, height)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("rendering combined layout: %v", p)
		}
	}()

	scheme := theme.ForSystemType(overview.SystemType)
	env := Env{Scheme: scheme}
	fw, fh := float64(width), float64(height)

	c.FillRect(0, 0, fw, fh, env.Color(theme.RoleBackground))
	r.drawCombinedHeader(c, fw, entries, transitions, overview, env)

	for i, e := range entries {
		r.drawCell(c, i, e, env)
	}

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[strings.ToLower(e.Name)] = i
	}
	drawn := 0
	for _, t := range transitions {
		from, okFrom := index[strings.ToLower(t.From)]
		to, okTo := index[strings.ToLower(t.To)]
		if !okFrom || !okTo || from == to {
			continue
		}
		drawTransitionArrow(c, from, to, env)
		drawn++
	}

	failed := 0
	for _, e := range entries {
		if e.failed() {
			failed++
		}
	}
	footerY := fh - CombinedFooter
	c.FillRect(0, footerY, fw, CombinedFooter, env.Color(theme.RoleFooter))
	footer := fmt.Sprintf("Screens: %d   Successful: %d   Failed: %d   Transitions shown: %d", len(entries), len(entries)-failed, failed, drawn)
	c.TextIn(combinedMargin, footerY, fw/2, CombinedFooter, footer, 18, false, -1, white)
	c.Arrow(fw-330, footerY+CombinedFooter/2, fw-270, footerY+CombinedFooter/2, 3, 12, env.Color(theme.RoleAccent))
	c.TextIn(fw-260, footerY, 240, CombinedFooter, "navigation transition", 16, false, -1, white)
	return c.Image(), nil
}

func (r *Renderer) drawCombinedHeader(c *Canvas, width float64, entries []Entry, transitions []models.Transition, overview models.SystemOverview, env Env) {
	c.FillRect(0, 0, width, CombinedHeader, env.Color(theme.RoleHeader))
	name := overview.SystemName
	if name == "" {
		name = "HMI System"
	}
	c.TextIn(combinedMargin, 15, width-2*combinedMargin, 50, "HMI Screen Workflow: "+name, 34, true, -1, white)

	systemType := overview.SystemType
	if systemType == "" {
		systemType = models.SystemTypeIndustrialControl
	}
	meta := fmt.Sprintf("System type: %s   |   Screens: %d   |   Transitions: %d", systemType, len(entries), len(transitions))
	c.TextIn(combinedMargin, 70, width-2*combinedMargin, 28, meta, 20, false, -1, white)
	if overview.PrimaryFunction != "" {
		c.TextIn(combinedMargin, 100, width-2*combinedMargin, 26, overview.PrimaryFunction, 18, false, -1, lightGray)
	}
}

func (r *Renderer) drawCell(c *Canvas, i int, e Entry, env Env) {
	x, y, w, h := screenBox(i)
	c.FillRect(x+4, y+4, w, h, darken(env.Color(theme.RoleBackground)))
	c.FillRect(x, y, w, h, white)

	titleBg := env.Color(theme.RolePrimary)
	if e.failed() {
		titleBg = env.Color(theme.RoleDanger)
	}
	c.FillRect(x, y, w, cellTitleBar, titleBg)
	c.TextIn(x+10, y, w-20, cellTitleBar, fmt.Sprintf("%d. %s", i+1, e.Name), 16, true, -1, white)

	if e.failed() {
		drawErrorTile(c, x, y+cellTitleBar, w, h-cellTitleBar, e, env)
		c.StrokeRect(x, y, w, h, 2, env.Color(theme.RoleDanger))
		return
	}

	scale := MiniScale()
	mw := models.CanvasWidth * scale
	mx := x + (w-mw)/2
	sub := c.Sub(mx, y+cellTitleBar, scale)
	r.drawScreen(sub, *e.Spec)
	c.StrokeRect(x, y, w, h, 2, env.Color(theme.RoleBorder))
}

func drawErrorTile(c *Canvas, x, y, w, h float64, e Entry, env Env) {
	c.FillRect(x, y, w, h, lightGray)
	c.TextIn(x, y+h/2-60, w, 60, "ERROR", 48, true, 0, env.Color(theme.RoleDanger))
	c.TextIn(x+20, y+h/2, w-40, 30, e.Name, 20, true, 0, env.Color(theme.RoleText))
	if e.Err != nil {
		c.TextIn(x+20, y+h/2+34, w-40, 24, e.Err.Error(), 14, false, 0, darkGray)
	}
}

// drawTransitionArrow connects the frames of two cells along the line
// between their centers.
func drawTransitionArrow(c *Canvas, from, to int, env Env) {
	x1, y1, w, h := screenBox(from)
	x2, y2, _, _ := screenBox(to)
	cx1, cy1 := x1+w/2, y1+h/2
	cx2, cy2 := x2+w/2, y2+h/2

	dx, dy := cx2-cx1, cy2-cy1
	t := edgeFraction(dx, dy, w/2, h/2)
	sx, sy := cx1+dx*t, cy1+dy*t
	ex, ey := cx2-dx*t, cy2-dy*t
	if math.Hypot(ex-sx, ey-sy) < 1 {
		ex, ey = cx2-dx*t*0.5, cy2-dy*t*0.5
	}
	c.Arrow(sx, sy, ex, ey, 3, 14, env.Color(theme.RoleAccent))
}

// edgeFraction is the fraction of (dx, dy) at which a ray from a box
// center leaves a box with the given half extents.
func edgeFraction(dx, dy, hw, hh float64) float64 {
	t := math.Inf(1)
	if dx != 0 {
		t = math.Min(t, hw/math.Abs(dx))
	}
	if dy != 0 {
		t = math.Min(t, hh/math.Abs(dy))
	}
	if math.IsInf(t, 1) {
		return 0
	}
	return math.Min(t, 0.5)
}

// RenderComprehensive is the older overview: screens only, on a square
// grid of 400x300 cells without transitions.
func (r *Renderer) RenderComprehensive(entries []Entry, title string) (img *image.RGBA, err error) {
	n := max(len(entries), 1)
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	width, height := cols*ComprehensiveCellWidth, comprehensiveHeader+rows*ComprehensiveCellHeight

	c, err := NewCanvas(width, height)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("rendering comprehensive layout: %v", p)
		}
	}()

	env := Env{Scheme: theme.Default()}
	c.FillRect(0, 0, float64(width), float64(height), env.Color(theme.RoleBackground))
	c.FillRect(0, 0, float64(width), comprehensiveHeader, env.Color(theme.RoleHeader))
	c.TextIn(15, 0, float64(width)-30, comprehensiveHeader, title, 24, true, -1, white)

	scale := math.Min((ComprehensiveCellWidth-20)/float64(models.CanvasWidth), (ComprehensiveCellHeight-40)/float64(models.CanvasHeight))
	for i, e := range entries {
		x := float64((i%cols)*ComprehensiveCellWidth) + 10
		y := float64(comprehensiveHeader+(i/cols)*ComprehensiveCellHeight) + 10
		c.TextIn(x, y, ComprehensiveCellWidth-20, 20, e.Name, 13, true, -1, env.Color(theme.RoleText))
		if e.failed() {
			drawErrorTile(c, x, y+24, ComprehensiveCellWidth-20, ComprehensiveCellHeight-44, e, env)
			continue
		}
		r.drawScreen(c.Sub(x, y+24, scale), *e.Spec)
	}
	return c.Image(), nil
}
