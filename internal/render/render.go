// Package render rasterizes screen specifications into PNG images, one
// per screen plus a combined workflow overview.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/theme"
)

// DrawCall records one element drawn on a canvas.
type DrawCall struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Renderer draws specifications with a registry of widgets. It is safe
// for concurrent use once configured.
type Renderer struct {
	mu      sync.RWMutex
	widgets map[string]Widget
	values  ValueSource
	now     func() time.Time
	logger  *slog.Logger
}

// NewRenderer creates a renderer with the built-in widgets. A nil values
// source uses RandomValues seeded with 42.
func NewRenderer(values ValueSource, logger *slog.Logger) *Renderer {
	if values == nil {
		values = NewRandomValues(42)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		widgets: defaultWidgets(),
		values:  values,
		now:     time.Now,
		logger:  logger,
	}
}

// Register installs or replaces the widget for an element type.
func (r *Renderer) Register(elementType string, w Widget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[elementType] = w
}

// SetClock overrides the time shown by date/time widgets.
func (r *Renderer) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Renderer) widget(elementType string) Widget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.widgets[elementType]; ok {
		return w
	}
	return r.widgets[models.ElementControlButton]
}

func (r *Renderer) env(spec models.ScreenSpecification) Env {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := r.values
	if sv, ok := values.(ScreenValues); ok {
		values = sv.ForScreen(spec.ScreenTitle)
	}
	return Env{Scheme: theme.Complete(spec.ColorScheme), Values: values, Now: r.now()}
}

// Render draws spec on an 800x600 canvas.
func (r *Renderer) Render(spec models.ScreenSpecification) (*image.RGBA, error) {
	img, _, err := r.RenderTraced(spec)
	return img, err
}

// RenderTraced is Render plus the element draw log in draw order: main
// elements, then header elements, then footer elements.
func (r *Renderer) RenderTraced(spec models.ScreenSpecification) (img *image.RGBA, calls []DrawCall, err error) {
	c, err := NewCanvas(models.CanvasWidth, models.CanvasHeight)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("screen render panicked", "screen", spec.ScreenTitle, "panic", p)
			img, calls, err = nil, nil, fmt.Errorf("rendering %q: %v", spec.ScreenTitle, p)
		}
	}()

	r.drawScreen(c, spec)
	return c.Image(), c.Calls(), nil
}

// drawScreen paints spec in the logical 800x600 space of c.
func (r *Renderer) drawScreen(c *Canvas, spec models.ScreenSpecification) {
	env := r.env(spec)
	layout := bandClamped(spec.Layout)
	headerH := float64(layout.HeaderHeight())
	footerH := float64(layout.FooterHeight())
	footerY := float64(layout.FooterY())

	c.FillRect(0, 0, models.CanvasWidth, models.CanvasHeight, env.Color(theme.RoleBackground))
	c.FillRect(0, 0, models.CanvasWidth, headerH, env.Color(theme.RoleHeader))
	c.FillRect(0, footerY, models.CanvasWidth, footerH, env.Color(theme.RoleFooter))

	for _, group := range [][]models.Element{spec.Elements, layout.Header.Elements, layout.Footer.Elements} {
		for _, el := range group {
			r.widget(el.Type).Draw(c, el, env)
			c.logCall(el.Type, el.Label)
		}
	}

	if !hasTitleElement(layout.Header.Elements) {
		title := layout.Header.Title
		if title == "" {
			title = spec.ScreenTitle
		}
		c.TextIn(20, 0, models.CanvasWidth-40, headerH, title, 24, true, -1, white)
	}
}

// bandClamped keeps header and footer elements vertically inside their
// bands.
func bandClamped(l models.Layout) models.Layout {
	headerH := l.HeaderHeight()
	footerY := l.FooterY()
	clampY := func(in []models.Element, lo, hi int) []models.Element {
		out := make([]models.Element, len(in))
		for i, el := range in {
			maxY := max(lo, hi-el.Position.Height)
			el.Position.Y = min(max(el.Position.Y, lo), maxY)
			out[i] = el
		}
		return out
	}
	l.Header.Elements = clampY(l.Header.Elements, models.HeaderMinY, headerH)
	l.Footer.Elements = clampY(l.Footer.Elements, footerY, models.CanvasHeight)
	return l
}

func hasTitleElement(elements []models.Element) bool {
	for _, el := range elements {
		if el.Type == models.ElementHeaderTitle {
			return true
		}
	}
	return false
}

// RenderPNG renders spec and encodes it as PNG.
func (r *Renderer) RenderPNG(spec models.ScreenSpecification) ([]byte, error) {
	img, err := r.Render(spec)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// EncodePNG encodes img with fast compression.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
