package specgen

import (
	"strings"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/screens"
	"github.com/hmi-forge/backend/internal/theme"
)

const (
	// MinElements is the smallest main-area element count a specification
	// may have.
	MinElements = 6
	// padTarget is the element count padding fills up to.
	padTarget = 8

	minWidth  = 80
	maxWidth  = 400
	minHeight = 30

	gridMargin = 20
	gridColW   = 240
	gridRowH   = 100
	gridElemH  = 80
)

var padRotation = []struct {
	elementType string
	label       string
}{
	{models.ElementDataDisplay, "Process Value"},
	{models.ElementStatusIndicator, "System Status"},
	{models.ElementControlButton, "Start"},
	{models.ElementGauge, "Pressure"},
	{models.ElementProgressBar, "Level"},
	{models.ElementText, "Information"},
	{models.ElementDataTable, "Data Table"},
	{models.ElementToggle, "Auto / Manual"},
}

// Repair runs FillMissing, PadElements, ClampElements and
// EnsureTitleAndStatus in that order.
func Repair(spec models.ScreenSpecification, screen models.Screen, systemType string) models.ScreenSpecification {
	spec = FillMissing(spec, screen, systemType)
	spec = PadElements(spec)
	spec = ClampElements(spec)
	spec = EnsureTitleAndStatus(spec)
	return spec
}

// FillMissing fills empty top-level fields from rule-based generators.
func FillMissing(spec models.ScreenSpecification, screen models.Screen, systemType string) models.ScreenSpecification {
	category := screens.Category(screen.ScreenName)

	if strings.TrimSpace(spec.ScreenTitle) == "" {
		spec.ScreenTitle = screen.ScreenName
	}
	if strings.TrimSpace(spec.ScreenPurpose) == "" {
		spec.ScreenPurpose = firstNonEmpty(screen.ScreenPurpose, categoryPurpose(category))
	}
	if len(spec.Navigation) == 0 {
		spec.Navigation = defaultNavigation(category)
	}

	if spec.Layout.Header.Height < 40 || spec.Layout.Header.Height > 150 {
		spec.Layout.Header.Height = models.DefaultHeaderHeight
	}
	if spec.Layout.Footer.Height < 40 || spec.Layout.Footer.Height > 120 {
		spec.Layout.Footer.Height = models.DefaultFooterHeight
	}
	if spec.Layout.Header.Title == "" {
		spec.Layout.Header.Title = spec.ScreenTitle
	}
	if spec.Layout.MainArea.Description == "" {
		spec.Layout.MainArea.Description = spec.ScreenPurpose
	}

	if len(spec.ColorScheme) == 0 {
		spec.ColorScheme = theme.ForSystemType(systemType)
	} else {
		spec.ColorScheme = theme.Complete(spec.ColorScheme)
	}

	if strings.TrimSpace(spec.FunctionalDescription) == "" {
		spec.FunctionalDescription = functionalDescription(spec.ScreenTitle, spec.ScreenPurpose, category)
	}
	if len(spec.Recommendations) == 0 {
		spec.Recommendations = append([]string(nil), recommendations[category]...)
	}
	return spec
}

// PadElements tops up a specification with fewer than MinElements main
// elements to padTarget, cycling through a fixed widget rotation on a
// three-column grid below the header.
func PadElements(spec models.ScreenSpecification) models.ScreenSpecification {
	if len(spec.Elements) >= MinElements {
		return spec
	}
	elements := append([]models.Element(nil), spec.Elements...)
	top := spec.Layout.HeaderHeight() + gridMargin
	for i := 0; len(elements) < padTarget; i++ {
		slot := len(elements)
		r := padRotation[i%len(padRotation)]
		elements = append(elements, models.Element{
			Type:  r.elementType,
			Label: r.label,
			Position: models.Position{
				X:      gridMargin + (slot%3)*(gridColW+gridMargin),
				Y:      top + (slot/3)*gridRowH,
				Width:  gridColW,
				Height: gridElemH,
			},
		})
	}
	spec.Elements = elements
	return spec
}

// ClampElements forces every element inside the canvas with width in
// [80,400] and height of at least 30. Header and footer elements are
// additionally kept inside their bands.
func ClampElements(spec models.ScreenSpecification) models.ScreenSpecification {
	spec.Elements = clampAll(spec.Elements, func(p models.Position) models.Position { return p })

	headerH := spec.Layout.HeaderHeight()
	spec.Layout.Header.Elements = clampAll(spec.Layout.Header.Elements, func(p models.Position) models.Position {
		p.Height = clamp(p.Height, minHeight, max(minHeight, headerH-10))
		p.Y = clamp(p.Y, models.HeaderMinY, max(models.HeaderMinY, headerH-p.Height))
		return p
	})

	footerY := spec.Layout.FooterY()
	footerH := spec.Layout.FooterHeight()
	spec.Layout.Footer.Elements = clampAll(spec.Layout.Footer.Elements, func(p models.Position) models.Position {
		p.Height = clamp(p.Height, minHeight, max(minHeight, footerH-10))
		p.Y = clamp(p.Y, footerY, models.CanvasHeight-p.Height)
		return p
	})
	return spec
}

func clampAll(elements []models.Element, band func(models.Position) models.Position) []models.Element {
	if elements == nil {
		return nil
	}
	out := make([]models.Element, len(elements))
	for i, el := range elements {
		p := el.Position
		p.Width = clamp(p.Width, minWidth, maxWidth)
		p.Height = clamp(p.Height, minHeight, models.CanvasHeight)
		p = band(p)
		p.X = clamp(p.X, 0, models.CanvasWidth-p.Width)
		p.Y = clamp(p.Y, 0, models.CanvasHeight-p.Height)
		el.Position = p
		out[i] = el
	}
	return out
}

// EnsureTitleAndStatus adds a header title when no title-like element
// exists and a status indicator when the main area has none.
func EnsureTitleAndStatus(spec models.ScreenSpecification) models.ScreenSpecification {
	if !hasType(spec.Elements, models.ElementHeaderTitle, models.ElementText) &&
		!hasType(spec.Layout.Header.Elements, models.ElementHeaderTitle, models.ElementText) {
		title := models.Element{
			Type:     models.ElementHeaderTitle,
			Label:    spec.ScreenTitle,
			Position: models.Position{X: 20, Y: 20, Width: 360, Height: 40},
		}
		spec.Layout.Header.Elements = append([]models.Element{title}, spec.Layout.Header.Elements...)
		spec.Layout = clampHeader(spec.Layout)
	}

	if !hasType(spec.Elements, models.ElementStatusIndicator) {
		spec.Elements = append(spec.Elements, models.Element{
			Type:  models.ElementStatusIndicator,
			Label: "System Status",
			Position: models.Position{
				X:      models.CanvasWidth - 240,
				Y:      spec.Layout.FooterY() - 50,
				Width:  220,
				Height: 40,
			},
		})
	}
	return spec
}

func clampHeader(l models.Layout) models.Layout {
	s := ClampElements(models.ScreenSpecification{Layout: l})
	l.Header.Elements = s.Layout.Header.Elements
	return l
}

func hasType(elements []models.Element, types ...string) bool {
	for _, el := range elements {
		for _, t := range types {
			if el.Type == t {
				return true
			}
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}
