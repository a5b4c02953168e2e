// Package specgen produces the layout specification of a single screen.
// Model output and the rule-based fallback both go through Repair, so
// every returned specification satisfies the element count and bounds
// rules.
package specgen

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/models"
)

// Specification sources.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

const systemPrompt = "You design industrial HMI screen layouts and answer with strict JSON only."

// Options are the generation parameters for the layout call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator builds screen specifications.
type Generator struct {
	client  llm.Client
	prompts *llm.Prompts
	opts    Options
	logger  *slog.Logger
}

// NewGenerator creates a Generator. A nil client always uses Fallback.
func NewGenerator(client llm.Client, prompts *llm.Prompts, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, prompts: prompts, opts: opts, logger: logger}
}

// Generate never fails: model errors, unparsable output and panics all
// produce the repaired rule-based specification.
func (g *Generator) Generate(ctx context.Context, screen models.Screen, doc models.Document) (spec models.ScreenSpecification) {
	sc := BuildContext(screen, doc.Text)
	systemType := doc.Profile.SystemType

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("screen spec generation panicked", "screen", screen.ScreenName, "panic", r)
			spec = Repair(Fallback(screen, systemType, sc), screen, systemType)
		}
	}()

	if g.client == nil {
		return Repair(Fallback(screen, systemType, sc), screen, systemType)
	}

	generated, err := g.fromModel(ctx, screen, systemType, sc)
	if err != nil {
		g.logger.Warn("screen spec model path failed, using fallback", "screen", screen.ScreenName, "error", err)
		return Repair(Fallback(screen, systemType, sc), screen, systemType)
	}
	return Repair(generated, screen, systemType)
}

func (g *Generator) fromModel(ctx context.Context, screen models.Screen, systemType string, sc ScreenContext) (models.ScreenSpecification, error) {
	prompt, err := g.prompts.Render(llm.PromptScreenSpec, map[string]any{
		"ScreenName":    screen.ScreenName,
		"ScreenPurpose": screen.ScreenPurpose,
		"SystemType":    systemType,
		"Context":       sc.Excerpt,
		"Equipment":     sc.Equipment,
		"Operations":    sc.Operations,
		"Parameters":    sc.Parameters,
		"Widgets":       widgetGuides,
		"CanvasWidth":   models.CanvasWidth,
		"CanvasHeight":  models.CanvasHeight,
		"HeaderHeight":  models.DefaultHeaderHeight,
		"FooterHeight":  models.DefaultFooterHeight,
		"HeaderMaxY":    models.DefaultHeaderHeight - 10,
		"FooterY":       models.CanvasHeight - models.DefaultFooterHeight,
		"FooterMaxY":    models.CanvasHeight - 10,
		"MinElements":   MinElements,
	})
	if err != nil {
		return models.ScreenSpecification{}, err
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Model:       g.opts.Model,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return models.ScreenSpecification{}, err
	}

	spec, err := ParseSpecification(resp.Text)
	if err != nil {
		return models.ScreenSpecification{}, err
	}
	spec.Source = SourceModel
	return spec, nil
}

type rawSpec struct {
	ScreenTitle           json.RawMessage            `json:"screenTitle"`
	ScreenPurpose         json.RawMessage            `json:"screenPurpose"`
	Layout                rawLayout                  `json:"layout"`
	ColorScheme           map[string]json.RawMessage `json:"colorScheme"`
	Elements              []json.RawMessage          `json:"elements"`
	FunctionalDescription json.RawMessage            `json:"functionalDescription"`
	Navigation            []json.RawMessage          `json:"navigation"`
	Recommendations       json.RawMessage            `json:"recommendations"`
}

type rawLayout struct {
	Header   rawBand `json:"header"`
	MainArea rawBand `json:"mainArea"`
	Footer   rawBand `json:"footer"`
}

type rawBand struct {
	Height      json.RawMessage   `json:"height"`
	Title       json.RawMessage   `json:"title"`
	Description json.RawMessage   `json:"description"`
	Elements    []json.RawMessage `json:"elements"`
}

type rawElement struct {
	Type     json.RawMessage `json:"type"`
	Label    json.RawMessage `json:"label"`
	Text     json.RawMessage `json:"text"`
	Name     json.RawMessage `json:"name"`
	Position json.RawMessage `json:"position"`
	Style    map[string]any  `json:"style"`
}

// ParseSpecification decodes a model reply. Main-area elements listed
// under layout.mainArea are merged into Elements.
func ParseSpecification(text string) (models.ScreenSpecification, error) {
	var raw rawSpec
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return models.ScreenSpecification{}, err
	}

	spec := models.ScreenSpecification{
		ScreenTitle:           llm.CoerceString(raw.ScreenTitle),
		ScreenPurpose:         llm.CoerceString(raw.ScreenPurpose),
		FunctionalDescription: strings.Join(llm.CoerceStrings(raw.FunctionalDescription), " "),
		Recommendations:       llm.CoerceStrings(raw.Recommendations),
		Layout: models.Layout{
			Header:   decodeBand(raw.Layout.Header),
			MainArea: decodeBand(raw.Layout.MainArea),
			Footer:   decodeBand(raw.Layout.Footer),
		},
	}

	spec.Elements = decodeElements(raw.Elements)
	spec.Elements = append(spec.Elements, spec.Layout.MainArea.Elements...)
	spec.Layout.MainArea.Elements = nil

	if len(raw.ColorScheme) > 0 {
		spec.ColorScheme = make(models.ColorScheme, len(raw.ColorScheme))
		for role, v := range raw.ColorScheme {
			if s := llm.CoerceString(v); s != "" {
				spec.ColorScheme[role] = s
			}
		}
	}

	for _, item := range raw.Navigation {
		if link, ok := decodeNavLink(item); ok {
			spec.Navigation = append(spec.Navigation, link)
		}
	}
	return spec, nil
}

func decodeBand(b rawBand) models.Band {
	var height float64
	if err := json.Unmarshal(b.Height, &height); err != nil {
		height = 0
	}
	return models.Band{
		Height:      int(height),
		Title:       llm.CoerceString(b.Title),
		Description: llm.CoerceString(b.Description),
		Elements:    decodeElements(b.Elements),
	}
}

func decodeElements(items []json.RawMessage) []models.Element {
	var out []models.Element
	for _, item := range items {
		var r rawElement
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		el := models.Element{
			Type:  NormalizeType(llm.CoerceString(r.Type)),
			Label: firstNonEmpty(llm.CoerceString(r.Label), llm.CoerceString(r.Text), llm.CoerceString(r.Name)),
			Style: r.Style,
		}
		if el.Type == "" {
			continue
		}
		if len(r.Position) > 0 {
			if err := json.Unmarshal(r.Position, &el.Position); err != nil {
				el.Position = models.Position{}
			}
		}
		out = append(out, el)
	}
	return out
}

func decodeNavLink(item json.RawMessage) (models.NavLink, bool) {
	var link struct {
		Label  json.RawMessage `json:"label"`
		Target json.RawMessage `json:"target"`
		Screen json.RawMessage `json:"screen"`
	}
	if err := json.Unmarshal(item, &link); err != nil {
		s := llm.CoerceString(item)
		return models.NavLink{Label: s, Target: s}, s != ""
	}
	target := firstNonEmpty(llm.CoerceString(link.Target), llm.CoerceString(link.Screen))
	label := firstNonEmpty(llm.CoerceString(link.Label), target)
	if label == "" {
		return models.NavLink{}, false
	}
	if target == "" {
		target = label
	}
	return models.NavLink{Label: label, Target: target}, true
}

// NormalizeType maps "Status Indicator" or "status-indicator" to
// "status_indicator".
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
