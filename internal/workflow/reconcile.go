package workflow

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/models"
)

var arrow = regexp.MustCompile(`\s*(?:->|→|=>|-->)\s*`)

type rawDiagram struct {
	SystemOverview struct {
		SystemName      json.RawMessage `json:"systemName"`
		SystemType      json.RawMessage `json:"systemType"`
		PrimaryFunction json.RawMessage `json:"primaryFunction"`
	} `json:"systemOverview"`
	ScreenAnalysis []rawAnalysis `json:"screenAnalysis"`
	NavigationFlow struct {
		Diagram           json.RawMessage   `json:"diagram"`
		ScreenTransitions []json.RawMessage `json:"screenTransitions"`
	} `json:"navigationFlow"`
	TechnicalSpecifications struct {
		Platform       json.RawMessage `json:"platform"`
		Resolution     json.RawMessage `json:"resolution"`
		UpdateRate     json.RawMessage `json:"updateRate"`
		Communication  json.RawMessage `json:"communication"`
		SecurityLevels json.RawMessage `json:"securityLevels"`
	} `json:"technicalSpecifications"`
	ImplementationNotes json.RawMessage `json:"implementationNotes"`
}

type rawAnalysis struct {
	ScreenName        json.RawMessage `json:"screenName"`
	Purpose           json.RawMessage `json:"purpose"`
	KeyElements       json.RawMessage `json:"keyElements"`
	Functionality     json.RawMessage `json:"functionality"`
	Navigation        json.RawMessage `json:"navigation"`
	Behavior          json.RawMessage `json:"behavior"`
	DataVisualization json.RawMessage `json:"dataVisualization"`
	UserRoles         json.RawMessage `json:"userRoles"`
}

type rawTransition struct {
	From        json.RawMessage `json:"from"`
	To          json.RawMessage `json:"to"`
	Trigger     json.RawMessage `json:"trigger"`
	Description json.RawMessage `json:"description"`
}

// ParseDiagram decodes a model reply. Key elements and other lists are
// coerced to strings and transitions given as "A -> B" strings are
// expanded into transition objects; entries that cannot be parsed are
// dropped.
func ParseDiagram(text string) (models.WorkflowDiagram, error) {
	var raw rawDiagram
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return models.WorkflowDiagram{}, err
	}

	d := models.WorkflowDiagram{
		SystemOverview: models.SystemOverview{
			SystemName:      llm.CoerceString(raw.SystemOverview.SystemName),
			SystemType:      llm.CoerceString(raw.SystemOverview.SystemType),
			PrimaryFunction: llm.CoerceString(raw.SystemOverview.PrimaryFunction),
		},
		NavigationFlow: models.NavigationFlow{
			Diagram: llm.CoerceString(raw.NavigationFlow.Diagram),
		},
		TechnicalSpecifications: models.TechnicalSpecifications{
			Platform:       llm.CoerceString(raw.TechnicalSpecifications.Platform),
			Resolution:     llm.CoerceString(raw.TechnicalSpecifications.Resolution),
			UpdateRate:     llm.CoerceString(raw.TechnicalSpecifications.UpdateRate),
			Communication:  llm.CoerceStrings(raw.TechnicalSpecifications.Communication),
			SecurityLevels: llm.CoerceStrings(raw.TechnicalSpecifications.SecurityLevels),
		},
		ImplementationNotes: llm.CoerceStrings(raw.ImplementationNotes),
	}

	for _, a := range raw.ScreenAnalysis {
		d.ScreenAnalysis = append(d.ScreenAnalysis, models.ScreenAnalysis{
			ScreenName:        llm.CoerceString(a.ScreenName),
			Purpose:           llm.CoerceString(a.Purpose),
			KeyElements:       llm.CoerceStrings(a.KeyElements),
			Functionality:     llm.CoerceStrings(a.Functionality),
			Navigation:        parseNavigation(a.Navigation),
			Behavior:          llm.CoerceString(a.Behavior),
			DataVisualization: llm.CoerceString(a.DataVisualization),
			UserRoles:         llm.CoerceStrings(a.UserRoles),
		})
	}

	for _, item := range raw.NavigationFlow.ScreenTransitions {
		d.NavigationFlow.ScreenTransitions = append(d.NavigationFlow.ScreenTransitions, parseTransitionValue(item)...)
	}
	return d, nil
}

func parseNavigation(raw json.RawMessage) models.Navigation {
	var obj struct {
		Previous json.RawMessage `json:"previous"`
		Next     json.RawMessage `json:"next"`
		Links    json.RawMessage `json:"links"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return models.Navigation{
			Previous: llm.CoerceString(obj.Previous),
			Next:     llm.CoerceString(obj.Next),
			Links:    llm.CoerceStrings(obj.Links),
		}
	}
	return models.Navigation{Links: llm.CoerceStrings(raw)}
}

func parseTransitionValue(item json.RawMessage) []models.Transition {
	var s string
	if json.Unmarshal(item, &s) == nil {
		return ParseTransition(s)
	}

	var r rawTransition
	if json.Unmarshal(item, &r) != nil {
		return nil
	}
	t := models.Transition{
		From:        llm.CoerceString(r.From),
		To:          llm.CoerceString(r.To),
		Trigger:     llm.CoerceString(r.Trigger),
		Description: llm.CoerceString(r.Description),
	}
	if t.From == "" || t.To == "" {
		return nil
	}
	return []models.Transition{t}
}

// ParseTransition turns "A -> B" (or a longer chain "A -> B -> C") into
// transitions. It returns nil when the string holds no arrow or an empty
// endpoint.
func ParseTransition(s string) []models.Transition {
	parts := arrow.Split(strings.TrimSpace(s), -1)
	if len(parts) < 2 {
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil
		}
	}
	out := make([]models.Transition, 0, len(parts)-1)
	for i := 0; i+1 < len(parts); i++ {
		out = append(out, newTransition(parts[i], parts[i+1]))
	}
	return out
}

// Reconcile makes d consistent with list: exactly one analysis per screen
// in list order with every field filled, transitions limited to known
// screens and the overview counting len(list) screens.
func Reconcile(d models.WorkflowDiagram, list []models.Screen, doc models.Document) models.WorkflowDiagram {
	names := screenNames(list)
	canonical := make(map[string]string, len(names))
	for _, n := range names {
		canonical[strings.ToLower(n)] = n
	}

	byName := make(map[string]models.ScreenAnalysis, len(d.ScreenAnalysis))
	for _, a := range d.ScreenAnalysis {
		key := strings.ToLower(strings.TrimSpace(a.ScreenName))
		if _, dup := byName[key]; !dup {
			byName[key] = a
		}
	}

	analysis := make([]models.ScreenAnalysis, len(list))
	for i, s := range list {
		base := TemplateAnalysis(s, names, i)
		got, ok := byName[strings.ToLower(s.ScreenName)]
		if !ok {
			analysis[i] = base
			continue
		}
		analysis[i] = fillAnalysis(got, base, canonical)
	}
	d.ScreenAnalysis = analysis

	d.NavigationFlow.ScreenTransitions = resolveTransitions(d.NavigationFlow.ScreenTransitions, canonical)
	if len(d.NavigationFlow.ScreenTransitions) == 0 {
		d.NavigationFlow.ScreenTransitions = ChainTransitions(names)
	}
	if strings.TrimSpace(d.NavigationFlow.Diagram) == "" {
		d.NavigationFlow.Diagram = strings.Join(names, " -> ")
	}

	overview := systemOverview(doc, len(list))
	if d.SystemOverview.SystemName == "" {
		d.SystemOverview.SystemName = overview.SystemName
	}
	if d.SystemOverview.SystemType == "" {
		d.SystemOverview.SystemType = overview.SystemType
	}
	if d.SystemOverview.PrimaryFunction == "" {
		d.SystemOverview.PrimaryFunction = overview.PrimaryFunction
	}
	d.SystemOverview.TotalScreens = len(list)

	d.TechnicalSpecifications = fillTechnical(d.TechnicalSpecifications)
	if len(d.ImplementationNotes) == 0 {
		d.ImplementationNotes = append([]string(nil), defaultImplementationNotes...)
	}
	if d.Source == "" {
		d.Source = SourceTemplate
	}
	return d
}

func fillAnalysis(got, base models.ScreenAnalysis, canonical map[string]string) models.ScreenAnalysis {
	got.ScreenName = base.ScreenName
	if got.Purpose == "" {
		got.Purpose = base.Purpose
	}
	if len(got.KeyElements) == 0 {
		got.KeyElements = base.KeyElements
	}
	if len(got.Functionality) == 0 {
		got.Functionality = base.Functionality
	}
	if got.Behavior == "" {
		got.Behavior = base.Behavior
	}
	if got.DataVisualization == "" {
		got.DataVisualization = base.DataVisualization
	}
	if len(got.UserRoles) == 0 {
		got.UserRoles = base.UserRoles
	}

	nav := models.Navigation{
		Previous: canonical[strings.ToLower(got.Navigation.Previous)],
		Next:     canonical[strings.ToLower(got.Navigation.Next)],
	}
	for _, l := range got.Navigation.Links {
		if name, ok := canonical[strings.ToLower(l)]; ok {
			nav.Links = append(nav.Links, name)
		}
	}
	if nav.Previous == "" && nav.Next == "" && len(nav.Links) == 0 {
		nav = base.Navigation
	}
	got.Navigation = nav
	return got
}

func resolveTransitions(in []models.Transition, canonical map[string]string) []models.Transition {
	seen := make(map[[2]string]bool)
	var out []models.Transition
	for _, t := range in {
		from, okFrom := canonical[strings.ToLower(strings.TrimSpace(t.From))]
		to, okTo := canonical[strings.ToLower(strings.TrimSpace(t.To))]
		if !okFrom || !okTo || from == to {
			continue
		}
		key := [2]string{from, to}
		if seen[key] {
			continue
		}
		seen[key] = true

		t.From, t.To = from, to
		if t.Trigger == "" {
			t.Trigger = "Navigation button"
		}
		if t.Description == "" {
			t.Description = "Navigate from " + from + " to " + to
		}
		out = append(out, t)
	}
	return out
}

func fillTechnical(t models.TechnicalSpecifications) models.TechnicalSpecifications {
	def := defaultTechnicalSpecifications()
	if t.Platform == "" {
		t.Platform = def.Platform
	}
	if t.Resolution == "" {
		t.Resolution = def.Resolution
	}
	if t.UpdateRate == "" {
		t.UpdateRate = def.UpdateRate
	}
	if len(t.Communication) == 0 {
		t.Communication = def.Communication
	}
	if len(t.SecurityLevels) == 0 {
		t.SecurityLevels = def.SecurityLevels
	}
	return t
}
