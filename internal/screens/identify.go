// Package screens identifies the HMI screens described by a document.
package screens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/hmi-forge/backend/internal/llm"
	"github.com/hmi-forge/backend/internal/models"
)

const (
	maxPromptSections    = 40
	maxSectionChars      = 1200
	maxReasoningChars    = 2000
	identifySystemPrompt = "You analyse functional design specifications and answer with JSON only."
)

var screenVocabulary = []string{
	"screen", "display", "panel", "button", "status", "indicator", "alarm", "gauge",
	"trend", "hmi", "page", "menu", "setpoint", "interface", "monitor", "control",
}

var numberedSubsection = regexp.MustCompile(`^\d+\.\d+`)

// AnalysisError reports that screen identification failed. Callers fall
// back to FromTemplate.
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("screen analysis failed: %s: %v", e.Reason, e.Err)
	}
	return "screen analysis failed: " + e.Reason
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Options are the generation parameters for the identification call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Identifier asks a language model which screens a document describes.
type Identifier struct {
	client  llm.Client
	prompts *llm.Prompts
	opts    Options
	logger  *slog.Logger
}

// NewIdentifier creates an Identifier.
func NewIdentifier(client llm.Client, prompts *llm.Prompts, opts Options, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identifier{client: client, prompts: prompts, opts: opts, logger: logger}
}

type promptSection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Identify makes a single model call over the screen-related sections of
// doc. Any failure is returned as *AnalysisError; it never returns an
// empty list without an error.
func (id *Identifier) Identify(ctx context.Context, sections []models.Section, doc models.Document) (models.ScreenList, error) {
	filtered := Filter(sections)
	if len(filtered) == 0 {
		filtered = sections
	}
	if len(filtered) > maxPromptSections {
		filtered = filtered[:maxPromptSections]
	}

	payload := make([]promptSection, 0, len(filtered))
	for _, s := range filtered {
		payload = append(payload, promptSection{Heading: s.Heading, Content: truncate(s.Text(), maxSectionChars)})
	}
	sectionsJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return models.ScreenList{}, &AnalysisError{Reason: "encoding sections", Err: err}
	}

	prompt, err := id.prompts.Render(llm.PromptIdentifyScreens, map[string]any{
		"SystemType":   doc.Profile.SystemType,
		"SectionsJSON": string(sectionsJSON),
	})
	if err != nil {
		return models.ScreenList{}, &AnalysisError{Reason: "rendering prompt", Err: err}
	}

	resp, err := id.client.Complete(ctx, llm.Request{
		System:      identifySystemPrompt,
		Prompt:      prompt,
		Model:       id.opts.Model,
		Temperature: id.opts.Temperature,
		MaxTokens:   id.opts.MaxTokens,
	})
	if err != nil {
		return models.ScreenList{}, &AnalysisError{Reason: "model call", Err: err}
	}

	list, err := ParseScreenList(resp.Text)
	if err != nil {
		id.logger.Warn("unparsable screen list", "size", len(resp.Text), "error", err)
		return models.ScreenList{}, &AnalysisError{Reason: "parsing response", Err: err}
	}
	if len(list.ScreenList) == 0 {
		return models.ScreenList{}, &AnalysisError{Reason: "no screens in response", Err: llm.ErrUnparsable}
	}

	id.logger.Info("screens identified", "count", list.TotalScreens, "sections", len(filtered))
	return list, nil
}

// Filter keeps sections that talk about screens or carry a numbered
// subsection heading, dropping repeated headings.
func Filter(sections []models.Section) []models.Section {
	seen := make(map[string]bool)
	var out []models.Section
	for _, s := range sections {
		key := strings.ToLower(strings.TrimSpace(s.Heading))
		if seen[key] {
			continue
		}
		if !numberedSubsection.MatchString(s.Heading) && !mentionsScreen(s) {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func mentionsScreen(s models.Section) bool {
	text := strings.ToLower(s.Heading + "\n" + s.Text())
	for _, w := range screenVocabulary {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// rawScreenList tolerates the shapes models actually produce: numeric or
// string counts, screens as objects or bare names, and "screens" instead
// of "screenList".
type rawScreenList struct {
	ScreenList []json.RawMessage `json:"screenList"`
	Screens    []json.RawMessage `json:"screens"`
	Reasoning  json.RawMessage   `json:"reasoning"`
}

type rawScreen struct {
	ScreenID      json.RawMessage `json:"screenId"`
	ScreenName    json.RawMessage `json:"screenName"`
	Name          json.RawMessage `json:"name"`
	ScreenPurpose json.RawMessage `json:"screenPurpose"`
	Purpose       json.RawMessage `json:"purpose"`
	ScreenType    json.RawMessage `json:"screenType"`
	Type          json.RawMessage `json:"type"`
}

// ParseScreenList decodes a model reply into a normalized ScreenList.
func ParseScreenList(text string) (models.ScreenList, error) {
	var raw rawScreenList
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return models.ScreenList{}, err
	}

	items := raw.ScreenList
	if len(items) == 0 {
		items = raw.Screens
	}

	screens := make([]models.Screen, 0, len(items))
	for _, item := range items {
		screens = append(screens, decodeScreen(item))
	}

	list := Normalize(screens)
	list.Reasoning = truncate(llm.CoerceString(raw.Reasoning), maxReasoningChars)
	return list, nil
}

func decodeScreen(item json.RawMessage) models.Screen {
	var r rawScreen
	if err := json.Unmarshal(item, &r); err != nil {
		return models.Screen{ScreenName: llm.CoerceString(item)}
	}
	return models.Screen{
		ScreenID:      llm.CoerceString(r.ScreenID),
		ScreenName:    firstNonEmpty(llm.CoerceString(r.ScreenName), llm.CoerceString(r.Name)),
		ScreenPurpose: firstNonEmpty(llm.CoerceString(r.ScreenPurpose), llm.CoerceString(r.Purpose)),
		ScreenType:    firstNonEmpty(llm.CoerceString(r.ScreenType), llm.CoerceString(r.Type)),
	}
}

// Normalize drops unnamed screens, makes names unique, assigns sequential
// screen_N ids and fills missing purposes and types.
func Normalize(screens []models.Screen) models.ScreenList {
	used := make(map[string]bool)
	out := make([]models.Screen, 0, len(screens))
	for _, s := range screens {
		s.ScreenName = strings.Join(strings.Fields(s.ScreenName), " ")
		if s.ScreenName == "" {
			continue
		}
		s.ScreenName = uniqueName(s.ScreenName, used)
		s.ScreenID = "screen_" + strconv.Itoa(len(out)+1)
		if s.ScreenType == "" {
			s.ScreenType = Category(s.ScreenName)
		}
		s.ScreenType = strings.ToLower(s.ScreenType)
		if s.ScreenPurpose == "" {
			s.ScreenPurpose = defaultPurpose(s.ScreenName, Category(s.ScreenName))
		}
		out = append(out, s)
	}
	return models.ScreenList{TotalScreens: len(out), ScreenList: out}
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// IsAnalysisError reports whether err came from a failed identification.
func IsAnalysisError(err error) bool {
	var ae *AnalysisError
	return errors.As(err, &ae)
}
