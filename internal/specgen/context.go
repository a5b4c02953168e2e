package specgen

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hmi-forge/backend/internal/keywords"
	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/screens"
)

const (
	maxContextChars = 2000
	windowBefore    = 400
	windowAfter     = 1000
	maxParameters   = 12
)

var (
	quantityPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s?(°C|°F|degC|bar|mbar|psi|kPa|MPa|kV|V|mA|A|Hz|rpm|kW|MW|kVA|kVAr|m³/h|m3/h|l/min|L/s|ppm|pH|%)([^A-Za-z0-9]|$)`)
	variablePattern = regexp.MustCompile(`(?i)\b(temperature|pressure|voltage|current|frequency|speed|level|flow|power|load|power factor|humidity|vibration|runtime|fuel level|oil pressure|coolant temperature|conductivity|turbidity|chlorine)\b`)
)

// categoryHeaders are the words searched for when a screen name does not
// occur in the document itself.
var categoryHeaders = map[string][]string{
	screens.CategoryHome:       {"overview", "main screen", "home"},
	screens.CategoryControl:    {"control", "operation"},
	screens.CategoryMonitoring: {"monitoring", "status"},
	screens.CategoryAlarm:      {"alarm"},
	screens.CategorySettings:   {"settings", "setpoint", "configuration"},
	screens.CategoryTrend:      {"trend", "history"},
	screens.CategoryReport:     {"report", "log"},
	screens.CategoryDiagnostic: {"diagnostic", "maintenance"},
	screens.CategorySecurity:   {"security", "login", "user"},
}

// ScreenContext is the document information relevant to one screen.
type ScreenContext struct {
	Excerpt    string
	Equipment  []string
	Operations []string
	Parameters []string
}

// BuildContext collects text windows around mentions of the screen name
// (or, failing that, its category words) and extracts equipment,
// operations and parameters from them.
func BuildContext(screen models.Screen, text string) ScreenContext {
	excerpt := excerptFor(text, []string{screen.ScreenName})
	if excerpt == "" {
		excerpt = excerptFor(text, categoryHeaders[screens.Category(screen.ScreenName)])
	}
	if excerpt == "" {
		excerpt = clip(text, maxContextChars)
	}

	return ScreenContext{
		Excerpt:    excerpt,
		Equipment:  keywords.Match(excerpt, keywords.ComponentTerms),
		Operations: keywords.Match(excerpt, keywords.OperationTerms),
		Parameters: Parameters(excerpt),
	}
}

type span struct{ start, end int }

func excerptFor(text string, terms []string) string {
	var spans []span
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{max(0, loc[0]-windowBefore), min(len(text), loc[1]+windowAfter)})
		}
	}
	if len(spans) == 0 {
		return ""
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			last.end = max(last.end, s.end)
			continue
		}
		merged = append(merged, s)
	}

	var b strings.Builder
	for _, s := range merged {
		if b.Len() > 0 {
			b.WriteString("\n...\n")
		}
		b.WriteString(text[s.start:s.end])
		if b.Len() >= maxContextChars {
			break
		}
	}
	return clip(b.String(), maxContextChars)
}

// Parameters returns quantities such as "400 V" followed by named process
// variables, without duplicates.
func Parameters(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		key := strings.ToLower(p)
		if seen[key] || len(out) >= maxParameters {
			return
		}
		seen[key] = true
		out = append(out, p)
	}

	for _, m := range quantityPattern.FindAllStringSubmatch(text, -1) {
		add(m[1] + " " + m[2])
	}
	for _, m := range variablePattern.FindAllStringSubmatch(text, -1) {
		add(strings.ToLower(m[1]))
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
