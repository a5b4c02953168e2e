// Package segment splits FDS text into pseudo-sections at heuristically
// detected heading lines.
package segment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hmi-forge/backend/internal/models"
)

// DefaultHeading names the section that collects lines seen before the
// first heading.
const DefaultHeading = "Document Content"

const maxHeadingLen = 80

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+[A-Za-z]`)
	chapterHeading  = regexp.MustCompile(`(?i)^(chapter|section|appendix)\s+[0-9A-Z]+\b`)
	nounHeading     = regexp.MustCompile(`(?i)^[A-Za-z0-9][\w /&()-]{0,60}\b(screen|interface|mode|page|display|panel|system|menu|window|overview)s?:?$`)
)

// triggerHeadings are whole lines that always start a section.
var triggerHeadings = map[string]bool{
	"introduction":            true,
	"overview":                true,
	"scope":                   true,
	"purpose":                 true,
	"definitions":             true,
	"abbreviations":           true,
	"references":              true,
	"system description":      true,
	"functional requirements": true,
	"operation":               true,
	"operations":              true,
	"alarms":                  true,
	"alarm handling":          true,
	"settings":                true,
	"navigation":              true,
	"trends":                  true,
	"reports":                 true,
	"security":                true,
	"maintenance":             true,
	"appendix":                true,
}

// IsHeading reports whether a trimmed line looks like a section heading.
// Patterns are tried in a fixed order.
func IsHeading(line string) bool {
	if line == "" || len(line) > maxHeadingLen {
		return false
	}
	switch {
	case markdownHeading.MatchString(line):
		return true
	case numberedHeading.MatchString(line) && wordCount(line) <= 10:
		return true
	case chapterHeading.MatchString(line):
		return true
	case isAllCaps(line):
		return true
	case wordCount(line) <= 8 && nounHeading.MatchString(line):
		return true
	}
	return triggerHeadings[strings.ToLower(strings.TrimSuffix(line, ":"))]
}

// Segment splits text into sections. Each heading line opens a new
// section and is kept as its first content line, so the concatenated
// content of all sections equals the non-empty trimmed input lines.
// Empty input yields one empty section.
func Segment(text string) []models.Section {
	var sections []models.Section
	current := models.Section{Heading: DefaultHeading, Content: []string{}}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if IsHeading(line) {
			if len(current.Content) > 0 {
				sections = append(sections, current)
			}
			current = models.Section{Heading: headingText(line), Content: []string{line}}
			continue
		}
		current.Content = append(current.Content, line)
	}

	if len(current.Content) > 0 || len(sections) == 0 {
		sections = append(sections, current)
	}
	return sections
}

// Lines returns the concatenated content of sections.
func Lines(sections []models.Section) []string {
	var out []string
	for _, s := range sections {
		out = append(out, s.Content...)
	}
	return out
}

func headingText(line string) string {
	h := strings.TrimLeft(line, "# ")
	h = strings.TrimSuffix(h, ":")
	return strings.TrimSpace(h)
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 3
}

func wordCount(line string) int {
	return len(strings.Fields(line))
}
