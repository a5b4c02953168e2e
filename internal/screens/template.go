package screens

import (
	"regexp"
	"strings"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/segment"
)

const maxTemplateScreens = 12

var (
	screenHeading  = regexp.MustCompile(`(?i)\b(screen|display|page|panel|overview|view|menu)s?\b`)
	headingNumber  = regexp.MustCompile(`^(\d+(\.\d+)*[.)]?|chapter\s+\d+[.:]?|section\s+\d+(\.\d+)*[.:]?)\s+`)
	headingMarkers = regexp.MustCompile(`^#+\s*`)
)

var defaultScreens = []struct {
	name     string
	category string
}{
	{"System Overview", CategoryHome},
	{"Control Panel", CategoryControl},
	{"Process Monitoring", CategoryMonitoring},
	{"Alarm Summary", CategoryAlarm},
	{"Trend Display", CategoryTrend},
	{"System Settings", CategorySettings},
}

var categoryPurpose = map[string]string{
	CategoryHome:       "Main overview of the %s with key status information and navigation to all screens",
	CategoryControl:    "Operator control of the %s: start, stop, mode selection and setpoints",
	CategoryMonitoring: "Real-time monitoring of %s process values and equipment status",
	CategoryAlarm:      "Active and historical alarms of the %s with acknowledgement",
	CategorySettings:   "Configuration of %s parameters, limits and setpoints",
	CategoryTrend:      "Historical trends of %s process variables",
	CategoryReport:     "Reports and event logs of the %s",
	CategoryDiagnostic: "Diagnostics and maintenance information for the %s",
	CategorySecurity:   "User login and access levels for the %s",
	CategoryGeneric:    "Operator screen for %s",
}

// FromTemplate derives a screen list without a model. Headings that name
// a screen become screens; otherwise a default set for the system type is
// returned.
func FromTemplate(sections []models.Section, profile models.KeywordProfile) models.ScreenList {
	var found []models.Screen
	for _, s := range sections {
		if s.Heading == segment.DefaultHeading || !screenHeading.MatchString(s.Heading) {
			continue
		}
		name := cleanHeading(s.Heading)
		if name == "" || isChapterTitle(name) {
			continue
		}
		found = append(found, models.Screen{ScreenName: name, ScreenPurpose: sectionPurpose(s, name)})
		if len(found) == maxTemplateScreens {
			break
		}
	}

	if len(found) == 0 {
		subject := systemLabel(profile.SystemType)
		for _, d := range defaultScreens {
			found = append(found, models.Screen{
				ScreenName:    d.name,
				ScreenType:    d.category,
				ScreenPurpose: defaultPurpose(subject, d.category),
			})
		}
	}

	list := Normalize(found)
	list.Reasoning = "Derived from document headings without a language model"
	return list
}

// isChapterTitle reports headings such as "Screens" or "Overview" that
// introduce a chapter rather than name a screen.
func isChapterTitle(name string) bool {
	return !strings.Contains(name, " ") && screenHeading.ReplaceAllString(name, "") == ""
}

func cleanHeading(heading string) string {
	h := headingMarkers.ReplaceAllString(strings.TrimSpace(heading), "")
	h = headingNumber.ReplaceAllString(h, "")
	h = strings.TrimRight(h, ": ")
	if isUpper(h) {
		h = titleCase(h)
	}
	return h
}

// sectionPurpose uses the first body line of a section as the purpose.
func sectionPurpose(s models.Section, name string) string {
	for _, line := range s.Content[min(1, len(s.Content)):] {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, 200)
		}
	}
	return defaultPurpose(name, Category(name))
}

func defaultPurpose(subject, category string) string {
	format, ok := categoryPurpose[category]
	if !ok {
		format = categoryPurpose[CategoryGeneric]
	}
	return strings.Replace(format, "%s", subject, 1)
}

// systemLabel turns "generator_control" into "generator control system".
func systemLabel(systemType string) string {
	if systemType == "" {
		systemType = models.SystemTypeIndustrialControl
	}
	label := strings.ReplaceAll(systemType, "_", " ")
	if strings.HasSuffix(label, " system") {
		return label
	}
	return label + " system"
}

func isUpper(s string) bool {
	return s == strings.ToUpper(s) && s != strings.ToLower(s)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
