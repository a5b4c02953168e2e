package specgen

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/screens"
	"github.com/hmi-forge/backend/internal/theme"
)

// slot is a fallback element. Labels may reference {p0}..{p3} (process
// variables found near the screen) and {e0}, {e1} (equipment).
type slot struct {
	t          string
	label      string
	x, y, w, h int
}

var fallbackLayouts = map[string][]slot{
	screens.CategoryHome: {
		{models.ElementStatusIndicator, "System Status", 20, 100, 240, 50},
		{models.ElementStatusIndicator, "{e0} Status", 280, 100, 240, 50},
		{models.ElementAlarmIndicator, "Active Alarms", 540, 100, 240, 50},
		{models.ElementGauge, "{p0}", 20, 170, 240, 170},
		{models.ElementGauge, "{p1}", 280, 170, 240, 170},
		{models.ElementDataDisplay, "{p2}", 540, 170, 240, 80},
		{models.ElementDataDisplay, "{p3}", 540, 260, 240, 80},
		{models.ElementProgressBar, "Load %", 20, 360, 400, 40},
		{models.ElementDataTable, "Equipment Overview", 20, 420, 400, 100},
	},
	screens.CategoryControl: {
		{models.ElementControlButton, "Start", 20, 100, 160, 60},
		{models.ElementControlButton, "Stop", 200, 100, 160, 60},
		{models.ElementControlButton, "Reset", 380, 100, 160, 60},
		{models.ElementToggle, "Auto / Manual", 560, 100, 220, 60},
		{models.ElementValueInput, "{p0} Setpoint", 20, 190, 240, 50},
		{models.ElementValueInput, "{p1} Setpoint", 280, 190, 240, 50},
		{models.ElementStatusIndicator, "{e0} Status", 540, 190, 240, 50},
		{models.ElementGauge, "{p0}", 20, 270, 240, 170},
		{models.ElementDataDisplay, "{p1}", 280, 270, 240, 80},
		{models.ElementAlarmIndicator, "Interlocks", 540, 270, 240, 50},
	},
	screens.CategoryMonitoring: {
		{models.ElementGauge, "{p0}", 20, 100, 240, 170},
		{models.ElementGauge, "{p1}", 280, 100, 240, 170},
		{models.ElementGauge, "{p2}", 540, 100, 240, 170},
		{models.ElementDataDisplay, "{p3}", 20, 290, 240, 70},
		{models.ElementDataDisplay, "{p0}", 280, 290, 240, 70},
		{models.ElementDataDisplay, "{p1}", 540, 290, 240, 70},
		{models.ElementProgressBar, "Level %", 20, 380, 400, 40},
		{models.ElementStatusIndicator, "{e0} Status", 540, 380, 240, 40},
		{models.ElementDataTable, "Measurements", 20, 440, 400, 90},
	},
	screens.CategoryAlarm: {
		{models.ElementAlarmIndicator, "Critical Alarms", 20, 100, 240, 50},
		{models.ElementAlarmIndicator, "Warnings", 280, 100, 240, 50},
		{models.ElementStatusIndicator, "Alarm Horn", 540, 100, 240, 50},
		{models.ElementDataTable, "Active Alarms", 20, 170, 400, 220},
		{models.ElementDataDisplay, "Unacknowledged", 440, 170, 340, 80},
		{models.ElementAlarmIndicator, "{e0} Fault", 440, 270, 340, 50},
		{models.ElementControlButton, "Acknowledge", 20, 410, 180, 50},
		{models.ElementControlButton, "Acknowledge All", 220, 410, 180, 50},
		{models.ElementControlButton, "Silence Horn", 420, 410, 180, 50},
		{models.ElementToggle, "Show History", 620, 410, 160, 50},
	},
	screens.CategorySettings: {
		{models.ElementValueInput, "{p0} High Limit", 20, 100, 360, 50},
		{models.ElementValueInput, "{p0} Low Limit", 420, 100, 360, 50},
		{models.ElementValueInput, "{p1} Setpoint", 20, 170, 360, 50},
		{models.ElementValueInput, "{p2} Setpoint", 420, 170, 360, 50},
		{models.ElementToggle, "Enable Alarms", 20, 240, 240, 50},
		{models.ElementStatusIndicator, "Configuration Status", 280, 240, 240, 50},
		{models.ElementDataTable, "Parameter Limits", 20, 310, 400, 140},
		{models.ElementControlButton, "Save", 20, 470, 160, 50},
		{models.ElementControlButton, "Cancel", 200, 470, 160, 50},
		{models.ElementControlButton, "Defaults", 380, 470, 160, 50},
	},
	screens.CategoryTrend: {
		{models.ElementDataTable, "Trend Data", 20, 100, 400, 240},
		{models.ElementGauge, "{p3}", 440, 100, 340, 240},
		{models.ElementDataDisplay, "{p0}", 20, 360, 240, 70},
		{models.ElementDataDisplay, "{p1}", 280, 360, 240, 70},
		{models.ElementDataDisplay, "{p2}", 540, 360, 240, 70},
		{models.ElementControlButton, "Zoom In", 20, 450, 160, 50},
		{models.ElementControlButton, "Zoom Out", 200, 450, 160, 50},
		{models.ElementToggle, "Pause", 380, 450, 160, 50},
		{models.ElementStatusIndicator, "Recording", 560, 450, 220, 50},
	},
	screens.CategoryReport: {
		{models.ElementValueInput, "From Date", 20, 100, 240, 50},
		{models.ElementValueInput, "To Date", 280, 100, 240, 50},
		{models.ElementControlButton, "Generate", 540, 100, 240, 50},
		{models.ElementDataTable, "Event Log", 20, 170, 400, 230},
		{models.ElementAlarmIndicator, "Alarms In Period", 440, 170, 340, 50},
		{models.ElementDataDisplay, "Total Events", 20, 420, 240, 70},
		{models.ElementDataDisplay, "{p0}", 280, 420, 240, 70},
		{models.ElementControlButton, "Export", 540, 420, 240, 50},
		{models.ElementStatusIndicator, "Report Status", 540, 480, 240, 40},
	},
	screens.CategoryDiagnostic: {
		{models.ElementStatusIndicator, "Communication", 20, 100, 240, 50},
		{models.ElementStatusIndicator, "PLC", 280, 100, 240, 50},
		{models.ElementStatusIndicator, "I/O Modules", 540, 100, 240, 50},
		{models.ElementDataTable, "Device Status", 20, 170, 400, 180},
		{models.ElementDataDisplay, "Running Hours", 20, 370, 240, 70},
		{models.ElementProgressBar, "Maintenance Interval", 280, 370, 400, 40},
		{models.ElementBatteryIndicator, "UPS Battery", 20, 460, 240, 60},
		{models.ElementControlButton, "Reset Counter", 280, 460, 200, 50},
	},
	screens.CategorySecurity: {
		{models.ElementValueInput, "User Name", 20, 100, 360, 50},
		{models.ElementValueInput, "Password", 20, 170, 360, 50},
		{models.ElementControlButton, "Login", 420, 100, 160, 50},
		{models.ElementControlButton, "Logout", 600, 100, 160, 50},
		{models.ElementDataDisplay, "Current User", 420, 170, 360, 50},
		{models.ElementStatusIndicator, "Access Level", 20, 240, 360, 50},
		{models.ElementDataTable, "Users", 20, 310, 400, 200},
	},
	screens.CategoryGeneric: {
		{models.ElementDataDisplay, "{p0}", 20, 100, 240, 80},
		{models.ElementDataDisplay, "{p1}", 280, 100, 240, 80},
		{models.ElementDataDisplay, "{p2}", 540, 100, 240, 80},
		{models.ElementStatusIndicator, "{e0} Status", 20, 200, 240, 50},
		{models.ElementStatusIndicator, "{e1} Status", 280, 200, 240, 50},
		{models.ElementGauge, "{p3}", 540, 200, 240, 170},
		{models.ElementControlButton, "Start", 20, 280, 160, 60},
		{models.ElementControlButton, "Stop", 200, 280, 160, 60},
	},
}

var defaultVariables = []string{"Temperature", "Pressure", "Speed", "Voltage"}
var defaultEquipment = []string{"Equipment", "Auxiliary"}

var purposes = map[string]string{
	screens.CategoryHome:       "Overview of the system with key status information and navigation",
	screens.CategoryControl:    "Operator control of equipment and setpoints",
	screens.CategoryMonitoring: "Real-time monitoring of process values",
	screens.CategoryAlarm:      "Display and acknowledgement of alarms",
	screens.CategorySettings:   "Configuration of parameters and limits",
	screens.CategoryTrend:      "Historical trends of process variables",
	screens.CategoryReport:     "Reports and event logs",
	screens.CategoryDiagnostic: "Diagnostics and maintenance information",
	screens.CategorySecurity:   "User login and access management",
	screens.CategoryGeneric:    "Operator information and controls",
}

var recommendations = map[string][]string{
	screens.CategoryHome:       {"Keep the most important values visible without scrolling", "Use consistent status colors"},
	screens.CategoryControl:    {"Confirm commands that change equipment state", "Disable controls while interlocks are active"},
	screens.CategoryMonitoring: {"Show units next to every value", "Highlight values outside their limits"},
	screens.CategoryAlarm:      {"Sort alarms by priority and time", "Flash unacknowledged alarms"},
	screens.CategorySettings:   {"Validate entries against limits before saving", "Restrict changes to authorized users"},
	screens.CategoryTrend:      {"Allow selecting the time range", "Use distinct colors per pen"},
	screens.CategoryReport:     {"Allow exporting reports", "Show the selected period clearly"},
	screens.CategoryDiagnostic: {"Group devices by communication network", "Show maintenance due dates"},
	screens.CategorySecurity:   {"Log out automatically after inactivity", "Show the current access level at all times"},
	screens.CategoryGeneric:    {"Keep the layout consistent with other screens"},
}

func categoryPurpose(category string) string {
	if p, ok := purposes[category]; ok {
		return p
	}
	return purposes[screens.CategoryGeneric]
}

func defaultNavigation(category string) []models.NavLink {
	targets := []struct{ category, label string }{
		{screens.CategoryHome, "Home"},
		{screens.CategoryAlarm, "Alarms"},
		{screens.CategoryTrend, "Trends"},
		{screens.CategorySettings, "Settings"},
	}
	var out []models.NavLink
	for _, t := range targets {
		if t.category != category {
			out = append(out, models.NavLink{Label: t.label, Target: t.label})
		}
	}
	return out
}

func functionalDescription(title, purpose, category string) string {
	var b strings.Builder
	b.WriteString("The ")
	b.WriteString(title)
	b.WriteString(" screen provides ")
	b.WriteString(lowerFirst(purpose))
	b.WriteString(".")
	if recs := recommendations[category]; len(recs) > 0 {
		b.WriteString(" ")
		b.WriteString(recs[0])
		b.WriteString(".")
	}
	return b.String()
}

// Fallback builds a rule-based specification for screen using the layout
// of its category, labelled with process variables and equipment found
// near the screen in the document. An alarm screen always contains an
// alarm_indicator.
func Fallback(screen models.Screen, systemType string, sc ScreenContext) models.ScreenSpecification {
	category := screens.Category(screen.ScreenName)
	layout, ok := fallbackLayouts[category]
	if !ok {
		layout = fallbackLayouts[screens.CategoryGeneric]
	}

	replacer := labelReplacer(sc)
	elements := make([]models.Element, 0, len(layout))
	for _, s := range layout {
		elements = append(elements, models.Element{
			Type:     s.t,
			Label:    replacer.Replace(s.label),
			Position: models.Position{X: s.x, Y: s.y, Width: s.w, Height: s.h},
		})
	}

	nav := defaultNavigation(category)
	footer := make([]models.Element, 0, len(nav))
	for i, link := range nav {
		footer = append(footer, models.Element{
			Type:     models.ElementNavigationButton,
			Label:    link.Label,
			Position: models.Position{X: 20 + i*150, Y: 550, Width: 130, Height: 35},
		})
	}

	purpose := firstNonEmpty(screen.ScreenPurpose, categoryPurpose(category))
	return models.ScreenSpecification{
		ScreenTitle:   screen.ScreenName,
		ScreenPurpose: purpose,
		Layout: models.Layout{
			Header: models.Band{
				Height: models.DefaultHeaderHeight,
				Title:  screen.ScreenName,
				Elements: []models.Element{
					{Type: models.ElementHeaderTitle, Label: screen.ScreenName, Position: models.Position{X: 20, Y: 20, Width: 400, Height: 40}},
					{Type: models.ElementDateTimeDisplay, Label: "Date / Time", Position: models.Position{X: 600, Y: 25, Width: 180, Height: 30}},
				},
			},
			MainArea: models.Band{Description: purpose},
			Footer:   models.Band{Height: models.DefaultFooterHeight, Elements: footer},
		},
		ColorScheme:           theme.ForSystemType(systemType),
		Elements:              elements,
		FunctionalDescription: functionalDescription(screen.ScreenName, purpose, category),
		Navigation:            nav,
		Recommendations:       append([]string(nil), recommendations[category]...),
		Source:                SourceFallback,
	}
}

func labelReplacer(sc ScreenContext) *strings.Replacer {
	vars := make([]string, 0, 4)
	for _, p := range sc.Parameters {
		if p != "" && (p[0] < '0' || p[0] > '9') {
			vars = append(vars, titleCase(p))
		}
	}
	for _, d := range defaultVariables {
		if len(vars) >= 4 {
			break
		}
		if !containsFold(vars, d) {
			vars = append(vars, d)
		}
	}

	equipment := make([]string, 0, 2)
	for _, e := range sc.Equipment {
		if len(equipment) == 2 {
			break
		}
		if e != "hmi" && e != "plc" {
			equipment = append(equipment, titleCase(e))
		}
	}
	equipment = append(equipment, defaultEquipment[len(equipment):]...)

	return strings.NewReplacer(
		"{p0}", vars[0], "{p1}", vars[1], "{p2}", vars[2], "{p3}", vars[3],
		"{e0}", equipment[0], "{e1}", equipment[1],
	)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
