package screens

import "strings"

// Screen categories used to pick template text, fallback layouts and
// themes for a screen.
const (
	CategoryHome       = "home"
	CategoryControl    = "control"
	CategoryMonitoring = "monitoring"
	CategoryAlarm      = "alarm"
	CategorySettings   = "settings"
	CategoryTrend      = "trend"
	CategoryReport     = "report"
	CategoryDiagnostic = "diagnostic"
	CategorySecurity   = "security"
	CategoryGeneric    = "generic"
)

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryAlarm, []string{"alarm", "alert", "event", "fault", "warning", "trip"}},
	{CategoryTrend, []string{"trend", "history", "historical", "chart", "graph"}},
	{CategorySettings, []string{"setting", "config", "setup", "parameter", "setpoint", "preference"}},
	{CategorySecurity, []string{"security", "login", "user", "access", "password"}},
	{CategoryReport, []string{"report", "log", "summary", "export"}},
	{CategoryDiagnostic, []string{"diagnostic", "maintenance", "service", "test", "calibration"}},
	{CategoryControl, []string{"control", "operation", "manual", "start", "command", "sequence"}},
	{CategoryMonitoring, []string{"monitor", "status", "detail", "measurement", "reading", "data"}},
	{CategoryHome, []string{"home", "overview", "main", "dashboard", "summary", "system"}},
}

// Category classifies a screen by keywords in its name. Specific
// categories are checked before the broad ones, so "Alarm Overview" is
// an alarm screen.
func Category(name string) string {
	lower := strings.ToLower(name)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(lower, w) {
				return c.category
			}
		}
	}
	return CategoryGeneric
}
