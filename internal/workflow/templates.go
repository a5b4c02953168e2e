package workflow

import (
	"strings"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/hmi-forge/backend/internal/screens"
)

type categoryText struct {
	purpose           string
	keyElements       []string
	functionality     []string
	behavior          string
	dataVisualization string
	userRoles         []string
}

var templates = map[string]categoryText{
	screens.CategoryHome: {
		purpose:           "System overview with key status information and navigation to all screens",
		keyElements:       []string{"System status summary", "Main process values", "Active alarm count", "Equipment running states", "Navigation menu", "Date and time", "Operating mode indicator", "Communication status"},
		functionality:     []string{"Display overall system status", "Summarize active alarms", "Provide navigation to detail screens", "Show current operating mode"},
		behavior:          "Default screen after login; values refresh continuously and alarm banners flash until acknowledged",
		dataVisualization: "Status tiles, summary values and a simplified process mimic",
		userRoles:         []string{"Operator", "Supervisor", "Engineer"},
	},
	screens.CategoryControl: {
		purpose:           "Operator control of equipment: start, stop, mode selection and setpoints",
		keyElements:       []string{"Start button", "Stop button", "Auto/Manual toggle", "Setpoint inputs", "Equipment status indicators", "Interlock status", "Confirmation dialog", "Emergency stop status"},
		functionality:     []string{"Start and stop equipment", "Switch between automatic and manual mode", "Adjust setpoints within limits", "Show interlocks that block commands", "Confirm critical commands"},
		behavior:          "Commands require confirmation; buttons are disabled while interlocks are active",
		dataVisualization: "Command buttons with state feedback and setpoint entry fields",
		userRoles:         []string{"Operator", "Supervisor"},
	},
	screens.CategoryMonitoring: {
		purpose:           "Real-time monitoring of process values and equipment status",
		keyElements:       []string{"Process value displays", "Gauges", "Status indicators", "Limit markers", "Equipment list", "Last update time", "Unit labels", "Quality indicators"},
		functionality:     []string{"Show live process values", "Highlight values outside limits", "Display equipment states", "Indicate communication quality"},
		behavior:          "Values update every second; out-of-range values change color",
		dataVisualization: "Gauges, numeric displays and bar indicators",
		userRoles:         []string{"Operator", "Supervisor", "Engineer"},
	},
	screens.CategoryAlarm: {
		purpose:           "Display of active and historical alarms with acknowledgement",
		keyElements:       []string{"Active alarm list", "Alarm priority indicators", "Acknowledge button", "Acknowledge all button", "Alarm filter", "Alarm history table", "Timestamp column", "Alarm count summary"},
		functionality:     []string{"List active alarms by priority", "Acknowledge single or all alarms", "Filter alarms by priority and area", "Show alarm history with timestamps", "Silence audible alarms"},
		behavior:          "New alarms appear at the top and flash until acknowledged; cleared alarms move to history",
		dataVisualization: "Color-coded alarm table with priority indicators",
		userRoles:         []string{"Operator", "Supervisor"},
	},
	screens.CategorySettings: {
		purpose:           "Configuration of system parameters, limits and setpoints",
		keyElements:       []string{"Parameter input fields", "Limit settings", "Save button", "Cancel button", "Default values button", "Validation messages", "Access level indicator", "Change log"},
		functionality:     []string{"Edit configuration parameters", "Validate values against limits", "Save or discard changes", "Restore default values"},
		behavior:          "Changes take effect only after saving; restricted to authorized users",
		dataVisualization: "Grouped parameter forms with current and default values",
		userRoles:         []string{"Engineer", "Administrator"},
	},
	screens.CategoryTrend: {
		purpose:           "Historical trends of process variables",
		keyElements:       []string{"Trend chart", "Pen selection", "Time range selector", "Zoom controls", "Cursor value display", "Export button", "Legend", "Pause button"},
		functionality:     []string{"Plot selected variables over time", "Change time range and zoom", "Read values at a cursor position", "Export trend data"},
		behavior:          "Chart scrolls in real time unless paused for analysis",
		dataVisualization: "Multi-pen line charts with a time axis",
		userRoles:         []string{"Operator", "Supervisor", "Engineer"},
	},
	screens.CategoryReport: {
		purpose:           "Production reports and event logs",
		keyElements:       []string{"Report selector", "Date range picker", "Report table", "Print button", "Export button", "Summary totals", "Event log", "Filter controls"},
		functionality:     []string{"Generate shift and daily reports", "Browse the event log", "Export reports", "Print reports"},
		behavior:          "Reports are generated on request for the selected period",
		dataVisualization: "Tabular reports with totals",
		userRoles:         []string{"Supervisor", "Engineer"},
	},
	screens.CategoryDiagnostic: {
		purpose:           "Diagnostics and maintenance information",
		keyElements:       []string{"Device status list", "Communication diagnostics", "Running hours", "Maintenance counters", "Reset counter button", "I/O status", "Firmware versions", "Error codes"},
		functionality:     []string{"Show device and communication health", "Track running hours and maintenance intervals", "Display I/O states", "Reset maintenance counters"},
		behavior:          "Read-only for operators; counter resets need engineer access",
		dataVisualization: "Status tables and counters",
		userRoles:         []string{"Engineer", "Maintenance"},
	},
	screens.CategorySecurity: {
		purpose:           "User login and access level management",
		keyElements:       []string{"User name input", "Password input", "Login button", "Logout button", "Current user display", "Access level indicator", "User list", "Session timeout"},
		functionality:     []string{"Log users in and out", "Show the current access level", "Manage user accounts", "Enforce session timeout"},
		behavior:          "Automatic logout after inactivity",
		dataVisualization: "Forms and user tables",
		userRoles:         []string{"Administrator"},
	},
	screens.CategoryGeneric: {
		purpose:           "Operator screen",
		keyElements:       []string{"Title", "Status indicators", "Data displays", "Control buttons", "Navigation buttons", "Date and time"},
		functionality:     []string{"Display relevant process information", "Provide operator controls", "Navigate to related screens", "Show status"},
		behavior:          "Values refresh continuously while the screen is open",
		dataVisualization: "Numeric displays and status indicators",
		userRoles:         []string{"Operator"},
	},
}

func textFor(name string) categoryText {
	return templates[screens.Category(name)]
}

// TemplateAnalysis builds the analysis of one screen from its name and its
// position in the screen order.
func TemplateAnalysis(s models.Screen, names []string, index int) models.ScreenAnalysis {
	t := textFor(s.ScreenName)
	purpose := s.ScreenPurpose
	if purpose == "" {
		purpose = t.purpose
	}
	return models.ScreenAnalysis{
		ScreenName:        s.ScreenName,
		Purpose:           purpose,
		KeyElements:       append([]string(nil), t.keyElements...),
		Functionality:     append([]string(nil), t.functionality...),
		Navigation:        chainNavigation(names, index),
		Behavior:          t.behavior,
		DataVisualization: t.dataVisualization,
		UserRoles:         append([]string(nil), t.userRoles...),
	}
}

func chainNavigation(names []string, index int) models.Navigation {
	var nav models.Navigation
	if index > 0 {
		nav.Previous = names[index-1]
		nav.Links = append(nav.Links, nav.Previous)
	}
	if index+1 < len(names) {
		nav.Next = names[index+1]
		nav.Links = append(nav.Links, nav.Next)
	}
	if index > 1 {
		nav.Links = append(nav.Links, names[0])
	}
	return nav
}

// ChainTransitions links the screens in input order.
func ChainTransitions(names []string) []models.Transition {
	var out []models.Transition
	for i := 0; i+1 < len(names); i++ {
		out = append(out, newTransition(names[i], names[i+1]))
	}
	return out
}

func newTransition(from, to string) models.Transition {
	return models.Transition{
		From:        from,
		To:          to,
		Trigger:     "Navigation button",
		Description: "Navigate from " + from + " to " + to,
	}
}

func systemOverview(doc models.Document, count int) models.SystemOverview {
	systemType := doc.Profile.SystemType
	if systemType == "" {
		systemType = models.SystemTypeIndustrialControl
	}
	label := strings.ReplaceAll(systemType, "_", " ")
	name := titleWords(label)
	if !strings.HasSuffix(strings.ToLower(name), "system") {
		name += " System"
	}
	return models.SystemOverview{
		SystemName:      name,
		SystemType:      systemType,
		TotalScreens:    count,
		PrimaryFunction: "Monitoring and control of the " + label + " process",
	}
}

func defaultTechnicalSpecifications() models.TechnicalSpecifications {
	return models.TechnicalSpecifications{
		Platform:       "Industrial HMI panel",
		Resolution:     "800x600",
		UpdateRate:     "1 second",
		Communication:  []string{"Modbus TCP", "OPC UA"},
		SecurityLevels: []string{"Operator", "Supervisor", "Engineer", "Administrator"},
	}
}

var defaultImplementationNotes = []string{
	"Use consistent colors for equipment states across all screens",
	"Keep navigation buttons in the footer of every screen",
	"Require confirmation for commands that change equipment state",
}

// Template builds a complete diagram without a model.
func Template(list []models.Screen, doc models.Document) models.WorkflowDiagram {
	names := screenNames(list)
	analysis := make([]models.ScreenAnalysis, len(list))
	for i, s := range list {
		analysis[i] = TemplateAnalysis(s, names, i)
	}
	return models.WorkflowDiagram{
		SystemOverview: systemOverview(doc, len(list)),
		ScreenAnalysis: analysis,
		NavigationFlow: models.NavigationFlow{
			Diagram:           strings.Join(names, " -> "),
			ScreenTransitions: ChainTransitions(names),
		},
		TechnicalSpecifications: defaultTechnicalSpecifications(),
		ImplementationNotes:     append([]string(nil), defaultImplementationNotes...),
		Source:                  SourceTemplate,
	}
}

func screenNames(list []models.Screen) []string {
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.ScreenName
	}
	return names
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
