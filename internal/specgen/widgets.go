package specgen

import "github.com/hmi-forge/backend/internal/models"

// WidgetGuide describes when a widget type should be used.
type WidgetGuide struct {
	Type  string
	Usage string
}

var widgetGuides = []WidgetGuide{
	{models.ElementControlButton, "operator commands such as Start, Stop, Reset or Acknowledge"},
	{models.ElementStatusIndicator, "on/off, running/stopped or healthy/fault states"},
	{models.ElementDataTable, "lists of alarms, events, equipment or parameters"},
	{models.ElementDataDisplay, "a single live process value with its unit"},
	{models.ElementValueInput, "setpoints and parameters entered by the operator"},
	{models.ElementAlarmIndicator, "alarm state with priority color"},
	{models.ElementGauge, "a process value against its range, such as pressure or speed"},
	{models.ElementProgressBar, "levels, load percentage or sequence progress"},
	{models.ElementText, "labels, titles and instructions"},
	{models.ElementToggle, "two-state selections such as Auto/Manual or Enable/Disable"},
	{models.ElementNavigationButton, "links to other screens, usually in the footer"},
	{models.ElementDateTimeDisplay, "current date and time, usually in the header"},
	{models.ElementBatteryIndicator, "battery or UPS state of charge"},
	{models.ElementHeaderTitle, "the screen title in the header"},
}

// WidgetGuides returns the usage guidance for every element type.
func WidgetGuides() []WidgetGuide {
	return append([]WidgetGuide(nil), widgetGuides...)
}
