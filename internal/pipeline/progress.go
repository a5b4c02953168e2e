package pipeline

// Step names a pipeline progress event.
type Step string

const (
	StepDocumentRead      Step = "document_read"
	StepSectionsSegmented Step = "sections_segmented"
	StepScreensIdentified Step = "screens_identified"
	StepWorkflowBuilt     Step = "workflow_built"
	StepScreenSpec        Step = "screen_spec"
	StepScreenImage       Step = "screen_image"
	StepCombinedLayout    Step = "combined_layout"
	StepComplete          Step = "complete"
)

// ProgressSink receives progress events. Implementations must be safe
// for concurrent use; screen events arrive from worker goroutines.
type ProgressSink interface {
	Notify(step Step, message string)
}

// PercentSink is a ProgressSink that also wants overall completion in
// the range 0-100.
type PercentSink interface {
	ProgressSink
	Percent(p float64)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Notify(Step, string) {}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(step Step, message string)

func (f SinkFunc) Notify(step Step, message string) { f(step, message) }

func notify(sink ProgressSink, step Step, percent float64, message string) {
	if ps, ok := sink.(PercentSink); ok {
		ps.Percent(percent)
	}
	sink.Notify(step, message)
}
