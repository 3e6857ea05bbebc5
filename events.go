package framepress

import (
	"time"

	"github.com/five82/framepress/internal/reporter"
)

// EventType names a library event.
type EventType string

const (
	EventTypeStageProgress      EventType = "stage_progress"
	EventTypeEncodingProgress   EventType = "encoding_progress"
	EventTypeValidationComplete EventType = "validation_complete"
	EventTypeEncodingComplete   EventType = "encoding_complete"
	EventTypeWarning            EventType = "warning"
	EventTypeError              EventType = "error"
)

// Event is implemented by every event passed to an EventHandler.
type Event interface {
	Type() EventType
}

// EventHandler receives events during an encode. Its error is ignored.
type EventHandler func(Event) error

// BaseEvent carries the fields every event has.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType { return e.EventType }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// StageProgressEvent reports a step outside the encode passes.
type StageProgressEvent struct {
	BaseEvent
	Stage   string  `json:"stage"`
	Percent float32 `json:"percent"`
	Message string  `json:"message"`
}

// EncodingProgressEvent reports progress of one encode pass.
type EncodingProgressEvent struct {
	BaseEvent
	Stage      string  `json:"stage"`
	Percent    float32 `json:"percent"`
	Speed      float32 `json:"speed"`
	FPS        float32 `json:"fps"`
	ETASeconds int64   `json:"eta_seconds"`
}

// ValidationStep is one output check.
type ValidationStep struct {
	Step    string `json:"step"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// ValidationCompleteEvent reports the output checks.
type ValidationCompleteEvent struct {
	BaseEvent
	ValidationPassed bool             `json:"validation_passed"`
	ValidationSteps  []ValidationStep `json:"validation_steps"`
}

// EncodingCompleteEvent reports the finished file.
type EncodingCompleteEvent struct {
	BaseEvent
	OutputPath         string  `json:"output_path"`
	EncodedSize        uint64  `json:"encoded_size"`
	TargetUsagePercent float64 `json:"target_usage_percent,omitempty"`
}

// WarningEvent reports a non-fatal problem.
type WarningEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// ErrorEvent reports the failure that ended an encode.
type ErrorEvent struct {
	BaseEvent
	Title      string `json:"title"`
	Message    string `json:"message"`
	Context    string `json:"context,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// eventReporter adapts EventHandler to the Reporter interface.
type eventReporter struct {
	reporter.NullReporter
	handler EventHandler
}

func newEventReporter(handler EventHandler) *eventReporter {
	return &eventReporter{handler: handler}
}

func (r *eventReporter) StageProgress(u reporter.StageProgress) {
	_ = r.handler(StageProgressEvent{
		BaseEvent: newBase(EventTypeStageProgress),
		Stage:     u.Stage,
		Percent:   u.Percent,
		Message:   u.Message,
	})
}

func (r *eventReporter) EncodingProgress(p reporter.ProgressSnapshot) {
	_ = r.handler(EncodingProgressEvent{
		BaseEvent:  newBase(EventTypeEncodingProgress),
		Stage:      p.Stage,
		Percent:    p.Percent,
		Speed:      p.Speed,
		FPS:        p.FPS,
		ETASeconds: int64(p.ETA.Seconds()),
	})
}

func (r *eventReporter) ValidationComplete(s reporter.ValidationSummary) {
	steps := make([]ValidationStep, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = ValidationStep{
			Step:    step.Name,
			Passed:  step.Passed,
			Details: step.Details,
		}
	}
	_ = r.handler(ValidationCompleteEvent{
		BaseEvent:        newBase(EventTypeValidationComplete),
		ValidationPassed: s.Passed,
		ValidationSteps:  steps,
	})
}

func (r *eventReporter) EncodingComplete(s reporter.EncodingOutcome) {
	_ = r.handler(EncodingCompleteEvent{
		BaseEvent:          newBase(EventTypeEncodingComplete),
		OutputPath:         s.OutputPath,
		EncodedSize:        s.EncodedSize,
		TargetUsagePercent: s.TargetUsage(),
	})
}

func (r *eventReporter) Warning(message string) {
	_ = r.handler(WarningEvent{
		BaseEvent: newBase(EventTypeWarning),
		Message:   message,
	})
}

func (r *eventReporter) Error(e reporter.ReporterError) {
	_ = r.handler(ErrorEvent{
		BaseEvent:  newBase(EventTypeError),
		Title:      e.Title,
		Message:    e.Message,
		Context:    e.Context,
		Suggestion: e.Suggestion,
	})
}
