package carve

import "time"

// EventType identifies the kind of Event delivered to an EventHandler.
type EventType string

const (
	EventTypeEncodingProgress   EventType = "encoding_progress"
	EventTypeValidationComplete EventType = "validation_complete"
	EventTypeEncodingComplete   EventType = "encoding_complete"
	EventTypeWarning            EventType = "warning"
	EventTypeError              EventType = "error"
	EventTypeBatchComplete      EventType = "batch_complete"
)

// Timestamp marks when an Event was produced.
type Timestamp time.Time

// NewTimestamp returns the current time as a Timestamp.
func NewTimestamp() Timestamp {
	return Timestamp(time.Now())
}

// Event is implemented by every event type delivered to an EventHandler.
type Event interface {
	Type() EventType
}

// BaseEvent is embedded by every concrete event type, carrying the common
// EventType and Time fields.
type BaseEvent struct {
	EventType EventType
	Time      Timestamp
}

// Type implements Event.
func (b BaseEvent) Type() EventType {
	return b.EventType
}

// EventHandler receives Events as an encode progresses. A non-nil error
// return is not currently propagated back into the encode; handlers should
// treat it as a signal to stop doing their own work, not to abort encoding.
type EventHandler func(Event) error

// EncodingProgressEvent reports incremental encode progress.
type EncodingProgressEvent struct {
	BaseEvent
	Percent    float32
	Speed      float32
	FPS        float32
	ETASeconds int64
}

// ValidationCompleteEvent reports the outcome of post-encode validation.
type ValidationCompleteEvent struct {
	BaseEvent
	ValidationPassed bool
	ValidationSteps  []ValidationStep
}

// ValidationStep is a single named validation check and its outcome.
type ValidationStep struct {
	Step    string
	Passed  bool
	Details string
}

// EncodingCompleteEvent reports the final result of one file's encode.
type EncodingCompleteEvent struct {
	BaseEvent
	OutputFile           string
	OriginalSize         uint64
	EncodedSize          uint64
	SizeReductionPercent float64
}

// WarningEvent reports a non-fatal condition encountered during encoding.
type WarningEvent struct {
	BaseEvent
	Message string
}

// ErrorEvent reports a fatal condition that aborted the current file.
type ErrorEvent struct {
	BaseEvent
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchCompleteEvent reports the outcome of a multi-file EncodeBatch call.
type BatchCompleteEvent struct {
	BaseEvent
	SuccessfulCount           int
	TotalFiles                int
	TotalSizeReductionPercent float64
}
