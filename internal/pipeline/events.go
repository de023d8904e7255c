package pipeline

import "time"

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// ProgressEvent reports one step of an extraction run.
type ProgressEvent struct {
	RunID   string    `json:"runId"`
	Pass    int       `json:"pass"`
	Sheet   string    `json:"sheet,omitempty"`
	Message string    `json:"message"`
	Level   string    `json:"level"`
	Time    time.Time `json:"time"`
}

// EventSink receives progress events. Publish must not block the run.
type EventSink interface {
	Publish(ProgressEvent)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Publish(ProgressEvent) {}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ProgressEvent)

func (f SinkFunc) Publish(e ProgressEvent) { f(e) }
