package eventstore

import "time"

// Event types emitted over a task's lifecycle.
const (
	TypeTaskQueued    = "TaskQueued"
	TypeTaskCoalesced = "TaskCoalesced"
	TypeCacheHit      = "CacheHit"
	TypeTaskStarted   = "TaskStarted"
	TypeTaskCompleted = "TaskCompleted"
	TypeTaskFailed    = "TaskFailed"
)

// Event represents a recorded task lifecycle event.
type Event interface {
	// ID returns the unique identifier for this event.
	ID() int64
	// Fingerprint returns the fingerprint this event belongs to.
	Fingerprint() string
	// Type returns the event type name.
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// Payload returns the event data as bytes.
	Payload() []byte
	// Metadata returns optional event metadata.
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID          int64
	EventFingerprint string
	EventType        string
	EventTimestamp   time.Time
	EventPayload     []byte
	EventMetadata    map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) Fingerprint() string         { return e.EventFingerprint }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }

// TaskQueuedPayload is the payload for TaskQueued events.
type TaskQueuedPayload struct {
	TaskID   string `json:"task_id"`
	FontName string `json:"font_name"`
	Glyphs   int    `json:"glyphs"`
}

// TaskFinishedPayload is the payload for TaskCompleted and TaskFailed events.
type TaskFinishedPayload struct {
	TaskID     string `json:"task_id"`
	DurationMS int64  `json:"duration_ms"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}
