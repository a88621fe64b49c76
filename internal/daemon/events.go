package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/fontbuilder/internal/eventstore"
	"git.home.luguber.info/inful/fontbuilder/internal/logfields"
	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

// Emitter receives task lifecycle events from both the scheduler and the
// worker pool. Implementations must never block the control path on slow
// sinks for longer than a local write.
type Emitter interface {
	EmitTaskQueued(ctx context.Context, t *task.Task)
	EmitTaskCoalesced(ctx context.Context, t *task.Task)
	EmitCacheHit(ctx context.Context, fingerprint string)
	EmitTaskStarted(ctx context.Context, t *task.Task, workerID string)
	EmitTaskCompleted(ctx context.Context, t *task.Task, d time.Duration)
	EmitTaskFailed(ctx context.Context, t *task.Task, d time.Duration, err error)
}

// CompositeEmitter fans every event out to multiple sinks.
type CompositeEmitter struct {
	sinks []Emitter
}

// NewCompositeEmitter creates a composite over the given sinks.
func NewCompositeEmitter(sinks ...Emitter) *CompositeEmitter {
	return &CompositeEmitter{sinks: sinks}
}

func (c *CompositeEmitter) EmitTaskQueued(ctx context.Context, t *task.Task) {
	for _, s := range c.sinks {
		s.EmitTaskQueued(ctx, t)
	}
}

func (c *CompositeEmitter) EmitTaskCoalesced(ctx context.Context, t *task.Task) {
	for _, s := range c.sinks {
		s.EmitTaskCoalesced(ctx, t)
	}
}

func (c *CompositeEmitter) EmitCacheHit(ctx context.Context, fingerprint string) {
	for _, s := range c.sinks {
		s.EmitCacheHit(ctx, fingerprint)
	}
}

func (c *CompositeEmitter) EmitTaskStarted(ctx context.Context, t *task.Task, workerID string) {
	for _, s := range c.sinks {
		s.EmitTaskStarted(ctx, t, workerID)
	}
}

func (c *CompositeEmitter) EmitTaskCompleted(ctx context.Context, t *task.Task, d time.Duration) {
	for _, s := range c.sinks {
		s.EmitTaskCompleted(ctx, t, d)
	}
}

func (c *CompositeEmitter) EmitTaskFailed(ctx context.Context, t *task.Task, d time.Duration, err error) {
	for _, s := range c.sinks {
		s.EmitTaskFailed(ctx, t, d, err)
	}
}

// StoreEmitter records task lifecycle events in the event store.
type StoreEmitter struct {
	store eventstore.Store
}

// NewStoreEmitter creates an emitter backed by the given store.
func NewStoreEmitter(store eventstore.Store) *StoreEmitter {
	return &StoreEmitter{store: store}
}

func (e *StoreEmitter) append(ctx context.Context, fingerprint, eventType string, payload any, metadata map[string]string) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to marshal event payload", "event_type", eventType, logfields.Error(err))
		return
	}
	if err := e.store.Append(ctx, fingerprint, eventType, data, metadata); err != nil {
		slog.Warn("Failed to append task event",
			"event_type", eventType,
			logfields.Fingerprint(fingerprint),
			logfields.Error(err))
	}
}

func (e *StoreEmitter) EmitTaskQueued(ctx context.Context, t *task.Task) {
	e.append(ctx, t.Fingerprint, eventstore.TypeTaskQueued, eventstore.TaskQueuedPayload{
		TaskID:   t.ID,
		FontName: t.Config.Name,
		Glyphs:   len(t.Config.Glyphs),
	}, nil)
}

func (e *StoreEmitter) EmitTaskCoalesced(ctx context.Context, t *task.Task) {
	e.append(ctx, t.Fingerprint, eventstore.TypeTaskCoalesced, eventstore.TaskQueuedPayload{
		TaskID:   t.ID,
		FontName: t.Config.Name,
		Glyphs:   len(t.Config.Glyphs),
	}, nil)
}

func (e *StoreEmitter) EmitCacheHit(ctx context.Context, fingerprint string) {
	e.append(ctx, fingerprint, eventstore.TypeCacheHit, struct{}{}, nil)
}

func (e *StoreEmitter) EmitTaskStarted(ctx context.Context, t *task.Task, workerID string) {
	e.append(ctx, t.Fingerprint, eventstore.TypeTaskStarted, eventstore.TaskQueuedPayload{
		TaskID:   t.ID,
		FontName: t.Config.Name,
		Glyphs:   len(t.Config.Glyphs),
	}, map[string]string{"worker": workerID})
}

func (e *StoreEmitter) EmitTaskCompleted(ctx context.Context, t *task.Task, d time.Duration) {
	e.append(ctx, t.Fingerprint, eventstore.TypeTaskCompleted, eventstore.TaskFinishedPayload{
		TaskID:     t.ID,
		DurationMS: d.Milliseconds(),
		OutputPath: t.OutputPath,
	}, nil)
}

func (e *StoreEmitter) EmitTaskFailed(ctx context.Context, t *task.Task, d time.Duration, err error) {
	payload := eventstore.TaskFinishedPayload{
		TaskID:     t.ID,
		DurationMS: d.Milliseconds(),
	}
	if err != nil {
		payload.Error = err.Error()
	}
	e.append(ctx, t.Fingerprint, eventstore.TypeTaskFailed, payload, nil)
}
