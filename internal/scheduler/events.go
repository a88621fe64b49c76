package scheduler

import (
	"context"
	"time"

	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

// EventEmitter abstracts lifecycle event emission so the scheduler does not
// depend on a concrete sink (sqlite store, NATS, both).
type EventEmitter interface {
	EmitTaskQueued(ctx context.Context, t *task.Task)
	EmitTaskCoalesced(ctx context.Context, t *task.Task)
	EmitCacheHit(ctx context.Context, fingerprint string)
	EmitTaskCompleted(ctx context.Context, t *task.Task, d time.Duration)
	EmitTaskFailed(ctx context.Context, t *task.Task, d time.Duration, err error)
}

// NoopEmitter is an EventEmitter that does nothing (default when events are
// not configured).
type NoopEmitter struct{}

func (NoopEmitter) EmitTaskQueued(context.Context, *task.Task)                     {}
func (NoopEmitter) EmitTaskCoalesced(context.Context, *task.Task)                  {}
func (NoopEmitter) EmitCacheHit(context.Context, string)                           {}
func (NoopEmitter) EmitTaskCompleted(context.Context, *task.Task, time.Duration)   {}
func (NoopEmitter) EmitTaskFailed(context.Context, *task.Task, time.Duration, error) {}
