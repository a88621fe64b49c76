package daemon

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/fontbuilder/internal/eventstore"
	"git.home.luguber.info/inful/fontbuilder/internal/font"
	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

type countingEmitter struct {
	queued, coalesced, cacheHit, started, completed, failed int
}

func (c *countingEmitter) EmitTaskQueued(context.Context, *task.Task)    { c.queued++ }
func (c *countingEmitter) EmitTaskCoalesced(context.Context, *task.Task) { c.coalesced++ }
func (c *countingEmitter) EmitCacheHit(context.Context, string)          { c.cacheHit++ }
func (c *countingEmitter) EmitTaskStarted(context.Context, *task.Task, string) {
	c.started++
}
func (c *countingEmitter) EmitTaskCompleted(context.Context, *task.Task, time.Duration) {
	c.completed++
}
func (c *countingEmitter) EmitTaskFailed(context.Context, *task.Task, time.Duration, error) {
	c.failed++
}

func testTask(t *testing.T) *task.Task {
	t.Helper()
	cfg := &font.Config{Name: "icons", Glyphs: []string{"a", "b"}}
	return task.New("ab12cd", font.Request{Glyphs: []string{"a", "b"}}, cfg, "/tmp/scratch", "/tmp/out.zip")
}

func TestCompositeEmitterFansOut(t *testing.T) {
	a := &countingEmitter{}
	b := &countingEmitter{}
	composite := NewCompositeEmitter(a, b)

	ctx := context.Background()
	tk := testTask(t)

	composite.EmitTaskQueued(ctx, tk)
	composite.EmitTaskStarted(ctx, tk, "worker-1")
	composite.EmitTaskCompleted(ctx, tk, time.Second)
	composite.EmitTaskFailed(ctx, tk, time.Second, assert.AnError)
	composite.EmitCacheHit(ctx, tk.Fingerprint)
	composite.EmitTaskCoalesced(ctx, tk)

	for _, e := range []*countingEmitter{a, b} {
		assert.Equal(t, 1, e.queued)
		assert.Equal(t, 1, e.started)
		assert.Equal(t, 1, e.completed)
		assert.Equal(t, 1, e.failed)
		assert.Equal(t, 1, e.cacheHit)
		assert.Equal(t, 1, e.coalesced)
	}
}

func TestStoreEmitterPersistsLifecycle(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer store.Close()

	emitter := NewStoreEmitter(store)
	ctx := context.Background()
	tk := testTask(t)

	emitter.EmitTaskQueued(ctx, tk)
	emitter.EmitTaskStarted(ctx, tk, "worker-2")
	emitter.EmitTaskCompleted(ctx, tk, 1500*time.Millisecond)

	events, err := store.GetByFingerprint(ctx, tk.Fingerprint)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, eventstore.TypeTaskQueued, events[0].Type())
	assert.Equal(t, eventstore.TypeTaskStarted, events[1].Type())
	assert.Equal(t, eventstore.TypeTaskCompleted, events[2].Type())
	assert.Equal(t, "worker-2", events[1].Metadata()["worker"])

	var payload eventstore.TaskFinishedPayload
	require.NoError(t, json.Unmarshal(events[2].Payload(), &payload))
	assert.Equal(t, tk.ID, payload.TaskID)
	assert.Equal(t, int64(1500), payload.DurationMS)
	assert.Equal(t, tk.OutputPath, payload.OutputPath)
}

func TestStoreEmitterFailureRecordsError(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer store.Close()

	emitter := NewStoreEmitter(store)
	ctx := context.Background()
	tk := testTask(t)

	emitter.EmitTaskFailed(ctx, tk, 200*time.Millisecond, assert.AnError)

	events, err := store.GetByFingerprint(ctx, tk.Fingerprint)
	require.NoError(t, err)
	require.Len(t, events, 1)

	var payload eventstore.TaskFinishedPayload
	require.NoError(t, json.Unmarshal(events[0].Payload(), &payload))
	assert.Equal(t, assert.AnError.Error(), payload.Error)
}
