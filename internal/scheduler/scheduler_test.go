package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/fontbuilder/internal/artifact"
	"git.home.luguber.info/inful/fontbuilder/internal/errors"
	"git.home.luguber.info/inful/fontbuilder/internal/font"
	"git.home.luguber.info/inful/fontbuilder/internal/queue"
	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

// fakeGenerator stands in for the external generator: it counts invocations,
// optionally blocks on a gate, and writes the artifact unless told to fail.
type fakeGenerator struct {
	invocations atomic.Int64
	gate        chan struct{} // when non-nil, Run blocks until closed
	fail        bool
}

func (g *fakeGenerator) Run(_ context.Context, t *task.Task) error {
	g.invocations.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	if g.fail {
		return errors.GeneratorFailed(t.Fingerprint, os.ErrPermission)
	}
	if err := os.MkdirAll(filepath.Dir(t.OutputPath), 0o750); err != nil {
		return err
	}
	return os.WriteFile(t.OutputPath, []byte("zip"), 0o640)
}

type testEnv struct {
	sched *Scheduler
	pool  *queue.Pool
	gen   *fakeGenerator
	root  string
}

func newTestEnv(t *testing.T, workers int, gen *fakeGenerator) *testEnv {
	t.Helper()
	root := t.TempDir()
	pool := queue.New(workers, 64, gen)
	pool.Start(t.Context())
	t.Cleanup(func() { pool.Stop(context.Background()) })

	sched := New(&font.GlyphNormalizer{}, pool, "v3",
		filepath.Join(root, "artifacts"), filepath.Join(root, "scratch"))
	return &testEnv{sched: sched, pool: pool, gen: gen, root: root}
}

func testRequest() font.Request {
	return font.Request{Name: "icons", Glyphs: []string{"a", "b", "c"}}
}

func TestSubmitAndWaitSuccess(t *testing.T) {
	env := newTestEnv(t, 2, &fakeGenerator{})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	fp, info, err := env.sched.SubmitAndWait(ctx, testRequest())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Len(t, fp, 64)
	assert.Equal(t, filepath.Join(env.root, "artifacts", fp[0:2], fp[2:4], fp+".zip"), info.Path)

	data, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))
	assert.EqualValues(t, 1, env.gen.invocations.Load())
}

func TestFingerprintIsStableAcrossSemanticallyEqualRequests(t *testing.T) {
	env := newTestEnv(t, 2, &fakeGenerator{})
	ctx := t.Context()

	fp1, err := env.sched.SubmitAsync(ctx, font.Request{Name: "icons", Glyphs: []string{"c", "a", "b"}})
	require.NoError(t, err)
	fp2, err := env.sched.SubmitAsync(ctx, font.Request{Name: "icons", Glyphs: []string{"a", "b", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2, "order and duplicates must not change the fingerprint")
}

func TestCoalescingSingleInvocation(t *testing.T) {
	const k = 8
	gen := &fakeGenerator{gate: make(chan struct{})}
	env := newTestEnv(t, 4, gen)
	ctx := t.Context()

	outcomes := make(chan task.Outcome, k)
	fingerprints := make([]string, k)

	errs := make(chan error, k)
	var wg sync.WaitGroup
	wg.Add(k)
	for i := range k {
		go func() {
			defer wg.Done()
			fp, err := env.sched.Submit(ctx, testRequest(), Options{
				OnDone: func(o task.Outcome) { outcomes <- o },
			})
			errs <- err
			fingerprints[i] = fp
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// All submissions share one fingerprint and one in-flight task.
	for _, fp := range fingerprints[1:] {
		assert.Equal(t, fingerprints[0], fp)
	}
	summary, ok := env.sched.FindTask(fingerprints[0])
	require.True(t, ok)
	assert.Equal(t, k, summary.Waiters)

	close(gen.gate)

	for range k {
		select {
		case o := <-outcomes:
			assert.NoError(t, o.Err)
			assert.Equal(t, fingerprints[0], o.Fingerprint)
			assert.NotEmpty(t, o.OutputPath)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter never notified")
		}
	}

	assert.EqualValues(t, 1, gen.invocations.Load(), "generator must run exactly once for K duplicates")
}

func TestCheckResultInFlightPrecedesFilesystem(t *testing.T) {
	gen := &fakeGenerator{gate: make(chan struct{})}
	env := newTestEnv(t, 2, gen)
	ctx := t.Context()

	fp, err := env.sched.SubmitAsync(ctx, testRequest())
	require.NoError(t, err)

	// Plant an artifact at the final path while the task is in flight, as a
	// prior run could have. The in-flight check must still win.
	outputPath := artifact.OutputPath(filepath.Join(env.root, "artifacts"), fp)
	require.NoError(t, os.MkdirAll(filepath.Dir(outputPath), 0o750))
	require.NoError(t, os.WriteFile(outputPath, []byte("old"), 0o640))

	info, err := env.sched.CheckResult(fp)
	require.NoError(t, err)
	assert.Nil(t, info, "in-flight task must mask the on-disk artifact")

	done := make(chan struct{})
	_, err = env.sched.Submit(ctx, testRequest(), Options{
		OnDone: func(task.Outcome) { close(done) },
	})
	require.NoError(t, err)

	close(gen.gate)
	<-done

	info, err = env.sched.CheckResult(fp)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, outputPath, info.Path)
	assert.False(t, env.sched.InFlight(fp), "table entry must be gone after completion")
}

func TestCacheHitSkipsTaskCreation(t *testing.T) {
	env := newTestEnv(t, 2, &fakeGenerator{})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	fp, _, err := env.sched.SubmitAndWait(ctx, testRequest())
	require.NoError(t, err)
	require.EqualValues(t, 1, env.gen.invocations.Load())

	var state AcceptState
	var got task.Outcome
	_, err = env.sched.Submit(ctx, testRequest(), Options{
		OnAccepted: func(_ string, s AcceptState) { state = s },
		OnDone:     func(o task.Outcome) { got = o },
	})
	require.NoError(t, err)

	assert.Equal(t, StateCacheHit, state)
	assert.NoError(t, got.Err)
	assert.NotEmpty(t, got.OutputPath)
	assert.EqualValues(t, 1, env.gen.invocations.Load(), "cache hit must not re-invoke the generator")
	assert.False(t, env.sched.InFlight(fp))
}

func TestFailureFansOutAndIsNotCached(t *testing.T) {
	gen := &fakeGenerator{fail: true, gate: make(chan struct{})}
	env := newTestEnv(t, 2, gen)
	ctx := t.Context()

	const k = 3
	outcomes := make(chan task.Outcome, k)
	var fp string
	for range k {
		var err error
		fp, err = env.sched.Submit(ctx, testRequest(), Options{
			OnDone: func(o task.Outcome) { outcomes <- o },
		})
		require.NoError(t, err)
	}
	close(gen.gate)

	for range k {
		select {
		case o := <-outcomes:
			require.Error(t, o.Err)
			assert.True(t, errors.IsCategory(o.Err, errors.CategoryExecution))
			assert.Empty(t, o.OutputPath)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter never notified of failure")
		}
	}

	// Entry removed; a later submission creates a fresh task.
	assert.False(t, env.sched.InFlight(fp))
	gen.fail = false
	gen.gate = nil

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, info, err := env.sched.SubmitAndWait(waitCtx, testRequest())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.EqualValues(t, 2, gen.invocations.Load(), "failure must not be cached")
}

func TestInvalidRequestIsSynchronous(t *testing.T) {
	env := newTestEnv(t, 2, &fakeGenerator{})
	ctx := t.Context()

	_, err := env.sched.SubmitAsync(ctx, font.Request{Glyphs: nil})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.EqualValues(t, 0, env.gen.invocations.Load(), "no task may be created for invalid requests")
}

func TestRegisterOnlyNotificationStates(t *testing.T) {
	gen := &fakeGenerator{gate: make(chan struct{})}
	env := newTestEnv(t, 2, gen)
	ctx := t.Context()

	var first AcceptState
	var acceptedFP string
	fp, err := env.sched.Submit(ctx, testRequest(), Options{
		OnAccepted: func(gotFP string, s AcceptState) {
			first = s
			acceptedFP = gotFP
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StateCreated, first)
	assert.Equal(t, fp, acceptedFP)

	var second AcceptState
	_, err = env.sched.Submit(ctx, testRequest(), Options{
		OnAccepted: func(_ string, s AcceptState) { second = s },
	})
	require.NoError(t, err)
	assert.Equal(t, StateCoalesced, second)

	close(gen.gate)
}

func TestFindTaskAbsent(t *testing.T) {
	env := newTestEnv(t, 1, &fakeGenerator{})
	_, ok := env.sched.FindTask("0000000000000000000000000000000000000000000000000000000000000000")
	assert.False(t, ok)
}
