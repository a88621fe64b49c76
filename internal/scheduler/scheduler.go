// Package scheduler is the facade over fingerprinting, cache probing, task
// coalescing and the worker pool. A single control-path mutex serializes the
// lookup/probe/create sequence so at most one task ever exists per
// fingerprint; that coalescing guarantee is the central correctness property
// of the whole system.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/fontbuilder/internal/artifact"
	"git.home.luguber.info/inful/fontbuilder/internal/errors"
	"git.home.luguber.info/inful/fontbuilder/internal/font"
	"git.home.luguber.info/inful/fontbuilder/internal/logfields"
	"git.home.luguber.info/inful/fontbuilder/internal/metrics"
	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

// AcceptState tells a register-only caller how its submission was disposed of
// at the moment the fingerprint became known.
type AcceptState string

const (
	StateCreated   AcceptState = "created"   // new task admitted to the pool
	StateCoalesced AcceptState = "coalesced" // joined an in-flight task
	StateCacheHit  AcceptState = "cache_hit" // artifact already on disk
)

// Options selects when a submission's caller wants to be notified. Both
// callbacks may be set on the same call.
type Options struct {
	// OnAccepted fires as soon as the fingerprint is known (register-only
	// notification), before any generation work completes.
	OnAccepted func(fingerprint string, state AcceptState)

	// OnDone fires when the artifact is actually ready or generation failed
	// (await-completion notification). Exactly once per submission.
	OnDone task.Waiter
}

// TaskSummary is a read-only snapshot of an in-flight task.
type TaskSummary struct {
	ID          string
	Fingerprint string
	FontName    string
	CreatedAt   time.Time
	Waiters     int
}

// ArtifactInfo describes a finished artifact on disk.
type ArtifactInfo struct {
	Fingerprint string
	Path        string
}

// Pool is the subset of the worker pool the scheduler needs.
type Pool interface {
	Enqueue(t *task.Task, done func(err error, d time.Duration)) error
}

// Scheduler coordinates request intake, deduplication and completion fan-out.
// Construct one instance at startup and inject it wherever submissions enter;
// there is deliberately no package-level state.
type Scheduler struct {
	normalizer  font.Normalizer
	pool        Pool
	toolVersion string
	outputRoot  string
	scratchRoot string

	// mu serializes the control path: in-flight lookup, cache probe and task
	// creation must be atomic with respect to other submissions. Nothing
	// slower than a metadata check runs under it.
	mu    sync.Mutex
	table *task.Table

	recorder metrics.Recorder
	emitter  EventEmitter
}

// New creates a scheduler. toolVersion feeds fingerprinting: bumping it
// invalidates every previously cached artifact.
func New(normalizer font.Normalizer, pool Pool, toolVersion, outputRoot, scratchRoot string) *Scheduler {
	if normalizer == nil {
		panic("scheduler.New: normalizer is required")
	}
	if pool == nil {
		panic("scheduler.New: pool is required")
	}
	return &Scheduler{
		normalizer:  normalizer,
		pool:        pool,
		toolVersion: toolVersion,
		outputRoot:  outputRoot,
		scratchRoot: scratchRoot,
		table:       task.NewTable(),
		recorder:    metrics.NoopRecorder{},
		emitter:     NoopEmitter{},
	}
}

// SetRecorder injects a metrics recorder (optional).
func (s *Scheduler) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
}

// SetEventEmitter injects a lifecycle event emitter (optional).
func (s *Scheduler) SetEventEmitter(e EventEmitter) {
	if e == nil {
		e = NoopEmitter{}
	}
	s.emitter = e
}

// InFlight reports whether a task for the fingerprint is currently registered.
func (s *Scheduler) InFlight(fingerprint string) bool {
	_, ok := s.table.Lookup(fingerprint)
	return ok
}

// TaskCount returns the number of in-flight tasks.
func (s *Scheduler) TaskCount() int {
	return s.table.Len()
}

// Submit normalizes and fingerprints a request, then either reports a cache
// hit, joins the in-flight task for the fingerprint, or creates and enqueues
// a new task. The returned fingerprint identifies the submission in all
// cases. Errors returned synchronously (invalid request, saturated queue)
// mean no callback will ever fire.
func (s *Scheduler) Submit(ctx context.Context, req font.Request, opts Options) (string, error) {
	cfg, err := s.normalizer.Normalize(ctx, req)
	if err != nil {
		s.recorder.IncSubmission(metrics.SubmissionInvalid)
		if _, ok := err.(*errors.BuildError); ok {
			return "", err
		}
		return "", errors.InvalidRequestWrap(err)
	}
	if cfg == nil || len(cfg.Glyphs) == 0 {
		s.recorder.IncSubmission(metrics.SubmissionInvalid)
		return "", errors.InvalidRequest("no glyphs selected")
	}

	fingerprint, err := artifact.Fingerprint(s.toolVersion, cfg)
	if err != nil {
		s.recorder.IncSubmission(metrics.SubmissionInvalid)
		return "", err
	}
	outputPath := artifact.OutputPath(s.outputRoot, fingerprint)

	state, err := s.admit(ctx, req, cfg, fingerprint, outputPath, opts)
	if err != nil {
		return "", err
	}

	if opts.OnAccepted != nil {
		opts.OnAccepted(fingerprint, state)
	}
	if state == StateCacheHit && opts.OnDone != nil {
		opts.OnDone(task.Outcome{Fingerprint: fingerprint, OutputPath: outputPath})
	}
	return fingerprint, nil
}

// admit runs the serialized portion of Submit: in-flight lookup first, cache
// probe second, task creation third. No other submission can interleave
// between those steps.
func (s *Scheduler) admit(ctx context.Context, req font.Request, cfg *font.Config, fingerprint, outputPath string, opts Options) (AcceptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Coalesce onto an in-flight task.
	if existing, ok := s.table.Lookup(fingerprint); ok {
		if opts.OnDone != nil {
			existing.AddWaiter(opts.OnDone)
		}
		s.recorder.IncSubmission(metrics.SubmissionCoalesced)
		s.emitter.EmitTaskCoalesced(ctx, existing)
		slog.Debug("Coalesced duplicate request",
			logfields.Fingerprint(fingerprint),
			logfields.TaskID(existing.ID),
			logfields.Waiters(existing.WaiterCount()))
		return StateCoalesced, nil
	}

	// 2. Cache probe on the final output path. Safe only because step 1 ran
	// under the same critical section: nothing can be half-written here.
	exists, err := artifact.Exists(outputPath)
	if err != nil {
		return "", err
	}
	if exists {
		s.recorder.IncSubmission(metrics.SubmissionCacheHit)
		s.emitter.EmitCacheHit(ctx, fingerprint)
		return StateCacheHit, nil
	}

	// 3. Create, register and enqueue a fresh task.
	t := task.New(fingerprint, req, cfg, artifact.ScratchDir(s.scratchRoot, fingerprint), outputPath)
	if opts.OnDone != nil {
		t.AddWaiter(opts.OnDone)
	}
	s.table.Register(t)
	s.recorder.SetInFlight(s.table.Len())

	if err := s.pool.Enqueue(t, func(runErr error, d time.Duration) {
		s.complete(t, runErr, d)
	}); err != nil {
		s.table.Remove(fingerprint)
		s.recorder.SetInFlight(s.table.Len())
		s.recorder.IncSubmission(metrics.SubmissionRejected)
		return "", errors.QueueSaturated().WithContext("fingerprint", fingerprint)
	}

	s.recorder.IncSubmission(metrics.SubmissionCreated)
	s.emitter.EmitTaskQueued(ctx, t)
	slog.Info("Task queued",
		logfields.TaskID(t.ID),
		logfields.Fingerprint(fingerprint),
		logfields.FontName(cfg.Name),
		logfields.Glyphs(len(cfg.Glyphs)))
	return StateCreated, nil
}

// complete is the worker pool's completion signal. It captures the waiter
// list and drops the table entry in one critical section, then fans the
// shared outcome out to every waiter. A submission arriving after the entry
// is gone either sees the artifact on disk (success) or starts a fresh task
// (failure): failures are never cached.
func (s *Scheduler) complete(t *task.Task, runErr error, d time.Duration) {
	outcome := task.Outcome{
		Fingerprint: t.Fingerprint,
		OutputPath:  t.OutputPath,
		Err:         runErr,
		Duration:    d,
	}
	if runErr != nil {
		outcome.OutputPath = ""
	}

	s.mu.Lock()
	waiters := t.Waiters()
	s.table.Remove(t.Fingerprint)
	s.recorder.SetInFlight(s.table.Len())
	s.mu.Unlock()

	ctx := context.Background()
	if runErr != nil {
		s.emitter.EmitTaskFailed(ctx, t, d, runErr)
		slog.Warn("Task failed",
			logfields.TaskID(t.ID),
			logfields.Fingerprint(t.Fingerprint),
			logfields.DurationMS(float64(d.Milliseconds())),
			logfields.Waiters(len(waiters)),
			logfields.Error(runErr))
	} else {
		s.emitter.EmitTaskCompleted(ctx, t, d)
	}

	for _, w := range waiters {
		w(outcome)
	}
}

// FindTask peeks at the in-flight state for a fingerprint.
func (s *Scheduler) FindTask(fingerprint string) (*TaskSummary, bool) {
	t, ok := s.table.Lookup(fingerprint)
	if !ok {
		return nil, false
	}
	return &TaskSummary{
		ID:          t.ID,
		Fingerprint: t.Fingerprint,
		FontName:    t.Config.Name,
		CreatedAt:   t.CreatedAt,
		Waiters:     t.WaiterCount(),
	}, true
}

// CheckResult returns artifact info only when no in-flight task holds the
// fingerprint and the file exists on disk. The in-flight check runs first,
// under the control-path lock: an existing file may be a leftover from a
// prior tool version run, and the task currently rebuilding it must win.
func (s *Scheduler) CheckResult(fingerprint string) (*ArtifactInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, inFlight := s.table.Lookup(fingerprint); inFlight {
		return nil, nil
	}

	outputPath := artifact.OutputPath(s.outputRoot, fingerprint)
	exists, err := artifact.Exists(outputPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &ArtifactInfo{Fingerprint: fingerprint, Path: outputPath}, nil
}

// SubmitAsync is the register-only entry point: it resolves as soon as the
// fingerprint is known, without waiting for generation.
func (s *Scheduler) SubmitAsync(ctx context.Context, req font.Request) (string, error) {
	return s.Submit(ctx, req, Options{})
}

// SubmitAndWait blocks until the artifact is ready or generation failed. The
// wait happens outside the control path; only the caller's goroutine parks.
func (s *Scheduler) SubmitAndWait(ctx context.Context, req font.Request) (string, *ArtifactInfo, error) {
	done := make(chan task.Outcome, 1)
	fingerprint, err := s.Submit(ctx, req, Options{
		OnDone: func(o task.Outcome) { done <- o },
	})
	if err != nil {
		return "", nil, err
	}

	select {
	case o := <-done:
		if o.Err != nil {
			return fingerprint, nil, o.Err
		}
		return fingerprint, &ArtifactInfo{Fingerprint: fingerprint, Path: o.OutputPath}, nil
	case <-ctx.Done():
		// The task itself keeps running; only this caller stops waiting.
		return fingerprint, nil, ctx.Err()
	}
}
