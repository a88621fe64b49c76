// Package queue provides the bounded-concurrency worker pool that executes
// font generation tasks. At most N tasks run simultaneously; intake is a
// generously buffered channel so enqueueing never blocks the scheduler's
// control path.
package queue

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"git.home.luguber.info/inful/fontbuilder/internal/logfields"
	"git.home.luguber.info/inful/fontbuilder/internal/metrics"
	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

// JobStatus represents the current status of a queued job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job wraps one task admitted to the pool together with its exactly-once
// completion signal.
type Job struct {
	Task        *task.Task
	Status      JobStatus
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	Error       string

	// done is invoked exactly once per job, after the runner has fully
	// finished (successfully or not).
	done func(err error, d time.Duration)
}

// Runner executes one task to completion.
type Runner interface {
	Run(ctx context.Context, t *task.Task) error
}

// TaskEventEmitter abstracts event emission for task start events. This
// allows the pool to emit events without depending on a daemon implementation.
type TaskEventEmitter interface {
	EmitTaskStarted(ctx context.Context, t *task.Task, workerID string)
}

// Pool manages the queue of pending tasks and the fixed set of workers.
type Pool struct {
	jobs     chan *Job
	workers  int
	maxSize  int
	mu       sync.RWMutex
	active   map[string]*Job
	history  []*Job
	histSize int
	stopChan chan struct{}
	wg       sync.WaitGroup
	runner   Runner

	recorder metrics.Recorder
	emitter  TaskEventEmitter
}

// New creates a worker pool with the given concurrency and intake capacity.
// workers defaults to the host processing-unit count, maxSize to 4096.
func New(workers, maxSize int, runner Runner) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if maxSize <= 0 {
		maxSize = 4096
	}
	if runner == nil {
		panic("queue.New: runner is required")
	}

	return &Pool{
		jobs:     make(chan *Job, maxSize),
		workers:  workers,
		maxSize:  maxSize,
		active:   make(map[string]*Job),
		history:  make([]*Job, 0),
		histSize: 50,
		stopChan: make(chan struct{}),
		runner:   runner,
		recorder: metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder (optional).
func (p *Pool) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	p.recorder = r
}

// SetEventEmitter injects a task event emitter (optional).
func (p *Pool) SetEventEmitter(e TaskEventEmitter) {
	p.emitter = e
}

// Workers returns the configured concurrency limit.
func (p *Pool) Workers() int { return p.workers }

// Start begins processing tasks with the configured number of workers.
func (p *Pool) Start(ctx context.Context) {
	slog.Info("Starting worker pool", "workers", p.workers, "max_size", p.maxSize)
	for i := range p.workers {
		p.wg.Add(1)
		go p.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop shuts down the pool. Tasks already admitted run to completion; there
// is no mechanism to abort an in-progress generator invocation.
func (p *Pool) Stop(_ context.Context) {
	close(p.stopChan)
	p.wg.Wait()
}

// Length returns the current intake queue length.
func (p *Pool) Length() int {
	return len(p.jobs)
}

// ActiveCount returns the number of tasks currently executing.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.active)
}

// Enqueue admits a task with its completion signal. done is invoked exactly
// once when the runner finishes. Enqueue never blocks; a saturated intake
// queue is reported as an error.
func (p *Pool) Enqueue(t *task.Task, done func(err error, d time.Duration)) error {
	if t == nil {
		return stdErrors.New("task cannot be nil")
	}
	if done == nil {
		return stdErrors.New("completion signal is required")
	}

	job := &Job{
		Task:      t,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
		done:      done,
	}

	select {
	case p.jobs <- job:
		p.recorder.SetQueueDepth(len(p.jobs))
		return nil
	default:
		return stdErrors.New("task queue is full")
	}
}

// JobSnapshot returns a copy of a job by fingerprint (active first, then history).
func (p *Pool) JobSnapshot(fingerprint string) (*Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if j, ok := p.active[fingerprint]; ok {
		cp := *j
		return &cp, true
	}
	for _, j := range p.history {
		if j.Task.Fingerprint == fingerprint {
			cp := *j
			return &cp, true
		}
	}
	return nil, false
}

func (p *Pool) worker(ctx context.Context, workerID string) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case job := <-p.jobs:
			if job != nil {
				p.processJob(ctx, job, workerID)
			}
		}
	}
}

func (p *Pool) processJob(ctx context.Context, job *Job, workerID string) {
	startTime := time.Now()
	p.mu.Lock()
	job.StartedAt = &startTime
	job.Status = JobStatusRunning
	p.active[job.Task.Fingerprint] = job
	p.mu.Unlock()

	p.recorder.SetQueueDepth(len(p.jobs))
	if p.emitter != nil {
		p.emitter.EmitTaskStarted(ctx, job.Task, workerID)
	}
	slog.Debug("Task picked up",
		logfields.TaskID(job.Task.ID),
		logfields.Fingerprint(job.Task.Fingerprint),
		logfields.Worker(workerID))

	err := p.runner.Run(ctx, job.Task)

	duration := p.markJobCompleted(job, err)
	p.recorder.ObserveTaskDuration(duration, err == nil)
	p.recorder.IncTaskOutcome(err == nil)

	// The completion signal fires after the runner has fully finished; the
	// scheduler uses it to fan out to waiters and drop the table entry.
	job.done(err, duration)
}

func (p *Pool) markJobCompleted(job *Job, err error) time.Duration {
	endTime := time.Now()
	p.mu.Lock()
	job.CompletedAt = &endTime
	if job.StartedAt != nil {
		job.Duration = endTime.Sub(*job.StartedAt)
	}
	delete(p.active, job.Task.Fingerprint)
	p.addToHistory(job)
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusCompleted
	}
	duration := job.Duration
	p.mu.Unlock()

	return duration
}

func (p *Pool) addToHistory(job *Job) {
	p.history = append(p.history, job)
	if len(p.history) > p.histSize {
		copy(p.history, p.history[len(p.history)-p.histSize:])
		p.history = p.history[:p.histSize]
	}
}
