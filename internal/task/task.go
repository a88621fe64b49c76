// Package task holds the in-flight task model and the transient registry that
// coalesces duplicate requests. The table is rebuilt from scratch on startup;
// the filesystem is the only durable cache.
package task

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/fontbuilder/internal/font"
)

// Outcome is the shared result delivered to every waiter of a task. All
// waiters of one task receive the exact same outcome.
type Outcome struct {
	Fingerprint string
	OutputPath  string
	Err         error
	Duration    time.Duration
}

// Waiter is a completion callback registered on a task before or during its
// lifetime. Each waiter is invoked exactly once, after the external process
// has fully finished.
type Waiter func(Outcome)

// Task represents one in-flight build.
type Task struct {
	ID          string
	Fingerprint string
	Request     font.Request
	Config      *font.Config
	CreatedAt   time.Time
	ScratchDir  string
	OutputPath  string

	mu      sync.Mutex
	waiters []Waiter
}

// New creates a task for a fingerprint with its derived paths.
func New(fingerprint string, req font.Request, cfg *font.Config, scratchDir, outputPath string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Request:     req,
		Config:      cfg,
		CreatedAt:   time.Now(),
		ScratchDir:  scratchDir,
		OutputPath:  outputPath,
	}
}

// AddWaiter appends a completion callback to the task's waiter list.
func (t *Task) AddWaiter(w Waiter) {
	if w == nil {
		return
	}
	t.mu.Lock()
	t.waiters = append(t.waiters, w)
	t.mu.Unlock()
}

// Waiters returns a copy of the registered waiter list.
func (t *Task) Waiters() []Waiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Waiter, len(t.waiters))
	copy(out, t.waiters)
	return out
}

// WaiterCount returns the number of registered waiters.
func (t *Task) WaiterCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// Table is the transient fingerprint → task registry. All create/remove
// decisions are serialized by the scheduler's control path; the table's own
// lock only protects concurrent readers (peek operations, the sweeper).
type Table struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTable creates an empty task table.
func NewTable() *Table {
	return &Table{tasks: make(map[string]*Task)}
}

// Register inserts a task. Returns false if the fingerprint already holds a
// task; the scheduler's serialization makes that a programming error, not a
// runtime condition.
func (tb *Table) Register(t *Task) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if _, exists := tb.tasks[t.Fingerprint]; exists {
		return false
	}
	tb.tasks[t.Fingerprint] = t
	return true
}

// Lookup returns the in-flight task for a fingerprint, if any.
func (tb *Table) Lookup(fingerprint string) (*Task, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	t, ok := tb.tasks[fingerprint]
	return t, ok
}

// Remove deletes the entry for a fingerprint.
func (tb *Table) Remove(fingerprint string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	delete(tb.tasks, fingerprint)
}

// Len returns the number of in-flight tasks.
func (tb *Table) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return len(tb.tasks)
}

// Fingerprints returns the fingerprints of all in-flight tasks.
func (tb *Table) Fingerprints() []string {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	out := make([]string, 0, len(tb.tasks))
	for fp := range tb.tasks {
		out = append(out, fp)
	}
	return out
}
