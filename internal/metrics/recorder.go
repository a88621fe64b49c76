package metrics

import "time"

// SubmissionResult enumerates how the scheduler disposed of a submission.
type SubmissionResult string

const (
	SubmissionCreated   SubmissionResult = "created"
	SubmissionCoalesced SubmissionResult = "coalesced"
	SubmissionCacheHit  SubmissionResult = "cache_hit"
	SubmissionInvalid   SubmissionResult = "invalid"
	SubmissionRejected  SubmissionResult = "rejected"
)

// Recorder defines observability hooks for scheduler and task metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveTaskDuration(d time.Duration, success bool)
	IncTaskOutcome(success bool)
	IncSubmission(result SubmissionResult)
	SetQueueDepth(n int)
	SetInFlight(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(time.Duration, bool) {}
func (NoopRecorder) IncTaskOutcome(bool)                     {}
func (NoopRecorder) IncSubmission(SubmissionResult)          {}
func (NoopRecorder) SetQueueDepth(int)                       {}
func (NoopRecorder) SetInFlight(int)                         {}
