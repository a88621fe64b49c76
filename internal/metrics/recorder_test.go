package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveTaskDuration(time.Second, true)
	r.IncTaskOutcome(false)
	r.IncSubmission(SubmissionCoalesced)
	r.SetQueueDepth(3)
	r.SetInFlight(1)
}

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncSubmission(SubmissionCreated)
	pr.IncSubmission(SubmissionCreated)
	pr.IncSubmission(SubmissionCacheHit)
	pr.IncTaskOutcome(true)
	pr.IncTaskOutcome(false)
	pr.SetQueueDepth(5)
	pr.SetInFlight(2)
	pr.ObserveTaskDuration(250*time.Millisecond, true)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["fontbuilder_submissions_total"])
	assert.True(t, names["fontbuilder_task_outcomes_total"])
	assert.True(t, names["fontbuilder_queue_depth"])
	assert.True(t, names["fontbuilder_tasks_in_flight"])

	assert.Equal(t, float64(2), testutil.ToFloat64(pr.submissions.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pr.submissions.WithLabelValues("cache_hit")))
	assert.Equal(t, float64(5), testutil.ToFloat64(pr.queueDepth))
}

func TestPrometheusRecorderNilSafety(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveTaskDuration(time.Second, true)
	pr.IncTaskOutcome(true)
	pr.IncSubmission(SubmissionInvalid)
	pr.SetQueueDepth(1)
	pr.SetInFlight(1)
}
