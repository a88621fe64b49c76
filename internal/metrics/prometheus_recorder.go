package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once         sync.Once
	taskDuration *prom.HistogramVec
	taskOutcome  *prom.CounterVec
	submissions  *prom.CounterVec
	queueDepth   prom.Gauge
	inFlight     prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.taskDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "fontbuilder",
			Name:      "task_duration_seconds",
			Help:      "Duration of font generation tasks",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.taskOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fontbuilder",
			Name:      "task_outcomes_total",
			Help:      "Task outcomes by final status",
		}, []string{"result"})
		pr.submissions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "fontbuilder",
			Name:      "submissions_total",
			Help:      "Submission dispositions (created, coalesced, cache_hit, invalid, rejected)",
		}, []string{"result"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fontbuilder",
			Name:      "queue_depth",
			Help:      "Number of tasks waiting in the intake queue",
		})
		pr.inFlight = prom.NewGauge(prom.GaugeOpts{
			Namespace: "fontbuilder",
			Name:      "tasks_in_flight",
			Help:      "Number of tasks currently registered in the task table",
		})
		reg.MustRegister(pr.taskDuration, pr.taskOutcome, pr.submissions, pr.queueDepth, pr.inFlight)
	})
	return pr
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (p *PrometheusRecorder) ObserveTaskDuration(d time.Duration, success bool) {
	if p == nil || p.taskDuration == nil {
		return
	}
	p.taskDuration.WithLabelValues(resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskOutcome(success bool) {
	if p == nil || p.taskOutcome == nil {
		return
	}
	p.taskOutcome.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncSubmission(result SubmissionResult) {
	if p == nil || p.submissions == nil {
		return
	}
	p.submissions.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) SetInFlight(n int) {
	if p == nil || p.inFlight == nil {
		return
	}
	p.inFlight.Set(float64(n))
}
