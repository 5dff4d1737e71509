// Package metrics exports Prometheus metrics for task runs and capability calls.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smhanov/scholar"
)

const namespace = "scholar"

// Outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomeGuidance  = "guidance"
	OutcomeError     = "error"
)

// Recorder owns a registry and the scholar collectors.
type Recorder struct {
	registry *prometheus.Registry

	taskRuns      *prometheus.CounterVec
	taskLatency   *prometheus.HistogramVec
	taskCost      *prometheus.CounterVec
	searchCalls   *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec
	inflight      prometheus.Gauge
}

// New registers the collectors on a fresh registry together with the
// process and Go runtime collectors.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.taskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_runs_total",
		Help:      "Routed requests by task and outcome.",
	}, []string{"task", "outcome"})

	r.taskLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Time to answer a routed request.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"task"})

	r.taskCost = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_cost_dollars_total",
		Help:      "Model spend by task.",
	}, []string{"task"})

	r.searchCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capability",
		Name:      "calls_total",
		Help:      "Capability searches by name and status.",
	}, []string{"capability", "status"})

	r.searchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "capability",
		Name:      "duration_seconds",
		Help:      "Capability search latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"capability"})

	r.inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_in_flight",
		Help:      "Requests currently being answered.",
	})

	r.registry.MustRegister(
		r.taskRuns, r.taskLatency, r.taskCost,
		r.searchCalls, r.searchLatency, r.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// unknownTask labels requests whose task name is not supported.
const unknownTask = "unknown"

// taskLabel keeps the task label set fixed whatever name a caller sends.
func taskLabel(task scholar.Task) string {
	if t, ok := scholar.ParseTask(string(task)); ok {
		return string(t)
	}
	return unknownTask
}

// TaskStarted marks a request as in flight and returns a function that
// records its outcome and duration.
func (r *Recorder) TaskStarted(task scholar.Task) func(outcome string) {
	label := taskLabel(task)
	r.inflight.Inc()
	start := time.Now()
	return func(outcome string) {
		r.inflight.Dec()
		r.taskRuns.WithLabelValues(label, outcome).Inc()
		r.taskLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
}

// AddCost adds dollars spent on task.
func (r *Recorder) AddCost(task scholar.Task, dollars float64) {
	if dollars > 0 {
		r.taskCost.WithLabelValues(taskLabel(task)).Add(dollars)
	}
}

// Instrument wraps the capability's provider so each search is counted.
func (r *Recorder) Instrument(c scholar.Capability) scholar.Capability {
	if c.Provider == nil {
		return c
	}
	c.Provider = &instrumentedSearch{name: c.Name, next: c.Provider, rec: r}
	return c
}

type instrumentedSearch struct {
	name string
	next scholar.SearchProvider
	rec  *Recorder
}

func (s *instrumentedSearch) Search(ctx context.Context, query string) ([]scholar.SearchResult, error) {
	start := time.Now()
	results, err := s.next.Search(ctx, query)
	s.rec.searchLatency.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.rec.searchCalls.WithLabelValues(s.name, status).Inc()
	return results, err
}
