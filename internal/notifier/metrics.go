package notifier

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/jobsched/internal/execution"
)

// Metrics is a Notifier that records Prometheus counters/gauges for
// registry size and job outcomes, using a Namespace/Subsystem collector
// layout ("jobsched_scheduler_*", "jobsched_job_*").
type Metrics struct {
	registered atomic.Bool

	definitionCount prometheus.Gauge
	jobsStarted     *prometheus.CounterVec
	jobsCompleted   *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
}

// NewMetrics builds a Metrics notifier. Call Register before use.
func NewMetrics() *Metrics {
	return &Metrics{
		definitionCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jobsched",
			Subsystem: "scheduler",
			Name:      "definitions",
			Help:      "Number of job definitions currently registered.",
		}),
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobsched",
			Subsystem: "job",
			Name:      "starts_total",
			Help:      "Number of job executions started.",
		}, []string{"definition_id"}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobsched",
			Subsystem: "job",
			Name:      "completions_total",
			Help:      "Number of job executions completed, by outcome.",
		}, []string{"definition_id", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jobsched",
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Observed job execution duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"definition_id"}),
	}
}

// Register registers the collectors with r. Safe to call more than once;
// an AlreadyRegisteredError is swallowed.
func (m *Metrics) Register(r prometheus.Registerer) error {
	if m.registered.Load() {
		return nil
	}
	for _, c := range []prometheus.Collector{m.definitionCount, m.jobsStarted, m.jobsCompleted, m.jobDuration} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	m.registered.Store(true)
	return nil
}

func (m *Metrics) String() string { return "metrics" }

func (m *Metrics) DefinitionAdded(DefinitionInfo)   { m.definitionCount.Inc() }
func (m *Metrics) DefinitionRemoved(DefinitionInfo) { m.definitionCount.Dec() }
func (m *Metrics) SchedulerStarted()                {}
func (m *Metrics) SchedulerStopped()                {}

func (m *Metrics) JobStarted(ex *execution.Execution) {
	m.jobsStarted.WithLabelValues(ex.DefinitionID()).Inc()
}

func (m *Metrics) JobCompleted(ex *execution.Execution) {
	outcome := "success"
	if !ex.Success() {
		outcome = "error"
	}
	m.jobsCompleted.WithLabelValues(ex.DefinitionID(), outcome).Inc()
	if dur, ok := ex.Duration(); ok {
		m.jobDuration.WithLabelValues(ex.DefinitionID()).Observe(dur.Seconds())
	}
}
