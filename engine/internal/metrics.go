package internal

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewMetrics creates and registers the metrics of an engine. If the registerer is nil, nil is returned.
// All methods of [Metrics] can be called on a nil value.
func NewMetrics(registerer prometheus.Registerer, engineId string) (*Metrics, error) {
	if registerer == nil {
		return nil, nil
	}

	constLabels := prometheus.Labels{"engine_id": engineId}

	m := &Metrics{
		jobsLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bpmn_jobs_locked_total",
			Help:        "Total number of locked jobs",
			ConstLabels: constLabels,
		}),
		jobsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bpmn_jobs_executed_total",
			Help:        "Total number of successfully executed jobs",
			ConstLabels: constLabels,
		}, []string{"type"}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bpmn_jobs_failed_total",
			Help:        "Total number of failed job executions",
			ConstLabels: constLabels,
		}, []string{"type"}),
		jobsDead: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bpmn_jobs_dead_total",
			Help:        "Total number of jobs without retries left",
			ConstLabels: constLabels,
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "bpmn_job_execution_duration_seconds",
			Help:        "Duration of job executions",
			ConstLabels: constLabels,
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		processInstancesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bpmn_process_instances_started_total",
			Help:        "Total number of started process instances",
			ConstLabels: constLabels,
		}),
		processInstancesEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bpmn_process_instances_ended_total",
			Help:        "Total number of ended process instances",
			ConstLabels: constLabels,
		}),
	}

	collectors := []prometheus.Collector{
		m.jobsLocked,
		m.jobsExecuted,
		m.jobsFailed,
		m.jobsDead,
		m.jobDuration,
		m.processInstancesStarted,
		m.processInstancesEnded,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %v", err)
		}
	}

	return m, nil
}

type Metrics struct {
	jobsLocked   prometheus.Counter
	jobsExecuted *prometheus.CounterVec
	jobsFailed   *prometheus.CounterVec
	jobsDead     prometheus.Counter
	jobDuration  prometheus.Histogram

	processInstancesStarted prometheus.Counter
	processInstancesEnded   prometheus.Counter
}

func (m *Metrics) JobsLocked(n int) {
	if m != nil {
		m.jobsLocked.Add(float64(n))
	}
}

func (m *Metrics) JobExecuted(jobType string, d time.Duration) {
	if m != nil {
		m.jobsExecuted.WithLabelValues(jobType).Inc()
		m.jobDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) JobFailed(jobType string, dead bool) {
	if m != nil {
		m.jobsFailed.WithLabelValues(jobType).Inc()
		if dead {
			m.jobsDead.Inc()
		}
	}
}

func (m *Metrics) ProcessInstanceStarted() {
	if m != nil {
		m.processInstancesStarted.Inc()
	}
}

func (m *Metrics) ProcessInstanceEnded() {
	if m != nil {
		m.processInstancesEnded.Inc()
	}
}
