package internal

import (
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsCount(t *testing.T) {
	assert := assert.New(t)

	registry := prometheus.NewRegistry()

	metrics, err := NewMetrics(registry, "test")
	require.NoError(t, err)

	var notifications Notifications

	t.Run("applied on publish", func(t *testing.T) {
		notifications.Count((*Metrics).ProcessInstanceStarted)
		notifications.Count(func(m *Metrics) { m.JobsLocked(3) })

		assert.Equal(0.0, counterValue(t, registry, "bpmn_process_instances_started_total"))
		assert.Equal(0.0, counterValue(t, registry, "bpmn_jobs_locked_total"))

		notifications.Publish(engine.Options{}, metrics)

		assert.Equal(1.0, counterValue(t, registry, "bpmn_process_instances_started_total"))
		assert.Equal(3.0, counterValue(t, registry, "bpmn_jobs_locked_total"))
	})

	t.Run("discarded on clear", func(t *testing.T) {
		notifications.Count((*Metrics).ProcessInstanceEnded)
		notifications.Clear()
		notifications.Publish(engine.Options{}, metrics)

		assert.Equal(0.0, counterValue(t, registry, "bpmn_process_instances_ended_total"))
	})

	t.Run("no metrics", func(t *testing.T) {
		notifications.Count((*Metrics).ProcessInstanceEnded)

		assert.NotPanics(func() {
			notifications.Publish(engine.Options{}, nil)
		})
	})
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var value float64
	for _, metricFamily := range metricFamilies {
		if metricFamily.GetName() == name {
			for _, metric := range metricFamily.GetMetric() {
				value += metric.GetCounter().GetValue()
			}
		}
	}
	return value
}
