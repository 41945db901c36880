package mem

import (
	"context"
	"os"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/prometheus/client_golang/prometheus"
)

func mustCreateEngine(t *testing.T, customizers ...func(*Options)) engine.Engine {
	e, err := New(customizers...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func mustDeploy(t *testing.T, e engine.Engine, fileName string) engine.Deployment {
	deployment, err := e.Deploy(context.Background(), engine.DeployCmd{
		Name:    fileName,
		BpmnXml: mustReadBpmnFile(t, fileName),
	})
	if err != nil {
		t.Fatalf("failed to deploy %s: %v", fileName, err)
	}
	return deployment
}

func mustReadBpmnFile(t *testing.T, fileName string) string {
	b, err := os.ReadFile("../../test/bpmn/" + fileName)
	if err != nil {
		t.Fatalf("failed to read BPMN file: %v", err)
	}
	return string(b)
}

// counterValue returns the sum of all series of a counter, gathered from the registry.
func counterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var value float64
	for _, metricFamily := range metricFamilies {
		if metricFamily.GetName() != name {
			continue
		}
		for _, metric := range metricFamily.GetMetric() {
			value += metric.GetCounter().GetValue()
		}
	}
	return value
}
