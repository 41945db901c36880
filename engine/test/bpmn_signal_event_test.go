package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signalBroadcastTenantId = "signal-broadcast"

func newSignalEventTest(t *testing.T, e engine.Engine) signalEventTest {
	return signalEventTest{
		e: e,

		signalCatchEventTest:          mustDeploy(t, e, "signal_catch_event.bpmn").ProcessDefinitions[0],
		signalCatchEventBroadcastTest: mustDeployTenant(t, e, "signal_catch_event.bpmn", signalBroadcastTenantId).ProcessDefinitions[0],
	}
}

type signalEventTest struct {
	e engine.Engine

	signalCatchEventTest          engine.ProcessDefinition
	signalCatchEventBroadcastTest engine.ProcessDefinition
}

func (x signalEventTest) catch(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.signalCatchEventTest, nil)

	piAssert.IsWaitingAt("signalCatchEvent")
	execution := piAssert.Execution()

	count, err := x.e.SendSignal(context.Background(), engine.SendSignalCmd{
		Name:        "stop",
		ExecutionId: execution.Id,
		Variables:   map[string]any{"reason": "maintenance"},
	})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert.IsEnded()
	piAssert.HasVariable("reason", "maintenance")
}

func (x signalEventTest) catchBroadcast(t *testing.T) {
	assert := assert.New(t)

	piAsserts := make([]*engine.ProcessInstanceAssert, 3)
	for i := range piAsserts {
		piAsserts[i] = mustStart(t, x.e, x.signalCatchEventBroadcastTest, nil)
		piAsserts[i].IsWaitingAt("signalCatchEvent")
	}

	// signal of another tenant
	_, err := x.e.SendSignal(context.Background(), engine.SendSignalCmd{
		Name:     "stop",
		TenantId: "other",
	})
	require.NoError(t, err)

	for _, piAssert := range piAsserts {
		piAssert.IsWaitingAt("signalCatchEvent")
	}

	count, err := x.e.SendSignal(context.Background(), engine.SendSignalCmd{
		Name:     "stop",
		TenantId: signalBroadcastTenantId,
	})
	require.NoError(t, err)
	assert.Equal(3, count)

	for _, piAssert := range piAsserts {
		piAssert.IsEnded()
	}
}
