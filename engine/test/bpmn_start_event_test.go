package test

import (
	"context"
	"slices"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStartEventTest(t *testing.T, e engine.Engine) startEventTest {
	return startEventTest{
		e: e,

		messageStartEventTest: mustDeploy(t, e, "message_start_event.bpmn").ProcessDefinitions[0],
		signalStartEventTest:  mustDeploy(t, e, "signal_start_event.bpmn").ProcessDefinitions[0],
	}
}

type startEventTest struct {
	e engine.Engine

	messageStartEventTest engine.ProcessDefinition
	signalStartEventTest  engine.ProcessDefinition
}

func (x startEventTest) message(t *testing.T) {
	assert := assert.New(t)

	eventSubscriptions := x.mustQueryStartEvents(t, engine.EventMessage, "start")
	require.Len(t, eventSubscriptions, 1)

	eventSubscription := eventSubscriptions[0]
	assert.True(eventSubscription.IsStartEvent())
	assert.Equal(x.messageStartEventTest.Id, eventSubscription.ProcessDefinitionId)
	assert.Equal("messageStartEvent", eventSubscription.BpmnElementId)
	assert.Equal(int32(0), eventSubscription.ProcessInstanceId)

	count, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:      "start",
		Variables: map[string]any{"orderId": "4711"},
	})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert := mustQueryLatestProcessInstance(t, x.e, x.messageStartEventTest.Id)
	piAssert.IsWaitingAt("userTask")
	piAssert.HasVariable("orderId", "4711")
	piAssert.Trigger()
	piAssert.IsEnded()

	// start event subscription is not consumed
	assert.Len(x.mustQueryStartEvents(t, engine.EventMessage, "start"), 1)
}

// messageLatestVersion asserts that only the latest, not suspended, version of a process subscribes its message
// start event.
func (x startEventTest) messageLatestVersion(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()

	deployment := mustDeploy(t, x.e, "message_start_event.bpmn")
	latest := deployment.ProcessDefinitions[0]
	assert.Equal(x.messageStartEventTest.Key, latest.Key)
	assert.Greater(latest.Version, x.messageStartEventTest.Version)

	assertSubscribed := func(processDefinitionId int32) {
		eventSubscriptions := x.mustQueryStartEvents(t, engine.EventMessage, "start")
		require.Len(t, eventSubscriptions, 1)
		assert.Equal(processDefinitionId, eventSubscriptions[0].ProcessDefinitionId)
	}

	assertSubscribed(latest.Id)

	count, err := x.e.SendMessage(ctx, engine.SendMessageCmd{Name: "start"})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert := mustQueryLatestProcessInstance(t, x.e, latest.Id)
	piAssert.IsWaitingAt("userTask")

	// suspend latest version
	err = x.e.SuspendProcessDefinition(ctx, engine.SuspendProcessDefinitionCmd{Id: latest.Id})
	require.NoError(t, err)

	assertSubscribed(x.messageStartEventTest.Id)

	processDefinition, err := x.e.GetLatestProcessDefinition(ctx, engine.GetLatestProcessDefinitionCmd{
		Key: latest.Key,
	})
	require.NoError(t, err)
	assert.Equal(x.messageStartEventTest.Id, processDefinition.Id)

	// activate latest version
	err = x.e.ActivateProcessDefinition(ctx, engine.ActivateProcessDefinitionCmd{Id: latest.Id})
	require.NoError(t, err)

	assertSubscribed(latest.Id)

	// delete latest version
	err = x.e.DeleteDeployment(ctx, engine.DeleteDeploymentCmd{Id: deployment.Id})
	assert.True(engine.IsErrorType(err, engine.ErrorIllegalState))

	assertSubscribed(latest.Id)

	err = x.e.DeleteDeployment(ctx, engine.DeleteDeploymentCmd{Id: deployment.Id, Cascade: true})
	require.NoError(t, err)

	assertSubscribed(x.messageStartEventTest.Id)

	processInstances, err := x.e.CreateQuery().QueryExecutions(ctx, engine.ExecutionCriteria{
		ProcessDefinitionId: latest.Id,
	})
	require.NoError(t, err)
	assert.Empty(processInstances)
}

// messageLatestVersionWithoutStartEvent asserts that the message start event subscription is dropped, when the latest
// version of a process has no message start event, and restored, when this version is suspended or deleted.
func (x startEventTest) messageLatestVersionWithoutStartEvent(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()

	deployment := mustDeploy(t, x.e, "message_start_event_none.bpmn")
	latest := deployment.ProcessDefinitions[0]
	assert.Equal(x.messageStartEventTest.Key, latest.Key)
	assert.Greater(latest.Version, x.messageStartEventTest.Version)

	assertSubscribed := func(processDefinitionId int32) {
		eventSubscriptions := x.mustQueryStartEvents(t, engine.EventMessage, "start")
		require.Len(t, eventSubscriptions, 1)
		assert.Equal(processDefinitionId, eventSubscriptions[0].ProcessDefinitionId)
	}

	// subscription of previous version is dropped
	assert.Empty(x.mustQueryStartEvents(t, engine.EventMessage, "start"))

	count, err := x.e.SendMessage(ctx, engine.SendMessageCmd{Name: "start"})
	require.NoError(t, err)
	assert.Equal(0, count)

	piAssert := mustStart(t, x.e, latest, nil)
	piAssert.IsWaitingAt("userTask")

	// suspend latest version
	err = x.e.SuspendProcessDefinition(ctx, engine.SuspendProcessDefinitionCmd{Id: latest.Id})
	require.NoError(t, err)

	assertSubscribed(x.messageStartEventTest.Id)

	count, err = x.e.SendMessage(ctx, engine.SendMessageCmd{Name: "start"})
	require.NoError(t, err)
	assert.Equal(1, count)

	mustQueryLatestProcessInstance(t, x.e, x.messageStartEventTest.Id).IsWaitingAt("userTask")

	// activate latest version
	err = x.e.ActivateProcessDefinition(ctx, engine.ActivateProcessDefinitionCmd{Id: latest.Id})
	require.NoError(t, err)

	assert.Empty(x.mustQueryStartEvents(t, engine.EventMessage, "start"))

	// delete latest version
	err = x.e.DeleteDeployment(ctx, engine.DeleteDeploymentCmd{Id: deployment.Id, Cascade: true})
	require.NoError(t, err)

	assertSubscribed(x.messageStartEventTest.Id)

	processDefinition, err := x.e.GetLatestProcessDefinition(ctx, engine.GetLatestProcessDefinitionCmd{
		Key: latest.Key,
	})
	require.NoError(t, err)
	assert.Equal(x.messageStartEventTest.Id, processDefinition.Id)
}

func (x startEventTest) errorMessageConflict(t *testing.T) {
	assert := assert.New(t)

	_, err := x.e.Deploy(context.Background(), engine.DeployCmd{
		Name:    "message_start_event_conflict.bpmn",
		BpmnXml: mustReadBpmnFile(t, "message_start_event_conflict.bpmn"),
	})
	assert.True(engine.IsErrorType(err, engine.ErrorConflict))

	// deployment is rolled back
	processDefinitions, err := x.e.CreateQuery().QueryProcessDefinitions(context.Background(), engine.ProcessDefinitionCriteria{
		Key: "messageStartEventConflictTest",
	})
	require.NoError(t, err)
	assert.Empty(processDefinitions)

	// another tenant is not affected
	mustDeployTenant(t, x.e, "message_start_event_conflict.bpmn", "conflict")
}

func (x startEventTest) signal(t *testing.T) {
	assert := assert.New(t)

	eventSubscriptions := x.mustQueryStartEvents(t, engine.EventSignal, "broadcast")
	require.Len(t, eventSubscriptions, 1)
	assert.Equal(x.signalStartEventTest.Id, eventSubscriptions[0].ProcessDefinitionId)
	assert.Equal("signalStartEvent", eventSubscriptions[0].BpmnElementId)

	piAssert := engine.AssertSignalStart(t, x.e, x.signalStartEventTest.Id, "broadcast", map[string]any{"x": 1})
	piAssert.IsWaitingAt("userTask")
	piAssert.HasVariable("x", 1)
	piAssert.Trigger()
	piAssert.IsEnded()

	// none start event
	piAssert = mustStart(t, x.e, x.signalStartEventTest, nil)
	piAssert.IsWaitingAt("userTask")
	piAssert.HasNoVariable("x")
}

func (x startEventTest) signalSuspended(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()

	err := x.e.SuspendProcessDefinition(ctx, engine.SuspendProcessDefinitionCmd{Key: x.signalStartEventTest.Key})
	require.NoError(t, err)

	assert.Empty(x.mustQueryStartEvents(t, engine.EventSignal, "broadcast"))

	count, err := x.e.SendSignal(ctx, engine.SendSignalCmd{Name: "broadcast"})
	require.NoError(t, err)
	assert.Equal(0, count)

	_, err = x.e.StartProcessInstance(ctx, engine.StartProcessInstanceCmd{Key: x.signalStartEventTest.Key})
	assert.True(engine.IsErrorType(err, engine.ErrorRouting))

	err = x.e.ActivateProcessDefinition(ctx, engine.ActivateProcessDefinitionCmd{Key: x.signalStartEventTest.Key})
	require.NoError(t, err)

	count, err = x.e.SendSignal(ctx, engine.SendSignalCmd{Name: "broadcast"})
	require.NoError(t, err)
	assert.Equal(1, count)
}

func (x startEventTest) mustQueryStartEvents(t *testing.T, eventType engine.EventType, eventName string) []engine.EventSubscription {
	results, err := x.e.CreateQuery().QueryEventSubscriptions(context.Background(), engine.EventSubscriptionCriteria{
		EventName: eventName,
		EventType: eventType,
	})
	if err != nil {
		t.Fatalf("failed to query event subscriptions: %v", err)
	}

	var startEvents []engine.EventSubscription
	for _, result := range results {
		if result.IsStartEvent() {
			startEvents = append(startEvents, result)
		}
	}
	return startEvents
}

// mustQueryLatestProcessInstance asserts the process instance of a process definition, which has been started last.
func mustQueryLatestProcessInstance(t *testing.T, e engine.Engine, processDefinitionId int32) *engine.ProcessInstanceAssert {
	processInstances, err := e.CreateQuery().QueryExecutions(context.Background(), engine.ExecutionCriteria{
		ProcessDefinitionId:  processDefinitionId,
		ProcessInstancesOnly: true,
	})
	if err != nil {
		t.Fatalf("failed to query process instances: %v", err)
	}
	if len(processInstances) == 0 {
		t.Fatalf("process definition %d has no process instance", processDefinitionId)
	}

	latest := slices.MaxFunc(processInstances, func(a engine.Execution, b engine.Execution) int {
		return int(a.Id - b.Id)
	})

	return engine.Assert(t, e, latest)
}
