package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageBroadcastTenantId = "message-broadcast"

func newMessageEventTest(t *testing.T, e engine.Engine) messageEventTest {
	return messageEventTest{
		e: e,

		messageCatchEventTest:          mustDeploy(t, e, "message_catch_event.bpmn").ProcessDefinitions[0],
		messageCatchEventBroadcastTest: mustDeployTenant(t, e, "message_catch_event.bpmn", messageBroadcastTenantId).ProcessDefinitions[0],
		receiveTaskTest:                mustDeploy(t, e, "receive_task.bpmn").ProcessDefinitions[0],
	}
}

type messageEventTest struct {
	e engine.Engine

	messageCatchEventTest          engine.ProcessDefinition
	messageCatchEventBroadcastTest engine.ProcessDefinition
	receiveTaskTest                engine.ProcessDefinition
}

func (x messageEventTest) catch(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.messageCatchEventTest, nil)

	piAssert.IsWaitingAt("messageCatchEvent")
	execution := piAssert.Execution()

	eventSubscriptions, err := x.e.CreateQuery().QueryEventSubscriptions(context.Background(), engine.EventSubscriptionCriteria{
		ExecutionId: execution.Id,
	})
	require.NoError(t, err)
	require.Len(t, eventSubscriptions, 1)

	eventSubscription := eventSubscriptions[0]
	assert.Equal(execution.Id, eventSubscription.ExecutionId)
	assert.Equal(x.messageCatchEventTest.Id, eventSubscription.ProcessDefinitionId)
	assert.Equal(execution.ProcessInstanceId, eventSubscription.ProcessInstanceId)
	assert.Equal("messageCatchEvent", eventSubscription.BpmnElementId)
	assert.Equal("continue", eventSubscription.EventName)
	assert.Equal(engine.EventMessage, eventSubscription.EventType)
	assert.False(eventSubscription.IsStartEvent())

	count, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:        "continue",
		ExecutionId: execution.Id,
		Variables:   map[string]any{"orderId": "4711"},
	})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert.IsEnded()
	piAssert.HasVariable("orderId", "4711")

	eventSubscriptions, err = x.e.CreateQuery().QueryEventSubscriptions(context.Background(), engine.EventSubscriptionCriteria{
		ExecutionId: execution.Id,
	})
	require.NoError(t, err)
	assert.Empty(eventSubscriptions)
}

// catchBroadcast asserts that a message without target execution triggers all subscriptions of the tenant.
func (x messageEventTest) catchBroadcast(t *testing.T) {
	assert := assert.New(t)

	piAssert1 := mustStart(t, x.e, x.messageCatchEventBroadcastTest, nil)
	piAssert2 := mustStart(t, x.e, x.messageCatchEventBroadcastTest, nil)

	piAssert1.IsWaitingAt("messageCatchEvent")
	piAssert2.IsWaitingAt("messageCatchEvent")

	count, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:     "continue",
		TenantId: messageBroadcastTenantId,
	})
	require.NoError(t, err)
	assert.Equal(2, count)

	piAssert1.IsEnded()
	piAssert2.IsEnded()

	// no subscription left
	count, err = x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:     "continue",
		TenantId: messageBroadcastTenantId,
	})
	require.NoError(t, err)
	assert.Equal(0, count)
}

func (x messageEventTest) receiveTask(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.receiveTaskTest, nil)

	piAssert.IsWaitingAt("receiveTask")
	execution := piAssert.Execution()

	count, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:        "continue",
		ExecutionId: execution.Id,
	})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert.IsEnded()
}

// receiveTaskTrigger asserts that a receive task can be triggered, which deletes its subscription.
func (x messageEventTest) receiveTaskTrigger(t *testing.T) {
	piAssert := mustStart(t, x.e, x.receiveTaskTest, nil)

	piAssert.IsWaitingAt("receiveTask")
	execution := piAssert.Execution()

	piAssert.Trigger(map[string]any{"received": true})
	piAssert.IsEnded()
	piAssert.HasVariable("received", true)

	_, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:        "continue",
		ExecutionId: execution.Id,
	})
	assert.True(t, engine.IsErrorType(err, engine.ErrorNotFound))
}

func (x messageEventTest) errorNoSubscription(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.messageCatchEventTest, nil)

	piAssert.IsWaitingAt("messageCatchEvent")
	execution := piAssert.Execution()

	_, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:        "not-subscribed",
		ExecutionId: execution.Id,
	})
	require.IsType(t, engine.Error{}, err)

	engineErr := err.(engine.Error)
	assert.Equal(engine.ErrorNotFound, engineErr.Type)

	// signal with the name of the subscribed message
	_, err = x.e.SendSignal(context.Background(), engine.SendSignalCmd{
		Name:        "continue",
		ExecutionId: execution.Id,
	})
	assert.True(engine.IsErrorType(err, engine.ErrorNotFound))

	piAssert.IsWaitingAt("messageCatchEvent")
}

func (x messageEventTest) errorCatchEventTriggered(t *testing.T) {
	piAssert := mustStart(t, x.e, x.messageCatchEventTest, nil)

	piAssert.IsWaitingAt("messageCatchEvent")

	err := x.e.Trigger(context.Background(), engine.TriggerCmd{ExecutionId: piAssert.Execution().Id})
	assert.True(t, engine.IsErrorType(err, engine.ErrorIllegalState))

	piAssert.IsWaitingAt("messageCatchEvent")
}
