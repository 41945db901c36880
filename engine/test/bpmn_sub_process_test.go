package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubProcessTest(t *testing.T, e engine.Engine) subProcessTest {
	return subProcessTest{
		e: e,

		subProcessTest: mustDeploy(t, e, "sub_process.bpmn").ProcessDefinitions[0],
	}
}

type subProcessTest struct {
	e engine.Engine

	subProcessTest engine.ProcessDefinition
}

func (x subProcessTest) subProcess(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.subProcessTest, nil)

	piAssert.IsWaitingAt("subProcess")
	subProcess := piAssert.Execution()

	piAssert.IsWaitingAt("subProcessTask")
	subProcessTask := piAssert.Execution()

	assert.Equal(subProcess.Id, subProcessTask.ParentId)
	assert.True(subProcessTask.IsScope)
	assert.False(subProcessTask.IsConcurrent)

	piAssert.Trigger()

	piAssert.IsEnded()
	assert.Len(piAssert.Executions(), 1)

	// boundary event subscription is deleted, when the sub process is left
	eventSubscriptions, err := x.e.CreateQuery().QueryEventSubscriptions(context.Background(), engine.EventSubscriptionCriteria{
		ProcessInstanceId: subProcess.ProcessInstanceId,
	})
	require.NoError(t, err)
	assert.Empty(eventSubscriptions)
}

func (x subProcessTest) messageBoundaryEvent(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.subProcessTest, nil)

	piAssert.IsWaitingAt("subProcess")
	subProcess := piAssert.Execution()

	piAssert.IsWaitingAt("subProcessTask")
	subProcessTask := piAssert.Execution()

	count, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:        "cancel",
		ExecutionId: subProcess.Id,
	})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert.IsEnded()

	// interrupted sub process task cannot be triggered anymore
	err = x.e.Trigger(context.Background(), engine.TriggerCmd{ExecutionId: subProcessTask.Id})
	assert.True(engine.IsErrorType(err, engine.ErrorNotFound))
}
