package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
)

func newSpecialTest(t *testing.T, e engine.Engine) specialTest {
	return specialTest{
		e: e,

		taskTest:              mustDeploy(t, e, "task.bpmn").ProcessDefinitions[0],
		terminateEndEventTest: mustDeploy(t, e, "terminate_end_event.bpmn").ProcessDefinitions[0],
	}
}

type specialTest struct {
	e engine.Engine

	taskTest              engine.ProcessDefinition
	terminateEndEventTest engine.ProcessDefinition
}

func (x specialTest) startEnd(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.taskTest, nil)

	processInstance := piAssert.ProcessInstance()
	assert.Equal(x.taskTest.Id, processInstance.ProcessDefinitionId)
	assert.Equal(processInstance.Id, processInstance.ProcessInstanceId)
	assert.True(processInstance.IsScope)
	assert.Nil(processInstance.EndedAt)

	piAssert.IsWaitingAt("userTask")
	piAssert.Trigger()
	piAssert.IsEnded()

	processInstance = piAssert.ProcessInstance()
	assert.Empty(processInstance.BpmnElementId)
	assert.NotNil(processInstance.EndedAt)
	assert.False(processInstance.IsActive)

	// only the process instance execution is kept
	assert.Len(piAssert.Executions(), 1)
}

func (x specialTest) terminateEndEvent(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.terminateEndEventTest, nil)
	piAssert.IsEnded()

	assert.Len(piAssert.Executions(), 1)

	jobs, err := x.e.CreateQuery().QueryJobs(context.Background(), engine.JobCriteria{
		ProcessInstanceId: piAssert.ProcessInstance().Id,
	})
	if err != nil {
		t.Fatalf("failed to query jobs: %v", err)
	}

	assert.Empty(jobs)
}
