package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceTaskNoHandlerXml = `
<definitions id="serviceTaskNoHandler">
  <process id="serviceTaskNoHandlerTest" isExecutable="true">
    <startEvent id="startEvent" />
    <serviceTask id="serviceTask" implementation="not-registered" />
    <endEvent id="endEvent" />
    <sequenceFlow id="f1" sourceRef="startEvent" targetRef="serviceTask" />
    <sequenceFlow id="f2" sourceRef="serviceTask" targetRef="endEvent" />
  </process>
</definitions>
`

func newTaskTest(t *testing.T, e engine.Engine) taskTest {
	deployment, err := e.Deploy(context.Background(), engine.DeployCmd{
		Name:    "serviceTaskNoHandler",
		BpmnXml: serviceTaskNoHandlerXml,
	})
	if err != nil {
		t.Fatalf("failed to deploy: %v", err)
	}

	return taskTest{
		e: e,

		asyncTaskTest:            mustDeploy(t, e, "async_task.bpmn").ProcessDefinitions[0],
		serviceTaskTest:          mustDeploy(t, e, "service_task.bpmn").ProcessDefinitions[0],
		serviceTaskNoHandlerTest: deployment.ProcessDefinitions[0],
		taskTest:                 mustDeploy(t, e, "task.bpmn").ProcessDefinitions[0],
	}
}

type taskTest struct {
	e engine.Engine

	asyncTaskTest            engine.ProcessDefinition
	serviceTaskTest          engine.ProcessDefinition
	serviceTaskNoHandlerTest engine.ProcessDefinition
	taskTest                 engine.ProcessDefinition
}

func (x taskTest) async(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.asyncTaskTest, nil)

	piAssert.IsWaitingAt("task")

	job := piAssert.Job()
	assert.Equal(engine.JobAsyncContinuation, job.Type)
	assert.Equal("task", job.BpmnElementId)
	assert.Equal(piAssert.Execution().Id, job.ExecutionId)
	assert.Equal(x.asyncTaskTest.Id, job.ProcessDefinitionId)
	assert.Equal(piAssert.ProcessInstance().StartedAt, job.DueAt)

	completedJob := piAssert.ExecuteJob()
	assert.Equal(job.Id, completedJob.Id)

	piAssert.IsEnded()
}

func (x taskTest) service(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.serviceTaskTest, nil)

	piAssert.IsWaitingAt("serviceTask")

	job := piAssert.Job()
	assert.Equal(engine.JobServiceTask, job.Type)
	assert.Equal("test", job.HandlerConfig)
	assert.Equal(3, job.Retries)
	assert.Equal(engine.JobScheduled, job.State)
	assert.False(job.HasError())

	piAssert.ExecuteJob()

	piAssert.IsEnded()
	piAssert.HasVariable("handled", true)
}

func (x taskTest) serviceReview(t *testing.T) {
	piAssert := mustStart(t, x.e, x.serviceTaskTest, map[string]any{"review": true})

	piAssert.IsWaitingAt("serviceTask")
	piAssert.ExecuteJob()

	piAssert.IsWaitingAt("userTask")
	piAssert.Trigger()

	piAssert.IsEnded()
}

func (x taskTest) user(t *testing.T) {
	piAssert := mustStart(t, x.e, x.taskTest, nil)

	piAssert.IsWaitingAt("userTask")
	piAssert.Trigger(map[string]any{"approved": true})

	piAssert.IsEnded()
	piAssert.HasVariable("approved", true)

	// ended process instance
	err := x.e.Trigger(context.Background(), engine.TriggerCmd{ExecutionId: piAssert.ProcessInstance().Id})
	assert.True(t, engine.IsErrorType(err, engine.ErrorIllegalState))
}

func (x taskTest) errorNoHandler(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.serviceTaskNoHandlerTest, nil)

	piAssert.IsWaitingAt("serviceTask")

	failedJob := piAssert.ExecuteJobWithError()
	assert.Equal(2, failedJob.Retries)
	assert.Equal(engine.JobScheduled, failedJob.State)
	assert.Contains(failedJob.Error, "not-registered")

	piAssert.IsWaitingAt("serviceTask")
	job := piAssert.Job()
	require.Equal(t, failedJob.Id, job.Id)
	assert.True(job.HasError())
}
