package test

import (
	"context"
	"testing"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimerEventTest(t *testing.T, e engine.Engine) timerEventTest {
	return timerEventTest{
		e: e,

		timerBoundaryEventTest:                mustDeploy(t, e, "timer_boundary_event.bpmn").ProcessDefinitions[0],
		timerBoundaryEventNonInterruptingTest: mustDeploy(t, e, "timer_boundary_event_non_interrupting.bpmn").ProcessDefinitions[0],
		timerCatchEventTest:                   mustDeploy(t, e, "timer_catch_event.bpmn").ProcessDefinitions[0],
	}
}

type timerEventTest struct {
	e engine.Engine

	timerBoundaryEventTest                engine.ProcessDefinition
	timerBoundaryEventNonInterruptingTest engine.ProcessDefinition
	timerCatchEventTest                   engine.ProcessDefinition
}

func (x timerEventTest) catch(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.timerCatchEventTest, nil)
	processInstance := piAssert.ProcessInstance()

	piAssert.IsWaitingAt("timerCatchEvent")

	job := piAssert.Job()
	assert.Equal(engine.JobTimer, job.Type)
	assert.Equal(processInstance.StartedAt.Add(time.Hour), job.DueAt)
	assert.Nil(job.EndDate)
	assert.Empty(job.Repeat)

	// job is not due yet
	lockedJobs, err := x.e.LockJobs(context.Background(), engine.LockJobsCmd{
		WorkerId:          testWorkerId,
		ProcessInstanceId: processInstance.Id,
	})
	require.NoError(t, err)
	assert.Empty(lockedJobs)

	piAssert.ExecuteJob()
	piAssert.IsEnded()
}

func (x timerEventTest) boundary(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.timerBoundaryEventTest, nil)

	piAssert.IsWaitingAt("userTask")
	userTask := piAssert.Execution()

	job := piAssert.Job()
	assert.Equal(engine.JobTimer, job.Type)
	assert.Equal("timeout", job.BpmnElementId)
	assert.Empty(job.Repeat)

	piAssert.ExecuteJob()
	piAssert.IsEnded()

	// interrupted user task
	err := x.e.Trigger(context.Background(), engine.TriggerCmd{ExecutionId: userTask.Id})
	assert.True(engine.IsErrorType(err, engine.ErrorIllegalState))
}

func (x timerEventTest) boundaryNotFired(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.timerBoundaryEventTest, nil)

	piAssert.IsWaitingAt("userTask")
	piAssert.Trigger()
	piAssert.IsEnded()

	jobs, err := x.e.CreateQuery().QueryJobs(context.Background(), engine.JobCriteria{
		ProcessInstanceId: piAssert.ProcessInstance().Id,
	})
	require.NoError(t, err)
	assert.Empty(jobs)
}

// boundaryNonInterrupting asserts that a repeating boundary timer fires for each repetition of its cycle,
// while the activity keeps waiting.
func (x timerEventTest) boundaryNonInterrupting(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.timerBoundaryEventNonInterruptingTest, nil)

	for _, repeat := range []string{"R2/PT1H", "R1/PT1H", ""} {
		piAssert.IsWaitingAt("userTask")

		job := piAssert.Job()
		assert.Equal("reminder", job.BpmnElementId)
		assert.Equal(repeat, job.Repeat)

		piAssert.ExecuteJob()
		piAssert.IsWaitingAt("remind")
	}

	jobs, err := x.e.CreateQuery().QueryJobs(context.Background(), engine.JobCriteria{
		ProcessInstanceId: piAssert.ProcessInstance().Id,
	})
	require.NoError(t, err)
	assert.Empty(jobs)

	var remind int
	for _, execution := range piAssert.Executions() {
		if execution.BpmnElementId == "remind" {
			remind++
		}
	}
	assert.Equal(3, remind)

	piAssert.IsWaitingAt("userTask")
	piAssert.Trigger()
	piAssert.IsNotEnded()

	for range 3 {
		piAssert.IsWaitingAt("remind")
		piAssert.Trigger()
	}

	piAssert.IsEnded()
}

// start asserts that a timer start event starts a process instance each hour, until the end date is reached.
func (x timerEventTest) start(t *testing.T) {
	assert := assert.New(t)

	processDefinition := mustDeploy(t, x.e, "timer_start_event.bpmn").ProcessDefinitions[0]

	endDate := time.Date(2030, 1, 1, 3, 30, 0, 0, time.UTC)

	for hour := range 4 {
		jobs := x.mustQueryTimerStartJobs(t, processDefinition.Id)
		require.Len(t, jobs, 1)

		job := jobs[0]
		assert.Equal(time.Date(2030, 1, 1, hour, 0, 0, 0, time.UTC), job.DueAt)
		assert.Equal(int32(0), job.ExecutionId)
		assert.Equal(int32(0), job.ProcessInstanceId)
		assert.Equal("timerStartEvent", job.BpmnElementId)
		assert.Equal("R/PT1H", job.Repeat)
		if assert.NotNil(job.EndDate) {
			assert.Equal(endDate, *job.EndDate)
		}

		piAssert := engine.AssertTimerStart(t, x.e, processDefinition.Id)
		piAssert.IsWaitingAt("userTask")
	}

	// next occurrence would be after the end date
	assert.Empty(x.mustQueryTimerStartJobs(t, processDefinition.Id))

	processInstances, err := x.e.CreateQuery().QueryExecutions(context.Background(), engine.ExecutionCriteria{
		ProcessDefinitionId:  processDefinition.Id,
		ProcessInstancesOnly: true,
	})
	require.NoError(t, err)
	assert.Len(processInstances, 4)
}

// startBounded asserts that a bounded cycle stops at its end date, even if repetitions are left.
func (x timerEventTest) startBounded(t *testing.T) {
	t.Run("end date before last repetition", func(t *testing.T) {
		x.assertTimerStarts(t, "timer_start_event_bounded.bpmn", time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC), []string{
			"R4/PT1H",
			"R3/PT1H",
			"R2/PT1H",
		})
	})

	t.Run("end date on occurrence", func(t *testing.T) {
		x.assertTimerStarts(t, "timer_start_event_end_on_occurrence.bpmn", time.Date(2032, 1, 1, 0, 0, 0, 0, time.UTC), []string{
			"R4/PT1H",
			"R3/PT1H",
			"R2/PT1H",
		})
	})
}

// assertTimerStarts deploys a process with an hourly timer start event and executes its timer start jobs,
// expecting one job per given repeat, starting at the given time.
func (x timerEventTest) assertTimerStarts(t *testing.T, fileName string, start time.Time, repeats []string) {
	assert := assert.New(t)

	processDefinition := mustDeploy(t, x.e, fileName).ProcessDefinitions[0]

	for i, repeat := range repeats {
		jobs := x.mustQueryTimerStartJobs(t, processDefinition.Id)
		require.Len(t, jobs, 1)

		job := jobs[0]
		assert.Equal(start.Add(time.Duration(i)*time.Hour), job.DueAt)
		assert.Equal(repeat, job.Repeat)

		piAssert := engine.AssertTimerStart(t, x.e, processDefinition.Id)
		piAssert.IsWaitingAt("userTask")
	}

	assert.Empty(x.mustQueryTimerStartJobs(t, processDefinition.Id))

	processInstances, err := x.e.CreateQuery().QueryExecutions(context.Background(), engine.ExecutionCriteria{
		ProcessDefinitionId:  processDefinition.Id,
		ProcessInstancesOnly: true,
	})
	require.NoError(t, err)
	assert.Len(processInstances, len(repeats))
}

func (x timerEventTest) startSuspended(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()

	processDefinition := mustDeploy(t, x.e, "timer_start_event.bpmn").ProcessDefinitions[0]
	assert.Len(x.mustQueryTimerStartJobs(t, processDefinition.Id), 1)

	err := x.e.SuspendProcessDefinition(ctx, engine.SuspendProcessDefinitionCmd{Id: processDefinition.Id})
	require.NoError(t, err)

	assert.Empty(x.mustQueryTimerStartJobs(t, processDefinition.Id))

	err = x.e.ActivateProcessDefinition(ctx, engine.ActivateProcessDefinitionCmd{Id: processDefinition.Id})
	require.NoError(t, err)

	jobs := x.mustQueryTimerStartJobs(t, processDefinition.Id)
	require.Len(t, jobs, 1)
	assert.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), jobs[0].DueAt)
}

func (x timerEventTest) mustQueryTimerStartJobs(t *testing.T, processDefinitionId int32) []engine.Job {
	jobs, err := x.e.CreateQuery().QueryJobs(context.Background(), engine.JobCriteria{
		ProcessDefinitionId: processDefinitionId,
		Type:                engine.JobTimerStart,
	})
	if err != nil {
		t.Fatalf("failed to query jobs: %v", err)
	}
	return jobs
}
