package test

import (
	"context"
	"testing"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventBasedGatewayTest(t *testing.T, e engine.Engine) eventBasedGatewayTest {
	return eventBasedGatewayTest{
		e: e,

		eventBasedGatewayTest: mustDeploy(t, e, "event_based_gateway.bpmn").ProcessDefinitions[0],
	}
}

type eventBasedGatewayTest struct {
	e engine.Engine

	eventBasedGatewayTest engine.ProcessDefinition
}

func (x eventBasedGatewayTest) message(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.eventBasedGatewayTest, nil)

	piAssert.IsWaitingAt("race")
	execution := piAssert.Execution()

	eventSubscriptions := x.mustQueryEventSubscriptions(t, execution.Id)
	require.Len(t, eventSubscriptions, 2)

	count, err := x.e.SendMessage(context.Background(), engine.SendMessageCmd{
		Name:        "continue",
		ExecutionId: execution.Id,
		Variables:   map[string]any{"winner": "message"},
	})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert.IsEnded()
	piAssert.HasVariable("winner", "message")

	x.assertRaceDecided(t, execution.Id)
}

func (x eventBasedGatewayTest) signal(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.eventBasedGatewayTest, nil)

	piAssert.IsWaitingAt("race")
	execution := piAssert.Execution()

	count, err := x.e.SendSignal(context.Background(), engine.SendSignalCmd{
		Name:        "stop",
		ExecutionId: execution.Id,
	})
	require.NoError(t, err)
	assert.Equal(1, count)

	piAssert.IsEnded()

	x.assertRaceDecided(t, execution.Id)
}

func (x eventBasedGatewayTest) timer(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.eventBasedGatewayTest, nil)
	processInstance := piAssert.ProcessInstance()

	piAssert.IsWaitingAt("race")
	execution := piAssert.Execution()

	job := piAssert.Job()
	assert.Equal(engine.JobTimer, job.Type)
	assert.Equal("timerCatchEvent", job.BpmnElementId)
	assert.Equal(processInstance.StartedAt.Add(time.Hour), job.DueAt)
	assert.Empty(job.Repeat)

	piAssert.ExecuteJob()
	piAssert.IsEnded()

	x.assertRaceDecided(t, execution.Id)
}

// assertRaceDecided asserts that the subscriptions and jobs of the losing events have been deleted.
func (x eventBasedGatewayTest) assertRaceDecided(t *testing.T, executionId int32) {
	assert.Empty(t, x.mustQueryEventSubscriptions(t, executionId))

	jobs, err := x.e.CreateQuery().QueryJobs(context.Background(), engine.JobCriteria{ExecutionId: executionId})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func (x eventBasedGatewayTest) mustQueryEventSubscriptions(t *testing.T, executionId int32) []engine.EventSubscription {
	eventSubscriptions, err := x.e.CreateQuery().QueryEventSubscriptions(context.Background(), engine.EventSubscriptionCriteria{
		ExecutionId: executionId,
	})
	if err != nil {
		t.Fatalf("failed to query event subscriptions: %v", err)
	}
	return eventSubscriptions
}
