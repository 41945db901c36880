package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExclusiveGatewayTest(t *testing.T, e engine.Engine) exclusiveGatewayTest {
	return exclusiveGatewayTest{
		e: e,

		exclusiveGatewayTest:        mustDeploy(t, e, "exclusive_gateway.bpmn").ProcessDefinitions[0],
		exclusiveGatewayDefaultTest: mustDeploy(t, e, "exclusive_gateway_default.bpmn").ProcessDefinitions[0],
	}
}

type exclusiveGatewayTest struct {
	e engine.Engine

	exclusiveGatewayTest        engine.ProcessDefinition
	exclusiveGatewayDefaultTest engine.ProcessDefinition
}

func (x exclusiveGatewayTest) gateway(t *testing.T) {
	piAssert := mustStart(t, x.e, x.exclusiveGatewayTest, map[string]any{"a": false, "b": true})
	piAssert.IsEnded()
	piAssert.HasVariable("b", true)
}

// first asserts that only the first flow, whose condition is true, is taken.
func (x exclusiveGatewayTest) first(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.exclusiveGatewayTest, map[string]any{"a": true, "b": true})
	piAssert.IsEnded()

	assert.Len(piAssert.Executions(), 1)
}

func (x exclusiveGatewayTest) defaultFlow(t *testing.T) {
	piAssert := mustStart(t, x.e, x.exclusiveGatewayDefaultTest, map[string]any{"a": false})
	piAssert.IsEnded()

	piAssert = mustStart(t, x.e, x.exclusiveGatewayDefaultTest, map[string]any{"a": true})
	piAssert.IsEnded()
}

func (x exclusiveGatewayTest) errorNoFlowSelectable(t *testing.T) {
	assert := assert.New(t)

	_, err := x.e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
		ProcessDefinitionId: x.exclusiveGatewayTest.Id,
		Variables:           map[string]any{"a": false, "b": false},
	})
	require.IsType(t, engine.Error{}, err)

	engineErr := err.(engine.Error)
	assert.Equal(engine.ErrorRouting, engineErr.Type)
	assert.Contains(engineErr.Detail, "fork")

	// start is rolled back
	processInstances, err := x.e.CreateQuery().QueryExecutions(context.Background(), engine.ExecutionCriteria{
		ProcessDefinitionId:  x.exclusiveGatewayTest.Id,
		ProcessInstancesOnly: true,
	})
	if err != nil {
		t.Fatalf("failed to query process instances: %v", err)
	}

	for _, processInstance := range processInstances {
		assert.True(processInstance.IsEnded)
	}
}

func (x exclusiveGatewayTest) errorVariablesMissing(t *testing.T) {
	_, err := x.e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
		ProcessDefinitionId: x.exclusiveGatewayTest.Id,
	})
	assert.True(t, engine.IsErrorType(err, engine.ErrorRouting))
}
