package test

import (
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
)

func newParallelGatewayTest(t *testing.T, e engine.Engine) parallelGatewayTest {
	return parallelGatewayTest{
		e: e,

		parallelGatewayTest: mustDeploy(t, e, "parallel_gateway.bpmn").ProcessDefinitions[0],
	}
}

type parallelGatewayTest struct {
	e engine.Engine

	parallelGatewayTest engine.ProcessDefinition
}

func (x parallelGatewayTest) gateway(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStart(t, x.e, x.parallelGatewayTest, nil)

	// process instance execution and two concurrent executions
	executions := piAssert.Executions()
	assert.Len(executions, 3)

	var concurrent int
	for _, execution := range executions {
		if execution.IsConcurrent {
			concurrent++
			assert.Equal(piAssert.ProcessInstance().Id, execution.ParentId)
		}
	}
	assert.Equal(2, concurrent)

	piAssert.IsWaitingAt("taskB")
	piAssert.Trigger()

	piAssert.IsWaitingAt("join")
	piAssert.IsNotEnded()

	piAssert.IsWaitingAt("taskA")
	piAssert.Trigger()

	piAssert.IsEnded()
	assert.Len(piAssert.Executions(), 1)
}
