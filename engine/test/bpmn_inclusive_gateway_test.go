package test

import (
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
)

func newInclusiveGatewayTest(t *testing.T, e engine.Engine) inclusiveGatewayTest {
	return inclusiveGatewayTest{
		e: e,

		inclusiveGatewayTest:     mustDeploy(t, e, "inclusive_gateway.bpmn").ProcessDefinitions[0],
		inclusiveGatewayLoopTest: mustDeploy(t, e, "inclusive_gateway_loop.bpmn").ProcessDefinitions[0],
	}
}

type inclusiveGatewayTest struct {
	e engine.Engine

	inclusiveGatewayTest     engine.ProcessDefinition
	inclusiveGatewayLoopTest engine.ProcessDefinition
}

func (x inclusiveGatewayTest) gatewayAll(t *testing.T) {
	piAssert := mustStart(t, x.e, x.inclusiveGatewayTest, map[string]any{"a": true, "b": true})

	piAssert.IsNotWaitingAt("taskC")

	piAssert.IsWaitingAt("taskA")
	piAssert.Trigger()

	piAssert.IsWaitingAt("join")
	piAssert.IsNotWaitingAt("afterJoin")

	piAssert.IsWaitingAt("taskB")
	piAssert.Trigger()

	piAssert.IsNotWaitingAt("join")
	piAssert.IsWaitingAt("afterJoin")
	piAssert.Trigger()

	piAssert.IsEnded()
}

func (x inclusiveGatewayTest) gatewayOne(t *testing.T) {
	piAssert := mustStart(t, x.e, x.inclusiveGatewayTest, map[string]any{"a": false, "b": true})

	piAssert.IsNotWaitingAt("taskA")
	piAssert.IsNotWaitingAt("taskC")

	piAssert.IsWaitingAt("taskB")
	piAssert.Trigger()

	piAssert.IsWaitingAt("afterJoin")
	piAssert.Trigger()

	piAssert.IsEnded()
}

func (x inclusiveGatewayTest) gatewayDefault(t *testing.T) {
	piAssert := mustStart(t, x.e, x.inclusiveGatewayTest, map[string]any{"a": false, "b": false})

	piAssert.IsNotWaitingAt("taskA")
	piAssert.IsNotWaitingAt("taskB")

	piAssert.IsWaitingAt("taskC")
	piAssert.Trigger()

	piAssert.IsWaitingAt("afterJoin")
	piAssert.Trigger()

	piAssert.IsEnded()
}

// loop asserts that the join waits, as long as a looping execution can still arrive.
func (x inclusiveGatewayTest) loop(t *testing.T) {
	piAssert := mustStart(t, x.e, x.inclusiveGatewayLoopTest, map[string]any{"a": true, "b": true})

	piAssert.IsWaitingAt("taskB")
	piAssert.Trigger()

	piAssert.IsWaitingAt("join")

	piAssert.IsWaitingAt("taskA")
	piAssert.Trigger(map[string]any{"retry": true})

	piAssert.IsWaitingAt("join")
	piAssert.IsNotWaitingAt("afterJoin")

	piAssert.IsWaitingAt("taskA")
	piAssert.Trigger(map[string]any{"retry": false})

	piAssert.IsNotWaitingAt("join")
	piAssert.IsNotWaitingAt("taskA")

	piAssert.IsWaitingAt("afterJoin")
	piAssert.Trigger()

	piAssert.IsEnded()
	piAssert.HasVariable("retry", false)
}

func (x inclusiveGatewayTest) loopOne(t *testing.T) {
	piAssert := mustStart(t, x.e, x.inclusiveGatewayLoopTest, map[string]any{"a": true, "b": false})

	piAssert.IsNotWaitingAt("taskB")

	piAssert.IsWaitingAt("taskA")
	piAssert.Trigger(map[string]any{"retry": true})

	piAssert.IsWaitingAt("taskA")
	piAssert.Trigger(map[string]any{"retry": false})

	piAssert.IsWaitingAt("afterJoin")
	piAssert.Trigger()

	piAssert.IsEnded()
}
