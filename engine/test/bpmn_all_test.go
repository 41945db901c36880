package test

import (
	"testing"
)

func TestBpmn(t *testing.T) {
	engines, engineTypes := mustCreateEngines(t)
	for _, e := range engines {
		defer e.Shutdown()
	}

	t.Run("special", func(t *testing.T) {
		for i, e := range engines {
			specialTest := newSpecialTest(t, e)

			t.Run(engineTypes[i]+"startEnd", specialTest.startEnd)
			t.Run(engineTypes[i]+"terminateEndEvent", specialTest.terminateEndEvent)
		}
	})

	t.Run("event-based gateway", func(t *testing.T) {
		for i, e := range engines {
			eventBasedGatewayTest := newEventBasedGatewayTest(t, e)

			t.Run(engineTypes[i]+"message", eventBasedGatewayTest.message)
			t.Run(engineTypes[i]+"signal", eventBasedGatewayTest.signal)
			t.Run(engineTypes[i]+"timer", eventBasedGatewayTest.timer)
		}
	})

	t.Run("exclusive gateway", func(t *testing.T) {
		for i, e := range engines {
			exclusiveGatewayTest := newExclusiveGatewayTest(t, e)

			t.Run(engineTypes[i]+"gateway", exclusiveGatewayTest.gateway)
			t.Run(engineTypes[i]+"first", exclusiveGatewayTest.first)
			t.Run(engineTypes[i]+"default", exclusiveGatewayTest.defaultFlow)

			t.Run(engineTypes[i]+"returns error when no sequence flow selectable", exclusiveGatewayTest.errorNoFlowSelectable)
			t.Run(engineTypes[i]+"returns error when variables missing", exclusiveGatewayTest.errorVariablesMissing)
		}
	})

	t.Run("inclusive gateway", func(t *testing.T) {
		for i, e := range engines {
			inclusiveGatewayTest := newInclusiveGatewayTest(t, e)

			t.Run(engineTypes[i]+"gateway all", inclusiveGatewayTest.gatewayAll)
			t.Run(engineTypes[i]+"gateway one", inclusiveGatewayTest.gatewayOne)
			t.Run(engineTypes[i]+"gateway default", inclusiveGatewayTest.gatewayDefault)
			t.Run(engineTypes[i]+"loop", inclusiveGatewayTest.loop)
			t.Run(engineTypes[i]+"loop one", inclusiveGatewayTest.loopOne)
		}
	})

	t.Run("message event", func(t *testing.T) {
		for i, e := range engines {
			messageEventTest := newMessageEventTest(t, e)

			t.Run(engineTypes[i]+"catch", messageEventTest.catch)
			t.Run(engineTypes[i]+"catch broadcast", messageEventTest.catchBroadcast)
			t.Run(engineTypes[i]+"receiveTask", messageEventTest.receiveTask)
			t.Run(engineTypes[i]+"receiveTask trigger", messageEventTest.receiveTaskTrigger)

			t.Run(engineTypes[i]+"returns error when execution has no subscription", messageEventTest.errorNoSubscription)
			t.Run(engineTypes[i]+"returns error when catch event triggered", messageEventTest.errorCatchEventTriggered)
		}
	})

	t.Run("parallel gateway", func(t *testing.T) {
		for i, e := range engines {
			parallelGatewayTest := newParallelGatewayTest(t, e)

			t.Run(engineTypes[i]+"gateway", parallelGatewayTest.gateway)
		}
	})

	t.Run("signal event", func(t *testing.T) {
		for i, e := range engines {
			signalEventTest := newSignalEventTest(t, e)

			t.Run(engineTypes[i]+"catch", signalEventTest.catch)
			t.Run(engineTypes[i]+"catch broadcast", signalEventTest.catchBroadcast)
		}
	})

	t.Run("sub process", func(t *testing.T) {
		for i, e := range engines {
			subProcessTest := newSubProcessTest(t, e)

			t.Run(engineTypes[i]+"subProcess", subProcessTest.subProcess)
			t.Run(engineTypes[i]+"messageBoundaryEvent", subProcessTest.messageBoundaryEvent)
		}
	})

	t.Run("task", func(t *testing.T) {
		for i, e := range engines {
			taskTest := newTaskTest(t, e)

			t.Run(engineTypes[i]+"async", taskTest.async)
			t.Run(engineTypes[i]+"service", taskTest.service)
			t.Run(engineTypes[i]+"service review", taskTest.serviceReview)
			t.Run(engineTypes[i]+"user", taskTest.user)

			t.Run(engineTypes[i]+"job fails when no handler registered", taskTest.errorNoHandler)
		}
	})
}

func TestBpmnStartEvent(t *testing.T) {
	t.Run("message", func(t *testing.T) {
		engines, engineTypes := mustCreateEngines(t)
		for _, e := range engines {
			defer e.Shutdown()
		}

		for i, e := range engines {
			startEventTest := newStartEventTest(t, e)

			t.Run(engineTypes[i]+"message", startEventTest.message)
			t.Run(engineTypes[i]+"message latest version", startEventTest.messageLatestVersion)
			t.Run(engineTypes[i]+"message latest version without start event", startEventTest.messageLatestVersionWithoutStartEvent)

			t.Run(engineTypes[i]+"returns error when message already subscribed", startEventTest.errorMessageConflict)
		}
	})

	t.Run("signal", func(t *testing.T) {
		engines, engineTypes := mustCreateEngines(t)
		for _, e := range engines {
			defer e.Shutdown()
		}

		for i, e := range engines {
			startEventTest := newStartEventTest(t, e)

			t.Run(engineTypes[i]+"signal", startEventTest.signal)
			t.Run(engineTypes[i]+"signal suspended", startEventTest.signalSuspended)
		}
	})
}

func TestBpmnTimerEvent(t *testing.T) {
	t.Run("catch", func(t *testing.T) {
		engines, engineTypes := mustCreateEngines(t)
		for _, e := range engines {
			defer e.Shutdown()
		}

		for i, e := range engines {
			timerEventTest := newTimerEventTest(t, e)

			t.Run(engineTypes[i]+"catch", timerEventTest.catch)
			t.Run(engineTypes[i]+"boundary", timerEventTest.boundary)
			t.Run(engineTypes[i]+"boundary not fired", timerEventTest.boundaryNotFired)
			t.Run(engineTypes[i]+"boundary non-interrupting", timerEventTest.boundaryNonInterrupting)
		}
	})

	t.Run("start", func(t *testing.T) {
		engines, engineTypes := mustCreateEngines(t)
		for _, e := range engines {
			defer e.Shutdown()
		}

		for i, e := range engines {
			timerEventTest := newTimerEventTest(t, e)

			t.Run(engineTypes[i]+"start suspended", timerEventTest.startSuspended)
			t.Run(engineTypes[i]+"start", timerEventTest.start)
		}
	})

	t.Run("start bounded", func(t *testing.T) {
		engines, engineTypes := mustCreateEngines(t)
		for _, e := range engines {
			defer e.Shutdown()
		}

		for i, e := range engines {
			timerEventTest := newTimerEventTest(t, e)

			t.Run(engineTypes[i]+"start bounded", timerEventTest.startBounded)
		}
	})
}
