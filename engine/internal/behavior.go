package internal

import (
	"fmt"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
)

// behavior executes an element, when an execution arrives at it.
type behavior interface {
	execute(a *agenda, execution *ExecutionEntity, element *model.Element) error
}

func (a *agenda) behaviorOf(element *model.Element) behavior {
	switch element.Type {
	case
		model.ElementManualTask,
		model.ElementMessageBoundaryEvent,
		model.ElementMessageStartEvent,
		model.ElementNoneStartEvent,
		model.ElementScriptTask,
		model.ElementSignalBoundaryEvent,
		model.ElementSignalStartEvent,
		model.ElementTask,
		model.ElementTimerBoundaryEvent,
		model.ElementTimerStartEvent:
		return passThrough{}
	case model.ElementMessageCatchEvent, model.ElementSignalCatchEvent:
		return catchEvent{}
	case model.ElementNoneEndEvent:
		return noneEndEvent{}
	case model.ElementReceiveTask:
		return receiveTask{}
	case model.ElementServiceTask:
		return serviceTask{}
	case model.ElementSubProcess:
		return subProcess{}
	case model.ElementTerminateEndEvent:
		return terminateEndEvent{}
	case model.ElementTimerCatchEvent:
		return timerCatchEvent{}
	case model.ElementUserTask:
		return userTask{}
	case
		model.ElementEventBasedGateway,
		model.ElementExclusiveGateway,
		model.ElementInclusiveGateway,
		model.ElementParallelGateway:
		return gatewayBehavior{gatewayOf(element.Type)}
	default:
		return unsupported{}
	}
}

// passThrough leaves an element immediately.
type passThrough struct{}

func (passThrough) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	return a.leave(execution, element)
}

// catchEvent waits for a message or signal.
type catchEvent struct{}

func (catchEvent) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	if err := a.tree.setActive(execution, false); err != nil {
		return err
	}
	return subscribe(a.ctx, execution, element)
}

type noneEndEvent struct{}

func (noneEndEvent) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	a.notifyElement(execution, element, engine.NotificationActivityCompleted)
	a.push(operation{kind: opEndExecution, execution: execution})
	return nil
}

// receiveTask waits for a message or a trigger.
type receiveTask struct{}

func (receiveTask) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	if err := a.wait(execution, element); err != nil {
		return err
	}
	return subscribe(a.ctx, execution, element)
}

// serviceTask waits for a job, which executes the task's implementation.
type serviceTask struct{}

func (serviceTask) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	if err := a.wait(execution, element); err != nil {
		return err
	}

	return createJob(a.ctx, execution.ProcessDefinitionId, execution, execution.TenantId, &JobEntity{
		BpmnElementId: element.Id,
		HandlerConfig: text(element.Model.(model.ServiceTask).Implementation),
		Type:          engine.JobServiceTask,
	})
}

// subProcess creates a scope execution, which starts at the sub process's none start event.
type subProcess struct{}

func (subProcess) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	startEvent := noneStartEvent(element)
	if startEvent == nil {
		return engine.Error{
			Type:   engine.ErrorRouting,
			Title:  "failed to start sub process",
			Detail: fmt.Sprintf("sub process %s has no none start event", element.Id),
		}
	}

	if err := a.wait(execution, element); err != nil {
		return err
	}

	scope, err := a.tree.createChild(execution, startEvent.Id)
	if err != nil {
		return err
	}

	a.continueProcess(scope)
	return nil
}

// terminateEndEvent destroys all executions of the scope and completes it.
type terminateEndEvent struct{}

func (terminateEndEvent) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	a.notifyElement(execution, element, engine.NotificationActivityCompleted)
	a.push(operation{kind: opDestroyScope, execution: execution, reason: "terminated"})
	return nil
}

// timerCatchEvent waits for a timer job.
type timerCatchEvent struct{}

func (timerCatchEvent) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	if err := a.tree.setActive(execution, false); err != nil {
		return err
	}

	eventDefinition, _ := element.EventDefinition()
	return createTimerJob(a.ctx, execution.ProcessDefinitionId, execution, execution.TenantId, element, *eventDefinition.Timer, engine.JobTimer, false)
}

// userTask waits for a trigger.
type userTask struct{}

func (userTask) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	return a.wait(execution, element)
}

type unsupported struct{}

func (unsupported) execute(_ *agenda, _ *ExecutionEntity, element *model.Element) error {
	return engine.Error{
		Type:   engine.ErrorBug,
		Title:  "failed to execute BPMN element",
		Detail: fmt.Sprintf("BPMN element %s has unsupported type %s", element.Id, element.Type),
	}
}

// wait deactivates an execution at an activity and registers the activity's boundary events.
func (a *agenda) wait(execution *ExecutionEntity, activity *model.Element) error {
	if err := a.tree.setActive(execution, false); err != nil {
		return err
	}

	for _, boundaryEvent := range activity.BoundaryEvents {
		eventDefinition, _ := boundaryEvent.EventDefinition()
		if eventDefinition.Timer != nil {
			repeatable := !boundaryEvent.Model.(model.BoundaryEvent).CancelActivity
			if err := createTimerJob(a.ctx, execution.ProcessDefinitionId, execution, execution.TenantId, boundaryEvent, *eventDefinition.Timer, engine.JobTimer, repeatable); err != nil {
				return err
			}
			continue
		}

		if err := subscribe(a.ctx, execution, boundaryEvent); err != nil {
			return err
		}
	}

	return nil
}
