package internal

import (
	"fmt"
	"maps"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/jackc/pgx/v5"
)

// executeAsyncContinuation executes the element, an execution has been parked at.
func executeAsyncContinuation(ctx Context, job *JobEntity) error {
	a, execution, err := loadJobExecution(ctx, job)
	if err != nil || execution == nil {
		return err
	}

	if err := a.tree.setActive(execution, true); err != nil {
		return err
	}

	a.executeActivity(execution)
	return a.run()
}

// executeServiceTask calls the handler of a service task's implementation and leaves the task.
// Variables, returned by the handler, are set at the process instance.
func executeServiceTask(ctx Context, job *JobEntity) error {
	a, execution, err := loadJobExecution(ctx, job)
	if err != nil || execution == nil {
		return err
	}

	handler, ok := ctx.Options().ServiceTaskHandlers[job.HandlerConfig.String]
	if !ok {
		return fmt.Errorf("no service task handler registered for implementation %s", job.HandlerConfig.String)
	}

	variables, err := handler.Execute(ctx.Context(), engine.ServiceTask{
		Job:       job.Job(),
		Variables: maps.Clone(a.tree.root.Variables),
	})
	if err != nil {
		return err
	}

	if err := setVariables(a.tree, variables); err != nil {
		return err
	}

	element, err := a.graph.element(job.BpmnElementId)
	if err != nil {
		return err
	}

	if err := a.tree.setActive(execution, true); err != nil {
		return err
	}
	if err := a.leave(execution, element); err != nil {
		return err
	}
	return a.run()
}

// executeTimer triggers the timer event of a job: a catch event, a boundary event or the target of an event-based gateway.
func executeTimer(ctx Context, job *JobEntity) error {
	a, execution, err := loadJobExecution(ctx, job)
	if err != nil || execution == nil {
		return err
	}

	element, err := a.graph.element(job.BpmnElementId)
	if err != nil {
		return err
	}

	ctx.Notifications().Add(engine.Notification{
		Type: engine.NotificationTimerFired,
		Time: ctx.Time(),

		ExecutionId:         execution.Id,
		JobId:               job.Id,
		ProcessDefinitionId: execution.ProcessDefinitionId,
		ProcessInstanceId:   execution.ProcessInstanceId,

		BpmnElementId: element.Id,
		TenantId:      execution.TenantId,
	})

	if err := a.trigger(execution, element); err != nil {
		return err
	}
	return a.run()
}

// executeTimerStart starts a process instance at a timer start event.
func executeTimerStart(ctx Context, job *JobEntity) error {
	processDefinition, err := ctx.ProcessDefinitions().Select(job.ProcessDefinitionId)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	graph, err := ctx.ProcessCache().GetOrCache(ctx, processDefinition.Id)
	if err != nil {
		return err
	}

	startEvent, err := graph.element(job.BpmnElementId)
	if err != nil {
		return err
	}

	ctx.Notifications().Add(engine.Notification{
		Type: engine.NotificationTimerFired,
		Time: ctx.Time(),

		JobId:               job.Id,
		ProcessDefinitionId: processDefinition.Id,

		BpmnElementId: startEvent.Id,
		TenantId:      processDefinition.TenantId,
	})

	_, err = startProcessInstance(ctx, processDefinition, startEvent, "", nil)
	return err
}

// loadJobExecution loads the tree of a job's process instance and returns an agenda and the job's execution.
// If the execution does not exist anymore, a nil execution is returned.
func loadJobExecution(ctx Context, job *JobEntity) (*agenda, *ExecutionEntity, error) {
	tree, err := loadExecutionTree(ctx, job.ProcessInstanceId.Int32)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	execution, ok := tree.get(job.ExecutionId.Int32)
	if !ok {
		return nil, nil, nil
	}

	a, err := newAgenda(ctx, tree)
	if err != nil {
		return nil, nil, err
	}

	return a, execution, nil
}
