package internal

import (
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type EventSubscriptionEntity struct {
	Id int32

	ExecutionId         pgtype.Int4
	ProcessDefinitionId int32
	ProcessInstanceId   pgtype.Int4

	BpmnElementId string
	CreatedAt     time.Time
	EventName     string
	EventType     engine.EventType
	TenantId      string
}

func (e EventSubscriptionEntity) EventSubscription() engine.EventSubscription {
	return engine.EventSubscription{
		Id: e.Id,

		ExecutionId:         e.ExecutionId.Int32,
		ProcessDefinitionId: e.ProcessDefinitionId,
		ProcessInstanceId:   e.ProcessInstanceId.Int32,

		BpmnElementId: e.BpmnElementId,
		CreatedAt:     e.CreatedAt,
		EventName:     e.EventName,
		EventType:     e.EventType,
		TenantId:      e.TenantId,
	}
}

func (e EventSubscriptionEntity) isStartEvent() bool {
	return !e.ExecutionId.Valid
}

type EventSubscriptionRepository interface {
	// Delete deletes an event subscription and reports whether it existed.
	// Only the caller, which deleted a subscription, may trigger it.
	Delete(id int32) (bool, error)
	DeleteByExecutions(executionIds []int32) error
	DeleteByProcessDefinition(processDefinitionId int32) error
	Insert(*EventSubscriptionEntity) error
	// SelectByEvent selects the subscriptions of an event within a tenant, ordered by ID.
	SelectByEvent(eventType engine.EventType, eventName string, tenantId string) ([]*EventSubscriptionEntity, error)
	SelectByExecution(executionId int32) ([]*EventSubscriptionEntity, error)
	// SelectStartEvents selects the start event subscriptions of a process definition.
	SelectStartEvents(processDefinitionId int32) ([]*EventSubscriptionEntity, error)
	Update(*EventSubscriptionEntity) error
	UpdateTenant(processInstanceId int32, tenantId string) error

	Query(engine.EventSubscriptionCriteria, engine.QueryOptions) ([]engine.EventSubscription, error)
}

func SendMessage(ctx Context, cmd engine.SendMessageCmd) (int, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return 0, err
	}
	return deliver(ctx, engine.EventMessage, cmd.Name, cmd.TenantId, cmd.ExecutionId, cmd.Variables)
}

func SendSignal(ctx Context, cmd engine.SendSignalCmd) (int, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return 0, err
	}
	return deliver(ctx, engine.EventSignal, cmd.Name, cmd.TenantId, cmd.ExecutionId, cmd.Variables)
}

// deliver triggers the subscriptions of an event. If an execution is specified, only the subscriptions of this
// execution are triggered. The number of triggered subscriptions is returned.
//
// A subscription of a waiting execution is deleted, before it is triggered. A subscription, which has already been
// deleted by a concurrent command or a preceding trigger of the same delivery, is skipped.
// Start event subscriptions are not consumed, they start a new process instance each time.
func deliver(ctx Context, eventType engine.EventType, eventName string, tenantId string, executionId int32, variables map[string]any) (int, error) {
	eventSubscriptions, err := ctx.EventSubscriptions().SelectByEvent(eventType, eventName, tenantId)
	if err != nil {
		return 0, err
	}

	if executionId != 0 {
		var filtered []*EventSubscriptionEntity
		for _, eventSubscription := range eventSubscriptions {
			if eventSubscription.ExecutionId.Int32 == executionId {
				filtered = append(filtered, eventSubscription)
			}
		}

		if len(filtered) == 0 {
			return 0, engine.Error{
				Type:   engine.ErrorNotFound,
				Title:  fmt.Sprintf("failed to deliver %s", eventType),
				Detail: fmt.Sprintf("execution %d has no subscription for %s %s", executionId, eventType, eventName),
			}
		}

		eventSubscriptions = filtered
	}

	count := 0
	for _, eventSubscription := range eventSubscriptions {
		if eventSubscription.isStartEvent() {
			if err := startByEvent(ctx, eventSubscription, variables); err != nil {
				return 0, err
			}
			count++
			continue
		}

		deleted, err := ctx.EventSubscriptions().Delete(eventSubscription.Id)
		if err != nil {
			return 0, err
		}
		if !deleted {
			continue
		}

		tree, err := loadExecutionTree(ctx, eventSubscription.ProcessInstanceId.Int32)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, err
		}

		execution, ok := tree.get(eventSubscription.ExecutionId.Int32)
		if !ok {
			continue
		}

		if err := setVariables(tree, variables); err != nil {
			return 0, err
		}

		a, err := newAgenda(ctx, tree)
		if err != nil {
			return 0, err
		}

		element, err := a.graph.element(eventSubscription.BpmnElementId)
		if err != nil {
			return 0, err
		}

		if err := a.trigger(execution, element); err != nil {
			return 0, err
		}
		if err := a.run(); err != nil {
			return 0, err
		}

		count++
	}

	return count, nil
}

// startByEvent starts a process instance at the message or signal start event of a subscription.
func startByEvent(ctx Context, eventSubscription *EventSubscriptionEntity, variables map[string]any) error {
	processDefinition, err := ctx.ProcessDefinitions().Select(eventSubscription.ProcessDefinitionId)
	if err != nil {
		return err
	}

	graph, err := ctx.ProcessCache().GetOrCache(ctx, processDefinition.Id)
	if err != nil {
		return err
	}

	startEvent, err := graph.element(eventSubscription.BpmnElementId)
	if err != nil {
		return err
	}

	_, err = startProcessInstance(ctx, processDefinition, startEvent, "", variables)
	return err
}

// subscribe subscribes an execution to the message or signal of an event or receive task.
func subscribe(ctx Context, execution *ExecutionEntity, element *model.Element) error {
	eventType, eventName := eventOf(element)
	if eventType == 0 {
		return engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to subscribe execution",
			Detail: fmt.Sprintf("BPMN element %s has no message or signal", element.Id),
		}
	}

	eventSubscription := EventSubscriptionEntity{
		ExecutionId:         int4(execution.Id),
		ProcessDefinitionId: execution.ProcessDefinitionId,
		ProcessInstanceId:   int4(execution.ProcessInstanceId),

		BpmnElementId: element.Id,
		CreatedAt:     ctx.Time(),
		EventName:     eventName,
		EventType:     eventType,
		TenantId:      execution.TenantId,
	}

	return ctx.EventSubscriptions().Insert(&eventSubscription)
}

// eventOf returns the type and name of the event, an element waits for. If the element waits for no message
// or signal, a zero event type is returned.
func eventOf(element *model.Element) (engine.EventType, string) {
	if receiveTask, ok := element.Model.(model.ReceiveTask); ok {
		return engine.EventMessage, receiveTask.MessageName
	}

	eventDefinition, ok := element.EventDefinition()
	switch {
	case !ok:
		return 0, ""
	case eventDefinition.MessageName != "":
		return engine.EventMessage, eventDefinition.MessageName
	case eventDefinition.SignalName != "":
		return engine.EventSignal, eventDefinition.SignalName
	default:
		return 0, ""
	}
}

// refreshStartEvents ensures that only the latest non-suspended version of a key and tenant has start event
// subscriptions and timer start jobs. Since versions can be deleted or suspended, the latest version is
// determined each time.
func refreshStartEvents(ctx Context, key string, tenantId string) error {
	versions, err := ctx.ProcessDefinitions().SelectByKey(key, tenantId)
	if err != nil {
		return err
	}

	latest, err := selectLatestProcessDefinition(ctx, key, tenantId)
	if err != nil {
		return err
	}

	for _, version := range versions {
		if latest != nil && version.Id == latest.Id {
			continue
		}
		if err := deleteStartEvents(ctx, version.Id); err != nil {
			return err
		}
	}

	if latest == nil {
		return nil
	}

	graph, err := ctx.ProcessCache().GetOrCache(ctx, latest.Id)
	if err != nil {
		return err
	}

	eventSubscriptions, err := ctx.EventSubscriptions().SelectStartEvents(latest.Id)
	if err != nil {
		return err
	}
	jobs, err := ctx.Jobs().SelectTimerStartJobs(latest.Id)
	if err != nil {
		return err
	}

	for _, startEvent := range graph.Process.Children {
		switch startEvent.Type {
		case model.ElementMessageStartEvent, model.ElementSignalStartEvent:
			if len(eventSubscriptions) != 0 {
				continue
			}
			if err := subscribeStartEvent(ctx, latest, startEvent); err != nil {
				return err
			}
		case model.ElementTimerStartEvent:
			if len(jobs) != 0 {
				continue
			}

			eventDefinition, _ := startEvent.EventDefinition()
			timer := *eventDefinition.Timer

			if timer.Kind == model.TimerDate {
				calendar, err := businessCalendar(ctx, timer.Kind)
				if err != nil {
					return err
				}
				dueAt, err := calendar.ResolveDueDate(timer.Expression)
				if err != nil {
					return err
				}
				if dueAt.Before(ctx.Time()) {
					continue
				}
			}

			if err := createTimerJob(ctx, latest.Id, nil, latest.TenantId, startEvent, timer, engine.JobTimerStart, true); err != nil {
				return err
			}
		}
	}

	return nil
}

func subscribeStartEvent(ctx Context, processDefinition *ProcessDefinitionEntity, startEvent *model.Element) error {
	eventType, eventName := eventOf(startEvent)

	if eventType == engine.EventMessage {
		existing, err := ctx.EventSubscriptions().SelectByEvent(eventType, eventName, processDefinition.TenantId)
		if err != nil {
			return err
		}

		for _, eventSubscription := range existing {
			if eventSubscription.isStartEvent() && eventSubscription.ProcessDefinitionId != processDefinition.Id {
				return engine.Error{
					Type:  engine.ErrorConflict,
					Title: "failed to subscribe message start event",
					Detail: fmt.Sprintf(
						"message %s is already subscribed by start event %s of process definition %d",
						eventName,
						eventSubscription.BpmnElementId,
						eventSubscription.ProcessDefinitionId,
					),
				}
			}
		}
	}

	eventSubscription := EventSubscriptionEntity{
		ProcessDefinitionId: processDefinition.Id,

		BpmnElementId: startEvent.Id,
		CreatedAt:     ctx.Time(),
		EventName:     eventName,
		EventType:     eventType,
		TenantId:      processDefinition.TenantId,
	}

	return ctx.EventSubscriptions().Insert(&eventSubscription)
}

// deleteStartEvents deletes the start event subscriptions and timer start jobs of a process definition.
func deleteStartEvents(ctx Context, processDefinitionId int32) error {
	eventSubscriptions, err := ctx.EventSubscriptions().SelectStartEvents(processDefinitionId)
	if err != nil {
		return err
	}
	for _, eventSubscription := range eventSubscriptions {
		if _, err := ctx.EventSubscriptions().Delete(eventSubscription.Id); err != nil {
			return err
		}
	}

	jobs, err := ctx.Jobs().SelectTimerStartJobs(processDefinitionId)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if _, err := ctx.Jobs().Delete(job.Id); err != nil {
			return err
		}
	}

	return nil
}
