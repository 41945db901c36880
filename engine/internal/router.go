package internal

import (
	"fmt"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
)

// gateway routes executions, which arrive at a gateway element.
type gateway interface {
	// join returns the execution, which continues after the gateway, or nil, if the gateway waits for other executions.
	join(a *agenda, execution *ExecutionEntity, element *model.Element) (*ExecutionEntity, error)
	// route selects the outgoing flows to take.
	route(a *agenda, execution *ExecutionEntity, element *model.Element) ([]*model.SequenceFlow, error)
	// fork moves the continuing execution along the selected flows.
	fork(a *agenda, execution *ExecutionEntity, element *model.Element, flows []*model.SequenceFlow) error
}

func gatewayOf(elementType model.ElementType) gateway {
	switch elementType {
	case model.ElementEventBasedGateway:
		return eventBasedGateway{}
	case model.ElementExclusiveGateway:
		return exclusiveGateway{}
	case model.ElementInclusiveGateway:
		return inclusiveGateway{}
	case model.ElementParallelGateway:
		return parallelGateway{}
	default:
		return nil
	}
}

type gatewayBehavior struct {
	gateway gateway
}

func (b gatewayBehavior) execute(a *agenda, execution *ExecutionEntity, element *model.Element) error {
	if len(element.Outgoing) == 0 {
		return engine.Error{
			Type:   engine.ErrorRouting,
			Title:  "failed to route execution",
			Detail: fmt.Sprintf("gateway %s has no outgoing sequence flow", element.Id),
		}
	}

	continuing, err := b.gateway.join(a, execution, element)
	if err != nil || continuing == nil {
		return err
	}

	flows, err := b.gateway.route(a, continuing, element)
	if err != nil {
		return err
	}

	a.notifyElement(continuing, element, engine.NotificationActivityCompleted)
	return b.gateway.fork(a, continuing, element, flows)
}

// eventBasedGateway waits for the first of its target events. Each target is subscribed or gets a timer job,
// owned by the waiting execution. Triggering one target cancels all others.
type eventBasedGateway struct{}

func (eventBasedGateway) join(_ *agenda, execution *ExecutionEntity, _ *model.Element) (*ExecutionEntity, error) {
	return execution, nil
}

func (eventBasedGateway) route(_ *agenda, _ *ExecutionEntity, element *model.Element) ([]*model.SequenceFlow, error) {
	return element.Outgoing, nil
}

func (eventBasedGateway) fork(a *agenda, execution *ExecutionEntity, _ *model.Element, flows []*model.SequenceFlow) error {
	if err := a.tree.setActive(execution, false); err != nil {
		return err
	}

	for _, flow := range flows {
		target := flow.Target

		eventDefinition, _ := target.EventDefinition()
		if eventDefinition.Timer != nil {
			if err := createTimerJob(a.ctx, execution.ProcessDefinitionId, execution, execution.TenantId, target, *eventDefinition.Timer, engine.JobTimer, false); err != nil {
				return err
			}
			continue
		}

		if err := subscribe(a.ctx, execution, target); err != nil {
			return err
		}
	}

	return nil
}

// exclusiveGateway takes the first flow, whose condition is true, or the default flow.
type exclusiveGateway struct{}

func (exclusiveGateway) join(_ *agenda, execution *ExecutionEntity, _ *model.Element) (*ExecutionEntity, error) {
	return execution, nil
}

func (exclusiveGateway) route(a *agenda, _ *ExecutionEntity, element *model.Element) ([]*model.SequenceFlow, error) {
	return a.selectFlows(element, true)
}

func (exclusiveGateway) fork(a *agenda, execution *ExecutionEntity, _ *model.Element, flows []*model.SequenceFlow) error {
	return a.fork(execution, flows)
}

// inclusiveGateway takes all flows, whose condition is true, or the default flow. It joins, when no other
// execution of the scope can reach the gateway anymore.
type inclusiveGateway struct{}

func (inclusiveGateway) join(a *agenda, execution *ExecutionEntity, element *model.Element) (*ExecutionEntity, error) {
	if len(element.Incoming) <= 1 {
		return execution, nil
	}

	if err := a.tree.setActive(execution, false); err != nil {
		return nil, err
	}

	scope := a.tree.scopeOf(execution)
	if a.isReachable(scope, element) {
		return nil, nil
	}

	return a.joinParked(scope, execution, element)
}

func (inclusiveGateway) route(a *agenda, _ *ExecutionEntity, element *model.Element) ([]*model.SequenceFlow, error) {
	return a.selectFlows(element, false)
}

func (inclusiveGateway) fork(a *agenda, execution *ExecutionEntity, _ *model.Element, flows []*model.SequenceFlow) error {
	return a.fork(execution, flows)
}

// parallelGateway takes all flows. It joins, when an execution has arrived for each incoming flow.
type parallelGateway struct{}

func (parallelGateway) join(a *agenda, execution *ExecutionEntity, element *model.Element) (*ExecutionEntity, error) {
	if len(element.Incoming) <= 1 {
		return execution, nil
	}

	if err := a.tree.setActive(execution, false); err != nil {
		return nil, err
	}

	scope := a.tree.scopeOf(execution)
	if len(a.parked(scope, element)) < len(element.Incoming) {
		return nil, nil
	}

	return a.joinParked(scope, execution, element)
}

func (parallelGateway) route(_ *agenda, _ *ExecutionEntity, element *model.Element) ([]*model.SequenceFlow, error) {
	return element.Outgoing, nil
}

func (parallelGateway) fork(a *agenda, execution *ExecutionEntity, _ *model.Element, flows []*model.SequenceFlow) error {
	return a.fork(execution, flows)
}

// parked returns the executions of a scope, which wait at a joining gateway.
func (a *agenda) parked(scope *ExecutionEntity, element *model.Element) []*ExecutionEntity {
	if isParkedAt(scope, element) {
		return []*ExecutionEntity{scope}
	}

	var parked []*ExecutionEntity
	for _, child := range a.tree.children(scope) {
		if child.IsConcurrent && isParkedAt(child, element) {
			parked = append(parked, child)
		}
	}
	return parked
}

// joinParked merges the executions, parked at a gateway, into one continuing execution. If the scope has no other
// executions, the scope execution continues. Otherwise the arriving execution continues.
func (a *agenda) joinParked(scope *ExecutionEntity, arriving *ExecutionEntity, element *model.Element) (*ExecutionEntity, error) {
	parked := a.parked(scope, element)

	continuing := arriving
	if len(parked) == len(a.tree.children(scope)) && !scope.BpmnElementId.Valid {
		continuing = scope
	}

	for _, execution := range parked {
		if execution == continuing {
			continue
		}
		if err := a.tree.destroy(execution, ""); err != nil {
			return nil, err
		}
	}

	if err := a.tree.setCurrentNode(continuing, element.Id, true); err != nil {
		return nil, err
	}
	return continuing, nil
}

// isReachable determines if any execution of the scope, which is not parked at the inclusive gateway,
// can still arrive at it.
func (a *agenda) isReachable(scope *ExecutionEntity, element *model.Element) bool {
	if scope.BpmnElementId.Valid {
		return false // scope execution holds the only token
	}

	for _, child := range a.tree.children(scope) {
		if !child.IsConcurrent || isParkedAt(child, element) {
			continue
		}

		if !child.BpmnElementId.Valid || child.BpmnElementId.String == element.Id {
			return true // pending operation
		}
		if a.graph.canReach(child.BpmnElementId.String, element) {
			return true
		}
	}

	return false
}

// fireInclusiveJoins continues the first execution parked at an inclusive gateway, which cannot be reached
// anymore. It reports whether an execution has been continued.
func (a *agenda) fireInclusiveJoins() (bool, error) {
	var candidates []*ExecutionEntity
	for _, execution := range a.tree.executions {
		if execution.IsActive || !execution.IsConcurrent || !execution.BpmnElementId.Valid {
			continue
		}

		element, err := a.graph.element(execution.BpmnElementId.String)
		if err != nil {
			return false, err
		}
		if element.Type != model.ElementInclusiveGateway || len(element.Incoming) <= 1 {
			continue
		}

		candidates = append(candidates, execution)
	}

	for _, execution := range a.tree.sorted(candidates) {
		element, _ := a.graph.element(execution.BpmnElementId.String)
		if a.isReachable(a.tree.parent(execution), element) {
			continue
		}

		a.executeActivity(execution)
		return true, nil
	}

	return false, nil
}

func isParkedAt(execution *ExecutionEntity, element *model.Element) bool {
	return !execution.IsActive && execution.BpmnElementId.Valid && execution.BpmnElementId.String == element.Id
}
