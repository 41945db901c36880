package internal

import (
	"fmt"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
)

type operationKind int

const (
	opContinueProcess operationKind = iota + 1
	opTakeOutgoingFlow
	opExecuteActivity
	opDestroyScope
	opEndExecution
)

func (v operationKind) String() string {
	switch v {
	case opContinueProcess:
		return "CONTINUE_PROCESS"
	case opTakeOutgoingFlow:
		return "TAKE_OUTGOING_FLOW"
	case opExecuteActivity:
		return "EXECUTE_ACTIVITY"
	case opDestroyScope:
		return "DESTROY_SCOPE"
	case opEndExecution:
		return "END_EXECUTION"
	default:
		return "UNKNOWN"
	}
}

type operation struct {
	kind      operationKind
	execution *ExecutionEntity

	flow   *model.SequenceFlow // TAKE_OUTGOING_FLOW only
	reason string              // DESTROY_SCOPE only
}

// agenda drives the executions of a process instance, until every execution waits or has ended.
// Operations are applied in the order they have been pushed.
type agenda struct {
	ctx   Context
	tree  *executionTree
	graph *ProcessGraph

	queue []operation
}

func newAgenda(ctx Context, tree *executionTree) (*agenda, error) {
	graph, err := ctx.ProcessCache().GetOrCache(ctx, tree.root.ProcessDefinitionId)
	if err != nil {
		return nil, err
	}

	return &agenda{ctx: ctx, tree: tree, graph: graph}, nil
}

func (a *agenda) push(op operation) {
	a.queue = append(a.queue, op)
}

func (a *agenda) continueProcess(execution *ExecutionEntity) {
	a.push(operation{kind: opContinueProcess, execution: execution})
}

func (a *agenda) executeActivity(execution *ExecutionEntity) {
	a.push(operation{kind: opExecuteActivity, execution: execution})
}

func (a *agenda) takeOutgoingFlow(execution *ExecutionEntity, flow *model.SequenceFlow) {
	a.push(operation{kind: opTakeOutgoingFlow, execution: execution, flow: flow})
}

// run applies operations until the queue is empty. Operations of destroyed executions are skipped.
// At the fixpoint, waiting inclusive joins are evaluated again, since executions may have ended or left the
// region, from which they could reach a join.
func (a *agenda) run() error {
	for {
		for len(a.queue) != 0 {
			op := a.queue[0]
			a.queue = a.queue[1:]

			if _, ok := a.tree.get(op.execution.Id); !ok {
				continue
			}

			if err := a.apply(op); err != nil {
				return err
			}
		}

		fired, err := a.fireInclusiveJoins()
		if err != nil {
			return err
		}
		if !fired {
			return nil
		}
	}
}

func (a *agenda) apply(op operation) error {
	switch op.kind {
	case opContinueProcess:
		return a.applyContinueProcess(op.execution)
	case opTakeOutgoingFlow:
		return a.applyTakeOutgoingFlow(op.execution, op.flow)
	case opExecuteActivity:
		return a.applyExecuteActivity(op.execution)
	case opDestroyScope:
		return a.applyDestroyScope(op.execution, op.reason)
	case opEndExecution:
		return a.applyEndExecution(op.execution)
	default:
		return engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to apply operation",
			Detail: fmt.Sprintf("unsupported operation %s", op.kind),
		}
	}
}

// applyContinueProcess enters the element, an execution is positioned at.
// An asynchronous element is continued by a job.
func (a *agenda) applyContinueProcess(execution *ExecutionEntity) error {
	element, err := a.graph.element(execution.BpmnElementId.String)
	if err != nil {
		return err
	}

	a.notifyElement(execution, element, engine.NotificationActivityStarted)

	if !element.Async {
		a.executeActivity(execution)
		return nil
	}

	if err := a.tree.setActive(execution, false); err != nil {
		return err
	}

	return createJob(a.ctx, execution.ProcessDefinitionId, execution, execution.TenantId, &JobEntity{
		BpmnElementId: element.Id,
		Type:          engine.JobAsyncContinuation,
	})
}

func (a *agenda) applyDestroyScope(execution *ExecutionEntity, reason string) error {
	scope := a.tree.scopeOf(execution)
	if err := a.tree.destroyChildren(scope, reason); err != nil {
		return err
	}
	return a.completeScope(scope, reason)
}

// applyEndExecution ends an execution, which has reached an element without outgoing flows.
// A concurrent execution is destroyed and the scope completes, when its last execution has ended.
func (a *agenda) applyEndExecution(execution *ExecutionEntity) error {
	if !execution.IsConcurrent {
		return a.completeScope(execution, "")
	}

	scope := a.tree.parent(execution)
	if err := a.tree.destroy(execution, ""); err != nil {
		return err
	}

	if len(a.tree.children(scope)) != 0 {
		return nil
	}
	return a.completeScope(scope, "")
}

func (a *agenda) applyExecuteActivity(execution *ExecutionEntity) error {
	element, err := a.graph.element(execution.BpmnElementId.String)
	if err != nil {
		return err
	}
	return a.behaviorOf(element).execute(a, execution, element)
}

func (a *agenda) applyTakeOutgoingFlow(execution *ExecutionEntity, flow *model.SequenceFlow) error {
	if err := a.tree.setCurrentNode(execution, flow.Target.Id, true); err != nil {
		return err
	}
	a.continueProcess(execution)
	return nil
}

// completeScope completes a process instance or a sub process. A completed sub process is left by the execution,
// which entered it.
func (a *agenda) completeScope(scope *ExecutionEntity, reason string) error {
	if scope == a.tree.root {
		return a.tree.end(reason)
	}

	parent := a.tree.parent(scope)
	if err := a.tree.destroy(scope, reason); err != nil {
		return err
	}

	subProcess, err := a.graph.element(parent.BpmnElementId.String)
	if err != nil {
		return err
	}
	if err := a.tree.setActive(parent, true); err != nil {
		return err
	}
	return a.leave(parent, subProcess)
}

// cancelWaits deletes the jobs and event subscriptions of an execution.
func (a *agenda) cancelWaits(execution *ExecutionEntity) error {
	ids := []int32{execution.Id}
	if err := a.ctx.Jobs().DeleteByExecutions(ids); err != nil {
		return err
	}
	return a.ctx.EventSubscriptions().DeleteByExecutions(ids)
}

// fork moves an execution along the given flows. For more than one flow, concurrent executions are created
// in the order of the flows. A concurrent execution is consumed, while a scope execution waits for its children.
func (a *agenda) fork(execution *ExecutionEntity, flows []*model.SequenceFlow) error {
	if len(flows) == 1 {
		a.takeOutgoingFlow(execution, flows[0])
		return nil
	}

	scope := execution
	if execution.IsConcurrent {
		scope = a.tree.parent(execution)
		if err := a.tree.destroy(execution, ""); err != nil {
			return err
		}
	} else if err := a.tree.setCurrentNode(execution, "", false); err != nil {
		return err
	}

	for _, flow := range flows {
		concurrent, err := a.tree.createConcurrentSibling(scope, "")
		if err != nil {
			return err
		}
		a.takeOutgoingFlow(concurrent, flow)
	}

	return nil
}

// leave completes the element, an execution is positioned at, and takes the outgoing flows.
// Unconditional flows and flows, whose condition is true, are taken. If there are none, the default flow is taken.
func (a *agenda) leave(execution *ExecutionEntity, element *model.Element) error {
	if err := a.cancelWaits(execution); err != nil {
		return err
	}

	a.notifyElement(execution, element, engine.NotificationActivityCompleted)

	if len(element.Outgoing) == 0 {
		a.push(operation{kind: opEndExecution, execution: execution})
		return nil
	}

	flows, err := a.selectFlows(element, false)
	if err != nil {
		return err
	}
	return a.fork(execution, flows)
}

// selectFlows evaluates the outgoing flows of an element in declaration order. If first is true, only the first
// selectable flow is returned.
func (a *agenda) selectFlows(element *model.Element, first bool) ([]*model.SequenceFlow, error) {
	var (
		selected    []*model.SequenceFlow
		defaultFlow *model.SequenceFlow
	)

	for _, flow := range element.Outgoing {
		if flow.IsDefault() {
			defaultFlow = flow
			continue
		}

		if flow.HasCondition() {
			ok, err := a.evaluate(flow)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		selected = append(selected, flow)
		if first {
			break
		}
	}

	if len(selected) == 0 && defaultFlow != nil {
		selected = append(selected, defaultFlow)
	}
	if len(selected) == 0 {
		return nil, engine.Error{
			Type:   engine.ErrorRouting,
			Title:  "failed to select outgoing sequence flow",
			Detail: fmt.Sprintf("BPMN element %s has no selectable outgoing sequence flow", element.Id),
		}
	}

	return selected, nil
}

func (a *agenda) evaluate(flow *model.SequenceFlow) (bool, error) {
	evaluator := a.ctx.Options().ConditionEvaluator
	if evaluator == nil {
		evaluator = engine.NewVariableConditionEvaluator()
	}

	ok, err := evaluator.Evaluate(flow.Condition, a.tree.root.Variables)
	if err != nil {
		return false, engine.Error{
			Type:   engine.ErrorRouting,
			Title:  "failed to evaluate condition",
			Detail: fmt.Sprintf("sequence flow %s: %v", flow.Id, err),
		}
	}
	return ok, nil
}

// trigger continues an execution, which waits for the event of the given element: a boundary event, a catch event,
// a receive task or the target of an event-based gateway.
func (a *agenda) trigger(execution *ExecutionEntity, element *model.Element) error {
	if boundaryEvent, ok := element.Model.(model.BoundaryEvent); ok {
		if execution.BpmnElementId.String != boundaryEvent.AttachedTo.Id {
			return engine.Error{
				Type:   engine.ErrorBug,
				Title:  "failed to trigger boundary event",
				Detail: fmt.Sprintf("execution %s is not positioned at %s", execution, boundaryEvent.AttachedTo.Id),
			}
		}

		if boundaryEvent.CancelActivity {
			return a.interrupt(execution, element)
		}
		return a.branch(execution, element)
	}

	positioned := execution.BpmnElementId.String == element.Id

	if err := a.cancelWaits(execution); err != nil {
		return err
	}
	if err := a.tree.setCurrentNode(execution, element.Id, true); err != nil {
		return err
	}

	if !positioned {
		a.notifyElement(execution, element, engine.NotificationActivityStarted)
	}
	return a.leave(execution, element)
}

// interrupt cancels the activity, an execution is positioned at, and continues at the boundary event.
func (a *agenda) interrupt(execution *ExecutionEntity, boundaryEvent *model.Element) error {
	if err := a.cancelWaits(execution); err != nil {
		return err
	}
	if err := a.tree.destroyChildren(execution, "interrupted"); err != nil {
		return err
	}
	if err := a.tree.setCurrentNode(execution, boundaryEvent.Id, true); err != nil {
		return err
	}

	a.continueProcess(execution)
	return nil
}

// branch continues at a non-interrupting boundary event with a new concurrent execution, while the activity is
// not affected. A message or signal boundary event is subscribed again.
func (a *agenda) branch(execution *ExecutionEntity, boundaryEvent *model.Element) error {
	concurrent, err := a.tree.concurrentize(execution)
	if err != nil {
		return err
	}

	if eventType, _ := eventOf(boundaryEvent); eventType != 0 {
		if err := subscribe(a.ctx, concurrent, boundaryEvent); err != nil {
			return err
		}
	}

	sibling, err := a.tree.createConcurrentSibling(a.tree.parent(concurrent), boundaryEvent.Id)
	if err != nil {
		return err
	}

	a.continueProcess(sibling)
	return nil
}

func (a *agenda) notifyElement(execution *ExecutionEntity, element *model.Element, notificationType engine.NotificationType) {
	a.ctx.Notifications().Add(engine.Notification{
		Type: notificationType,
		Time: a.ctx.Time(),

		ExecutionId:         execution.Id,
		ProcessDefinitionId: execution.ProcessDefinitionId,
		ProcessInstanceId:   execution.ProcessInstanceId,

		BpmnElementId: element.Id,
		TenantId:      execution.TenantId,
	})

	record := engine.HistoryRecord{
		ExecutionId:         execution.Id,
		ProcessDefinitionId: execution.ProcessDefinitionId,
		ProcessInstanceId:   execution.ProcessInstanceId,

		BpmnElementId: element.Id,
		Name:          element.Name,
		StartedAt:     a.ctx.Time(),
		TenantId:      execution.TenantId,
	}
	if notificationType == engine.NotificationActivityCompleted {
		endedAt := a.ctx.Time()
		record.EndedAt = &endedAt
	}

	a.ctx.Notifications().Record(record)
}
