package internal

import (
	"cmp"
	"slices"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// executionTree holds the executions of a process instance, keyed by ID.
// Parent and process instance are referenced by ID. All mutations are written through to the repositories of the context.
type executionTree struct {
	ctx Context

	root       *ExecutionEntity
	executions map[int32]*ExecutionEntity
}

// loadExecutionTree selects all executions of a process instance.
// If the process instance does not exist, [pgx.ErrNoRows] is returned.
func loadExecutionTree(ctx Context, processInstanceId int32) (*executionTree, error) {
	executions, err := ctx.Executions().SelectByProcessInstance(processInstanceId)
	if err != nil {
		return nil, err
	}

	tree := executionTree{
		ctx:        ctx,
		executions: make(map[int32]*ExecutionEntity, len(executions)),
	}

	for _, execution := range executions {
		tree.executions[execution.Id] = execution
		if !execution.ParentId.Valid {
			tree.root = execution
		}
	}

	if tree.root == nil {
		return nil, pgx.ErrNoRows
	}

	return &tree, nil
}

// newExecutionTree creates a process instance and returns its tree.
func newExecutionTree(ctx Context, processDefinition *ProcessDefinitionEntity, businessKey string, variables map[string]any) (*executionTree, error) {
	root := ExecutionEntity{
		ProcessDefinitionId: processDefinition.Id,

		BusinessKey: text(businessKey),
		IsActive:    true,
		IsScope:     true,
		StartedAt:   ctx.Time(),
		TenantId:    processDefinition.TenantId,
		Variables:   mergeVariables(nil, variables),
	}

	if err := ctx.Executions().Insert(&root); err != nil {
		return nil, err
	}

	return &executionTree{
		ctx:        ctx,
		root:       &root,
		executions: map[int32]*ExecutionEntity{root.Id: &root},
	}, nil
}

func (t *executionTree) get(id int32) (*ExecutionEntity, bool) {
	execution, ok := t.executions[id]
	return execution, ok
}

func (t *executionTree) parent(execution *ExecutionEntity) *ExecutionEntity {
	if !execution.ParentId.Valid {
		return nil
	}
	return t.executions[execution.ParentId.Int32]
}

// children returns the direct children of an execution, ordered by ID.
func (t *executionTree) children(parent *ExecutionEntity) []*ExecutionEntity {
	var children []*ExecutionEntity
	for _, execution := range t.executions {
		if execution.ParentId.Valid && execution.ParentId.Int32 == parent.Id {
			children = append(children, execution)
		}
	}

	return t.sorted(children)
}

// sorted sorts executions by ID.
func (t *executionTree) sorted(executions []*ExecutionEntity) []*ExecutionEntity {
	slices.SortFunc(executions, func(a, b *ExecutionEntity) int {
		return cmp.Compare(a.Id, b.Id)
	})
	return executions
}

// scopeOf returns the execution, owning the scope of the given execution.
func (t *executionTree) scopeOf(execution *ExecutionEntity) *ExecutionEntity {
	if execution.IsConcurrent {
		return t.parent(execution)
	}
	return execution
}

// createChild creates a scope execution, which is positioned at the given element.
func (t *executionTree) createChild(parent *ExecutionEntity, bpmnElementId string) (*ExecutionEntity, error) {
	return t.insert(parent, bpmnElementId, false)
}

// createConcurrentSibling creates a concurrent execution within the scope of the given parent.
func (t *executionTree) createConcurrentSibling(parent *ExecutionEntity, bpmnElementId string) (*ExecutionEntity, error) {
	return t.insert(parent, bpmnElementId, true)
}

func (t *executionTree) insert(parent *ExecutionEntity, bpmnElementId string, concurrent bool) (*ExecutionEntity, error) {
	execution := ExecutionEntity{
		ParentId:            int4(parent.Id),
		ProcessDefinitionId: parent.ProcessDefinitionId,
		ProcessInstanceId:   parent.ProcessInstanceId,

		BpmnElementId: text(bpmnElementId),
		IsActive:      true,
		IsConcurrent:  concurrent,
		IsScope:       !concurrent,
		StartedAt:     t.ctx.Time(),
		TenantId:      parent.TenantId,
	}

	if err := t.ctx.Executions().Insert(&execution); err != nil {
		return nil, err
	}

	t.executions[execution.Id] = &execution
	return &execution, nil
}

func (t *executionTree) setActive(execution *ExecutionEntity, active bool) error {
	if execution.IsActive == active {
		return nil
	}
	execution.IsActive = active
	return t.update(execution)
}

// setCurrentNode positions an execution at an element. An empty ID removes the position.
func (t *executionTree) setCurrentNode(execution *ExecutionEntity, bpmnElementId string, active bool) error {
	execution.BpmnElementId = text(bpmnElementId)
	execution.IsActive = active
	return t.update(execution)
}

func (t *executionTree) update(execution *ExecutionEntity) error {
	return t.ctx.Executions().Update(execution)
}

// concurrentize moves the token of a scope execution into a new concurrent child, so that further
// concurrent executions can be created within the scope. Jobs, event subscriptions and children of the scope
// execution are moved to the concurrent child. A concurrent execution is returned as it is.
func (t *executionTree) concurrentize(execution *ExecutionEntity) (*ExecutionEntity, error) {
	if execution.IsConcurrent {
		return execution, nil
	}

	children := t.children(execution)

	concurrent, err := t.createConcurrentSibling(execution, execution.BpmnElementId.String)
	if err != nil {
		return nil, err
	}
	if err := t.setActive(concurrent, execution.IsActive); err != nil {
		return nil, err
	}

	jobs, err := t.ctx.Jobs().SelectByExecution(execution.Id)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		job.ExecutionId = int4(concurrent.Id)
		if err := t.ctx.Jobs().Update(job); err != nil {
			return nil, err
		}
	}

	eventSubscriptions, err := t.ctx.EventSubscriptions().SelectByExecution(execution.Id)
	if err != nil {
		return nil, err
	}
	for _, eventSubscription := range eventSubscriptions {
		eventSubscription.ExecutionId = int4(concurrent.Id)
		if err := t.ctx.EventSubscriptions().Update(eventSubscription); err != nil {
			return nil, err
		}
	}

	for _, child := range children {
		child.ParentId = int4(concurrent.Id)
		if err := t.update(child); err != nil {
			return nil, err
		}
	}

	if err := t.setCurrentNode(execution, "", false); err != nil {
		return nil, err
	}

	return concurrent, nil
}

// descendants collects the IDs of an execution and all of its descendants breadth first.
func (t *executionTree) descendants(execution *ExecutionEntity) []int32 {
	ids := []int32{execution.Id}
	for i := 0; i < len(ids); i++ {
		for _, child := range t.executions {
			if child.ParentId.Valid && child.ParentId.Int32 == ids[i] {
				ids = append(ids, child.Id)
			}
		}
	}
	return ids
}

// destroy deletes an execution, its descendants and all of their jobs and event subscriptions.
// When the root is destroyed, the process instance is deleted and the end is notified with the given reason.
func (t *executionTree) destroy(execution *ExecutionEntity, reason string) error {
	ids := t.descendants(execution)

	if err := t.ctx.Jobs().DeleteByExecutions(ids); err != nil {
		return err
	}
	if err := t.ctx.EventSubscriptions().DeleteByExecutions(ids); err != nil {
		return err
	}
	if err := t.ctx.Executions().Delete(ids); err != nil {
		return err
	}

	for _, id := range ids {
		delete(t.executions, id)
	}

	if execution == t.root && !execution.IsEnded {
		t.notifyProcessInstanceEnded(reason)
	}

	return nil
}

// destroyChildren destroys all children of an execution.
func (t *executionTree) destroyChildren(execution *ExecutionEntity, reason string) error {
	for _, child := range t.children(execution) {
		if err := t.destroy(child, reason); err != nil {
			return err
		}
	}
	return nil
}

// end ends the process instance. Remaining children are destroyed, while the root is kept.
func (t *executionTree) end(reason string) error {
	if err := t.destroyChildren(t.root, reason); err != nil {
		return err
	}

	t.root.BpmnElementId = pgtype.Text{}
	t.root.EndedAt = timestamp(t.ctx.Time())
	t.root.IsActive = false
	t.root.IsEnded = true

	if err := t.update(t.root); err != nil {
		return err
	}

	t.notifyProcessInstanceEnded(reason)
	return nil
}

func (t *executionTree) notifyProcessInstanceEnded(reason string) {
	root := t.root

	t.ctx.Notifications().Add(engine.Notification{
		Type: engine.NotificationProcessInstanceEnded,
		Time: t.ctx.Time(),

		ExecutionId:         root.Id,
		ProcessDefinitionId: root.ProcessDefinitionId,
		ProcessInstanceId:   root.ProcessInstanceId,

		Reason:   reason,
		TenantId: root.TenantId,
	})

	endedAt := t.ctx.Time()
	t.ctx.Notifications().Record(engine.HistoryRecord{
		ExecutionId:         root.Id,
		ProcessDefinitionId: root.ProcessDefinitionId,
		ProcessInstanceId:   root.ProcessInstanceId,

		EndedAt:   &endedAt,
		StartedAt: root.StartedAt,
		TenantId:  root.TenantId,
	})

	t.ctx.Notifications().Count((*Metrics).ProcessInstanceEnded)
}
