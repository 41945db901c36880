package internal

import (
	"fmt"
	"maps"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
	"github.com/jackc/pgx/v5"
)

func DeleteProcessInstance(ctx Context, cmd engine.DeleteProcessInstanceCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}

	tree, err := loadExecutionTree(ctx, cmd.Id)
	if err == pgx.ErrNoRows || (err == nil && tree.root.Id != cmd.Id) {
		return engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to delete process instance",
			Detail: fmt.Sprintf("process instance %d could not be found", cmd.Id),
		}
	}
	if err != nil {
		return err
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "deleted"
	}

	return tree.destroy(tree.root, reason)
}

func GetVariables(ctx Context, cmd engine.GetVariablesCmd) (map[string]any, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return nil, err
	}

	root, err := selectProcessInstance(ctx, cmd.ProcessInstanceId, "failed to get variables")
	if err != nil {
		return nil, err
	}

	variables := maps.Clone(root.Variables)
	if variables == nil {
		variables = make(map[string]any)
	}
	return variables, nil
}

func SetProcessInstanceTenant(ctx Context, cmd engine.SetProcessInstanceTenantCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}

	root, err := selectProcessInstance(ctx, cmd.Id, "failed to set process instance tenant")
	if err != nil {
		return err
	}
	if root.TenantId == cmd.TenantId {
		return nil
	}

	return migrateProcessInstance(ctx, root.Id, cmd.TenantId)
}

func StartProcessInstance(ctx Context, cmd engine.StartProcessInstanceCmd) (engine.Execution, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return engine.Execution{}, err
	}

	var processDefinition *ProcessDefinitionEntity
	if cmd.ProcessDefinitionId != 0 {
		selected, err := ctx.ProcessDefinitions().Select(cmd.ProcessDefinitionId)
		if err == pgx.ErrNoRows {
			return engine.Execution{}, engine.Error{
				Type:   engine.ErrorRouting,
				Title:  "failed to start process instance",
				Detail: fmt.Sprintf("process definition %d could not be found", cmd.ProcessDefinitionId),
			}
		}
		if err != nil {
			return engine.Execution{}, err
		}

		processDefinition = selected
	} else {
		latest, err := selectLatestProcessDefinition(ctx, cmd.Key, cmd.TenantId)
		if err != nil {
			return engine.Execution{}, err
		}
		if latest == nil {
			return engine.Execution{}, engine.Error{
				Type:   engine.ErrorRouting,
				Title:  "failed to start process instance",
				Detail: fmt.Sprintf("no active process definition found for key %s and tenant '%s'", cmd.Key, cmd.TenantId),
			}
		}

		processDefinition = latest
	}

	if processDefinition.IsSuspended {
		return engine.Execution{}, engine.Error{
			Type:   engine.ErrorRouting,
			Title:  "failed to start process instance",
			Detail: fmt.Sprintf("process definition %s is suspended", processDefinition),
		}
	}

	graph, err := ctx.ProcessCache().GetOrCache(ctx, processDefinition.Id)
	if err != nil {
		return engine.Execution{}, err
	}

	startEvent := noneStartEvent(graph.Process)
	if startEvent == nil {
		return engine.Execution{}, engine.Error{
			Type:   engine.ErrorRouting,
			Title:  "failed to start process instance",
			Detail: fmt.Sprintf("process definition %s has no none start event", processDefinition),
		}
	}

	tree, err := startProcessInstance(ctx, processDefinition, startEvent, cmd.BusinessKey, cmd.Variables)
	if err != nil {
		return engine.Execution{}, err
	}

	return tree.root.Execution(), nil
}

// Trigger continues an execution, which waits at a user task or a receive task.
func Trigger(ctx Context, cmd engine.TriggerCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}

	selected, err := ctx.Executions().Select(cmd.ExecutionId)
	if err == pgx.ErrNoRows {
		return engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to trigger execution",
			Detail: fmt.Sprintf("execution %d could not be found", cmd.ExecutionId),
		}
	}
	if err != nil {
		return err
	}

	tree, err := loadExecutionTree(ctx, selected.ProcessInstanceId)
	if err != nil {
		return err
	}

	execution, ok := tree.get(selected.Id)
	if !ok {
		return engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to trigger execution",
			Detail: fmt.Sprintf("execution %d could not be found", cmd.ExecutionId),
		}
	}

	a, err := newAgenda(ctx, tree)
	if err != nil {
		return err
	}

	var element *model.Element
	if execution.BpmnElementId.Valid {
		element, err = a.graph.element(execution.BpmnElementId.String)
		if err != nil {
			return err
		}
	}

	if execution.IsActive || element == nil || (element.Type != model.ElementUserTask && element.Type != model.ElementReceiveTask) {
		return engine.Error{
			Type:   engine.ErrorIllegalState,
			Title:  "failed to trigger execution",
			Detail: fmt.Sprintf("execution %s is not waiting at a user task or a receive task", execution),
		}
	}

	if err := setVariables(tree, cmd.Variables); err != nil {
		return err
	}
	if err := tree.setActive(execution, true); err != nil {
		return err
	}
	if err := a.leave(execution, element); err != nil {
		return err
	}
	return a.run()
}

// migrateProcessInstance moves the executions, jobs and event subscriptions of a process instance to another tenant.
func migrateProcessInstance(ctx Context, processInstanceId int32, tenantId string) error {
	if err := ctx.Executions().UpdateTenant(processInstanceId, tenantId); err != nil {
		return err
	}
	if err := ctx.Jobs().UpdateTenant(processInstanceId, tenantId); err != nil {
		return err
	}
	return ctx.EventSubscriptions().UpdateTenant(processInstanceId, tenantId)
}

func selectProcessInstance(ctx Context, id int32, title string) (*ExecutionEntity, error) {
	root, err := ctx.Executions().Select(id)
	if err == pgx.ErrNoRows || (err == nil && root.ParentId.Valid) {
		return nil, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  title,
			Detail: fmt.Sprintf("process instance %d could not be found", id),
		}
	}
	if err != nil {
		return nil, err
	}
	return root, nil
}

// setVariables sets variables at the process instance of a tree.
func setVariables(tree *executionTree, variables map[string]any) error {
	if len(variables) == 0 {
		return nil
	}

	tree.root.Variables = mergeVariables(tree.root.Variables, variables)
	return tree.update(tree.root)
}

// startProcessInstance creates a process instance at a start event and continues it.
func startProcessInstance(ctx Context, processDefinition *ProcessDefinitionEntity, startEvent *model.Element, businessKey string, variables map[string]any) (*executionTree, error) {
	tree, err := newExecutionTree(ctx, processDefinition, businessKey, variables)
	if err != nil {
		return nil, err
	}

	root := tree.root
	if err := tree.setCurrentNode(root, startEvent.Id, true); err != nil {
		return nil, err
	}

	ctx.Notifications().Add(engine.Notification{
		Type: engine.NotificationProcessInstanceStarted,
		Time: ctx.Time(),

		ExecutionId:         root.Id,
		ProcessDefinitionId: root.ProcessDefinitionId,
		ProcessInstanceId:   root.ProcessInstanceId,

		BpmnElementId: startEvent.Id,
		TenantId:      root.TenantId,
	})
	ctx.Notifications().Record(engine.HistoryRecord{
		ExecutionId:         root.Id,
		ProcessDefinitionId: root.ProcessDefinitionId,
		ProcessInstanceId:   root.ProcessInstanceId,

		Name:      processDefinition.Name,
		StartedAt: root.StartedAt,
		TenantId:  root.TenantId,
	})
	ctx.Notifications().Count((*Metrics).ProcessInstanceStarted)

	a, err := newAgenda(ctx, tree)
	if err != nil {
		return nil, err
	}

	a.continueProcess(root)
	if err := a.run(); err != nil {
		return nil, err
	}

	return tree, nil
}
