package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
	"github.com/jackc/pgx/v5"
)

type DeploymentEntity struct {
	Id int32

	BpmnXml    string
	DeployedAt time.Time
	Name       string
	TenantId   string
}

func (e DeploymentEntity) Deployment() engine.Deployment {
	return engine.Deployment{
		Id: e.Id,

		DeployedAt: e.DeployedAt,
		Name:       e.Name,
		TenantId:   e.TenantId,
	}
}

type DeploymentRepository interface {
	Delete(id int32) error
	Insert(*DeploymentEntity) error
	Select(id int32) (*DeploymentEntity, error)
	Update(*DeploymentEntity) error

	Query(engine.DeploymentCriteria, engine.QueryOptions) ([]engine.Deployment, error)
}

func DeleteDeployment(ctx Context, cmd engine.DeleteDeploymentCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}

	deployment, err := ctx.Deployments().Select(cmd.Id)
	if err == pgx.ErrNoRows {
		return engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to delete deployment",
			Detail: fmt.Sprintf("deployment %d could not be found", cmd.Id),
		}
	}
	if err != nil {
		return err
	}

	processDefinitions, err := ctx.ProcessDefinitions().SelectByDeployment(deployment.Id)
	if err != nil {
		return err
	}

	var processInstances []*ExecutionEntity
	for _, processDefinition := range processDefinitions {
		roots, err := ctx.Executions().SelectByProcessDefinition(processDefinition.Id)
		if err != nil {
			return err
		}

		for _, root := range roots {
			if !root.IsEnded && !cmd.Cascade {
				return engine.Error{
					Type:  engine.ErrorIllegalState,
					Title: "failed to delete deployment",
					Detail: fmt.Sprintf(
						"process definition %s has running process instances, e.g. %d",
						processDefinition,
						root.Id,
					),
				}
			}
		}

		processInstances = append(processInstances, roots...)
	}

	for _, root := range processInstances {
		tree, err := loadExecutionTree(ctx, root.Id)
		if err != nil {
			return err
		}
		if err := tree.destroy(tree.root, "deployment deleted"); err != nil {
			return err
		}
	}

	for _, processDefinition := range processDefinitions {
		if err := ctx.Jobs().DeleteByProcessDefinition(processDefinition.Id); err != nil {
			return err
		}
		if err := ctx.EventSubscriptions().DeleteByProcessDefinition(processDefinition.Id); err != nil {
			return err
		}
		if err := ctx.ProcessDefinitions().Delete(processDefinition.Id); err != nil {
			return err
		}

		ctx.ProcessCache().Remove(processDefinition.Id)
	}

	if err := ctx.Deployments().Delete(deployment.Id); err != nil {
		return err
	}

	for _, processDefinition := range processDefinitions {
		if err := refreshStartEvents(ctx, processDefinition.Key, processDefinition.TenantId); err != nil {
			return err
		}
	}

	return nil
}

func Deploy(ctx Context, cmd engine.DeployCmd) (engine.Deployment, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return engine.Deployment{}, err
	}

	bpmnModel, err := model.New(strings.NewReader(cmd.BpmnXml))
	if err != nil {
		return engine.Deployment{}, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to parse BPMN XML",
			Detail: err.Error(),
		}
	}

	var (
		processes []*model.Element
		causes    = validateSequenceFlows(bpmnModel.SequenceFlows)
	)
	for _, process := range bpmnModel.Definitions.Processes {
		if !process.Model.(model.Process).IsExecutable {
			continue
		}

		processes = append(processes, process)
		causes = append(causes, validateProcess(process)...)
	}

	if len(processes) == 0 {
		return engine.Deployment{}, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to deploy BPMN XML",
			Detail: "BPMN XML contains no executable process",
		}
	}
	if len(causes) != 0 {
		return engine.Deployment{}, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to deploy BPMN XML",
			Detail: "BPMN XML contains invalid processes",
			Causes: causes,
		}
	}

	deployment := DeploymentEntity{
		BpmnXml:    cmd.BpmnXml,
		DeployedAt: ctx.Time(),
		Name:       cmd.Name,
		TenantId:   cmd.TenantId,
	}

	if err := ctx.Deployments().Insert(&deployment); err != nil {
		return engine.Deployment{}, err
	}

	processDefinitions := make([]engine.ProcessDefinition, len(processes))
	for i, process := range processes {
		versions, err := ctx.ProcessDefinitions().SelectByKey(process.Id, cmd.TenantId)
		if err != nil {
			return engine.Deployment{}, err
		}

		var version int32 = 1
		if len(versions) != 0 {
			version = versions[len(versions)-1].Version + 1
		}

		processDefinition := ProcessDefinitionEntity{
			DeploymentId: deployment.Id,

			CreatedAt: ctx.Time(),
			Key:       process.Id,
			Name:      process.Name,
			TenantId:  cmd.TenantId,
			Version:   version,
		}

		if err := ctx.ProcessDefinitions().Insert(&processDefinition); err != nil {
			return engine.Deployment{}, err
		}

		ctx.ProcessCache().Add(newProcessGraph(processDefinition.Id, process))

		if err := refreshStartEvents(ctx, processDefinition.Key, processDefinition.TenantId); err != nil {
			return engine.Deployment{}, err
		}

		processDefinitions[i] = processDefinition.ProcessDefinition()
	}

	result := deployment.Deployment()
	result.ProcessDefinitions = processDefinitions
	return result, nil
}

func QueryDeployments(ctx Context, criteria engine.DeploymentCriteria, options engine.QueryOptions) ([]engine.Deployment, error) {
	deployments, err := ctx.Deployments().Query(criteria, options)
	if err != nil {
		return nil, err
	}

	for i := range deployments {
		processDefinitions, err := ctx.ProcessDefinitions().Query(engine.ProcessDefinitionCriteria{
			DeploymentId: deployments[i].Id,
		}, engine.QueryOptions{})
		if err != nil {
			return nil, err
		}

		deployments[i].ProcessDefinitions = processDefinitions
	}

	return deployments, nil
}

// SetDeploymentTenant migrates a deployment, its process definitions and their process instances.
// Since versions are counted per key and tenant, the migrated process definitions get the next versions of the new tenant.
func SetDeploymentTenant(ctx Context, cmd engine.SetDeploymentTenantCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}

	deployment, err := ctx.Deployments().Select(cmd.Id)
	if err == pgx.ErrNoRows {
		return engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to set deployment tenant",
			Detail: fmt.Sprintf("deployment %d could not be found", cmd.Id),
		}
	}
	if err != nil {
		return err
	}

	oldTenantId := deployment.TenantId
	if oldTenantId == cmd.TenantId {
		return nil
	}

	deployment.TenantId = cmd.TenantId
	if err := ctx.Deployments().Update(deployment); err != nil {
		return err
	}

	processDefinitions, err := ctx.ProcessDefinitions().SelectByDeployment(deployment.Id)
	if err != nil {
		return err
	}

	for _, processDefinition := range processDefinitions {
		versions, err := ctx.ProcessDefinitions().SelectByKey(processDefinition.Key, cmd.TenantId)
		if err != nil {
			return err
		}

		var version int32 = 1
		if len(versions) != 0 {
			version = versions[len(versions)-1].Version + 1
		}

		processDefinition.TenantId = cmd.TenantId
		processDefinition.Version = version

		if err := ctx.ProcessDefinitions().Update(processDefinition); err != nil {
			return err
		}

		roots, err := ctx.Executions().SelectByProcessDefinition(processDefinition.Id)
		if err != nil {
			return err
		}
		for _, root := range roots {
			if err := migrateProcessInstance(ctx, root.Id, cmd.TenantId); err != nil {
				return err
			}
		}

		if err := deleteStartEvents(ctx, processDefinition.Id); err != nil {
			return err
		}
	}

	for _, processDefinition := range processDefinitions {
		if err := refreshStartEvents(ctx, processDefinition.Key, oldTenantId); err != nil {
			return err
		}
		if err := refreshStartEvents(ctx, processDefinition.Key, cmd.TenantId); err != nil {
			return err
		}
	}

	return nil
}
