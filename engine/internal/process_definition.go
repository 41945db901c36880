package internal

import (
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/jackc/pgx/v5"
)

type ProcessDefinitionEntity struct {
	Id int32

	DeploymentId int32

	CreatedAt   time.Time
	IsSuspended bool
	Key         string
	Name        string
	TenantId    string
	Version     int32
}

func (e ProcessDefinitionEntity) ProcessDefinition() engine.ProcessDefinition {
	return engine.ProcessDefinition{
		Id: e.Id,

		DeploymentId: e.DeploymentId,

		CreatedAt:   e.CreatedAt,
		IsSuspended: e.IsSuspended,
		Key:         e.Key,
		Name:        e.Name,
		TenantId:    e.TenantId,
		Version:     e.Version,
	}
}

func (e ProcessDefinitionEntity) String() string {
	return fmt.Sprintf("%s:%d", e.Key, e.Version)
}

type ProcessDefinitionRepository interface {
	Delete(id int32) error
	Insert(*ProcessDefinitionEntity) error
	Select(id int32) (*ProcessDefinitionEntity, error)
	SelectByDeployment(deploymentId int32) ([]*ProcessDefinitionEntity, error)
	// SelectByKey selects all versions of a key and tenant, ordered by version.
	SelectByKey(key string, tenantId string) ([]*ProcessDefinitionEntity, error)
	Update(*ProcessDefinitionEntity) error

	Query(engine.ProcessDefinitionCriteria, engine.QueryOptions) ([]engine.ProcessDefinition, error)
}

func ActivateProcessDefinition(ctx Context, cmd engine.ActivateProcessDefinitionCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}
	return setSuspended(ctx, "failed to activate process definition", cmd.Id, cmd.Key, cmd.TenantId, false)
}

func GetLatestProcessDefinition(ctx Context, cmd engine.GetLatestProcessDefinitionCmd) (engine.ProcessDefinition, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return engine.ProcessDefinition{}, err
	}

	latest, err := selectLatestProcessDefinition(ctx, cmd.Key, cmd.TenantId)
	if err != nil {
		return engine.ProcessDefinition{}, err
	}
	if latest == nil {
		return engine.ProcessDefinition{}, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to get latest process definition",
			Detail: fmt.Sprintf("no active process definition found for key %s and tenant '%s'", cmd.Key, cmd.TenantId),
		}
	}

	return latest.ProcessDefinition(), nil
}

func SuspendProcessDefinition(ctx Context, cmd engine.SuspendProcessDefinitionCmd) error {
	if err := engine.ValidateCmd(cmd); err != nil {
		return err
	}
	return setSuspended(ctx, "failed to suspend process definition", cmd.Id, cmd.Key, cmd.TenantId, true)
}

// selectLatestProcessDefinition returns the non-suspended process definition with the highest version or nil.
func selectLatestProcessDefinition(ctx Context, key string, tenantId string) (*ProcessDefinitionEntity, error) {
	versions, err := ctx.ProcessDefinitions().SelectByKey(key, tenantId)
	if err != nil {
		return nil, err
	}

	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].IsSuspended {
			return versions[i], nil
		}
	}
	return nil, nil
}

func setSuspended(ctx Context, title string, id int32, key string, tenantId string, suspended bool) error {
	var processDefinitions []*ProcessDefinitionEntity
	if id != 0 {
		processDefinition, err := ctx.ProcessDefinitions().Select(id)
		if err == pgx.ErrNoRows {
			return engine.Error{
				Type:   engine.ErrorNotFound,
				Title:  title,
				Detail: fmt.Sprintf("process definition %d could not be found", id),
			}
		}
		if err != nil {
			return err
		}

		processDefinitions = append(processDefinitions, processDefinition)
	} else {
		versions, err := ctx.ProcessDefinitions().SelectByKey(key, tenantId)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return engine.Error{
				Type:   engine.ErrorNotFound,
				Title:  title,
				Detail: fmt.Sprintf("no process definition found for key %s and tenant '%s'", key, tenantId),
			}
		}

		processDefinitions = versions
	}

	for _, processDefinition := range processDefinitions {
		if processDefinition.IsSuspended == suspended {
			continue
		}

		processDefinition.IsSuspended = suspended
		if err := ctx.ProcessDefinitions().Update(processDefinition); err != nil {
			return err
		}
	}

	first := processDefinitions[0]
	return refreshStartEvents(ctx, first.Key, first.TenantId)
}
