package internal

import (
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/jackc/pgx/v5/pgtype"
)

type ExecutionEntity struct {
	Id int32

	ParentId            pgtype.Int4
	ProcessDefinitionId int32
	ProcessInstanceId   int32

	BpmnElementId pgtype.Text
	BusinessKey   pgtype.Text
	EndedAt       pgtype.Timestamp
	IsActive      bool
	IsConcurrent  bool
	IsEnded       bool
	IsScope       bool
	Revision      int32
	StartedAt     time.Time
	TenantId      string
	Variables     map[string]any // Variables of a process instance, set at the root only.
}

func (e ExecutionEntity) Execution() engine.Execution {
	return engine.Execution{
		Id: e.Id,

		ParentId:            e.ParentId.Int32,
		ProcessDefinitionId: e.ProcessDefinitionId,
		ProcessInstanceId:   e.ProcessInstanceId,

		BpmnElementId: e.BpmnElementId.String,
		BusinessKey:   e.BusinessKey.String,
		EndedAt:       timeOrNil(e.EndedAt),
		IsActive:      e.IsActive,
		IsConcurrent:  e.IsConcurrent,
		IsEnded:       e.IsEnded,
		IsScope:       e.IsScope,
		StartedAt:     e.StartedAt,
		TenantId:      e.TenantId,
	}
}

func (e ExecutionEntity) String() string {
	return fmt.Sprintf("%d/%d", e.ProcessInstanceId, e.Id)
}

type ExecutionRepository interface {
	Delete(ids []int32) error
	// Insert inserts an execution. If the process instance ID is 0, the execution becomes a process instance.
	Insert(*ExecutionEntity) error
	Select(id int32) (*ExecutionEntity, error)
	// SelectByProcessDefinition selects the process instances of a process definition.
	SelectByProcessDefinition(processDefinitionId int32) ([]*ExecutionEntity, error)
	// SelectByProcessInstance selects all executions of a process instance, ordered by ID.
	// The process instance stays locked for other commands until the current command ends.
	SelectByProcessInstance(processInstanceId int32) ([]*ExecutionEntity, error)
	// Update updates an execution, if its revision has not been changed by another command.
	// Otherwise an [engine.Error] of type [engine.ErrorConflict] is returned. On success, the revision is incremented.
	Update(*ExecutionEntity) error
	UpdateTenant(processInstanceId int32, tenantId string) error

	Query(engine.ExecutionCriteria, engine.QueryOptions) ([]engine.Execution, error)
}

// NewConflictError returns the error of an execution update, whose revision is outdated.
func NewConflictError(entity *ExecutionEntity) error {
	return engine.Error{
		Type:   engine.ErrorConflict,
		Title:  "failed to update execution",
		Detail: fmt.Sprintf("execution %s has been modified concurrently", entity),
	}
}
