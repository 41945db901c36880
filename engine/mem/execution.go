package mem

import (
	"slices"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

type executionRepository struct {
	entities []internal.ExecutionEntity
	id       int32
}

func (r *executionRepository) Delete(ids []int32) error {
	r.entities = slices.DeleteFunc(r.entities, func(e internal.ExecutionEntity) bool {
		return slices.Contains(ids, e.Id)
	})
	return nil
}

func (r *executionRepository) Insert(entity *internal.ExecutionEntity) error {
	r.id++
	entity.Id = r.id
	if entity.ProcessInstanceId == 0 {
		entity.ProcessInstanceId = entity.Id
	}

	r.entities = append(r.entities, *entity)
	return nil
}

func (r *executionRepository) Select(id int32) (*internal.ExecutionEntity, error) {
	for _, e := range r.entities {
		if e.Id == id {
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *executionRepository) SelectByProcessDefinition(processDefinitionId int32) ([]*internal.ExecutionEntity, error) {
	var results []*internal.ExecutionEntity
	for _, e := range r.entities {
		if e.ProcessDefinitionId == processDefinitionId && !e.ParentId.Valid {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *executionRepository) SelectByProcessInstance(processInstanceId int32) ([]*internal.ExecutionEntity, error) {
	var results []*internal.ExecutionEntity
	for _, e := range r.entities {
		if e.ProcessInstanceId == processInstanceId {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *executionRepository) Update(entity *internal.ExecutionEntity) error {
	for i, e := range r.entities {
		if e.Id != entity.Id {
			continue
		}

		if e.Revision != entity.Revision {
			return internal.NewConflictError(entity)
		}

		entity.Revision++
		r.entities[i] = *entity
		return nil
	}
	return pgx.ErrNoRows
}

func (r *executionRepository) UpdateTenant(processInstanceId int32, tenantId string) error {
	for i, e := range r.entities {
		if e.ProcessInstanceId == processInstanceId {
			r.entities[i].TenantId = tenantId
		}
	}
	return nil
}

func (r *executionRepository) Query(c engine.ExecutionCriteria, o engine.QueryOptions) ([]engine.Execution, error) {
	var (
		offset int
		limit  int
	)

	results := make([]engine.Execution, 0)
	for _, e := range r.entities {
		if c.Id != 0 && c.Id != e.Id {
			continue
		}
		if c.ParentId != 0 && c.ParentId != e.ParentId.Int32 {
			continue
		}
		if c.ProcessDefinitionId != 0 && c.ProcessDefinitionId != e.ProcessDefinitionId {
			continue
		}
		if c.ProcessInstanceId != 0 && c.ProcessInstanceId != e.ProcessInstanceId {
			continue
		}
		if c.BpmnElementId != "" && c.BpmnElementId != e.BpmnElementId.String {
			continue
		}
		if c.ProcessInstancesOnly && e.ParentId.Valid {
			continue
		}
		if c.TenantId != nil && *c.TenantId != e.TenantId {
			continue
		}

		if offset < o.Offset {
			offset++
			continue
		}

		results = append(results, e.Execution())
		limit++

		if o.Limit > 0 && limit == o.Limit {
			break
		}
	}

	return results, nil
}
