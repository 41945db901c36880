package mem

import (
	"slices"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

type processDefinitionRepository struct {
	entities []internal.ProcessDefinitionEntity
	id       int32
}

func (r *processDefinitionRepository) Delete(id int32) error {
	r.entities = slices.DeleteFunc(r.entities, func(e internal.ProcessDefinitionEntity) bool {
		return e.Id == id
	})
	return nil
}

func (r *processDefinitionRepository) Insert(entity *internal.ProcessDefinitionEntity) error {
	for _, e := range r.entities {
		if e.Key == entity.Key && e.TenantId == entity.TenantId && e.Version == entity.Version {
			return engine.Error{
				Type:   engine.ErrorConflict,
				Title:  "failed to insert process definition",
				Detail: "process definition " + entity.String() + " exists already",
			}
		}
	}

	r.id++
	entity.Id = r.id
	r.entities = append(r.entities, *entity)
	return nil
}

func (r *processDefinitionRepository) Select(id int32) (*internal.ProcessDefinitionEntity, error) {
	for _, e := range r.entities {
		if e.Id == id {
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *processDefinitionRepository) SelectByDeployment(deploymentId int32) ([]*internal.ProcessDefinitionEntity, error) {
	var results []*internal.ProcessDefinitionEntity
	for _, e := range r.entities {
		if e.DeploymentId == deploymentId {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *processDefinitionRepository) SelectByKey(key string, tenantId string) ([]*internal.ProcessDefinitionEntity, error) {
	var results []*internal.ProcessDefinitionEntity
	for _, e := range r.entities {
		if e.Key == key && e.TenantId == tenantId {
			results = append(results, &e)
		}
	}

	slices.SortFunc(results, func(a, b *internal.ProcessDefinitionEntity) int {
		return int(a.Version - b.Version)
	})
	return results, nil
}

func (r *processDefinitionRepository) Update(entity *internal.ProcessDefinitionEntity) error {
	for i, e := range r.entities {
		if e.Id == entity.Id {
			r.entities[i] = *entity
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *processDefinitionRepository) Query(c engine.ProcessDefinitionCriteria, o engine.QueryOptions) ([]engine.ProcessDefinition, error) {
	var (
		offset int
		limit  int
	)

	results := make([]engine.ProcessDefinition, 0)
	for _, e := range r.entities {
		if c.Id != 0 && c.Id != e.Id {
			continue
		}
		if c.DeploymentId != 0 && c.DeploymentId != e.DeploymentId {
			continue
		}
		if c.Key != "" && c.Key != e.Key {
			continue
		}
		if c.TenantId != nil && *c.TenantId != e.TenantId {
			continue
		}

		if offset < o.Offset {
			offset++
			continue
		}

		results = append(results, e.ProcessDefinition())
		limit++

		if o.Limit > 0 && limit == o.Limit {
			break
		}
	}

	return results, nil
}
