package mem

import (
	"slices"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

type deploymentRepository struct {
	entities []internal.DeploymentEntity
	id       int32
}

func (r *deploymentRepository) Delete(id int32) error {
	r.entities = slices.DeleteFunc(r.entities, func(e internal.DeploymentEntity) bool {
		return e.Id == id
	})
	return nil
}

func (r *deploymentRepository) Insert(entity *internal.DeploymentEntity) error {
	r.id++
	entity.Id = r.id
	r.entities = append(r.entities, *entity)
	return nil
}

func (r *deploymentRepository) Select(id int32) (*internal.DeploymentEntity, error) {
	for _, e := range r.entities {
		if e.Id == id {
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *deploymentRepository) Update(entity *internal.DeploymentEntity) error {
	for i, e := range r.entities {
		if e.Id == entity.Id {
			r.entities[i] = *entity
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *deploymentRepository) Query(c engine.DeploymentCriteria, o engine.QueryOptions) ([]engine.Deployment, error) {
	var (
		offset int
		limit  int
	)

	results := make([]engine.Deployment, 0)
	for _, e := range r.entities {
		if c.Id != 0 && c.Id != e.Id {
			continue
		}
		if c.TenantId != nil && *c.TenantId != e.TenantId {
			continue
		}

		if offset < o.Offset {
			offset++
			continue
		}

		results = append(results, e.Deployment())
		limit++

		if o.Limit > 0 && limit == o.Limit {
			break
		}
	}

	return results, nil
}
