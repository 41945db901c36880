package mem

import (
	"slices"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

type eventSubscriptionRepository struct {
	entities []internal.EventSubscriptionEntity
	id       int32
}

func (r *eventSubscriptionRepository) Delete(id int32) (bool, error) {
	n := len(r.entities)
	r.entities = slices.DeleteFunc(r.entities, func(e internal.EventSubscriptionEntity) bool {
		return e.Id == id
	})
	return len(r.entities) != n, nil
}

func (r *eventSubscriptionRepository) DeleteByExecutions(executionIds []int32) error {
	r.entities = slices.DeleteFunc(r.entities, func(e internal.EventSubscriptionEntity) bool {
		return e.ExecutionId.Valid && slices.Contains(executionIds, e.ExecutionId.Int32)
	})
	return nil
}

func (r *eventSubscriptionRepository) DeleteByProcessDefinition(processDefinitionId int32) error {
	r.entities = slices.DeleteFunc(r.entities, func(e internal.EventSubscriptionEntity) bool {
		return e.ProcessDefinitionId == processDefinitionId
	})
	return nil
}

func (r *eventSubscriptionRepository) Insert(entity *internal.EventSubscriptionEntity) error {
	r.id++
	entity.Id = r.id
	r.entities = append(r.entities, *entity)
	return nil
}

func (r *eventSubscriptionRepository) SelectByEvent(eventType engine.EventType, eventName string, tenantId string) ([]*internal.EventSubscriptionEntity, error) {
	var results []*internal.EventSubscriptionEntity
	for _, e := range r.entities {
		if e.EventType == eventType && e.EventName == eventName && e.TenantId == tenantId {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *eventSubscriptionRepository) SelectByExecution(executionId int32) ([]*internal.EventSubscriptionEntity, error) {
	var results []*internal.EventSubscriptionEntity
	for _, e := range r.entities {
		if e.ExecutionId.Valid && e.ExecutionId.Int32 == executionId {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *eventSubscriptionRepository) SelectStartEvents(processDefinitionId int32) ([]*internal.EventSubscriptionEntity, error) {
	var results []*internal.EventSubscriptionEntity
	for _, e := range r.entities {
		if e.ProcessDefinitionId == processDefinitionId && !e.ExecutionId.Valid {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *eventSubscriptionRepository) Update(entity *internal.EventSubscriptionEntity) error {
	for i, e := range r.entities {
		if e.Id == entity.Id {
			r.entities[i] = *entity
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *eventSubscriptionRepository) UpdateTenant(processInstanceId int32, tenantId string) error {
	for i, e := range r.entities {
		if e.ProcessInstanceId.Valid && e.ProcessInstanceId.Int32 == processInstanceId {
			r.entities[i].TenantId = tenantId
		}
	}
	return nil
}

func (r *eventSubscriptionRepository) Query(c engine.EventSubscriptionCriteria, o engine.QueryOptions) ([]engine.EventSubscription, error) {
	var (
		offset int
		limit  int
	)

	results := make([]engine.EventSubscription, 0)
	for _, e := range r.entities {
		if c.Id != 0 && c.Id != e.Id {
			continue
		}
		if c.ExecutionId != 0 && c.ExecutionId != e.ExecutionId.Int32 {
			continue
		}
		if c.ProcessDefinitionId != 0 && c.ProcessDefinitionId != e.ProcessDefinitionId {
			continue
		}
		if c.ProcessInstanceId != 0 && c.ProcessInstanceId != e.ProcessInstanceId.Int32 {
			continue
		}
		if c.EventName != "" && c.EventName != e.EventName {
			continue
		}
		if c.EventType != 0 && c.EventType != e.EventType {
			continue
		}
		if c.TenantId != nil && *c.TenantId != e.TenantId {
			continue
		}

		if offset < o.Offset {
			offset++
			continue
		}

		results = append(results, e.EventSubscription())
		limit++

		if o.Limit > 0 && limit == o.Limit {
			break
		}
	}

	return results, nil
}
