package mem

import (
	"cmp"
	"slices"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type jobRepository struct {
	entities []internal.JobEntity
	id       int32
}

func (r *jobRepository) Delete(id int32) (bool, error) {
	n := len(r.entities)
	r.entities = slices.DeleteFunc(r.entities, func(e internal.JobEntity) bool {
		return e.Id == id
	})
	return len(r.entities) != n, nil
}

func (r *jobRepository) DeleteByExecutions(executionIds []int32) error {
	r.entities = slices.DeleteFunc(r.entities, func(e internal.JobEntity) bool {
		return e.ExecutionId.Valid && slices.Contains(executionIds, e.ExecutionId.Int32)
	})
	return nil
}

func (r *jobRepository) DeleteByProcessDefinition(processDefinitionId int32) error {
	r.entities = slices.DeleteFunc(r.entities, func(e internal.JobEntity) bool {
		return e.ProcessDefinitionId == processDefinitionId
	})
	return nil
}

func (r *jobRepository) Insert(entity *internal.JobEntity) error {
	r.id++
	entity.Id = r.id
	r.entities = append(r.entities, *entity)
	return nil
}

func (r *jobRepository) Select(id int32) (*internal.JobEntity, error) {
	for _, e := range r.entities {
		if e.Id == id {
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *jobRepository) SelectByExecution(executionId int32) ([]*internal.JobEntity, error) {
	var results []*internal.JobEntity
	for _, e := range r.entities {
		if e.ExecutionId.Valid && e.ExecutionId.Int32 == executionId {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *jobRepository) SelectTimerStartJobs(processDefinitionId int32) ([]*internal.JobEntity, error) {
	var results []*internal.JobEntity
	for _, e := range r.entities {
		if e.ProcessDefinitionId == processDefinitionId && e.Type == engine.JobTimerStart {
			results = append(results, &e)
		}
	}
	return results, nil
}

func (r *jobRepository) Update(entity *internal.JobEntity) error {
	for i, e := range r.entities {
		if e.Id == entity.Id {
			r.entities[i] = *entity
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *jobRepository) UpdateTenant(processInstanceId int32, tenantId string) error {
	for i, e := range r.entities {
		if e.ProcessInstanceId.Valid && e.ProcessInstanceId.Int32 == processInstanceId {
			r.entities[i].TenantId = tenantId
		}
	}
	return nil
}

func (r *jobRepository) Query(c engine.JobCriteria, o engine.QueryOptions) ([]engine.Job, error) {
	var (
		offset int
		limit  int
	)

	results := make([]engine.Job, 0)
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
		if c.BpmnElementId != "" && c.BpmnElementId != e.BpmnElementId {
			continue
		}
		if c.DeadOnly && !e.IsDead {
			continue
		}
		if c.TenantId != nil && *c.TenantId != e.TenantId {
			continue
		}
		if c.Type != 0 && c.Type != e.Type {
			continue
		}

		if offset < o.Offset {
			offset++
			continue
		}

		results = append(results, e.Job())
		limit++

		if o.Limit > 0 && limit == o.Limit {
			break
		}
	}

	return results, nil
}

func (r *jobRepository) Lock(cmd engine.LockJobsCmd, now time.Time, lockExpiresAt time.Time) ([]*internal.JobEntity, error) {
	var due []int
	for i, e := range r.entities {
		if e.IsDead || now.Before(e.DueAt) {
			continue
		}
		if e.LockOwner.Valid && !e.LockExpiresAt.Time.Before(now) {
			continue
		}

		if cmd.ProcessInstanceId != 0 && cmd.ProcessInstanceId != e.ProcessInstanceId.Int32 {
			continue
		}
		if len(cmd.Types) != 0 && !slices.Contains(cmd.Types, e.Type) {
			continue
		}

		due = append(due, i)
	}

	slices.SortFunc(due, func(a, b int) int {
		if c := r.entities[a].DueAt.Compare(r.entities[b].DueAt); c != 0 {
			return c
		}
		return cmp.Compare(r.entities[a].Id, r.entities[b].Id)
	})

	if cmd.Limit > 0 && len(due) > cmd.Limit {
		due = due[:cmd.Limit]
	}

	results := make([]*internal.JobEntity, len(due))
	for j, i := range due {
		r.entities[i].LockExpiresAt = pgtype.Timestamp{Time: lockExpiresAt, Valid: true}
		r.entities[i].LockOwner = pgtype.Text{String: cmd.WorkerId, Valid: true}

		locked := r.entities[i]
		results[j] = &locked
	}

	return results, nil
}

func (r *jobRepository) Unlock(cmd engine.UnlockJobsCmd) (int, error) {
	count := 0
	for i, e := range r.entities {
		if !e.LockOwner.Valid || e.LockOwner.String != cmd.WorkerId {
			continue
		}
		if cmd.Id != 0 && cmd.Id != e.Id {
			continue
		}

		r.entities[i].LockExpiresAt = pgtype.Timestamp{}
		r.entities[i].LockOwner = pgtype.Text{}
		count++
	}
	return count, nil
}
