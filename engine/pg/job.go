package pg

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `
	id,

	execution_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	created_at,
	due_at,
	end_date,
	error,
	handler_config,
	is_dead,
	lock_expires_at,
	lock_owner,
	repeat,
	retries,
	tenant_id,
	type
`

type jobRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r jobRepository) Delete(id int32) (bool, error) {
	commandTag, err := r.tx.Exec(r.txCtx, "DELETE FROM job WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job %d: %v", id, err)
	}
	return commandTag.RowsAffected() != 0, nil
}

func (r jobRepository) DeleteByExecutions(executionIds []int32) error {
	if len(executionIds) == 0 {
		return nil
	}
	if _, err := r.tx.Exec(r.txCtx, "DELETE FROM job WHERE execution_id = ANY($1)", executionIds); err != nil {
		return fmt.Errorf("failed to delete jobs of executions %v: %v", executionIds, err)
	}
	return nil
}

func (r jobRepository) DeleteByProcessDefinition(processDefinitionId int32) error {
	if _, err := r.tx.Exec(r.txCtx, "DELETE FROM job WHERE process_definition_id = $1", processDefinitionId); err != nil {
		return fmt.Errorf("failed to delete jobs of process definition %d: %v", processDefinitionId, err)
	}
	return nil
}

func (r jobRepository) Insert(entity *internal.JobEntity) error {
	row := r.tx.QueryRow(r.txCtx, `
INSERT INTO job (
	execution_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	created_at,
	due_at,
	end_date,
	error,
	handler_config,
	is_dead,
	lock_expires_at,
	lock_owner,
	repeat,
	retries,
	tenant_id,
	type
) VALUES (
	$1,
	$2,
	$3,

	$4,
	$5,
	$6,
	$7,
	$8,
	$9,
	$10,
	$11,
	$12,
	$13,
	$14,
	$15,
	$16
) RETURNING id
`,
		entity.ExecutionId,
		entity.ProcessDefinitionId,
		entity.ProcessInstanceId,

		entity.BpmnElementId,
		entity.CreatedAt,
		entity.DueAt,
		entity.EndDate,
		entity.Error,
		entity.HandlerConfig,
		entity.IsDead,
		entity.LockExpiresAt,
		entity.LockOwner,
		entity.Repeat,
		entity.Retries,
		entity.TenantId,
		entity.Type.String(),
	)

	if err := row.Scan(&entity.Id); err != nil {
		return fmt.Errorf("failed to insert job %+v: %v", entity, err)
	}

	return nil
}

func (r jobRepository) Select(id int32) (*internal.JobEntity, error) {
	row := r.tx.QueryRow(r.txCtx, "SELECT"+jobColumns+"FROM job WHERE id = $1", id)

	entity, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to select job %d: %v", id, err)
	}

	return entity, nil
}

func (r jobRepository) SelectByExecution(executionId int32) ([]*internal.JobEntity, error) {
	return r.selectMany("SELECT"+jobColumns+"FROM job WHERE execution_id = $1 ORDER BY id", executionId)
}

func (r jobRepository) SelectTimerStartJobs(processDefinitionId int32) ([]*internal.JobEntity, error) {
	return r.selectMany(
		"SELECT"+jobColumns+"FROM job WHERE process_definition_id = $1 AND type = $2 ORDER BY id",
		processDefinitionId,
		engine.JobTimerStart.String(),
	)
}

func (r jobRepository) Update(entity *internal.JobEntity) error {
	commandTag, err := r.tx.Exec(r.txCtx, `
UPDATE
	job
SET
	execution_id = $2,
	due_at = $3,
	end_date = $4,
	error = $5,
	is_dead = $6,
	lock_expires_at = $7,
	lock_owner = $8,
	repeat = $9,
	retries = $10,
	tenant_id = $11
WHERE
	id = $1
`,
		entity.Id,

		entity.ExecutionId,
		entity.DueAt,
		entity.EndDate,
		entity.Error,
		entity.IsDead,
		entity.LockExpiresAt,
		entity.LockOwner,
		entity.Repeat,
		entity.Retries,
		entity.TenantId,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %d: %v", entity.Id, err)
	}

	if commandTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

func (r jobRepository) UpdateTenant(processInstanceId int32, tenantId string) error {
	if _, err := r.tx.Exec(r.txCtx, "UPDATE job SET tenant_id = $2 WHERE process_instance_id = $1", processInstanceId, tenantId); err != nil {
		return fmt.Errorf("failed to update tenant of jobs of process instance %d: %v", processInstanceId, err)
	}
	return nil
}

func (r jobRepository) Query(criteria engine.JobCriteria, options engine.QueryOptions) ([]engine.Job, error) {
	var sql bytes.Buffer
	if err := sqlJobQuery.Execute(&sql, map[string]any{
		"c": criteria,
		"o": options,
	}); err != nil {
		return nil, fmt.Errorf("failed to execute job query template: %v", err)
	}

	entities, err := r.selectMany(sql.String())
	if err != nil {
		return nil, err
	}

	results := make([]engine.Job, len(entities))
	for i, entity := range entities {
		results[i] = entity.Job()
	}

	return results, nil
}

func (r jobRepository) Lock(cmd engine.LockJobsCmd, now time.Time, lockExpiresAt time.Time) ([]*internal.JobEntity, error) {
	var sql bytes.Buffer
	if err := sqlJobLock.Execute(&sql, cmd); err != nil {
		return nil, fmt.Errorf("failed to execute job lock template: %v", err)
	}

	entities, err := r.selectMany(sql.String(), now, lockExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock jobs: %v", err)
	}

	// RETURNING does not preserve the order of the subquery
	slices.SortFunc(entities, func(a, b *internal.JobEntity) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})

	return entities, nil
}

func (r jobRepository) Unlock(cmd engine.UnlockJobsCmd) (int, error) {
	var sql bytes.Buffer
	if err := sqlJobUnlock.Execute(&sql, cmd); err != nil {
		return -1, fmt.Errorf("failed to execute job unlock template: %v", err)
	}

	commandTag, err := r.tx.Exec(r.txCtx, sql.String())
	if err != nil {
		return -1, fmt.Errorf("failed to unlock jobs: %v", err)
	}

	return int(commandTag.RowsAffected()), nil
}

func (r jobRepository) selectMany(sql string, args ...any) ([]*internal.JobEntity, error) {
	rows, err := r.tx.Query(r.txCtx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs: %v", err)
	}

	defer rows.Close()

	var entities []*internal.JobEntity
	for rows.Next() {
		entity, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %v", err)
		}

		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

func scanJob(row pgx.Row) (*internal.JobEntity, error) {
	var (
		entity    internal.JobEntity
		typeValue string
	)

	if err := row.Scan(
		&entity.Id,

		&entity.ExecutionId,
		&entity.ProcessDefinitionId,
		&entity.ProcessInstanceId,

		&entity.BpmnElementId,
		&entity.CreatedAt,
		&entity.DueAt,
		&entity.EndDate,
		&entity.Error,
		&entity.HandlerConfig,
		&entity.IsDead,
		&entity.LockExpiresAt,
		&entity.LockOwner,
		&entity.Repeat,
		&entity.Retries,
		&entity.TenantId,
		&typeValue,
	); err != nil {
		return nil, err
	}

	entity.Type = engine.MapJobType(typeValue)
	return &entity, nil
}
