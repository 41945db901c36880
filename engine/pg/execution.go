package pg

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type executionRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r executionRepository) Delete(ids []int32) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.tx.Exec(r.txCtx, "DELETE FROM execution WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("failed to delete executions %v: %v", ids, err)
	}
	return nil
}

func (r executionRepository) Insert(entity *internal.ExecutionEntity) error {
	row := r.tx.QueryRow(r.txCtx, "SELECT nextval('execution_id_seq')::INTEGER")
	if err := row.Scan(&entity.Id); err != nil {
		return fmt.Errorf("failed to select next execution ID: %v", err)
	}

	if entity.ProcessInstanceId == 0 {
		entity.ProcessInstanceId = entity.Id
	}

	if _, err := r.tx.Exec(r.txCtx, `
INSERT INTO execution (
	id,

	parent_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	business_key,
	ended_at,
	is_active,
	is_concurrent,
	is_ended,
	is_scope,
	revision,
	started_at,
	tenant_id,
	variables
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
	$15
)
`,
		entity.Id,

		entity.ParentId,
		entity.ProcessDefinitionId,
		entity.ProcessInstanceId,

		entity.BpmnElementId,
		entity.BusinessKey,
		entity.EndedAt,
		entity.IsActive,
		entity.IsConcurrent,
		entity.IsEnded,
		entity.IsScope,
		entity.Revision,
		entity.StartedAt,
		entity.TenantId,
		entity.Variables,
	); err != nil {
		return fmt.Errorf("failed to insert execution %s: %v", entity, err)
	}

	return nil
}

func (r executionRepository) Select(id int32) (*internal.ExecutionEntity, error) {
	row := r.tx.QueryRow(r.txCtx, `
SELECT
	id,

	parent_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	business_key,
	ended_at,
	is_active,
	is_concurrent,
	is_ended,
	is_scope,
	revision,
	started_at,
	tenant_id,
	variables
FROM
	execution
WHERE
	id = $1
`, id)

	entity, err := scanExecution(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to select execution %d: %v", id, err)
	}

	return entity, nil
}

func (r executionRepository) SelectByProcessDefinition(processDefinitionId int32) ([]*internal.ExecutionEntity, error) {
	return r.selectMany(`
SELECT
	id,

	parent_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	business_key,
	ended_at,
	is_active,
	is_concurrent,
	is_ended,
	is_scope,
	revision,
	started_at,
	tenant_id,
	variables
FROM
	execution
WHERE
	process_definition_id = $1 AND
	parent_id IS NULL
ORDER BY
	id
`, processDefinitionId)
}

// SelectByProcessInstance locks the process instance row, before all executions are selected.
// Concurrent commands on the same process instance are serialized until the transaction ends.
func (r executionRepository) SelectByProcessInstance(processInstanceId int32) ([]*internal.ExecutionEntity, error) {
	if _, err := r.tx.Exec(r.txCtx, "SELECT id FROM execution WHERE id = $1 FOR UPDATE", processInstanceId); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == deadlockDetected {
			return nil, engine.Error{
				Type:   engine.ErrorConflict,
				Title:  "failed to lock process instance",
				Detail: fmt.Sprintf("process instance %d is locked by a concurrent command", processInstanceId),
			}
		}
		return nil, fmt.Errorf("failed to lock process instance %d: %v", processInstanceId, err)
	}

	return r.selectMany(`
SELECT
	id,

	parent_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	business_key,
	ended_at,
	is_active,
	is_concurrent,
	is_ended,
	is_scope,
	revision,
	started_at,
	tenant_id,
	variables
FROM
	execution
WHERE
	process_instance_id = $1
ORDER BY
	id
`, processInstanceId)
}

func (r executionRepository) Update(entity *internal.ExecutionEntity) error {
	commandTag, err := r.tx.Exec(r.txCtx, `
UPDATE
	execution
SET
	parent_id = $3,
	bpmn_element_id = $4,
	ended_at = $5,
	is_active = $6,
	is_concurrent = $7,
	is_ended = $8,
	is_scope = $9,
	revision = revision + 1,
	tenant_id = $10,
	variables = $11
WHERE
	id = $1 AND
	revision = $2
`,
		entity.Id,
		entity.Revision,

		entity.ParentId,
		entity.BpmnElementId,
		entity.EndedAt,
		entity.IsActive,
		entity.IsConcurrent,
		entity.IsEnded,
		entity.IsScope,
		entity.TenantId,
		entity.Variables,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution %s: %v", entity, err)
	}

	if commandTag.RowsAffected() == 0 {
		return internal.NewConflictError(entity)
	}

	entity.Revision++
	return nil
}

func (r executionRepository) UpdateTenant(processInstanceId int32, tenantId string) error {
	if _, err := r.tx.Exec(r.txCtx, `
UPDATE
	execution
SET
	tenant_id = $2
WHERE
	process_instance_id = $1
`, processInstanceId, tenantId); err != nil {
		return fmt.Errorf("failed to update tenant of process instance %d: %v", processInstanceId, err)
	}
	return nil
}

func (r executionRepository) Query(criteria engine.ExecutionCriteria, options engine.QueryOptions) ([]engine.Execution, error) {
	var sql bytes.Buffer
	if err := sqlExecutionQuery.Execute(&sql, map[string]any{
		"c": criteria,
		"o": options,
	}); err != nil {
		return nil, fmt.Errorf("failed to execute execution query template: %v", err)
	}

	entities, err := r.selectMany(sql.String())
	if err != nil {
		return nil, err
	}

	results := make([]engine.Execution, len(entities))
	for i, entity := range entities {
		results[i] = entity.Execution()
	}

	return results, nil
}

func (r executionRepository) selectMany(sql string, args ...any) ([]*internal.ExecutionEntity, error) {
	rows, err := r.tx.Query(r.txCtx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select executions: %v", err)
	}

	defer rows.Close()

	var entities []*internal.ExecutionEntity
	for rows.Next() {
		entity, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %v", err)
		}

		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

func scanExecution(row pgx.Row) (*internal.ExecutionEntity, error) {
	var entity internal.ExecutionEntity
	if err := row.Scan(
		&entity.Id,

		&entity.ParentId,
		&entity.ProcessDefinitionId,
		&entity.ProcessInstanceId,

		&entity.BpmnElementId,
		&entity.BusinessKey,
		&entity.EndedAt,
		&entity.IsActive,
		&entity.IsConcurrent,
		&entity.IsEnded,
		&entity.IsScope,
		&entity.Revision,
		&entity.StartedAt,
		&entity.TenantId,
		&entity.Variables,
	); err != nil {
		return nil, err
	}
	return &entity, nil
}
