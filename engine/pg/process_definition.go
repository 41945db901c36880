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

// SQLSTATE of a unique constraint violation
const (
	deadlockDetected = "40P01"
	uniqueViolation  = "23505"
)

type processDefinitionRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r processDefinitionRepository) Delete(id int32) error {
	if _, err := r.tx.Exec(r.txCtx, "DELETE FROM process_definition WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete process definition %d: %v", id, err)
	}
	return nil
}

func (r processDefinitionRepository) Insert(entity *internal.ProcessDefinitionEntity) error {
	row := r.tx.QueryRow(r.txCtx, `
INSERT INTO process_definition (
	deployment_id,

	created_at,
	is_suspended,
	key,
	name,
	tenant_id,
	version
) VALUES (
	$1,

	$2,
	$3,
	$4,
	$5,
	$6,
	$7
) RETURNING id
`,
		entity.DeploymentId,

		entity.CreatedAt,
		entity.IsSuspended,
		entity.Key,
		entity.Name,
		entity.TenantId,
		entity.Version,
	)

	if err := row.Scan(&entity.Id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return engine.Error{
				Type:   engine.ErrorConflict,
				Title:  "failed to insert process definition",
				Detail: fmt.Sprintf("process definition %s of tenant '%s' has been deployed concurrently", entity, entity.TenantId),
			}
		}
		return fmt.Errorf("failed to insert process definition %s: %v", entity, err)
	}

	return nil
}

func (r processDefinitionRepository) Select(id int32) (*internal.ProcessDefinitionEntity, error) {
	row := r.tx.QueryRow(r.txCtx, `
SELECT
	id,

	deployment_id,

	created_at,
	is_suspended,
	key,
	name,
	tenant_id,
	version
FROM
	process_definition
WHERE
	id = $1
`, id)

	entity, err := scanProcessDefinition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to select process definition %d: %v", id, err)
	}

	return entity, nil
}

func (r processDefinitionRepository) SelectByDeployment(deploymentId int32) ([]*internal.ProcessDefinitionEntity, error) {
	return r.selectMany(`
SELECT
	id,

	deployment_id,

	created_at,
	is_suspended,
	key,
	name,
	tenant_id,
	version
FROM
	process_definition
WHERE
	deployment_id = $1
ORDER BY
	id
`, deploymentId)
}

func (r processDefinitionRepository) SelectByKey(key string, tenantId string) ([]*internal.ProcessDefinitionEntity, error) {
	return r.selectMany(`
SELECT
	id,

	deployment_id,

	created_at,
	is_suspended,
	key,
	name,
	tenant_id,
	version
FROM
	process_definition
WHERE
	key = $1 AND
	tenant_id = $2
ORDER BY
	version
`, key, tenantId)
}

func (r processDefinitionRepository) Update(entity *internal.ProcessDefinitionEntity) error {
	if _, err := r.tx.Exec(r.txCtx, `
UPDATE
	process_definition
SET
	is_suspended = $2,
	tenant_id = $3,
	version = $4
WHERE
	id = $1
`,
		entity.Id,
		entity.IsSuspended,
		entity.TenantId,
		entity.Version,
	); err != nil {
		return fmt.Errorf("failed to update process definition %d: %v", entity.Id, err)
	}

	return nil
}

func (r processDefinitionRepository) Query(criteria engine.ProcessDefinitionCriteria, options engine.QueryOptions) ([]engine.ProcessDefinition, error) {
	var sql bytes.Buffer
	if err := sqlProcessDefinitionQuery.Execute(&sql, map[string]any{
		"c": criteria,
		"o": options,
	}); err != nil {
		return nil, fmt.Errorf("failed to execute process definition query template: %v", err)
	}

	entities, err := r.selectMany(sql.String())
	if err != nil {
		return nil, err
	}

	results := make([]engine.ProcessDefinition, len(entities))
	for i, entity := range entities {
		results[i] = entity.ProcessDefinition()
	}

	return results, nil
}

func (r processDefinitionRepository) selectMany(sql string, args ...any) ([]*internal.ProcessDefinitionEntity, error) {
	rows, err := r.tx.Query(r.txCtx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select process definitions: %v", err)
	}

	defer rows.Close()

	var entities []*internal.ProcessDefinitionEntity
	for rows.Next() {
		entity, err := scanProcessDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process definition row: %v", err)
		}

		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

func scanProcessDefinition(row pgx.Row) (*internal.ProcessDefinitionEntity, error) {
	var entity internal.ProcessDefinitionEntity
	if err := row.Scan(
		&entity.Id,

		&entity.DeploymentId,

		&entity.CreatedAt,
		&entity.IsSuspended,
		&entity.Key,
		&entity.Name,
		&entity.TenantId,
		&entity.Version,
	); err != nil {
		return nil, err
	}
	return &entity, nil
}
