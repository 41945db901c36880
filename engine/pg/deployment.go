package pg

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

type deploymentRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r deploymentRepository) Delete(id int32) error {
	if _, err := r.tx.Exec(r.txCtx, "DELETE FROM deployment WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete deployment %d: %v", id, err)
	}
	return nil
}

func (r deploymentRepository) Insert(entity *internal.DeploymentEntity) error {
	row := r.tx.QueryRow(r.txCtx, `
INSERT INTO deployment (
	bpmn_xml,
	deployed_at,
	name,
	tenant_id
) VALUES (
	$1,
	$2,
	$3,
	$4
) RETURNING id
`,
		entity.BpmnXml,
		entity.DeployedAt,
		entity.Name,
		entity.TenantId,
	)

	if err := row.Scan(&entity.Id); err != nil {
		return fmt.Errorf("failed to insert deployment %s: %v", entity.Name, err)
	}

	return nil
}

func (r deploymentRepository) Select(id int32) (*internal.DeploymentEntity, error) {
	row := r.tx.QueryRow(r.txCtx, `
SELECT
	bpmn_xml,
	deployed_at,
	name,
	tenant_id
FROM
	deployment
WHERE
	id = $1
`, id)

	var entity internal.DeploymentEntity
	if err := row.Scan(
		&entity.BpmnXml,
		&entity.DeployedAt,
		&entity.Name,
		&entity.TenantId,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to select deployment %d: %v", id, err)
	}

	entity.Id = id

	return &entity, nil
}

func (r deploymentRepository) Update(entity *internal.DeploymentEntity) error {
	if _, err := r.tx.Exec(r.txCtx, `
UPDATE
	deployment
SET
	name = $2,
	tenant_id = $3
WHERE
	id = $1
`,
		entity.Id,
		entity.Name,
		entity.TenantId,
	); err != nil {
		return fmt.Errorf("failed to update deployment %d: %v", entity.Id, err)
	}

	return nil
}

func (r deploymentRepository) Query(criteria engine.DeploymentCriteria, options engine.QueryOptions) ([]engine.Deployment, error) {
	var sql bytes.Buffer
	if err := sqlDeploymentQuery.Execute(&sql, map[string]any{
		"c": criteria,
		"o": options,
	}); err != nil {
		return nil, fmt.Errorf("failed to execute deployment query template: %v", err)
	}

	rows, err := r.tx.Query(r.txCtx, sql.String())
	if err != nil {
		return nil, fmt.Errorf("failed to execute deployment query: %v", err)
	}

	defer rows.Close()

	results := make([]engine.Deployment, 0)
	for rows.Next() {
		var entity internal.DeploymentEntity

		if err := rows.Scan(
			&entity.Id,

			&entity.DeployedAt,
			&entity.Name,
			&entity.TenantId,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deployment row: %v", err)
		}

		results = append(results, entity.Deployment())
	}

	return results, nil
}
