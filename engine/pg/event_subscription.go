package pg

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

const eventSubscriptionColumns = `
	id,

	execution_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	created_at,
	event_name,
	event_type,
	tenant_id
`

type eventSubscriptionRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r eventSubscriptionRepository) Delete(id int32) (bool, error) {
	commandTag, err := r.tx.Exec(r.txCtx, "DELETE FROM event_subscription WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete event subscription %d: %v", id, err)
	}
	return commandTag.RowsAffected() != 0, nil
}

func (r eventSubscriptionRepository) DeleteByExecutions(executionIds []int32) error {
	if len(executionIds) == 0 {
		return nil
	}
	if _, err := r.tx.Exec(r.txCtx, "DELETE FROM event_subscription WHERE execution_id = ANY($1)", executionIds); err != nil {
		return fmt.Errorf("failed to delete event subscriptions of executions %v: %v", executionIds, err)
	}
	return nil
}

func (r eventSubscriptionRepository) DeleteByProcessDefinition(processDefinitionId int32) error {
	if _, err := r.tx.Exec(r.txCtx, "DELETE FROM event_subscription WHERE process_definition_id = $1", processDefinitionId); err != nil {
		return fmt.Errorf("failed to delete event subscriptions of process definition %d: %v", processDefinitionId, err)
	}
	return nil
}

func (r eventSubscriptionRepository) Insert(entity *internal.EventSubscriptionEntity) error {
	row := r.tx.QueryRow(r.txCtx, `
INSERT INTO event_subscription (
	execution_id,
	process_definition_id,
	process_instance_id,

	bpmn_element_id,
	created_at,
	event_name,
	event_type,
	tenant_id
) VALUES (
	$1,
	$2,
	$3,

	$4,
	$5,
	$6,
	$7,
	$8
) RETURNING id
`,
		entity.ExecutionId,
		entity.ProcessDefinitionId,
		entity.ProcessInstanceId,

		entity.BpmnElementId,
		entity.CreatedAt,
		entity.EventName,
		entity.EventType.String(),
		entity.TenantId,
	)

	if err := row.Scan(&entity.Id); err != nil {
		return fmt.Errorf("failed to insert event subscription %+v: %v", entity, err)
	}

	return nil
}

func (r eventSubscriptionRepository) SelectByEvent(eventType engine.EventType, eventName string, tenantId string) ([]*internal.EventSubscriptionEntity, error) {
	return r.selectMany(
		"SELECT"+eventSubscriptionColumns+"FROM event_subscription WHERE event_type = $1 AND event_name = $2 AND tenant_id = $3 ORDER BY id",
		eventType.String(),
		eventName,
		tenantId,
	)
}

func (r eventSubscriptionRepository) SelectByExecution(executionId int32) ([]*internal.EventSubscriptionEntity, error) {
	return r.selectMany("SELECT"+eventSubscriptionColumns+"FROM event_subscription WHERE execution_id = $1 ORDER BY id", executionId)
}

func (r eventSubscriptionRepository) SelectStartEvents(processDefinitionId int32) ([]*internal.EventSubscriptionEntity, error) {
	return r.selectMany(
		"SELECT"+eventSubscriptionColumns+"FROM event_subscription WHERE process_definition_id = $1 AND execution_id IS NULL ORDER BY id",
		processDefinitionId,
	)
}

func (r eventSubscriptionRepository) Update(entity *internal.EventSubscriptionEntity) error {
	commandTag, err := r.tx.Exec(r.txCtx, `
UPDATE
	event_subscription
SET
	execution_id = $2,
	process_definition_id = $3,
	tenant_id = $4
WHERE
	id = $1
`,
		entity.Id,
		entity.ExecutionId,
		entity.ProcessDefinitionId,
		entity.TenantId,
	)
	if err != nil {
		return fmt.Errorf("failed to update event subscription %d: %v", entity.Id, err)
	}

	if commandTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

func (r eventSubscriptionRepository) UpdateTenant(processInstanceId int32, tenantId string) error {
	if _, err := r.tx.Exec(r.txCtx, "UPDATE event_subscription SET tenant_id = $2 WHERE process_instance_id = $1", processInstanceId, tenantId); err != nil {
		return fmt.Errorf("failed to update tenant of event subscriptions of process instance %d: %v", processInstanceId, err)
	}
	return nil
}

func (r eventSubscriptionRepository) Query(criteria engine.EventSubscriptionCriteria, options engine.QueryOptions) ([]engine.EventSubscription, error) {
	var sql bytes.Buffer
	if err := sqlEventSubscriptionQuery.Execute(&sql, map[string]any{
		"c": criteria,
		"o": options,
	}); err != nil {
		return nil, fmt.Errorf("failed to execute event subscription query template: %v", err)
	}

	entities, err := r.selectMany(sql.String())
	if err != nil {
		return nil, err
	}

	results := make([]engine.EventSubscription, len(entities))
	for i, entity := range entities {
		results[i] = entity.EventSubscription()
	}

	return results, nil
}

func (r eventSubscriptionRepository) selectMany(sql string, args ...any) ([]*internal.EventSubscriptionEntity, error) {
	rows, err := r.tx.Query(r.txCtx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select event subscriptions: %v", err)
	}

	defer rows.Close()

	var entities []*internal.EventSubscriptionEntity
	for rows.Next() {
		entity, err := scanEventSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event subscription row: %v", err)
		}

		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

func scanEventSubscription(row pgx.Row) (*internal.EventSubscriptionEntity, error) {
	var (
		entity         internal.EventSubscriptionEntity
		eventTypeValue string
	)

	if err := row.Scan(
		&entity.Id,

		&entity.ExecutionId,
		&entity.ProcessDefinitionId,
		&entity.ProcessInstanceId,

		&entity.BpmnElementId,
		&entity.CreatedAt,
		&entity.EventName,
		&eventTypeValue,
		&entity.TenantId,
	); err != nil {
		return nil, err
	}

	entity.EventType = engine.MapEventType(eventTypeValue)
	return &entity, nil
}
