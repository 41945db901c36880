package pg

import (
	"context"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5"
)

type pgContext struct {
	ctx     context.Context
	options Options
	metrics *internal.Metrics

	time time.Time

	tx    pgx.Tx
	txCtx context.Context

	processCache  *internal.ProcessCache
	notifications internal.Notifications
}

func (c *pgContext) Context() context.Context {
	return c.ctx
}

func (c *pgContext) Options() engine.Options {
	return c.options.Common
}

func (c *pgContext) Time() time.Time {
	return c.time
}

func (c *pgContext) Deployments() internal.DeploymentRepository {
	return &deploymentRepository{tx: c.tx, txCtx: c.txCtx}
}

func (c *pgContext) EventSubscriptions() internal.EventSubscriptionRepository {
	return &eventSubscriptionRepository{tx: c.tx, txCtx: c.txCtx}
}

func (c *pgContext) Executions() internal.ExecutionRepository {
	return &executionRepository{tx: c.tx, txCtx: c.txCtx}
}

func (c *pgContext) Jobs() internal.JobRepository {
	return &jobRepository{tx: c.tx, txCtx: c.txCtx}
}

func (c *pgContext) ProcessCache() *internal.ProcessCache {
	return c.processCache
}

func (c *pgContext) ProcessDefinitions() internal.ProcessDefinitionRepository {
	return &processDefinitionRepository{tx: c.tx, txCtx: c.txCtx}
}

func (c *pgContext) Notifications() *internal.Notifications {
	return &c.notifications
}
