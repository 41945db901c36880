package mem

import (
	"context"
	"slices"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
)

func newMemContext(options Options, metrics *internal.Metrics) *memContext {
	return &memContext{
		options:      options,
		metrics:      metrics,
		processCache: internal.NewProcessCache(),
	}
}

type memContext struct {
	ctx     context.Context
	options Options
	metrics *internal.Metrics

	time time.Time

	deployments        deploymentRepository
	eventSubscriptions eventSubscriptionRepository
	executions         executionRepository
	jobs               jobRepository
	processCache       *internal.ProcessCache
	processDefinitions processDefinitionRepository

	notifications internal.Notifications
}

func (c *memContext) Context() context.Context {
	return c.ctx
}

func (c *memContext) Options() engine.Options {
	return c.options.Common
}

func (c *memContext) Time() time.Time {
	return c.time
}

func (c *memContext) Deployments() internal.DeploymentRepository {
	return &c.deployments
}

func (c *memContext) EventSubscriptions() internal.EventSubscriptionRepository {
	return &c.eventSubscriptions
}

func (c *memContext) Executions() internal.ExecutionRepository {
	return &c.executions
}

func (c *memContext) Jobs() internal.JobRepository {
	return &c.jobs
}

func (c *memContext) ProcessCache() *internal.ProcessCache {
	return c.processCache
}

func (c *memContext) ProcessDefinitions() internal.ProcessDefinitionRepository {
	return &c.processDefinitions
}

func (c *memContext) Notifications() *internal.Notifications {
	return &c.notifications
}

func (c *memContext) clear() {
	c.deployments = deploymentRepository{}
	c.eventSubscriptions = eventSubscriptionRepository{}
	c.executions = executionRepository{}
	c.jobs = jobRepository{}
	c.processDefinitions = processDefinitionRepository{}

	c.processCache.Clear()
	c.notifications.Clear()
}

// restore resets the entities of all repositories to a snapshot. ID sequences are not reset.
func (c *memContext) restore(s memSnapshot) {
	c.deployments.entities = s.deployments
	c.eventSubscriptions.entities = s.eventSubscriptions
	c.executions.entities = s.executions
	c.jobs.entities = s.jobs
	c.processDefinitions.entities = s.processDefinitions

	c.notifications.Clear()
}

func (c *memContext) snapshot() memSnapshot {
	return memSnapshot{
		deployments:        slices.Clone(c.deployments.entities),
		eventSubscriptions: slices.Clone(c.eventSubscriptions.entities),
		executions:         slices.Clone(c.executions.entities),
		jobs:               slices.Clone(c.jobs.entities),
		processDefinitions: slices.Clone(c.processDefinitions.entities),
	}
}

// memSnapshot holds copies of the entities of a context, taken before a command is executed.
type memSnapshot struct {
	deployments        []internal.DeploymentEntity
	eventSubscriptions []internal.EventSubscriptionEntity
	executions         []internal.ExecutionEntity
	jobs               []internal.JobEntity
	processDefinitions []internal.ProcessDefinitionEntity
}
