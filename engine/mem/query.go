package mem

import (
	"context"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
)

type query struct {
	e *memEngine

	defaultQueryLimit int
	options           engine.QueryOptions
}

func (q *query) QueryDeployments(ctx context.Context, criteria engine.DeploymentCriteria) ([]engine.Deployment, error) {
	results, err := q.execute(ctx, criteria)
	return internal.Results[engine.Deployment](results), err
}

func (q *query) QueryEventSubscriptions(ctx context.Context, criteria engine.EventSubscriptionCriteria) ([]engine.EventSubscription, error) {
	results, err := q.execute(ctx, criteria)
	return internal.Results[engine.EventSubscription](results), err
}

func (q *query) QueryExecutions(ctx context.Context, criteria engine.ExecutionCriteria) ([]engine.Execution, error) {
	results, err := q.execute(ctx, criteria)
	return internal.Results[engine.Execution](results), err
}

func (q *query) QueryJobs(ctx context.Context, criteria engine.JobCriteria) ([]engine.Job, error) {
	results, err := q.execute(ctx, criteria)
	return internal.Results[engine.Job](results), err
}

func (q *query) QueryProcessDefinitions(ctx context.Context, criteria engine.ProcessDefinitionCriteria) ([]engine.ProcessDefinition, error) {
	results, err := q.execute(ctx, criteria)
	return internal.Results[engine.ProcessDefinition](results), err
}

func (q *query) SetOptions(options engine.QueryOptions) {
	if options.Limit <= 0 {
		options.Limit = q.defaultQueryLimit
	}
	q.options = options
}

func (q *query) execute(ctx context.Context, criteria any) ([]any, error) {
	defer q.e.runlock()
	memCtx := q.e.rlock(ctx)
	return internal.NewQuery(criteria)(memCtx, q.options)
}
