package pg

import (
	"context"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
)

type query struct {
	e *pgEngine

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
	pgCtx, cancel, err := q.e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	defer cancel()
	results, err := internal.NewQuery(criteria)(pgCtx, q.options)
	return results, q.e.release(pgCtx, err)
}
