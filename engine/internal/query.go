package internal

import "github.com/gclaussn/go-bpmn-runtime/engine"

// NewQuery returns the query for the given criteria or nil, if the criteria type is not supported.
func NewQuery(criteria any) Query {
	switch criteria := criteria.(type) {
	case engine.DeploymentCriteria:
		return newDeploymentQuery(criteria)
	case engine.EventSubscriptionCriteria:
		return newEventSubscriptionQuery(criteria)
	case engine.ExecutionCriteria:
		return newExecutionQuery(criteria)
	case engine.JobCriteria:
		return newJobQuery(criteria)
	case engine.ProcessDefinitionCriteria:
		return newProcessDefinitionQuery(criteria)
	default:
		return nil
	}
}

type Query func(Context, engine.QueryOptions) ([]any, error)

// Results converts the results of a query.
func Results[T any](results []any) []T {
	typed := make([]T, len(results))
	for i, result := range results {
		typed[i] = result.(T)
	}
	return typed
}

func newDeploymentQuery(criteria engine.DeploymentCriteria) Query {
	return func(ctx Context, options engine.QueryOptions) ([]any, error) {
		return toAny(QueryDeployments(ctx, criteria, options))
	}
}

func newEventSubscriptionQuery(criteria engine.EventSubscriptionCriteria) Query {
	return func(ctx Context, options engine.QueryOptions) ([]any, error) {
		return toAny(ctx.EventSubscriptions().Query(criteria, options))
	}
}

func newExecutionQuery(criteria engine.ExecutionCriteria) Query {
	return func(ctx Context, options engine.QueryOptions) ([]any, error) {
		return toAny(ctx.Executions().Query(criteria, options))
	}
}

func newJobQuery(criteria engine.JobCriteria) Query {
	return func(ctx Context, options engine.QueryOptions) ([]any, error) {
		return toAny(ctx.Jobs().Query(criteria, options))
	}
}

func newProcessDefinitionQuery(criteria engine.ProcessDefinitionCriteria) Query {
	return func(ctx Context, options engine.QueryOptions) ([]any, error) {
		return toAny(ctx.ProcessDefinitions().Query(criteria, options))
	}
}

func toAny[T any](results []T, err error) ([]any, error) {
	if err != nil {
		return nil, err
	}

	untyped := make([]any, len(results))
	for i := range results {
		untyped[i] = results[i]
	}
	return untyped, nil
}
