package engine

import "context"

// A ServiceTaskHandler executes the logic of a service task, identified by the task's implementation attribute.
//
// A handler is executed as part of the job command. When an error is returned, the command is rolled back and
// the job's retries are decremented. Returned variables are set at the process instance.
type ServiceTaskHandler interface {
	Execute(context.Context, ServiceTask) (map[string]any, error)
}

// ServiceTaskHandlerFunc is an adapter to allow the use of an ordinary function as [ServiceTaskHandler].
type ServiceTaskHandlerFunc func(context.Context, ServiceTask) (map[string]any, error)

func (f ServiceTaskHandlerFunc) Execute(ctx context.Context, task ServiceTask) (map[string]any, error) {
	return f(ctx, task)
}

// ServiceTask provides a handler with the job and the process variables.
type ServiceTask struct {
	Job       Job
	Variables map[string]any
}
