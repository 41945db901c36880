package internal

import (
	"context"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
)

// Context provides the state of a command: its options, its time and the repositories, which are bound to
// the command's transaction.
type Context interface {
	// Context returns the context of the caller, which is passed to service task handlers.
	Context() context.Context

	Options() engine.Options

	// Time returns the time of the command, which is constant during a command's execution.
	Time() time.Time

	Deployments() DeploymentRepository
	EventSubscriptions() EventSubscriptionRepository
	Executions() ExecutionRepository
	Jobs() JobRepository
	ProcessCache() *ProcessCache
	ProcessDefinitions() ProcessDefinitionRepository

	// Notifications returns the buffer of notifications, history records and metric updates, which are published after a successful commit.
	Notifications() *Notifications
}
