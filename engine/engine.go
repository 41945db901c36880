package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultEngineId = "default-engine" // Default ID of an engine, used when no specific ID is provided via [Options].
	DefaultTenantId = ""               // Tenant of deployments, created without a specific tenant.
)

// An Engine deploys BPMN processes and drives process instances, based on the BPMN 2.0 specification.
//
// Each method is a command, which either completes in full or has no effect.
type Engine interface {
	// ActivateProcessDefinition activates a suspended process definition.
	// Either an ID or a key (and tenant ID) must be specified.
	ActivateProcessDefinition(context.Context, ActivateProcessDefinitionCmd) error

	// CreateQuery creates a query with default options.
	CreateQuery() Query

	// DeleteDeployment deletes a deployment and its process definitions.
	//
	// If a process definition has running process instances, an error of type [ErrorIllegalState] is returned,
	// unless the command's cascade flag is set.
	DeleteDeployment(context.Context, DeleteDeploymentCmd) error

	// DeleteProcessInstance deletes a process instance, including all executions, jobs and event subscriptions.
	DeleteProcessInstance(context.Context, DeleteProcessInstanceCmd) error

	// Deploy deploys the executable processes of a BPMN XML document.
	//
	// Each process results in a new process definition version for its key and tenant.
	Deploy(context.Context, DeployCmd) (Deployment, error)

	// ExecuteJob executes a job, which has been locked before.
	//
	// When the job's handler fails, the command is rolled back and the job's retries are decremented.
	// A job without retries left is dead.
	ExecuteJob(context.Context, ExecuteJobCmd) (Job, error)

	// ExecuteJobs locks and executes due jobs. Completed and failed jobs are returned.
	//
	// Due jobs are normally handled by a job executor, running inside the engine.
	// When waiting for a due job to be executed during testing, this method must be called!
	ExecuteJobs(context.Context, ExecuteJobsCmd) ([]Job, []Job, error)

	// GetLatestProcessDefinition returns the non-suspended process definition with the highest version.
	GetLatestProcessDefinition(context.Context, GetLatestProcessDefinitionCmd) (ProcessDefinition, error)

	// GetVariables returns the variables of a process instance.
	GetVariables(context.Context, GetVariablesCmd) (map[string]any, error)

	// LockJobs locks due jobs for a specific worker.
	LockJobs(context.Context, LockJobsCmd) ([]Job, error)

	// SendMessage delivers a message to subscribed executions or message start events.
	// The number of triggered subscriptions is returned.
	SendMessage(context.Context, SendMessageCmd) (int, error)

	// SendSignal delivers a signal to subscribed executions or signal start events.
	// The number of triggered subscriptions is returned.
	SendSignal(context.Context, SendSignalCmd) (int, error)

	// SetDeploymentTenant migrates a deployment, its process definitions and their process instances to another tenant.
	SetDeploymentTenant(context.Context, SetDeploymentTenantCmd) error

	// SetJobRetries sets the retries of a job. A dead job is scheduled again.
	SetJobRetries(context.Context, SetJobRetriesCmd) (Job, error)

	// SetProcessInstanceTenant migrates a process instance, including executions, jobs and event subscriptions, to another tenant.
	SetProcessInstanceTenant(context.Context, SetProcessInstanceTenantCmd) error

	// SetTime increases the engine's time for testing purposes.
	SetTime(context.Context, SetTimeCmd) error

	// StartProcessInstance starts a process instance at the none start event of a process definition.
	StartProcessInstance(context.Context, StartProcessInstanceCmd) (Execution, error)

	// SuspendProcessDefinition suspends a process definition.
	// Either an ID or a key (and tenant ID) must be specified.
	SuspendProcessDefinition(context.Context, SuspendProcessDefinitionCmd) error

	// Trigger continues an execution, which waits at a user or receive task.
	Trigger(context.Context, TriggerCmd) error

	// UnlockJobs unlocks locked, but not executed, jobs of a specific worker.
	UnlockJobs(context.Context, UnlockJobsCmd) (int, error)

	// Shutdown shuts the engine down.
	Shutdown()
}

// A Query allows to query entities, using query options.
type Query interface {
	QueryDeployments(context.Context, DeploymentCriteria) ([]Deployment, error)
	QueryEventSubscriptions(context.Context, EventSubscriptionCriteria) ([]EventSubscription, error)
	QueryExecutions(context.Context, ExecutionCriteria) ([]Execution, error)
	QueryJobs(context.Context, JobCriteria) ([]Job, error)
	QueryProcessDefinitions(context.Context, ProcessDefinitionCriteria) ([]ProcessDefinition, error)

	// SetOptions sets options that are used when performing a query.
	SetOptions(QueryOptions)
}

// Options are common configuration options that are shared between engine implementations.
type Options struct {
	Clock               *Clock        // Clock, used to determine the engine's time.
	DefaultQueryLimit   int           // Default limit for queries, executed without an explicit limit.
	EngineId            string        // ID of the engine.
	JobExecutorEnabled  bool          // Enables or disables the engine's job executor.
	JobExecutorInterval time.Duration // Interval between execution of due jobs.
	JobExecutorLimit    int           // Maximum number of due jobs to lock and execute at once.
	JobExecutorWorkers  int           // Maximum number of jobs, executed concurrently by the job executor.
	JobLockDuration     time.Duration // Duration of a job lock, after which another worker may acquire the job.
	JobRetries          int           // Number of retries of a new job.
	JobRetryInterval    time.Duration // Delay between a failed job execution and its retry.

	ConditionEvaluator  ConditionEvaluator            // Evaluates sequence flow conditions. If nil, the variable evaluator is used.
	EventDispatcher     EventDispatcher               // Receives lifecycle notifications, after a command has been committed.
	HistoryRecorder     HistoryRecorder               // Receives history records, after a command has been committed.
	Logger              *slog.Logger                  // Logger, used by the engine. If nil, slog.Default() is used.
	Registerer          prometheus.Registerer         // Registerer for engine metrics. If nil, no metrics are collected.
	ServiceTaskHandlers map[string]ServiceTaskHandler // Handlers of service tasks by implementation.

	OnJobExecutionFailure func(Job, error) // Called when the engine failed to execute a locked job.
}

func (o Options) Validate() error {
	if strings.TrimSpace(o.EngineId) == "" {
		return errors.New("engine ID must not be empty or blank")
	}
	if o.Clock == nil {
		return errors.New("clock must not be nil")
	}
	if o.JobExecutorInterval.Milliseconds() < 100 {
		return errors.New("job executor interval must be greater than or equal to 100 ms")
	}
	if o.JobExecutorLimit < 1 {
		return errors.New("job executor limit must be greater than or equal to 1")
	}
	if o.JobExecutorLimit > 1000 {
		return errors.New("job executor limit must be less than or equal to 1000")
	}
	if o.JobExecutorWorkers < 1 {
		return errors.New("job executor workers must be greater than or equal to 1")
	}
	if o.JobLockDuration.Milliseconds() < 1000 {
		return errors.New("job lock duration must be greater than or equal to 1000 ms")
	}
	if o.JobRetries < 0 {
		return errors.New("job retries must be greater than or equal to 0")
	}
	if o.JobRetryInterval < 0 {
		return errors.New("job retry interval must be greater than or equal to 0")
	}

	return nil
}

// NewOptions returns the default options, shared between engine implementations.
func NewOptions() Options {
	return Options{
		Clock:               NewClock(),
		DefaultQueryLimit:   1000,
		EngineId:            DefaultEngineId,
		JobExecutorEnabled:  false,
		JobExecutorInterval: 10 * time.Second,
		JobExecutorLimit:    10,
		JobExecutorWorkers:  4,
		JobLockDuration:     5 * time.Minute,
		JobRetries:          3,
		JobRetryInterval:    10 * time.Second,
	}
}

// QueryOptions are used to limit or offset query results.
// The zero value does not affect a query.
type QueryOptions struct {
	// Limit specifies the maximum number of results to return.
	// If Limit <= 0, the option's DefaultQueryLimit is applied.
	Limit int
	// Offset specifies the number of results to skip, before returning any result.
	// If Offset <= 0, no results are skipped.
	Offset int
}

type Error struct {
	Type   ErrorType
	Title  string
	Detail string
	Causes []ErrorCause
}

func (e Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s: %s", e.Type, e.Title, e.Detail))

	for _, cause := range e.Causes {
		sb.WriteRune('\n')
		sb.WriteString(cause.String())
	}

	return sb.String()
}

// IsErrorType reports whether err is an [Error] of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var engineErr Error
	if errors.As(err, &engineErr) {
		return engineErr.Type == errorType
	}
	return false
}

type ErrorType int

const (
	ErrorBug ErrorType = iota + 1
	ErrorConflict
	ErrorIllegalState
	ErrorJobExecution
	ErrorNotFound
	ErrorProcessModel
	ErrorQuery
	ErrorRouting
	ErrorValidation
)

func MapErrorType(s string) ErrorType {
	switch s {
	case "BUG":
		return ErrorBug
	case "CONFLICT":
		return ErrorConflict
	case "ILLEGAL_STATE":
		return ErrorIllegalState
	case "JOB_EXECUTION":
		return ErrorJobExecution
	case "NOT_FOUND":
		return ErrorNotFound
	case "PROCESS_MODEL":
		return ErrorProcessModel
	case "QUERY":
		return ErrorQuery
	case "ROUTING":
		return ErrorRouting
	case "VALIDATION":
		return ErrorValidation
	default:
		return 0
	}
}

func (v ErrorType) String() string {
	switch v {
	case ErrorBug:
		return "BUG"
	case ErrorConflict:
		return "CONFLICT"
	case ErrorIllegalState:
		return "ILLEGAL_STATE"
	case ErrorJobExecution:
		return "JOB_EXECUTION"
	case ErrorNotFound:
		return "NOT_FOUND"
	case ErrorProcessModel:
		return "PROCESS_MODEL"
	case ErrorQuery:
		return "QUERY"
	case ErrorRouting:
		return "ROUTING"
	case ErrorValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// A cause of a process model or validation [Error] like an unsupported BPMN element or an invalid command field.
type ErrorCause struct {
	Pointer string // A pointer, locating the invalid BPMN element, sequence flow or field.
	Type    string // Type indicator.
	Detail  string // Human-readable, detailed information about the cause.
}

func (e ErrorCause) String() string {
	return fmt.Sprintf("%s: %s: %s", e.Type, e.Pointer, e.Detail)
}
