package engine

import (
	"fmt"
	"time"
)

// EventType is the type of an event, a subscription waits for.
type EventType int

const (
	EventMessage EventType = iota + 1
	EventSignal
)

func MapEventType(s string) EventType {
	switch s {
	case "MESSAGE":
		return EventMessage
	case "SIGNAL":
		return EventSignal
	default:
		return 0
	}
}

func (v EventType) MarshalJSON() ([]byte, error) {
	return marshalEnum(v.String())
}

func (v EventType) String() string {
	switch v {
	case EventMessage:
		return "MESSAGE"
	case EventSignal:
		return "SIGNAL"
	default:
		return ""
	}
}

func (v *EventType) UnmarshalJSON(data []byte) error {
	s, err := unmarshalEnum(data, "event type")
	*v = MapEventType(s)
	return err
}

// JobState is derived from a job's lock and retries.
type JobState int

const (
	JobScheduled JobState = iota + 1
	JobLocked
	JobDead
)

func MapJobState(s string) JobState {
	switch s {
	case "SCHEDULED":
		return JobScheduled
	case "LOCKED":
		return JobLocked
	case "DEAD":
		return JobDead
	default:
		return 0
	}
}

func (v JobState) MarshalJSON() ([]byte, error) {
	return marshalEnum(v.String())
}

func (v JobState) String() string {
	switch v {
	case JobScheduled:
		return "SCHEDULED"
	case JobLocked:
		return "LOCKED"
	case JobDead:
		return "DEAD"
	default:
		return ""
	}
}

func (v *JobState) UnmarshalJSON(data []byte) error {
	s, err := unmarshalEnum(data, "job state")
	*v = MapJobState(s)
	return err
}

// JobType determines the handler, which executes a job.
type JobType int

const (
	JobAsyncContinuation JobType = iota + 1
	JobServiceTask
	JobTimer
	JobTimerStart
)

func MapJobType(s string) JobType {
	switch s {
	case "ASYNC_CONTINUATION":
		return JobAsyncContinuation
	case "SERVICE_TASK":
		return JobServiceTask
	case "TIMER":
		return JobTimer
	case "TIMER_START":
		return JobTimerStart
	default:
		return 0
	}
}

func (v JobType) MarshalJSON() ([]byte, error) {
	return marshalEnum(v.String())
}

func (v JobType) String() string {
	switch v {
	case JobAsyncContinuation:
		return "ASYNC_CONTINUATION"
	case JobServiceTask:
		return "SERVICE_TASK"
	case JobTimer:
		return "TIMER"
	case JobTimerStart:
		return "TIMER_START"
	default:
		return ""
	}
}

func (v *JobType) UnmarshalJSON(data []byte) error {
	s, err := unmarshalEnum(data, "job type")
	*v = MapJobType(s)
	return err
}

// Deployment groups the process definitions, which have been deployed together.
type Deployment struct {
	Id int32 `json:"id"` // Deployment ID.

	DeployedAt         time.Time           `json:"deployedAt"`         // Deployment time.
	Name               string              `json:"name"`               // Name of the deployment.
	ProcessDefinitions []ProcessDefinition `json:"processDefinitions"` // Deployed process definitions.
	TenantId           string              `json:"tenantId,omitempty"` // Tenant of the deployment.
}

func (v Deployment) String() string {
	return fmt.Sprintf("%d:%s", v.Id, v.Name)
}

// DeploymentCriteria specifies the results, returned by a deployment query.
type DeploymentCriteria struct {
	Id int32 `json:"id,omitempty"` // Deployment filter.

	TenantId *string `json:"tenantId,omitempty"` // Tenant filter.
}

// EventSubscription is a durable registration of an execution or start event, waiting for a signal or message.
type EventSubscription struct {
	Id int32 `json:"id"` // Event subscription ID.

	ExecutionId         int32 `json:"executionId,omitempty"`       // ID of the waiting execution - 0 for start event subscriptions.
	ProcessDefinitionId int32 `json:"processDefinitionId"`         // ID of the related process definition.
	ProcessInstanceId   int32 `json:"processInstanceId,omitempty"` // ID of the related process instance - 0 for start event subscriptions.

	BpmnElementId string    `json:"bpmnElementId"`      // ID of the subscribed BPMN event or task.
	CreatedAt     time.Time `json:"createdAt"`          // Creation time.
	EventName     string    `json:"eventName"`          // Name of the signal or message.
	EventType     EventType `json:"eventType"`          // Signal or message.
	TenantId      string    `json:"tenantId,omitempty"` // Tenant of the subscription.
}

func (v EventSubscription) IsStartEvent() bool {
	return v.ExecutionId == 0
}

func (v EventSubscription) String() string {
	return fmt.Sprintf("%d:%s:%s", v.Id, v.EventType, v.EventName)
}

// EventSubscriptionCriteria specifies the results, returned by an event subscription query.
type EventSubscriptionCriteria struct {
	Id int32 `json:"id,omitempty"` // Event subscription filter.

	ExecutionId         int32 `json:"executionId,omitempty"`         // Execution filter.
	ProcessDefinitionId int32 `json:"processDefinitionId,omitempty"` // Process definition filter.
	ProcessInstanceId   int32 `json:"processInstanceId,omitempty"`   // Process instance filter.

	EventName string    `json:"eventName,omitempty"` // Event name filter.
	EventType EventType `json:"eventType,omitempty"` // Event type filter.
	TenantId  *string   `json:"tenantId,omitempty"`  // Tenant filter.
}

// Execution is a token or scope within a running process instance.
// The executions of a process instance form a tree, rooted at the process instance execution.
type Execution struct {
	Id int32 `json:"id"` // Execution ID.

	ParentId            int32 `json:"parentId,omitempty"`  // ID of the parent execution - 0 for a process instance.
	ProcessDefinitionId int32 `json:"processDefinitionId"` // ID of the related process definition.
	ProcessInstanceId   int32 `json:"processInstanceId"`   // ID of the process instance execution.

	BpmnElementId string     `json:"bpmnElementId,omitempty"` // ID of the BPMN element, the execution is positioned at.
	BusinessKey   string     `json:"businessKey,omitempty"`   // Business key of the process instance.
	EndedAt       *time.Time `json:"endedAt,omitempty"`       // End time.
	IsActive      bool       `json:"isActive"`                // Determines if the execution is executed or waits.
	IsConcurrent  bool       `json:"isConcurrent"`            // Determines if the execution is one of multiple tokens of a scope.
	IsEnded       bool       `json:"isEnded"`                 // Determines if the execution has ended.
	IsScope       bool       `json:"isScope"`                 // Determines if the execution owns a scope.
	StartedAt     time.Time  `json:"startedAt"`               // Start time.
	TenantId      string     `json:"tenantId,omitempty"`      // Tenant of the execution.
}

func (v Execution) IsProcessInstance() bool {
	return v.ParentId == 0
}

func (v Execution) String() string {
	return fmt.Sprintf("%d/%d", v.ProcessInstanceId, v.Id)
}

// ExecutionCriteria specifies the results, returned by an execution query.
type ExecutionCriteria struct {
	Id int32 `json:"id,omitempty"` // Execution filter.

	ParentId            int32 `json:"parentId,omitempty"`            // Parent filter.
	ProcessDefinitionId int32 `json:"processDefinitionId,omitempty"` // Process definition filter.
	ProcessInstanceId   int32 `json:"processInstanceId,omitempty"`   // Process instance filter.

	BpmnElementId        string  `json:"bpmnElementId,omitempty"`        // BPMN element filter.
	ProcessInstancesOnly bool    `json:"processInstancesOnly,omitempty"` // Includes only process instance executions.
	TenantId             *string `json:"tenantId,omitempty"`             // Tenant filter.
}

// Job is a durable unit of deferred or asynchronous work, executed by the engine's job executor or a worker.
type Job struct {
	Id int32 `json:"id"` // Job ID.

	ExecutionId         int32 `json:"executionId,omitempty"`       // ID of the related execution - 0 for timer start jobs.
	ProcessDefinitionId int32 `json:"processDefinitionId"`         // ID of the related process definition.
	ProcessInstanceId   int32 `json:"processInstanceId,omitempty"` // ID of the related process instance - 0 for timer start jobs.

	BpmnElementId string     `json:"bpmnElementId"`           // ID of the BPMN element, which created the job.
	CreatedAt     time.Time  `json:"createdAt"`               // Creation time.
	DueAt         time.Time  `json:"dueAt"`                   // Point in time when the job can be locked.
	EndDate       *time.Time `json:"endDate,omitempty"`       // End of a repeating timer.
	Error         string     `json:"error,omitempty"`         // Error message of the last failed execution.
	HandlerConfig string     `json:"handlerConfig,omitempty"` // Handler specific configuration.
	LockExpiresAt *time.Time `json:"lockExpiresAt,omitempty"` // Lock expiration.
	LockOwner     string     `json:"lockOwner,omitempty"`     // ID of the worker, which locked the job.
	Repeat        string     `json:"repeat,omitempty"`        // Remaining cycle of a repeating timer.
	Retries       int        `json:"retries"`                 // Retries left.
	State         JobState   `json:"state"`                   // Job state.
	TenantId      string     `json:"tenantId,omitempty"`      // Tenant of the job.
	Type          JobType    `json:"type"`                    // Job type.
}

func (v Job) HasError() bool {
	return v.Error != ""
}

func (v Job) IsDead() bool {
	return v.State == JobDead
}

func (v Job) IsLocked() bool {
	return v.State == JobLocked
}

func (v Job) String() string {
	return fmt.Sprintf("%d:%s", v.Id, v.Type)
}

// JobCriteria specifies the results, returned by a job query.
type JobCriteria struct {
	Id int32 `json:"id,omitempty"` // Job filter.

	ExecutionId         int32 `json:"executionId,omitempty"`         // Execution filter.
	ProcessDefinitionId int32 `json:"processDefinitionId,omitempty"` // Process definition filter.
	ProcessInstanceId   int32 `json:"processInstanceId,omitempty"`   // Process instance filter.

	BpmnElementId string  `json:"bpmnElementId,omitempty"` // BPMN element filter.
	DeadOnly      bool    `json:"deadOnly,omitempty"`      // Includes only dead jobs.
	TenantId      *string `json:"tenantId,omitempty"`      // Tenant filter.
	Type          JobType `json:"type,omitempty"`          // Type filter.
}

// ProcessDefinition is a deployed, immutable version of a BPMN process.
type ProcessDefinition struct {
	Id int32 `json:"id"` // Process definition ID.

	DeploymentId int32 `json:"deploymentId"` // ID of the deployment.

	CreatedAt   time.Time `json:"createdAt"`          // Creation time.
	IsSuspended bool      `json:"isSuspended"`        // Determines if new process instances can be started.
	Key         string    `json:"key"`                // ID of the BPMN process element.
	Name        string    `json:"name,omitempty"`     // Name of the BPMN process element.
	TenantId    string    `json:"tenantId,omitempty"` // Tenant of the process definition.
	Version     int32     `json:"version"`            // Version, increased for each deployment of the same key and tenant.
}

func (v ProcessDefinition) String() string {
	return fmt.Sprintf("%s:%d", v.Key, v.Version)
}

// ProcessDefinitionCriteria specifies the results, returned by a process definition query.
type ProcessDefinitionCriteria struct {
	Id int32 `json:"id,omitempty"` // Process definition filter.

	DeploymentId int32   `json:"deploymentId,omitempty"` // Deployment filter.
	Key          string  `json:"key,omitempty"`          // Key filter.
	TenantId     *string `json:"tenantId,omitempty"`     // Tenant filter.
}

func marshalEnum(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", s)), nil
}

func unmarshalEnum(data []byte, name string) (string, error) {
	s := string(data)
	if s == "null" {
		return "", nil
	}
	if len(s) < 2 {
		return "", fmt.Errorf("invalid %s data %s", name, s)
	}
	return s[1 : len(s)-1], nil
}
