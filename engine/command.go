package engine

import "time"

type ActivateProcessDefinitionCmd struct {
	// ID of the process definition to activate.
	Id int32 `json:"id,omitempty" validate:"required_without=Key"`
	// Key of the process definitions to activate - all versions of the key and tenant are activated.
	Key string `json:"key,omitempty" validate:"required_without=Id"`
	// Tenant of the process definitions to activate, used in combination with a key.
	TenantId string `json:"tenantId,omitempty"`
}

type DeleteDeploymentCmd struct {
	// ID of the deployment to delete.
	Id int32 `json:"id" validate:"required"`
	// Determines if running process instances of the deployment's process definitions are deleted as well.
	Cascade bool `json:"cascade"`
}

type DeleteProcessInstanceCmd struct {
	// ID of the process instance to delete.
	Id int32 `json:"id" validate:"required"`
	// Optional reason, passed to the event dispatcher and history recorder.
	Reason string `json:"reason,omitempty"`
}

type DeployCmd struct {
	// Name of the deployment.
	Name string `json:"name" validate:"required"`
	// BPMN XML, containing one or more executable processes.
	BpmnXml string `json:"bpmnXml" validate:"required"`
	// Tenant of the deployment and its process definitions.
	TenantId string `json:"tenantId,omitempty" validate:"max=64"`
}

type ExecuteJobCmd struct {
	// ID of the locked job.
	Id int32 `json:"id" validate:"required"`
	// ID of the worker, which locked the job.
	WorkerId string `json:"workerId" validate:"required"`
}

type ExecuteJobsCmd struct {
	// ID of the worker, which locks and executes due jobs.
	WorkerId string `json:"workerId" validate:"required"`
	// Maximum number of jobs to lock and execute.
	Limit int `json:"limit,omitempty" validate:"gte=0,lte=1000"`
}

type GetLatestProcessDefinitionCmd struct {
	// Key of the process definition - the ID of the BPMN process element.
	Key string `json:"key" validate:"required"`
	// Tenant of the process definition.
	TenantId string `json:"tenantId,omitempty"`
}

type GetVariablesCmd struct {
	// ID of the process instance.
	ProcessInstanceId int32 `json:"processInstanceId" validate:"required"`
}

type LockJobsCmd struct {
	// ID of the worker, which locks the jobs.
	WorkerId string `json:"workerId" validate:"required"`
	// Maximum number of jobs to lock.
	Limit int `json:"limit,omitempty" validate:"gte=0,lte=1000"`
	// Optional process instance, the jobs must belong to.
	ProcessInstanceId int32 `json:"processInstanceId,omitempty"`
	// Optional job types to include.
	Types []JobType `json:"types,omitempty"`
}

type SendMessageCmd struct {
	// Name of the message.
	Name string `json:"name" validate:"required"`
	// Tenant, the message is delivered in.
	TenantId string `json:"tenantId,omitempty"`
	// Optional target execution. If not set, every matching subscription of the tenant is triggered.
	ExecutionId int32 `json:"executionId,omitempty"`
	// Variables to set at the triggered process instances.
	Variables map[string]any `json:"variables,omitempty"`
}

type SendSignalCmd struct {
	// Name of the signal.
	Name string `json:"name" validate:"required"`
	// Tenant, the signal is delivered in.
	TenantId string `json:"tenantId,omitempty"`
	// Optional target execution. If not set, every matching subscription of the tenant is triggered.
	ExecutionId int32 `json:"executionId,omitempty"`
	// Variables to set at the triggered process instances.
	Variables map[string]any `json:"variables,omitempty"`
}

type SetDeploymentTenantCmd struct {
	// ID of the deployment.
	Id int32 `json:"id" validate:"required"`
	// New tenant.
	TenantId string `json:"tenantId" validate:"max=64"`
}

type SetJobRetriesCmd struct {
	// ID of the job.
	Id int32 `json:"id" validate:"required"`
	// Number of retries.
	Retries int `json:"retries" validate:"gte=1"`
	// Optional delay, after which the job is due again.
	RetryTimer ISO8601Duration `json:"retryTimer,omitempty" validate:"iso8601_duration"`
}

type SetProcessInstanceTenantCmd struct {
	// ID of the process instance.
	Id int32 `json:"id" validate:"required"`
	// New tenant.
	TenantId string `json:"tenantId" validate:"max=64"`
}

type SetTimeCmd struct {
	// A future point in time.
	Time time.Time `json:"time" validate:"required"`
}

type StartProcessInstanceCmd struct {
	// ID of the process definition to start.
	ProcessDefinitionId int32 `json:"processDefinitionId,omitempty" validate:"required_without=Key"`
	// Key of the process definition to start - the latest version is used.
	Key string `json:"key,omitempty" validate:"required_without=ProcessDefinitionId"`
	// Tenant of the process definition, used in combination with a key.
	TenantId string `json:"tenantId,omitempty"`
	// Optional business key.
	BusinessKey string `json:"businessKey,omitempty" validate:"max=255"`
	// Variables of the process instance.
	Variables map[string]any `json:"variables,omitempty"`
}

type SuspendProcessDefinitionCmd struct {
	// ID of the process definition to suspend.
	Id int32 `json:"id,omitempty" validate:"required_without=Key"`
	// Key of the process definitions to suspend - all versions of the key and tenant are suspended.
	Key string `json:"key,omitempty" validate:"required_without=Id"`
	// Tenant of the process definitions to suspend, used in combination with a key.
	TenantId string `json:"tenantId,omitempty"`
}

type TriggerCmd struct {
	// ID of the waiting execution.
	ExecutionId int32 `json:"executionId" validate:"required"`
	// Variables to set at the process instance.
	Variables map[string]any `json:"variables,omitempty"`
}

type UnlockJobsCmd struct {
	// ID of the worker, whose jobs are unlocked.
	WorkerId string `json:"workerId" validate:"required"`
	// Optional job to unlock.
	Id int32 `json:"id,omitempty"`
}
