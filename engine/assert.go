package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sort"
	"strings"
	"testing"
)

const assertWorkerId = "test-worker"

func Assert(t *testing.T, e Engine, processInstance Execution) *ProcessInstanceAssert {
	if !processInstance.IsProcessInstance() {
		t.Fatalf("execution %s is not a process instance", processInstance)
	}

	return &ProcessInstanceAssert{
		t: t,
		e: e,

		processInstanceId: processInstance.Id,
	}
}

// AssertSignalStart sends a signal and asserts the process instance, started by a signal start event of the given
// process definition.
func AssertSignalStart(t *testing.T, e Engine, processDefinitionId int32, name string, variables ...map[string]any) *ProcessInstanceAssert {
	processDefinition := mustQueryProcessDefinition(t, e, processDefinitionId)

	signalVariables := make(map[string]any)
	for _, v := range variables {
		for variableName, value := range v {
			signalVariables[variableName] = value
		}
	}

	count, err := e.SendSignal(context.Background(), SendSignalCmd{
		Name:      name,
		TenantId:  processDefinition.TenantId,
		Variables: signalVariables,
	})
	if err != nil {
		t.Fatalf("failed to send signal %s: %v", name, err)
	}
	if count == 0 {
		t.Fatalf("signal %s triggered no subscription", name)
	}

	return assertLatest(t, e, processDefinitionId)
}

// AssertTimerStart asserts the process instance, started by the next timer start job of the given process
// definition.
//
// The engine's time is set to the job's due date, so that the job can be locked and executed.
func AssertTimerStart(t *testing.T, e Engine, processDefinitionId int32) *ProcessInstanceAssert {
	jobs, err := e.CreateQuery().QueryJobs(context.Background(), JobCriteria{
		ProcessDefinitionId: processDefinitionId,
		Type:                JobTimerStart,
	})
	if err != nil {
		t.Fatalf("failed to query timer start jobs: %v", err)
	}
	if len(jobs) == 0 {
		t.Fatalf("process definition %d has no timer start job", processDefinitionId)
	}

	a := &ProcessInstanceAssert{t: t, e: e}
	if _, err := a.executeJob(jobs[0]); err != nil {
		t.Fatalf("failed to execute timer start job %s: %v", jobs[0], err)
	}

	return assertLatest(t, e, processDefinitionId)
}

func assertLatest(t *testing.T, e Engine, processDefinitionId int32) *ProcessInstanceAssert {
	processInstances, err := e.CreateQuery().QueryExecutions(context.Background(), ExecutionCriteria{
		ProcessDefinitionId:  processDefinitionId,
		ProcessInstancesOnly: true,
	})
	if err != nil {
		t.Fatalf("failed to query process instances: %v", err)
	}
	if len(processInstances) == 0 {
		t.Fatalf("process definition %d has no process instance", processDefinitionId)
	}

	latest := slices.MaxFunc(processInstances, func(a Execution, b Execution) int {
		return int(a.Id - b.Id)
	})

	return Assert(t, e, latest)
}

func mustQueryProcessDefinition(t *testing.T, e Engine, processDefinitionId int32) ProcessDefinition {
	results, err := e.CreateQuery().QueryProcessDefinitions(context.Background(), ProcessDefinitionCriteria{
		Id: processDefinitionId,
	})
	if err != nil {
		t.Fatalf("failed to query process definition: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one process definition, but got %d", len(results))
	}
	return results[0]
}

// ProcessInstanceAssert asserts the state of a process instance.
//
// Methods, which operate on a waiting execution like Trigger or ExecuteJob, require a preceding call of IsWaitingAt.
type ProcessInstanceAssert struct {
	t *testing.T
	e Engine

	processInstanceId int32
	executionId       int32
	bpmnElementId     string
}

// ExecuteJob executes the job of the waiting execution and expects it to complete.
func (a *ProcessInstanceAssert) ExecuteJob() Job {
	job, err := a.executeJob(a.Job())
	if err != nil {
		a.Fatalf("failed to execute job %s: %v", job, err)
	}

	a.reset()
	return job
}

// ExecuteJobWithError executes the job of the waiting execution and expects it to fail.
// The failed job is returned.
func (a *ProcessInstanceAssert) ExecuteJobWithError() Job {
	job := a.Job()

	failedJob, err := a.executeJob(job)
	if err == nil {
		a.Fatalf("expected job %s to fail, but completed", job)
	}
	if !IsErrorType(err, ErrorJobExecution) {
		a.Fatalf("expected job %s to fail with an error of type %s, but got: %v", job, ErrorJobExecution, err)
	}

	return failedJob
}

func (a *ProcessInstanceAssert) Execution() Execution {
	if a.executionId == 0 {
		a.Fatalf("call IsWaitingAt first")
	}

	results, err := a.e.CreateQuery().QueryExecutions(context.Background(), ExecutionCriteria{
		Id: a.executionId,
	})
	if err != nil {
		a.Fatalf("failed to query execution: %v", err)
	}

	if len(results) != 1 {
		a.Fatalf("expected one execution, but got %d", len(results))
	}

	return results[0]
}

func (a *ProcessInstanceAssert) Executions() []Execution {
	results, err := a.e.CreateQuery().QueryExecutions(context.Background(), ExecutionCriteria{
		ProcessInstanceId: a.processInstanceId,
	})
	if err != nil {
		a.Fatalf("failed to query executions: %v", err)
	}

	return results
}

func (a *ProcessInstanceAssert) Fatalf(format string, args ...any) {
	data := map[string]string{
		"Error Trace": string(debug.Stack()),
		"Error":       fmt.Sprintf(format, args...),
		"Test":        a.t.Name(),
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("\n%s: %s", k, data[k]))
	}

	a.t.Fatal(sb.String())
}

func (a *ProcessInstanceAssert) HasNoVariable(name string) {
	if _, ok := a.Variables()[name]; ok {
		a.Fatalf("expected process instance to have no variable %s, but has", name)
	}
}

func (a *ProcessInstanceAssert) HasVariable(name string, value any) {
	variables := a.Variables()

	actual, ok := variables[name]
	if !ok {
		a.Fatalf("expected process instance to have variable %s, but has not", name)
	}
	if fmt.Sprint(actual) != fmt.Sprint(value) {
		a.Fatalf("expected variable %s to be %v, but is %v", name, value, actual)
	}
}

func (a *ProcessInstanceAssert) IsEnded() {
	if !a.ProcessInstance().IsEnded {
		a.Fatalf("expected process instance to be ended, but is not\nwaiting at: %s", strings.Join(a.waitingAt(), ", "))
	}
}

func (a *ProcessInstanceAssert) IsNotEnded() {
	if a.ProcessInstance().IsEnded {
		a.Fatalf("expected process instance not to be ended, but is")
	}
}

func (a *ProcessInstanceAssert) IsNotWaitingAt(bpmnElementId string) {
	if slices.Contains(a.waitingAt(), bpmnElementId) {
		a.Fatalf("expected process instance not to be waiting at %s, but is", bpmnElementId)
	}
}

// IsWaitingAt asserts that an execution waits at the given BPMN element and selects it for succeeding calls.
func (a *ProcessInstanceAssert) IsWaitingAt(bpmnElementId string) {
	results, err := a.e.CreateQuery().QueryExecutions(context.Background(), ExecutionCriteria{
		ProcessInstanceId: a.processInstanceId,
		BpmnElementId:     bpmnElementId,
	})
	if err != nil {
		a.Fatalf("failed to query executions: %v", err)
	}

	for _, result := range results {
		if !result.IsEnded && !result.IsActive {
			a.executionId = result.Id
			a.bpmnElementId = bpmnElementId
			return
		}
	}

	a.Fatalf("expected process instance to be waiting at %s, but is not\nwaiting at: %s", bpmnElementId, strings.Join(a.waitingAt(), ", "))
}

// Job returns the first job of the waiting execution, which is not dead.
func (a *ProcessInstanceAssert) Job() Job {
	if a.executionId == 0 {
		a.Fatalf("call IsWaitingAt first")
	}

	results, err := a.e.CreateQuery().QueryJobs(context.Background(), JobCriteria{
		ExecutionId: a.executionId,
	})
	if err != nil {
		a.Fatalf("failed to query jobs: %v", err)
	}

	for _, result := range results {
		if !result.IsDead() {
			return result
		}
	}

	a.Fatalf("expected process instance to have a job at %s", a.bpmnElementId)
	return Job{}
}

func (a *ProcessInstanceAssert) ProcessInstance() Execution {
	results, err := a.e.CreateQuery().QueryExecutions(context.Background(), ExecutionCriteria{
		Id: a.processInstanceId,
	})
	if err != nil {
		a.Fatalf("failed to query process instance: %v", err)
	}

	if len(results) != 1 {
		a.Fatalf("expected one process instance, but got %d", len(results))
	}

	return results[0]
}

// Trigger continues the waiting execution.
func (a *ProcessInstanceAssert) Trigger(variables ...map[string]any) {
	execution := a.Execution()

	triggerVariables := make(map[string]any)
	for _, v := range variables {
		for name, value := range v {
			triggerVariables[name] = value
		}
	}

	if err := a.e.Trigger(context.Background(), TriggerCmd{
		ExecutionId: execution.Id,
		Variables:   triggerVariables,
	}); err != nil {
		a.Fatalf("failed to trigger execution %s: %v", execution, err)
	}

	a.reset()
}

func (a *ProcessInstanceAssert) Variables() map[string]any {
	variables, err := a.e.GetVariables(context.Background(), GetVariablesCmd{
		ProcessInstanceId: a.processInstanceId,
	})
	if err != nil {
		a.Fatalf("failed to get variables: %v", err)
	}
	return variables
}

// executeJob moves the engine's time to the due date of a job, locks and executes it.
// Other jobs, locked along with the job, are unlocked afterwards.
func (a *ProcessInstanceAssert) executeJob(job Job) (Job, error) {
	ctx := context.Background()

	if err := a.e.SetTime(ctx, SetTimeCmd{Time: job.DueAt}); err != nil && !IsErrorType(err, ErrorConflict) {
		a.Fatalf("failed to set time: %v", err)
	}

	lockedJobs, err := a.e.LockJobs(ctx, LockJobsCmd{
		WorkerId:          assertWorkerId,
		Limit:             1000,
		ProcessInstanceId: job.ProcessInstanceId,
		Types:             []JobType{job.Type},
	})
	if err != nil {
		a.Fatalf("failed to lock jobs: %v", err)
	}

	defer func() {
		if _, err := a.e.UnlockJobs(ctx, UnlockJobsCmd{WorkerId: assertWorkerId}); err != nil {
			a.Fatalf("failed to unlock jobs: %v", err)
		}
	}()

	if !slices.ContainsFunc(lockedJobs, func(lockedJob Job) bool { return lockedJob.Id == job.Id }) {
		a.Fatalf("failed to lock job %s", job)
	}

	return a.e.ExecuteJob(ctx, ExecuteJobCmd{Id: job.Id, WorkerId: assertWorkerId})
}

func (a *ProcessInstanceAssert) reset() {
	a.executionId = 0
	a.bpmnElementId = ""
}

// waitingAt returns the IDs of the BPMN elements, at which executions of the process instance wait.
func (a *ProcessInstanceAssert) waitingAt() []string {
	var bpmnElementIds []string
	for _, execution := range a.Executions() {
		if !execution.IsEnded && !execution.IsActive && execution.BpmnElementId != "" {
			bpmnElementIds = append(bpmnElementIds, execution.BpmnElementId)
		}
	}

	slices.Sort(bpmnElementIds)
	return bpmnElementIds
}
