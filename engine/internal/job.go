package internal

import (
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type JobEntity struct {
	Id int32

	ExecutionId         pgtype.Int4
	ProcessDefinitionId int32
	ProcessInstanceId   pgtype.Int4

	BpmnElementId string
	CreatedAt     time.Time
	DueAt         time.Time
	EndDate       pgtype.Timestamp
	Error         pgtype.Text
	HandlerConfig pgtype.Text
	IsDead        bool
	LockExpiresAt pgtype.Timestamp
	LockOwner     pgtype.Text
	Repeat        pgtype.Text
	Retries       int
	TenantId      string
	Type          engine.JobType
}

func (e JobEntity) Job() engine.Job {
	return engine.Job{
		Id: e.Id,

		ExecutionId:         e.ExecutionId.Int32,
		ProcessDefinitionId: e.ProcessDefinitionId,
		ProcessInstanceId:   e.ProcessInstanceId.Int32,

		BpmnElementId: e.BpmnElementId,
		CreatedAt:     e.CreatedAt,
		DueAt:         e.DueAt,
		EndDate:       timeOrNil(e.EndDate),
		Error:         e.Error.String,
		HandlerConfig: e.HandlerConfig.String,
		LockExpiresAt: timeOrNil(e.LockExpiresAt),
		LockOwner:     e.LockOwner.String,
		Repeat:        e.Repeat.String,
		Retries:       e.Retries,
		State:         e.State(),
		TenantId:      e.TenantId,
		Type:          e.Type,
	}
}

func (e JobEntity) State() engine.JobState {
	switch {
	case e.IsDead:
		return engine.JobDead
	case e.LockOwner.Valid:
		return engine.JobLocked
	default:
		return engine.JobScheduled
	}
}

type JobRepository interface {
	// Delete deletes a job and reports whether it existed.
	Delete(id int32) (bool, error)
	DeleteByExecutions(executionIds []int32) error
	DeleteByProcessDefinition(processDefinitionId int32) error
	Insert(*JobEntity) error
	Select(id int32) (*JobEntity, error)
	SelectByExecution(executionId int32) ([]*JobEntity, error)
	SelectTimerStartJobs(processDefinitionId int32) ([]*JobEntity, error)
	Update(*JobEntity) error
	UpdateTenant(processInstanceId int32, tenantId string) error

	Query(engine.JobCriteria, engine.QueryOptions) ([]engine.Job, error)

	// Lock locks due jobs, which are not dead and either unlocked or whose lock has expired.
	// Jobs are locked in the order of their due date and ID.
	Lock(cmd engine.LockJobsCmd, now time.Time, lockExpiresAt time.Time) ([]*JobEntity, error)
	Unlock(engine.UnlockJobsCmd) (int, error)
}

// ExecuteJob executes a locked job. If the job does not exist anymore, since it has been cancelled
// or executed by another worker, a zero job is returned.
//
// An error, returned by the job's handler, is returned as it is. The caller must roll the command back and
// call [FailJob] in a new command, unless the error is of type [engine.ErrorConflict].
func ExecuteJob(ctx Context, cmd engine.ExecuteJobCmd) (engine.Job, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return engine.Job{}, err
	}

	job, err := ctx.Jobs().Select(cmd.Id)
	if err == pgx.ErrNoRows {
		return engine.Job{}, nil
	}
	if err != nil {
		return engine.Job{}, err
	}

	if job.LockOwner.String != cmd.WorkerId {
		return engine.Job{}, engine.Error{
			Type:   engine.ErrorConflict,
			Title:  "failed to execute job",
			Detail: fmt.Sprintf("job %d is not locked by worker %s", job.Id, cmd.WorkerId),
		}
	}
	if job.LockExpiresAt.Time.Before(ctx.Time()) {
		return engine.Job{}, engine.Error{
			Type:   engine.ErrorConflict,
			Title:  "failed to execute job",
			Detail: fmt.Sprintf("lock of job %d expired at %s", job.Id, job.LockExpiresAt.Time.Format(time.RFC3339)),
		}
	}

	start := time.Now()

	if job.Repeat.Valid {
		if err := repeatJob(ctx, job); err != nil {
			return engine.Job{}, err
		}
	}

	if _, err := ctx.Jobs().Delete(job.Id); err != nil {
		return engine.Job{}, err
	}

	switch job.Type {
	case engine.JobAsyncContinuation:
		err = executeAsyncContinuation(ctx, job)
	case engine.JobServiceTask:
		err = executeServiceTask(ctx, job)
	case engine.JobTimer:
		err = executeTimer(ctx, job)
	case engine.JobTimerStart:
		err = executeTimerStart(ctx, job)
	default:
		err = engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to execute job",
			Detail: fmt.Sprintf("job %d has unsupported type %s", job.Id, job.Type),
		}
	}
	if err != nil {
		return engine.Job{}, err
	}

	notifyJob(ctx, job, engine.NotificationJobDeleted)
	jobType, d := job.Type.String(), time.Since(start)
	ctx.Notifications().Count(func(m *Metrics) { m.JobExecuted(jobType, d) })

	return job.Job(), nil
}

// FailJob decrements the retries of a job, whose execution failed, and unlocks it.
// A job with retries left is scheduled again after the retry interval. Otherwise the job is dead.
func FailJob(ctx Context, cmd engine.ExecuteJobCmd, jobErr error) (engine.Job, error) {
	job, err := ctx.Jobs().Select(cmd.Id)
	if err != nil {
		return engine.Job{}, err
	}

	if job.Retries > 0 {
		job.Retries--
	}

	job.Error = pgtype.Text{String: jobErr.Error(), Valid: true}
	job.LockExpiresAt = pgtype.Timestamp{}
	job.LockOwner = pgtype.Text{}

	if job.Retries == 0 {
		job.IsDead = true
	} else {
		job.DueAt = ctx.Time().Add(ctx.Options().JobRetryInterval)
	}

	if err := ctx.Jobs().Update(job); err != nil {
		return engine.Job{}, err
	}

	jobType, dead := job.Type.String(), job.IsDead
	ctx.Notifications().Count(func(m *Metrics) { m.JobFailed(jobType, dead) })

	return job.Job(), nil
}

func LockJobs(ctx Context, cmd engine.LockJobsCmd) ([]engine.Job, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return nil, err
	}

	if cmd.Limit <= 0 {
		cmd.Limit = ctx.Options().JobExecutorLimit
	}

	lockedJobs, err := ctx.Jobs().Lock(cmd, ctx.Time(), ctx.Time().Add(ctx.Options().JobLockDuration))
	if err != nil {
		return nil, err
	}

	jobs := make([]engine.Job, len(lockedJobs))
	for i, lockedJob := range lockedJobs {
		jobs[i] = lockedJob.Job()
	}

	ctx.Notifications().Count(func(m *Metrics) { m.JobsLocked(len(jobs)) })

	return jobs, nil
}

func SetJobRetries(ctx Context, cmd engine.SetJobRetriesCmd) (engine.Job, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return engine.Job{}, err
	}

	job, err := ctx.Jobs().Select(cmd.Id)
	if err == pgx.ErrNoRows {
		return engine.Job{}, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to set job retries",
			Detail: fmt.Sprintf("job %d could not be found", cmd.Id),
		}
	}
	if err != nil {
		return engine.Job{}, err
	}

	if job.LockOwner.Valid && !job.LockExpiresAt.Time.Before(ctx.Time()) {
		return engine.Job{}, engine.Error{
			Type:   engine.ErrorIllegalState,
			Title:  "failed to set job retries",
			Detail: fmt.Sprintf("job %d is locked by worker %s", job.Id, job.LockOwner.String),
		}
	}

	job.DueAt = cmd.RetryTimer.Calculate(ctx.Time())
	job.IsDead = false
	job.LockExpiresAt = pgtype.Timestamp{}
	job.LockOwner = pgtype.Text{}
	job.Retries = cmd.Retries

	if err := ctx.Jobs().Update(job); err != nil {
		return engine.Job{}, err
	}

	return job.Job(), nil
}

func UnlockJobs(ctx Context, cmd engine.UnlockJobsCmd) (int, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return 0, err
	}
	return ctx.Jobs().Unlock(cmd)
}

// createJob creates a job for an execution or, if the execution is nil, for a process definition.
func createJob(ctx Context, processDefinitionId int32, execution *ExecutionEntity, tenantId string, job *JobEntity) error {
	job.ProcessDefinitionId = processDefinitionId
	if execution != nil {
		job.ExecutionId = int4(execution.Id)
		job.ProcessInstanceId = int4(execution.ProcessInstanceId)
	}

	job.CreatedAt = ctx.Time()
	if job.DueAt.IsZero() {
		job.DueAt = ctx.Time()
	}
	job.Retries = ctx.Options().JobRetries
	job.TenantId = tenantId

	if err := ctx.Jobs().Insert(job); err != nil {
		return err
	}

	notifyJob(ctx, job, engine.NotificationJobCreated)
	return nil
}

// createTimerJob creates a job, which fires when a timer is due. Only a repeatable timer keeps the
// remaining cycle of a cycle expression. No job is created, if the first due date is after the timer's end date.
func createTimerJob(ctx Context, processDefinitionId int32, execution *ExecutionEntity, tenantId string, element *model.Element, timer model.Timer, jobType engine.JobType, repeatable bool) error {
	calendar, err := businessCalendar(ctx, timer.Kind)
	if err != nil {
		return err
	}

	dueAt, err := calendar.ResolveDueDate(timer.Expression)
	if err != nil {
		return engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to create timer job",
			Detail: fmt.Sprintf("BPMN element %s: %v", element.Id, err),
		}
	}

	var (
		endDate time.Time
		repeat  string
	)

	if timer.Kind == model.TimerCycle {
		cycle, err := engine.ParseCycle(timer.Expression)
		if err != nil {
			return err
		}

		endDate = cycle.End
		if next := cycle.Consume(); repeatable && !next.IsExhausted() {
			repeat = next.String()
		}
	}

	if timer.EndDate != "" {
		t, err := time.Parse(time.RFC3339, timer.EndDate)
		if err != nil {
			return fmt.Errorf("failed to parse end date of BPMN element %s: %v", element.Id, err)
		}
		if endDate.IsZero() || t.Before(endDate) {
			endDate = t.UTC()
		}
	}

	if !endDate.IsZero() && dueAt.After(endDate) {
		return nil
	}

	return createJob(ctx, processDefinitionId, execution, tenantId, &JobEntity{
		BpmnElementId: element.Id,
		DueAt:         dueAt,
		EndDate:       timestamp(endDate),
		Repeat:        text(repeat),
		Type:          jobType,
	})
}

// repeatJob creates the next occurrence of a repeating timer job, unless it would be due after the end date.
func repeatJob(ctx Context, job *JobEntity) error {
	cycle, err := engine.ParseCycle(job.Repeat.String)
	if err != nil {
		return fmt.Errorf("failed to parse repeat of job %d: %v", job.Id, err)
	}

	dueAt, err := cycle.Next(job.DueAt)
	if err != nil {
		return err
	}
	if job.EndDate.Valid && dueAt.After(job.EndDate.Time) {
		return nil
	}

	var repeat string
	if next := cycle.Consume(); !next.IsExhausted() {
		repeat = next.String()
	}

	next := JobEntity{
		ExecutionId:         job.ExecutionId,
		ProcessDefinitionId: job.ProcessDefinitionId,
		ProcessInstanceId:   job.ProcessInstanceId,

		BpmnElementId: job.BpmnElementId,
		CreatedAt:     ctx.Time(),
		DueAt:         dueAt,
		EndDate:       job.EndDate,
		HandlerConfig: job.HandlerConfig,
		Repeat:        text(repeat),
		Retries:       ctx.Options().JobRetries,
		TenantId:      job.TenantId,
		Type:          job.Type,
	}

	if err := ctx.Jobs().Insert(&next); err != nil {
		return err
	}

	notifyJob(ctx, &next, engine.NotificationJobCreated)
	return nil
}

func notifyJob(ctx Context, job *JobEntity, notificationType engine.NotificationType) {
	ctx.Notifications().Add(engine.Notification{
		Type: notificationType,
		Time: ctx.Time(),

		ExecutionId:         job.ExecutionId.Int32,
		JobId:               job.Id,
		ProcessDefinitionId: job.ProcessDefinitionId,
		ProcessInstanceId:   job.ProcessInstanceId.Int32,

		BpmnElementId: job.BpmnElementId,
		TenantId:      job.TenantId,
	})
}

// IsJobFailure reports whether an error, returned by [ExecuteJob], must be recorded via [FailJob].
// Conflicts and invalid commands are returned to the caller as they are.
func IsJobFailure(err error) bool {
	return err != nil && !engine.IsErrorType(err, engine.ErrorConflict) && !engine.IsErrorType(err, engine.ErrorValidation)
}

// NewJobExecutionError returns the error of a failed job execution, after the failure has been recorded.
func NewJobExecutionError(job engine.Job, err error) error {
	return engine.Error{
		Type:   engine.ErrorJobExecution,
		Title:  "failed to execute job",
		Detail: fmt.Sprintf("job %d of type %s failed (%d retries left): %v", job.Id, job.Type, job.Retries, err),
	}
}
