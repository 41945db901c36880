package mem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"go.etcd.io/bbolt"
	"go.uber.org/multierr"
)

func New(customizers ...func(*Options)) (engine.Engine, error) {
	options := NewOptions()
	for _, customizer := range customizers {
		customizer(&options)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}

	metrics, err := internal.NewMetrics(options.Common.Registerer, options.Common.EngineId)
	if err != nil {
		return nil, err
	}

	logger := options.Common.Logger
	if logger == nil {
		logger = slog.Default()
	}

	memEngine := memEngine{
		ctx:               newMemContext(options, metrics),
		defaultQueryLimit: options.Common.DefaultQueryLimit,
		logger:            logger.With("engineId", options.Common.EngineId),
		options:           options,
	}

	if options.SnapshotFile != "" {
		db, err := openSnapshot(options.SnapshotFile)
		if err != nil {
			return nil, err
		}
		if err := loadSnapshot(db, memEngine.ctx); err != nil {
			return nil, multierr.Append(err, db.Close())
		}

		memEngine.db = db
	}

	if options.Common.JobExecutorEnabled {
		memEngine.jobExecutor = internal.NewJobExecutor(&memEngine, options.Common)
		memEngine.jobExecutor.Execute()
	}

	return &memEngine, nil
}

func NewOptions() Options {
	return Options{
		Common: engine.NewOptions(),
	}
}

type Options struct {
	Common engine.Options // Common options

	// Optional bbolt file, the engine's entities are loaded from and written to after each successful command.
	SnapshotFile string
}

func (o Options) Validate() error {
	return o.Common.Validate()
}

type memEngine struct {
	ctxMutex sync.RWMutex
	ctx      *memContext

	defaultQueryLimit int

	db          *bbolt.DB
	jobExecutor *internal.JobExecutor
	logger      *slog.Logger
	options     Options
}

func (e *memEngine) ActivateProcessDefinition(ctx context.Context, cmd engine.ActivateProcessDefinitionCmd) error {
	return e.executeNoResult(ctx, func(memCtx *memContext) error {
		return internal.ActivateProcessDefinition(memCtx, cmd)
	})
}

func (e *memEngine) CreateQuery() engine.Query {
	return &query{
		e: e,

		defaultQueryLimit: e.defaultQueryLimit,
		options:           engine.QueryOptions{Limit: e.defaultQueryLimit},
	}
}

func (e *memEngine) DeleteDeployment(ctx context.Context, cmd engine.DeleteDeploymentCmd) error {
	return e.executeNoResult(ctx, func(memCtx *memContext) error {
		return internal.DeleteDeployment(memCtx, cmd)
	})
}

func (e *memEngine) DeleteProcessInstance(ctx context.Context, cmd engine.DeleteProcessInstanceCmd) error {
	return e.executeNoResult(ctx, func(memCtx *memContext) error {
		return internal.DeleteProcessInstance(memCtx, cmd)
	})
}

func (e *memEngine) Deploy(ctx context.Context, cmd engine.DeployCmd) (engine.Deployment, error) {
	return execute(e, ctx, func(memCtx *memContext) (engine.Deployment, error) {
		return internal.Deploy(memCtx, cmd)
	})
}

func (e *memEngine) ExecuteJob(ctx context.Context, cmd engine.ExecuteJobCmd) (engine.Job, error) {
	job, err := execute(e, ctx, func(memCtx *memContext) (engine.Job, error) {
		return internal.ExecuteJob(memCtx, cmd)
	})
	if !internal.IsJobFailure(err) {
		return job, err
	}

	failedJob, failErr := execute(e, ctx, func(memCtx *memContext) (engine.Job, error) {
		return internal.FailJob(memCtx, cmd, err)
	})
	if failErr != nil {
		return engine.Job{}, fmt.Errorf("failed to record failure of job %d: %v: %v", cmd.Id, failErr, err)
	}

	e.logger.Warn("job execution failed", "jobId", failedJob.Id, "type", failedJob.Type, "retries", failedJob.Retries, "error", err)
	if onFailure := e.options.Common.OnJobExecutionFailure; onFailure != nil {
		onFailure(failedJob, err)
	}

	return failedJob, internal.NewJobExecutionError(failedJob, err)
}

func (e *memEngine) ExecuteJobs(ctx context.Context, cmd engine.ExecuteJobsCmd) ([]engine.Job, []engine.Job, error) {
	return internal.ExecuteJobs(ctx, e, cmd, e.options.Common.JobExecutorWorkers)
}

func (e *memEngine) GetLatestProcessDefinition(ctx context.Context, cmd engine.GetLatestProcessDefinitionCmd) (engine.ProcessDefinition, error) {
	defer e.runlock()
	return internal.GetLatestProcessDefinition(e.rlock(ctx), cmd)
}

func (e *memEngine) GetVariables(ctx context.Context, cmd engine.GetVariablesCmd) (map[string]any, error) {
	defer e.runlock()
	return internal.GetVariables(e.rlock(ctx), cmd)
}

func (e *memEngine) LockJobs(ctx context.Context, cmd engine.LockJobsCmd) ([]engine.Job, error) {
	return execute(e, ctx, func(memCtx *memContext) ([]engine.Job, error) {
		return internal.LockJobs(memCtx, cmd)
	})
}

func (e *memEngine) SendMessage(ctx context.Context, cmd engine.SendMessageCmd) (int, error) {
	return execute(e, ctx, func(memCtx *memContext) (int, error) {
		return internal.SendMessage(memCtx, cmd)
	})
}

func (e *memEngine) SendSignal(ctx context.Context, cmd engine.SendSignalCmd) (int, error) {
	return execute(e, ctx, func(memCtx *memContext) (int, error) {
		return internal.SendSignal(memCtx, cmd)
	})
}

func (e *memEngine) SetDeploymentTenant(ctx context.Context, cmd engine.SetDeploymentTenantCmd) error {
	return e.executeNoResult(ctx, func(memCtx *memContext) error {
		return internal.SetDeploymentTenant(memCtx, cmd)
	})
}

func (e *memEngine) SetJobRetries(ctx context.Context, cmd engine.SetJobRetriesCmd) (engine.Job, error) {
	return execute(e, ctx, func(memCtx *memContext) (engine.Job, error) {
		return internal.SetJobRetries(memCtx, cmd)
	})
}

func (e *memEngine) SetProcessInstanceTenant(ctx context.Context, cmd engine.SetProcessInstanceTenantCmd) error {
	return e.executeNoResult(ctx, func(memCtx *memContext) error {
		return internal.SetProcessInstanceTenant(memCtx, cmd)
	})
}

func (e *memEngine) SetTime(ctx context.Context, cmd engine.SetTimeCmd) error {
	defer e.unlock()
	return internal.SetTime(e.wlock(ctx), cmd)
}

func (e *memEngine) StartProcessInstance(ctx context.Context, cmd engine.StartProcessInstanceCmd) (engine.Execution, error) {
	return execute(e, ctx, func(memCtx *memContext) (engine.Execution, error) {
		return internal.StartProcessInstance(memCtx, cmd)
	})
}

func (e *memEngine) SuspendProcessDefinition(ctx context.Context, cmd engine.SuspendProcessDefinitionCmd) error {
	return e.executeNoResult(ctx, func(memCtx *memContext) error {
		return internal.SuspendProcessDefinition(memCtx, cmd)
	})
}

func (e *memEngine) Trigger(ctx context.Context, cmd engine.TriggerCmd) error {
	return e.executeNoResult(ctx, func(memCtx *memContext) error {
		return internal.Trigger(memCtx, cmd)
	})
}

func (e *memEngine) UnlockJobs(ctx context.Context, cmd engine.UnlockJobsCmd) (int, error) {
	return execute(e, ctx, func(memCtx *memContext) (int, error) {
		return internal.UnlockJobs(memCtx, cmd)
	})
}

func (e *memEngine) Shutdown() {
	if e.jobExecutor != nil {
		e.jobExecutor.Stop()
	}

	e.ctxMutex.Lock()
	defer e.ctxMutex.Unlock()

	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.logger.Error("failed to close snapshot file", "error", err)
		}
		e.db = nil
	}

	e.ctx.clear()
}

func (e *memEngine) executeNoResult(ctx context.Context, f func(*memContext) error) error {
	_, err := execute(e, ctx, func(memCtx *memContext) (struct{}, error) {
		return struct{}{}, f(memCtx)
	})
	return err
}

// execute runs a write command exclusively. If the command fails, all entities are restored.
// Otherwise, the command's notifications are published, after the lock has been released.
func execute[T any](e *memEngine, ctx context.Context, f func(*memContext) (T, error)) (T, error) {
	var notifications internal.Notifications

	result, err := func() (T, error) {
		defer e.unlock()
		memCtx := e.wlock(ctx)

		snapshot := memCtx.snapshot()

		result, err := f(memCtx)
		if err == nil && e.db != nil {
			err = saveSnapshot(e.db, memCtx)
		}
		if err != nil {
			memCtx.restore(snapshot)

			var zero T
			return zero, err
		}

		notifications = memCtx.notifications
		memCtx.notifications = internal.Notifications{}
		return result, nil
	}()

	if err == nil {
		notifications.Publish(e.options.Common, e.ctx.metrics)
	}
	return result, err
}

func (e *memEngine) rlock(ctx context.Context) *memContext {
	e.ctxMutex.RLock()

	// time and caller context are only read by queries, which run in parallel
	memCtx := *e.ctx
	memCtx.ctx = ctx
	memCtx.time = e.options.Common.Clock.Now()
	return &memCtx
}

func (e *memEngine) runlock() {
	e.ctxMutex.RUnlock()
}

func (e *memEngine) wlock(ctx context.Context) *memContext {
	e.ctxMutex.Lock()

	e.ctx.ctx = ctx
	e.ctx.time = e.options.Common.Clock.Now()
	return e.ctx
}

func (e *memEngine) unlock() {
	e.ctx.ctx = nil
	e.ctxMutex.Unlock()
}
