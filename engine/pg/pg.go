package pg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/internal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func New(databaseUrl string, customizers ...func(*Options)) (engine.Engine, error) {
	if databaseUrl == "" {
		return nil, errors.New("database URL is empty")
	}

	options := NewOptions()
	for _, customizer := range customizers {
		customizer(&options)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}

	pgPoolConfig, err := pgxpool.ParseConfig(databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %v", err)
	}

	if _, ok := pgPoolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		pgPoolConfig.ConnConfig.RuntimeParams["application_name"] = options.Common.EngineId
	}

	if databaseSchema, ok := pgPoolConfig.ConnConfig.RuntimeParams["search_path"]; ok {
		options.databaseSchema = databaseSchema
	}

	metrics, err := internal.NewMetrics(options.Common.Registerer, options.Common.EngineId)
	if err != nil {
		return nil, err
	}

	logger := options.Common.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pgPoolCtx, pgPoolCancel := context.WithTimeout(context.Background(), options.Timeout)
	defer pgPoolCancel()

	pgPool, err := pgxpool.NewWithConfig(pgPoolCtx, pgPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %v", err)
	}

	pgCtxPoolSize := int(pgPoolConfig.MaxConns)
	pgCtxPool := make(chan *pgContext, pgCtxPoolSize)

	processCache := internal.NewProcessCache()

	for range pgCtxPoolSize {
		pgCtxPool <- &pgContext{options: options, metrics: metrics, processCache: processCache}
	}

	acquireCtx, acquireCancel := context.WithCancel(context.Background())

	pgEngine := pgEngine{
		acquireCtx:    acquireCtx,
		acquireCancel: acquireCancel,

		pgCtxPool: pgCtxPool,
		pgPool:    pgPool,
		txTimeout: options.Timeout,

		logger:  logger.With("engineId", options.Common.EngineId),
		options: options,
	}

	if err := pgEngine.migrateDatabase(); err != nil {
		pgEngine.Shutdown()
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	if options.Common.JobExecutorEnabled {
		pgEngine.jobExecutor = internal.NewJobExecutor(&pgEngine, options.Common)
		pgEngine.jobExecutor.Execute()
	}

	return &pgEngine, nil
}

func NewOptions() Options {
	return Options{
		Common: engine.NewOptions(),

		Timeout: 30 * time.Second,

		databaseSchema: "public",
	}
}

type Options struct {
	Common engine.Options // Common engine options.

	Timeout time.Duration // Time limit for database transactions, utilized when the caller's context has no deadline.

	databaseSchema string // derived from database URL - see runtime parameter "search_path"
}

func (o Options) Validate() error {
	if o.Timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	return o.Common.Validate()
}

type pgEngine struct {
	acquireCtx    context.Context    // used to prevent the acquiring of a context, when the engine is shut down
	acquireCancel context.CancelFunc // cancels the acquire context
	shutdownOnce  sync.Once

	pgCtxPool chan *pgContext
	pgPool    *pgxpool.Pool
	txTimeout time.Duration

	jobExecutor *internal.JobExecutor
	logger      *slog.Logger
	options     Options
}

func (e *pgEngine) migrateDatabase() error {
	pgCtx, cancel, err := e.acquire(context.Background())
	if err != nil {
		return err
	}

	defer cancel()
	return e.release(pgCtx, migrateDatabase(pgCtx))
}

// acquire takes a context from the pool and begins a transaction.
// If the caller's context has no deadline, the transaction is limited by the configured timeout.
func (e *pgEngine) acquire(ctx context.Context) (*pgContext, context.CancelFunc, error) {
	var (
		txCtx  context.Context
		cancel context.CancelFunc
	)
	if _, ok := ctx.Deadline(); ok {
		txCtx, cancel = context.WithCancel(ctx)
	} else {
		txCtx, cancel = context.WithTimeout(ctx, e.txTimeout)
	}

	var pgCtx *pgContext
	select {
	case <-e.acquireCtx.Done():
		cancel()
		return nil, nil, errors.New("engine is shut down")
	case <-txCtx.Done():
		cancel()
		return nil, nil, fmt.Errorf("failed to acquire context: %v", txCtx.Err())
	case pgCtx = <-e.pgCtxPool:
	}

	tx, err := e.pgPool.Begin(txCtx)
	if err != nil {
		e.pgCtxPool <- pgCtx
		cancel()
		return nil, nil, fmt.Errorf("failed to begin transaction: %v", err)
	}

	pgCtx.ctx = ctx
	pgCtx.time = e.options.Common.Clock.Now()
	pgCtx.tx = tx
	pgCtx.txCtx = txCtx

	return pgCtx, cancel, nil
}

// release commits the transaction of a context, if err is nil. Otherwise the transaction is rolled back.
// After a successful commit, the buffered notifications are published.
func (e *pgEngine) release(pgCtx *pgContext, err error) error {
	if err != nil {
		if rollbackErr := pgCtx.tx.Rollback(pgCtx.txCtx); rollbackErr != nil {
			e.logger.Error("failed to rollback transaction", "error", rollbackErr)
		}
	} else if commitErr := pgCtx.tx.Commit(pgCtx.txCtx); commitErr != nil {
		err = fmt.Errorf("failed to commit transaction: %v", commitErr)
	}

	notifications := pgCtx.notifications
	metrics := pgCtx.metrics

	pgCtx.ctx = nil
	pgCtx.notifications = internal.Notifications{}
	pgCtx.tx = nil
	pgCtx.txCtx = nil

	e.pgCtxPool <- pgCtx

	if err == nil {
		notifications.Publish(e.options.Common, metrics)
	}
	return err
}

func (e *pgEngine) ActivateProcessDefinition(ctx context.Context, cmd engine.ActivateProcessDefinitionCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.ActivateProcessDefinition(pgCtx, cmd)
	return e.release(pgCtx, err)
}

func (e *pgEngine) CreateQuery() engine.Query {
	return &query{
		e: e,

		defaultQueryLimit: e.options.Common.DefaultQueryLimit,
		options:           engine.QueryOptions{Limit: e.options.Common.DefaultQueryLimit},
	}
}

func (e *pgEngine) DeleteDeployment(ctx context.Context, cmd engine.DeleteDeploymentCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.DeleteDeployment(pgCtx, cmd)
	return e.release(pgCtx, err)
}

func (e *pgEngine) DeleteProcessInstance(ctx context.Context, cmd engine.DeleteProcessInstanceCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.DeleteProcessInstance(pgCtx, cmd)
	return e.release(pgCtx, err)
}

func (e *pgEngine) Deploy(ctx context.Context, cmd engine.DeployCmd) (engine.Deployment, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return engine.Deployment{}, err
	}

	defer cancel()
	deployment, err := internal.Deploy(pgCtx, cmd)
	return deployment, e.release(pgCtx, err)
}

// ExecuteJob executes a locked job within a transaction. If the execution fails, the transaction is rolled back
// and the failure is recorded in a second transaction.
func (e *pgEngine) ExecuteJob(ctx context.Context, cmd engine.ExecuteJobCmd) (engine.Job, error) {
	job, err := e.executeJob(ctx, cmd)
	if !internal.IsJobFailure(err) {
		return job, err
	}

	failedJob, failErr := e.failJob(ctx, cmd, err)
	if failErr != nil {
		return engine.Job{}, fmt.Errorf("failed to record failure of job %d: %v: %v", cmd.Id, failErr, err)
	}

	e.logger.Warn("job execution failed", "jobId", failedJob.Id, "type", failedJob.Type, "retries", failedJob.Retries, "error", err)
	if onFailure := e.options.Common.OnJobExecutionFailure; onFailure != nil {
		onFailure(failedJob, err)
	}

	return failedJob, internal.NewJobExecutionError(failedJob, err)
}

func (e *pgEngine) executeJob(ctx context.Context, cmd engine.ExecuteJobCmd) (engine.Job, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return engine.Job{}, err
	}

	defer cancel()
	job, err := internal.ExecuteJob(pgCtx, cmd)
	return job, e.release(pgCtx, err)
}

func (e *pgEngine) failJob(ctx context.Context, cmd engine.ExecuteJobCmd, jobErr error) (engine.Job, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return engine.Job{}, err
	}

	defer cancel()
	job, err := internal.FailJob(pgCtx, cmd, jobErr)
	return job, e.release(pgCtx, err)
}

func (e *pgEngine) ExecuteJobs(ctx context.Context, cmd engine.ExecuteJobsCmd) ([]engine.Job, []engine.Job, error) {
	return internal.ExecuteJobs(ctx, e, cmd, e.options.Common.JobExecutorWorkers)
}

func (e *pgEngine) GetLatestProcessDefinition(ctx context.Context, cmd engine.GetLatestProcessDefinitionCmd) (engine.ProcessDefinition, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return engine.ProcessDefinition{}, err
	}

	defer cancel()
	processDefinition, err := internal.GetLatestProcessDefinition(pgCtx, cmd)
	return processDefinition, e.release(pgCtx, err)
}

func (e *pgEngine) GetVariables(ctx context.Context, cmd engine.GetVariablesCmd) (map[string]any, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	defer cancel()
	variables, err := internal.GetVariables(pgCtx, cmd)
	return variables, e.release(pgCtx, err)
}

func (e *pgEngine) LockJobs(ctx context.Context, cmd engine.LockJobsCmd) ([]engine.Job, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	defer cancel()
	jobs, err := internal.LockJobs(pgCtx, cmd)
	return jobs, e.release(pgCtx, err)
}

func (e *pgEngine) SendMessage(ctx context.Context, cmd engine.SendMessageCmd) (int, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return 0, err
	}

	defer cancel()
	count, err := internal.SendMessage(pgCtx, cmd)
	return count, e.release(pgCtx, err)
}

func (e *pgEngine) SendSignal(ctx context.Context, cmd engine.SendSignalCmd) (int, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return 0, err
	}

	defer cancel()
	count, err := internal.SendSignal(pgCtx, cmd)
	return count, e.release(pgCtx, err)
}

func (e *pgEngine) SetDeploymentTenant(ctx context.Context, cmd engine.SetDeploymentTenantCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.SetDeploymentTenant(pgCtx, cmd)
	return e.release(pgCtx, err)
}

func (e *pgEngine) SetJobRetries(ctx context.Context, cmd engine.SetJobRetriesCmd) (engine.Job, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return engine.Job{}, err
	}

	defer cancel()
	job, err := internal.SetJobRetries(pgCtx, cmd)
	return job, e.release(pgCtx, err)
}

func (e *pgEngine) SetProcessInstanceTenant(ctx context.Context, cmd engine.SetProcessInstanceTenantCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.SetProcessInstanceTenant(pgCtx, cmd)
	return e.release(pgCtx, err)
}

// SetTime moves the clock of the engine. The clock is not shared with other engines, using the same database.
func (e *pgEngine) SetTime(ctx context.Context, cmd engine.SetTimeCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.SetTime(pgCtx, cmd)
	return e.release(pgCtx, err)
}

func (e *pgEngine) StartProcessInstance(ctx context.Context, cmd engine.StartProcessInstanceCmd) (engine.Execution, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return engine.Execution{}, err
	}

	defer cancel()
	processInstance, err := internal.StartProcessInstance(pgCtx, cmd)
	return processInstance, e.release(pgCtx, err)
}

func (e *pgEngine) SuspendProcessDefinition(ctx context.Context, cmd engine.SuspendProcessDefinitionCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.SuspendProcessDefinition(pgCtx, cmd)
	return e.release(pgCtx, err)
}

func (e *pgEngine) Trigger(ctx context.Context, cmd engine.TriggerCmd) error {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	defer cancel()
	err = internal.Trigger(pgCtx, cmd)
	return e.release(pgCtx, err)
}

func (e *pgEngine) UnlockJobs(ctx context.Context, cmd engine.UnlockJobsCmd) (int, error) {
	pgCtx, cancel, err := e.acquire(ctx)
	if err != nil {
		return 0, err
	}

	defer cancel()
	count, err := internal.UnlockJobs(pgCtx, cmd)
	return count, e.release(pgCtx, err)
}

func (e *pgEngine) Shutdown() {
	e.shutdownOnce.Do(func() {
		if e.jobExecutor != nil {
			e.jobExecutor.Stop()
		}

		e.acquireCancel()
		e.pgPool.Close()

		for len(e.pgCtxPool) > 0 {
			pgCtx := <-e.pgCtxPool
			pgCtx.processCache.Clear()
		}
	})
}
