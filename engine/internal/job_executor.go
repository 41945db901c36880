package internal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// NewWorkerId returns a unique worker ID, prefixed with the ID of the engine.
func NewWorkerId(engineId string) string {
	return engineId + "/" + uuid.NewString()
}

func NewJobExecutor(e engine.Engine, options engine.Options) *JobExecutor {
	tickerCtx, tickerCancel := context.WithCancel(context.Background())

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workerId := NewWorkerId(options.EngineId)

	return &JobExecutor{
		engine:   e,
		limit:    options.JobExecutorLimit,
		logger:   logger.With("workerId", workerId),
		workerId: workerId,

		tickerCtx:    tickerCtx,
		tickerCancel: tickerCancel,
		ticker:       time.NewTicker(options.JobExecutorInterval),
	}
}

// JobExecutor executes due jobs periodically.
type JobExecutor struct {
	engine   engine.Engine
	limit    int
	logger   *slog.Logger
	workerId string

	tickerCtx    context.Context
	tickerCancel context.CancelFunc
	ticker       *time.Ticker
}

func (e *JobExecutor) Execute() {
	go func() {
		for {
			select {
			case <-e.ticker.C:
				completed, failed, err := e.engine.ExecuteJobs(e.tickerCtx, engine.ExecuteJobsCmd{
					WorkerId: e.workerId,
					Limit:    e.limit,
				})
				if err != nil {
					e.logger.Warn("failed to execute jobs", "error", err, "completed", len(completed), "failed", len(failed))
				} else if len(completed) != 0 || len(failed) != 0 {
					e.logger.Debug("executed jobs", "completed", len(completed), "failed", len(failed))
				}
			case <-e.tickerCtx.Done():
				return
			}
		}
	}()
}

func (e *JobExecutor) Stop() {
	e.ticker.Stop()
	e.tickerCancel()
}

// ExecuteJobs locks due jobs for a worker and executes them concurrently, using at most the given number of workers.
// Completed and failed jobs are returned. Errors, which are not caused by a failed job execution, are combined.
func ExecuteJobs(ctx context.Context, e engine.Engine, cmd engine.ExecuteJobsCmd, workers int) ([]engine.Job, []engine.Job, error) {
	if err := engine.ValidateCmd(cmd); err != nil {
		return nil, nil, err
	}

	jobs, err := e.LockJobs(ctx, engine.LockJobsCmd{
		WorkerId: cmd.WorkerId,
		Limit:    cmd.Limit,
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		mutex     sync.Mutex
		completed []engine.Job
		failed    []engine.Job
		errs      error
	)

	var g errgroup.Group
	g.SetLimit(max(workers, 1))

	for _, job := range jobs {
		g.Go(func() error {
			executed, err := e.ExecuteJob(ctx, engine.ExecuteJobCmd{
				Id:       job.Id,
				WorkerId: cmd.WorkerId,
			})

			mutex.Lock()
			defer mutex.Unlock()

			switch {
			case err == nil && executed.Id != 0:
				completed = append(completed, executed)
			case engine.IsErrorType(err, engine.ErrorJobExecution):
				failed = append(failed, executed)
			case err != nil:
				errs = multierr.Append(errs, err)
			}
			return nil
		})
	}

	_ = g.Wait()

	sortJobs(completed)
	sortJobs(failed)

	return completed, failed, errs
}
