package cli

import (
	"context"
	"strconv"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func newJobCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "job",
		Short:       "Manage and query jobs",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newJobExecuteCmd(cli))
	c.AddCommand(newJobExecuteDueCmd(cli))
	c.AddCommand(newJobLockCmd(cli))
	c.AddCommand(newJobQueryCmd(cli))
	c.AddCommand(newJobSetRetriesCmd(cli))
	c.AddCommand(newJobUnlockCmd(cli))

	return &c
}

func newJobExecuteCmd(cli *Cli) *cobra.Command {
	var cmd engine.ExecuteJobCmd

	c := cobra.Command{
		Use:   "execute",
		Short: "Execute a locked job",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.WorkerId = cli.workerId

			job, err := cli.e.ExecuteJob(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatJobs([]engine.Job{job}))
			return nil
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Job ID")

	c.MarkFlagRequired("id")

	return &c
}

func newJobExecuteDueCmd(cli *Cli) *cobra.Command {
	var cmd engine.ExecuteJobsCmd

	c := cobra.Command{
		Use:   "execute-due",
		Short: "Lock and execute due jobs",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.WorkerId = cli.workerId

			completedJobs, failedJobs, err := cli.e.ExecuteJobs(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Printf("Number of completed jobs: %d\n", len(completedJobs))
			c.Printf("Number of failed jobs: %d\n", len(failedJobs))

			if len(failedJobs) != 0 {
				c.Print(formatJobs(failedJobs))
			}
			return nil
		},
	}

	c.Flags().IntVar(&cmd.Limit, "limit", 10, "Maximum number of jobs to lock and execute")

	return &c
}

func newJobLockCmd(cli *Cli) *cobra.Command {
	var (
		jobTypes []string

		cmd engine.LockJobsCmd
	)

	c := cobra.Command{
		Use:   "lock",
		Short: "Lock due jobs",
		RunE: func(c *cobra.Command, _ []string) error {
			for _, s := range jobTypes {
				var jobType jobTypeValue
				if err := jobType.Set(s); err != nil {
					return err
				}
				cmd.Types = append(cmd.Types, engine.JobType(jobType))
			}

			cmd.WorkerId = cli.workerId

			jobs, err := cli.e.LockJobs(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatJobs(jobs))
			return nil
		},
	}

	c.Flags().Int32Var(&cmd.ProcessInstanceId, "process-instance-id", 0, "Process instance ID")
	c.Flags().StringSliceVar(&jobTypes, "type", nil, "Type of the jobs to include")

	c.Flags().IntVar(&cmd.Limit, "limit", 1, "Maximum number of jobs to lock")

	return &c
}

func newJobQueryCmd(cli *Cli) *cobra.Command {
	var (
		jobType  jobTypeValue
		tenantId string

		criteria engine.JobCriteria
		options  engine.QueryOptions
	)

	c := cobra.Command{
		Use:   "query",
		Short: "Query jobs",
		RunE: func(c *cobra.Command, _ []string) error {
			criteria.TenantId = tenantIdOrNil(c, tenantId)
			criteria.Type = engine.JobType(jobType)

			q := cli.e.CreateQuery()
			q.SetOptions(options)

			results, err := q.QueryJobs(context.Background(), criteria)
			if err != nil {
				return err
			}

			c.Print(formatJobs(results))
			return nil
		},
	}

	c.Flags().Int32Var(&criteria.Id, "id", 0, "Job ID")

	c.Flags().Int32Var(&criteria.ExecutionId, "execution-id", 0, "Execution ID")
	c.Flags().Int32Var(&criteria.ProcessDefinitionId, "process-definition-id", 0, "Process definition ID")
	c.Flags().Int32Var(&criteria.ProcessInstanceId, "process-instance-id", 0, "Process instance ID")
	c.Flags().StringVar(&criteria.BpmnElementId, "bpmn-element-id", "", "BPMN element ID")
	c.Flags().BoolVar(&criteria.DeadOnly, "dead-only", false, "Include only dead jobs")
	c.Flags().Var(&jobType, "type", "Job type")

	flagTenantId(&c, &tenantId)
	flagQueryOptions(&c, &options)

	return &c
}

func newJobSetRetriesCmd(cli *Cli) *cobra.Command {
	var (
		retryTimer iso8601DurationValue

		cmd engine.SetJobRetriesCmd
	)

	c := cobra.Command{
		Use:   "set-retries",
		Short: "Set the retries of a job",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.RetryTimer = engine.ISO8601Duration(retryTimer)

			job, err := cli.e.SetJobRetries(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatJobs([]engine.Job{job}))
			return nil
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Job ID")

	c.Flags().IntVar(&cmd.Retries, "retries", 1, "Number of retries")
	c.Flags().Var(&retryTimer, "retry-timer", "Duration until the job becomes due again")

	c.MarkFlagRequired("id")

	return &c
}

func newJobUnlockCmd(cli *Cli) *cobra.Command {
	var cmd engine.UnlockJobsCmd

	c := cobra.Command{
		Use:   "unlock",
		Short: "Unlock jobs",
		RunE: func(c *cobra.Command, _ []string) error {
			if cmd.WorkerId == "" {
				cmd.WorkerId = cli.workerId
			}

			count, err := cli.e.UnlockJobs(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Printf("Number of unlocked jobs: %d\n", count)
			return nil
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Job ID")

	c.Flags().StringVar(&cmd.WorkerId, "lock-owner", "", "Worker, whose jobs are unlocked - defaults to the worker ID")

	return &c
}

func formatJobs(jobs []engine.Job) string {
	table := newTable([]string{
		"ID",
		"TYPE",
		"STATE",
		"PROCESS INSTANCE ID",
		"BPMN ELEMENT ID",
		"DUE AT",
		"RETRIES",
		"LOCK OWNER",
		"ERROR",
	})

	for _, job := range jobs {
		table.addRow([]string{
			strconv.Itoa(int(job.Id)),
			job.Type.String(),
			job.State.String(),
			formatId(job.ProcessInstanceId),
			job.BpmnElementId,
			formatTime(job.DueAt),
			strconv.Itoa(job.Retries),
			job.LockOwner,
			job.Error,
		})
	}

	return table.format()
}
