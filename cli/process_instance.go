package cli

import (
	"context"
	"strconv"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func newProcessInstanceCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "process-instance",
		Short:       "Manage and query process instances",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newProcessInstanceDeleteCmd(cli))
	c.AddCommand(newProcessInstanceQueryCmd(cli))
	c.AddCommand(newProcessInstanceSetTenantCmd(cli))
	c.AddCommand(newProcessInstanceStartCmd(cli))
	c.AddCommand(newProcessInstanceTriggerCmd(cli))

	return &c
}

func newProcessInstanceDeleteCmd(cli *Cli) *cobra.Command {
	var cmd engine.DeleteProcessInstanceCmd

	c := cobra.Command{
		Use:   "delete",
		Short: "Delete a process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			return cli.e.DeleteProcessInstance(context.Background(), cmd)
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Process instance ID")

	c.Flags().StringVar(&cmd.Reason, "reason", "", "Reason for the deletion")

	c.MarkFlagRequired("id")

	return &c
}

func newProcessInstanceQueryCmd(cli *Cli) *cobra.Command {
	var (
		tenantId string

		criteria = engine.ExecutionCriteria{ProcessInstancesOnly: true}
		options  engine.QueryOptions
	)

	c := cobra.Command{
		Use:   "query",
		Short: "Query process instances",
		RunE: func(c *cobra.Command, _ []string) error {
			criteria.TenantId = tenantIdOrNil(c, tenantId)

			q := cli.e.CreateQuery()
			q.SetOptions(options)

			results, err := q.QueryExecutions(context.Background(), criteria)
			if err != nil {
				return err
			}

			table := newTable([]string{
				"ID",
				"PROCESS DEFINITION ID",
				"BUSINESS KEY",
				"TENANT ID",
				"STARTED AT",
				"ENDED AT",
			})

			for _, result := range results {
				table.addRow([]string{
					strconv.Itoa(int(result.Id)),
					strconv.Itoa(int(result.ProcessDefinitionId)),
					result.BusinessKey,
					result.TenantId,
					formatTime(result.StartedAt),
					formatTimeOrNil(result.EndedAt),
				})
			}

			c.Print(table.format())
			return nil
		},
	}

	c.Flags().Int32Var(&criteria.Id, "id", 0, "Process instance ID")

	c.Flags().Int32Var(&criteria.ProcessDefinitionId, "process-definition-id", 0, "Process definition ID")

	flagTenantId(&c, &tenantId)
	flagQueryOptions(&c, &options)

	return &c
}

func newProcessInstanceSetTenantCmd(cli *Cli) *cobra.Command {
	var cmd engine.SetProcessInstanceTenantCmd

	c := cobra.Command{
		Use:   "set-tenant",
		Short: "Migrate a process instance to another tenant",
		RunE: func(c *cobra.Command, _ []string) error {
			return cli.e.SetProcessInstanceTenant(context.Background(), cmd)
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Process instance ID")

	c.Flags().StringVar(&cmd.TenantId, "tenant-id", "", "New tenant")

	c.MarkFlagRequired("id")
	c.MarkFlagRequired("tenant-id")

	return &c
}

func newProcessInstanceStartCmd(cli *Cli) *cobra.Command {
	var (
		variablesV map[string]string

		cmd engine.StartProcessInstanceCmd
	)

	c := cobra.Command{
		Use:   "start",
		Short: "Start a process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			variables, err := mapVariables(variablesV)
			if err != nil {
				return err
			}

			cmd.Variables = variables

			processInstance, err := cli.e.StartProcessInstance(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Println(processInstance.Id)
			return nil
		},
	}

	c.Flags().Int32Var(&cmd.ProcessDefinitionId, "process-definition-id", 0, "ID of the process definition to start")
	c.Flags().StringVar(&cmd.Key, "key", "", "Key of the process definition to start - the latest version is used")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", engine.DefaultTenantId, "Tenant, used in combination with a key")

	c.Flags().StringVar(&cmd.BusinessKey, "business-key", "", "Optional business key")
	c.Flags().StringToStringVar(&variablesV, "variable", nil, "Variable, consisting of name and JSON value")

	c.MarkFlagsOneRequired("process-definition-id", "key")
	c.MarkFlagsMutuallyExclusive("process-definition-id", "key")

	return &c
}

func newProcessInstanceTriggerCmd(cli *Cli) *cobra.Command {
	var (
		variablesV map[string]string

		cmd engine.TriggerCmd
	)

	c := cobra.Command{
		Use:   "trigger",
		Short: "Continue an execution, waiting at a user or receive task",
		RunE: func(c *cobra.Command, _ []string) error {
			variables, err := mapVariables(variablesV)
			if err != nil {
				return err
			}

			cmd.Variables = variables

			return cli.e.Trigger(context.Background(), cmd)
		},
	}

	c.Flags().Int32Var(&cmd.ExecutionId, "execution-id", 0, "ID of the waiting execution")

	c.Flags().StringToStringVar(&variablesV, "variable", nil, "Variable to set or delete, consisting of name and JSON value")

	c.MarkFlagRequired("execution-id")

	return &c
}
