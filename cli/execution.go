package cli

import (
	"context"
	"strconv"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func newExecutionCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "execution",
		Short:       "Query executions",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newExecutionQueryCmd(cli))

	return &c
}

func newExecutionQueryCmd(cli *Cli) *cobra.Command {
	var (
		tenantId string

		criteria engine.ExecutionCriteria
		options  engine.QueryOptions
	)

	c := cobra.Command{
		Use:   "query",
		Short: "Query executions",
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
				"PARENT ID",
				"PROCESS INSTANCE ID",
				"BPMN ELEMENT ID",
				"ACTIVE",
				"CONCURRENT",
				"SCOPE",
				"ENDED",
				"STARTED AT",
			})

			for _, result := range results {
				table.addRow([]string{
					strconv.Itoa(int(result.Id)),
					formatId(result.ParentId),
					strconv.Itoa(int(result.ProcessInstanceId)),
					result.BpmnElementId,
					strconv.FormatBool(result.IsActive),
					strconv.FormatBool(result.IsConcurrent),
					strconv.FormatBool(result.IsScope),
					strconv.FormatBool(result.IsEnded),
					formatTime(result.StartedAt),
				})
			}

			c.Print(table.format())
			return nil
		},
	}

	c.Flags().Int32Var(&criteria.Id, "id", 0, "Execution ID")

	c.Flags().Int32Var(&criteria.ParentId, "parent-id", 0, "Parent execution ID")
	c.Flags().Int32Var(&criteria.ProcessDefinitionId, "process-definition-id", 0, "Process definition ID")
	c.Flags().Int32Var(&criteria.ProcessInstanceId, "process-instance-id", 0, "Process instance ID")
	c.Flags().StringVar(&criteria.BpmnElementId, "bpmn-element-id", "", "BPMN element ID")

	flagTenantId(&c, &tenantId)
	flagQueryOptions(&c, &options)

	return &c
}
