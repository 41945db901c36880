package cli

import (
	"context"
	"strconv"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func newEventCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "event",
		Short:       "Send events and query event subscriptions",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newEventSendMessageCmd(cli))
	c.AddCommand(newEventSendSignalCmd(cli))
	c.AddCommand(newEventSubscriptionQueryCmd(cli))

	return &c
}

func newEventSendMessageCmd(cli *Cli) *cobra.Command {
	var (
		variablesV map[string]string

		cmd engine.SendMessageCmd
	)

	c := cobra.Command{
		Use:   "send-message",
		Short: "Send a message",
		RunE: func(c *cobra.Command, _ []string) error {
			variables, err := mapVariables(variablesV)
			if err != nil {
				return err
			}

			cmd.Variables = variables

			count, err := cli.e.SendMessage(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Printf("Number of triggered subscriptions: %d\n", count)
			return nil
		},
	}

	c.Flags().StringVar(&cmd.Name, "name", "", "Message name")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", engine.DefaultTenantId, "Tenant, the message is delivered in")
	c.Flags().Int32Var(&cmd.ExecutionId, "execution-id", 0, "Optional target execution")
	c.Flags().StringToStringVar(&variablesV, "variable", nil, "Variable to set or delete, consisting of name and JSON value")

	c.MarkFlagRequired("name")

	return &c
}

func newEventSendSignalCmd(cli *Cli) *cobra.Command {
	var (
		variablesV map[string]string

		cmd engine.SendSignalCmd
	)

	c := cobra.Command{
		Use:   "send-signal",
		Short: "Send a signal",
		RunE: func(c *cobra.Command, _ []string) error {
			variables, err := mapVariables(variablesV)
			if err != nil {
				return err
			}

			cmd.Variables = variables

			count, err := cli.e.SendSignal(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Printf("Number of triggered subscriptions: %d\n", count)
			return nil
		},
	}

	c.Flags().StringVar(&cmd.Name, "name", "", "Signal name")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", engine.DefaultTenantId, "Tenant, the signal is delivered in")
	c.Flags().Int32Var(&cmd.ExecutionId, "execution-id", 0, "Optional target execution")
	c.Flags().StringToStringVar(&variablesV, "variable", nil, "Variable to set or delete, consisting of name and JSON value")

	c.MarkFlagRequired("name")

	return &c
}

func newEventSubscriptionQueryCmd(cli *Cli) *cobra.Command {
	var (
		eventType eventTypeValue
		tenantId  string

		criteria engine.EventSubscriptionCriteria
		options  engine.QueryOptions
	)

	c := cobra.Command{
		Use:   "query-subscriptions",
		Short: "Query event subscriptions",
		RunE: func(c *cobra.Command, _ []string) error {
			criteria.EventType = engine.EventType(eventType)
			criteria.TenantId = tenantIdOrNil(c, tenantId)

			q := cli.e.CreateQuery()
			q.SetOptions(options)

			results, err := q.QueryEventSubscriptions(context.Background(), criteria)
			if err != nil {
				return err
			}

			table := newTable([]string{
				"ID",
				"EVENT TYPE",
				"EVENT NAME",
				"PROCESS DEFINITION ID",
				"PROCESS INSTANCE ID",
				"EXECUTION ID",
				"BPMN ELEMENT ID",
				"TENANT ID",
				"CREATED AT",
			})

			for _, result := range results {
				table.addRow([]string{
					strconv.Itoa(int(result.Id)),
					result.EventType.String(),
					result.EventName,
					strconv.Itoa(int(result.ProcessDefinitionId)),
					formatId(result.ProcessInstanceId),
					formatId(result.ExecutionId),
					result.BpmnElementId,
					result.TenantId,
					formatTime(result.CreatedAt),
				})
			}

			c.Print(table.format())
			return nil
		},
	}

	c.Flags().Int32Var(&criteria.Id, "id", 0, "Event subscription ID")

	c.Flags().Int32Var(&criteria.ExecutionId, "execution-id", 0, "Execution ID")
	c.Flags().Int32Var(&criteria.ProcessDefinitionId, "process-definition-id", 0, "Process definition ID")
	c.Flags().Int32Var(&criteria.ProcessInstanceId, "process-instance-id", 0, "Process instance ID")
	c.Flags().StringVar(&criteria.EventName, "event-name", "", "Signal or message name")
	c.Flags().Var(&eventType, "event-type", "Event type: MESSAGE or SIGNAL")

	flagTenantId(&c, &tenantId)
	flagQueryOptions(&c, &options)

	return &c
}
