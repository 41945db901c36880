package cli

import (
	"context"
	"strconv"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func newProcessCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "process",
		Short:       "Manage and query process definitions",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newProcessActivateCmd(cli))
	c.AddCommand(newProcessGetLatestCmd(cli))
	c.AddCommand(newProcessQueryCmd(cli))
	c.AddCommand(newProcessSuspendCmd(cli))

	return &c
}

func newProcessActivateCmd(cli *Cli) *cobra.Command {
	var cmd engine.ActivateProcessDefinitionCmd

	c := cobra.Command{
		Use:   "activate",
		Short: "Activate a suspended process definition",
		RunE: func(c *cobra.Command, _ []string) error {
			return cli.e.ActivateProcessDefinition(context.Background(), cmd)
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Process definition ID")
	c.Flags().StringVar(&cmd.Key, "key", "", "Process definition key - all versions are activated")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", engine.DefaultTenantId, "Tenant, used in combination with a key")

	c.MarkFlagsOneRequired("id", "key")
	c.MarkFlagsMutuallyExclusive("id", "key")

	return &c
}

func newProcessGetLatestCmd(cli *Cli) *cobra.Command {
	var cmd engine.GetLatestProcessDefinitionCmd

	c := cobra.Command{
		Use:   "get-latest",
		Short: "Get the latest active version of a process definition",
		RunE: func(c *cobra.Command, _ []string) error {
			processDefinition, err := cli.e.GetLatestProcessDefinition(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatProcessDefinitions([]engine.ProcessDefinition{processDefinition}))
			return nil
		},
	}

	c.Flags().StringVar(&cmd.Key, "key", "", "Process definition key")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", engine.DefaultTenantId, "Tenant of the process definition")

	c.MarkFlagRequired("key")

	return &c
}

func newProcessQueryCmd(cli *Cli) *cobra.Command {
	var (
		tenantId string

		criteria engine.ProcessDefinitionCriteria
		options  engine.QueryOptions
	)

	c := cobra.Command{
		Use:   "query",
		Short: "Query process definitions",
		RunE: func(c *cobra.Command, _ []string) error {
			criteria.TenantId = tenantIdOrNil(c, tenantId)

			q := cli.e.CreateQuery()
			q.SetOptions(options)

			results, err := q.QueryProcessDefinitions(context.Background(), criteria)
			if err != nil {
				return err
			}

			c.Print(formatProcessDefinitions(results))
			return nil
		},
	}

	c.Flags().Int32Var(&criteria.Id, "id", 0, "Process definition ID")

	c.Flags().Int32Var(&criteria.DeploymentId, "deployment-id", 0, "Deployment ID")
	c.Flags().StringVar(&criteria.Key, "key", "", "Process definition key")

	flagTenantId(&c, &tenantId)
	flagQueryOptions(&c, &options)

	return &c
}

func newProcessSuspendCmd(cli *Cli) *cobra.Command {
	var cmd engine.SuspendProcessDefinitionCmd

	c := cobra.Command{
		Use:   "suspend",
		Short: "Suspend a process definition",
		RunE: func(c *cobra.Command, _ []string) error {
			return cli.e.SuspendProcessDefinition(context.Background(), cmd)
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Process definition ID")
	c.Flags().StringVar(&cmd.Key, "key", "", "Process definition key - all versions are suspended")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", engine.DefaultTenantId, "Tenant, used in combination with a key")

	c.MarkFlagsOneRequired("id", "key")
	c.MarkFlagsMutuallyExclusive("id", "key")

	return &c
}

func formatProcessDefinitions(processDefinitions []engine.ProcessDefinition) string {
	table := newTable([]string{
		"ID",
		"KEY",
		"VERSION",
		"NAME",
		"TENANT ID",
		"DEPLOYMENT ID",
		"SUSPENDED",
		"CREATED AT",
	})

	for _, processDefinition := range processDefinitions {
		table.addRow([]string{
			strconv.Itoa(int(processDefinition.Id)),
			processDefinition.Key,
			strconv.Itoa(int(processDefinition.Version)),
			processDefinition.Name,
			processDefinition.TenantId,
			strconv.Itoa(int(processDefinition.DeploymentId)),
			strconv.FormatBool(processDefinition.IsSuspended),
			formatTime(processDefinition.CreatedAt),
		})
	}

	return table.format()
}
