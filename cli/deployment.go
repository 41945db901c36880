package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func newDeploymentCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "deployment",
		Short:       "Manage and query deployments",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newDeploymentCreateCmd(cli))
	c.AddCommand(newDeploymentDeleteCmd(cli))
	c.AddCommand(newDeploymentSetTenantCmd(cli))
	c.AddCommand(newDeploymentQueryCmd(cli))

	return &c
}

func newDeploymentCreateCmd(cli *Cli) *cobra.Command {
	var (
		bpmnFileName string

		cmd engine.DeployCmd
	)

	c := cobra.Command{
		Use:   "create",
		Short: "Deploy the executable processes of a BPMN file",
		RunE: func(c *cobra.Command, _ []string) error {
			bpmnXml, err := os.ReadFile(bpmnFileName)
			if err != nil {
				return fmt.Errorf("failed to read BPMN file %s: %v", bpmnFileName, err)
			}

			if cmd.Name == "" {
				cmd.Name = filepath.Base(bpmnFileName)
			}

			cmd.BpmnXml = string(bpmnXml)

			deployment, err := cli.e.Deploy(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Println(deployment.Id)
			c.Print(formatProcessDefinitions(deployment.ProcessDefinitions))
			return nil
		},
	}

	c.Flags().StringVar(&bpmnFileName, "bpmn-file", "", "Path to a BPMN XML file")

	c.Flags().StringVar(&cmd.Name, "name", "", "Deployment name - defaults to the BPMN file name")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", engine.DefaultTenantId, "Tenant of the deployment")

	c.MarkFlagRequired("bpmn-file")

	c.MarkFlagFilename("bpmn-file", ".bpmn", ".bpmn20.xml", ".xml")

	return &c
}

func newDeploymentDeleteCmd(cli *Cli) *cobra.Command {
	var cmd engine.DeleteDeploymentCmd

	c := cobra.Command{
		Use:   "delete",
		Short: "Delete a deployment",
		RunE: func(c *cobra.Command, _ []string) error {
			return cli.e.DeleteDeployment(context.Background(), cmd)
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Deployment ID")

	c.Flags().BoolVar(&cmd.Cascade, "cascade", false, "Delete running process instances as well")

	c.MarkFlagRequired("id")

	return &c
}

func newDeploymentSetTenantCmd(cli *Cli) *cobra.Command {
	var cmd engine.SetDeploymentTenantCmd

	c := cobra.Command{
		Use:   "set-tenant",
		Short: "Migrate a deployment and its process instances to another tenant",
		RunE: func(c *cobra.Command, _ []string) error {
			return cli.e.SetDeploymentTenant(context.Background(), cmd)
		},
	}

	c.Flags().Int32Var(&cmd.Id, "id", 0, "Deployment ID")

	c.Flags().StringVar(&cmd.TenantId, "tenant-id", "", "New tenant")

	c.MarkFlagRequired("id")
	c.MarkFlagRequired("tenant-id")

	return &c
}

func newDeploymentQueryCmd(cli *Cli) *cobra.Command {
	var (
		tenantId string

		criteria engine.DeploymentCriteria
		options  engine.QueryOptions
	)

	c := cobra.Command{
		Use:   "query",
		Short: "Query deployments",
		RunE: func(c *cobra.Command, _ []string) error {
			criteria.TenantId = tenantIdOrNil(c, tenantId)

			q := cli.e.CreateQuery()
			q.SetOptions(options)

			results, err := q.QueryDeployments(context.Background(), criteria)
			if err != nil {
				return err
			}

			table := newTable([]string{
				"ID",
				"NAME",
				"TENANT ID",
				"PROCESS DEFINITIONS",
				"DEPLOYED AT",
			})

			for _, result := range results {
				table.addRow([]string{
					strconv.Itoa(int(result.Id)),
					result.Name,
					result.TenantId,
					strconv.Itoa(len(result.ProcessDefinitions)),
					formatTime(result.DeployedAt),
				})
			}

			c.Print(table.format())
			return nil
		},
	}

	c.Flags().Int32Var(&criteria.Id, "id", 0, "Deployment ID")

	flagTenantId(&c, &tenantId)
	flagQueryOptions(&c, &options)

	return &c
}
