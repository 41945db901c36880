package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func newVariableCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "variable",
		Short:       "Get process instance variables",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newVariableGetCmd(cli))

	return &c
}

func newVariableGetCmd(cli *Cli) *cobra.Command {
	var cmd engine.GetVariablesCmd

	c := cobra.Command{
		Use:   "get",
		Short: "Get the variables of a process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			variables, err := cli.e.GetVariables(context.Background(), cmd)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(variables))
			for name := range variables {
				names = append(names, name)
			}

			slices.Sort(names)

			table := newTable([]string{
				"NAME",
				"VALUE",
			})

			for _, name := range names {
				b, err := json.Marshal(variables[name])
				if err != nil {
					return fmt.Errorf("failed to marshal variable %s: %v", name, err)
				}

				table.addRow([]string{
					name,
					string(b),
				})
			}

			c.Print(table.format())
			return nil
		},
	}

	c.Flags().Int32Var(&cmd.ProcessInstanceId, "process-instance-id", 0, "Process instance ID")

	c.MarkFlagRequired("process-instance-id")

	return &c
}
