package cli

import (
	"encoding/json"
	"fmt"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/spf13/cobra"
)

func flagQueryOptions(c *cobra.Command, options *engine.QueryOptions) {
	c.Flags().IntVar(&options.Limit, "limit", 100, "")
	c.Flags().IntVar(&options.Offset, "offset", 0, "")
}

// flagTenantId adds a tenant filter, which is only applied when the flag is set. The empty string selects the default tenant.
func flagTenantId(c *cobra.Command, tenantId *string) {
	c.Flags().StringVar(tenantId, "tenant-id", "", "Tenant filter")
}

func tenantIdOrNil(c *cobra.Command, tenantId string) *string {
	if !c.Flags().Changed("tenant-id") {
		return nil
	}
	return &tenantId
}

// mapVariables maps variable flags to variables. A value is parsed as JSON, while an empty value or null deletes the variable.
func mapVariables(valueMap map[string]string) (map[string]any, error) {
	if len(valueMap) == 0 {
		return nil, nil
	}

	variables := make(map[string]any, len(valueMap))
	for name, valueJson := range valueMap {
		if valueJson == "" || valueJson == "null" {
			variables[name] = nil
			continue
		}

		var value any
		if err := json.Unmarshal([]byte(valueJson), &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variable %s: %v", name, err)
		}
		variables[name] = value
	}

	return variables, nil
}

