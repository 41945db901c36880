package pg

import (
	"strconv"
	"strings"
	"text/template"

	"github.com/gclaussn/go-bpmn-runtime/engine"
)

var (
	sqlTemplateFunctions = template.FuncMap{
		"joinInt32":   joinInt32,
		"joinJobType": joinJobType,
		"quoteString": quoteString,
	}

	sqlDeploymentQuery        *template.Template = newSqlTemplate("deployment_query.sql")
	sqlEventSubscriptionQuery *template.Template = newSqlTemplate("event_subscription_query.sql")
	sqlExecutionQuery         *template.Template = newSqlTemplate("execution_query.sql")
	sqlJobLock                *template.Template = newSqlTemplate("job_lock.sql")
	sqlJobQuery               *template.Template = newSqlTemplate("job_query.sql")
	sqlJobUnlock              *template.Template = newSqlTemplate("job_unlock.sql")
	sqlProcessDefinitionQuery *template.Template = newSqlTemplate("process_definition_query.sql")
)

func newSqlTemplate(name string) *template.Template {
	return template.Must(template.New(name).Funcs(sqlTemplateFunctions).ParseFS(resources, "sql/"+name))
}

func joinInt32(values []int32) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = strconv.Itoa(int(v))
	}
	return strings.Join(s, ",")
}

func joinJobType(values []engine.JobType) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = quoteString(v.String())
	}
	return strings.Join(s, ",")
}

// copied from https://github.com/jackc/pgx/blob/v5.5.0/internal/sanitize/sanitize.go#L90
func quoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
