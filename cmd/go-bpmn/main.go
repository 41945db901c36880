/*
go-bpmn is a CLI, operating a process engine directly on its PostgreSQL database or bbolt snapshot file.

Usage:

	go-bpmn [flags]
	go-bpmn [command]

Available Commands:

	completion       Generate the autocompletion script for the specified shell
	deployment       Manage and query deployments
	event            Send events and query event subscriptions
	execution        Query executions
	help             Help about any command
	job              Manage and query jobs
	process          Manage and query process definitions
	process-instance Manage and query process instances
	set-time         Set the engine's time
	variable         Get process instance variables
	version          Show version

Flags:

	    --database-url string    PostgreSQL database URL of a pg engine
	    --debug                  Log engine events
	-h, --help                   help for go-bpmn
	    --snapshot-file string   bbolt snapshot file of a mem engine
	    --timeout duration       Time limit for database transactions of a pg engine (default 30s)
	    --worker-id string       Worker ID (default "go-bpmn")

Use "go-bpmn [command] --help" for more information about a command.
*/
package main

import (
	"os"

	"github.com/gclaussn/go-bpmn-runtime/cli"
)

var (
	version = "unknown-version"
)

func main() {
	cli := cli.New(version)
	os.Exit(cli.Execute())
}
