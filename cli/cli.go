package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/mem"
	"github.com/gclaussn/go-bpmn-runtime/engine/pg"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	envLookupAllowed = "envLookupAllowed" // flag level annotation that allows an environment variable lookup
	envPrefix        = "GO_BPMN_"
	noEngineRequired = "noEngineRequired" // annotation, indicating that no engine is required to run the command
	program          = "go-bpmn"
)

func New(version string) *Cli {
	cli := Cli{version: version}

	cli.rootCmd = newRootCmd(&cli)

	return &cli
}

type Cli struct {
	version string

	rootCmd *cobra.Command

	e        engine.Engine
	workerId string
}

func (c *Cli) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func (c *Cli) help(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

func newRootCmd(cli *Cli) *cobra.Command {
	var (
		databaseUrl  string
		snapshotFile string
		timeout      time.Duration
		debugEnabled bool
	)

	c := cobra.Command{
		Use:   program,
		Short: "A command line interface, operating a go-bpmn engine",
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			c.SilenceUsage = true

			if _, ok := c.Annotations[noEngineRequired]; ok {
				return nil
			}

			if cli.e != nil {
				return nil // skip engine creation when testing
			}

			c.Flags().VisitAll(func(f *pflag.Flag) {
				if f.Changed {
					return
				}
				if _, ok := f.Annotations[envLookupAllowed]; !ok {
					return
				}

				// e.g. worker-id -> GO_BPMN_WORKER_ID
				key := envPrefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")

				if value, ok := os.LookupEnv(key); ok {
					f.Value.Set(value)
				}
			})

			logLevel := slog.LevelWarn
			if debugEnabled {
				logLevel = slog.LevelDebug
			}

			logger := slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: logLevel}))

			customize := func(o *engine.Options) {
				o.EngineId = cli.workerId
				o.JobExecutorEnabled = false
				o.Logger = logger

				if debugEnabled {
					o.EventDispatcher = engine.NewLogDispatcher(logger)
				}
			}

			var (
				e   engine.Engine
				err error
			)

			switch {
			case databaseUrl != "":
				e, err = pg.New(databaseUrl, func(o *pg.Options) {
					customize(&o.Common)
					o.Timeout = timeout
				})
				if err != nil {
					return fmt.Errorf("failed to create pg engine: %v", err)
				}
			case snapshotFile != "":
				e, err = mem.New(func(o *mem.Options) {
					customize(&o.Common)
					o.SnapshotFile = snapshotFile
				})
				if err != nil {
					return fmt.Errorf("failed to create mem engine: %v", err)
				}
			default:
				return fmt.Errorf(
					"no engine configured.\n\nfor pg:  use flag --database-url or environment variable %s\nfor mem: use flag --snapshot-file or environment variable %s\n ",
					envPrefix+"DATABASE_URL",
					envPrefix+"SNAPSHOT_FILE",
				)
			}

			cli.e = e
			return nil
		},
		RunE: cli.help,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cli.e != nil {
				cli.e.Shutdown()
			}
		},
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.PersistentFlags().StringVar(&databaseUrl, "database-url", "", "PostgreSQL database URL of a pg engine")
	c.PersistentFlags().StringVar(&snapshotFile, "snapshot-file", "", "bbolt snapshot file of a mem engine")
	c.PersistentFlags().StringVar(&cli.workerId, "worker-id", program, "Worker ID")
	c.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Time limit for database transactions of a pg engine")
	c.PersistentFlags().BoolVar(&debugEnabled, "debug", false, "Log engine events")

	c.PersistentFlags().SetAnnotation("database-url", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("snapshot-file", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("worker-id", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("timeout", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("debug", envLookupAllowed, nil)

	c.MarkPersistentFlagFilename("snapshot-file", ".db", ".bolt")

	c.AddCommand(newDeploymentCmd(cli))
	c.AddCommand(newEventCmd(cli))
	c.AddCommand(newExecutionCmd(cli))
	c.AddCommand(newJobCmd(cli))
	c.AddCommand(newProcessCmd(cli))
	c.AddCommand(newProcessInstanceCmd(cli))
	c.AddCommand(newVariableCmd(cli))
	c.AddCommand(newSetTimeCmd(cli))
	c.AddCommand(newVersionCmd(cli))

	return &c
}

func newSetTimeCmd(cli *Cli) *cobra.Command {
	var (
		timeV timeValue

		cmd engine.SetTimeCmd
	)

	c := cobra.Command{
		Use:   "set-time",
		Short: "Set the engine's time",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.Time = time.Time(timeV)

			return cli.e.SetTime(context.Background(), cmd)
		},
	}

	c.Flags().Var(&timeV, "time", "A future point in time")

	c.MarkFlagRequired("time")

	return &c
}

func newVersionCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(c *cobra.Command, _ []string) {
			c.Println(cli.version)
		},
		Annotations: map[string]string{noEngineRequired: ""},
	}

	return &c
}
