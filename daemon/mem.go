package daemon

import (
	"flag"
	"log"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/mem"
)

func RunMem(args []string) int {
	engineOptions := mem.NewOptions()
	engineOptions.Common.JobExecutorEnabled = true

	metricsOptions := newMetricsOptions()

	conf := newConf()

	snapshotFile := conf.addOption("SNAPSHOT_FILE", "optional bbolt file, the engine's state is loaded from and written to")

	conf.setEngineOptions(engineOptions.Common)
	conf.setMetricsOptions(metricsOptions)

	flags := flag.NewFlagSet("go-bpmn-memd", flag.ContinueOnError)
	flags.SetOutput(log.Writer())

	flags.Var(&conf.configFile, "config", "read in a YAML file of configuration options")
	flags.Var(&conf.envFile.env, "env", "set environment variables")
	flags.Var(&conf.envFile, "env-file", "read in a file of environment variables")

	var doListConfOpts bool
	flags.BoolVar(&doListConfOpts, "list-conf-opts", false, "list configuration options")
	var doListConf bool
	flags.BoolVar(&doListConf, "list-conf", false, "list configuration")
	var doVersion bool
	flags.BoolVar(&doVersion, "version", false, "show version")

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		} else {
			return 1
		}
	}

	if doListConfOpts {
		return listConfOpts(conf)
	}
	if doListConf {
		return listConf(conf)
	}
	if doVersion {
		return showVersion()
	}

	conf.getEngineOptions(&engineOptions.Common)
	conf.getMetricsOptions(&metricsOptions)

	if code := listConfErrors(conf); code != 0 {
		return code
	}

	registry := newRegistry()

	e, err := mem.New(func(o *mem.Options) {
		*o = engineOptions

		o.SnapshotFile = snapshotFile.value()

		o.Common.EventDispatcher = engine.NewLogDispatcher(o.Common.Logger)
		o.Common.Registerer = registry
		o.Common.OnJobExecutionFailure = func(job engine.Job, err error) {
			log.Printf("failed to execute job %s: %v", job, err)
		}
	})
	if err != nil {
		log.Printf("failed to create mem engine: %v", err)
		return 1
	}

	return serve(e, metricsOptions, registry)
}
