package daemon

import (
	"errors"
	"flag"
	"log"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/gclaussn/go-bpmn-runtime/engine/pg"
)

func RunPg(args []string) int {
	engineOptions := pg.NewOptions()
	engineOptions.Common.JobExecutorEnabled = true

	metricsOptions := newMetricsOptions()

	conf := newConf()

	pgDatabaseUrl := conf.addOption("PG_DATABASE_URL", "format: postgres://<username>:<password>@<host>:<port>/<database>?search_path=<schema>")
	pgDatabaseUrl.required = true

	pgTimeout := conf.addOption("PG_TIMEOUT", "time limit for database transactions")
	pgTimeout.defaultValue = engineOptions.Timeout.String()

	conf.setEngineOptions(engineOptions.Common)
	conf.setMetricsOptions(metricsOptions)

	flags := flag.NewFlagSet("go-bpmn-pgd", flag.ContinueOnError)
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

	if pgDatabaseUrl.value() == "" {
		pgDatabaseUrl.err = errors.New("is empty")
	}

	timeout, err := time.ParseDuration(pgTimeout.value())
	if err != nil {
		pgTimeout.err = err
	}

	if code := listConfErrors(conf); code != 0 {
		return code
	}

	registry := newRegistry()

	engineStartTime := time.Now()

	e, err := pg.New(pgDatabaseUrl.value(), func(o *pg.Options) {
		*o = engineOptions

		o.Timeout = timeout

		o.Common.EventDispatcher = engine.NewLogDispatcher(o.Common.Logger)
		o.Common.Registerer = registry
		o.Common.OnJobExecutionFailure = func(job engine.Job, err error) {
			log.Printf("failed to execute job %s: %v", job, err)
		}
	})
	if err != nil {
		log.Printf("failed to create pg engine: %v", err)
		return 1
	}

	log.Printf("pg engine started in %dms", time.Since(engineStartTime).Milliseconds())

	return serve(e, metricsOptions, registry)
}
