package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "GO_BPMN_"

	optEngineId            = "ENGINE_ID"
	optJobExecutorEnabled  = "JOB_EXECUTOR_ENABLED"
	optJobExecutorInterval = "JOB_EXECUTOR_INTERVAL"
	optJobExecutorLimit    = "JOB_EXECUTOR_LIMIT"
	optJobExecutorWorkers  = "JOB_EXECUTOR_WORKERS"
	optJobLockDuration     = "JOB_LOCK_DURATION"
	optJobRetries          = "JOB_RETRIES"
	optJobRetryInterval    = "JOB_RETRY_INTERVAL"
	optLogLevel            = "LOG_LEVEL"

	optMetricsBindAddress = "METRICS_BIND_ADDRESS"
	optMetricsEnabled     = "METRICS_ENABLED"
)

var (
	version = "unknown-version"
)

// metricsOptions configure the HTTP endpoint, which exposes the engine's Prometheus metrics.
type metricsOptions struct {
	BindAddress string
	Enabled     bool
}

func newMetricsOptions() metricsOptions {
	return metricsOptions{
		BindAddress: "127.0.0.1:9090",
		Enabled:     true,
	}
}

func newConf() *conf {
	env := env{}
	for _, value := range os.Environ() {
		env.Set(value)
	}

	conf := conf{
		configFile: configFile{env},
		envFile:    envFile{env},
		opts:       make(map[string]*confOpt),
	}

	conf.addEngineOption(
		optEngineId,
		"ID of the engine",
		func(o engine.Options) string {
			return o.EngineId
		},
		func(o *engine.Options, co *confOpt) error {
			engineId := co.value()
			if engineId == "" {
				return errors.New("is empty")
			}

			o.EngineId = engineId
			return nil
		},
	)
	conf.addEngineOption(
		optJobExecutorEnabled,
		"enable or disable the engine's job executor",
		func(o engine.Options) string {
			return strconv.FormatBool(o.JobExecutorEnabled)
		},
		func(o *engine.Options, co *confOpt) error {
			jobExecutorEnabled, err := strconv.ParseBool(co.value())
			o.JobExecutorEnabled = jobExecutorEnabled
			return err
		},
	)
	conf.addEngineOption(
		optJobExecutorInterval,
		"interval between the execution of due jobs",
		func(o engine.Options) string {
			return o.JobExecutorInterval.String()
		},
		func(o *engine.Options, co *confOpt) error {
			jobExecutorInterval, err := time.ParseDuration(co.value())
			o.JobExecutorInterval = jobExecutorInterval
			return err
		},
	)
	conf.addEngineOption(
		optJobExecutorLimit,
		"maximum number of due jobs to lock and execute at once",
		func(o engine.Options) string {
			return strconv.Itoa(o.JobExecutorLimit)
		},
		func(o *engine.Options, co *confOpt) error {
			jobExecutorLimit, err := strconv.ParseInt(co.value(), 10, 32)
			o.JobExecutorLimit = int(jobExecutorLimit)
			return err
		},
	)
	conf.addEngineOption(
		optJobExecutorWorkers,
		"maximum number of jobs, executed concurrently",
		func(o engine.Options) string {
			return strconv.Itoa(o.JobExecutorWorkers)
		},
		func(o *engine.Options, co *confOpt) error {
			jobExecutorWorkers, err := strconv.ParseInt(co.value(), 10, 32)
			o.JobExecutorWorkers = int(jobExecutorWorkers)
			return err
		},
	)
	conf.addEngineOption(
		optJobLockDuration,
		"duration of a job lock, after which another worker may lock the job",
		func(o engine.Options) string {
			return o.JobLockDuration.String()
		},
		func(o *engine.Options, co *confOpt) error {
			jobLockDuration, err := time.ParseDuration(co.value())
			o.JobLockDuration = jobLockDuration
			return err
		},
	)
	conf.addEngineOption(
		optJobRetries,
		"number of retries of a new job",
		func(o engine.Options) string {
			return strconv.Itoa(o.JobRetries)
		},
		func(o *engine.Options, co *confOpt) error {
			jobRetries, err := strconv.ParseInt(co.value(), 10, 32)
			o.JobRetries = int(jobRetries)
			return err
		},
	)
	conf.addEngineOption(
		optJobRetryInterval,
		"delay between a failed job execution and its retry",
		func(o engine.Options) string {
			return o.JobRetryInterval.String()
		},
		func(o *engine.Options, co *confOpt) error {
			jobRetryInterval, err := time.ParseDuration(co.value())
			o.JobRetryInterval = jobRetryInterval
			return err
		},
	)
	conf.addEngineOption(
		optLogLevel,
		"minimum level of engine log records: DEBUG, INFO, WARN or ERROR",
		func(o engine.Options) string {
			return slog.LevelInfo.String()
		},
		func(o *engine.Options, co *confOpt) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(co.value())); err != nil {
				return err
			}

			o.Logger = slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	)

	conf.addMetricsOption(
		optMetricsBindAddress,
		"TCP address of the Prometheus metrics endpoint to listen on",
		func(o metricsOptions) string {
			return o.BindAddress
		},
		func(o *metricsOptions, co *confOpt) error {
			bindAddress := co.value()
			if bindAddress == "" {
				return errors.New("is empty")
			}

			o.BindAddress = bindAddress
			return nil
		},
	)
	conf.addMetricsOption(
		optMetricsEnabled,
		"enable or disable the Prometheus metrics endpoint",
		func(o metricsOptions) string {
			return strconv.FormatBool(o.Enabled)
		},
		func(o *metricsOptions, co *confOpt) error {
			enabled, err := strconv.ParseBool(co.value())
			o.Enabled = enabled
			return err
		},
	)

	return &conf
}

func listConf(conf *conf) int {
	opts := conf.sortedOpts()

	log.SetFlags(0)
	for _, opt := range opts {
		log.Printf("%s=%s", opt.key, opt.value())
	}

	return 0
}

func listConfErrors(conf *conf) int {
	var opts []*confOpt

	for _, opt := range conf.sortedOpts() {
		if opt.err != nil {
			opts = append(opts, opt)
		}
	}

	if len(opts) == 0 {
		return 0
	}

	log.SetFlags(0)
	for _, opt := range opts {
		value := opt.value()
		if value == "" {
			log.Printf("%s: %v", opt.key, opt.err)
		} else {
			log.Printf("%s=%s: %v", opt.key, value, opt.err)
		}
	}

	return 1
}

func listConfOpts(conf *conf) int {
	opts := conf.sortedOpts()

	maxKeyLength := 0
	for _, opt := range opts {
		keyLength := len(opt.key)
		if opt.required {
			keyLength++
		}

		if keyLength > maxKeyLength {
			maxKeyLength = keyLength
		}
	}

	var sb strings.Builder
	for _, opt := range opts {
		sb.WriteString(opt.key)

		l := len(opt.key)
		if opt.required {
			sb.WriteRune('*')
			l++
		}

		sb.WriteString(strings.Repeat(" ", maxKeyLength-l))
		sb.WriteString("   ")
		sb.WriteString(opt.description)

		if opt.defaultValue != "" {
			sb.WriteString(fmt.Sprintf(" - default: %s", opt.defaultValue))
		}

		sb.WriteRune('\n')
	}

	log.SetFlags(0)
	log.Print(sb.String())

	return 0
}

// serve exposes the metrics of a running engine, until the process receives SIGINT or SIGTERM.
func serve(e engine.Engine, options metricsOptions, registry *prometheus.Registry) int {
	var server *http.Server
	if options.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

		server = &http.Server{
			Addr:              options.BindAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Printf("metrics server listening on %s", options.BindAddress)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server failed: %v", err)
			}
		}()
	}

	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGTERM)

	<-signalC

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("failed to shut down metrics server: %v", err)
		} else {
			log.Println("metrics server shut down")
		}
	}

	e.Shutdown()
	log.Println("engine shut down")

	return 0
}

// newRegistry returns a registry, which collects Go runtime and process metrics besides the engine metrics.
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func showVersion() int {
	log.Println(version)
	return 0
}

type conf struct {
	configFile configFile
	envFile    envFile
	opts       map[string]*confOpt
}

func (c *conf) addEngineOption(
	key string,
	description string,
	getOption func(engine.Options) string,
	setOption func(*engine.Options, *confOpt) error,
) *confOpt {
	co := confOpt{
		env:         c.envFile.env,
		key:         envPrefix + key,
		description: description,

		getEngineOption: getOption,
		setEngineOption: setOption,
	}

	c.opts[key] = &co
	return &co
}

func (c *conf) addMetricsOption(
	key string,
	description string,
	getOption func(metricsOptions) string,
	setOption func(*metricsOptions, *confOpt) error,
) *confOpt {
	co := confOpt{
		env:         c.envFile.env,
		key:         envPrefix + key,
		description: description,

		getMetricsOption: getOption,
		setMetricsOption: setOption,
	}

	c.opts[key] = &co
	return &co
}

func (c *conf) addOption(key string, description string) *confOpt {
	co := confOpt{
		env:         c.envFile.env,
		key:         envPrefix + key,
		description: description,
	}

	c.opts[key] = &co
	return &co
}

func (c *conf) getEngineOptions(options *engine.Options) {
	for _, opt := range c.opts {
		if opt.setEngineOption != nil {
			if err := opt.setEngineOption(options, opt); err != nil {
				opt.err = err
			}
		}
	}
}

func (c *conf) getMetricsOptions(options *metricsOptions) {
	for _, opt := range c.opts {
		if opt.setMetricsOption != nil {
			if err := opt.setMetricsOption(options, opt); err != nil {
				opt.err = err
			}
		}
	}
}

func (c *conf) setEngineOptions(options engine.Options) {
	for _, opt := range c.opts {
		if opt.getEngineOption != nil {
			opt.defaultValue = opt.getEngineOption(options)
		}
	}
}

func (c *conf) setMetricsOptions(options metricsOptions) {
	for _, opt := range c.opts {
		if opt.getMetricsOption != nil {
			opt.defaultValue = opt.getMetricsOption(options)
		}
	}
}

func (c *conf) sortedOpts() []*confOpt {
	opts := make([]*confOpt, 0, len(c.opts))
	for _, opt := range c.opts {
		opts = append(opts, opt)
	}

	slices.SortFunc(opts, func(a *confOpt, b *confOpt) int {
		return strings.Compare(a.key, b.key)
	})

	return opts
}

type confOpt struct {
	env env

	key          string
	description  string
	required     bool
	defaultValue string

	getEngineOption  func(engine.Options) string
	getMetricsOption func(metricsOptions) string
	setEngineOption  func(*engine.Options, *confOpt) error
	setMetricsOption func(*metricsOptions, *confOpt) error

	err error
}

func (o *confOpt) value() string {
	value := o.env[o.key]
	if value != "" {
		return value
	} else {
		return o.defaultValue
	}
}

// configFile reads configuration options from a flat YAML document.
// Keys are option names with or without the GO_BPMN_ prefix. Environment variables take precedence.
type configFile struct {
	env env
}

func (v configFile) Set(value string) error {
	b, err := os.ReadFile(value)
	if err != nil {
		return err
	}

	var values map[string]any
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}

	for name, value := range values {
		key := strings.ToUpper(name)
		if !strings.HasPrefix(key, envPrefix) {
			key = envPrefix + key
		}

		switch value.(type) {
		case map[string]any, []any:
			return fmt.Errorf("option %s must have a scalar value", name)
		}

		if _, ok := v.env[key]; ok {
			continue
		}
		if value == nil {
			v.env[key] = ""
		} else {
			v.env[key] = fmt.Sprint(value)
		}
	}

	return nil
}

func (v configFile) String() string {
	return "<file>"
}

type env map[string]string

func (v env) Set(value string) error {
	s := strings.SplitN(value, "=", 2)
	if len(s) != 2 {
		return fmt.Errorf("required format %s", v)
	}
	v[s[0]] = s[1]
	return nil
}

func (v env) String() string {
	return "<key>=<value>"
}

type envFile struct {
	env env
}

func (v envFile) Set(value string) error {
	file, err := os.Open(value)
	if err != nil {
		return err
	}

	defer file.Close()

	scanner := bufio.NewScanner(file)

	i := 0
	for scanner.Scan() {
		i++
		line := scanner.Text()
		if err := v.env.Set(line); err != nil {
			return fmt.Errorf("wrong format in line %d: required format %s", i, v.env)
		}
	}

	return nil
}

func (v envFile) String() string {
	return "<file>"
}
