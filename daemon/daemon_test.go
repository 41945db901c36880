package daemon

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/gclaussn/go-bpmn-runtime/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConf(t *testing.T) {
	assert := assert.New(t)

	t.Run("get engine options", func(t *testing.T) {
		conf := newConf()
		conf.opts[optEngineId].defaultValue = "engine-id"
		conf.opts[optJobExecutorEnabled].defaultValue = "true"
		conf.opts[optJobExecutorInterval].defaultValue = "30s"
		conf.opts[optJobExecutorLimit].defaultValue = "100"
		conf.opts[optJobExecutorWorkers].defaultValue = "8"
		conf.opts[optJobLockDuration].defaultValue = "1m"
		conf.opts[optJobRetries].defaultValue = "5"
		conf.opts[optJobRetryInterval].defaultValue = "15s"
		conf.opts[optLogLevel].defaultValue = "DEBUG"

		var options engine.Options
		conf.getEngineOptions(&options)

		assert.Equal("engine-id", options.EngineId)
		assert.True(options.JobExecutorEnabled)
		assert.Equal("30s", options.JobExecutorInterval.String())
		assert.Equal(100, options.JobExecutorLimit)
		assert.Equal(8, options.JobExecutorWorkers)
		assert.Equal("1m0s", options.JobLockDuration.String())
		assert.Equal(5, options.JobRetries)
		assert.Equal("15s", options.JobRetryInterval.String())
		assert.NotNil(options.Logger)

		assert.Equal(0, listConfErrors(conf))
	})

	t.Run("get engine options when values are invalid", func(t *testing.T) {
		conf := newConf()
		conf.opts[optEngineId].defaultValue = ""
		conf.opts[optJobExecutorEnabled].defaultValue = "invalid-job-executor-enabled"
		conf.opts[optJobExecutorInterval].defaultValue = "invalid-job-executor-interval"
		conf.opts[optJobExecutorLimit].defaultValue = "invalid-job-executor-limit"
		conf.opts[optJobRetries].defaultValue = "invalid-job-retries"
		conf.opts[optLogLevel].defaultValue = "invalid-log-level"

		conf.getEngineOptions(&engine.Options{})

		assert.NotNil(conf.opts[optEngineId].err)
		assert.NotNil(conf.opts[optJobExecutorEnabled].err)
		assert.NotNil(conf.opts[optJobExecutorInterval].err)
		assert.NotNil(conf.opts[optJobExecutorLimit].err)
		assert.NotNil(conf.opts[optJobRetries].err)
		assert.NotNil(conf.opts[optLogLevel].err)

		buffer := bytes.NewBufferString("")
		log.SetOutput(buffer)

		assert.Equal(1, listConfErrors(conf))

		assert.Contains(buffer.String(), "GO_BPMN_ENGINE_ID: ")
		assert.Contains(buffer.String(), "GO_BPMN_JOB_EXECUTOR_ENABLED=invalid-job-executor-enabled: ")
		assert.Contains(buffer.String(), "GO_BPMN_JOB_EXECUTOR_INTERVAL=invalid-job-executor-interval: ")
		assert.Contains(buffer.String(), "GO_BPMN_JOB_EXECUTOR_LIMIT=invalid-job-executor-limit: ")
		assert.Contains(buffer.String(), "GO_BPMN_JOB_RETRIES=invalid-job-retries: ")
		assert.Contains(buffer.String(), "GO_BPMN_LOG_LEVEL=invalid-log-level: ")
	})

	t.Run("get metrics options", func(t *testing.T) {
		conf := newConf()
		conf.opts[optMetricsBindAddress].defaultValue = "192.168.0.10:9100"
		conf.opts[optMetricsEnabled].defaultValue = "false"

		var options metricsOptions
		conf.getMetricsOptions(&options)

		assert.Equal("192.168.0.10:9100", options.BindAddress)
		assert.False(options.Enabled)

		assert.Equal(0, listConfErrors(conf))
	})

	t.Run("get metrics options when values are invalid", func(t *testing.T) {
		conf := newConf()
		conf.opts[optMetricsBindAddress].defaultValue = ""
		conf.opts[optMetricsEnabled].defaultValue = "invalid"

		conf.getMetricsOptions(&metricsOptions{})

		assert.NotNil(conf.opts[optMetricsBindAddress].err)
		assert.NotNil(conf.opts[optMetricsEnabled].err)

		buffer := bytes.NewBufferString("")
		log.SetOutput(buffer)

		assert.Equal(1, listConfErrors(conf))

		assert.Contains(buffer.String(), "GO_BPMN_METRICS_BIND_ADDRESS: ")
		assert.Contains(buffer.String(), "GO_BPMN_METRICS_ENABLED=invalid: ")
	})
}

func TestConfigFile(t *testing.T) {
	assert := assert.New(t)

	mustWriteConfigFile := func(t *testing.T, content string) string {
		f, err := os.CreateTemp("", "config-*.yaml")
		if err != nil {
			t.Fatalf("failed to create temporary file: %v", err)
		}

		defer f.Close()

		if _, err := f.WriteString(content); err != nil {
			t.Fatalf("failed to write temporary file: %v", err)
		}

		t.Cleanup(func() { os.Remove(f.Name()) })
		return f.Name()
	}

	t.Run("set", func(t *testing.T) {
		fileName := mustWriteConfigFile(t, "engine_id: yaml-engine\nGO_BPMN_JOB_RETRIES: 7\nJOB_EXECUTOR_ENABLED: false\n")

		env := env{}
		require.NoError(t, configFile{env}.Set(fileName))

		assert.Equal("yaml-engine", env["GO_BPMN_ENGINE_ID"])
		assert.Equal("7", env["GO_BPMN_JOB_RETRIES"])
		assert.Equal("false", env["GO_BPMN_JOB_EXECUTOR_ENABLED"])
	})

	t.Run("env takes precedence", func(t *testing.T) {
		fileName := mustWriteConfigFile(t, "ENGINE_ID: yaml-engine\n")

		env := env{"GO_BPMN_ENGINE_ID": "env-engine"}
		require.NoError(t, configFile{env}.Set(fileName))

		assert.Equal("env-engine", env["GO_BPMN_ENGINE_ID"])
	})

	t.Run("returns error when value is not scalar", func(t *testing.T) {
		fileName := mustWriteConfigFile(t, "ENGINE_ID:\n  nested: x\n")

		err := configFile{env{}}.Set(fileName)
		assert.ErrorContains(err, "must have a scalar value")
	})

	t.Run("returns error when YAML is invalid", func(t *testing.T) {
		fileName := mustWriteConfigFile(t, "ENGINE_ID: [")

		err := configFile{env{}}.Set(fileName)
		assert.ErrorContains(err, "failed to parse YAML")
	})

	t.Run("returns error when file not exists", func(t *testing.T) {
		err := configFile{env{}}.Set("/tmp/go-bpmn/not-existing.yaml")
		assert.Error(err)
	})
}
