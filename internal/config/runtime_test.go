package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		FileEnv, "HTTP_ADDR", "ENDPOINT_CACHE_MAX_ITEMS", "PIPELINE_MAX_STEPS", "PIPELINE_OBS_BUFFER",
		"PIPELINE_EXEC_TIMEOUT", "PIPELINE_WITH_ANALYSIS", "PIPELINE_GRAPH_FILE", "CORRELATION_WINDOW",
		"CORRELATION_FILTER", "EXECUTOR_BASE_URL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	rt, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), rt)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ENDPOINT_CACHE_MAX_ITEMS", "10")
	t.Setenv("PIPELINE_EXEC_TIMEOUT", "2s")
	t.Setenv("PIPELINE_WITH_ANALYSIS", "false")
	t.Setenv("CORRELATION_WINDOW", "750ms")
	t.Setenv("CORRELATION_FILTER", `request_type == "xhr"`)

	rt, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", rt.HTTPAddr)
	assert.Equal(t, 10, rt.CacheMaxItems)
	assert.Equal(t, 2*time.Second, rt.ExecTimeout)
	assert.False(t, rt.WithAnalysis)
	assert.Equal(t, 750*time.Millisecond, rt.CorrelationWindow)
	assert.Equal(t, `request_type == "xhr"`, rt.CorrelationFilter)
}

func TestLoad_MalformedEnvKeepsFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIPELINE_MAX_STEPS", "0")
	t.Setenv("PIPELINE_OBS_BUFFER", "lots")
	t.Setenv("PIPELINE_EXEC_TIMEOUT", "soon")
	t.Setenv("PIPELINE_WITH_ANALYSIS", "maybe")

	rt, err := Load()
	require.NoError(t, err)
	d := Defaults()
	assert.Equal(t, d.MaxSteps, rt.MaxSteps)
	assert.Equal(t, d.ObsBuffer, rt.ObsBuffer)
	assert.Equal(t, d.ExecTimeout, rt.ExecTimeout)
	assert.Equal(t, d.WithAnalysis, rt.WithAnalysis)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":7000"
pipeline_max_steps: 12
pipeline_exec_timeout: 5s
correlation_window: 1s
executor_base_url: https://shop.test
`), 0o600))

	clearEnv(t)
	t.Setenv(FileEnv, path)
	t.Setenv("PIPELINE_MAX_STEPS", "20")

	rt, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", rt.HTTPAddr)
	assert.Equal(t, 20, rt.MaxSteps)
	assert.Equal(t, 5*time.Second, rt.ExecTimeout)
	assert.Equal(t, time.Second, rt.CorrelationWindow)
	assert.Equal(t, "https://shop.test", rt.ExecutorBaseURL)
	assert.Equal(t, Defaults().CacheMaxItems, rt.CacheMaxItems)
}

func TestLoad_FileRejectsOutOfRangeValues(t *testing.T) {
	cases := map[string]string{
		"cache":   "endpoint_cache_max_items: -1",
		"steps":   "pipeline_max_steps: -5",
		"buffer":  "pipeline_obs_buffer: 0",
		"timeout": "pipeline_exec_timeout: -1s",
		"window":  "correlation_window: -250ms",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			clearEnv(t)
			t.Setenv(FileEnv, path)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: [unclosed"), 0o600))

	t.Setenv(FileEnv, path)
	_, err := Load()
	assert.Error(t, err)

	t.Setenv(FileEnv, filepath.Join(dir, "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestGraphDOT(t *testing.T) {
	dot, err := Runtime{}.GraphDOT()
	require.NoError(t, err)
	assert.Empty(t, dot)

	path := filepath.Join(t.TempDir(), "g.dot")
	require.NoError(t, os.WriteFile(path, []byte("digraph P { start }"), 0o600))
	dot, err = Runtime{GraphFile: path}.GraphDOT()
	require.NoError(t, err)
	assert.Equal(t, "digraph P { start }", dot)
}
