package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names an optional YAML file loaded before environment overrides.
const FileEnv = "API_SURFACE_CONFIG"

type Runtime struct {
	HTTPAddr          string        `yaml:"http_addr"`
	CacheMaxItems     int           `yaml:"endpoint_cache_max_items"`
	MaxSteps          int           `yaml:"pipeline_max_steps"`
	ObsBuffer         int           `yaml:"pipeline_obs_buffer"`
	ExecTimeout       time.Duration `yaml:"pipeline_exec_timeout"`
	WithAnalysis      bool          `yaml:"pipeline_with_analysis"`
	GraphFile         string        `yaml:"pipeline_graph_file"`
	CorrelationWindow time.Duration `yaml:"correlation_window"`
	CorrelationFilter string        `yaml:"correlation_filter"`
	ExecutorBaseURL   string        `yaml:"executor_base_url"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
}

func Defaults() Runtime {
	return Runtime{
		HTTPAddr:        ":8080",
		CacheMaxItems:   1024,
		MaxSteps:        100,
		ObsBuffer:       4096,
		ExecTimeout:     30 * time.Second,
		WithAnalysis:    true,
		ExecutorBaseURL: "https://example.com",
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load starts from Defaults, applies the YAML file named by FileEnv when set,
// then environment variables. Malformed env values keep the previous value.
func Load() (Runtime, error) {
	rt := Defaults()

	if path := os.Getenv(FileEnv); path != "" {
		if err := rt.loadFile(path); err != nil {
			return Runtime{}, err
		}
	}

	rt.HTTPAddr = getenv("HTTP_ADDR", rt.HTTPAddr)
	rt.CacheMaxItems = getenvInt("ENDPOINT_CACHE_MAX_ITEMS", rt.CacheMaxItems, 1)
	rt.MaxSteps = getenvInt("PIPELINE_MAX_STEPS", rt.MaxSteps, 1)
	rt.ObsBuffer = getenvInt("PIPELINE_OBS_BUFFER", rt.ObsBuffer, 1)
	rt.ExecTimeout = getenvDuration("PIPELINE_EXEC_TIMEOUT", rt.ExecTimeout)
	rt.WithAnalysis = getenvBool("PIPELINE_WITH_ANALYSIS", rt.WithAnalysis)
	rt.GraphFile = getenv("PIPELINE_GRAPH_FILE", rt.GraphFile)
	rt.CorrelationWindow = getenvDuration("CORRELATION_WINDOW", rt.CorrelationWindow)
	rt.CorrelationFilter = getenv("CORRELATION_FILTER", rt.CorrelationFilter)
	rt.ExecutorBaseURL = getenv("EXECUTOR_BASE_URL", rt.ExecutorBaseURL)
	rt.LogLevel = getenv("LOG_LEVEL", rt.LogLevel)
	rt.LogFormat = getenv("LOG_FORMAT", rt.LogFormat)

	return rt, nil
}

func (rt *Runtime) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, rt); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := rt.validate(); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// validate applies the same lower bounds the env helpers enforce.
func (rt Runtime) validate() error {
	for _, f := range []struct {
		key string
		v   int
	}{
		{"endpoint_cache_max_items", rt.CacheMaxItems},
		{"pipeline_max_steps", rt.MaxSteps},
		{"pipeline_obs_buffer", rt.ObsBuffer},
	} {
		if f.v < 1 {
			return fmt.Errorf("%s must be >= 1, got %d", f.key, f.v)
		}
	}
	if rt.ExecTimeout < 0 {
		return fmt.Errorf("pipeline_exec_timeout must not be negative, got %s", rt.ExecTimeout)
	}
	if rt.CorrelationWindow < 0 {
		return fmt.Errorf("correlation_window must not be negative, got %s", rt.CorrelationWindow)
	}
	return nil
}

// GraphDOT returns the contents of GraphFile, or "" when unset.
func (rt Runtime) GraphDOT() (string, error) {
	if rt.GraphFile == "" {
		return "", nil
	}
	raw, err := os.ReadFile(rt.GraphFile)
	if err != nil {
		return "", fmt.Errorf("read stage graph: %w", err)
	}
	return string(raw), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
