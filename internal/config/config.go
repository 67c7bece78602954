// Package config provides the configuration schema and loader for the Candor
// analysis server.
//
// Configuration is read from an optional YAML file and then overridden by
// environment variables, which are authoritative. [FromEnv] builds a usable
// config from the environment alone so a YAML file is never required.
package config

import "time"

// LogLevel controls log verbosity for the Candor server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Candor.
// It is typically produced by [Load] or [FromEnv].
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Store  StoreConfig  `yaml:"store"`
}

// ServerConfig holds network and request-lifecycle settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// RequestDeadlineS bounds a whole analysis request in seconds.
	// Zero disables the global deadline.
	RequestDeadlineS float64 `yaml:"request_deadline_s"`
}

// RequestDeadline returns the request deadline as a [time.Duration],
// or zero when disabled.
func (s ServerConfig) RequestDeadline() time.Duration {
	return time.Duration(s.RequestDeadlineS * float64(time.Second))
}

// LLMConfig configures the model client: which models to prefer per task,
// the failover order, and the retry envelope around every provider call.
type LLMConfig struct {
	// APIKey authenticates against the Gemini API. Usually supplied via
	// the GEMINI_API_KEY environment variable rather than the file.
	APIKey string `yaml:"api_key"`

	// ModelTranscribe is the preferred model for transcription calls.
	ModelTranscribe string `yaml:"model_transcribe"`

	// ModelAnalysis is the preferred model for free-form analysis calls.
	ModelAnalysis string `yaml:"model_analysis"`

	// ModelStructured is the preferred model for schema-constrained calls.
	ModelStructured string `yaml:"model_structured"`

	// FallbackModels is the ordered list tried when a preferred model is
	// unavailable or persistently failing.
	FallbackModels []string `yaml:"fallback_models"`

	// TimeoutS bounds each provider attempt in seconds.
	TimeoutS float64 `yaml:"timeout_s"`

	// MaxRetries is the number of attempts per call, including the first.
	MaxRetries int `yaml:"max_retries"`

	// BackoffBaseS is the base delay between retries in seconds, doubled
	// per attempt.
	BackoffBaseS float64 `yaml:"backoff_base_s"`

	// WorkerThreads bounds concurrent in-flight provider calls.
	WorkerThreads int `yaml:"worker_threads"`
}

// Timeout returns the per-attempt timeout as a [time.Duration].
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutS * float64(time.Second))
}

// BackoffBase returns the retry base delay as a [time.Duration].
func (l LLMConfig) BackoffBase() time.Duration {
	return time.Duration(l.BackoffBaseS * float64(time.Second))
}

// StoreConfig configures baseline and session persistence.
type StoreConfig struct {
	// PostgresDSN is the connection string for the baseline/session store.
	// Empty disables persistence; baselines then come only from request
	// metadata.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the built-in defaults applied before file and environment
// overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		LLM: LLMConfig{
			ModelTranscribe: "gemini-2.0-flash",
			ModelAnalysis:   "gemini-2.0-flash",
			ModelStructured: "gemini-2.0-flash",
			FallbackModels:  []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro"},
			TimeoutS:        45,
			MaxRetries:      3,
			BackoffBaseS:    1,
			WorkerThreads:   8,
		},
	}
}
