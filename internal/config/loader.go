package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a config from defaults plus environment overrides alone.
func FromEnv() (*Config, error) {
	cfg := Default()
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from the process environment. Unset
// variables leave the current value in place; malformed numeric values are
// logged and skipped.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Server.ListenAddr, "LISTEN_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	setFloat(&cfg.Server.RequestDeadlineS, "REQUEST_DEADLINE_S")

	setString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	setString(&cfg.LLM.ModelTranscribe, "LLM_MODEL_TRANSCRIBE")
	setString(&cfg.LLM.ModelAnalysis, "LLM_MODEL_ANALYSIS")
	setString(&cfg.LLM.ModelStructured, "LLM_MODEL_STRUCTURED")
	if v := os.Getenv("LLM_FALLBACK_MODELS"); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		cfg.LLM.FallbackModels = models
	}
	setFloat(&cfg.LLM.TimeoutS, "LLM_TIMEOUT_S")
	setInt(&cfg.LLM.MaxRetries, "LLM_MAX_RETRIES")
	setFloat(&cfg.LLM.BackoffBaseS, "LLM_BACKOFF_BASE_S")
	setInt(&cfg.LLM.WorkerThreads, "LLM_WORKER_THREADS")

	setString(&cfg.Store.PostgresDSN, "DATABASE_URL")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.RequestDeadlineS < 0 {
		errs = append(errs, fmt.Errorf("server.request_deadline_s %.1f is negative", cfg.Server.RequestDeadlineS))
	}

	if cfg.LLM.TimeoutS <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_s must be positive, got %.1f", cfg.LLM.TimeoutS))
	}
	if cfg.LLM.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("llm.max_retries must be at least 1, got %d", cfg.LLM.MaxRetries))
	}
	if cfg.LLM.BackoffBaseS < 0 {
		errs = append(errs, fmt.Errorf("llm.backoff_base_s %.1f is negative", cfg.LLM.BackoffBaseS))
	}
	if cfg.LLM.WorkerThreads < 1 {
		errs = append(errs, fmt.Errorf("llm.worker_threads must be at least 1, got %d", cfg.LLM.WorkerThreads))
	}

	// Soft warnings for configurations that run but degrade.
	if cfg.LLM.APIKey == "" {
		slog.Warn("llm.api_key is empty; LLM-driven services will fail and only local analyzers will produce results")
	}
	if len(cfg.LLM.FallbackModels) == 0 {
		slog.Warn("llm.fallback_models is empty; an unavailable preferred model cannot fail over")
	}
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; baseline profiles will only be available from request metadata")
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring malformed numeric environment variable", "key", key, "value", v)
		return
	}
	*dst = f
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed integer environment variable", "key", key, "value", v)
		return
	}
	*dst = n
}
