package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "vitalis.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "VITALIS_PORT")
	setString(&cfg.Server.CORSOrigin, "VITALIS_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "VITALIS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "VITALIS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "VITALIS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "VITALIS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "VITALIS_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LLM.URL, "VITALIS_LLM_URL")
	setString(&cfg.LLM.APIKey, "VITALIS_LLM_API_KEY")
	setString(&cfg.LLM.Model, "VITALIS_LLM_MODEL")
	setInt(&cfg.LLM.MaxTokens, "VITALIS_LLM_MAX_TOKENS")
	setDuration(&cfg.LLM.Timeout, "VITALIS_LLM_TIMEOUT")
	setString(&cfg.Logging.Level, "VITALIS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "VITALIS_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "VITALIS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "VITALIS_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "VITALIS_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "VITALIS_CACHE_TTL")
	setInt(&cfg.Generation.CandidateCount, "VITALIS_GEN_CANDIDATES")
	setInt(&cfg.Generation.MaxVersions, "VITALIS_GEN_MAX_VERSIONS")
	setFloat64(&cfg.Generation.DeployFloor, "VITALIS_GEN_DEPLOY_FLOOR")
	setInt(&cfg.Evaluation.MaxParallel, "VITALIS_EVAL_MAX_PARALLEL")
	setFloat64(&cfg.Evaluation.ToolWeight, "VITALIS_EVAL_TOOL_WEIGHT")
	setFloat64(&cfg.Evaluation.OutcomeWeight, "VITALIS_EVAL_OUTCOME_WEIGHT")
	setDuration(&cfg.Evaluation.RunTimeout, "VITALIS_EVAL_RUN_TIMEOUT")
	setInt(&cfg.Runtime.MaxSteps, "VITALIS_RUNTIME_MAX_STEPS")
	setInt(&cfg.Monitor.WindowSize, "VITALIS_MONITOR_WINDOW")
	setDuration(&cfg.Monitor.Interval, "VITALIS_MONITOR_INTERVAL")
	setFloat64(&cfg.Monitor.RevisionMeanFloor, "VITALIS_MONITOR_MEAN_FLOOR")
	setFloat64(&cfg.Monitor.RevisionDimFloor, "VITALIS_MONITOR_DIM_FLOOR")
	setDuration(&cfg.Approval.Timeout, "VITALIS_APPROVAL_TIMEOUT")
	setBool(&cfg.Telemetry.Enabled, "VITALIS_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Generation.CandidateCount < 1 {
		return errors.New("generation.candidate_count must be >= 1")
	}
	if cfg.Evaluation.MaxParallel < 1 {
		return errors.New("evaluation.max_parallel must be >= 1")
	}
	if w := cfg.Evaluation.ToolWeight + cfg.Evaluation.OutcomeWeight; w < 0.999 || w > 1.001 {
		return errors.New("evaluation tool_weight and outcome_weight must sum to 1")
	}
	if cfg.Runtime.MaxSteps < 1 {
		return errors.New("runtime.max_steps must be >= 1")
	}
	if cfg.Monitor.WindowSize < 1 {
		return errors.New("monitor.window_size must be >= 1")
	}
	if cfg.Approval.Timeout < 0 {
		return errors.New("approval.timeout must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
