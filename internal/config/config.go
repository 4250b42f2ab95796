// Package config loads the service configuration. Values come from built-in
// defaults, an optional YAML file named by CONFIG_FILE, and environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Analyzer providers.
const (
	AnalyzerComprehend = "comprehend"
	AnalyzerClaude     = "claude"
	AnalyzerOpenAI     = "openai"
	AnalyzerNoOp       = "noop"
)

// Result stores.
const (
	StoreS3       = "s3"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsCloudWatch = "cloudwatch"
	MetricsOTel       = "otel"
	MetricsMemory     = "memory"
	MetricsNone       = "none"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Store    StoreConfig    `yaml:"store"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig configures the API and metrics listeners.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// AnalyzerConfig selects and configures the sentiment analyzer.
// API keys are only read from the environment.
type AnalyzerConfig struct {
	Provider        string        `yaml:"provider"`
	Region          string        `yaml:"region"`
	Model           string        `yaml:"model"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	BaseURL         string        `yaml:"base_url"`
	AnthropicAPIKey string        `yaml:"-"`
	OpenAIAPIKey    string        `yaml:"-"`
}

// StoreConfig selects where analysis results are written.
// The database URL is only read from the environment.
type StoreConfig struct {
	Kind        string `yaml:"kind"`
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	KeyPrefix   string `yaml:"key_prefix"`
	DatabaseURL string `yaml:"-"`
}

// MetricsConfig selects the metrics registry backend.
type MetricsConfig struct {
	Backend   string        `yaml:"backend"`
	Namespace string        `yaml:"namespace"`
	Region    string        `yaml:"region"`
	Step      time.Duration `yaml:"step"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimitRPS:    5,
			RateLimitBurst:  10,
		},
		Analyzer: AnalyzerConfig{
			Provider: AnalyzerComprehend,
			Region:   "eu-west-1",
		},
		Store: StoreConfig{
			Kind:      StoreS3,
			Bucket:    "kandidat-48-data",
			KeyPrefix: "midlertidig",
		},
		Metrics: MetricsConfig{
			Backend:   MetricsPrometheus,
			Namespace: "kandidat-48-SentimentApp",
			Region:    "eu-north-1",
			Step:      5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{Exporter: "none", SampleRatio: 1},
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) overlayFile(path string) error {
	// #nosec G304 -- path comes from the operator-controlled CONFIG_FILE
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Addr = getEnvOrDefault("API_ADDR", s.Addr)
	s.MetricsAddr = getEnvOrDefault("METRICS_ADDR", s.MetricsAddr)
	s.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(s.MaxBodyBytes)))
	s.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", s.RateLimitRPS)
	s.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", s.RateLimitBurst)

	a := &c.Analyzer
	a.Provider = strings.ToLower(getEnvOrDefault("ANALYZER_PROVIDER", a.Provider))
	a.Region = getEnvOrDefault("COMPREHEND_REGION", a.Region)
	a.Model = getEnvOrDefault("ANALYZER_MODEL", a.Model)
	a.MaxTokens = getEnvInt("ANALYZER_MAX_TOKENS", a.MaxTokens)
	a.Timeout = getEnvDuration("ANALYZER_TIMEOUT", a.Timeout)
	a.BaseURL = getEnvOrDefault("ANALYZER_BASE_URL", a.BaseURL)
	a.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	a.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	st := &c.Store
	st.Kind = strings.ToLower(getEnvOrDefault("RESULT_STORE", st.Kind))
	st.Bucket = getEnvOrDefault("S3_BUCKET", st.Bucket)
	st.Region = getEnvOrDefault("S3_REGION", st.Region)
	st.KeyPrefix = getEnvOrDefault("RESULT_KEY_PREFIX", st.KeyPrefix)
	st.DatabaseURL = os.Getenv("DATABASE_URL")

	m := &c.Metrics
	m.Backend = strings.ToLower(getEnvOrDefault("METRICS_BACKEND", m.Backend))
	m.Namespace = getEnvOrDefault("CLOUDWATCH_NAMESPACE", m.Namespace)
	m.Region = getEnvOrDefault("CLOUDWATCH_REGION", m.Region)
	m.Step = getEnvDuration("CLOUDWATCH_STEP", m.Step)

	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)

	c.Tracing.Exporter = strings.ToLower(getEnvOrDefault("TRACING_EXPORTER", c.Tracing.Exporter))
	c.Tracing.SampleRatio = getEnvFloat("TRACING_SAMPLE_RATIO", c.Tracing.SampleRatio)
}

// Validate checks configuration correctness. All problems are reported.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("API_ADDR cannot be empty"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	switch c.Analyzer.Provider {
	case AnalyzerComprehend, AnalyzerNoOp:
	case AnalyzerClaude:
		if c.Analyzer.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the claude analyzer"))
		}
	case AnalyzerOpenAI:
		if c.Analyzer.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai analyzer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYZER_PROVIDER %q", c.Analyzer.Provider))
	}
	if c.Analyzer.Timeout < 0 || c.Analyzer.MaxTokens < 0 {
		errs = append(errs, errors.New("ANALYZER_TIMEOUT and ANALYZER_MAX_TOKENS cannot be negative"))
	}

	switch c.Store.Kind {
	case StoreS3:
		if c.Store.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET cannot be empty"))
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreNone:
	default:
		errs = append(errs, fmt.Errorf("unknown RESULT_STORE %q", c.Store.Kind))
	}

	switch c.Metrics.Backend {
	case MetricsPrometheus, MetricsOTel, MetricsMemory, MetricsNone:
	case MetricsCloudWatch:
		if c.Metrics.Namespace == "" {
			errs = append(errs, errors.New("CLOUDWATCH_NAMESPACE cannot be empty"))
		}
		if c.Metrics.Step <= 0 {
			errs = append(errs, errors.New("CLOUDWATCH_STEP must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown METRICS_BACKEND %q", c.Metrics.Backend))
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("TRACING_SAMPLE_RATIO must be between 0.0 and 1.0"))
	}

	return errors.Join(errs...)
}
