package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "API_ADDR", "METRICS_ADDR", "SHUTDOWN_TIMEOUT", "MAX_BODY_BYTES",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "ANALYZER_PROVIDER", "COMPREHEND_REGION",
		"ANALYZER_MODEL", "ANALYZER_MAX_TOKENS", "ANALYZER_TIMEOUT", "ANALYZER_BASE_URL",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "RESULT_STORE", "S3_BUCKET", "S3_REGION",
		"RESULT_KEY_PREFIX", "DATABASE_URL", "METRICS_BACKEND", "CLOUDWATCH_NAMESPACE",
		"CLOUDWATCH_REGION", "CLOUDWATCH_STEP", "LOG_LEVEL", "LOG_FORMAT",
		"TRACING_EXPORTER", "TRACING_SAMPLE_RATIO",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Defaults(), *cfg)
	assert.Equal(t, AnalyzerComprehend, cfg.Analyzer.Provider)
	assert.Equal(t, "eu-west-1", cfg.Analyzer.Region)
	assert.Equal(t, "kandidat-48-data", cfg.Store.Bucket)
	assert.Equal(t, "midlertidig", cfg.Store.KeyPrefix)
	assert.Equal(t, "kandidat-48-SentimentApp", cfg.Metrics.Namespace)
	assert.Equal(t, "eu-north-1", cfg.Metrics.Region)
	assert.Equal(t, 5*time.Second, cfg.Metrics.Step)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_ADDR", ":8081")
	t.Setenv("ANALYZER_PROVIDER", "Claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("ANALYZER_TIMEOUT", "45s")
	t.Setenv("RESULT_STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("METRICS_BACKEND", "cloudwatch")
	t.Setenv("CLOUDWATCH_STEP", "1m")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, AnalyzerClaude, cfg.Analyzer.Provider)
	assert.Equal(t, "sk-ant-test", cfg.Analyzer.AnthropicAPIKey)
	assert.Equal(t, 45*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, StorePostgres, cfg.Store.Kind)
	assert.Equal(t, MetricsCloudWatch, cfg.Metrics.Backend)
	assert.Equal(t, time.Minute, cfg.Metrics.Step)
	assert.InDelta(t, 2.5, cfg.Server.RateLimitRPS, 1e-9)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
}

func TestLoad_InvalidEnvValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLOUDWATCH_STEP", "soon")
	t.Setenv("RATE_LIMIT_BURST", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Metrics.Step)
	assert.Equal(t, 10, cfg.Server.RateLimitBurst)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":7000"
analyzer:
  provider: noop
store:
  kind: none
metrics:
  backend: memory
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr, "unset keys keep defaults")
	assert.Equal(t, AnalyzerNoOp, cfg.Analyzer.Provider)
	assert.Equal(t, StoreNone, cfg.Store.Kind)
	assert.Equal(t, MetricsMemory, cfg.Metrics.Backend)
	assert.Equal(t, "warn", cfg.Logging.Level, "env wins over file")
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
		t.Setenv("CONFIG_FILE", path)
		_, err := Load()
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "claude without key",
			mutate:  func(c *Config) { c.Analyzer.Provider = AnalyzerClaude },
			wantErr: "ANTHROPIC_API_KEY",
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.Analyzer.Provider = AnalyzerOpenAI },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Analyzer.Provider = "bert" },
			wantErr: "unknown ANALYZER_PROVIDER",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Store.Kind = StorePostgres },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Store.Bucket = "" },
			wantErr: "S3_BUCKET",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store.Kind = "ftp" },
			wantErr: "unknown RESULT_STORE",
		},
		{
			name: "cloudwatch zero step",
			mutate: func(c *Config) {
				c.Metrics.Backend = MetricsCloudWatch
				c.Metrics.Step = 0
			},
			wantErr: "CLOUDWATCH_STEP",
		},
		{
			name:    "unknown metrics backend",
			mutate:  func(c *Config) { c.Metrics.Backend = "statsd" },
			wantErr: "unknown METRICS_BACKEND",
		},
		{
			name:    "sample ratio out of range",
			mutate:  func(c *Config) { c.Tracing.SampleRatio = 1.5 },
			wantErr: "TRACING_SAMPLE_RATIO",
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.Server.RateLimitBurst = 0 },
			wantErr: "RATE_LIMIT_BURST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Analyzer.Provider = AnalyzerOpenAI
	cfg.Store.Kind = StorePostgres

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
