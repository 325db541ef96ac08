package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "models/churn_model.json", cfg.Predictor.ArtifactPath)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "churn.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 90, cfg.Store.RetentionDays)
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, time.Hour, cfg.Session.TTL())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
	assert.InDelta(t, 5.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 10, cfg.Server.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Server.TrustProxy)
	assert.Equal(t, "output", cfg.Export.OutputDir)

	assert.NoError(t, cfg.Validate("score"))
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("runs"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
predictor:
  artifact_path: /srv/models/telco.yaml
store:
  driver: postgres
  database_url: postgres://localhost/churn
session:
  driver: redis
  redis_addr: redis:6379
  ttl_minutes: 15
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins:
    - https://dash.example.com
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/models/telco.yaml", cfg.Predictor.ArtifactPath)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.Equal(t, "redis:6379", cfg.Session.RedisAddr)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.Server.CORSOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CHURN_STORE_DRIVER", "postgres")
	t.Setenv("CHURN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CHURN_SERVER_PORT", "3000")
	t.Setenv("CHURN_PREDICTOR_ARTIFACT_PATH", "/tmp/model.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/tmp/model.json", cfg.Predictor.ArtifactPath)
}

func TestLoadEnvOnlyKeys(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CHURN_SESSION_REDIS_PASSWORD", "s3cret")
	t.Setenv("CHURN_SESSION_REDIS_DB", "3")
	t.Setenv("CHURN_STORE_MAX_CONNS", "20")
	t.Setenv("CHURN_STORE_MIN_CONNS", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Session.RedisPassword)
	assert.Equal(t, 3, cfg.Session.RedisDB)
	assert.Equal(t, int32(20), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHURN_EXPORT_OUTPUT_DIR=exports\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("CHURN_EXPORT_OUTPUT_DIR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.Export.OutputDir)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Predictor: PredictorConfig{ArtifactPath: "models/churn_model.json"},
		Store:     StoreConfig{Driver: "sqlite", DatabaseURL: "churn.db"},
		Session:   SessionConfig{Driver: "memory", TTLMinutes: 60},
		Server:    ServerConfig{Port: 8080, MaxUploadMB: 50, RateLimitRPS: 5, RateLimitBurst: 10},
		Export:    ExportConfig{OutputDir: "output"},
	}
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateScore_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Predictor.ArtifactPath = ""
	cfg.Export.OutputDir = ""

	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "predictor.artifact_path")
	assert.Contains(t, err.Error(), "export.output_dir")
}

func TestValidateRuns_IgnoresPredictor(t *testing.T) {
	cfg := validDefaults()
	cfg.Predictor.ArtifactPath = ""
	assert.NoError(t, cfg.Validate("runs"))
}

func TestValidateServe(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
		{name: "upload size", mutate: func(c *Config) { c.Server.MaxUploadMB = 0 }, wantErr: "max_upload_mb"},
		{name: "negative rps", mutate: func(c *Config) { c.Server.RateLimitRPS = -1 }, wantErr: "rate_limit_rps"},
		{name: "zero burst", mutate: func(c *Config) { c.Server.RateLimitBurst = 0 }, wantErr: "rate_limit_burst"},
		{name: "rate limiting disabled", mutate: func(c *Config) {
			c.Server.RateLimitRPS = 0
			c.Server.RateLimitBurst = 0
		}},
		{name: "unknown session driver", mutate: func(c *Config) { c.Session.Driver = "memcached" }, wantErr: "session.driver"},
		{name: "redis without addr", mutate: func(c *Config) { c.Session.Driver = "redis" }, wantErr: "session.redis_addr"},
		{name: "unknown store driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver"},
		{name: "store without url", mutate: func(c *Config) { c.Store.DatabaseURL = "" }, wantErr: "store.database_url"},
		{name: "store disabled", mutate: func(c *Config) {
			c.Store.Driver = "none"
			c.Store.DatabaseURL = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate("serve")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
