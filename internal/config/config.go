package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Predictor PredictorConfig `yaml:"predictor" mapstructure:"predictor"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PredictorConfig locates the churn model artifact loaded at startup.
type PredictorConfig struct {
	ArtifactPath string `yaml:"artifact_path" mapstructure:"artifact_path"`
}

// StoreConfig configures run history persistence.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
}

// SessionConfig configures where per-user session state lives.
type SessionConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTLMinutes    int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the session expiry as a duration.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	TrustProxy     bool     `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// ExportConfig configures where CSV partitions are written.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHURN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("predictor.artifact_path", "models/churn_model.json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "churn.db")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("store.retention_days", 90)
	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.key_prefix", "churn:session:")
	v.SetDefault("session.ttl_minutes", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("export.output_dir", "output")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode depends on and reports every
// problem at once. Modes: score, serve, runs.
func (c *Config) Validate(mode string) error {
	var errs []string

	needsPredictor := false
	switch mode {
	case "score":
		needsPredictor = true
		if c.Export.OutputDir == "" {
			errs = append(errs, "export.output_dir is required")
		}
	case "serve":
		needsPredictor = true
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
		if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server.rate_limit_burst must be >= 1 when rate limiting is enabled")
		}
		switch c.Session.Driver {
		case "memory":
		case "redis":
			if c.Session.RedisAddr == "" {
				errs = append(errs, "session.redis_addr is required for the redis driver")
			}
		default:
			errs = append(errs, "session.driver must be memory or redis")
		}
		if c.Session.TTLMinutes < 0 {
			errs = append(errs, "session.ttl_minutes must be >= 0")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsPredictor && c.Predictor.ArtifactPath == "" {
		errs = append(errs, "predictor.artifact_path is required")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "none":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none")
	}
	if c.Store.RetentionDays < 0 {
		errs = append(errs, "store.retention_days must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid (%s): %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
