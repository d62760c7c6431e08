package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once
// in the root command and passed into components explicitly.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	CRM     CRMConfig     `yaml:"crm" mapstructure:"crm"`
	AnyMail AnyMailConfig `yaml:"anymail" mapstructure:"anymail"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CRMConfig holds remote CRM API settings and the call budget.
type CRMConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	DailyBudget int     `yaml:"daily_budget" mapstructure:"daily_budget"`
	SmoothRPS   float64 `yaml:"smooth_rps" mapstructure:"smooth_rps"`
}

// AnyMailConfig holds AnyMail Finder API settings.
type AnyMailConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EnrichConfig configures the enrichment pass.
type EnrichConfig struct {
	ConfidenceFloor int `yaml:"confidence_floor" mapstructure:"confidence_floor"`
	BatchSize       int `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
}

// SyncConfig configures the reconciliation pass.
type SyncConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig configures the webhook intake server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadsync.db")
	v.SetDefault("crm.daily_budget", 250000)
	v.SetDefault("crm.smooth_rps", 10)
	v.SetDefault("anymail.base_url", "https://api.anymailfinder.com/v5.0")
	v.SetDefault("enrich.confidence_floor", 70)
	v.SetDefault("enrich.batch_size", 50)
	v.SetDefault("enrich.concurrency", 2)
	v.SetDefault("sync.limit", 0)
	v.SetDefault("server.port", 8080)
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
