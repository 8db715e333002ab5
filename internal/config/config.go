// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/funding-harvester/internal/resolve"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig        `yaml:"store" mapstructure:"store"`
	Ingest   IngestConfig       `yaml:"ingest" mapstructure:"ingest"`
	Resolve  resolve.Thresholds `yaml:"resolve" mapstructure:"resolve"`
	Fetch    FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Alert    AlertConfig        `yaml:"alert" mapstructure:"alert"`
	Schedule ScheduleConfig     `yaml:"schedule" mapstructure:"schedule"`
	Export   ExportConfig       `yaml:"export" mapstructure:"export"`
	Server   ServerConfig       `yaml:"server" mapstructure:"server"`
	Log      LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures pipeline behavior.
type IngestConfig struct {
	Sources     []string `yaml:"sources" mapstructure:"sources"`
	WindowYears int      `yaml:"window_years" mapstructure:"window_years"`
	CaptureRaw  bool     `yaml:"capture_raw" mapstructure:"capture_raw"`
	Parallel    bool     `yaml:"parallel" mapstructure:"parallel"`
}

// FetchConfig configures the connector HTTP client.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// AlertConfig configures failure alerting.
type AlertConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ScheduleConfig configures the recurring pipeline schedule.
type ScheduleConfig struct {
	Cron         string `yaml:"cron" mapstructure:"cron"`
	IntervalSecs int    `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// ExportConfig configures dataset exports.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("FUNDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "funding.db")
	v.SetDefault("ingest.sources", []string{"usaspending"})
	v.SetDefault("ingest.window_years", 3)
	v.SetDefault("ingest.capture_raw", false)
	v.SetDefault("ingest.parallel", false)
	v.SetDefault("resolve.candidate_floor", 0.60)
	v.SetDefault("resolve.auto_merge", 0.85)
	v.SetDefault("resolve.domain_boost", 0.20)
	v.SetDefault("resolve.domain_boost_cap", 0.95)
	v.SetDefault("resolve.max_candidates", 10)
	v.SetDefault("fetch.user_agent", "funding-harvester/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("schedule.cron", "0 2 * * *")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.format", "csv")
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
