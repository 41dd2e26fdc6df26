package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Resolution ResolutionConfig `yaml:"resolution" mapstructure:"resolution"`
	Rates      RatesConfig      `yaml:"rates" mapstructure:"rates"`
	Grades     GradesConfig     `yaml:"grades" mapstructure:"grades"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Artifact   ArtifactConfig   `yaml:"artifact" mapstructure:"artifact"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds completion-service settings. The client behind it is
// provider-replaceable; only the model id and limits live here.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	PromptVersion     string `yaml:"prompt_version" mapstructure:"prompt_version"`
}

// ResolutionConfig holds the fuzzy-match thresholds. These are policy, not
// mechanism: the auto/review split is the most consequential tuning knob in
// the system and differs per deployment.
type ResolutionConfig struct {
	AutoMatchThreshold int    `yaml:"auto_match_threshold" mapstructure:"auto_match_threshold"`
	ReviewThreshold    int    `yaml:"review_threshold" mapstructure:"review_threshold"`
	NicknameFile       string `yaml:"nickname_file" mapstructure:"nickname_file"`
}

// RatesConfig holds the labor rate table used for cost rollups.
type RatesConfig struct {
	Hourly               map[string]float64 `yaml:"hourly" mapstructure:"hourly"`
	DefaultHourly        float64            `yaml:"default_hourly" mapstructure:"default_hourly"`
	OvertimeMultiplier   float64            `yaml:"overtime_multiplier" mapstructure:"overtime_multiplier"`
	DoubleTimeMultiplier float64            `yaml:"double_time_multiplier" mapstructure:"double_time_multiplier"`
	RateFile             string             `yaml:"rate_file" mapstructure:"rate_file"`
}

// GradesConfig holds the weights for the vendor letter grade.
type GradesConfig struct {
	OnTimeWeight   float64 `yaml:"on_time_weight" mapstructure:"on_time_weight"`
	IncidentWeight float64 `yaml:"incident_weight" mapstructure:"incident_weight"`
	ChargebackCap  float64 `yaml:"chargeback_cap" mapstructure:"chargeback_cap"`
}

// ReviewConfig configures the human-in-the-loop review path.
type ReviewConfig struct {
	AutoConfirmDays int          `yaml:"auto_confirm_days" mapstructure:"auto_confirm_days"`
	Notion          NotionConfig `yaml:"notion" mapstructure:"notion"`
}

// NotionConfig holds the review-queue database credentials.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// ArtifactConfig configures generated-report artifact storage.
type ArtifactConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // "local" or "ftp"
	Dir         string `yaml:"dir" mapstructure:"dir"`
	FTPAddr     string `yaml:"ftp_addr" mapstructure:"ftp_addr"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// BatchConfig configures batch report processing.
type BatchConfig struct {
	MaxConcurrentReports int `yaml:"max_concurrent_reports" mapstructure:"max_concurrent_reports"`
}

// RetryConfig configures the orchestrator's backoff policy for transient
// store and network errors.
type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffSecs    int `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("FIELDREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fieldreport.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("anthropic.requests_per_minute", 20)
	v.SetDefault("anthropic.prompt_version", "v3")
	v.SetDefault("resolution.auto_match_threshold", 95)
	v.SetDefault("resolution.review_threshold", 80)
	v.SetDefault("rates.default_hourly", 45.0)
	v.SetDefault("rates.overtime_multiplier", 1.5)
	v.SetDefault("rates.double_time_multiplier", 2.0)
	v.SetDefault("grades.on_time_weight", 0.6)
	v.SetDefault("grades.incident_weight", 0.4)
	v.SetDefault("grades.chargeback_cap", 10000.0)
	v.SetDefault("review.auto_confirm_days", 30)
	v.SetDefault("artifact.backend", "local")
	v.SetDefault("artifact.dir", "artifacts")
	v.SetDefault("batch.max_concurrent_reports", 4)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_secs", 30)

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

// LoadRateTable merges position rates from the configured rate file into the
// hourly table. File entries win over in-config entries; position keys are
// matched case-insensitively.
func LoadRateTable(cfg RatesConfig) (RatesConfig, error) {
	if cfg.RateFile == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(cfg.RateFile)
	if err != nil {
		return cfg, eris.Wrapf(err, "config: read rate file %s", cfg.RateFile)
	}

	var fileRates map[string]float64
	if err := yaml.Unmarshal(data, &fileRates); err != nil {
		return cfg, eris.Wrap(err, "config: parse rate file")
	}

	if cfg.Hourly == nil {
		cfg.Hourly = make(map[string]float64, len(fileRates))
	}
	for position, rate := range fileRates {
		cfg.Hourly[strings.ToLower(position)] = rate
	}
	return cfg, nil
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
