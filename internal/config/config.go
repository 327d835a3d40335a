package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultOutputFile is the GeoJSON path written when no override is given.
const DefaultOutputFile = "Political_Divisions_Voter_Stats.geojson"

// Config holds the full application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Polling PollingConfig `yaml:"polling" mapstructure:"polling"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourcesConfig holds the open-data download URLs.
type SourcesConfig struct {
	BoundaryURL     string `yaml:"boundary_url" mapstructure:"boundary_url"`
	RegistrationURL string `yaml:"registration_url" mapstructure:"registration_url"`
	TurnoutURL      string `yaml:"turnout_url" mapstructure:"turnout_url"`
}

// PollingConfig configures the polling-place lookup API.
type PollingConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CachePath   string  `yaml:"cache_path" mapstructure:"cache_path"`
}

// RetryConfig configures backoff for polling-place lookups.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// OutputConfig configures where the enriched GeoJSON is written.
type OutputConfig struct {
	File string `yaml:"file" mapstructure:"file"`
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
	v.SetEnvPrefix("WARDSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.boundary_url", "http://data.phl.opendata.arcgis.com/datasets/160a3665943d4864806d7b1399029a04_0.geojson")
	v.SetDefault("sources.registration_url", "https://data.phila.gov/api/views/g4jp-m82n/rows.csv?accessType=DOWNLOAD")
	v.SetDefault("sources.turnout_url", "https://data.phila.gov/api/views/fpmf-whei/rows.csv?accessType=DOWNLOAD")
	v.SetDefault("polling.base_url", "http://api.phila.gov:80/polling-places/v1/")
	v.SetDefault("polling.concurrency", 1)
	v.SetDefault("polling.rate_limit", 10.0)
	v.SetDefault("polling.cache_path", "")
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_backoff_ms", 2000)
	v.SetDefault("retry.max_backoff_ms", 60000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.0)
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.user_agent", "ward-stats/1.0")
	v.SetDefault("output.file", DefaultOutputFile)
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Sources.BoundaryURL == "" || c.Sources.RegistrationURL == "" || c.Sources.TurnoutURL == "" {
		return eris.New("config: all three source URLs are required")
	}
	if c.Polling.BaseURL == "" {
		return eris.New("config: polling.base_url is required")
	}
	if c.Polling.Concurrency < 1 {
		return eris.Errorf("config: polling.concurrency must be >= 1, got %d", c.Polling.Concurrency)
	}
	if c.Retry.MaxAttempts < 1 {
		return eris.Errorf("config: retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
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
