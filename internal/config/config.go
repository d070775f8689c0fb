// Package config loads zipmatch configuration and initializes logging.
package config

import (
	"errors"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/zipmatch/internal/catalog"
)

// Catalog drivers.
const (
	DriverGeoJSON   = "geojson"
	DriverShapefile = "shapefile"
	DriverPostGIS   = "postgis"
)

// Config holds the full application configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Query   QueryConfig   `yaml:"query" mapstructure:"query"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CatalogConfig selects and locates the boundary dataset.
type CatalogConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	DownloadURL string `yaml:"download_url" mapstructure:"download_url"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	// Download retry settings for catalog fetch.
	MaxRetries          int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs      int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	DownloadTimeoutMins int `yaml:"download_timeout_mins" mapstructure:"download_timeout_mins"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// QueryConfig configures query evaluation.
type QueryConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	SimplifyTolerance float64 `yaml:"simplify_tolerance" mapstructure:"simplify_tolerance"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZIPMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.driver", DriverGeoJSON)
	v.SetDefault("catalog.path", "data/us-zip-code-boundaries.json")
	v.SetDefault("catalog.database_url", "")
	v.SetDefault("catalog.table", "geo.zcta")
	v.SetDefault("catalog.download_url", catalog.DefaultDownloadURL)
	v.SetDefault("catalog.temp_dir", "/tmp/zipmatch")
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.retry_backoff_ms", 2000)
	v.SetDefault("catalog.download_timeout_mins", 10)
	v.SetDefault("cache.max_entries", 500)
	v.SetDefault("query.workers", runtime.NumCPU())
	v.SetDefault("query.simplify_tolerance", 0.0)
	v.SetDefault("query.timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
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

// Validate checks the settings the given command needs. mode is one of
// "serve", "query", "stats", "fetch" or "import".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkCatalog := func() {
		switch c.Catalog.Driver {
		case DriverGeoJSON, DriverShapefile:
			if c.Catalog.Path == "" {
				problems = append(problems, "catalog.path is required for the "+c.Catalog.Driver+" driver")
			}
		case DriverPostGIS:
			if c.Catalog.DatabaseURL == "" {
				problems = append(problems, "catalog.database_url is required for the postgis driver")
			}
			if c.Catalog.Table == "" {
				problems = append(problems, "catalog.table is required for the postgis driver")
			}
		default:
			problems = append(problems, "catalog.driver must be one of geojson, shapefile, postgis")
		}
	}
	checkQuery := func() {
		if c.Cache.MaxEntries <= 0 {
			problems = append(problems, "cache.max_entries must be > 0")
		}
		if c.Query.Workers < 0 {
			problems = append(problems, "query.workers must be >= 0")
		}
		if c.Query.SimplifyTolerance < 0 {
			problems = append(problems, "query.simplify_tolerance must be >= 0")
		}
	}

	switch mode {
	case "serve":
		checkCatalog()
		checkQuery()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimit < 0 {
			problems = append(problems, "server.rate_limit must be >= 0")
		}
		if c.Query.TimeoutSecs <= 0 {
			problems = append(problems, "query.timeout_secs must be > 0")
		}
	case "query":
		checkCatalog()
		checkQuery()
	case "stats":
		checkCatalog()
	case "fetch":
		if c.Catalog.DownloadURL == "" {
			problems = append(problems, "catalog.download_url is required")
		}
		if c.Catalog.TempDir == "" {
			problems = append(problems, "catalog.temp_dir is required")
		}
	case "import":
		if c.Catalog.DatabaseURL == "" {
			problems = append(problems, "catalog.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
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
