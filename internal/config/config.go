package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Region   RegionConfig   `yaml:"region" mapstructure:"region"`
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Network  NetworkConfig  `yaml:"network" mapstructure:"network"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RegionConfig configures region name normalization.
type RegionConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	MaxCandidates  int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// GeometryConfig configures coordinate validation and repair.
type GeometryConfig struct {
	MinLon          float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MinLat          float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLon          float64 `yaml:"max_lon" mapstructure:"max_lon"`
	MaxLat          float64 `yaml:"max_lat" mapstructure:"max_lat"`
	CentroidEpsilon float64 `yaml:"centroid_epsilon" mapstructure:"centroid_epsilon"`
}

// NetworkConfig configures centrality computation.
type NetworkConfig struct {
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance" mapstructure:"tolerance"`
	FlowThreshold float64 `yaml:"flow_threshold" mapstructure:"flow_threshold"`
}

// CacheConfig configures the artifact cache layers.
type CacheConfig struct {
	MaxEntries int    `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	DiskPath   string `yaml:"disk_path" mapstructure:"disk_path"`
}

// FetchConfig configures the artifact fetcher.
type FetchConfig struct {
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	DataDir             string  `yaml:"data_dir" mapstructure:"data_dir"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries          int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec      float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ServerConfig configures the analysis API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("region.fuzzy_threshold", 0.7)
	v.SetDefault("region.max_candidates", 3)
	v.SetDefault("geometry.min_lon", 41.0)
	v.SetDefault("geometry.min_lat", 12.0)
	v.SetDefault("geometry.max_lon", 54.0)
	v.SetDefault("geometry.max_lat", 19.0)
	v.SetDefault("geometry.centroid_epsilon", 1e-8)
	v.SetDefault("network.max_iterations", 10000)
	v.SetDefault("network.tolerance", 1e-4)
	v.SetDefault("network.flow_threshold", 0.1)
	v.SetDefault("cache.max_entries", 50)
	v.SetDefault("cache.ttl_minutes", 30)
	v.SetDefault("cache.disk_path", "")
	v.SetDefault("fetch.base_url", "")
	v.SetDefault("fetch.data_dir", "data")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_sec", 4)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_cooldown_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

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
