package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Dataset   DatasetConfig
	Search    SearchConfig
	RateLimit RateLimitConfig
	Medallion MedallionConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatasetConfig locates the medallion artifacts the runtime reads
type DatasetConfig struct {
	GoldPath         string        `mapstructure:"gold_path"`
	NutrientFactPath string        `mapstructure:"nutrient_fact_path"`
	DetailCacheTTL   time.Duration `mapstructure:"detail_cache_ttl"`
}

// SearchConfig bounds the search endpoint's request parameters
type SearchConfig struct {
	DefaultLimit   int `mapstructure:"default_limit"`
	MaxLimit       int `mapstructure:"max_limit"`
	MinQueryLength int `mapstructure:"min_query_length"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// MedallionConfig holds the offline builder's default paths
type MedallionConfig struct {
	SourceDir    string `mapstructure:"source_dir"`
	OutputDir    string `mapstructure:"output_dir"`
	DatabasePath string `mapstructure:"database_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fromfattofit/")

	// Environment variable settings
	v.SetEnvPrefix("FFTF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Dataset defaults
	v.SetDefault("dataset.gold_path", "data/medallion/gold/food_search.parquet")
	v.SetDefault("dataset.nutrient_fact_path", "data/medallion/silver/food_nutrients.parquet")
	v.SetDefault("dataset.detail_cache_ttl", "1h")

	// Search defaults
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 25)
	v.SetDefault("search.min_query_length", 2)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Medallion builder defaults
	v.SetDefault("medallion.source_dir", "data/FoodData_Central_csv")
	v.SetDefault("medallion.output_dir", "data/medallion")
	v.SetDefault("medallion.database_path", "data/medallion/usda_medallion.duckdb")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Dataset.GoldPath == "" {
		return fmt.Errorf("dataset gold path is required (set FFTF_DATASET_GOLD_PATH)")
	}

	if config.Search.MaxLimit < 1 {
		return fmt.Errorf("search max_limit must be at least 1, got: %d", config.Search.MaxLimit)
	}
	if config.Search.DefaultLimit < 1 || config.Search.DefaultLimit > config.Search.MaxLimit {
		return fmt.Errorf("search default_limit must be between 1 and max_limit, got: %d", config.Search.DefaultLimit)
	}
	if config.Search.MinQueryLength < 1 {
		return fmt.Errorf("search min_query_length must be at least 1, got: %d", config.Search.MinQueryLength)
	}

	return nil
}
