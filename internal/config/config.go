package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Platform   PlatformConfig
	Simulation SimulationConfig
	Redis      RedisConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port" envconfig:"SERVER_PORT"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds" envconfig:"SERVER_TIMEOUT_SECONDS"`
}

type StorageConfig struct {
	// Path to the local storage file. Empty selects the in-memory store.
	Path string `mapstructure:"path" envconfig:"STORAGE_PATH"`
}

type PlatformConfig struct {
	// URL of the device health-record service. Empty disables the native
	// bridge and selects the simulation.
	URL            string        `mapstructure:"url" envconfig:"PLATFORM_URL"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout" envconfig:"PLATFORM_PROBE_TIMEOUT"`
	StatusCacheTTL time.Duration `mapstructure:"status_cache_ttl" envconfig:"PLATFORM_STATUS_CACHE_TTL"`
}

type SimulationConfig struct {
	// Latency added to simulated bridge calls. Zero keeps tests instant.
	Latency time.Duration `mapstructure:"latency" envconfig:"SIMULATION_LATENCY"`
	// AutoGrant controls the simulated consent prompt outcome.
	AutoGrant bool `mapstructure:"auto_grant" envconfig:"SIMULATION_AUTO_GRANT"`
}

type RedisConfig struct {
	// URL enables the change-event publisher when set.
	URL string `mapstructure:"url" envconfig:"REDIS_URL"`
}

type LogConfig struct {
	Level string `mapstructure:"level" envconfig:"LOG_LEVEL"`
}

// LoadConfig reads config/config.yaml when present and applies
// HEALTHBRIDGE_* environment overrides on top.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("platform.probe_timeout", "3s")
	viper.SetDefault("platform.status_cache_ttl", "5s")
	viper.SetDefault("simulation.auto_grant", true)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("healthbridge", &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return &config, nil
}
