package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Device   DeviceConfig   `mapstructure:"device"`
	Framer   FramerConfig   `mapstructure:"framer"`
	Naming   NamingConfig   `mapstructure:"naming"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	History  HistoryConfig  `mapstructure:"history"`
	Readings ReadingsConfig `mapstructure:"readings"`
}

// DeviceConfig defines how the serial device link is located and opened
type DeviceConfig struct {
	Port         string   `mapstructure:"port"`          // explicit device path, skips detection
	PortPatterns []string `mapstructure:"port_patterns"` // glob patterns scanned by detection
	ReadBuffer   int      `mapstructure:"read_buffer"`   // bytes per read from the device
}

// FramerConfig defines line framing behavior
type FramerConfig struct {
	Terminator string `mapstructure:"terminator"` // line terminator in the byte stream
	Separator  string `mapstructure:"separator"`  // field separator for tuple classification
}

// NamingConfig defines the experiment file naming defaults
type NamingConfig struct {
	OutputFolder   string `mapstructure:"output_folder"`
	ExperimentType string `mapstructure:"experiment_type"`
	ModelType      string `mapstructure:"model_type"`
	Year           string `mapstructure:"year"`
	Experience     string `mapstructure:"experience"`
	Subject        string `mapstructure:"subject"`
	Trial          string `mapstructure:"trial"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// AuthConfig defines session behavior
type AuthConfig struct {
	SessionTimeout string `mapstructure:"session_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig defines the metrics endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
}

// HistoryConfig defines run history retention
type HistoryConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// ReadingsConfig defines the recent readings buffer
type ReadingsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("ENDOLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Device defaults
	v.SetDefault("device.port", "")
	v.SetDefault("device.port_patterns", []string{
		"/dev/ttyUSB*",
		"/dev/ttyACM*",
		"/dev/cu.usbserial*",
		"/dev/cu.usbmodem*",
	})
	v.SetDefault("device.read_buffer", 256)

	// Framer defaults
	v.SetDefault("framer.terminator", "\n")
	v.SetDefault("framer.separator", ",")

	// Naming defaults
	v.SetDefault("naming.output_folder", "Endo_Data")
	v.SetDefault("naming.experiment_type", "CR")
	v.SetDefault("naming.model_type", "B1")
	v.SetDefault("naming.year", "Y1")
	v.SetDefault("naming.experience", "E01")
	v.SetDefault("naming.subject", "S1")
	v.SetDefault("naming.trial", "T1")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "endolog.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Auth defaults
	v.SetDefault("auth.session_timeout", "30m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.bind_address", "127.0.0.1")

	// History defaults
	v.SetDefault("history.retention_days", 365)

	// Readings defaults
	v.SetDefault("readings.buffer_size", 1024)
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch cfg.Storage.Type {
	case "bolt", "redis":
	default:
		return fmt.Errorf("invalid storage type: %q (must be bolt or redis)", cfg.Storage.Type)
	}

	if cfg.Storage.Type == "bolt" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the bolt backend")
	}

	if cfg.Framer.Terminator == "" {
		return fmt.Errorf("framer.terminator must not be empty")
	}
	if len(cfg.Framer.Separator) != 1 {
		return fmt.Errorf("framer.separator must be a single character, got %q", cfg.Framer.Separator)
	}

	if _, err := time.ParseDuration(cfg.Auth.SessionTimeout); err != nil {
		return fmt.Errorf("invalid auth.session_timeout: %w", err)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	if cfg.Device.ReadBuffer <= 0 {
		return fmt.Errorf("device.read_buffer must be positive, got %d", cfg.Device.ReadBuffer)
	}

	if cfg.Readings.BufferSize <= 0 {
		return fmt.Errorf("readings.buffer_size must be positive, got %d", cfg.Readings.BufferSize)
	}

	return nil
}

// SessionTimeout returns the parsed session timeout with a 30 minute fallback.
func (c *Config) SessionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Auth.SessionTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}
