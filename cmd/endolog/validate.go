package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/endolog/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateDump bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Endolog configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump the full effective configuration")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	fmt.Printf("\nStorage:        %s\n", cfg.Storage.Type)
	fmt.Printf("Output folder:  %s\n", cfg.Naming.OutputFolder)
	fmt.Printf("Session expiry: %s\n", cfg.SessionTimeout())
	if cfg.Metrics.Enabled {
		fmt.Printf("Metrics:        http://%s:%d/metrics\n", cfg.Metrics.BindAddress, cfg.Metrics.Port)
	}

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		dumpConfig(cfg)
	}

	return nil
}

// dumpConfig prints the full effective configuration, section by section.
func dumpConfig(cfg *config.Config) {
	cyan := color.New(color.FgCyan, color.Bold)

	cyan.Println("\n[device]")
	fmt.Printf("  port = %q\n", cfg.Device.Port)
	fmt.Printf("  port_patterns = %v\n", cfg.Device.PortPatterns)
	fmt.Printf("  read_buffer = %d\n", cfg.Device.ReadBuffer)

	cyan.Println("\n[framer]")
	fmt.Printf("  terminator = %q\n", cfg.Framer.Terminator)
	fmt.Printf("  separator = %q\n", cfg.Framer.Separator)

	cyan.Println("\n[naming]")
	fmt.Printf("  output_folder = %q\n", cfg.Naming.OutputFolder)
	fmt.Printf("  experiment_type = %q\n", cfg.Naming.ExperimentType)
	fmt.Printf("  model_type = %q\n", cfg.Naming.ModelType)
	fmt.Printf("  year = %q\n", cfg.Naming.Year)
	fmt.Printf("  experience = %q\n", cfg.Naming.Experience)
	fmt.Printf("  subject = %q\n", cfg.Naming.Subject)
	fmt.Printf("  trial = %q\n", cfg.Naming.Trial)

	cyan.Println("\n[storage]")
	fmt.Printf("  type = %q\n", cfg.Storage.Type)
	fmt.Printf("  path = %q\n", cfg.Storage.Path)
	cyan.Println("  [storage.redis]")
	fmt.Printf("    host = %q\n", cfg.Storage.Redis.Host)
	fmt.Printf("    port = %d\n", cfg.Storage.Redis.Port)
	fmt.Printf("    password = %q\n", redactPassword(cfg.Storage.Redis.Password))
	fmt.Printf("    db = %d\n", cfg.Storage.Redis.DB)
	fmt.Printf("    pool_size = %d\n", cfg.Storage.Redis.PoolSize)
	fmt.Printf("    min_idle_conns = %d\n", cfg.Storage.Redis.MinIdleConns)
	fmt.Printf("    dial_timeout = %q\n", cfg.Storage.Redis.DialTimeout)
	fmt.Printf("    read_timeout = %q\n", cfg.Storage.Redis.ReadTimeout)
	fmt.Printf("    write_timeout = %q\n", cfg.Storage.Redis.WriteTimeout)

	cyan.Println("\n[auth]")
	fmt.Printf("  session_timeout = %q\n", cfg.Auth.SessionTimeout)

	cyan.Println("\n[logging]")
	fmt.Printf("  level = %q\n", cfg.Logging.Level)
	fmt.Printf("  format = %q\n", cfg.Logging.Format)

	cyan.Println("\n[metrics]")
	fmt.Printf("  enabled = %t\n", cfg.Metrics.Enabled)
	fmt.Printf("  port = %d\n", cfg.Metrics.Port)
	fmt.Printf("  bind_address = %q\n", cfg.Metrics.BindAddress)

	cyan.Println("\n[history]")
	fmt.Printf("  retention_days = %d\n", cfg.History.RetentionDays)

	cyan.Println("\n[readings]")
	fmt.Printf("  buffer_size = %d\n", cfg.Readings.BufferSize)
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	return map[string]bool{
		// Device
		"device.port":          true,
		"device.port_patterns": true,
		"device.read_buffer":   true,

		// Framer
		"framer.terminator": true,
		"framer.separator":  true,

		// Naming
		"naming.output_folder":   true,
		"naming.experiment_type": true,
		"naming.model_type":      true,
		"naming.year":            true,
		"naming.experience":      true,
		"naming.subject":         true,
		"naming.trial":           true,

		// Storage
		"storage.type":                 true,
		"storage.path":                 true,
		"storage.redis.host":           true,
		"storage.redis.port":           true,
		"storage.redis.password":       true,
		"storage.redis.db":             true,
		"storage.redis.pool_size":      true,
		"storage.redis.min_idle_conns": true,
		"storage.redis.dial_timeout":   true,
		"storage.redis.read_timeout":   true,
		"storage.redis.write_timeout":  true,

		// Auth
		"auth.session_timeout": true,

		// Logging
		"logging.level":  true,
		"logging.format": true,

		// Metrics
		"metrics.enabled":      true,
		"metrics.port":         true,
		"metrics.bind_address": true,

		// History
		"history.retention_days": true,

		// Readings
		"readings.buffer_size": true,
	}
}
