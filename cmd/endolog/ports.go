package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/endolog/internal/config"
	"github.com/goodtune/endolog/internal/device"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List candidate serial device ports",
	Long:  `Scan the configured port patterns and list every matching serial device.`,
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
	manager := device.NewManager(device.FromConfig(cfg.Device), nil, logger)

	ports, err := manager.Detect()
	if err != nil {
		color.New(color.FgYellow).Println("⚠️  No serial devices detected")
		fmt.Println("\nScanned patterns:")
		for _, pattern := range cfg.Device.PortPatterns {
			fmt.Printf("  - %s\n", pattern)
		}
		return nil
	}

	green := color.New(color.FgGreen)
	fmt.Printf("Found %d candidate port(s):\n", len(ports))
	for i, port := range ports {
		if i == 0 {
			green.Printf("  %s  (would be used)\n", port)
		} else {
			fmt.Printf("  %s\n", port)
		}
	}
	return nil
}
