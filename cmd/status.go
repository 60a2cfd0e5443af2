package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dayuer/onebot-bridge/internal/config"
	"github.com/dayuer/onebot-bridge/internal/network"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configured transports and identity backend",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("onebot-bridge status")
	fmt.Println()
	fmt.Printf("Config: %s\n", path)
	fmt.Printf("Fixture: %s\n", orNone(cfg.Platform.Fixture))
	fmt.Printf("Message format: %s\n", cfg.MessagePostFormat)
	fmt.Printf("Report self messages: %v\n", cfg.ReportSelfMessage)

	if cfg.Identity.Redis.URL != "" {
		fmt.Printf("Message ids: redis (%s, ttl %dh)\n", cfg.Identity.Redis.URL, cfg.Identity.Redis.TTLHours)
	} else {
		fmt.Printf("Message ids: memory (capacity %d)\n", cfg.Identity.Capacity)
	}

	fmt.Println()
	adapters := makeAdapters(cfg, network.Common{})
	if len(adapters) == 0 {
		fmt.Println("Transports: none enabled")
		return nil
	}
	fmt.Println("Transports:")
	for _, a := range adapters {
		fmt.Printf("  %s\n", a.Name())
	}
	if cfg.Token != "" {
		fmt.Printf("Access token: %s\n", strings.Repeat("*", 8))
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
