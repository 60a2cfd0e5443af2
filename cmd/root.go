package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "onebot-bridge",
	Short: "onebot-bridge: OneBot 11 adapter for a chat platform session",
	Long: "onebot-bridge translates platform session callbacks into OneBot 11 events, " +
		"fans them out over HTTP and WebSocket transports, and routes OneBot actions back to the platform.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.onebot-bridge/config.yaml)")
}
