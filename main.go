package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "eventapi [host:port]",
	Short: "Event calendar record service",
	Long: `eventapi serves a small calendar of named, dated events over HTTP.

Events are kept in sqlite (default, ./event.db), postgres or mongo, picked
with STORE_DRIVER. Without an address argument the server listens on :8080.

Examples:
  eventapi
  eventapi 127.0.0.1:9090
  STORE_DRIVER=postgres DATABASE_URL=postgres://... eventapi --log-format console`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := ""
		if len(args) == 1 {
			addr = args[0]
		}
		return runServer(cmd.Context(), addr)
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (optional, env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
