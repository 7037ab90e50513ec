package main

import (
	"context"
	"fmt"
	"os"
	"time"

	clientcmd "github.com/rzbill/pulse/internal/cmd/client"
	serverrun "github.com/rzbill/pulse/internal/cmd/server"
	cfgpkg "github.com/rzbill/pulse/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := clientcmd.NewRoot(apiURL)
	rootCmd.Long = "Pulse is a single-binary real-time data distribution engine. " +
		"This CLI manages the server and basic stream operations."

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start pulse server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			httpAddr, _ := cmd.Flags().GetString("http")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			capacity, _ := cmd.Flags().GetInt("capacity")
			synthetic, _ := cmd.Flags().GetString("synthetic")
			heartbeatMs, _ := cmd.Flags().GetInt("heartbeat-ms")
			pollDSN, _ := cmd.Flags().GetString("poll-dsn")
			pollQuery, _ := cmd.Flags().GetString("poll-query")
			pollStream, _ := cmd.Flags().GetString("poll-stream")

			cfg, err := cfgpkg.Load(cfgPath)
			if err != nil {
				return err
			}
			// Flags override the file/env layers.
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			if capacity > 0 {
				cfg.StreamCapacity = capacity
			}
			if synthetic != "" {
				cfg.Synthetic = synthetic
			}
			if heartbeatMs > 0 {
				cfg.HeartbeatPeriod = time.Duration(heartbeatMs) * time.Millisecond
			}
			if pollDSN != "" {
				cfg.Poll.DSN = pollDSN
			}
			if pollQuery != "" {
				cfg.Poll.Query = pollQuery
			}
			if pollStream != "" {
				cfg.Poll.Stream = pollStream
			}

			if err := serverrun.Run(context.Background(), serverrun.Options{
				HTTPAddr: httpAddr,
				Config:   cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Config file path (JSON, YAML, or TOML)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default from config, :8080)")
	serverStartCmd.Flags().String("log-level", "", "Log level: trace|debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: json|text")
	serverStartCmd.Flags().Int("capacity", 0, "Per-stream ring buffer capacity")
	serverStartCmd.Flags().String("synthetic", "", "Synthetic producer specs, e.g. temp:1s,load:250ms")
	serverStartCmd.Flags().Int("heartbeat-ms", 0, "Liveness sweep period in ms")
	serverStartCmd.Flags().String("poll-dsn", "", "Postgres DSN for the query poller producer")
	serverStartCmd.Flags().String("poll-query", "", "SQL query the poller runs each interval")
	serverStartCmd.Flags().String("poll-stream", "", "Stream the poller appends to")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("PULSE_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
