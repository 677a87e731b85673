package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"oscbridge/internal/bridge"
	"oscbridge/internal/config"
	"oscbridge/internal/logging"
)

var (
	serveOSCPort uint16
	serveWSSPort uint16
	serveDebug   bool
)

// serveCmd runs the bridge until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OSC to secure WebSocket bridge",
	Long: `Start the bridge: listen for OSC datagrams on the OSC port and serve secure
WebSocket clients on the WSS port. Configuration comes from defaults, the YAML
config file, .env and the environment; flags given here override all of them.

Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("osc-port") {
			cfg.OSCPort = serveOSCPort
		}
		if cmd.Flags().Changed("wss-port") {
			cfg.WSSPort = serveWSSPort
		}
		if cmd.Flags().Changed("debug") {
			cfg.Debug = serveDebug
		}
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Setup structured logging
		logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
		slog.SetDefault(logger)

		logger.Info("starting_oscbridge",
			"osc_addr", cfg.OSCAddr(),
			"wss_addr", cfg.WSSAddr(),
			"queue_size", cfg.ClientQueueSize,
		)

		b := bridge.New(cfg, logger)
		if err := b.Start(); err != nil {
			logger.Error("startup_failed", "error", err.Error())
			return fmt.Errorf("startup failed: %w", err)
		}

		// Handle graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := b.Run(ctx); err != nil {
			logger.Error("server_error", "error", err.Error())
			return err
		}
		logger.Info("server_stopped_gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().Uint16Var(&serveOSCPort, "osc-port", 9000, "UDP port for incoming OSC messages (OSC_PORT)")
	serveCmd.Flags().Uint16Var(&serveWSSPort, "wss-port", 8443, "TCP port for secure WebSocket clients (WSS_PORT)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "log every relayed message (DEBUG)")

	rootCmd.AddCommand(serveCmd)
}
