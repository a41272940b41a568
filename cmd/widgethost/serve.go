package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/server"
)

var (
	servePort    string
	serveHost    string
	serveWidgets string
	serveDB      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the widget host",
	Long:  `Scans the widgets directory, restores the widgets that were running at the last shutdown and serves the HTTP and WebSocket API until interrupted.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (overrides PORT)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides HOST)")
	serveCmd.Flags().StringVar(&serveWidgets, "widgets", "", "Widgets directory (overrides WIDGETS_DIR)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "State database path (overrides STATE_DB_PATH)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Server.Port = servePort
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if serveWidgets != "" {
		cfg.Widgets.Dir = serveWidgets
	}
	if serveDB != "" {
		cfg.State.DBPath = serveDB
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, logger, version)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	return nil
}
