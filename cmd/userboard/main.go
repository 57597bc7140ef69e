// Command userboard serves the user board API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/user_board/internal/app/runtime"
	"github.com/R3E-Network/user_board/internal/config"
	"github.com/R3E-Network/user_board/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	envFile := flag.String("env", ".env", "Path to a .env file")
	host := flag.String("host", "", "Listen host (overrides SERVER_HOST)")
	port := flag.Int("port", 0, "Listen port (overrides PORT)")
	driver := flag.String("driver", "", "Database driver: memory or postgres (overrides DATABASE_DRIVER)")
	logLevel := flag.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.LoadWithOverrides(*configPath, *envFile, config.Overrides{
		Host:     *host,
		Port:     *port,
		Driver:   *driver,
		LogLevel: *logLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("userboard", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise application")
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		log.WithError(runErr).Error("Server stopped")
	}

	log.Info("Shutting down")
	if err := application.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}
