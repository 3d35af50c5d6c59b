package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Falling back to default config: %v", err)
		cfg = config.Default()
	}

	// Flags override the environment.
	port := flag.String("port", cfg.Server.Port, "Server port")
	widgetEnv := flag.String("env", cfg.Widget.Env, "Widget environment (local, dev, stage, production)")
	appID := flag.String("app-id", cfg.Widget.AppID, "Widget application id")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Widget.Env = *widgetEnv
	cfg.Widget.AppID = *appID
	cfg.Logging.Development = *dev

	srv, err := server.NewServer(cfg, server.Options{})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	if err := srv.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Server error: %v", runErr)
	}
}
