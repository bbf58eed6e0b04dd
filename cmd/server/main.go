package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/system"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	// Logger initialisieren
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Config laden
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully", zap.String("environment", cfg.Server.Environment))

	// Session Store verbinden
	store, err := session.NewStore(context.Background(), cfg.Session, logger)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.Error(err))
	}
	defer store.Close()

	// Lifecycle Manager
	lifecycle, err := system.NewLifecycleManager(store, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create lifecycle manager", zap.Error(err))
	}

	// System starten
	if err := lifecycle.Start(); err != nil {
		logger.Fatal("Failed to start system", zap.Error(err))
	}

	logger.Info("FleetView started successfully")

	// Graceful Shutdown auf Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := lifecycle.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("FleetView stopped successfully")
}
