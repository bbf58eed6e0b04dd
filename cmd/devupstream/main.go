// Command devupstream serves a local stand-in for the upstream authentication
// API, for use with the "local" endpoint option.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KevinKickass/FleetView/internal/api/rest"
	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/devauth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	hashPassword := flag.String("hash-password", "", "print the argon2id hash of a password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := devauth.NewPasswordHasher().Hash(*hashPassword)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.IsProduction() {
		logger.Fatal("devupstream refuses to run with server.environment=production")
	}

	svc, err := devauth.NewService(cfg.DevUpstream, logger)
	if err != nil {
		logger.Fatal("Failed to create auth service", zap.Error(err))
	}

	// Ohne konfigurierte User einen Demo-User anlegen
	if svc.UserCount() == 0 {
		demo := config.DevUser{Username: "demo", Email: "demo@fleetview.local", Role: "fleet manager"}
		if err := svc.AddUserWithPassword(demo, "demo"); err != nil {
			logger.Fatal("Failed to seed demo user", zap.Error(err))
		}
		logger.Warn("No users configured, seeded demo/demo")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), rest.LoggerMiddleware(logger), rest.CORSMiddleware())
	svc.Register(router, cfg.API.LoginPath, cfg.API.UserDetailsPath)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.DevUpstream.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("Dev upstream listening",
			zap.String("address", srv.Addr),
			zap.String("login_path", cfg.API.LoginPath),
			zap.String("user_details_path", cfg.API.UserDetailsPath),
			zap.Int("users", svc.UserCount()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Dev upstream failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}
