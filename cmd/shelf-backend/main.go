package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/shelf/internal/backend"
	"github.com/birbparty/shelf/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	tcfg := telemetry.NewConfigFromEnv()
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		tcfg.ServiceName = "shelf-backend"
	}
	if err := telemetry.Init(tcfg); err != nil {
		telemetry.WithError(err).Fatal("Failed to initialize telemetry")
	}
	log := telemetry.L()

	cfg, err := backend.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	srv, err := backend.New(cfg, telemetry.DefaultMetrics(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server forced to shutdown")
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to flush telemetry")
		}
	}()

	telemetry.WithFields(logrus.Fields{
		"addr":    cfg.Addr(),
		"version": tcfg.ServiceVersion,
	}).Info("shelf backend listening")

	if err := srv.Listen(); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
