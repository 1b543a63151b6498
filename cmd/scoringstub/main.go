// Command scoringstub runs a stand-in scoring service for local development.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"riskdash/internal/platform/httpserver"
	"riskdash/internal/platform/logger"
	"riskdash/internal/scoringstub"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(os.Getenv("RISKDASH_LOG_LEVEL"))

	addr := os.Getenv("SCORINGSTUB_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	model := scoringstub.NewModel()
	model.Load()

	handler := scoringstub.NewHandler(model, log)
	srv := httpserver.New(addr, handler.Routes())

	log.Info("starting scoring stub", "addr", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
