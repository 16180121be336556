package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/api"
	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/apms-ops/apms-backend-go/internal/core/refs"
	"github.com/apms-ops/apms-backend-go/internal/core/views"
	"github.com/apms-ops/apms-backend-go/internal/database"
	"github.com/apms-ops/apms-backend-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(ctx); err != nil {
			log.WithError(err).Warn("failed to close database connection")
		}
	}()

	store := db.Store()
	analyticsSvc := analytics.NewService(store, cfg.Query, log)
	viewsSvc := views.NewService(analyticsSvc, store, cfg.Query, log)
	refsSvc := refs.NewService(store, cfg.Query, log)

	router := api.NewRouter(cfg, analyticsSvc, viewsSvc, refsSvc, log)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("starting analytics server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
