package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/api"
	"receipt-scan/pkg/config"
	"receipt-scan/pkg/logger"
	"receipt-scan/pkg/services/receipts"
	"receipt-scan/pkg/services/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up the analyzer
	analyzer, err := receipts.NewFromConfig(ctx, cfg, logr)
	if err != nil {
		logr.WithError(err).Fatal("failed to set up receipt analyzer")
	}

	// Set up database connection when configured
	var receiptStore api.Store
	if cfg.DatabaseURL != "" {
		repo, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			logr.WithError(err).Fatal("failed to connect to database")
		}
		defer repo.Close()
		receiptStore = repo
	}

	// Set up Gin router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(analyzer, receiptStore, cfg.MaxUploadBytes, logr)
	router := api.NewRouter(handler, cfg.CORSOrigins, logr)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		logr.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"provider": analyzer.Provider(),
			"model":    cfg.Model,
		}).Info("receipt service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.WithError(err).Error("graceful shutdown failed")
	}
}
