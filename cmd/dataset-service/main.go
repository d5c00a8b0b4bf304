package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/datapilot-io/platform/pkg/common/config"
	"github.com/datapilot-io/platform/pkg/common/database"
	"github.com/datapilot-io/platform/pkg/common/kafka"
	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/dataset"
	"github.com/datapilot-io/platform/pkg/observability/metrics"
	"github.com/datapilot-io/platform/pkg/realtime"
	"github.com/datapilot-io/platform/pkg/storage"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := dataset.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate dataset tables")
	}

	blobs, err := storage.New(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to initialize blob storage")
	}

	producer := kafka.NewProducer(cfg.IngestionJobTopic)
	defer producer.Close()

	validator := dataset.NewValidator(cfg.AllowedExtensions, cfg.MaxUploadBytes)
	svc := dataset.NewService(validator, repo, blobs, producer, dataset.ServiceConfig{
		EnqueueRetries:      cfg.EnqueueRetries,
		EnqueueRetryBackoff: cfg.EnqueueRetryBackoff,
		PreviewLimit:        cfg.PreviewLimit,
	})
	handler := dataset.NewHTTPHandler(svc, cfg.MaxRequestBody)

	hub := realtime.NewHub(database.GetRedis())
	wsHandler := realtime.NewHTTPHandler(hub)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)
	wsHandler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := hub.Run(ctx); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("realtime hub stopped")
		}
	}()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Dataset Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Dataset Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()
	logger.Log.Info("Dataset Service stopped")
}
