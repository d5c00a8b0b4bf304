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
	"github.com/datapilot-io/platform/pkg/progress"
	"github.com/datapilot-io/platform/pkg/storage"
	"github.com/datapilot-io/platform/pkg/transform"
	"github.com/datapilot-io/platform/pkg/worker"
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

	var policy *transform.Policy
	if cfg.TransformPolicyPath != "" {
		policy, err = transform.LoadPolicy(cfg.TransformPolicyPath)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to load transform policy")
		}
	}

	store := dataset.NewPipelineStore(repo, cfg.RecordBatchSize)
	publisher := progress.NewRedisPublisher(database.GetRedis())

	processor := worker.NewProcessor(store, store, blobs, publisher, policy, worker.Options{
		SampleRows:  cfg.SampleRows,
		DistinctCap: cfg.DistinctCap,
		MaxRows:     cfg.MaxRows,
		BatchSize:   cfg.RecordBatchSize,
	})

	consumer := kafka.NewConsumer(cfg.IngestionJobTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	// Health and metrics only; all work arrives through Kafka.
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", metrics.Handler()).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic":    cfg.IngestionJobTopic,
			"group_id": cfg.KafkaGroupID,
		}).Info("Ingestion Worker started")

		if err := consumer.Consume(ctx, processor.Process); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Ingestion Worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()
	logger.Log.Info("Ingestion Worker stopped")
}
