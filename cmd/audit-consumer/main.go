// Command audit-consumer copies prediction events from Kafka into the
// Postgres audit trail.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/diseaseform/pkg/common/config"
	"github.com/synaptica-ai/diseaseform/pkg/common/database"
	"github.com/synaptica-ai/diseaseform/pkg/common/kafka"
	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
	"github.com/synaptica-ai/diseaseform/pkg/common/models"
	"github.com/synaptica-ai/diseaseform/pkg/observability/health"
	"github.com/synaptica-ai/diseaseform/pkg/serving"
)

func main() {
	logger.Init()
	cfg := config.Load()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Log.Fatal("KAFKA_BROKERS is required")
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to audit database")
	}
	repo := serving.NewRepository(db, "audit-consumer")
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate prediction audit tables")
	}

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaPredictionTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
			rec, err := kafka.PredictionFromEvent(event)
			if errors.Is(err, kafka.ErrNotPrediction) {
				return nil
			}
			if err != nil {
				logger.Log.WithError(err).WithField("event_id", event.ID).Warn("Skipping malformed prediction event")
				return nil
			}
			return repo.RecordPrediction(ctx, rec)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	router := mux.NewRouter()
	health.New(health.Checker{Name: "database", Check: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}).Register(router)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic": cfg.KafkaPredictionTopic,
			"group": cfg.KafkaGroupID,
			"port":  cfg.ServerPort,
		}).Info("Audit consumer started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down audit consumer...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close audit database")
	}
	logger.Log.Info("Audit consumer stopped")
}
