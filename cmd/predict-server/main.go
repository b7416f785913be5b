package main

import (
	"context"
	"fmt"
	"io"
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
	"github.com/synaptica-ai/diseaseform/pkg/gateway/httpclient"
	"github.com/synaptica-ai/diseaseform/pkg/gateway/middleware"
	"github.com/synaptica-ai/diseaseform/pkg/observability/health"
	"github.com/synaptica-ai/diseaseform/pkg/observability/metrics"
	"github.com/synaptica-ai/diseaseform/pkg/panel"
	"github.com/synaptica-ai/diseaseform/pkg/serving"
	"github.com/synaptica-ai/diseaseform/pkg/serving/predictor"
	"github.com/synaptica-ai/diseaseform/pkg/session"
	"github.com/synaptica-ai/diseaseform/pkg/shell"
	"github.com/synaptica-ai/diseaseform/pkg/voice"
)

const serviceName = "predict-server"

type transcriber interface {
	voice.Transcriber
	Health(ctx context.Context) error
}

func main() {
	logger.Init()
	cfg := config.Load()
	metrics.Init()

	predictor.SetRuntimeLibrary(cfg.OnnxRuntimeLib)
	specs, err := panel.LoadSpecs(cfg.PanelsFile)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load panel definitions")
	}
	panels, err := panel.Build(specs, cfg.ModelDir, nil)
	if err != nil {
		logger.Log.WithError(err).WithField("model_dir", cfg.ModelDir).Fatal("Failed to load prediction models")
	}
	for _, p := range panels {
		logger.Log.WithFields(map[string]interface{}{
			"panel_id": p.ID(),
			"features": p.FeatureCount(),
			"model":    p.Classifier().Kind(),
		}).Info("Panel ready")
	}

	sessions := newSessionBackend(cfg)

	stt := newTranscriber(cfg)
	capturer := voice.NewCapturer(stt,
		voice.WithListenWindow(cfg.VoiceListenTimeout),
		voice.WithPhraseLimit(cfg.VoicePhraseLimit),
	)

	var recorders serving.Recorders
	var auditRepo *serving.Repository
	if cfg.AuditEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to audit database")
		}
		auditRepo = serving.NewRepository(db, serviceName)
		if err := auditRepo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction audit tables")
		}
		recorders = append(recorders, auditRepo)
	}
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaPredictionTopic, serviceName)
		recorders = append(recorders, producer)
	}
	var recorder serving.Recorder
	if len(recorders) > 0 {
		recorder = recorders
	}

	app, err := shell.New(panels, capturer, serving.NewPipeline(recorder, serving.WithRecordTimeout(cfg.RecordTimeout)))
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to build application shell")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	health.New(
		health.Checker{Name: "sessions", Check: sessions.Ping},
		health.Checker{Name: "transcriber", Check: stt.Health},
	).Register(router)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Session(cfg.SessionTTL, cfg.SessionSecure))
	shell.NewHandler(app, sessions, shell.HandlerOptions{
		MaxUploadBytes: cfg.MaxRequestBody,
		VoiceRPS:       cfg.VoiceRateLimit,
		VoiceBurst:     cfg.VoiceRateBurst,
	}).Register(apiRouter)
	if auditRepo != nil {
		serving.NewAuditHandler(auditRepo).Register(apiRouter)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":            cfg.ServerHost,
			"port":            cfg.ServerPort,
			"session_backend": cfg.SessionBackend,
		}).Info("Prediction server started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down prediction server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close Kafka producer")
		}
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close audit database")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close Redis")
	}
	if c, ok := stt.(io.Closer); ok {
		_ = c.Close()
	}
	for _, p := range panels {
		if c, ok := p.Classifier().(io.Closer); ok {
			_ = c.Close()
		}
	}
	if err := predictor.ShutdownRuntime(); err != nil {
		logger.Log.WithError(err).Warn("Failed to release ONNX runtime")
	}

	logger.Log.Info("Prediction server stopped")
}

func newSessionBackend(cfg *config.Config) session.Backend {
	switch cfg.SessionBackend {
	case "memory":
		return session.NewMemoryBackend(session.WithIdleTTL(cfg.SessionTTL))
	case "redis":
		client := database.GetRedis(cfg)
		backend := session.NewRedisBackend(client, cfg.SessionKeyPrefix, cfg.SessionTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpclient.Retry(ctx, 5, 500*time.Millisecond, func() error {
			return backend.Ping(ctx)
		}); err != nil {
			logger.Log.WithError(err).Warn("Redis session store not reachable yet")
		}
		return backend
	default:
		logger.Log.WithField("backend", cfg.SessionBackend).Fatal("Unknown SESSION_BACKEND")
		return nil
	}
}

func newTranscriber(cfg *config.Config) transcriber {
	if cfg.WhisperModelPath != "" {
		native, err := voice.NewNativeWhisper(cfg.WhisperModelPath, cfg.WhisperLanguage)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to load whisper model")
		}
		logger.Log.WithField("model", cfg.WhisperModelPath).Info("Using in-process whisper transcription")
		return native
	}
	client, err := voice.NewWhisperClient(cfg.WhisperURL,
		voice.WithAPI(cfg.WhisperAPI),
		voice.WithLanguage(cfg.WhisperLanguage),
		voice.WithAPIKey(cfg.WhisperAPIKey),
		voice.WithRequestTimeout(cfg.WhisperTimeout),
	)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid transcription service configuration")
	}
	logger.Log.WithFields(map[string]interface{}{
		"url": cfg.WhisperURL,
		"api": cfg.WhisperAPI,
	}).Info("Using remote whisper transcription")
	return client
}
