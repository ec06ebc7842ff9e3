package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/faceattend/internal/api"
	"github.com/your-org/faceattend/internal/api/handlers"
	"github.com/your-org/faceattend/internal/api/ws"
	"github.com/your-org/faceattend/internal/config"
	"github.com/your-org/faceattend/internal/observability"
	"github.com/your-org/faceattend/internal/queue"
	"github.com/your-org/faceattend/internal/service"
	"github.com/your-org/faceattend/internal/storage"
	"github.com/your-org/faceattend/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attendance API",
		"port", cfg.Server.Port,
		"store", cfg.Database.Driver,
		"detector", cfg.Vision.Detector,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Vision.Detector == "retinaface" {
		if err := vision.InitRuntime(cfg.Vision.ONNXLibrary); err != nil {
			slog.Error("init onnx runtime", "error", err)
			os.Exit(1)
		}
		defer vision.DestroyRuntime()
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	photos, err := storage.OpenPhotos(ctx, cfg.MinIO)
	if err != nil {
		slog.Error("open photo archive", "error", err)
		os.Exit(1)
	}

	checks := map[string]handlers.Check{
		"store":  store.Ping,
		"photos": photos.Ping,
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Without NATS, attendance goes straight to this process's clients.
	var events service.EventPublisher = hub
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Error("ensure nats streams", "error", err)
			os.Exit(1)
		}
		events = producer
		checks["nats"] = func(context.Context) error { return producer.Ping() }

		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create attendance consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		if err := consumer.ConsumeAttendance(ctx, "api-"+uuid.NewString()[:8], hub.PublishAttendance); err != nil {
			slog.Error("start attendance consumer", "error", err)
			os.Exit(1)
		}
	}

	svc, err := service.Build(cfg, store, photos, events)
	if err != nil {
		slog.Error("build service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		AdminKey:     cfg.Server.AdminKey,
		KioskKey:     cfg.Server.KioskKey,
		Service:      svc,
		Hub:          hub,
		MaxBodyBytes: api.BodyLimitFor(cfg.Vision.MaxImageBytes),
		Checks:       checks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}
