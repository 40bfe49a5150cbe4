package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"certgrouper/docs"
	"certgrouper/internal/config"
	"certgrouper/internal/database"
	"certgrouper/internal/database/migration"
	handlers "certgrouper/internal/http/handler"
	"certgrouper/internal/http/middleware"
	"certgrouper/internal/logging"
	"certgrouper/internal/metrics"
	"certgrouper/internal/otel"
	"certgrouper/internal/repository"
	"certgrouper/internal/repository/postgres"
	"certgrouper/internal/service"
	"certgrouper/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title			Certificate Grouper API
// @version		1.0
// @description	Groups iHasco training certificates from employee ZIP exports into one archive with a folder per course.
// @BasePath		/
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	// Batch history is optional; without DB_HOST the service only groups.
	var db *sql.DB
	var repo repository.BatchRepository
	if cfg.Database.Enabled() {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			return err
		}
		repo = postgres.NewBatchPostgres(db)
	}

	// Publishing is optional; without MINIO_ENDPOINT /batches/publish answers 503.
	var store storage.Storage
	if cfg.MinIO.Enabled() {
		store, err = storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
	}
	logger.Info("features_configured",
		slog.Bool("history_enabled", repo != nil),
		slog.Bool("publish_enabled", store != nil),
		slog.Int("max_archives", cfg.Grouper.MaxArchives),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	batchMetrics, err := metrics.NewBatchMetrics(reg)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	svc := service.NewBatchService(store, repo, service.Options{
		MaxArchives:    cfg.Grouper.MaxArchives,
		OutputFilename: cfg.Grouper.OutputFilename,
		PresignExpiry:  cfg.MinIO.PresignExpiry(),
		Logger:         logger,
		Observer:       batchMetrics,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.Grouper.MaxUploadMB * 1024 * 1024,
	})

	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(logger))
	app.Use(httpMetrics.Handler())
	app.Use(middleware.Deadline(cfg.Grouper.ProcessTimeout()))

	handlers.RegisterRoutes(app, db, svc, reg)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_starting", slog.String("addr", ":"+cfg.Port), slog.String("host", cfg.AppHost))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
