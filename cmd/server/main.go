package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"embed-delivery/internal/access"
	"embed-delivery/internal/delivery"
	"embed-delivery/internal/embedid"
	"embed-delivery/internal/media"
	"embed-delivery/internal/platform/config"
	"embed-delivery/internal/platform/database"
	"embed-delivery/internal/platform/logger"
	"embed-delivery/internal/platform/metrics"
	"embed-delivery/internal/renditions"
	"embed-delivery/internal/transcode"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	log := logger.New(logLevel, logFormat)

	if err := run(log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	port := config.GetEnv("PORT", "8080")
	appEnv := config.GetEnv("APP_ENV", "development")

	secret, insecure, err := config.EmbedSecret(appEnv)
	if err != nil {
		return err
	}
	if insecure {
		log.Warn("EMBED_SECRET not set, using an insecure development secret", "app_env", appEnv)
	}

	layout, err := media.NewLayout(config.GetEnv("STATIC_ROOT", "public"), config.GetEnv("MEDIA_DIR", "media"))
	if err != nil {
		return err
	}
	uploadDir := config.GetEnv("UPLOAD_DIR", "uploads")
	for _, dir := range []string{filepath.Join(layout.StaticRoot, layout.MediaDir), uploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	ladder := media.DefaultLadder()
	if path := config.GetEnv("LADDER_FILE", ""); path != "" {
		if ladder, err = media.LoadLadder(path); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(config.GetEnv("DATABASE_PATH", "embed.sqlite"), database.DefaultConfig())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	met := metrics.New()

	var policies interface {
		access.PolicyStore
		access.PolicyWriter
	} = access.NewSQLitePolicyStore(db)
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		client, err := access.NewRedisClient(ctx, access.RedisConfig{
			Addr:     addr,
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			// The cache is optional; policies still come from SQLite.
			log.Warn("redis unavailable, policy cache disabled", "addr", addr, "error", err)
		} else {
			defer client.Close()
			policies = access.NewRedisPolicyCache(client, policies, config.GetEnvDuration("POLICY_CACHE_TTL", time.Minute), log)
		}
	}

	var auditor access.Auditor
	switch sink := config.GetEnv("AUDIT_SINK", "sqlite"); sink {
	case "sqlite":
		async := access.NewAsyncAuditor(access.NewSQLiteAuditSink(db), config.GetEnvInt("AUDIT_BUFFER", 1024), log, met)
		defer async.Close()
		auditor = async
	case "log":
		auditor = access.LogAuditor{Log: log}
	default:
		return fmt.Errorf("unknown AUDIT_SINK %q", sink)
	}
	gate := access.NewGate(policies, auditor, log, met, config.GetEnvDuration("POLICY_LOOKUP_TIMEOUT", access.DefaultLookupTimeout))

	repo := renditions.NewSQLiteRepository(db, log)
	codec := embedid.NewCodec(secret)
	svc := delivery.NewService(repo, layout, ladder, codec, log)

	orch := transcode.NewOrchestrator(
		transcode.NewFFmpegEncoder(config.GetEnv("FFMPEG_PATH", "ffmpeg"), log),
		repo,
		transcode.Config{
			Ladder:      ladder,
			Layout:      layout,
			Parallelism: config.GetEnvInt("TIER_PARALLELISM", 1),
			TierTimeout: config.GetEnvDuration("TIER_TIMEOUT", 10*time.Minute),
		},
		log, met,
	)
	pool := transcode.NewPool(orch,
		transcode.NewFFprobe(config.GetEnv("FFPROBE_PATH", "ffprobe")),
		repo, layout,
		transcode.PoolConfig{
			Workers:   config.GetEnvInt("TRANSCODE_WORKERS", 1),
			QueueSize: config.GetEnvInt("TRANSCODE_QUEUE", 16),
			Preview:   config.GetEnvBool("GENERATE_PREVIEW", false),
		},
		log, met,
	)
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer pool.Stop()

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met, "/metrics"))
	r.Get("/metrics", met.Handler(func() { met.SetResources(repo.ResourceCount()) }).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(delivery.RateLimit(config.GetEnvInt("RATE_LIMIT_RPM", 600)))
		delivery.NewHandler(svc, gate, log, met).Routes(r)
	})
	adminToken := config.GetEnv("ADMIN_TOKEN", "")
	if adminToken != "" {
		delivery.NewAdminHandler(svc, pool, policies, uploadDir, log).Routes(r, adminToken)
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(r, "embed-delivery"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("server starting",
		"port", port,
		"app_env", appEnv,
		"static_root", layout.StaticRoot,
		"ladder_tiers", len(ladder),
		"admin_enabled", adminToken != "",
		"log_level", config.GetEnv("LOG_LEVEL", "info"),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
