package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/notifyhub/mailqueue/internal/api"
	"github.com/notifyhub/mailqueue/internal/config"
	"github.com/notifyhub/mailqueue/internal/db"
	"github.com/notifyhub/mailqueue/internal/metrics"
	"github.com/notifyhub/mailqueue/internal/notify"
	"github.com/notifyhub/mailqueue/internal/queue"
	"github.com/notifyhub/mailqueue/internal/ratelimiter"
	"github.com/notifyhub/mailqueue/internal/render"
	"github.com/notifyhub/mailqueue/internal/repository"
	"github.com/notifyhub/mailqueue/internal/transport"
	"github.com/notifyhub/mailqueue/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate("migrations", cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo := repository.NewPgMessageRepository(pool)
	limiter := ratelimiter.New(cfg.RateLimitPerCategory)
	tr := transport.NewThrottled(newTransport(cfg, logger), limiter)

	opts := queue.Options{MaxAttempts: cfg.MaxAttempts}
	if cfg.RetryDelayEnabled() {
		opts.RetryDelay = queue.ExponentialRetryDelay(cfg.RetryDelayInitial, cfg.RetryDelayMax)
	}
	mgr := queue.NewManager(repo, tr, logger.Named("queue"), opts)
	m.Attach(mgr)

	renderer := render.New(cfg.TemplateDir, cfg.SiteName, cfg.SiteURL)
	notifier := notify.NewNotifier(mgr, renderer, repository.NewPgMilestoneRepository(pool), cfg.SiteURL, logger.Named("notify"))

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workers := worker.NewPool(
		worker.NewDrainer(mgr, cfg.BatchSize, cfg.DrainInterval, logger.Named("drainer"), m.ObserveBatch),
		worker.NewSweeper(mgr, cfg.StuckAfter, cfg.RetentionDays, cfg.SweepInterval, logger.Named("sweeper"), m.SetStats),
	)
	workers.Start(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Queue:          mgr,
		Notifier:       notifier,
		DB:             pool,
		Gatherer:       reg,
		Logger:         logger,
		BatchSize:      cfg.BatchSize,
		RetentionDays:  cfg.RetentionDays,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		OnBatch:        m.ObserveBatch,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("transport", cfg.Transport))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the drain and sweep clocks.
	cancelWorkers()

	// 3. Wait for a running drain to record the outcome of its current message.
	workers.Wait()

	logger.Info("server stopped cleanly")
}

func newTransport(cfg *config.Config, logger *zap.Logger) transport.Transport {
	if cfg.Transport == "webhook" {
		logger.Info("using webhook transport", zap.String("url", cfg.WebhookURL))
		return transport.NewWebhookTransport(cfg.WebhookURL, cfg.WebhookTimeout)
	}
	logger.Info("using smtp transport", zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
	return transport.NewSMTPTransport(transport.SMTPConfig{
		Host:               cfg.SMTPHost,
		Port:               cfg.SMTPPort,
		Username:           cfg.SMTPUsername,
		Password:           cfg.SMTPPassword,
		From:               cfg.SMTPFrom,
		FromName:           cfg.SMTPFromName,
		Timeout:            cfg.SMTPTimeout,
		InsecureSkipVerify: cfg.SMTPInsecureTLS,
	})
}
