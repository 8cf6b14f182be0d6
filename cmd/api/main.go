package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"golang.org/x/sync/errgroup"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/api"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/config"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/email"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/store"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/wizard"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	st := store.New(pool)
	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := st.Migrate(migrateCtx); err != nil {
		return err
	}
	logger.Info("database connected")

	// ── Catalog ───────────────────────────────────────────────────────────────
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.LoadFile(cfg.CatalogPath); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	logger.Info("catalog loaded", "version", cat.Version(), "indicators", cat.Len())

	// ── Email ─────────────────────────────────────────────────────────────────
	var mailer email.Sender
	if cfg.ResendAPIKey != "" {
		mailer = email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFromAddr, cfg.EmailFromName, cfg.BaseURL)
	} else {
		mailer = email.NewConsoleSender(logger, cfg.EmailFromAddr)
		logger.Warn("email: RESEND_API_KEY not set, alerts are logged only")
	}
	if len(cfg.AlertRecipients) == 0 {
		logger.Warn("email: ALERT_RECIPIENTS is empty, alerts will fail and be marked failed")
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	job := worker.NewJob(st, mailer, cat, cfg.AlertRecipients, logger)
	runner := worker.NewRunner(job, st, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}, logger)

	// ── Wizards ───────────────────────────────────────────────────────────────
	registry := wizard.NewRegistry(cfg.SessionTTL)
	wizardDeps := wizard.Deps{
		Subjects: st,
		Sink:     st,
		Observer: worker.NewNotifier(runner, logger), // *Runner satisfies worker.Enqueuer
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(api.Deps{
		Catalog:       cat,
		Registry:      registry,
		Wizard:        wizardDeps,
		History:       st,
		Interventions: st,
	}, api.Config{
		Env:           cfg.Env,
		AllowedOrigin: cfg.AllowedOrigin,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── Lifecycle ─────────────────────────────────────────────────────────────
	// Root context cancelled by OS signal. The group cancels it too when any
	// member fails, so one dead component stops the process.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runner.Start(ctx)
		return nil
	})

	g.Go(func() error {
		sweepRegistry(ctx, registry, cfg.SessionTTL, logger)
		return nil
	})

	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		// Give in-flight HTTP requests up to 20 seconds to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// sweepRegistry drops idle wizards until ctx is done. A zero ttl disables it.
func sweepRegistry(ctx context.Context, reg *wizard.Registry, ttl time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval(ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.Sweep(); n > 0 {
				logger.Info("wizard: expired idle assessments", "count", n, "open", reg.Len())
			}
		}
	}
}

// sweepInterval checks a quarter of the ttl, between once a second and once a
// minute. ttl must be positive.
func sweepInterval(ttl time.Duration) time.Duration {
	return max(min(ttl/4, time.Minute), time.Second)
}

// openDB opens the connection pool and verifies it is reachable.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
