package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/welldanyogia/webrana-cms-backend/internal/api"
	"github.com/welldanyogia/webrana-cms-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-cms-backend/internal/database"
	"github.com/welldanyogia/webrana-cms-backend/internal/events"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout        = 15 * time.Second
	rateLimitCleanupPeriod = time.Minute
	// multipart framing on top of the file itself
	uploadOverhead = 1 << 20
)

func newServeCommand(rt *runtime) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the retention scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), rt, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "run database migrations before serving")
	return cmd
}

func serve(ctx context.Context, rt *runtime, migrate bool) error {
	cfg, log := rt.cfg, rt.logger
	log.Info("Starting Webrana CMS attachment service...")
	cfg.LogConfig(log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := database.Migrate(a.db); err != nil {
			return err
		}
	}

	go a.hub.Run(ctx)

	if cfg.CleanupEnabled {
		a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	} else {
		log.Info("retention scheduler disabled; sweeps run only on demand")
	}

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRequests), cfg.RateLimitBurst)
		go limiter.RunCleanup(ctx, rateLimitCleanupPeriod)
	}

	origins := events.ParseOrigins(cfg.AllowedOrigins)
	e := api.NewRouter(&api.RouterConfig{
		DB:             a.db,
		Attachments:    a.service,
		Content:        a.rewriter,
		Sweeper:        a.scheduler,
		Hub:            a.hub,
		Upgrader:       events.NewSecureUpgrader(origins, a.security),
		HealthChecks:   a.healthChecks(),
		Logger:         log,
		Security:       a.security,
		APIKey:         cfg.APIKey,
		AllowedOrigins: origins,
		AppEnv:         cfg.AppEnv,
		RateLimiter:    limiter,
		BodyLimit:      fmt.Sprintf("%dK", (cfg.MaxUploadSize+uploadOverhead)/1024),
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.Any("error", err))
	}

	log.Info("Server stopped")
	return nil
}
