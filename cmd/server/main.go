package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"orderdesk/backend/internal/cache"
	"orderdesk/backend/internal/config"
	"orderdesk/backend/internal/httpapi"
	"orderdesk/backend/internal/invoice"
	"orderdesk/backend/internal/service"
	"orderdesk/backend/internal/store"
	"orderdesk/backend/internal/store/memory"
	pgstore "orderdesk/backend/internal/store/postgres"
)

func main() {
	log := newLogger()
	cfg := config.Load()

	// Token verification runs against AUTH_SECRET; a forgotten secret would
	// silently fall back to a publicly known default. Only the in-memory dev
	// mode may run without a real one.
	if err := validateAuthSecret(cfg.AuthSecret); err != nil {
		if cfg.DatabaseURL != "" {
			log.WithError(err).Fatal("invalid auth configuration")
		}
		log.WithError(err).Warn("weak auth secret accepted for in-memory dev mode only")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info("repository: in-memory")
	}

	daySalesCache := cache.DaySalesCache(cache.NoopDaySalesCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDaySalesCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, using noop cache")
		} else {
			daySalesCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("cache: redis")
		}
	} else {
		log.Info("cache: noop")
	}

	var renderer invoice.Renderer = invoice.LocalRenderer{}
	if cfg.InvoiceRendererURL != "" {
		renderer = invoice.NewHTTPRenderer(cfg.InvoiceRendererURL)
		log.Info("invoice renderer: http")
	} else {
		log.Info("invoice renderer: local")
	}

	svc := service.New(repo, renderer, daySalesCache, log, cfg.Location(), cfg.InvoiceDir, time.Duration(cfg.DaySalesCacheTTLSeconds)*time.Second)
	auth := httpapi.NewAuthParser(cfg.AuthSecret)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	recomputeCtx, stopRecompute := context.WithCancel(context.Background())
	defer stopRecompute()
	if cfg.DaySalesRecomputeMins > 0 {
		go runDaySalesRecompute(recomputeCtx, svc, time.Duration(cfg.DaySalesRecomputeMins)*time.Minute, log)
		log.WithField("minutes", cfg.DaySalesRecomputeMins).Info("day sales recompute ticker enabled")
	}

	go func() {
		log.WithField("addr", cfg.Address()).Info("order backoffice listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stopRecompute()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("close error")
		}
	}

	log.Info("server stopped")
}

func validateAuthSecret(secret string) error {
	if len(secret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
	return log
}

// runDaySalesRecompute keeps the current business day's aggregate fresh so
// reads do not depend on someone calling the calculate endpoint.
func runDaySalesRecompute(ctx context.Context, svc *service.Service, every time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := svc.RecomputeToday(tickCtx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("day sales recompute failed")
			}
		}
	}
}
