package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"navigation-platform/internal/audit"
	"navigation-platform/internal/auth"
	"navigation-platform/internal/config"
	"navigation-platform/internal/history"
	"navigation-platform/internal/httpapi"
	"navigation-platform/internal/metering"
	"navigation-platform/internal/provider"
	"navigation-platform/internal/reporting"
	"navigation-platform/internal/reroute"
	"navigation-platform/internal/session"
	"navigation-platform/pkg/logger"
	"navigation-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Routing providers: the remote directions API is the platform default;
	// the onboard provider is selectable per session once tiles ship.
	remote := provider.NewRemoteProvider(
		cfg.Directions.BaseURL,
		logger.WithComponent(log, "provider"),
		provider.WithHTTPClient(&http.Client{Timeout: cfg.Directions.RequestTimeout}),
		provider.WithResponseCache(rdb, cfg.Directions.CacheTTL),
	)
	onboard := provider.NewOnboardProvider(os.Getenv("ONBOARD_TILE_PATH"))

	historySvc := history.NewService(db)
	auditSvc := audit.NewService(audit.NewMemoryRepo())

	sessions := session.NewManager(session.ManagerConfig{
		DefaultProvider: remote,
		CustomProviders: map[string]provider.RoutingProvider{
			remote.Name():  remote,
			onboard.Name(): onboard,
		},
		Redis:       rdb,
		StormLimit:  cfg.Reroute.StormLimit,
		StormWindow: cfg.Reroute.StormWindow,
		RerouteOptions: reroute.Options{
			AvoidManeuverSeconds: cfg.Reroute.AvoidManeuverSeconds,
		},
	}, log, history.NewRecorder(historySvc))

	h := httpapi.Handlers{
		Auth:     authManager,
		Sessions: sessions,
		History:  historySvc,
		Reports:  reporting.NewService(reporting.NewPostgresRepo(db)),
		Metering: metering.NewService(&metering.MemoryRepo{}),
		Audit:    auditSvc,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
