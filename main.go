package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"task-board/api"
	"task-board/board"
	"task-board/config"
	"task-board/local"
	"task-board/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	tp := api.InstallTracerProvider()

	if cfg.RemoteProvision && cfg.StorageConnectionString != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout)
		if err := storage.Provision(ctx, cfg.StorageConnectionString, cfg.TasksTable, cfg.ChangeQueue, logger); err != nil {
			logger.WithError(err).Warn("storage provisioning failed; using remote as-is")
		}
		cancel()
	}

	tableStore, err := storage.New(cfg.StorageOptions(), logger)
	if err != nil {
		logger.WithError(err).Error("remote store misconfigured; running without it")
		tableStore, _ = storage.New(storage.Options{Board: cfg.BoardName}, logger)
	}
	var remote board.Remote = tableStore
	var rc *redis.Client
	if opts := cfg.RedisOptions(); opts != nil && tableStore.Configured() {
		rc = redis.NewClient(opts)
		remote = storage.NewCache(tableStore, rc, cfg.CacheTTL, cfg.BoardName)
	}

	if cfg.DataDir == "" {
		logger.Warn("no data directory; board changes will not survive a restart")
	}
	ctrl := board.New(remote, local.New(cfg.DataDir, logger), cfg.SyncOptions(), logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding},
	}))
	api.Register(e, ctrl, logger)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout)
		defer cancel()
		ctrl.Start(ctx)
	}()

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	ctrl.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("tracer shutdown")
	}
	if rc != nil {
		_ = rc.Close()
	}
}
