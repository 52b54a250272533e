package main

import (
	"flag"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/marrywu6/linktree/internal/config"
	"github.com/marrywu6/linktree/internal/handlers"
	"github.com/marrywu6/linktree/internal/logger"
	"github.com/marrywu6/linktree/internal/services"
	"github.com/marrywu6/linktree/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		zlog.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zlog.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error))
			return nil
		},
	}))

	handler := handlers.NewHandler(store, zlog, handlers.Config{
		MaxUploadBytes:  cfg.MaxUploadBytes,
		ImportBatchSize: cfg.ImportBatchSize,
		ImportTx:        storage.TxOptions{MaxWait: cfg.ImportTxMaxWait, Timeout: cfg.ImportTxTimeout},
		StreamTx:        storage.TxOptions{MaxWait: cfg.StreamTxMaxWait, Timeout: cfg.StreamTxTimeout},
		Checker: services.LinkCheckerConfig{
			Concurrency:    cfg.CheckerConcurrency,
			RequestsPerSec: cfg.CheckerRatePerSec,
			Timeout:        cfg.CheckerTimeout,
		},
	})
	handler.Register(e)

	zlog.Info("server starting",
		zap.String("addr", cfg.ListenAddr),
		zap.String("db", cfg.DBPath))

	if err := e.Start(cfg.ListenAddr); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
