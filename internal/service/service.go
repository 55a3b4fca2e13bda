// Package service управляет жизненным циклом сервиса мониторинга:
// собирает компоненты из конфигурации, запускает HTTP-сервер и фоновые
// циклы и корректно останавливает их по системным сигналам.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/levinOo/go-monitoring-core/internal/alert"
	"github.com/levinOo/go-monitoring-core/internal/cache"
	"github.com/levinOo/go-monitoring-core/internal/collector"
	"github.com/levinOo/go-monitoring-core/internal/config"
	"github.com/levinOo/go-monitoring-core/internal/handler"
	"github.com/levinOo/go-monitoring-core/internal/logger"
	"github.com/levinOo/go-monitoring-core/internal/ratelimit"
	"github.com/levinOo/go-monitoring-core/internal/repository"
)

const dbConnectTimeout = 5 * time.Second

// ServerComponents содержит все компоненты работающего сервиса:
// HTTP-сервер, сборщик метрик, ограничитель частоты и подключения
// к внешним хранилищам.
type ServerComponents struct {
	server    *http.Server
	collector *collector.Collector
	limiter   *ratelimit.Limiter
	dbConn    *sql.DB
	cache     io.Closer
	logger    *zap.SugaredLogger
}

// Serve инициализирует и запускает сервис мониторинга с указанной
// конфигурацией. Запускает фоновый сбор метрик, включает профилирование
// pprof и обрабатывает корректное завершение по SIGINT/SIGTERM.
//
// Возвращает ошибку, если запуск или завершение сервера завершились неудачей.
func Serve(cfg config.Config) error {
	sugar, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Sync()

	components, err := setupServer(cfg, sugar)
	if err != nil {
		return err
	}

	return runServerWithGracefulShutdown(components, cfg)
}

func setupServer(cfg config.Config, sugar *zap.SugaredLogger) (*ServerComponents, error) {
	sugar.Infow("Starting server with config",
		"address", cfg.Addr,
		"databaseConfigured", cfg.DatabaseDSN != "",
		"redisConfigured", cfg.RedisURL != "",
		"systemInterval", cfg.SystemIntervalSeconds,
		"businessInterval", cfg.BusinessIntervalSeconds,
	)

	store, cacheCloser := setupCache(cfg, sugar)
	manager := cache.NewManager(store, time.Duration(cfg.CacheTTLSeconds)*time.Second, sugar)

	limiter := ratelimit.New(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSeconds)*time.Second, sugar)
	limiter.Start()

	source, pinger, dbConn := setupDatabase(cfg, sugar)

	engine := alert.NewEngine(alert.Thresholds{
		CPUPercent:    cfg.CPUThreshold,
		MemoryPercent: cfg.MemoryThreshold,
		DiskPercent:   cfg.DiskThreshold,
		ResponseTime:  cfg.ResponseTimeThreshold,
		ErrorRate:     cfg.ErrorRateThreshold,
	}, sugar, setupChannels(cfg, sugar)...)

	coll := collector.New(source, engine,
		time.Duration(cfg.SystemIntervalSeconds)*time.Second,
		time.Duration(cfg.BusinessIntervalSeconds)*time.Second,
		sugar)
	coll.Start()

	router := handler.NewRouter(coll, engine, manager, limiter, pinger, cfg, sugar)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return &ServerComponents{
		server:    srv,
		collector: coll,
		limiter:   limiter,
		dbConn:    dbConn,
		cache:     cacheCloser,
		logger:    sugar,
	}, nil
}

// setupCache выбирает хранилище кеша. Недоступность Redis не считается
// фатальной: сервис переключается на кеш в памяти.
func setupCache(cfg config.Config, sugar *zap.SugaredLogger) (cache.Store, io.Closer) {
	if cfg.RedisURL == "" {
		sugar.Infow("Using in-memory cache")
		return cache.NewMemory(), nil
	}

	redisStore, err := cache.NewRedis(cfg.RedisURL, 2*time.Second, sugar)
	if err != nil {
		sugar.Errorw("Failed to connect to Redis, falling back to in-memory cache", "error", err)
		return cache.NewMemory(), nil
	}

	sugar.Infow("Using Redis cache")
	return redisStore, redisStore
}

// setupDatabase подключает базу данных CRM. Отсутствие или недоступность
// базы отключает бизнес-метрики, но не мешает запуску сервиса.
func setupDatabase(cfg config.Config, sugar *zap.SugaredLogger) (repository.Source, handler.Pinger, *sql.DB) {
	if cfg.DatabaseDSN == "" {
		sugar.Infow("Database not configured, business metrics disabled")
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbConnectTimeout)
	defer cancel()

	dbConn, err := repository.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		sugar.Errorw("Failed to connect to DB, business metrics disabled", "error", err)
		return nil, nil, nil
	}

	source := repository.NewDBSource(dbConn)
	return source, source, dbConn
}

func setupChannels(cfg config.Config, sugar *zap.SugaredLogger) []alert.Channel {
	var channels []alert.Channel

	if cfg.AlertWebhookURL != "" {
		channels = append(channels, alert.NewWebhookChannel(cfg.AlertWebhookURL))
		sugar.Infow("Webhook alert channel enabled")
	}
	if cfg.AlertEmailEnabled {
		channels = append(channels, alert.NewEmailChannel(cfg.SMTPAddr, cfg.AdminEmail, cfg.AdminEmail))
		sugar.Infow("Email alert channel enabled", "admin", cfg.AdminEmail)
	}
	if cfg.AlertFilePath != "" {
		channels = append(channels, alert.NewFileChannel(cfg.AlertFilePath))
		sugar.Infow("File alert channel enabled", "path", cfg.AlertFilePath)
	}
	if len(channels) == 0 {
		sugar.Warnw("No alert channels configured, alerts will only be logged")
	}

	return channels
}

func runServerWithGracefulShutdown(components *ServerComponents, cfg config.Config) error {
	server := components.server
	sugar := components.logger

	go func() {
		pprofAddr := "localhost:6060"
		sugar.Infow("pprof server started", "address", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			sugar.Errorw("pprof server error", "error", err)
		}
	}()

	serverErr := make(chan error, 1)

	go func() {
		sugar.Infow("HTTP server started", "address", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("Server error", "error", err)
			stopBackground(components)
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
		sugar.Infoln("Shutting down server...")
	}

	return gracefulShutdown(components)
}

func gracefulShutdown(components *ServerComponents) error {
	sugar := components.logger

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := components.server.Shutdown(ctx); err != nil {
		sugar.Errorw("Server shutdown error", "error", err)
	}

	stopBackground(components)

	if components.dbConn != nil {
		sugar.Infow("Closing database connection")
		if err := components.dbConn.Close(); err != nil {
			sugar.Errorw("Error closing database connection", "error", err)
		}
	}
	if components.cache != nil {
		if err := components.cache.Close(); err != nil {
			sugar.Errorw("Error closing cache connection", "error", err)
		}
	}

	sugar.Infoln("Server stopped gracefully")
	return nil
}

// stopBackground останавливает фоновые циклы и дожидается их завершения.
func stopBackground(components *ServerComponents) {
	components.collector.Stop()
	components.limiter.Stop()
}
