// Package config управляет конфигурацией сервиса мониторинга.
// Значения задаются флагами командной строки; переменные окружения,
// если установлены, имеют приоритет над флагами.
package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит все параметры сервиса мониторинга.
// Имена переменных окружения указаны в тегах env.
type Config struct {
	// Addr задает адрес и порт HTTP-сервера (например, "localhost:8080").
	Addr string `env:"ADDRESS"`

	// DatabaseDSN содержит строку подключения к базе данных CRM.
	// Пустое значение отключает сбор бизнес-метрик.
	DatabaseDSN string `env:"DATABASE_DSN"`

	// RedisURL содержит адрес Redis для кеша (redis://host:port/db).
	// Пустое значение переключает кеш на хранилище в памяти.
	RedisURL string `env:"REDIS_URL"`

	// RateLimitRequests задает число запросов, разрешённых одному
	// клиенту за окно RateLimitWindowSeconds.
	RateLimitRequests      int `env:"RATE_LIMIT_REQUESTS"`
	RateLimitWindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS"`

	// RateLimitExcluded перечисляет пути, не подпадающие под лимит.
	RateLimitExcluded []string `env:"RATE_LIMIT_EXCLUDED" envSeparator:","`

	// CacheTTLSeconds задает срок жизни кешированных ответов по умолчанию.
	CacheTTLSeconds int `env:"CACHE_TTL_SECONDS"`

	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE"`

	// SystemIntervalSeconds задает период снятия системных метрик.
	SystemIntervalSeconds int `env:"SYSTEM_INTERVAL_SECONDS"`

	// BusinessIntervalSeconds задает период снятия бизнес-метрик.
	BusinessIntervalSeconds int `env:"BUSINESS_INTERVAL_SECONDS"`

	// Пороги оповещений. Нулевое значение отключает соответствующую проверку.
	CPUThreshold          float64 `env:"CPU_THRESHOLD"`
	MemoryThreshold       float64 `env:"MEMORY_THRESHOLD"`
	DiskThreshold         float64 `env:"DISK_THRESHOLD"`
	ResponseTimeThreshold float64 `env:"RESPONSE_TIME_THRESHOLD"`
	ErrorRateThreshold    float64 `env:"ERROR_RATE_THRESHOLD"`

	// AlertEmailEnabled включает доставку оповещений почтой.
	// Требует заполненных AdminEmail и SMTPAddr.
	AlertEmailEnabled bool   `env:"ALERT_EMAIL_ENABLED"`
	AdminEmail        string `env:"ADMIN_EMAIL"`
	SMTPAddr          string `env:"SMTP_ADDR"`

	// AlertWebhookURL содержит URL входящего веб-хука чата.
	AlertWebhookURL string `env:"ALERT_WEBHOOK_URL"`

	// AlertFilePath указывает путь JSON-журнала оповещений.
	AlertFilePath string `env:"ALERT_FILE_PATH"`

	// Version возвращается в ответе health-эндпоинта.
	Version string `env:"APP_VERSION"`
}

// GetConfig загружает и возвращает конфигурацию сервиса.
// Сначала обрабатываются флаги командной строки, затем переменные
// окружения; переменные окружения имеют приоритет.
//
// Поддерживаемые флаги:
//
//	-a: адрес сервера (по умолчанию "localhost:8080")
//	-d: строка подключения к базе данных CRM (по умолчанию "")
//	-redis: адрес Redis (по умолчанию "")
//	-rl: лимит запросов за окно (по умолчанию 60)
//	-rlw: окно лимита в секундах (по умолчанию 60)
//	-ttl: срок жизни кеша в секундах (по умолчанию 300)
//	-si: период системных метрик в секундах (по умолчанию 30)
//	-bi: период бизнес-метрик в секундах (по умолчанию 300)
func GetConfig() (Config, error) {
	var cfg Config

	flag.StringVar(&cfg.Addr, "a", "localhost:8080", "HTTP server address")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "CRM database DSN")
	flag.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for the cache")
	flag.IntVar(&cfg.RateLimitRequests, "rl", 60, "requests allowed per rate limit window")
	flag.IntVar(&cfg.RateLimitWindowSeconds, "rlw", 60, "rate limit window in seconds")
	flag.IntVar(&cfg.CacheTTLSeconds, "ttl", 300, "default cache TTL in seconds")
	flag.IntVar(&cfg.SystemIntervalSeconds, "si", 30, "system metrics interval in seconds")
	flag.IntVar(&cfg.BusinessIntervalSeconds, "bi", 300, "business metrics interval in seconds")
	flag.StringVar(&cfg.AlertWebhookURL, "webhook", "", "alert webhook URL")
	flag.StringVar(&cfg.AlertFilePath, "alert-file", "", "alert JSON log path")
	flag.Parse()

	cfg.RateLimitExcluded = []string{"/monitoring/health"}
	cfg.DefaultPageSize = 10
	cfg.MaxPageSize = 100
	cfg.CPUThreshold = 80
	cfg.MemoryThreshold = 85
	cfg.DiskThreshold = 90
	cfg.ResponseTimeThreshold = 2.0
	cfg.ErrorRateThreshold = 5.0
	cfg.Version = "1.0.0"

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate проверяет согласованность конфигурации. Вызывается один раз
// при старте; после успешной проверки конфигурация не изменяется.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("server address must not be empty")
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit requests must be positive, got %d", c.RateLimitRequests)
	}
	if c.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %d", c.RateLimitWindowSeconds)
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %d", c.CacheTTLSeconds)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive, got default=%d max=%d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max %d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.SystemIntervalSeconds <= 0 || c.BusinessIntervalSeconds <= 0 {
		return fmt.Errorf("collection intervals must be positive, got system=%d business=%d",
			c.SystemIntervalSeconds, c.BusinessIntervalSeconds)
	}
	if c.CPUThreshold < 0 || c.MemoryThreshold < 0 || c.DiskThreshold < 0 ||
		c.ResponseTimeThreshold < 0 || c.ErrorRateThreshold < 0 {
		return errors.New("alert thresholds must not be negative")
	}
	if c.AlertEmailEnabled && (c.AdminEmail == "" || c.SMTPAddr == "") {
		return errors.New("email alerts require ADMIN_EMAIL and SMTP_ADDR")
	}
	return nil
}
