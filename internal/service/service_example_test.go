package service_test

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"go.uber.org/zap"

	"github.com/levinOo/go-monitoring-core/internal/alert"
	"github.com/levinOo/go-monitoring-core/internal/cache"
	"github.com/levinOo/go-monitoring-core/internal/collector"
	"github.com/levinOo/go-monitoring-core/internal/config"
	"github.com/levinOo/go-monitoring-core/internal/handler"
	"github.com/levinOo/go-monitoring-core/internal/ratelimit"
)

func exampleConfig() config.Config {
	return config.Config{
		Addr:                    "localhost:8080",
		RateLimitRequests:       60,
		RateLimitWindowSeconds:  60,
		RateLimitExcluded:       []string{"/monitoring/health"},
		CacheTTLSeconds:         300,
		DefaultPageSize:         10,
		MaxPageSize:             100,
		SystemIntervalSeconds:   30,
		BusinessIntervalSeconds: 300,
		CPUThreshold:            80,
		MemoryThreshold:         85,
		DiskThreshold:           90,
		ResponseTimeThreshold:   2.0,
		ErrorRateThreshold:      5.0,
		Version:                 "1.0.0",
	}
}

func exampleRouter(cfg config.Config) http.Handler {
	sugar := zap.NewNop().Sugar()

	engine := alert.NewEngine(alert.Thresholds{
		CPUPercent:    cfg.CPUThreshold,
		MemoryPercent: cfg.MemoryThreshold,
		DiskPercent:   cfg.DiskThreshold,
		ResponseTime:  cfg.ResponseTimeThreshold,
		ErrorRate:     cfg.ErrorRateThreshold,
	}, sugar)

	coll := collector.New(nil, engine, time.Hour, time.Hour, sugar)
	manager := cache.NewManager(cache.NewMemory(), time.Duration(cfg.CacheTTLSeconds)*time.Second, sugar)
	limiter := ratelimit.New(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSeconds)*time.Second, sugar)

	return handler.NewRouter(coll, engine, manager, limiter, nil, cfg, sugar)
}

// Example_healthCheck демонстрирует проверку здоровья сервиса через API.
func Example_healthCheck() {
	ts := httptest.NewServer(exampleRouter(exampleConfig()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/monitoring/health")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}

// Example_testAlert демонстрирует отправку тестового оповещения через API.
func Example_testAlert() {
	ts := httptest.NewServer(exampleRouter(exampleConfig()))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/monitoring/test-alert", "application/json", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}
