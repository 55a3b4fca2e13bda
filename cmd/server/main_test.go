package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/levinOo/go-monitoring-core/internal/alert"
	"github.com/levinOo/go-monitoring-core/internal/cache"
	"github.com/levinOo/go-monitoring-core/internal/collector"
	"github.com/levinOo/go-monitoring-core/internal/config"
	"github.com/levinOo/go-monitoring-core/internal/handler"
	"github.com/levinOo/go-monitoring-core/internal/ratelimit"
)

func TestServer(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		method string
		want   int
	}{
		{
			name:   "HealthHandler / health report",
			url:    "/monitoring/health",
			method: http.MethodGet,
			want:   http.StatusOK,
		},
		{
			name:   "SystemMetricsHandler / default period",
			url:    "/monitoring/metrics/system",
			method: http.MethodGet,
			want:   http.StatusOK,
		},
		{
			name:   "SystemMetricsHandler / hours out of range",
			url:    "/monitoring/metrics/system?hours=48",
			method: http.MethodGet,
			want:   http.StatusBadRequest,
		},
		{
			name:   "AlertsHandler / empty list",
			url:    "/monitoring/alerts",
			method: http.MethodGet,
			want:   http.StatusOK,
		},
		{
			name:   "ResolveAlertHandler / unknown alert",
			url:    "/monitoring/alerts/missing_1/resolve",
			method: http.MethodPost,
			want:   http.StatusNotFound,
		},
		{
			name:   "TestAlertHandler / send test alert",
			url:    "/monitoring/test-alert",
			method: http.MethodPost,
			want:   http.StatusOK,
		},
	}

	cfg := config.Config{
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

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
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

			r := handler.NewRouter(coll, engine, manager, limiter, nil, cfg, sugar)

			req := httptest.NewRequest(tt.method, tt.url, nil)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("got status: %d, want: %d", rec.Code, tt.want)
			}
		})
	}
}
