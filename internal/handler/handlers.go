// Package handler содержит HTTP-поверхность сервиса мониторинга:
// маршрутизатор, обработчики эндпоинтов /monitoring и middleware
// журналирования, ограничения частоты и записи API-метрик.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/levinOo/go-monitoring-core/internal/alert"
	"github.com/levinOo/go-monitoring-core/internal/cache"
	"github.com/levinOo/go-monitoring-core/internal/collector"
	"github.com/levinOo/go-monitoring-core/internal/config"
	"github.com/levinOo/go-monitoring-core/internal/models"
	"github.com/levinOo/go-monitoring-core/internal/ratelimit"
)

const dbPingTimeout = 2 * time.Second

// goodConversionRate задаёт долю оплаченных счетов в процентах,
// выше которой конверсия считается индикатором здоровья бизнеса.
const goodConversionRate = 10

// Pinger проверяет доступность базы данных CRM для health-отчёта.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter собирает маршрутизатор эндпоинтов /monitoring.
// pinger может быть nil, если база данных не настроена.
func NewRouter(c *collector.Collector, engine *alert.Engine, manager *cache.Manager, limiter *ratelimit.Limiter, pinger Pinger, cfg config.Config, sugar *zap.SugaredLogger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestLogger(sugar))
	r.Use(RateLimit(limiter, cfg.RateLimitExcluded))
	r.Use(RecordAPI(c))

	r.Route("/monitoring", func(r chi.Router) {
		r.Get("/health", HealthHandler(c, pinger, cfg))
		r.Get("/metrics/system", SystemMetricsHandler(c))
		r.Get("/metrics/api", APIMetricsHandler(c))
		r.Get("/metrics/business", BusinessMetricsHandler(c))
		r.Get("/alerts", AlertsHandler(engine, manager, cfg))
		r.Get("/alerts/history", AlertHistoryHandler(engine))
		r.Post("/alerts/{alertID}/resolve", ResolveAlertHandler(engine, manager))
		r.Get("/performance/summary", PerformanceSummaryHandler(c, engine, manager))
		r.Post("/test-alert", TestAlertHandler(engine))
	})

	return r
}

// HealthHandler возвращает сводный отчёт о здоровье всех подсистем.
// Код 200 отдаётся только при итоговом статусе healthy; любая
// деградация, включая warning, даёт 503. Статус unknown итог не портит:
// свежезапущенный процесс без собранных данных считается здоровым.
func HealthHandler(c *collector.Collector, pinger Pinger, cfg config.Config) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		report := models.HealthReport{
			Timestamp:     time.Now(),
			System:        systemHealth(c, cfg),
			Database:      databaseHealth(r.Context(), pinger),
			API:           apiHealth(c, cfg),
			Business:      businessHealth(c),
			UptimeSeconds: c.Uptime(),
			Version:       cfg.Version,
			SkippedCycles: c.SkippedCycles(),
		}

		report.Status = overallStatus(report.System, report.Database, report.API, report.Business)

		code := http.StatusOK
		if report.Status != models.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(rw, code, report)
	}
}

// SystemMetricsHandler возвращает снимки хоста за период.
// Параметр hours принимает значения от 1 до 24, по умолчанию 1.
func SystemMetricsHandler(c *collector.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		hours, err := parseHours(r, 1, 24)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}

		metrics := c.SystemMetrics(hours)
		writeJSON(rw, http.StatusOK, map[string]any{
			"metrics":      metrics,
			"count":        len(metrics),
			"period_hours": hours,
		})
	}
}

// APIMetricsHandler возвращает записи API-вызовов за период.
// Параметр hours принимает значения от 1 до 24, по умолчанию 1.
func APIMetricsHandler(c *collector.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		hours, err := parseHours(r, 1, 24)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}

		metrics := c.APIMetrics(hours)
		writeJSON(rw, http.StatusOK, map[string]any{
			"metrics":      metrics,
			"count":        len(metrics),
			"period_hours": hours,
		})
	}
}

// BusinessMetricsHandler возвращает бизнес-снимки за период.
// Параметр hours принимает значения от 1 до 168, по умолчанию 24.
func BusinessMetricsHandler(c *collector.Collector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		hours, err := parseHours(r, 24, 168)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}

		metrics := c.BusinessMetrics(hours)
		writeJSON(rw, http.StatusOK, map[string]any{
			"metrics":      metrics,
			"count":        len(metrics),
			"period_hours": hours,
		})
	}
}

// AlertsHandler возвращает страницу неразрешённых оповещений.
// Параметры: hours (1..168, по умолчанию 24), page, per_page.
// Ответ кешируется; кеш сбрасывается при разрешении оповещений.
func AlertsHandler(engine *alert.Engine, manager *cache.Manager, cfg config.Config) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		hours, err := parseHours(r, 24, 168)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}

		page, err := parseIntParam(r, "page", 1)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}
		perPage, err := parseIntParam(r, "per_page", cfg.DefaultPageSize)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}

		key := fmt.Sprintf("alerts:unresolved:%d:%d:%d", hours, page, perPage)
		body, err := manager.GetOrCompute(r.Context(), key, 0, func() (string, error) {
			alerts := engine.List(false, time.Duration(hours)*time.Hour)
			payload, err := json.Marshal(cache.Paginate(alerts, page, perPage, cfg.MaxPageSize))
			if err != nil {
				return "", err
			}
			return string(payload), nil
		})
		if err != nil {
			writeError(rw, http.StatusInternalServerError, "Failed to list alerts")
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte(body))
	}
}

// AlertHistoryHandler возвращает историю оповещений за период.
// Параметры: hours (1..720, по умолчанию 168) и необязательный фильтр
// resolved=true|false; без фильтра возвращаются оба состояния.
func AlertHistoryHandler(engine *alert.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		hours, err := parseHours(r, 168, 720)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}

		maxAge := time.Duration(hours) * time.Hour

		var alerts []models.Alert
		switch r.URL.Query().Get("resolved") {
		case "":
			alerts = append(engine.List(false, maxAge), engine.List(true, maxAge)...)
			sort.Slice(alerts, func(i, j int) bool {
				return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
			})
		case "true":
			alerts = engine.List(true, maxAge)
		case "false":
			alerts = engine.List(false, maxAge)
		default:
			writeError(rw, http.StatusBadRequest, "resolved must be true or false")
			return
		}

		writeJSON(rw, http.StatusOK, map[string]any{
			"alerts":       alerts,
			"count":        len(alerts),
			"period_hours": hours,
		})
	}
}

// ResolveAlertHandler помечает оповещение разрешённым и сбрасывает
// кеш списков оповещений.
func ResolveAlertHandler(engine *alert.Engine, manager *cache.Manager) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "alertID")

		if !engine.Resolve(id) {
			writeError(rw, http.StatusNotFound, "Alert not found")
			return
		}

		manager.InvalidatePrefix(r.Context(), "alerts:")

		writeJSON(rw, http.StatusOK, map[string]any{
			"message":  "Alert resolved",
			"alert_id": id,
		})
	}
}

// TestAlertHandler рассылает тестовое оповещение по всем каналам.
func TestAlertHandler(engine *alert.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := engine.SendTest(); err != nil {
			writeError(rw, http.StatusInternalServerError, "Test alert delivery failed")
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{
			"message": "Test alert sent",
		})
	}
}

type endpointStat struct {
	Endpoint        string  `json:"endpoint"`
	Count           int     `json:"count"`
	AvgResponseTime float64 `json:"avg_response_time"`
}

type systemSummary struct {
	Samples       int     `json:"samples"`
	AvgCPU        float64 `json:"avg_cpu_percent"`
	AvgMemory     float64 `json:"avg_memory_percent"`
	AvgDisk       float64 `json:"avg_disk_percent"`
	MaxCPU        float64 `json:"max_cpu_percent"`
	MaxMemory     float64 `json:"max_memory_percent"`
	MaxGoroutines int     `json:"max_goroutines"`
}

type apiSummary struct {
	TotalRequests    int            `json:"total_requests"`
	AvgResponseTime  float64        `json:"avg_response_time"`
	MaxResponseTime  float64        `json:"max_response_time"`
	ErrorRate        float64        `json:"error_rate"`
	SlowestEndpoints []endpointStat `json:"slowest_endpoints"`
}

type performanceSummary struct {
	System      systemSummary          `json:"system"`
	API         apiSummary             `json:"api"`
	Business    *models.BusinessSample `json:"business,omitempty"`
	AlertCounts map[string]int         `json:"active_alerts_by_severity"`
	PeriodHours int                    `json:"period_hours"`
}

// PerformanceSummaryHandler возвращает агрегированную сводку за период:
// средние показатели хоста, объём и времена ответа API, последний
// бизнес-снимок и число активных оповещений по уровням серьёзности.
// Параметр hours принимает значения от 1 до 168, по умолчанию 24.
// Ответ кешируется.
func PerformanceSummaryHandler(c *collector.Collector, engine *alert.Engine, manager *cache.Manager) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		hours, err := parseHours(r, 24, 168)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}

		key := fmt.Sprintf("performance:summary:%d", hours)
		body, err := manager.GetOrCompute(r.Context(), key, 0, func() (string, error) {
			payload, err := json.Marshal(buildSummary(c, engine, hours))
			if err != nil {
				return "", err
			}
			return string(payload), nil
		})
		if err != nil {
			writeError(rw, http.StatusInternalServerError, "Failed to build summary")
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte(body))
	}
}

func buildSummary(c *collector.Collector, engine *alert.Engine, hours int) performanceSummary {
	summary := performanceSummary{
		System:      buildSystemSummary(c.SystemMetrics(hours)),
		API:         buildAPISummary(c.APIMetrics(hours)),
		AlertCounts: map[string]int{},
		PeriodHours: hours,
	}

	if last, ok := c.LastBusiness(); ok {
		summary.Business = &last
	}

	for _, a := range engine.List(false, time.Duration(hours)*time.Hour) {
		summary.AlertCounts[a.Severity]++
	}

	return summary
}

func buildSystemSummary(samples []models.SystemSample) systemSummary {
	summary := systemSummary{Samples: len(samples)}
	if len(samples) == 0 {
		return summary
	}

	for _, s := range samples {
		summary.AvgCPU += s.CPUPercent
		summary.AvgMemory += s.MemoryPercent
		summary.AvgDisk += s.DiskPercent
		if s.CPUPercent > summary.MaxCPU {
			summary.MaxCPU = s.CPUPercent
		}
		if s.MemoryPercent > summary.MaxMemory {
			summary.MaxMemory = s.MemoryPercent
		}
		if s.Goroutines > summary.MaxGoroutines {
			summary.MaxGoroutines = s.Goroutines
		}
	}

	n := float64(len(samples))
	summary.AvgCPU /= n
	summary.AvgMemory /= n
	summary.AvgDisk /= n
	return summary
}

func buildAPISummary(samples []models.APISample) apiSummary {
	summary := apiSummary{
		TotalRequests:    len(samples),
		SlowestEndpoints: []endpointStat{},
	}
	if len(samples) == 0 {
		return summary
	}

	var totalTime float64
	errorCount := 0
	perEndpoint := make(map[string]*endpointStat)

	for _, s := range samples {
		totalTime += s.ResponseTime
		if s.ResponseTime > summary.MaxResponseTime {
			summary.MaxResponseTime = s.ResponseTime
		}
		if s.StatusCode >= 400 {
			errorCount++
		}

		stat, ok := perEndpoint[s.Endpoint]
		if !ok {
			stat = &endpointStat{Endpoint: s.Endpoint}
			perEndpoint[s.Endpoint] = stat
		}
		stat.Count++
		stat.AvgResponseTime += s.ResponseTime
	}

	summary.AvgResponseTime = totalTime / float64(len(samples))
	summary.ErrorRate = float64(errorCount) / float64(len(samples)) * 100

	for _, stat := range perEndpoint {
		stat.AvgResponseTime /= float64(stat.Count)
		summary.SlowestEndpoints = append(summary.SlowestEndpoints, *stat)
	}
	sort.Slice(summary.SlowestEndpoints, func(i, j int) bool {
		return summary.SlowestEndpoints[i].AvgResponseTime > summary.SlowestEndpoints[j].AvgResponseTime
	})
	if len(summary.SlowestEndpoints) > 5 {
		summary.SlowestEndpoints = summary.SlowestEndpoints[:5]
	}

	return summary
}

func systemHealth(c *collector.Collector, cfg config.Config) models.ComponentHealth {
	samples := c.SystemMetrics(1)
	if len(samples) == 0 {
		return models.ComponentHealth{
			Status:  models.StatusUnknown,
			Message: "no system samples collected yet",
		}
	}

	last := samples[len(samples)-1]
	health := models.ComponentHealth{
		Status:      models.StatusHealthy,
		CPUUsage:    &last.CPUPercent,
		MemoryUsage: &last.MemoryPercent,
		DiskUsage:   &last.DiskPercent,
	}

	if cfg.DiskThreshold > 0 && last.DiskPercent > cfg.DiskThreshold {
		health.Status = models.StatusUnhealthy
		return health
	}
	if (cfg.CPUThreshold > 0 && last.CPUPercent > cfg.CPUThreshold) ||
		(cfg.MemoryThreshold > 0 && last.MemoryPercent > cfg.MemoryThreshold) {
		health.Status = models.StatusWarning
	}
	return health
}

func databaseHealth(ctx context.Context, pinger Pinger) models.ComponentHealth {
	if pinger == nil {
		return models.ComponentHealth{
			Status:  models.StatusUnknown,
			Message: "database not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		return models.ComponentHealth{
			Status:  models.StatusError,
			Message: err.Error(),
		}
	}
	return models.ComponentHealth{Status: models.StatusHealthy}
}

func apiHealth(c *collector.Collector, cfg config.Config) models.ComponentHealth {
	samples := c.APIMetrics(1)
	if len(samples) == 0 {
		return models.ComponentHealth{
			Status:  models.StatusUnknown,
			Message: "no api traffic in the last hour",
		}
	}

	var totalTime float64
	errorCount := 0
	for _, s := range samples {
		totalTime += s.ResponseTime
		if s.StatusCode >= 400 {
			errorCount++
		}
	}

	total := len(samples)
	errorRate := float64(errorCount) / float64(total) * 100
	avgTime := totalTime / float64(total)

	health := models.ComponentHealth{
		Status:          models.StatusHealthy,
		TotalCalls:      &total,
		ErrorRate:       &errorRate,
		AvgResponseTime: &avgTime,
	}

	// Двукратное превышение порога деградации считается отказом
	switch {
	case (cfg.ErrorRateThreshold > 0 && errorRate > 2*cfg.ErrorRateThreshold) ||
		(cfg.ResponseTimeThreshold > 0 && avgTime > 2*cfg.ResponseTimeThreshold):
		health.Status = models.StatusUnhealthy
	case (cfg.ErrorRateThreshold > 0 && errorRate > cfg.ErrorRateThreshold) ||
		(cfg.ResponseTimeThreshold > 0 && avgTime > cfg.ResponseTimeThreshold):
		health.Status = models.StatusWarning
	}
	return health
}

// businessHealth оценивает последний бизнес-снимок по трём индикаторам:
// есть пользователи, есть клиенты, конверсия выше goodConversionRate.
// Меньше двух выполненных индикаторов — warning.
func businessHealth(c *collector.Collector) models.ComponentHealth {
	last, ok := c.LastBusiness()
	if !ok {
		return models.ComponentHealth{
			Status:  models.StatusUnknown,
			Message: "no business snapshots collected yet",
		}
	}

	indicators := 0
	if last.TotalUsers > 0 {
		indicators++
	}
	if last.TotalClients > 0 {
		indicators++
	}
	if last.ConversionRate > goodConversionRate {
		indicators++
	}

	health := models.ComponentHealth{
		Status:         models.StatusHealthy,
		ConversionRate: &last.ConversionRate,
		TotalClients:   &last.TotalClients,
	}
	if indicators < 2 {
		health.Status = models.StatusWarning
	}
	return health
}

// overallStatus сводит статусы подсистем: error и unhealthy дают
// unhealthy, warning даёт warning, статус unknown здоровье не портит.
func overallStatus(components ...models.ComponentHealth) string {
	status := models.StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case models.StatusUnhealthy, models.StatusError:
			return models.StatusUnhealthy
		case models.StatusWarning:
			status = models.StatusWarning
		}
	}
	return status
}

// parseHours читает параметр hours с границами [1, max].
func parseHours(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return def, nil
	}

	hours, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("hours must be an integer, got %q", raw)
	}
	if hours < 1 || hours > max {
		return 0, fmt.Errorf("hours must be between 1 and %d, got %d", max, hours)
	}
	return hours, nil
}

func parseIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return value, nil
}

func writeJSON(rw http.ResponseWriter, code int, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	json.NewEncoder(rw).Encode(payload)
}

func writeError(rw http.ResponseWriter, code int, message string) {
	writeJSON(rw, code, map[string]string{"error": message})
}
