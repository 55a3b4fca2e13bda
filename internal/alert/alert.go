// Package alert реализует движок оповещений: проверку собранных метрик
// по настроенным порогам, дедупликацию, ограниченную историю и
// рассылку по подключённым каналам уведомлений.
package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/levinOo/go-monitoring-core/internal/models"
)

// maxHistory ограничивает историю оповещений; при превышении
// остаются только новейшие записи.
const maxHistory = 100

// Thresholds содержит пороговые значения метрик. Структура заполняется
// из конфигурации один раз при старте и далее не изменяется.
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64

	// ResponseTime задаёт порог времени ответа API в секундах.
	ResponseTime float64

	// ErrorRate задаёт порог доли ошибочных ответов в процентах.
	ErrorRate float64
}

// Engine владеет историей оповещений и списком каналов доставки.
// Вся работа с историей идёт под одним мьютексом; мьютекс никогда
// не удерживается при вызове каналов.
type Engine struct {
	mu     sync.Mutex
	alerts []models.Alert

	thresholds Thresholds
	channels   []Channel
	logger     *zap.SugaredLogger
}

// NewEngine создаёт движок с заданными порогами и каналами доставки.
func NewEngine(thresholds Thresholds, logger *zap.SugaredLogger, channels ...Channel) *Engine {
	return &Engine{
		thresholds: thresholds,
		channels:   channels,
		logger:     logger,
	}
}

// EvaluateSystem проверяет снимок хоста по системным порогам.
func (e *Engine) EvaluateSystem(s models.SystemSample) {
	e.check("system_cpu_percent", models.SeverityHigh,
		fmt.Sprintf("CPU usage is high: %.1f%% (threshold: %.1f%%)", s.CPUPercent, e.thresholds.CPUPercent),
		s.CPUPercent, e.thresholds.CPUPercent)

	e.check("system_memory_percent", models.SeverityHigh,
		fmt.Sprintf("Memory usage is high: %.1f%% (threshold: %.1f%%)", s.MemoryPercent, e.thresholds.MemoryPercent),
		s.MemoryPercent, e.thresholds.MemoryPercent)

	e.check("system_disk_percent", models.SeverityCritical,
		fmt.Sprintf("Disk usage is critical: %.1f%% (threshold: %.1f%%)", s.DiskPercent, e.thresholds.DiskPercent),
		s.DiskPercent, e.thresholds.DiskPercent)
}

// EvaluateAPI проверяет одну запись API-вызова: время ответа и серверные ошибки.
func (e *Engine) EvaluateAPI(s models.APISample) {
	e.check("api_response_time", models.SeverityMedium,
		fmt.Sprintf("Slow API response: %s took %.2fs (threshold: %.2fs)", s.Endpoint, s.ResponseTime, e.thresholds.ResponseTime),
		s.ResponseTime, e.thresholds.ResponseTime)

	if s.StatusCode >= 500 {
		e.create("api_error", models.SeverityHigh,
			fmt.Sprintf("API error: %s returned %d", s.Endpoint, s.StatusCode),
			float64(s.StatusCode), 500)
	}
}

// CheckErrorRate вычисляет долю ошибочных ответов по записям за период
// наблюдения и сравнивает с порогом.
func (e *Engine) CheckErrorRate(samples []models.APISample) {
	if len(samples) == 0 {
		return
	}

	errorCount := 0
	for _, s := range samples {
		if s.StatusCode >= 400 {
			errorCount++
		}
	}

	rate := float64(errorCount) / float64(len(samples)) * 100
	e.check("api_error_rate", models.SeverityHigh,
		fmt.Sprintf("High API error rate: %.1f%% (threshold: %.1f%%)", rate, e.thresholds.ErrorRate),
		rate, e.thresholds.ErrorRate)
}

// Resolve помечает оповещение разрешённым. Состояние метрики при этом
// не перепроверяется: решение остаётся за вызывающим. Возвращает false,
// если неразрешённое оповещение с таким идентификатором не найдено.
func (e *Engine) Resolve(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.alerts {
		if e.alerts[i].ID == id && !e.alerts[i].Resolved {
			now := time.Now()
			e.alerts[i].Resolved = true
			e.alerts[i].ResolvedAt = &now
			return true
		}
	}
	return false
}

// List возвращает оповещения с заданным состоянием разрешения
// не старше maxAge, в хронологическом порядке.
func (e *Engine) List(resolved bool, maxAge time.Duration) []models.Alert {
	cutoff := time.Now().Add(-maxAge)

	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]models.Alert, 0, len(e.alerts))
	for _, a := range e.alerts {
		if a.Resolved == resolved && a.CreatedAt.After(cutoff) {
			result = append(result, a)
		}
	}
	return result
}

// SendTest отправляет синтетическое оповещение низкой серьёзности по всем
// каналам для проверки их настройки. В историю оно не попадает.
func (e *Engine) SendTest() error {
	test := models.Alert{
		ID:        fmt.Sprintf("test_%d", time.Now().Unix()),
		Type:      "test_alert",
		Severity:  models.SeverityLow,
		Message:   "This is a test alert to verify the alerting system",
		CreatedAt: time.Now(),
	}
	return e.notify(test)
}

// check создаёт оповещение, если значение превысило порог.
// Нулевой или отрицательный порог отключает проверку.
func (e *Engine) check(typ, severity, message string, value, threshold float64) {
	if threshold <= 0 || value <= threshold {
		return
	}
	e.create(typ, severity, message, value, threshold)
}

// create добавляет оповещение в историю и рассылает его по каналам.
// Пока существует неразрешённое оповещение того же типа, новое
// не создаётся: повторение той же проблемы не порождает шквал уведомлений.
func (e *Engine) create(typ, severity, message string, value, threshold float64) {
	a := models.Alert{
		ID:        fmt.Sprintf("%s_%d", typ, time.Now().UnixNano()),
		Type:      typ,
		Severity:  severity,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	for _, existing := range e.alerts {
		if existing.Type == typ && !existing.Resolved {
			e.mu.Unlock()
			return
		}
	}

	e.alerts = append(e.alerts, a)
	if len(e.alerts) > maxHistory {
		e.alerts = append(e.alerts[:0], e.alerts[len(e.alerts)-maxHistory:]...)
	}
	e.mu.Unlock()

	e.logger.Warnw("Alert created",
		"type", a.Type,
		"severity", a.Severity,
		"value", a.Value,
		"threshold", a.Threshold,
	)

	if err := e.notify(a); err != nil {
		e.logger.Errorw("Alert delivery incomplete", "id", a.ID, "error", err)
	}
}

// notify рассылает оповещение по всем каналам. Отказ одного канала
// не блокирует доставку через остальные.
func (e *Engine) notify(a models.Alert) error {
	var errs []error
	for _, ch := range e.channels {
		if err := ch.Send(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
