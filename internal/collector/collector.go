// Package collector реализует фоновый сбор метрик: периодические снимки
// состояния хоста и бизнес-показателей плюс синхронную запись результатов
// API-вызовов. Все ряды хранятся в ограниченных окнах; отказ любого
// источника приводит к пропуску цикла, но никогда не останавливает
// планировщик и не роняет процесс.
package collector

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/net"
	"go.uber.org/zap"

	"github.com/levinOo/go-monitoring-core/internal/models"
	"github.com/levinOo/go-monitoring-core/internal/repository"
	"github.com/levinOo/go-monitoring-core/internal/window"
)

// Ёмкости окон метрик
const (
	systemCapacity   = 1000
	apiCapacity      = 5000
	businessCapacity = 100
)

const (
	systemSampleTimeout  = 10 * time.Second
	businessQueryTimeout = 15 * time.Second
	errorRateInterval    = time.Minute
	errorRateLookback    = time.Hour
	diskRoot             = "/"
)

// Evaluator получает свежесобранные записи для проверки порогов.
// Реализуется движком оповещений; сборщик не знает его деталей.
type Evaluator interface {
	EvaluateSystem(models.SystemSample)
	EvaluateAPI(models.APISample)
	CheckErrorRate([]models.APISample)
}

// Collector владеет тремя окнами метрик и фоновым циклом выборки.
// Жизненный цикл: New → Start → Stop; Stop дожидается завершения
// текущего цикла.
type Collector struct {
	system   *window.Store[models.SystemSample]
	api      *window.Store[models.APISample]
	business *window.Store[models.BusinessSample]

	source    repository.Source
	evaluator Evaluator
	logger    *zap.SugaredLogger

	systemInterval   time.Duration
	businessInterval time.Duration

	startedAt time.Time
	skipped   atomic.Int64

	stopCh chan struct{}
	done   chan struct{}
}

// New создаёт сборщик. source может быть nil, если база данных CRM
// не настроена: бизнес-циклы тогда пропускаются. evaluator может быть
// nil, тогда пороги не проверяются.
func New(source repository.Source, evaluator Evaluator, systemInterval, businessInterval time.Duration, logger *zap.SugaredLogger) *Collector {
	return &Collector{
		system:           window.New[models.SystemSample](systemCapacity),
		api:              window.New[models.APISample](apiCapacity),
		business:         window.New[models.BusinessSample](businessCapacity),
		source:           source,
		evaluator:        evaluator,
		logger:           logger,
		systemInterval:   systemInterval,
		businessInterval: businessInterval,
		startedAt:        time.Now(),
		stopCh:           make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start запускает фоновый цикл выборки.
func (c *Collector) Start() {
	go func() {
		defer close(c.done)

		systemTicker := time.NewTicker(c.systemInterval)
		defer systemTicker.Stop()
		businessTicker := time.NewTicker(c.businessInterval)
		defer businessTicker.Stop()
		errorRateTicker := time.NewTicker(errorRateInterval)
		defer errorRateTicker.Stop()

		c.logger.Infow("Starting metrics collection",
			"systemInterval", c.systemInterval,
			"businessInterval", c.businessInterval,
		)

		for {
			select {
			case <-systemTicker.C:
				c.collectSystem()
			case <-businessTicker.C:
				c.collectBusiness()
			case <-errorRateTicker.C:
				c.checkErrorRate()
			case <-c.stopCh:
				c.logger.Infow("Stopping metrics collection")
				return
			}
		}
	}()
}

// Stop останавливает цикл выборки и дожидается завершения горутины.
// Текущему циклу даётся возможность закончиться.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.done
}

// RecordAPICall синхронно записывает результат одного HTTP-запроса.
// Вызывается middleware после каждого обработанного запроса.
func (c *Collector) RecordAPICall(endpoint, method string, durationSeconds float64, statusCode int, callerID string) {
	sample := models.APISample{
		Endpoint:     endpoint,
		Method:       method,
		ResponseTime: durationSeconds,
		StatusCode:   statusCode,
		Timestamp:    time.Now(),
		CallerID:     callerID,
	}

	c.api.Append(sample)

	if c.evaluator != nil {
		c.evaluator.EvaluateAPI(sample)
	}
}

// RecordBusinessSnapshot запрашивает источник и записывает бизнес-снимок.
// Недоступность источника приводит к пропуску, а не к ошибке сборщика.
func (c *Collector) RecordBusinessSnapshot(ctx context.Context) {
	if c.source == nil {
		c.logger.Debugw("Business snapshot skipped, no source configured")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, businessQueryTimeout)
	defer cancel()

	sample, err := c.source.Snapshot(ctx)
	if err != nil {
		c.skipped.Add(1)
		c.logger.Errorw("Business snapshot skipped", "error", err)
		return
	}

	c.business.Append(sample)
}

// SystemMetrics возвращает снимки хоста за последние hours часов.
func (c *Collector) SystemMetrics(hours int) []models.SystemSample {
	return c.system.Query(time.Duration(hours) * time.Hour)
}

// APIMetrics возвращает записи API-вызовов за последние hours часов.
func (c *Collector) APIMetrics(hours int) []models.APISample {
	return c.api.Query(time.Duration(hours) * time.Hour)
}

// BusinessMetrics возвращает бизнес-снимки за последние hours часов.
func (c *Collector) BusinessMetrics(hours int) []models.BusinessSample {
	return c.business.Query(time.Duration(hours) * time.Hour)
}

// LastBusiness возвращает последний бизнес-снимок.
func (c *Collector) LastBusiness() (models.BusinessSample, bool) {
	return c.business.Last()
}

// SkippedCycles возвращает число пропущенных циклов выборки.
func (c *Collector) SkippedCycles() int64 {
	return c.skipped.Load()
}

// Uptime возвращает время работы сервиса в секундах.
func (c *Collector) Uptime() float64 {
	return time.Since(c.startedAt).Seconds()
}

func (c *Collector) collectSystem() {
	defer func() {
		if r := recover(); r != nil {
			c.skipped.Add(1)
			c.logger.Errorw("System collection cycle panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), systemSampleTimeout)
	defer cancel()

	sample, err := readSystemSample(ctx)
	if err != nil {
		c.skipped.Add(1)
		c.logger.Errorw("System collection cycle skipped", "error", err)
		return
	}

	c.system.Append(sample)

	if c.evaluator != nil {
		c.evaluator.EvaluateSystem(sample)
	}
}

func (c *Collector) collectBusiness() {
	defer func() {
		if r := recover(); r != nil {
			c.skipped.Add(1)
			c.logger.Errorw("Business collection cycle panicked", "panic", r)
		}
	}()

	c.RecordBusinessSnapshot(context.Background())
}

func (c *Collector) checkErrorRate() {
	if c.evaluator == nil {
		return
	}
	c.evaluator.CheckErrorRate(c.api.Query(errorRateLookback))
}

func readSystemSample(ctx context.Context) (models.SystemSample, error) {
	var sample models.SystemSample

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return sample, err
	}
	if len(cpuPercents) > 0 {
		sample.CPUPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, err
	}
	sample.MemoryPercent = vm.UsedPercent

	usage, err := disk.UsageWithContext(ctx, diskRoot)
	if err != nil {
		return sample, err
	}
	sample.DiskPercent = usage.UsedPercent

	conns, err := net.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return sample, err
	}
	sample.Connections = len(conns)

	bootTime, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return sample, err
	}
	sample.UptimeSeconds = float64(time.Now().Unix()) - float64(bootTime)

	sample.Goroutines = runtime.NumGoroutine()
	sample.Timestamp = time.Now()

	return sample, nil
}
