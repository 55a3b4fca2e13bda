// Package cache предоставляет кэш ключ-значение с TTL на каждую запись
// и подключаемым бэкендом: локальная карта в памяти процесса либо внешний
// Redis, разделяемый между процессами. Оба бэкенда удовлетворяют одному
// контракту Store, выбор делается конфигурацией, а не ветвлением кода.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/levinOo/go-monitoring-core/internal/models"
	"go.uber.org/zap"
)

// Store определяет контракт бэкенда кэша. Отказ бэкенда никогда не
// поднимается до вызывающего: чтение при недоступном бэкенде выглядит
// как промах, запись — как no-op.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
	DeletePrefix(ctx context.Context, prefix string)
	Ping(ctx context.Context) error
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory хранит записи в карте процесса. Срок жизни проверяется лениво
// при чтении: просроченная запись удаляется и считается промахом,
// фоновая уборка не требуется.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory создаёт пустой кэш в памяти.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// DeletePrefix удаляет все ключи с заданным префиксом. Операция линейна
// по числу хранимых ключей.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

// Manager оборачивает бэкенд кэша значением TTL по умолчанию и
// вспомогательной операцией GetOrCompute.
type Manager struct {
	store      Store
	defaultTTL time.Duration
	logger     *zap.SugaredLogger
}

// NewManager создаёт менеджер над выбранным бэкендом.
func NewManager(store Store, defaultTTL time.Duration, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		store:      store,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Get возвращает значение по ключу; второй результат false при промахе.
func (m *Manager) Get(ctx context.Context, key string) (string, bool) {
	return m.store.Get(ctx, key)
}

// Set сохраняет значение. Неположительный ttl заменяется TTL по умолчанию.
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.store.Set(ctx, key, value, ttl)
}

// Delete удаляет запись по ключу.
func (m *Manager) Delete(ctx context.Context, key string) {
	m.store.Delete(ctx, key)
}

// InvalidatePrefix удаляет все записи с заданным префиксом ключа.
// Вызывается обработчиками записи после изменения данных.
func (m *Manager) InvalidatePrefix(ctx context.Context, prefix string) {
	m.store.DeletePrefix(ctx, prefix)
	m.logger.Debugw("Cache invalidated", "prefix", prefix)
}

// GetOrCompute возвращает закэшированное значение либо вычисляет его
// через fn, сохраняет и возвращает.
//
// Конкурентные промахи по одному ключу не сериализуются: несколько
// вызывающих могут одновременно выполнить fn, выигрывает последняя
// запись. Это допустимо, поскольку кэшируются идемпотентно
// перевычисляемые значения.
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func() (string, error)) (string, error) {
	if value, ok := m.store.Get(ctx, key); ok {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return "", err
	}

	m.logger.Debugw("Cache miss, value computed", "key", key)
	m.Set(ctx, key, value, ttl)
	return value, nil
}

// Paginate формирует страницу из полного списка items. Номер страницы
// меньше 1 поднимается до 1, perPage ограничивается диапазоном
// [1, maxPerPage]; срез отсекается по границам списка.
func Paginate[T any](items []T, page, perPage, maxPerPage int) models.Page[T] {
	if page < 1 {
		page = 1
	}
	if maxPerPage < 1 {
		maxPerPage = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	total := len(items)
	totalPages := (total + perPage - 1) / perPage

	offset := (page - 1) * perPage
	end := offset + perPage
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	return models.Page[T]{
		Items:      items[offset:end],
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
