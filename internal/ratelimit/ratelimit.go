// Package ratelimit реализует ограничитель частоты запросов по алгоритму
// скользящего окна. Для каждого идентификатора хранится список меток времени
// его запросов; перед каждой проверкой метки старше окна отбрасываются,
// поэтому границы окна точные, без всплесков на стыках фиксированных окон.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limiter ограничивает число запросов на идентификатор в пределах окна.
// Карта идентификаторов защищена одним мьютексом; мьютекс не удерживается
// при вызовах других компонентов.
//
// Записи устаревших идентификаторов вычищаются фоновым таймером,
// запускаемым методом Start.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests map[string][]time.Time

	logger *zap.SugaredLogger
	stopCh chan struct{}
	done   chan struct{}
}

// New создаёт ограничитель: не более limit запросов на идентификатор
// в пределах window.
func New(limit int, window time.Duration, logger *zap.SugaredLogger) *Limiter {
	return &Limiter{
		limit:    limit,
		window:   window,
		requests: make(map[string][]time.Time),
		logger:   logger,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Allow возвращает true и учитывает запрос, если идентификатор ещё не
// исчерпал квоту. При отказе запрос не учитывается. Отказ — это не ошибка,
// а штатное решение, транслируемое HTTP-слоем в 429.
func (l *Limiter) Allow(id string) bool {
	return l.allowAt(time.Now(), id)
}

func (l *Limiter) allowAt(now time.Time, id string) bool {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.requests[id][:0]
	for _, at := range l.requests[id] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= l.limit {
		l.requests[id] = kept
		return false
	}

	l.requests[id] = append(kept, now)
	return true
}

// Window возвращает длительность окна; используется HTTP-слоем
// для заголовка Retry-After.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Limit возвращает максимум запросов в пределах окна.
func (l *Limiter) Limit() int {
	return l.limit
}

// Start запускает фоновую очистку идентификаторов, все запросы которых
// вышли за пределы окна. Без очистки карта росла бы неограниченно
// с числом уникальных идентификаторов.
func (l *Limiter) Start() {
	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.window)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := l.sweep(time.Now())
				if removed > 0 {
					l.logger.Debugw("Swept stale rate limit identifiers", "removed", removed)
				}
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop останавливает фоновую очистку и дожидается завершения горутины.
func (l *Limiter) Stop() {
	close(l.stopCh)
	<-l.done
}

func (l *Limiter) sweep(now time.Time) int {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, stamps := range l.requests {
		stale := true
		for _, at := range stamps {
			if at.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(l.requests, id)
			removed++
		}
	}
	return removed
}
