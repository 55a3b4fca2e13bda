// Package window предоставляет обобщённое ограниченное хранилище
// временных рядов. Хранилище держит не более capacity последних записей
// и отдаёт срезы по возрасту в хронологическом порядке.
//
// Пример использования:
//
//	s := window.New[float64](1000)
//	s.Append(42.5)
//	recent := s.Query(time.Hour)
package window

import (
	"sync"
	"time"
)

type sample[T any] struct {
	at    time.Time
	value T
}

// Store хранит записи типа T с метками времени. Все операции
// сериализуются одним мьютексом, метки времени не убывают.
type Store[T any] struct {
	mu       sync.Mutex
	capacity int
	samples  []sample[T]
}

// New создаёт хранилище с фиксированной ёмкостью. При превышении
// ёмкости старейшие записи вытесняются первыми.
func New[T any](capacity int) *Store[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Store[T]{
		capacity: capacity,
		samples:  make([]sample[T], 0, capacity),
	}
}

// Append добавляет запись с текущим временем.
func (s *Store[T]) Append(v T) {
	s.AppendAt(time.Now(), v)
}

// AppendAt добавляет запись с заданной меткой времени.
// Метки должны подаваться в неубывающем порядке.
func (s *Store[T]) AppendAt(at time.Time, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample[T]{at: at, value: v})
	if len(s.samples) > s.capacity {
		overflow := len(s.samples) - s.capacity
		s.samples = append(s.samples[:0], s.samples[overflow:]...)
	}
}

// Query возвращает записи не старше maxAge в хронологическом порядке.
// Состояние хранилища не изменяется; если подходящих записей нет,
// возвращается пустой срез.
func (s *Store[T]) Query(maxAge time.Duration) []T {
	return s.QueryAt(time.Now(), maxAge)
}

// QueryAt возвращает записи новее now-maxAge относительно заданного момента.
func (s *Store[T]) QueryAt(now time.Time, maxAge time.Duration) []T {
	cutoff := now.Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]T, 0, len(s.samples))
	for _, smp := range s.samples {
		if smp.at.After(cutoff) {
			result = append(result, smp.value)
		}
	}
	return result
}

// Last возвращает последнюю запись. Второе значение false, если
// хранилище пусто.
func (s *Store[T]) Last() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) == 0 {
		var zero T
		return zero, false
	}
	return s.samples[len(s.samples)-1].value, true
}

// Len возвращает текущее число записей.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}
