package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestManager() *Manager {
	return NewManager(NewMemory(), time.Minute, zap.NewNop().Sugar())
}

// TestTTLExpiry проверяет, что чтение после истечения TTL — это промах
func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	m.Set(ctx, "k", "v", 50*time.Millisecond)

	if value, ok := m.Get(ctx, "k"); !ok || value != "v" {
		t.Fatalf("expected immediate hit with \"v\", got %q (ok=%v)", value, ok)
	}

	time.Sleep(80 * time.Millisecond)

	if value, ok := m.Get(ctx, "k"); ok {
		t.Errorf("expected miss after TTL expiry, got %q", value)
	}
}

// TestDeleteAndInvalidatePrefix проверяет удаление по ключу и по префиксу
func TestDeleteAndInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	m.Set(ctx, "users:p1", "a", time.Minute)
	m.Set(ctx, "users:p2", "b", time.Minute)
	m.Set(ctx, "clients:p1", "c", time.Minute)

	m.Delete(ctx, "users:p1")
	if _, ok := m.Get(ctx, "users:p1"); ok {
		t.Error("deleted key should be a miss")
	}

	m.InvalidatePrefix(ctx, "users:")
	if _, ok := m.Get(ctx, "users:p2"); ok {
		t.Error("prefix invalidation should remove users:p2")
	}
	if _, ok := m.Get(ctx, "clients:p1"); !ok {
		t.Error("prefix invalidation must not touch other prefixes")
	}
}

// TestGetOrCompute проверяет, что fn выполняется только при промахе
func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	calls := 0
	fn := func() (string, error) {
		calls++
		return "computed", nil
	}

	value, err := m.GetOrCompute(ctx, "k", time.Minute, fn)
	if err != nil || value != "computed" {
		t.Fatalf("expected computed value, got %q (err=%v)", value, err)
	}

	value, err = m.GetOrCompute(ctx, "k", time.Minute, fn)
	if err != nil || value != "computed" {
		t.Fatalf("expected cached value, got %q (err=%v)", value, err)
	}

	if calls != 1 {
		t.Errorf("expected single computation, got %d", calls)
	}
}

// TestGetOrComputeError проверяет, что ошибка вычисления не кэшируется
func TestGetOrComputeError(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	wantErr := errors.New("source unavailable")
	_, err := m.GetOrCompute(ctx, "k", time.Minute, func() (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected computation error, got %v", err)
	}

	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("failed computation must not be cached")
	}
}

// TestGetOrComputeConcurrent проверяет, что гонка конкурентных промахов
// не ломает кэш: дубль вычисления допустим, итоговое значение корректно
func TestGetOrComputeConcurrent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := m.GetOrCompute(ctx, "k", time.Minute, func() (string, error) {
				return "v", nil
			})
			if err != nil || value != "v" {
				t.Errorf("expected \"v\", got %q (err=%v)", value, err)
			}
		}()
	}
	wg.Wait()

	if value, ok := m.Get(ctx, "k"); !ok || value != "v" {
		t.Errorf("expected cached \"v\" after the race, got %q (ok=%v)", value, ok)
	}
}

// TestPaginate проверяет свойства постраничной разбивки для 25 элементов
func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	p1 := Paginate(items, 1, 10, 100)
	if len(p1.Items) != 10 || p1.Items[0] != 0 || p1.Items[9] != 9 {
		t.Errorf("page 1: expected items[0:10], got %v", p1.Items)
	}
	if !p1.HasNext || p1.HasPrev || p1.TotalPages != 3 || p1.Total != 25 {
		t.Errorf("page 1: wrong navigation fields: %+v", p1)
	}

	p3 := Paginate(items, 3, 10, 100)
	if len(p3.Items) != 5 || p3.Items[0] != 20 || p3.Items[4] != 24 {
		t.Errorf("page 3: expected items[20:25], got %v", p3.Items)
	}
	if p3.HasNext || !p3.HasPrev {
		t.Errorf("page 3: wrong navigation fields: %+v", p3)
	}
}

// TestManagerLogging проверяет журналирование инвалидации и перевычислений
func TestManagerLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := NewManager(NewMemory(), time.Minute, zap.New(core).Sugar())
	ctx := context.Background()

	if _, err := m.GetOrCompute(ctx, "alerts:1", 0, func() (string, error) {
		return "computed", nil
	}); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if logs.FilterMessage("Cache miss, value computed").Len() != 1 {
		t.Error("expected a cache miss log entry")
	}

	m.InvalidatePrefix(ctx, "alerts:")
	if logs.FilterMessage("Cache invalidated").Len() != 1 {
		t.Error("expected an invalidation log entry")
	}
	if _, ok := m.Get(ctx, "alerts:1"); ok {
		t.Error("expected key removed after invalidation")
	}
}

// TestPaginateClamps проверяет приведение параметров к допустимым границам
func TestPaginateClamps(t *testing.T) {
	items := []int{1, 2, 3}

	tests := []struct {
		name        string
		page        int
		perPage     int
		maxPerPage  int
		wantPage    int
		wantPerPage int
		wantItems   int
	}{
		{"page below one", 0, 10, 100, 1, 10, 3},
		{"negative page", -5, 10, 100, 1, 10, 3},
		{"per page above max", 1, 500, 100, 1, 100, 3},
		{"per page below one", 1, 0, 100, 1, 1, 1},
		{"page past the end", 9, 2, 100, 9, 2, 0},
		{"max per page below one", 1, 10, 0, 1, 1, 1},
		{"negative max per page", 1, 10, -5, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(items, tt.page, tt.perPage, tt.maxPerPage)
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage || len(p.Items) != tt.wantItems {
				t.Errorf("got page=%d perPage=%d items=%d, want page=%d perPage=%d items=%d",
					p.Page, p.PerPage, len(p.Items), tt.wantPage, tt.wantPerPage, tt.wantItems)
			}
		})
	}
}

// Example_paginate демонстрирует постраничную разбивку списка.
func Example_paginate() {
	items := []string{"a", "b", "c", "d", "e"}

	page := Paginate(items, 2, 2, 100)

	fmt.Printf("items=%v page=%d of %d hasNext=%v hasPrev=%v\n",
		page.Items, page.Page, page.TotalPages, page.HasNext, page.HasPrev)
	// Output: items=[c d] page=2 of 3 hasNext=true hasPrev=true
}
