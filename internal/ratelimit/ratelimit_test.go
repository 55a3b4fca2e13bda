package ratelimit

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLimiter(limit int, window time.Duration) *Limiter {
	return New(limit, window, zap.NewNop().Sugar())
}

// TestWindowProperty проверяет основное свойство скользящего окна:
// limit запросов проходят, следующий отклоняется, после истечения окна
// тот же идентификатор снова получает разрешение.
func TestWindowProperty(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if !l.allowAt(now, "ip1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if l.allowAt(now, "ip1") {
		t.Error("6th request within window should be denied")
	}

	// Отказ не учитывается: повторный отказ, а не сдвиг окна
	if l.allowAt(now.Add(time.Second), "ip1") {
		t.Error("denied request must not extend the window")
	}

	if !l.allowAt(now.Add(61*time.Second), "ip1") {
		t.Error("request after window expiry should be allowed")
	}
}

// TestIdentifierIsolation проверяет независимость квот разных идентификаторов
func TestIdentifierIsolation(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	now := time.Now()

	if !l.allowAt(now, "ip1") {
		t.Fatal("first request for ip1 should be allowed")
	}
	if l.allowAt(now, "ip1") {
		t.Error("second request for ip1 should be denied")
	}
	if !l.allowAt(now, "ip2") {
		t.Error("ip2 has its own quota and should be allowed")
	}
}

// TestSlidingBoundary проверяет, что окно скользит, а не сбрасывается
func TestSlidingBoundary(t *testing.T) {
	l := newTestLimiter(2, time.Minute)
	now := time.Now()

	l.allowAt(now, "ip1")
	l.allowAt(now.Add(30*time.Second), "ip1")

	if l.allowAt(now.Add(50*time.Second), "ip1") {
		t.Error("both requests still inside the window, expected denial")
	}

	// Первая метка вышла за окно, освободился один слот
	if !l.allowAt(now.Add(70*time.Second), "ip1") {
		t.Error("oldest request left the window, expected allowance")
	}
}

// TestSweep проверяет удаление устаревших идентификаторов
func TestSweep(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	now := time.Now()

	l.allowAt(now.Add(-2*time.Minute), "stale")
	l.allowAt(now, "active")

	removed := l.sweep(now)
	if removed != 1 {
		t.Errorf("expected 1 stale identifier removed, got %d", removed)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.requests["stale"]; ok {
		t.Error("stale identifier should be deleted")
	}
	if _, ok := l.requests["active"]; !ok {
		t.Error("active identifier should be kept")
	}
}

// TestStartStop проверяет корректную остановку фоновой очистки
func TestStartStop(t *testing.T) {
	l := newTestLimiter(1, 10*time.Millisecond)
	l.Start()

	l.Allow("ip1")
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return in time")
	}
}
