package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestNewLogger проверяет создание логгера без фатального завершения процесса
func TestNewLogger(t *testing.T) {
	sugar, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if sugar == nil {
		t.Fatal("expected a logger instance")
	}
	defer sugar.Sync()
}

// TestLoggingRW проверяет накопление статуса и размера ответа
func TestLoggingRW(t *testing.T) {
	rec := httptest.NewRecorder()
	data := &ResponseData{}
	lw := LoggingRW{
		ResponseWriter: rec,
		ResponseData:   data,
	}

	lw.WriteHeader(http.StatusNotFound)
	lw.Write([]byte("hello"))
	lw.Write([]byte("!"))

	if data.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", data.Status)
	}
	if data.Size != 6 {
		t.Errorf("expected accumulated size 6, got %d", data.Size)
	}
	if rec.Code != http.StatusNotFound || rec.Body.String() != "hello!" {
		t.Errorf("wrapped writer must pass data through, got code=%d body=%q", rec.Code, rec.Body.String())
	}
}
