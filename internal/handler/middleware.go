package handler

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/levinOo/go-monitoring-core/internal/collector"
	"github.com/levinOo/go-monitoring-core/internal/logger"
	"github.com/levinOo/go-monitoring-core/internal/ratelimit"
)

// RequestLogger журналирует каждый запрос: URI, метод, длительность,
// статус и размер ответа.
func RequestLogger(sugar *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := time.Now()

			responseData := &logger.ResponseData{}
			lw := logger.LoggingRW{
				ResponseWriter: rw,
				ResponseData:   responseData,
			}

			next.ServeHTTP(&lw, r)

			dur := time.Since(start)

			sugar.Infoln(
				"uri", r.RequestURI,
				"method", r.Method,
				"duration", dur,
				"status", responseData.Status,
				"size", responseData.Size,
			)
		})
	}
}

// RateLimit отклоняет запросы сверх лимита клиента кодом 429.
// Клиент определяется по IP-адресу; пути из excluded не ограничиваются.
func RateLimit(limiter *ratelimit.Limiter, excluded []string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(excluded))
	for _, path := range excluded {
		skip[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(rw, r)
				return
			}

			if !limiter.Allow(clientIP(r)) {
				rw.Header().Set("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
				writeError(rw, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(rw, r)
		})
	}
}

// RecordAPI записывает результат каждого обработанного запроса
// в сборщик метрик. Запросы к самим эндпоинтам мониторинга
// не записываются, чтобы сервис не измерял сам себя.
func RecordAPI(c *collector.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/monitoring") {
				next.ServeHTTP(rw, r)
				return
			}

			start := time.Now()

			responseData := &logger.ResponseData{}
			lw := logger.LoggingRW{
				ResponseWriter: rw,
				ResponseData:   responseData,
			}

			next.ServeHTTP(&lw, r)

			status := responseData.Status
			if status == 0 {
				status = http.StatusOK
			}

			c.RecordAPICall(r.URL.Path, r.Method, time.Since(start).Seconds(), status, clientIP(r))
		})
	}
}

// clientIP извлекает адрес клиента: X-Forwarded-For, затем X-Real-IP,
// затем адрес соединения.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
