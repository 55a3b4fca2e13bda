// Package logger создаёт zap-логгер сервиса и содержит обёртку
// http.ResponseWriter, через которую middleware снимает статус и размер
// ответа для журнала запросов и записи API-метрик.
package logger

import (
	"net/http"

	"go.uber.org/zap"
)

// ResponseData накапливает метаданные одного HTTP-ответа.
type ResponseData struct {
	// Status содержит итоговый HTTP-код ответа.
	Status int

	// Size содержит суммарный размер тела ответа в байтах.
	Size int
}

// LoggingRW оборачивает http.ResponseWriter и перехватывает Write и
// WriteHeader, не меняя поведения ответа. Одна и та же обёртка питает
// и журнал запросов, и сборщик метрик API.
type LoggingRW struct {
	http.ResponseWriter
	ResponseData *ResponseData
}

// Write записывает данные в ответ и накапливает размер в ResponseData.
func (r *LoggingRW) Write(b []byte) (int, error) {
	size, err := r.ResponseWriter.Write(b)
	r.ResponseData.Size += size
	return size, err
}

// WriteHeader устанавливает HTTP-код ответа и сохраняет его в ResponseData.
// Если обработчик не вызвал WriteHeader явно, Status остаётся нулевым
// и читающая сторона трактует его как 200.
func (r *LoggingRW) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.ResponseData.Status = statusCode
}

// NewLogger создает и возвращает настроенный zap.SugaredLogger.
// Вызывающий отвечает за Sync при завершении работы.
func NewLogger() (*zap.SugaredLogger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
