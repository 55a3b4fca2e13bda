// Package models содержит структуры данных, описывающие основные сущности предметной области.
// Пакет не содержит бизнес-логику и используется для передачи данных между слоями приложения.
package models

import "time"

// Уровни серьёзности оповещений
const (
	// SeverityLow — информационное оповещение, вмешательство не требуется.
	SeverityLow = "low"

	// SeverityMedium — деградация, требующая внимания в рабочем порядке.
	SeverityMedium = "medium"

	// SeverityHigh — серьёзная деградация, требующая оперативной реакции.
	SeverityHigh = "high"

	// SeverityCritical — критическое состояние, угрожающее доступности системы.
	SeverityCritical = "critical"
)

// Статусы здоровья компонентов системы
const (
	StatusHealthy   = "healthy"
	StatusWarning   = "warning"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
	StatusError     = "error"
)

// SystemSample представляет один снимок состояния хоста.
// Создаётся фоновым сборщиком и после записи не изменяется.
type SystemSample struct {
	// Timestamp содержит момент снятия показаний.
	Timestamp time.Time `json:"timestamp"`

	// CPUPercent содержит загрузку процессора в процентах.
	CPUPercent float64 `json:"cpu_percent"`

	// MemoryPercent содержит использование оперативной памяти в процентах.
	MemoryPercent float64 `json:"memory_percent"`

	// DiskPercent содержит заполненность корневого раздела в процентах.
	DiskPercent float64 `json:"disk_usage_percent"`

	// Connections содержит число открытых сетевых соединений.
	Connections int `json:"network_connections"`

	// Goroutines содержит число активных горутин процесса.
	Goroutines int `json:"active_goroutines"`

	// UptimeSeconds содержит время работы хоста в секундах.
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// APISample представляет результат одного обработанного HTTP-запроса.
type APISample struct {
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	ResponseTime float64   `json:"response_time"`
	StatusCode   int       `json:"status_code"`
	Timestamp    time.Time `json:"timestamp"`

	// CallerID содержит идентификатор вызывающей стороны (обычно IP-адрес).
	CallerID string `json:"caller_id,omitempty"`
}

// BusinessSample представляет агрегированный снимок бизнес-показателей,
// прочитанный из внешней базы данных CRM.
type BusinessSample struct {
	TotalUsers         int       `json:"total_users"`
	ActiveUsers24h     int       `json:"active_users_24h"`
	TotalClients       int       `json:"total_clients"`
	TotalOpportunities int       `json:"total_opportunities"`
	OpportunitiesValue float64   `json:"total_opportunities_value"`
	TotalInvoices      int       `json:"total_invoices"`
	InvoicesValue      float64   `json:"total_invoices_value"`
	PaidInvoicesValue  float64   `json:"paid_invoices_value"`
	ConversionRate     float64   `json:"conversion_rate"`
	Timestamp          time.Time `json:"timestamp"`
}

// Alert представляет оповещение о превышении порога.
// Создаётся движком оповещений и изменяется только при разрешении.
type Alert struct {
	// ID содержит уникальный идентификатор вида "<type>_<unixnano>".
	// Наносекундная метка различает оповещения одного типа, созданные
	// после разрешения предыдущего в пределах той же секунды.
	ID string `json:"id"`

	// Type содержит ключ дедупликации: пока существует неразрешённое
	// оповещение данного типа, новые того же типа не создаются.
	Type string `json:"type"`

	// Severity содержит уровень серьёзности: low, medium, high или critical.
	Severity string `json:"severity"`

	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`

	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Page представляет страницу списочного ответа со стандартными
// полями навигации.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ComponentHealth описывает состояние одной подсистемы в отчёте о здоровье.
type ComponentHealth struct {
	Status string `json:"status"`

	// Message заполняется, когда данных для оценки недостаточно.
	Message string `json:"message,omitempty"`

	CPUUsage        *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage     *float64 `json:"memory_usage,omitempty"`
	DiskUsage       *float64 `json:"disk_usage,omitempty"`
	TotalCalls      *int     `json:"total_calls,omitempty"`
	ErrorRate       *float64 `json:"error_rate,omitempty"`
	AvgResponseTime *float64 `json:"avg_response_time,omitempty"`
	ConversionRate  *float64 `json:"conversion_rate,omitempty"`
	TotalClients    *int     `json:"total_clients,omitempty"`
}

// HealthReport представляет сводный отчёт о здоровье системы,
// отдаваемый эндпоинтом /monitoring/health.
type HealthReport struct {
	Timestamp     time.Time       `json:"timestamp"`
	Status        string          `json:"status"`
	System        ComponentHealth `json:"system"`
	Database      ComponentHealth `json:"database"`
	API           ComponentHealth `json:"api"`
	Business      ComponentHealth `json:"business"`
	UptimeSeconds float64         `json:"uptime"`
	Version       string          `json:"version"`
	SkippedCycles int64           `json:"skipped_cycles"`
}
