// Package repository читает агрегированные бизнес-показатели из базы
// данных CRM. Пакет работает только на чтение: схема принадлежит
// внешнему CRUD-слою и здесь не создаётся и не изменяется.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/levinOo/go-monitoring-core/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Source определяет источник бизнес-снимков для сборщика метрик.
type Source interface {
	Snapshot(ctx context.Context) (models.BusinessSample, error)
}

// DBSource реализует Source поверх PostgreSQL.
type DBSource struct {
	db *sql.DB
}

// Open открывает подключение к базе данных CRM и проверяет его.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewDBSource создаёт источник снимков поверх готового подключения.
func NewDBSource(db *sql.DB) *DBSource {
	return &DBSource{db: db}
}

// Snapshot собирает один бизнес-снимок: счётчики пользователей, клиентов,
// сделок и счетов плюс производная конверсия. Любая ошибка запроса
// возвращается вызывающему; сборщик трактует её как пропущенный цикл.
func (s *DBSource) Snapshot(ctx context.Context) (models.BusinessSample, error) {
	var sample models.BusinessSample

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&sample.TotalUsers)
	if err != nil {
		return sample, fmt.Errorf("failed to count users: %w", err)
	}

	activeCutoff := time.Now().Add(-24 * time.Hour)
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE created_at >= $1`, activeCutoff,
	).Scan(&sample.ActiveUsers24h)
	if err != nil {
		return sample, fmt.Errorf("failed to count active users: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&sample.TotalClients)
	if err != nil {
		return sample, fmt.Errorf("failed to count clients: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(value), 0) FROM opportunities`,
	).Scan(&sample.TotalOpportunities, &sample.OpportunitiesValue)
	if err != nil {
		return sample, fmt.Errorf("failed to aggregate opportunities: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM invoices`,
	).Scan(&sample.TotalInvoices, &sample.InvoicesValue)
	if err != nil {
		return sample, fmt.Errorf("failed to aggregate invoices: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM invoices WHERE status = 'paid'`,
	).Scan(&sample.PaidInvoicesValue)
	if err != nil {
		return sample, fmt.Errorf("failed to aggregate paid invoices: %w", err)
	}

	if sample.InvoicesValue > 0 {
		sample.ConversionRate = sample.PaidInvoicesValue / sample.InvoicesValue * 100
	}

	sample.Timestamp = time.Now()
	return sample, nil
}

// Ping проверяет доступность базы данных; используется отчётом о здоровье.
func (s *DBSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
