package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"atma-secure/internal/models"

	"go.uber.org/zap"
)

// Dialect SQL 方言
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// SQLEventLog 基于 event_log 表的事件日志（Postgres 或 SQLite）
// 顺序以自增 id 为准
type SQLEventLog struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewSQLEventLog 创建 SQL 事件日志
func NewSQLEventLog(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLEventLog {
	return &SQLEventLog{db: db, dialect: dialect, logger: logger}
}

// EnsureSchema 创建 event_log 表（幂等）
func (r *SQLEventLog) EnsureSchema(ctx context.Context) error {
	idColumn := "id BIGSERIAL PRIMARY KEY"
	if r.dialect == DialectSQLite {
		idColumn = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS event_log (
			%s,
			"timestamp" TEXT NOT NULL,
			event     TEXT NOT NULL,
			location  TEXT NOT NULL
		)`, idColumn)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create event_log table: %w", err)
	}
	return nil
}

// Append 追加一条记录
func (r *SQLEventLog) Append(ctx context.Context, record models.EventRecord) error {
	query := r.rebind(`INSERT INTO event_log ("timestamp", event, location) VALUES (?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, record.Timestamp, string(record.Event), record.Location); err != nil {
		r.logger.Error("Failed to append event",
			zap.String("event", string(record.Event)),
			zap.Error(err),
		)
		return &models.PersistenceError{Op: "append event", Err: err}
	}
	return nil
}

// ReadAll 按 id 顺序读取全部记录
func (r *SQLEventLog) ReadAll(ctx context.Context) ([]models.EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT "timestamp", event, location FROM event_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	records := []models.EventRecord{}
	for rows.Next() {
		var rec models.EventRecord
		var event string
		if err := rows.Scan(&rec.Timestamp, &event, &rec.Location); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Event = models.EventKind(event)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event log: %w", err)
	}
	return records, nil
}

// Aggregate 按事件类型分组计数
func (r *SQLEventLog) Aggregate(ctx context.Context) (*models.EventStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT event, COUNT(*) FROM event_log GROUP BY event`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate event log: %w", err)
	}
	defer rows.Close()

	stats := models.NewEventStats()
	for rows.Next() {
		var event string
		var count int
		if err := rows.Scan(&event, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		stats.Add(models.EventKind(event), count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event counts: %w", err)
	}
	return stats, nil
}

// rebind 将 ? 占位符转换为 Postgres 的 $n
func (r *SQLEventLog) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
