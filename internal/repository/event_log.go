package repository

import (
	"context"

	"atma-secure/internal/models"
)

// EventLog 只追加的审计日志
// Append 失败必须返回错误；ReadAll 按追加顺序返回；存储不存在时返回空序列
type EventLog interface {
	Append(ctx context.Context, record models.EventRecord) error
	ReadAll(ctx context.Context) ([]models.EventRecord, error)
	Aggregate(ctx context.Context) (*models.EventStats, error)
}

// csvHeader 持久化表头
var csvHeader = []string{"timestamp", "event", "location"}
