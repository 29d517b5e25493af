package repository

import (
	"context"

	"atma-secure/internal/models"

	"go.uber.org/zap"
)

// EventPublisher 将已落盘的事件转发给下游（如 Redis Streams）
type EventPublisher interface {
	Publish(ctx context.Context, record models.EventRecord) error
}

// PublishingEventLog 在持久化成功后转发事件
// 转发失败只记录日志：持久化日志才是审计依据
type PublishingEventLog struct {
	EventLog
	publisher EventPublisher
	logger    *zap.Logger
}

func NewPublishingEventLog(log EventLog, publisher EventPublisher, logger *zap.Logger) *PublishingEventLog {
	return &PublishingEventLog{EventLog: log, publisher: publisher, logger: logger}
}

func (l *PublishingEventLog) Append(ctx context.Context, record models.EventRecord) error {
	if err := l.EventLog.Append(ctx, record); err != nil {
		return err
	}
	if err := l.publisher.Publish(ctx, record); err != nil {
		l.logger.Warn("Failed to publish event",
			zap.String("event", string(record.Event)),
			zap.Error(err),
		)
	}
	return nil
}
