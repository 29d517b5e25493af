package store

import (
	"context"
	"fmt"

	rediscommon "atma-secure/common/redis"
	"atma-secure/internal/models"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher 将事件记录写入 Redis Stream，供看护端等下游消费
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamPublisher maxLen <= 0 表示不裁剪
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish XADD 一条事件
func (p *StreamPublisher) Publish(ctx context.Context, record models.EventRecord) error {
	_, err := rediscommon.PublishToStream(ctx, p.client, p.stream, p.maxLen, map[string]interface{}{
		"timestamp": record.Timestamp,
		"event":     string(record.Event),
		"location":  record.Location,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event to stream %s: %w", p.stream, err)
	}
	return nil
}

// Recent 读取 stream 中的事件（按写入顺序）
func (p *StreamPublisher) Recent(ctx context.Context) ([]models.EventRecord, error) {
	msgs, err := rediscommon.ReadRange(ctx, p.client, p.stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", p.stream, err)
	}

	records := make([]models.EventRecord, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, models.EventRecord{
			Timestamp: fmt.Sprint(msg.Values["timestamp"]),
			Event:     models.EventKind(fmt.Sprint(msg.Values["event"])),
			Location:  fmt.Sprint(msg.Values["location"]),
		})
	}
	return records, nil
}
