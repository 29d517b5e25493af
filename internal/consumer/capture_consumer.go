package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atma-secure/internal/models"
	"atma-secure/internal/service"

	mqttcommon "atma-secure/common/mqtt"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅能力（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// AutoCycler 自动检测周期（service.SessionController 实现）
type AutoCycler interface {
	AlertContextFor(locationURL, message string) models.AlertContext
	AutoCycle(ctx context.Context, capture service.Capture, actx models.AlertContext) (*service.CycleResult, error)
}

// CaptureConsumer 订阅摄像头设备上报的抓拍，逐条执行自动检测周期
type CaptureConsumer struct {
	subscriber Subscriber
	cycler     AutoCycler
	topic      string
	qos        byte
	logger     *zap.Logger
	ctx        context.Context
}

// NewCaptureConsumer 创建抓拍消费者
func NewCaptureConsumer(subscriber Subscriber, cycler AutoCycler, topic string, qos byte, logger *zap.Logger) *CaptureConsumer {
	return &CaptureConsumer{
		subscriber: subscriber,
		cycler:     cycler,
		topic:      topic,
		qos:        qos,
		logger:     logger,
		ctx:        context.Background(),
	}
}

// Start 启动消费者，阻塞直到 ctx 取消
func (c *CaptureConsumer) Start(ctx context.Context) error {
	c.ctx = ctx
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to capture topic: %w", err)
	}

	c.logger.Info("Capture consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *CaptureConsumer) Stop() {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("Capture consumer stopped")
}

// handleMessage 处理一条抓拍
// 主题格式: atma/{device_id}/capture
func (c *CaptureConsumer) handleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	deviceID := parts[1]

	var req service.CaptureRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.logger.Error("Failed to unmarshal capture",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal capture: %w", err)
	}

	capture, err := req.Capture()
	if err != nil {
		c.logger.Warn("Invalid capture", zap.String("device_id", deviceID), zap.Error(err))
		return err
	}

	actx := c.cycler.AlertContextFor(req.LocationURL(), req.Message)
	result, err := c.cycler.AutoCycle(c.ctx, capture, actx)
	if err != nil {
		c.logger.Error("Auto cycle failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return fmt.Errorf("auto cycle failed: %w", err)
	}

	c.logger.Info("Capture processed",
		zap.String("device_id", deviceID),
		zap.String("cycle_id", result.CycleID),
		zap.String("verdict", result.Verdict.Kind.String()),
	)
	return nil
}
