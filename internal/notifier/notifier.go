package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier 向单个联系人发送通知，成功时返回服务商引用（如消息 SID）
type Notifier interface {
	Send(ctx context.Context, recipient, body string) (string, error)
}

// DryRunNotifier 未配置服务商凭证时使用：只记录日志
type DryRunNotifier struct {
	logger *zap.Logger
}

func NewDryRunNotifier(logger *zap.Logger) *DryRunNotifier {
	return &DryRunNotifier{logger: logger}
}

func (n *DryRunNotifier) Send(_ context.Context, recipient, body string) (string, error) {
	ref := "dryrun-" + uuid.New().String()
	n.logger.Info("Dry-run notification",
		zap.String("recipient", recipient),
		zap.String("reference", ref),
		zap.Int("body_len", len(body)),
	)
	return ref, nil
}

// Publisher MQTT 发布能力
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// AlertMessage 发布到报警主题的消息
type AlertMessage struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	ID        string `json:"id"`
}

// MQTTNotifier 将通知发布到 MQTT 报警主题（本地警报器/值守大屏）
type MQTTNotifier struct {
	publisher Publisher
	topic     string
	qos       byte
}

func NewMQTTNotifier(publisher Publisher, topic string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{publisher: publisher, topic: topic, qos: qos}
}

func (n *MQTTNotifier) Send(_ context.Context, recipient, body string) (string, error) {
	msg := AlertMessage{Recipient: recipient, Body: body, ID: uuid.New().String()}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	if err := n.publisher.Publish(n.topic, n.qos, false, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("mqtt:%s:%s", n.topic, msg.ID), nil
}

// Multi 主通道 + 镜像通道
// 先发送主通道并以其结果为准；镜像通道在后台发送，失败只记录日志，不占用主通道的超时预算
type Multi struct {
	primary Notifier
	mirrors []Notifier
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewMulti(logger *zap.Logger, primary Notifier, mirrors ...Notifier) *Multi {
	return &Multi{primary: primary, mirrors: mirrors, logger: logger}
}

func (m *Multi) Send(ctx context.Context, recipient, body string) (string, error) {
	ref, err := m.primary.Send(ctx, recipient, body)

	// 调用方在返回后会取消 ctx，镜像发送不受其影响
	mirrorCtx := context.WithoutCancel(ctx)
	for _, mirror := range m.mirrors {
		m.wg.Add(1)
		go func(n Notifier) {
			defer m.wg.Done()
			if _, err := n.Send(mirrorCtx, recipient, body); err != nil {
				m.logger.Warn("Mirror notification failed",
					zap.String("recipient", recipient),
					zap.Error(err),
				)
			}
		}(mirror)
	}
	return ref, err
}

// Wait 等待后台镜像发送完成
func (m *Multi) Wait() {
	m.wg.Wait()
}
