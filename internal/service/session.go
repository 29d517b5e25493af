package service

import (
	"context"
	"fmt"
	"time"

	"atma-secure/internal/classifier"
	"atma-secure/internal/evaluator"
	"atma-secure/internal/models"
	"atma-secure/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Responder 报警调度能力（dispatcher.Dispatcher 实现）
type Responder interface {
	RunAutoResponse(ctx context.Context, frame []byte, verdict models.Verdict, actx models.AlertContext) models.AutoResponse
	DispatchNotification(ctx context.Context, actx models.AlertContext) []models.DispatchOutcome
	ManualSOS(ctx context.Context, frame []byte, actx models.AlertContext) models.SOSResponse
}

// Capture 一次抓拍：画面 + 分类器输出
// Unclassified 为 true 时忽略 Hand / Emotion，由控制器的分类器处理 Frame
type Capture struct {
	Frame        []byte
	Hand         classifier.HandResult
	Emotion      classifier.EmotionResult
	Unclassified bool
}

// CycleResult 自动检测周期的结果
type CycleResult struct {
	CycleID     string               `json:"cycle_id"`
	Observation models.Observation   `json:"observation"`
	Verdict     models.Verdict       `json:"verdict"`
	Response    *models.AutoResponse `json:"response,omitempty"`
}

// SOSResult 手动 SOS 周期的结果
type SOSResult struct {
	CycleID string `json:"cycle_id"`
	models.SOSResponse
}

// NotifyResult 手动发送通知的结果
type NotifyResult struct {
	CycleID  string                   `json:"cycle_id"`
	Outcomes []models.DispatchOutcome `json:"outcomes"`
}

// SessionControllerConfig 联系人与默认消息（启动时配置，之后不变）
type SessionControllerConfig struct {
	Recipients     []string
	DefaultMessage string
}

// SessionController 编排检测 → 判定 → 调度 → 记录
// 控制器本身不保存跨周期状态，历史只存在于事件日志中
type SessionController struct {
	adapter   *classifier.Adapter
	responder Responder
	eventLog  repository.EventLog
	cfg       SessionControllerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionController 创建会话控制器
func NewSessionController(
	adapter *classifier.Adapter,
	responder Responder,
	eventLog repository.EventLog,
	cfg SessionControllerConfig,
	logger *zap.Logger,
) *SessionController {
	recipients := make([]string, len(cfg.Recipients))
	copy(recipients, cfg.Recipients)
	cfg.Recipients = recipients

	return &SessionController{
		adapter:   adapter,
		responder: responder,
		eventLog:  eventLog,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// AlertContextFor 构建报警上下文：联系人来自配置，消息为空时使用默认消息
func (c *SessionController) AlertContextFor(locationURL, message string) models.AlertContext {
	if message == "" {
		message = c.cfg.DefaultMessage
	}
	if locationURL == "" {
		locationURL = models.LocationUnavailable
	}
	recipients := make([]string, len(c.cfg.Recipients))
	copy(recipients, c.cfg.Recipients)

	return models.AlertContext{
		LocationURL: locationURL,
		Message:     message,
		Recipients:  recipients,
		CapturedAt:  c.now(),
	}
}

// AutoCycle 自动检测周期
// 每个成立的信号先写一条检测记录，之后才执行自动响应；日志写入失败立即返回错误
func (c *SessionController) AutoCycle(ctx context.Context, capture Capture, actx models.AlertContext) (*CycleResult, error) {
	ctx = detach(ctx)
	result := &CycleResult{CycleID: uuid.New().String()}
	logger := c.logger.With(zap.String("cycle_id", result.CycleID))

	if capture.Unclassified {
		result.Observation = c.adapter.Classify(ctx, capture.Frame)
	} else {
		result.Observation = c.adapter.Adapt(capture.Hand, capture.Emotion)
	}
	result.Verdict = evaluator.Evaluate(result.Observation)

	logger.Info("Capture evaluated",
		zap.Bool("hand_present", result.Observation.HandPresent),
		zap.String("emotion", result.Observation.EmotionLabel),
		zap.String("verdict", result.Verdict.Kind.String()),
	)

	for _, kind := range result.Verdict.Signals() {
		if err := c.record(ctx, kind, actx); err != nil {
			return result, err
		}
	}

	if !result.Verdict.Dangerous() {
		return result, nil
	}

	resp := c.responder.RunAutoResponse(ctx, capture.Frame, result.Verdict, actx)
	result.Response = &resp

	if err := c.record(ctx, models.EventAutoPhoto, actx); err != nil {
		return result, err
	}
	return result, nil
}

// NotifyContacts 向所有联系人发送通知（由前端确认后显式调用）
// 每次扇出记录一条 ManualAlertSent，与自动检测记录区分
func (c *SessionController) NotifyContacts(ctx context.Context, actx models.AlertContext) (*NotifyResult, error) {
	ctx = detach(ctx)
	result := &NotifyResult{CycleID: uuid.New().String()}
	result.Outcomes = c.responder.DispatchNotification(ctx, actx)

	c.logger.Info("Emergency alert sent to contacts",
		zap.String("cycle_id", result.CycleID),
		zap.Int("recipients", len(result.Outcomes)),
		zap.Int("delivered", models.Delivered(result.Outcomes)),
	)

	if err := c.record(ctx, models.EventManualAlertSent, actx); err != nil {
		return result, err
	}
	return result, nil
}

// SOSCycle 手动 SOS：跳过判定，无论发送结果如何都记录 SOS
func (c *SessionController) SOSCycle(ctx context.Context, frame []byte, actx models.AlertContext) (*SOSResult, error) {
	ctx = detach(ctx)
	result := &SOSResult{CycleID: uuid.New().String()}
	result.SOSResponse = c.responder.ManualSOS(ctx, frame, actx)

	c.logger.Info("SOS cycle finished",
		zap.String("cycle_id", result.CycleID),
		zap.Int("recipients", len(result.Notifications)),
		zap.Int("delivered", models.Delivered(result.Notifications)),
	)

	if err := c.record(ctx, models.EventSOS, actx); err != nil {
		return result, err
	}
	return result, nil
}

// detach 周期一旦开始就要完成扇出并写入记录，不随请求或消费者的 ctx 取消
// 每个联系人的发送仍受 NotifyTimeout 约束
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (c *SessionController) record(ctx context.Context, kind models.EventKind, actx models.AlertContext) error {
	rec := models.NewEventRecord(c.now(), kind, actx.Location())
	if err := c.eventLog.Append(ctx, rec); err != nil {
		c.logger.Error("Failed to record event",
			zap.String("event", string(kind)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to record %s: %w", kind, err)
	}
	return nil
}
