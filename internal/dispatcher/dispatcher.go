package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atma-secure/internal/audio"
	"atma-secure/internal/models"
	"atma-secure/internal/notifier"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PhotoStore 快照持久化
type PhotoStore interface {
	Save(frame []byte, capturedAt time.Time) (string, error)
}

// Config 调度器配置
type Config struct {
	// HelpPhrase 报警时播放的语句
	HelpPhrase string
	// NotifyTimeout 单个联系人发送的超时时间
	NotifyTimeout time.Duration
}

// Dispatcher 报警调度器：声音提示、快照保存、通知扇出
type Dispatcher struct {
	notifier notifier.Notifier
	player   audio.Player
	photos   PhotoStore
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher 创建报警调度器
func NewDispatcher(
	n notifier.Notifier,
	player audio.Player,
	photos PhotoStore,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 15 * time.Second
	}
	return &Dispatcher{
		notifier: n,
		player:   player,
		photos:   photos,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RunAutoResponse 检测到危险后的自动响应：先播放声音，再保存快照
// 两者都不会中断流程；通知由调用方通过 DispatchNotification 单独触发
func (d *Dispatcher) RunAutoResponse(ctx context.Context, frame []byte, verdict models.Verdict, actx models.AlertContext) models.AutoResponse {
	var resp models.AutoResponse
	d.playSound(ctx, &resp)
	d.savePhoto(frame, actx, &resp)

	d.logger.Info("Auto response executed",
		zap.String("verdict", verdict.Kind.String()),
		zap.Bool("sound_played", resp.SoundPlayed),
		zap.String("photo_path", resp.PhotoPath),
	)
	return resp
}

// DispatchNotification 并发向所有联系人发送通知
// 返回结果数量始终等于联系人数量，顺序与联系人顺序一致；不会返回错误
func (d *Dispatcher) DispatchNotification(ctx context.Context, actx models.AlertContext) []models.DispatchOutcome {
	outcomes := make([]models.DispatchOutcome, len(actx.Recipients))
	body := actx.Body()

	// 单个联系人的失败不取消其它联系人，因此不使用 errgroup.WithContext
	var g errgroup.Group
	for i, recipient := range actx.Recipients {
		i, recipient := i, recipient
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, recipient, body)
			return nil
		})
	}
	_ = g.Wait() // 错误已写入 outcomes

	d.logger.Info("Notification fan-out finished",
		zap.Int("recipients", len(outcomes)),
		zap.Int("delivered", models.Delivered(outcomes)),
	)
	return outcomes
}

// ManualSOS 手动求救：无需判定，直接播放声音、保存快照（若有）并通知所有联系人
// 声音和快照与通知扇出并发执行
func (d *Dispatcher) ManualSOS(ctx context.Context, frame []byte, actx models.AlertContext) models.SOSResponse {
	var resp models.SOSResponse

	var g errgroup.Group
	g.Go(func() error {
		d.playSound(ctx, &resp.AutoResponse)
		if len(frame) > 0 {
			d.savePhoto(frame, actx, &resp.AutoResponse)
		}
		return nil
	})
	g.Go(func() error {
		resp.Notifications = d.DispatchNotification(ctx, actx)
		return nil
	})
	_ = g.Wait()

	d.logger.Info("Manual SOS dispatched",
		zap.Bool("sound_played", resp.SoundPlayed),
		zap.Int("delivered", models.Delivered(resp.Notifications)),
		zap.Int("recipients", len(resp.Notifications)),
	)
	return resp
}

func (d *Dispatcher) playSound(ctx context.Context, resp *models.AutoResponse) {
	if err := d.player.Play(ctx, d.cfg.HelpPhrase); err != nil {
		resp.SoundError = fmt.Errorf("%w: %v", models.ErrPlayback, err).Error()
		d.logger.Warn("Failed to play help sound", zap.Error(err))
		return
	}
	resp.SoundPlayed = true
}

func (d *Dispatcher) savePhoto(frame []byte, actx models.AlertContext, resp *models.AutoResponse) {
	capturedAt := actx.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = d.now()
	}

	path, err := d.photos.Save(frame, capturedAt)
	if err != nil {
		resp.PhotoError = fmt.Errorf("%w: %v", models.ErrPersistence, err).Error()
		d.logger.Error("Failed to save alert photo", zap.Error(err))
		return
	}
	resp.PhotoPath = path
}

type sendResult struct {
	ref string
	err error
}

// deliver 单个联系人发送，超过 NotifyTimeout 后立即返回超时结果
func (d *Dispatcher) deliver(ctx context.Context, recipient, body string) (outcome models.DispatchOutcome) {
	outcome.Recipient = recipient

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.NotifyTimeout)
	defer cancel()

	done := make(chan sendResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sendResult{err: fmt.Errorf("notifier panic: %v", r)}
			}
		}()
		ref, err := d.notifier.Send(sendCtx, recipient, body)
		done <- sendResult{ref: ref, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-sendCtx.Done():
		res = sendResult{err: sendCtx.Err()}
	}

	switch {
	case res.err == nil:
		outcome.Success = true
		outcome.Reference = res.ref
	case ctx.Err() != nil:
		// 调用方的 ctx 已结束，不属于单个联系人的发送超时
		outcome.Error = fmt.Errorf("%w: %v", models.ErrDelivery, context.Cause(ctx)).Error()
	case errors.Is(res.err, context.DeadlineExceeded):
		outcome.TimedOut = true
		outcome.Error = fmt.Errorf("%w after %s", models.ErrDeliveryTimeout, d.cfg.NotifyTimeout).Error()
	default:
		outcome.Error = fmt.Errorf("%w: %v", models.ErrDelivery, res.err).Error()
	}

	if !outcome.Success {
		d.logger.Warn("Notification delivery failed",
			zap.String("recipient", recipient),
			zap.Bool("timed_out", outcome.TimedOut),
			zap.String("error", outcome.Error),
		)
	}
	return outcome
}
