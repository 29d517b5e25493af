package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atma-secure/internal/models"

	"go.uber.org/zap"
)

// HandResult 手势分类器的原始输出（已解析）
type HandResult struct {
	Present bool
}

// EmotionResult 情绪分类器的原始输出（已解析）
type EmotionResult struct {
	Label string
	Err   error
}

// HandDetector 进程内手势分类器
type HandDetector interface {
	DetectHand(ctx context.Context, frame []byte) (HandResult, error)
}

// EmotionDetector 进程内情绪分类器
type EmotionDetector interface {
	DetectEmotion(ctx context.Context, frame []byte) (EmotionResult, error)
}

// Adapter 将分类器输出归一化为 Observation
type Adapter struct {
	hands    HandDetector
	emotions EmotionDetector
	logger   *zap.Logger
}

// NewAdapter 创建分类适配器；detector 可以为 nil（输出由调用方提供）
func NewAdapter(hands HandDetector, emotions EmotionDetector, logger *zap.Logger) *Adapter {
	return &Adapter{hands: hands, emotions: emotions, logger: logger}
}

// Adapt 归一化已解析的输出
func (a *Adapter) Adapt(hand HandResult, emotion EmotionResult) models.Observation {
	obs := models.Observation{HandPresent: hand.Present}

	label := strings.ToLower(strings.TrimSpace(emotion.Label))
	switch {
	case emotion.Err != nil:
		obs.EmotionLabel = models.EmotionError
		obs.EmotionErr = emotion.Err.Error()
	case label == "":
		obs.EmotionLabel = models.EmotionError
		obs.EmotionErr = fmt.Errorf("%w: empty label", models.ErrClassification).Error()
	default:
		obs.EmotionLabel = label
	}

	if obs.EmotionErr != "" {
		a.logger.Warn("Emotion classification degraded to error label",
			zap.String("reason", obs.EmotionErr),
		)
	}
	return obs
}

// Classify 调用进程内分类器；分类器错误只会降级，不会中断
func (a *Adapter) Classify(ctx context.Context, frame []byte) models.Observation {
	var hand HandResult
	if a.hands != nil {
		h, err := a.hands.DetectHand(ctx, frame)
		if err != nil {
			a.logger.Warn("Hand detection failed, treating as no hand", zap.Error(err))
		} else {
			hand = h
		}
	}

	emotion := EmotionResult{Err: fmt.Errorf("%w: no emotion detector configured", models.ErrClassification)}
	if a.emotions != nil {
		e, err := a.emotions.DetectEmotion(ctx, frame)
		if err != nil {
			e = EmotionResult{Err: fmt.Errorf("%w: %v", models.ErrClassification, err)}
		}
		emotion = e
	}

	return a.Adapt(hand, emotion)
}

// ParseHandJSON 解析手势分类器输出
// 接受：布尔值；关键点列表（非空即为检测到）；带 multi_hand_landmarks 的对象；null
func ParseHandJSON(raw json.RawMessage) (HandResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return HandResult{}, nil
	}

	switch raw[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return HandResult{}, fmt.Errorf("invalid hand result: %w", err)
		}
		return HandResult{Present: b}, nil
	case '[':
		var landmarks []json.RawMessage
		if err := json.Unmarshal(raw, &landmarks); err != nil {
			return HandResult{}, fmt.Errorf("invalid hand landmarks: %w", err)
		}
		return HandResult{Present: len(landmarks) > 0}, nil
	case '{':
		var obj struct {
			MultiHandLandmarks json.RawMessage `json:"multi_hand_landmarks"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return HandResult{}, fmt.Errorf("invalid hand result: %w", err)
		}
		return ParseHandJSON(obj.MultiHandLandmarks)
	default:
		return HandResult{}, fmt.Errorf("unsupported hand result: %s", truncate(raw))
	}
}

// ParseEmotionJSON 解析情绪分类器输出
// 接受：{"dominant_emotion": "..."}；该对象的列表（取第一个）；字符串；{"error": "..."}
// 无法解析时返回带 Err 的结果，而不是 error
func ParseEmotionJSON(raw json.RawMessage) EmotionResult {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return EmotionResult{Err: fmt.Errorf("%w: missing emotion result", models.ErrClassification)}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return EmotionResult{Err: fmt.Errorf("%w: %v", models.ErrClassification, err)}
		}
		return EmotionResult{Label: s}
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return EmotionResult{Err: fmt.Errorf("%w: %v", models.ErrClassification, err)}
		}
		if len(list) == 0 {
			return EmotionResult{Err: fmt.Errorf("%w: empty result list", models.ErrClassification)}
		}
		return ParseEmotionJSON(list[0])
	case '{':
		var obj struct {
			DominantEmotion string `json:"dominant_emotion"`
			Error           string `json:"error"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return EmotionResult{Err: fmt.Errorf("%w: %v", models.ErrClassification, err)}
		}
		if obj.Error != "" {
			return EmotionResult{Err: fmt.Errorf("%w: %s", models.ErrClassification, obj.Error)}
		}
		return EmotionResult{Label: obj.DominantEmotion}
	default:
		return EmotionResult{Err: fmt.Errorf("%w: unsupported result %s", models.ErrClassification, truncate(raw))}
	}
}

func truncate(raw []byte) string {
	if len(raw) > 32 {
		return string(raw[:32]) + "..."
	}
	return string(raw)
}
