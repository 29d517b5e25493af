package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPDetector 远程分类服务客户端，同时实现 HandDetector 和 EmotionDetector
// POST {base}/hand 与 POST {base}/emotion，请求体为 JPEG，响应体为分类器原始 JSON
type HTTPDetector struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPDetector 创建远程分类客户端
func NewHTTPDetector(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPDetector {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPDetector{httpClient: client, logger: logger}
}

func (d *HTTPDetector) DetectHand(ctx context.Context, frame []byte) (HandResult, error) {
	body, err := d.post(ctx, "/hand", frame)
	if err != nil {
		return HandResult{}, err
	}
	return ParseHandJSON(body)
}

func (d *HTTPDetector) DetectEmotion(ctx context.Context, frame []byte) (EmotionResult, error) {
	body, err := d.post(ctx, "/emotion", frame)
	if err != nil {
		return EmotionResult{}, err
	}
	return ParseEmotionJSON(body), nil
}

func (d *HTTPDetector) post(ctx context.Context, path string, frame []byte) ([]byte, error) {
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/jpeg").
		SetBody(frame).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("failed to call classifier %s: %w", path, err)
	}
	if resp.IsError() {
		d.logger.Warn("Classifier returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("classifier %s error: status %d", path, resp.StatusCode())
	}
	return resp.Body(), nil
}
