package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MessageResponse Twilio Messages API 响应
type MessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// APIError Twilio 错误响应
type APIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// WhatsAppClient 通过 Twilio Messages API 发送 WhatsApp 消息
type WhatsAppClient struct {
	httpClient *resty.Client
	accountSID string
	from       string
	logger     *zap.Logger
}

// NewWhatsAppClient 创建客户端；单次请求超时由调用方 context 控制
func NewWhatsAppClient(baseURL, accountSID, authToken, from string, retries int, logger *zap.Logger) *WhatsAppClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetBasicAuth(accountSID, authToken).
		SetHeader("Accept", "application/json")

	return &WhatsAppClient{
		httpClient: client,
		accountSID: accountSID,
		from:       from,
		logger:     logger,
	}
}

// Send 发送消息，返回消息 SID
func (c *WhatsAppClient) Send(ctx context.Context, recipient, body string) (string, error) {
	var result MessageResponse
	var apiErr APIError

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From": c.from,
			"To":   recipient,
			"Body": body,
		}).
		SetResult(&result).
		SetError(&apiErr).
		SetPathParam("sid", c.accountSID).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return "", fmt.Errorf("failed to call messaging API: %w", err)
	}

	if resp.IsError() {
		c.logger.Warn("Messaging API returned error",
			zap.String("recipient", recipient),
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("code", apiErr.Code),
			zap.String("msg", apiErr.Message),
		)
		if apiErr.Message != "" {
			return "", fmt.Errorf("messaging API error: %s (code: %d, status: %d)", apiErr.Message, apiErr.Code, resp.StatusCode())
		}
		return "", fmt.Errorf("messaging API error: status %d", resp.StatusCode())
	}

	if result.SID == "" {
		return "", fmt.Errorf("messaging API returned no message sid")
	}
	return result.SID, nil
}
