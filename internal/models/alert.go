package models

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// LocationUnavailable 浏览器/设备未提供定位时使用
	LocationUnavailable = "Location unavailable"
	// DefaultMessage 默认求救消息
	DefaultMessage = "🚨 Emergency Alert! Need help!"
)

// FormatLocationURL 将经纬度格式化为地图链接
// 只在边缘层（HTTP/MQTT）调用，核心流程只使用格式化后的字符串
func FormatLocationURL(latitude, longitude *float64) string {
	if latitude == nil || longitude == nil || *latitude == 0 || *longitude == 0 {
		return LocationUnavailable
	}
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s",
		strconv.FormatFloat(*latitude, 'f', -1, 64),
		strconv.FormatFloat(*longitude, 'f', -1, 64),
	)
}

// AlertContext 一次周期的报警上下文
type AlertContext struct {
	LocationURL string    `json:"location_url"`
	Message     string    `json:"message"`
	Recipients  []string  `json:"recipients"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Body 通知正文
func (c AlertContext) Body() string {
	return fmt.Sprintf("%s\nLocation: %s", c.Message, c.LocationURL)
}

// Location 事件日志使用的位置字段
func (c AlertContext) Location() string {
	if c.LocationURL == "" {
		return LocationUnavailable
	}
	return c.LocationURL
}

// DispatchOutcome 单个联系人的发送结果
type DispatchOutcome struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
	TimedOut  bool   `json:"timed_out,omitempty"`
}

// AutoResponse 自动响应（声音 + 拍照）的结果
type AutoResponse struct {
	SoundPlayed bool   `json:"sound_played"`
	SoundError  string `json:"sound_error,omitempty"`
	PhotoPath   string `json:"photo_path,omitempty"`
	PhotoError  string `json:"photo_error,omitempty"`
}

// SOSResponse 手动 SOS 的结果
type SOSResponse struct {
	AutoResponse
	Notifications []DispatchOutcome `json:"notifications"`
}

// Delivered 成功送达的联系人数量
func Delivered(outcomes []DispatchOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
