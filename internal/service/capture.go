package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"atma-secure/internal/classifier"
	"atma-secure/internal/models"
)

// CaptureRequest 边缘层（HTTP / MQTT）上报的一次抓拍
// frame 为 base64 编码的 JPEG；hand / emotion 为分类器的原始 JSON 输出
type CaptureRequest struct {
	Frame     []byte          `json:"frame"`
	Hand      json.RawMessage `json:"hand"`
	Emotion   json.RawMessage `json:"emotion"`
	Latitude  *float64        `json:"latitude,omitempty"`
	Longitude *float64        `json:"longitude,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Capture 解析分类器输出；hand 与 emotion 都缺省时由服务端分类器处理画面
func (r CaptureRequest) Capture() (Capture, error) {
	if len(bytes.TrimSpace(r.Hand)) == 0 && len(bytes.TrimSpace(r.Emotion)) == 0 && len(r.Frame) > 0 {
		return Capture{Frame: r.Frame, Unclassified: true}, nil
	}
	hand, err := classifier.ParseHandJSON(r.Hand)
	if err != nil {
		return Capture{}, fmt.Errorf("%w: %v", models.ErrClassification, err)
	}
	return Capture{
		Frame:   r.Frame,
		Hand:    hand,
		Emotion: classifier.ParseEmotionJSON(r.Emotion),
	}, nil
}

// LocationURL 地图链接；缺少坐标时返回 "Location unavailable"
func (r CaptureRequest) LocationURL() string {
	return models.FormatLocationURL(r.Latitude, r.Longitude)
}

// AlertRequest 手动通知 / SOS 请求
type AlertRequest struct {
	Frame     []byte   `json:"frame,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Message   string   `json:"message,omitempty"`
}

func (r AlertRequest) LocationURL() string {
	return models.FormatLocationURL(r.Latitude, r.Longitude)
}
