package models

import (
	"fmt"
	"strings"
)

// EmotionError 表示情绪分类器未能给出标签
const EmotionError = "error"

// Observation 一次抓拍的分类结果（已归一化）
type Observation struct {
	HandPresent  bool   `json:"hand_present"`
	EmotionLabel string `json:"emotion_label"`
	// EmotionErr 分类失败的原因；为空表示分类成功
	EmotionErr string `json:"emotion_error,omitempty"`
}

// IsFear 情绪标签为 fear（不区分大小写）
func (o Observation) IsFear() bool {
	return strings.EqualFold(o.EmotionLabel, "fear")
}

// VerdictKind 危险判定
type VerdictKind int

const (
	VerdictNone VerdictKind = iota
	VerdictHand
	VerdictFear
	VerdictBoth
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictHand:
		return "hand"
	case VerdictFear:
		return "fear"
	case VerdictBoth:
		return "both"
	default:
		return "none"
	}
}

// MarshalText 以字符串形式序列化
func (k VerdictKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 解析 MarshalText 的输出
func (k *VerdictKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*k = VerdictNone
	case "hand":
		*k = VerdictHand
	case "fear":
		*k = VerdictFear
	case "both":
		*k = VerdictBoth
	default:
		return fmt.Errorf("unknown verdict %q", text)
	}
	return nil
}

// Verdict 危险判定结果
type Verdict struct {
	Kind        VerdictKind `json:"kind"`
	Observation Observation `json:"observation"`
}

// Dangerous 判定是否需要触发报警
func (v Verdict) Dangerous() bool {
	return v.Kind != VerdictNone
}

// Signals 返回本次判定中每个成立的信号对应的检测事件（手势在前）
func (v Verdict) Signals() []EventKind {
	switch v.Kind {
	case VerdictHand:
		return []EventKind{EventHandDetected}
	case VerdictFear:
		return []EventKind{EventFearDetected}
	case VerdictBoth:
		return []EventKind{EventHandDetected, EventFearDetected}
	default:
		return nil
	}
}
