package models

import "time"

// TimestampLayout 事件日志中的时间格式
const TimestampLayout = "2006-01-02 15:04:05"

// EventKind 事件类型（字符串值与历史日志保持一致）
type EventKind string

const (
	EventHandDetected    EventKind = "hand_detected"
	EventFearDetected    EventKind = "fear_detected"
	EventAutoPhoto       EventKind = "AutoPhoto"
	EventSOS             EventKind = "SOS"
	EventManualAlertSent EventKind = "ManualAlertSent"
)

// EventRecord 审计日志中的一条记录，追加后不可修改
type EventRecord struct {
	Timestamp string    `json:"timestamp"`
	Event     EventKind `json:"event"`
	Location  string    `json:"location"`
}

// NewEventRecord 按当前时间构建记录
func NewEventRecord(at time.Time, kind EventKind, location string) EventRecord {
	if location == "" {
		location = LocationUnavailable
	}
	return EventRecord{
		Timestamp: at.Format(TimestampLayout),
		Event:     kind,
		Location:  location,
	}
}

// EventStats 事件统计
type EventStats struct {
	Total        int               `json:"total"`
	HandDetected int               `json:"hand_detected"`
	FearDetected int               `json:"fear_detected"`
	SOS          int               `json:"sos"`
	ByKind       map[EventKind]int `json:"by_kind"`
}

// NewEventStats 空统计（所有计数为 0）
func NewEventStats() *EventStats {
	return &EventStats{ByKind: make(map[EventKind]int)}
}

// Add 累加 n 条指定类型的记录
func (s *EventStats) Add(kind EventKind, n int) {
	s.Total += n
	s.ByKind[kind] += n
	switch kind {
	case EventHandDetected:
		s.HandDetected += n
	case EventFearDetected:
		s.FearDetected += n
	case EventSOS:
		s.SOS += n
	}
}

// StatsOf 对记录序列做聚合
func StatsOf(records []EventRecord) *EventStats {
	stats := NewEventStats()
	for _, r := range records {
		stats.Add(r.Event, 1)
	}
	return stats
}
