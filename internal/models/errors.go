package models

import (
	"errors"
	"fmt"
)

var (
	// ErrClassification 分类器无法给出标签（降级为“非恐惧”）
	ErrClassification = errors.New("classification failed")
	// ErrDelivery 单个联系人发送失败
	ErrDelivery = errors.New("delivery failed")
	// ErrDeliveryTimeout 单个联系人发送超时
	ErrDeliveryTimeout = errors.New("delivery timed out")
	// ErrPlayback 声音播放失败（始终非致命）
	ErrPlayback = errors.New("playback failed")
	// ErrPersistence 照片或日志写入失败
	ErrPersistence = errors.New("persistence failed")
)

// PersistenceError 事件日志写入失败，需要上报给调用方
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
