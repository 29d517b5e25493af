package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"atma-secure/internal/models"

	"go.uber.org/zap"
)

// CSVEventLog 以 CSV 文件保存事件日志（timestamp,event,location）
// 追加操作串行化；读取与追加互斥，读取方总能看到完整记录
type CSVEventLog struct {
	path   string
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewCSVEventLog 创建 CSV 事件日志（文件在第一次追加时创建）
func NewCSVEventLog(path string, logger *zap.Logger) *CSVEventLog {
	return &CSVEventLog{path: path, logger: logger}
}

// Path 日志文件路径
func (l *CSVEventLog) Path() string {
	return l.path
}

// Append 追加一条记录并落盘
func (l *CSVEventLog) Append(_ context.Context, record models.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.append(record); err != nil {
		l.logger.Error("Failed to append event",
			zap.String("path", l.path),
			zap.String("event", string(record.Event)),
			zap.Error(err),
		)
		return &models.PersistenceError{Op: "append event", Err: err}
	}
	return nil
}

func (l *CSVEventLog) append(record models.EventRecord) error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{record.Timestamp, string(record.Event), record.Location}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadAll 按追加顺序读取全部记录
func (l *CSVEventLog) ReadAll(_ context.Context) ([]models.EventRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.EventRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	records := []models.EventRecord{}
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event log: %w", err)
		}
		if first {
			first = false
			if row[0] == csvHeader[0] {
				continue
			}
		}
		records = append(records, models.EventRecord{
			Timestamp: row[0],
			Event:     models.EventKind(row[1]),
			Location:  row[2],
		})
	}
	return records, nil
}

// Aggregate 统计各类事件数量
func (l *CSVEventLog) Aggregate(ctx context.Context) (*models.EventStats, error) {
	records, err := l.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return models.StatsOf(records), nil
}
