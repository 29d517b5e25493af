package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"atma-secure/internal/models"
	"atma-secure/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// AuditService 审计/统计读侧
type AuditService struct {
	eventLog repository.EventLog
	logger   *zap.Logger
}

func NewAuditService(eventLog repository.EventLog, logger *zap.Logger) *AuditService {
	return &AuditService{eventLog: eventLog, logger: logger}
}

// History 全部事件（按追加顺序）
func (s *AuditService) History(ctx context.Context) ([]models.EventRecord, error) {
	records, err := s.eventLog.ReadAll(ctx)
	if err != nil {
		s.logger.Error("Failed to read event history", zap.Error(err))
		return nil, fmt.Errorf("failed to read event history: %w", err)
	}
	return records, nil
}

// Stats 事件统计
func (s *AuditService) Stats(ctx context.Context) (*models.EventStats, error) {
	stats, err := s.eventLog.Aggregate(ctx)
	if err != nil {
		s.logger.Error("Failed to aggregate events", zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}
	return stats, nil
}

// 导出表头
var (
	historySheet  = "Detection History"
	statsSheet    = "Stats"
	historyHeader = []string{"Timestamp", "Event", "Location"}
)

// ExportXLSX 导出历史与统计为 Excel 文件
func (s *AuditService) ExportXLSX(ctx context.Context) ([]byte, error) {
	records, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	stats := models.StatsOf(records)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		row := []interface{}{r.Timestamp, string(r.Event), r.Location}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(statsSheet); err != nil {
		return nil, fmt.Errorf("failed to create stats sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Metric", "Count"},
		{"Total Alerts", stats.Total},
		{"Hand Detections", stats.HandDetected},
		{"Fear Detections", stats.FearDetected},
		{"SOS Alerts", stats.SOS},
	}
	kinds := make([]string, 0, len(stats.ByKind))
	for k := range stats.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		rows = append(rows, []interface{}{"Event " + k, stats.ByKind[models.EventKind(k)]})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(statsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write stats row: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
