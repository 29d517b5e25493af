package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"atma-secure/internal/models"

	"go.uber.org/zap"
)

// Auditor 事件日志读侧（service.AuditService 实现）
type Auditor interface {
	History(ctx context.Context) ([]models.EventRecord, error)
	Stats(ctx context.Context) (*models.EventStats, error)
	ExportXLSX(ctx context.Context) ([]byte, error)
}

// EventHandler 事件历史 Handler
type EventHandler struct {
	auditor Auditor
	logger  *zap.Logger
}

func NewEventHandler(auditor Auditor, logger *zap.Logger) *EventHandler {
	return &EventHandler{auditor: auditor, logger: logger}
}

// History 全部事件（追加顺序）
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.auditor.History(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": records,
		"total": len(records),
	}))
}

// Stats 事件统计
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.auditor.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}

// Export 导出 Excel
func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.auditor.ExportXLSX(r.Context())
	if err != nil {
		h.logger.Error("Failed to export events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	filename := fmt.Sprintf("detection_history_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
