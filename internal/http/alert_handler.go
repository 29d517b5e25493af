package httpapi

import (
	"context"
	"net/http"

	"atma-secure/internal/models"
	"atma-secure/internal/service"

	"go.uber.org/zap"
)

// Controller 会话控制器（service.SessionController 实现）
type Controller interface {
	AlertContextFor(locationURL, message string) models.AlertContext
	AutoCycle(ctx context.Context, capture service.Capture, actx models.AlertContext) (*service.CycleResult, error)
	NotifyContacts(ctx context.Context, actx models.AlertContext) (*service.NotifyResult, error)
	SOSCycle(ctx context.Context, frame []byte, actx models.AlertContext) (*service.SOSResult, error)
}

// Helpline 求助热线
type Helpline struct {
	Number string `json:"number"`
	TelURL string `json:"tel_url"`
}

// AlertHandler 检测周期与报警 Handler
type AlertHandler struct {
	controller Controller
	helpline   Helpline
	logger     *zap.Logger
}

func NewAlertHandler(controller Controller, helplineNumber string, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		controller: controller,
		helpline:   Helpline{Number: helplineNumber, TelURL: "tel:" + helplineNumber},
		logger:     logger,
	}
}

// AutoCycle 提交一次抓拍并执行自动检测周期
func (h *AlertHandler) AutoCycle(w http.ResponseWriter, r *http.Request) {
	var req service.CaptureRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	capture, err := req.Capture()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	actx := h.controller.AlertContextFor(req.LocationURL(), req.Message)
	result, err := h.controller.AutoCycle(r.Context(), capture, actx)
	if err != nil {
		h.logger.Error("Auto cycle failed", zap.Error(err))
		writeJSON(w, statusFor(err), FailWith(err.Error(), result))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Notify 向所有联系人发送报警（用户确认后调用）
func (h *AlertHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req service.AlertRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	actx := h.controller.AlertContextFor(req.LocationURL(), req.Message)
	result, err := h.controller.NotifyContacts(r.Context(), actx)
	if err != nil {
		h.logger.Error("Notify contacts failed", zap.Error(err))
		writeJSON(w, statusFor(err), FailWith(err.Error(), result))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// SOS 手动 SOS
func (h *AlertHandler) SOS(w http.ResponseWriter, r *http.Request) {
	var req service.AlertRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	actx := h.controller.AlertContextFor(req.LocationURL(), req.Message)
	result, err := h.controller.SOSCycle(r.Context(), req.Frame, actx)
	if err != nil {
		h.logger.Error("SOS cycle failed", zap.Error(err))
		writeJSON(w, statusFor(err), FailWith(err.Error(), result))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Helpline 返回求助热线号码
func (h *AlertHandler) Helpline(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.helpline))
}
