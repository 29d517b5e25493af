package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// method 限定请求方法
func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterAlertRoutes 检测周期 / 通知 / SOS
func (r *Router) RegisterAlertRoutes(h *AlertHandler) {
	r.Handle("/api/v1/cycles/auto", method(http.MethodPost, h.AutoCycle))
	r.Handle("/api/v1/alerts/notify", method(http.MethodPost, h.Notify))
	r.Handle("/api/v1/alerts/sos", method(http.MethodPost, h.SOS))
	r.Handle("/api/v1/helpline", method(http.MethodGet, h.Helpline))
}

// RegisterEventRoutes 事件历史 / 统计 / 导出
func (r *Router) RegisterEventRoutes(h *EventHandler) {
	r.Handle("/api/v1/events", method(http.MethodGet, h.History))
	r.Handle("/api/v1/events/stats", method(http.MethodGet, h.Stats))
	r.Handle("/api/v1/events/export", method(http.MethodGet, h.Export))
}

// RegisterHealthRoutes 存活检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", method(http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	}))
}
