package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"atma-secure/internal/models"
)

// 请求体上限（含 base64 编码的画面）
const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// statusFor 事件日志写入失败为 500，其余为 400
func statusFor(err error) int {
	if errors.Is(err, models.ErrPersistence) {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
