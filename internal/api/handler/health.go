package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck は依存先の疎通確認
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler はヘルスチェックハンドラー
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler はHealthHandlerを作成する
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// Check はヘルスチェックを行う
// @Summary ヘルスチェック
// @Description アプリケーションと依存先（DB・Redis）の健全性を確認する
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	var components map[string]string
	if len(h.checks) > 0 {
		components = make(map[string]string, len(h.checks))
	}
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			logger.Warn("ヘルスチェック失敗", zap.String("component", hc.Name), zap.Error(err))
			components[hc.Name] = "unavailable"
			status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		components[hc.Name] = "ok"
	}

	return c.JSON(code, HealthResponse{
		Status:     status,
		Timestamp:  time.Now().Format(time.RFC3339),
		Components: components,
	})
}
