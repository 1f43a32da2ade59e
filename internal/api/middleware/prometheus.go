package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/metrics"
)

// ルートに一致しないリクエストのパスラベル
const unmatchedPath = "unmatched"

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア
// パスラベルにはルート定義（/api/v1/reservations/:id 等）を使う
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "/metrics" {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			duration := time.Since(start).Seconds()

			if path == "" {
				path = unmatchedPath
			}
			method := c.Request().Method
			statusCode := strconv.Itoa(responseStatus(c, err))

			m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)

			return err
		}
	}
}

// responseStatus はエラーハンドラー実行前でも最終的なステータスコードを返す
func responseStatus(c echo.Context, err error) int {
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return he.Code
		}
		if !c.Response().Committed {
			return 500
		}
	}
	return c.Response().Status
}
