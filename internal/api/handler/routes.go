package handler

import "github.com/labstack/echo/v4"

// RegisterRoutes は /api/v1 配下のルートを登録する
func RegisterRoutes(v1 *echo.Group, reservations *ReservationHandler, availabilities *AvailabilityHandler) {
	v1.POST("/reservations", reservations.Create)
	v1.GET("/reservations/:id", reservations.GetByID)
	v1.POST("/reservations/:id/cancel", reservations.Cancel)
	v1.DELETE("/reservations/:id", reservations.Cancel)

	v1.GET("/availabilities", availabilities.List)
}
