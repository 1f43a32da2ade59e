package handler

import (
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
)

type AvailabilityHandler struct {
	service AvailabilityServiceInterface
	clock   reservation.Clock
}

func NewAvailabilityHandler(s AvailabilityServiceInterface, clock reservation.Clock) *AvailabilityHandler {
	return &AvailabilityHandler{service: s, clock: clock}
}

type AvailabilityResponse struct {
	StartDate civil.Date   `json:"start_date" swaggertype:"string" example:"2024-01-02"`
	EndDate   civil.Date   `json:"end_date" swaggertype:"string" example:"2024-02-02"`
	Dates     []civil.Date `json:"dates" swaggertype:"array,string"`
}

// List godoc
// @Summary 空き日を取得
// @Description 指定期間（終了日を含む）の予約されていない日付を昇順で返します
// @Tags availabilities
// @Produce json
// @Param start_date query string false "開始日（既定: 明日）" example(2024-01-02)
// @Param end_date query string false "終了日（既定: 開始日の1か月後）" example(2024-02-02)
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} map[string]string
// @Router /availabilities [get]
func (h *AvailabilityHandler) List(c echo.Context) error {
	start := h.clock.Today().AddDays(1)
	if v := c.QueryParam("start_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "開始日の形式が不正です")
		}
		start = d
	}

	end := reservation.AddMonths(start, 1)
	if v := c.QueryParam("end_date"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "終了日の形式が不正です")
		}
		end = d
	}
	if end.Before(start) {
		return echo.NewHTTPError(http.StatusBadRequest, "終了日は開始日以降である必要があります")
	}

	dates, err := h.service.GetAvailabilities(c.Request().Context(), start, end)
	if err != nil {
		return toHTTPError(err)
	}
	if dates == nil {
		dates = []civil.Date{}
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{StartDate: start, EndDate: end, Dates: dates})
}
