package handler

import (
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campsite-reservation/internal/application"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type CreateReservationRequest struct {
	Checkin  string `json:"checkin" validate:"required,datetime=2006-01-02" example:"2024-01-03"`
	Checkout string `json:"checkout" validate:"required,datetime=2006-01-02" example:"2024-01-05"`
}

type ReservationResponse struct {
	ID        string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Checkin   civil.Date `json:"checkin" swaggertype:"string" example:"2024-01-03"`
	Checkout  civil.Date `json:"checkout" swaggertype:"string" example:"2024-01-05"`
	Status    string     `json:"status" example:"ACTIVE"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID: r.ID, Checkin: r.Checkin, Checkout: r.Checkout,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// Create godoc
// @Summary 予約を作成
// @Description チェックイン日からチェックアウト日の前日までキャンプ場を予約します（1〜3泊）
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body CreateReservationRequest true "予約日程"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} map[string]string "日付が不正、または予約できない日程"
// @Failure 409 {object} map[string]string "一時的な競合（再試行可能）"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	checkin, err := civil.ParseDate(req.Checkin)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "チェックイン日の形式が不正です")
	}
	checkout, err := civil.ParseDate(req.Checkout)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "チェックアウト日の形式が不正です")
	}

	r, err := h.service.CreateReservation(c.Request().Context(), application.CreateReservationInput{
		Checkin: checkin, Checkout: checkout,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// GetByID godoc
// @Summary 予約を取得
// @Description 指定IDの予約を取得します（キャンセル済みを含む）
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} map[string]string
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	r, err := h.service.GetReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 有効な予約をキャンセルし、日程を解放します
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} map[string]string "存在しない、またはキャンセル済み"
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	r, err := h.service.CancelReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}
