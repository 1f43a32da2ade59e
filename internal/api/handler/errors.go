package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
)

// toHTTPError はサービス層のエラーをHTTPエラーに変換する
func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, reservation.ErrInvalidDates):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, reservation.ErrReservationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, transaction.ErrTransient):
		return echo.NewHTTPError(http.StatusConflict, transaction.ErrTransient.Error())
	default:
		// 内部エラーの詳細は返さない
		return echo.NewHTTPError(http.StatusInternalServerError, "内部サーバーエラー").SetInternal(err)
	}
}
