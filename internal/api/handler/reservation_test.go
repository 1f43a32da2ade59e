package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-campsite-reservation/internal/application"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
)

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) CancelReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func sampleReservation(status reservation.Status) *reservation.Reservation {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return &reservation.Reservation{
		ID:        "res-123",
		Checkin:   date(2024, time.January, 3),
		Checkout:  date(2024, time.January, 5),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestReservationHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に予約を作成できる", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("CreateReservation", mock.Anything, application.CreateReservationInput{
			Checkin:  date(2024, time.January, 3),
			Checkout: date(2024, time.January, 5),
		}).Return(sampleReservation(reservation.StatusActive), nil)

		handler := NewReservationHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{"checkin":"2024-01-03","checkout":"2024-01-05"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"checkin":"2024-01-03"`)

		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "res-123", resp.ID)
		assert.Equal(t, "ACTIVE", resp.Status)
		assert.Equal(t, date(2024, time.January, 5), resp.Checkout)

		mockService.AssertExpectations(t)
	})

	t.Run("リクエストの検証エラーは400", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"不正なJSON", "invalid"},
			{"チェックイン日なし", `{"checkout":"2024-01-05"}`},
			{"日付の形式が不正", `{"checkin":"2024/01/03","checkout":"2024-01-05"}`},
			{"存在しない日付", `{"checkin":"2024-02-30","checkout":"2024-03-01"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockService := new(MockReservationService)
				handler := NewReservationHandler(mockService)

				req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(tt.body))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
				rec := httptest.NewRecorder()
				c := e.NewContext(req, rec)

				err := handler.Create(c)

				require.Error(t, err)
				he, ok := err.(*echo.HTTPError)
				require.True(t, ok)
				assert.Equal(t, http.StatusBadRequest, he.Code)
				mockService.AssertNotCalled(t, "CreateReservation", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("サービスのエラーをステータスに変換する", func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			wantCode int
		}{
			{"日付ルール違反は400", reservation.ErrStayTooLong, http.StatusBadRequest},
			{"予約できない日程は400", reservation.ErrDatesNotAvailable, http.StatusBadRequest},
			{"一時的な競合は409", transaction.ErrTransient, http.StatusConflict},
			{"その他は500", errors.New("db down"), http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockService := new(MockReservationService)
				mockService.On("CreateReservation", mock.Anything, mock.Anything).Return(nil, tt.err)
				handler := NewReservationHandler(mockService)

				req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{"checkin":"2024-01-03","checkout":"2024-01-07"}`))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
				rec := httptest.NewRecorder()
				c := e.NewContext(req, rec)

				err := handler.Create(c)

				require.Error(t, err)
				he, ok := err.(*echo.HTTPError)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, he.Code)
			})
		}
	})

	t.Run("エラーハンドラー経由で理由がJSONで返る", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("CreateReservation", mock.Anything, mock.Anything).Return(nil, reservation.ErrDatesNotAvailable)

		e := NewTestEcho()
		e.POST("/api/v1/reservations", NewReservationHandler(mockService).Create)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{"checkin":"2024-01-03","checkout":"2024-01-05"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), reservation.ErrDatesNotAvailable.Reason)
	})
}

func TestReservationHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("キャンセル済みの予約も取得できる", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("GetReservation", mock.Anything, "res-123").Return(sampleReservation(reservation.StatusCancelled), nil)

		handler := NewReservationHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/res-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("res-123")

		err := handler.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)
		mockService.AssertExpectations(t)
	})

	t.Run("予約が見つからない場合404", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("GetReservation", mock.Anything, "nonexistent").Return(nil, reservation.ErrReservationNotFound)

		handler := NewReservationHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/nonexistent", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("nonexistent")

		err := handler.GetByID(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
		mockService.AssertExpectations(t)
	})
}

func TestReservationHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にキャンセルできる", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("CancelReservation", mock.Anything, "res-123").Return(sampleReservation(reservation.StatusCancelled), nil)

		handler := NewReservationHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/res-123/cancel", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("res-123")

		err := handler.Cancel(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "CANCELLED", resp.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("キャンセル済みは404", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("CancelReservation", mock.Anything, "res-123").Return(nil, reservation.ErrReservationNotFound)

		handler := NewReservationHandler(mockService)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/reservations/res-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("res-123")

		err := handler.Cancel(c)

		require.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})
}
