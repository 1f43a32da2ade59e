package handler

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/sanosuguru/go-campsite-reservation/internal/application"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
)

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Reservation, error)
	GetReservation(ctx context.Context, id string) (*reservation.Reservation, error)
	CancelReservation(ctx context.Context, id string) (*reservation.Reservation, error)
}

// AvailabilityServiceInterface は空き日照会のインターフェース
type AvailabilityServiceInterface interface {
	GetAvailabilities(ctx context.Context, start, end civil.Date) ([]civil.Date, error)
}
