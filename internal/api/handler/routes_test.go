package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
)

func TestRegisterRoutes(t *testing.T) {
	e := NewTestEcho()
	RegisterRoutes(e.Group("/api/v1"),
		NewReservationHandler(new(MockReservationService)),
		NewAvailabilityHandler(new(MockAvailabilityService), reservation.FixedClock(date(2024, 1, 1))),
	)

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		http.MethodPost + " /api/v1/reservations",
		http.MethodGet + " /api/v1/reservations/:id",
		http.MethodPost + " /api/v1/reservations/:id/cancel",
		http.MethodDelete + " /api/v1/reservations/:id",
		http.MethodGet + " /api/v1/availabilities",
	} {
		assert.True(t, registered[want], want)
	}
}
