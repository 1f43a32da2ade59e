package reservation

import (
	"time"

	"cloud.google.com/go/civil"
)

// Status は予約の状態を表す
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
)

// Reservation は予約エンティティを表す
// 宿泊は半開区間 [Checkin, Checkout) で、Checkout 当日の夜は占有しない
type Reservation struct {
	ID        string
	Checkin   civil.Date
	Checkout  civil.Date
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReservation は有効な新規予約を作成する（IDは保存時に採番）
func NewReservation(checkin, checkout civil.Date) *Reservation {
	now := time.Now()
	return &Reservation{
		Checkin:   checkin,
		Checkout:  checkout,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive は予約が有効かを返す
func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}

// Nights は宿泊数を返す
func (r *Reservation) Nights() int {
	return r.Checkout.DaysSince(r.Checkin)
}

// OccupiedDates は予約が占有する日付を昇順で返す
func (r *Reservation) OccupiedDates() []civil.Date {
	return DatesUntil(r.Checkin, r.Checkout)
}

// Cancel は予約をキャンセルする
func (r *Reservation) Cancel() error {
	if r.Status == StatusCancelled {
		return ErrReservationAlreadyCancelled
	}
	r.Status = StatusCancelled
	r.UpdatedAt = time.Now()
	return nil
}

// DatesUntil は [from, until) の日付を昇順で返す
func DatesUntil(from, until civil.Date) []civil.Date {
	n := until.DaysSince(from)
	if n <= 0 {
		return nil
	}
	dates := make([]civil.Date, 0, n)
	for d := from; d.Before(until); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}
