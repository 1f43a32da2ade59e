// Package availability は予約済み区間から空き日を求める
package availability

import (
	"cloud.google.com/go/civil"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
)

// AvailableDates は [start, end]（end を含む）のうち、reservations のいずれにも占有されていない日付を昇順で返す
// 状態による絞り込みは行わない。start が end より後の場合は空を返す
func AvailableDates(start, end civil.Date, reservations []*reservation.Reservation) []civil.Date {
	occupied := make(map[civil.Date]struct{})
	for _, r := range reservations {
		for _, d := range r.OccupiedDates() {
			occupied[d] = struct{}{}
		}
	}

	var free []civil.Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if _, ok := occupied[d]; !ok {
			free = append(free, d)
		}
	}
	return free
}

// ContainsAll は dates がすべて free に含まれるかを返す
func ContainsAll(free, dates []civil.Date) bool {
	set := make(map[civil.Date]struct{}, len(free))
	for _, d := range free {
		set[d] = struct{}{}
	}
	for _, d := range dates {
		if _, ok := set[d]; !ok {
			return false
		}
	}
	return true
}
