package reservation

import (
	"time"

	"cloud.google.com/go/civil"
)

const (
	// MaxStayNights は1予約あたりの最大宿泊数
	MaxStayNights = 3
	// MinStayNights は1予約あたりの最小宿泊数
	MinStayNights = 1
	// MaxLeadMonths はチェックアウト日の上限（今日からの月数、当日は含まない）
	MaxLeadMonths = 1
)

// ValidateStay は予約日程を検証する
// 検証は定義順に行い、最初に違反したルールのエラーを返す
func ValidateStay(checkin, checkout, today civil.Date) error {
	if checkin.After(checkout) {
		return ErrCheckoutBeforeCheckin
	}
	nights := checkout.DaysSince(checkin)
	if nights > MaxStayNights {
		return ErrStayTooLong
	}
	if nights < MinStayNights {
		return ErrStayTooShort
	}
	if !checkin.After(today) {
		return ErrCheckinNotInFuture
	}
	if !checkout.Before(AddMonths(today, MaxLeadMonths)) {
		return ErrCheckoutTooFar
	}
	return nil
}

// AddMonths は n か月後の日付を返す。月末を超える日は対象月の末日に丸める（1/31 + 1か月 = 2/28 or 2/29）
func AddMonths(d civil.Date, n int) civil.Date {
	first := time.Date(d.Year, d.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := d.Day
	if day > lastDay {
		day = lastDay
	}
	return civil.Date{Year: first.Year(), Month: first.Month(), Day: day}
}

// Clock は「今日」を提供する
type Clock interface {
	Today() civil.Date
}

// SystemClock はキャンプ場のタイムゾーンでの現在日付を返す
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock は SystemClock を作成する（loc が nil の場合は UTC）
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

func (c SystemClock) Today() civil.Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(time.Now().In(loc))
}

// FixedClock は常に同じ日付を返す
type FixedClock civil.Date

func (c FixedClock) Today() civil.Date {
	return civil.Date(c)
}
