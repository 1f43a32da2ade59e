package reservation

import "errors"

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound         = errors.New("予約が見つかりません")
	ErrReservationAlreadyCancelled = errors.New("予約は既にキャンセルされています")
	ErrInvalidDates                = errors.New("無効な日付です")
)

// InvalidDatesError は日付ルール違反を表す。errors.Is(err, ErrInvalidDates) で判定できる
type InvalidDatesError struct {
	Reason string
}

func (e *InvalidDatesError) Error() string {
	return e.Reason
}

func (e *InvalidDatesError) Is(target error) bool {
	return target == ErrInvalidDates
}

// 予約作成時の日付ルール違反（検証順）
var (
	ErrCheckoutBeforeCheckin = &InvalidDatesError{Reason: "チェックアウト日はチェックイン日より後である必要があります"}
	ErrStayTooLong           = &InvalidDatesError{Reason: "チェックアウト日はチェックイン日から3日以内である必要があります"}
	ErrStayTooShort          = &InvalidDatesError{Reason: "チェックアウト日はチェックイン日の少なくとも1日後である必要があります"}
	ErrCheckinNotInFuture    = &InvalidDatesError{Reason: "チェックイン日は少なくとも1日先である必要があります"}
	ErrCheckoutTooFar        = &InvalidDatesError{Reason: "チェックアウト日は1か月以内である必要があります"}
	ErrDatesNotAvailable     = &InvalidDatesError{Reason: "選択された日程は予約できません"}
)
