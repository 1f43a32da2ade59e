package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
)

// PostgreSQL の SQLSTATE
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeExclusionViolation   = "23P01"
)

// translateError はドライバーエラーをドメインのエラーに変換する
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pq.Error
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
		return fmt.Errorf("%w: %s (%s)", transaction.ErrTransient, pgErr.Message, pgErr.Code)
	case codeExclusionViolation:
		// 有効な予約の日程重複を DB の排他制約が検出した
		return reservation.ErrDatesNotAvailable
	}
	return err
}
