package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
)

var errTxRequired = errors.New("トランザクションが必要です")

const reservationColumns = `id, checkin, checkout, status, created_at, updated_at`

type reservationRow struct {
	ID        string    `db:"id"`
	Checkin   time.Time `db:"checkin"`
	Checkout  time.Time `db:"checkout"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row *reservationRow) toEntity() *reservation.Reservation {
	return &reservation.Reservation{
		ID:        row.ID,
		Checkin:   civil.DateOf(row.Checkin),
		Checkout:  civil.DateOf(row.Checkout),
		Status:    reservation.Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// FindByID はIDで予約を取得する。UUID として不正なIDは存在しない予約として扱う
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	if !validID(id) {
		return nil, reservation.ErrReservationNotFound
	}
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", translateError(err))
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) FindByIDAndStatus(ctx context.Context, tx transaction.Tx, id string, status reservation.Status) (*reservation.Reservation, error) {
	if !validID(id) {
		return nil, reservation.ErrReservationNotFound
	}
	stx := UnwrapTx(tx)
	if stx == nil {
		return nil, errTxRequired
	}
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 AND status = $2` + lockClause(tx)
	if err := stx.GetContext(ctx, &row, query, id, string(status)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", translateError(err))
	}
	return row.toEntity(), nil
}

// FindOverlapping は [from, to] と日程が重なる予約を返す
// チェックインかチェックアウトが区間内にある行に加え、区間を包含する行も対象にする
func (r *ReservationRepository) FindOverlapping(ctx context.Context, tx transaction.Tx, from, to civil.Date, status reservation.Status) ([]*reservation.Reservation, error) {
	stx := UnwrapTx(tx)
	if stx == nil {
		return nil, errTxRequired
	}
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = $1 AND checkin <= $3::date AND checkout >= $2::date
		ORDER BY checkin` + lockClause(tx)
	if err := stx.SelectContext(ctx, &rows, query, string(status), from.String(), to.String()); err != nil {
		return nil, fmt.Errorf("重複予約の取得に失敗: %w", translateError(err))
	}
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *ReservationRepository) Save(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	stx := UnwrapTx(tx)
	if stx == nil {
		return errTxRequired
	}
	if res.ID == "" {
		return r.insert(ctx, stx, res)
	}
	return r.update(ctx, stx, res)
}

func (r *ReservationRepository) insert(ctx context.Context, tx *sqlx.Tx, res *reservation.Reservation) error {
	id := uuid.NewString()
	query := `INSERT INTO reservations (id, checkin, checkout, status, created_at, updated_at) VALUES ($1, $2::date, $3::date, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, query, id, res.Checkin.String(), res.Checkout.String(), string(res.Status), res.CreatedAt, res.UpdatedAt); err != nil {
		terr := translateError(err)
		if errors.Is(terr, reservation.ErrInvalidDates) {
			return terr
		}
		return fmt.Errorf("予約作成に失敗: %w", terr)
	}
	res.ID = id
	return nil
}

func (r *ReservationRepository) update(ctx context.Context, tx *sqlx.Tx, res *reservation.Reservation) error {
	query := `UPDATE reservations SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := tx.ExecContext(ctx, query, string(res.Status), res.UpdatedAt, res.ID)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", translateError(err))
	}
	return checkAffected(result)
}

// checkAffected は更新対象の行がなければ ErrReservationNotFound を返す
func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("予約更新件数の取得に失敗: %w", translateError(err))
	}
	if rows == 0 {
		return reservation.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) CountActiveFrom(ctx context.Context, from civil.Date) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM reservations WHERE status = $1 AND checkout >= $2::date`
	if err := r.db.GetContext(ctx, &count, query, string(reservation.StatusActive), from.String()); err != nil {
		return 0, fmt.Errorf("有効予約数の取得に失敗: %w", translateError(err))
	}
	return count, nil
}

// id 列は UUID 型のため、形式が違う値を渡すと 22P02 になる
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lockClause はトランザクションのロックモードに応じた行ロック句を返す
func lockClause(tx transaction.Tx) string {
	if tx.Options().Lock == transaction.LockExclusive {
		return ` FOR UPDATE`
	}
	return ``
}

var _ reservation.Repository = (*ReservationRepository)(nil)
