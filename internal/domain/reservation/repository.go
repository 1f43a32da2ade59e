package reservation

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// FindByID はIDから予約を取得する（状態は問わない）
	FindByID(ctx context.Context, id string) (*Reservation, error)

	// FindByIDAndStatus は指定状態の予約をIDで取得する（トランザクション必須）
	// tx のロックモードが排他の場合は該当行をロックする
	FindByIDAndStatus(ctx context.Context, tx transaction.Tx, id string, status Status) (*Reservation, error)

	// FindOverlapping は [from, to] と重なる指定状態の予約を取得する（トランザクション必須）
	// tx のロックモードが排他の場合は返した行をコミットまでロックする
	FindOverlapping(ctx context.Context, tx transaction.Tx, from, to civil.Date, status Status) ([]*Reservation, error)

	// Save は予約を保存する。IDが空なら採番して挿入、そうでなければ更新（トランザクション必須）
	Save(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// CountActiveFrom はチェックアウトが from 以降の有効な予約数を返す
	CountActiveFrom(ctx context.Context, from civil.Date) (int, error)
}
