package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
)

// TxWrapper は sqlx.Tx を transaction.Tx インターフェースでラップする
type TxWrapper struct {
	*sqlx.Tx
	opts transaction.Options
}

// Commit はトランザクションをコミットする
// シリアライズ失敗はコミット時に検出されることがあるため、ここでも分類する
func (t *TxWrapper) Commit() error {
	return translateError(t.Tx.Commit())
}

// Rollback はトランザクションをロールバックする
func (t *TxWrapper) Rollback() error {
	return t.Tx.Rollback()
}

// Options は開始時のスコープ設定を返す
func (t *TxWrapper) Options() transaction.Options {
	return t.opts
}

// TxManager は sqlx.DB を使用したトランザクションマネージャー
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin は指定された分離レベルでトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context, opts transaction.Options) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, txOptions(opts))
	if err != nil {
		return nil, translateError(err)
	}
	return &TxWrapper{Tx: tx, opts: opts}, nil
}

func txOptions(opts transaction.Options) *sql.TxOptions {
	if opts.Isolation == transaction.IsolationSerializable {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
// リポジトリ実装で使用する
func UnwrapTx(tx transaction.Tx) *sqlx.Tx {
	if wrapper, ok := tx.(*TxWrapper); ok {
		return wrapper.Tx
	}
	return nil
}

var _ transaction.Manager = (*TxManager)(nil)
