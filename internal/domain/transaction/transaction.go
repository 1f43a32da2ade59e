package transaction

import (
	"context"
	"errors"
)

// ErrTransient はリトライ可能な一時的失敗（ロック待ちタイムアウト、シリアライズ失敗、デッドロック等）
// 部分的な書き込みは残らないため、呼び出し側は操作全体を最初からやり直してよい
var ErrTransient = errors.New("一時的な競合が発生しました。再試行してください")

// Isolation はトランザクション分離レベル
type Isolation int

const (
	// IsolationDefault はストレージ既定の分離レベル
	IsolationDefault Isolation = iota
	// IsolationSerializable はシリアライザブル
	IsolationSerializable
)

func (i Isolation) String() string {
	if i == IsolationSerializable {
		return "serializable"
	}
	return "default"
}

// LockMode はトランザクション内の読み取りが取得する行ロック
type LockMode int

const (
	// LockNone は読み取りでロックを取らない
	LockNone LockMode = iota
	// LockExclusive は読み取った行に排他書き込みロックを取る（コミット/ロールバックまで保持）
	LockExclusive
)

func (l LockMode) String() string {
	if l == LockExclusive {
		return "exclusive"
	}
	return "none"
}

// Options はトランザクションスコープの設定
type Options struct {
	Isolation Isolation
	Lock      LockMode
}

// Tx はトランザクションを表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
	// Options は開始時に指定されたスコープ設定を返す
	Options() Options
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// Begin は指定された分離レベルとロックモードで新しいトランザクションを開始する
	Begin(ctx context.Context, opts Options) (Tx, error)
}
