package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock は取得済みのロック
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// LockManagerInterface はロック取得のインターフェース
type LockManagerInterface interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error)
	AcquireLocks(ctx context.Context, keys []string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error)
}

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// MultiLock は複数キーのロックをまとめたもの
type MultiLock struct {
	locks []Lock
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	// キーが存在しない場合のみ設定
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error) {
	return acquireWithRetry(ctx, func() (Lock, error) {
		return m.AcquireLock(ctx, key, ttl)
	}, maxRetries, retryDelay)
}

// AcquireLocks は複数キーのロックを昇順に取得する
// 全プロセスが同じ順序で取得するためデッドロックしない。途中で失敗した場合は取得済みのロックを解放する
func (m *LockManager) AcquireLocks(ctx context.Context, keys []string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (Lock, error) {
	return acquireAll(ctx, keys, func(key string) (Lock, error) {
		return m.AcquireLockWithRetry(ctx, key, ttl, maxRetries, retryDelay)
	})
}

func acquireWithRetry(ctx context.Context, acquire func() (Lock, error), maxRetries int, retryDelay time.Duration) (Lock, error) {
	lastErr := ErrLockNotAcquired
	for i := 0; i < maxRetries; i++ {
		lock, err := acquire()
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

func acquireAll(ctx context.Context, keys []string, acquire func(key string) (Lock, error)) (Lock, error) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	multi := &MultiLock{}
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		lock, err := acquire(key)
		if err != nil {
			_ = multi.Release(ctx)
			return nil, err
		}
		multi.locks = append(multi.locks, lock)
	}
	return multi, nil
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}

// Release は取得と逆順にすべてのロックを解放し、最初のエラーを返す
func (m *MultiLock) Release(ctx context.Context) error {
	var firstErr error
	for i := len(m.locks) - 1; i >= 0; i-- {
		if err := m.locks[i].Release(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.locks = nil
	return firstErr
}

// Extend はすべてのロックの有効期限を延長する
func (m *MultiLock) Extend(ctx context.Context, ttl time.Duration) error {
	for _, l := range m.locks {
		if err := l.Extend(ctx, ttl); err != nil {
			return err
		}
	}
	return nil
}

var _ LockManagerInterface = (*LockManager)(nil)
