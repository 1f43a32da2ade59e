package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-campsite-reservation/internal/infrastructure/redis"
)

// memStore はトランザクションと排他制約を持つインメモリの予約ストア
// コミット時に有効な予約同士の重なりを検査し、違反したら conflictErr を返す
type memStore struct {
	mu   sync.Mutex
	rows map[string]*reservation.Reservation
	seq  int

	// 既定は排他制約違反。シリアライズ失敗を再現する場合は一時的エラーにする
	conflictErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*reservation.Reservation), conflictErr: reservation.ErrDatesNotAvailable}
}

type memTx struct {
	store   *memStore
	opts    transaction.Options
	pending []*reservation.Reservation
}

func (s *memStore) Begin(ctx context.Context, opts transaction.Options) (transaction.Tx, error) {
	return &memTx{store: s, opts: opts}, nil
}

func (t *memTx) Options() transaction.Options { return t.opts }

func (t *memTx) Rollback() error {
	t.pending = nil
	return nil
}

func (t *memTx) Commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range t.pending {
		if !p.IsActive() {
			continue
		}
		for id, r := range s.rows {
			if id != p.ID && r.IsActive() && r.Checkin.Before(p.Checkout) && p.Checkin.Before(r.Checkout) {
				return s.conflictErr
			}
		}
	}
	for _, p := range t.pending {
		s.rows[p.ID] = p
	}
	t.pending = nil
	return nil
}

func (s *memStore) FindByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	c := *r
	return &c, nil
}

func (s *memStore) FindByIDAndStatus(ctx context.Context, tx transaction.Tx, id string, status reservation.Status) (*reservation.Reservation, error) {
	r, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != status {
		return nil, reservation.ErrReservationNotFound
	}
	return r, nil
}

func (s *memStore) FindOverlapping(ctx context.Context, tx transaction.Tx, from, to civil.Date, status reservation.Status) ([]*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range s.rows {
		if r.Status == status && !r.Checkin.After(to) && !r.Checkout.Before(from) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) Save(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	if r.ID == "" {
		s.mu.Lock()
		s.seq++
		r.ID = fmt.Sprintf("res-%d", s.seq)
		s.mu.Unlock()
	}
	c := *r
	tx.(*memTx).pending = append(tx.(*memTx).pending, &c)
	return nil
}

func (s *memStore) CountActiveFrom(ctx context.Context, from civil.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.IsActive() && !r.Checkout.Before(from) {
			n++
		}
	}
	return n, nil
}

// memLockManager はプロセス内の日程ロック
type memLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLockManager() *memLockManager {
	return &memLockManager{held: make(map[string]bool)}
}

type memLock struct {
	m    *memLockManager
	keys []string
}

func (m *memLockManager) tryAcquire(keys []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if m.held[k] {
			return false
		}
	}
	for _, k := range keys {
		m.held[k] = true
	}
	return true
}

func (m *memLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redisinfra.Lock, error) {
	if !m.tryAcquire([]string{key}) {
		return nil, redisinfra.ErrLockNotAcquired
	}
	return &memLock{m: m, keys: []string{key}}, nil
}

func (m *memLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (redisinfra.Lock, error) {
	return m.AcquireLocks(ctx, []string{key}, ttl, maxRetries, retryDelay)
}

func (m *memLockManager) AcquireLocks(ctx context.Context, keys []string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (redisinfra.Lock, error) {
	for i := 0; i < maxRetries; i++ {
		if m.tryAcquire(keys) {
			return &memLock{m: m, keys: keys}, nil
		}
		time.Sleep(retryDelay)
	}
	return nil, redisinfra.ErrLockNotAcquired
}

func (l *memLock) Release(ctx context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	for _, k := range l.keys {
		delete(l.m.held, k)
	}
	return nil
}

func (l *memLock) Extend(ctx context.Context, ttl time.Duration) error { return nil }

func setupScenario(withLock bool) (*ReservationService, *memStore) {
	store := newMemStore()
	var lm redisinfra.LockManagerInterface
	if withLock {
		lm = newMemLockManager()
	}
	service := NewReservationService(store, store, lm, nil,
		WithClock(reservation.FixedClock(today)),
		WithLockOptions(LockOptions{TTL: time.Second, MaxRetries: 1000, RetryInterval: time.Millisecond}),
	)
	return service, store
}

// TestScenario_BookingLifecycle は予約・重複拒否・空き日照会・キャンセルの一連の流れ
func TestScenario_BookingLifecycle(t *testing.T) {
	service, _ := setupScenario(true)
	ctx := context.Background()

	// 1. 01-03〜01-05 を予約
	res, err := service.CreateReservation(ctx, CreateReservationInput{Checkin: day(3), Checkout: day(5)})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, reservation.StatusActive, res.Status)
	assert.Equal(t, []civil.Date{day(3), day(4)}, res.OccupiedDates())

	// 2. 同じ日程は予約できない
	_, err = service.CreateReservation(ctx, CreateReservationInput{Checkin: day(3), Checkout: day(4)})
	assert.ErrorIs(t, err, reservation.ErrDatesNotAvailable)

	// 3. 宿泊数0
	_, err = service.CreateReservation(ctx, CreateReservationInput{Checkin: day(2), Checkout: day(2)})
	assert.ErrorIs(t, err, reservation.ErrStayTooShort)

	// 4. 当日チェックイン
	_, err = service.CreateReservation(ctx, CreateReservationInput{Checkin: day(1), Checkout: day(3)})
	assert.ErrorIs(t, err, reservation.ErrCheckinNotInFuture)

	// 5. 空き日
	dates, err := service.GetAvailabilities(ctx, day(3), day(6))
	require.NoError(t, err)
	assert.Equal(t, []civil.Date{day(5), day(6)}, dates)

	// 6. キャンセル後は全日空く
	cancelled, err := service.CancelReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, cancelled.Status)

	dates, err = service.GetAvailabilities(ctx, day(3), day(6))
	require.NoError(t, err)
	assert.Equal(t, []civil.Date{day(3), day(4), day(5), day(6)}, dates)

	// キャンセル済みも取得はできる
	got, err := service.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, got.Status)

	// 2回目のキャンセルは NotFound
	_, err = service.CancelReservation(ctx, res.ID)
	assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
}

// TestScenario_CancelAndRebook はキャンセルした日程を再予約できることを確認する
func TestScenario_CancelAndRebook(t *testing.T) {
	service, store := setupScenario(true)
	ctx := context.Background()

	first, err := service.CreateReservation(ctx, CreateReservationInput{Checkin: day(10), Checkout: day(13)})
	require.NoError(t, err)

	_, err = service.CreateReservation(ctx, CreateReservationInput{Checkin: day(12), Checkout: day(14)})
	require.ErrorIs(t, err, reservation.ErrDatesNotAvailable)

	_, err = service.CancelReservation(ctx, first.ID)
	require.NoError(t, err)

	second, err := service.CreateReservation(ctx, CreateReservationInput{Checkin: day(12), Checkout: day(14)})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := store.CountActiveFrom(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestScenario_AdjacentStays はチェックアウト日に次の予約がチェックインできることを確認する
func TestScenario_AdjacentStays(t *testing.T) {
	service, _ := setupScenario(true)
	ctx := context.Background()

	_, err := service.CreateReservation(ctx, CreateReservationInput{Checkin: day(5), Checkout: day(7)})
	require.NoError(t, err)
	_, err = service.CreateReservation(ctx, CreateReservationInput{Checkin: day(7), Checkout: day(9)})
	require.NoError(t, err)
	_, err = service.CreateReservation(ctx, CreateReservationInput{Checkin: day(3), Checkout: day(5)})
	require.NoError(t, err)

	// 既存の予約の内側に収まる日程
	_, err = service.CreateReservation(ctx, CreateReservationInput{Checkin: day(6), Checkout: day(7)})
	assert.ErrorIs(t, err, reservation.ErrDatesNotAvailable)

	dates, err := service.GetAvailabilities(ctx, day(2), day(10))
	require.NoError(t, err)
	assert.Equal(t, []civil.Date{day(2), day(9), day(10)}, dates)
}

// TestScenario_ConcurrentOverlappingBookings は重なる日程への同時予約で1件だけ成功することを確認する
func TestScenario_ConcurrentOverlappingBookings(t *testing.T) {
	for _, withLock := range []bool{true, false} {
		t.Run(fmt.Sprintf("日程ロック=%v", withLock), func(t *testing.T) {
			service, store := setupScenario(withLock)
			ctx := context.Background()

			const attempts = 20
			windows := []CreateReservationInput{
				{Checkin: day(10), Checkout: day(12)},
				{Checkin: day(11), Checkout: day(13)},
				{Checkin: day(9), Checkout: day(12)},
				{Checkin: day(11), Checkout: day(12)},
			}

			var wg sync.WaitGroup
			var successCount, unavailableCount, otherCount int32

			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(input CreateReservationInput) {
					defer wg.Done()
					_, err := service.CreateReservation(ctx, input)
					switch {
					case err == nil:
						atomic.AddInt32(&successCount, 1)
					case errors.Is(err, reservation.ErrDatesNotAvailable):
						atomic.AddInt32(&unavailableCount, 1)
					default:
						atomic.AddInt32(&otherCount, 1)
					}
				}(windows[i%len(windows)])
			}
			wg.Wait()

			// どの2つの日程も 01-11 の夜を共有する
			assert.Equal(t, int32(1), successCount, "成功は1件のみ")
			assert.Equal(t, int32(attempts-1), unavailableCount)
			assert.Zero(t, otherCount)

			count, err := store.CountActiveFrom(ctx, today)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

// TestScenario_ConcurrentDisjointBookings は重ならない日程の同時予約がすべて成功することを確認する
func TestScenario_ConcurrentDisjointBookings(t *testing.T) {
	service, store := setupScenario(true)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 0)
	var mu sync.Mutex

	for d := 2; d <= 28; d += 2 {
		wg.Add(1)
		go func(checkin int) {
			defer wg.Done()
			_, err := service.CreateReservation(ctx, CreateReservationInput{Checkin: day(checkin), Checkout: day(checkin + 1)})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(d)
	}
	wg.Wait()

	assert.Empty(t, errs)
	count, err := store.CountActiveFrom(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 14, count)
}
