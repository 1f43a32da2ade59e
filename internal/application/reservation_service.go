package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/availability"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-campsite-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/metrics"
)

const (
	reservationCacheTTL = 5 * time.Minute
)

var (
	bookingScope      = transaction.Options{Isolation: transaction.IsolationSerializable, Lock: transaction.LockExclusive}
	cancellationScope = transaction.Options{Isolation: transaction.IsolationDefault, Lock: transaction.LockExclusive}
	availabilityScope = transaction.Options{Isolation: transaction.IsolationSerializable, Lock: transaction.LockNone}
)

// LockOptions は日程ロックの取得設定
type LockOptions struct {
	TTL           time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultLockOptions は日程ロックの既定設定
var DefaultLockOptions = LockOptions{
	TTL:           10 * time.Second,
	MaxRetries:    30,
	RetryInterval: 100 * time.Millisecond,
}

// Option は ReservationService の設定を変更する
type Option func(*ReservationService)

// WithClock は「今日」の取得元を差し替える
func WithClock(c reservation.Clock) Option {
	return func(s *ReservationService) { s.clock = c }
}

// WithLockOptions は日程ロックの取得設定を差し替える
func WithLockOptions(o LockOptions) Option {
	return func(s *ReservationService) { s.lockOpts = o }
}

// WithMetrics は結果を記録するメトリクスを設定する
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ReservationService) { s.metrics = m }
}

// ReservationService は予約の作成・取得・キャンセルと空き日照会を行う
// lockManager と cache は nil でもよい（DBの排他制約とトランザクションだけで二重予約は防げる）
type ReservationService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	lockManager     redisinfra.LockManagerInterface
	cache           redisinfra.ReservationCacheInterface
	clock           reservation.Clock
	lockOpts        LockOptions
	metrics         *metrics.Metrics
}

func NewReservationService(
	txm transaction.Manager,
	rr reservation.Repository,
	lm redisinfra.LockManagerInterface,
	cache redisinfra.ReservationCacheInterface,
	opts ...Option,
) *ReservationService {
	s := &ReservationService{
		txManager:       txm,
		reservationRepo: rr,
		lockManager:     lm,
		cache:           cache,
		clock:           reservation.NewSystemClock(time.UTC),
		lockOpts:        DefaultLockOptions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateReservationInput struct {
	Checkin  civil.Date
	Checkout civil.Date
}

// CreateReservation は日程を検証し、空いていれば有効な予約として保存する
func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*reservation.Reservation, error) {
	if err := reservation.ValidateStay(input.Checkin, input.Checkout, s.clock.Today()); err != nil {
		s.recordReservation(metrics.ReservationInvalid)
		logger.Info("予約日程が不正です",
			zap.String("checkin", input.Checkin.String()),
			zap.String("checkout", input.Checkout.String()),
			zap.Error(err),
		)
		return nil, err
	}

	// 日程ロックはトランザクション開始前に取得する
	// スナップショットがロック取得後に作られるため、先行した予約を必ず読める
	if s.lockManager != nil {
		lock, err := s.acquireDateLocks(ctx, input.Checkin, input.Checkout)
		if err != nil {
			s.recordReservation(metrics.ReservationLockFailed)
			return nil, err
		}
		defer s.releaseDateLocks(ctx, lock)
	}

	res, err := s.book(ctx, input)
	if errors.Is(err, transaction.ErrTransient) && s.datesTaken(ctx, input) {
		// 同時に確定した予約に日程を取られた場合は空きなしとして返す
		err = reservation.ErrDatesNotAvailable
	}
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrInvalidDates):
			s.recordReservation(metrics.ReservationUnavailable)
			logger.Info("予約済みの日程です",
				zap.String("checkin", input.Checkin.String()),
				zap.String("checkout", input.Checkout.String()),
			)
		default:
			s.recordReservation(metrics.ReservationError)
			logger.Warn("予約作成に失敗", zap.Error(err))
		}
		return nil, err
	}
	s.recordReservation(metrics.ReservationSuccess)

	logger.Info("予約を作成しました",
		zap.String("reservation_id", res.ID),
		zap.String("checkin", res.Checkin.String()),
		zap.String("checkout", res.Checkout.String()),
	)
	return res, nil
}

func (s *ReservationService) book(ctx context.Context, input CreateReservationInput) (*reservation.Reservation, error) {
	tx, err := s.txManager.Begin(ctx, bookingScope)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// 競合集合をロック付きで再読込
	conflicts, err := s.reservationRepo.FindOverlapping(ctx, tx, input.Checkin, input.Checkout, reservation.StatusActive)
	if err != nil {
		return nil, err
	}

	res := reservation.NewReservation(input.Checkin, input.Checkout)
	free := availability.AvailableDates(input.Checkin, input.Checkout.AddDays(-1), conflicts)
	if !availability.ContainsAll(free, res.OccupiedDates()) {
		return nil, reservation.ErrDatesNotAvailable
	}

	if err := s.reservationRepo.Save(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return res, nil
}

// datesTaken はコミット済みの有効な予約が宿泊日を占有しているかを返す
// 確認に失敗した場合は false
func (s *ReservationService) datesTaken(ctx context.Context, input CreateReservationInput) bool {
	free, err := s.GetAvailabilities(ctx, input.Checkin, input.Checkout.AddDays(-1))
	if err != nil {
		logger.Warn("空き日程の再確認に失敗", zap.Error(err))
		return false
	}
	return !availability.ContainsAll(free, reservation.DatesUntil(input.Checkin, input.Checkout))
}

// GetReservation はIDで予約を取得する（キャンセル済みも返す）
// キャッシュするのは終端状態の CANCELLED のみ。有効な予約は常にDBから読む
func (s *ReservationService) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	if s.cache != nil {
		res, err := s.cache.Get(ctx, id)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("reservation_id", id))
			return res, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	res, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.IsActive() {
		s.cacheReservation(ctx, res)
	}
	return res, nil
}

// CancelReservation は有効な予約をキャンセルする
// 有効な予約が存在しない場合（キャンセル済みを含む）は ErrReservationNotFound を返す
func (s *ReservationService) CancelReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	res, err := s.cancel(ctx, id)
	if err != nil {
		if errors.Is(err, reservation.ErrReservationNotFound) {
			s.recordCancellation("not_found")
		} else {
			s.recordCancellation("error")
		}
		return nil, err
	}
	s.recordCancellation("success")

	logger.Info("予約をキャンセルしました", zap.String("reservation_id", res.ID))
	s.cacheReservation(ctx, res)
	return res, nil
}

func (s *ReservationService) cancel(ctx context.Context, id string) (*reservation.Reservation, error) {
	tx, err := s.txManager.Begin(ctx, cancellationScope)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	res, err := s.reservationRepo.FindByIDAndStatus(ctx, tx, id, reservation.StatusActive)
	if err != nil {
		return nil, err
	}
	if err := res.Cancel(); err != nil {
		return nil, err
	}
	if err := s.reservationRepo.Save(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return res, nil
}

// GetAvailabilities は [start, end] のうち予約されていない日付を昇順で返す
func (s *ReservationService) GetAvailabilities(ctx context.Context, start, end civil.Date) ([]civil.Date, error) {
	tx, err := s.txManager.Begin(ctx, availabilityScope)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	active, err := s.reservationRepo.FindOverlapping(ctx, tx, start, end, reservation.StatusActive)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return availability.AvailableDates(start, end, active), nil
}

// CountActiveReservations はまだチェックアウトしていない有効な予約数を返す
func (s *ReservationService) CountActiveReservations(ctx context.Context) (int, error) {
	return s.reservationRepo.CountActiveFrom(ctx, s.clock.Today())
}

func (s *ReservationService) acquireDateLocks(ctx context.Context, checkin, checkout civil.Date) (redisinfra.Lock, error) {
	start := time.Now()
	lock, err := s.lockManager.AcquireLocks(ctx, conflictLockKeys(checkin, checkout), s.lockOpts.TTL, s.lockOpts.MaxRetries, s.lockOpts.RetryInterval)
	if err != nil {
		s.observeLock("acquire", "failed", start)
		logger.Warn("日程ロック取得に失敗",
			zap.String("checkin", checkin.String()),
			zap.String("checkout", checkout.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", transaction.ErrTransient, err)
	}
	s.observeLock("acquire", "success", start)
	return lock, nil
}

func (s *ReservationService) releaseDateLocks(ctx context.Context, lock redisinfra.Lock) {
	start := time.Now()
	if err := lock.Release(ctx); err != nil {
		s.observeLock("release", "failed", start)
		logger.Warn("日程ロック解放エラー", zap.Error(err))
		return
	}
	s.observeLock("release", "success", start)
}

// conflictLockKeys は [checkin, checkout] の各日付のロックキーを返す
// 重なる日程の予約は必ず同じキーを1つ以上共有する
func conflictLockKeys(checkin, checkout civil.Date) []string {
	keys := make([]string, 0, checkout.DaysSince(checkin)+1)
	for d := checkin; !d.After(checkout); d = d.AddDays(1) {
		keys = append(keys, "campsite:date:"+d.String())
	}
	return keys
}

func (s *ReservationService) cacheReservation(ctx context.Context, res *reservation.Reservation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, res, reservationCacheTTL); err != nil {
		logger.Warn("キャッシュ保存エラー", zap.Error(err))
	}
}

func (s *ReservationService) recordReservation(status string) {
	if s.metrics != nil {
		s.metrics.ReservationsTotal.WithLabelValues(status).Inc()
	}
}

func (s *ReservationService) recordCancellation(status string) {
	if s.metrics != nil {
		s.metrics.CancellationsTotal.WithLabelValues(status).Inc()
	}
}

func (s *ReservationService) observeLock(operation, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	}
}
