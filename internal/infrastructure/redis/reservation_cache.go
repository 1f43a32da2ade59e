package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// ReservationCacheInterface は予約キャッシュのインターフェース
type ReservationCacheInterface interface {
	Get(ctx context.Context, id string) (*reservation.Reservation, error)
	Set(ctx context.Context, r *reservation.Reservation, ttl time.Duration) error
}

type cachedReservation struct {
	ID        string     `json:"id"`
	Checkin   civil.Date `json:"checkin"`
	Checkout  civil.Date `json:"checkout"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ReservationCache は終端状態の予約の読み取りキャッシュを管理する
type ReservationCache struct {
	client *redis.Client
}

// NewReservationCache は新しいReservationCacheインスタンスを作成する
func NewReservationCache(client *redis.Client) *ReservationCache {
	return &ReservationCache{client: client}
}

// Get は予約をキャッシュから取得する
func (c *ReservationCache) Get(ctx context.Context, id string) (*reservation.Reservation, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var v cachedReservation
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return &reservation.Reservation{
		ID: v.ID, Checkin: v.Checkin, Checkout: v.Checkout,
		Status:    reservation.Status(v.Status),
		CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
	}, nil
}

// Set は予約をキャッシュに保存する
func (c *ReservationCache) Set(ctx context.Context, r *reservation.Reservation, ttl time.Duration) error {
	raw, err := json.Marshal(cachedReservation{
		ID: r.ID, Checkin: r.Checkin, Checkout: r.Checkout,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("キャッシュのシリアライズに失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.key(r.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は予約のキャッシュを無効化する
func (c *ReservationCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *ReservationCache) key(id string) string {
	return fmt.Sprintf("reservation:%s", id)
}

var _ ReservationCacheInterface = (*ReservationCache)(nil)
