package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/metrics"
)

// ActiveReservationCounter はまだチェックアウトしていない有効な予約数を返す
type ActiveReservationCounter interface {
	CountActiveReservations(ctx context.Context) (int, error)
}

// OccupancyReporter は有効な予約数を定期的にメトリクスへ反映するワーカー
type OccupancyReporter struct {
	counter  ActiveReservationCounter
	metrics  *metrics.Metrics
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewOccupancyReporter は新しいレポーターを作成
func NewOccupancyReporter(counter ActiveReservationCounter, m *metrics.Metrics, interval time.Duration) *OccupancyReporter {
	return &OccupancyReporter{
		counter:  counter,
		metrics:  m,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はレポーターを開始する。起動直後に1回集計し、以降 interval ごとに集計する
func (r *OccupancyReporter) Start(ctx context.Context) {
	logger.Info("予約数レポーター開始", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	r.report(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("予約数レポーター停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("予約数レポーター停止（シグナル受信）")
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

// Stop はレポーターを停止し、実行中の集計の終了を待つ
func (r *OccupancyReporter) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *OccupancyReporter) report(ctx context.Context) {
	count, err := r.counter.CountActiveReservations(ctx)
	if err != nil {
		// 前回の値を残す
		logger.Error("有効な予約数の取得に失敗", zap.Error(err))
		return
	}
	r.metrics.ActiveReservations.WithLabelValues("active").Set(float64(count))
	logger.Debug("有効な予約数を更新", zap.Int("count", count))
}
