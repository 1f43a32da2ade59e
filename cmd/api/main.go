package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campsite-reservation/internal/api"
	"github.com/sanosuguru/go-campsite-reservation/internal/api/handler"
	"github.com/sanosuguru/go-campsite-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-campsite-reservation/internal/application"
	"github.com/sanosuguru/go-campsite-reservation/internal/config"
	"github.com/sanosuguru/go-campsite-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-campsite-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-campsite-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-campsite-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-campsite-reservation/internal/worker"
)

func main() {
	// .env はローカル開発用（存在しなければ環境変数のみ）
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Set(logger.NewLogger(cfg.App.Env))
	defer logger.Sync()

	// DB
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("DB接続エラー", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションエラー", zap.Error(err))
	}

	// Redis は任意。接続できなければ日程ロックとキャッシュなしで起動する
	var (
		redisClient *goredis.Client
		lockManager redisinfra.LockManagerInterface
		cache       redisinfra.ReservationCacheInterface
	)
	redisClient, err = redisinfra.NewClient(&redisinfra.Config{
		Host: cfg.Redis.Host, Port: cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB, URL: cfg.Redis.URL,
	})
	if err != nil {
		logger.Warn("Redisに接続できないため日程ロックとキャッシュを無効化します", zap.Error(err))
	} else {
		defer redisClient.Close()
		lockManager = redisinfra.NewLockManager(redisClient)
		cache = redisinfra.NewReservationCache(redisClient)
	}

	m := metrics.Init()
	clock := reservation.NewSystemClock(cfg.Campsite.Location())

	reservationService := application.NewReservationService(
		postgres.NewTxManager(db),
		postgres.NewReservationRepository(db),
		lockManager,
		cache,
		application.WithClock(clock),
		application.WithLockOptions(application.LockOptions{
			TTL:           cfg.Lock.TTL,
			MaxRetries:    cfg.Lock.MaxRetries,
			RetryInterval: cfg.Lock.RetryInterval,
		}),
		application.WithMetrics(m),
	)

	// Echo インスタンス作成
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	middleware.SetupMiddleware(e, m)

	checks := []handler.HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) }},
	}
	if redisClient != nil {
		checks = append(checks, handler.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) },
		})
	}
	e.GET("/health", handler.NewHealthHandler(checks...).Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(middleware.LoadMetricsConfig()))

	handler.RegisterRoutes(e.Group("/api/v1"),
		handler.NewReservationHandler(reservationService),
		handler.NewAvailabilityHandler(reservationService, clock),
	)

	// バックグラウンドワーカー
	reporter := worker.NewOccupancyReporter(reservationService, m, cfg.Worker.OccupancyInterval)
	go reporter.Start(context.Background())

	// サーバー起動
	go func() {
		logger.Info("サーバー起動", zap.String("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")
	reporter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		return
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
