package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// Config はアプリケーション設定を表す
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Campsite CampsiteConfig
	Worker   WorkerConfig
}

// AppConfig は実行環境の設定
type AppConfig struct {
	Env            string
	MigrationsPath string
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// URL は Railway 等の postgres:// 形式。設定されていれば個別の値より優先する
	URL string

	// 接続プール
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int

	// URL は redis:// 形式。設定されていれば個別の値より優先する
	URL string
}

// LockConfig は日程ロックの設定
type LockConfig struct {
	TTL           time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// CampsiteConfig はキャンプ場の設定
type CampsiteConfig struct {
	// Timezone は「今日」を判定するタイムゾーン
	Timezone string
}

// WorkerConfig はバックグラウンドワーカーの設定
type WorkerConfig struct {
	OccupancyInterval time.Duration
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	cfg := &Config{
		App: AppConfig{
			Env:            getEnv("APP_ENV", "development"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "campsite_reservation"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			URL:      os.Getenv("DATABASE_URL"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			URL:      os.Getenv("REDIS_URL"),
		},
		Lock: LockConfig{
			TTL:           getDurationEnv("LOCK_TTL", 10*time.Second),
			MaxRetries:    getIntEnv("LOCK_MAX_RETRIES", 30),
			RetryInterval: getDurationEnv("LOCK_RETRY_INTERVAL", 100*time.Millisecond),
		},
		Campsite: CampsiteConfig{
			Timezone: getEnv("CAMPSITE_TIMEZONE", "UTC"),
		},
		Worker: WorkerConfig{
			OccupancyInterval: getDurationEnv("OCCUPANCY_REPORT_INTERVAL", time.Minute),
		},
	}

	return cfg
}

// Location はキャンプ場のタイムゾーンを返す（不正な値はUTC）
func (c *CampsiteConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN はPostgreSQL接続文字列を返す
// URL があればそれを、なければ個別の設定を lib/pq で key=value 形式に変換する（値はエスケープされる）
func (c *DatabaseConfig) DSN() (string, error) {
	raw := c.URL
	if raw == "" {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     net.JoinHostPort(c.Host, c.Port),
			Path:     "/" + c.DBName,
			RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
		}
		raw = u.String()
	}
	dsn, err := pq.ParseURL(raw)
	if err != nil {
		return "", fmt.Errorf("データベースURLが不正です: %w", err)
	}
	return dsn, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
