package redis

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
)

// Enabled は REDIS_HOST が設定されているかを返します。未設定ならキャッシュなしで動作します。
func Enabled() bool {
	return os.Getenv("REDIS_HOST") != ""
}

// NewRedisClient は環境変数の接続先へ接続し、疎通を確認したクライアントを返します。
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	addr := os.Getenv("REDIS_HOST") + ":" + port
	password := os.Getenv("REDIS_PASSWORD")

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	// 接続確認
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Redis connection failed", "address", addr, "error", err)
		_ = rdb.Close()
		return nil, err
	}

	slog.Info("Redis connection successful", "address", addr)
	return rdb, nil
}
