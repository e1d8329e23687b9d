// redis.go
package repository

import (
	"context"
	"fmt"

	"go-monopoly/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewRedis 连接沙盒后端使用的 Redis，连不上直接返回错误
func NewRedis(ctx context.Context, cfg config.Redis, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr, // Redis 地址（Docker 里用服务名或内网IP）
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}
	log.Info("✅ Redis 连接成功", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return rdb, nil
}
