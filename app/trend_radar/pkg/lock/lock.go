package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/logger"
)

// ErrLocked 已有其他运行持有锁
var ErrLocked = errors.New("another pipeline run holds the lock")

// ReleaseFunc 释放锁
type ReleaseFunc func(ctx context.Context) error

// Locker 防止流水线重叠运行
type Locker interface {
	Acquire(ctx context.Context) (ReleaseFunc, error)
	Close() error
}

// New 未配置 Redis 时返回不加锁的实现
func New(cfg config.LockConfig) Locker {
	if cfg.RedisAddr == "" {
		return Nop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedis(client, cfg.Key, cfg.TTL)
}

// Nop 不加锁
type Nop struct{}

func (Nop) Acquire(context.Context) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}

func (Nop) Close() error { return nil }

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis 基于 SET NX 的分布式锁，TTL 到期后自动释放
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

func (l *Redis) Acquire(ctx context.Context) (ReleaseFunc, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	logger.Log.WithField("key", l.key).Debug("已获取运行锁")

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", l.key, err)
		}
		return nil
	}, nil
}

// Close 关闭 Redis 连接
func (l *Redis) Close() error {
	return l.client.Close()
}
