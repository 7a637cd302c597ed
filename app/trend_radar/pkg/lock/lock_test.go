package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/trend_radar/app/trend_radar/pkg/config"
)

func TestNewWithoutRedisIsNop(t *testing.T) {
	l := New(config.LockConfig{})
	require.IsType(t, Nop{}, l)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, l.Close())
	assert.NoError(t, release(context.Background()))
}

func TestRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, err := NewRedis(client, "trend_radar:test", time.Minute).Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}

func TestNewRedisDefaultTTL(t *testing.T) {
	l := NewRedis(nil, "k", 0)
	assert.Equal(t, 2*time.Hour, l.ttl)
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisAcquireSetsTTL(t *testing.T) {
	mr, client := newMiniRedis(t)
	l := NewRedis(client, "trend_radar:pipeline", 90*time.Minute)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists("trend_radar:pipeline"))
	assert.Equal(t, 90*time.Minute, mr.TTL("trend_radar:pipeline"))

	require.NoError(t, release(context.Background()))
	assert.False(t, mr.Exists("trend_radar:pipeline"))
}

func TestRedisSecondAcquireIsLocked(t *testing.T) {
	_, client := newMiniRedis(t)
	first := NewRedis(client, "trend_radar:pipeline", time.Hour)
	second := NewRedis(client, "trend_radar:pipeline", time.Hour)

	release, err := first.Acquire(context.Background())
	require.NoError(t, err)

	_, err = second.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(context.Background()))
	release, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}

func TestRedisReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newMiniRedis(t)
	l := NewRedis(client, "trend_radar:pipeline", time.Hour)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	// 锁过期后被其他运行重新持有
	mr.Set("trend_radar:pipeline", "another-run")

	require.NoError(t, release(context.Background()))
	got, err := mr.Get("trend_radar:pipeline")
	require.NoError(t, err)
	assert.Equal(t, "another-run", got)
}

func TestRedisClose(t *testing.T) {
	mr := miniredis.RunT(t)
	l := New(config.LockConfig{RedisAddr: mr.Addr(), Key: "k", TTL: time.Minute})
	require.IsType(t, &Redis{}, l)
	require.NoError(t, l.Close())

	_, err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, redis.ErrClosed)
}
