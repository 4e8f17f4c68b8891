package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "catalog:ingest:lock"

func setupTestLocker(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisLocker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client, testKey, ttl, zap.NewNop())
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	mr, locker := setupTestLocker(t, time.Minute)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(testKey))
	assert.Greater(t, mr.TTL(testKey), time.Duration(0))

	// 第二个持有者被拒绝
	_, err = locker.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(testKey))

	// 重复释放无副作用
	require.NoError(t, lease.Release(ctx))

	lease2, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, lease2.Release(ctx))
}

func TestRedisLocker_ReleaseDoesNotDeleteForeignLock(t *testing.T) {
	mr, locker := setupTestLocker(t, time.Minute)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	require.NoError(t, err)

	// 锁过期后被别的进程拿走
	require.NoError(t, mr.Set(testKey, "someone-else"))

	require.NoError(t, lease.Release(ctx))
	got, err := mr.Get(testKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_KeepAliveExtendsTTL(t *testing.T) {
	mr, locker := setupTestLocker(t, 300*time.Millisecond)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Release(ctx)

	// miniredis 不会自动流逝时间，续期脚本会把 TTL 重新设回 300ms
	mr.SetTTL(testKey, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return mr.TTL(testKey) > 100*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNoopLocker(t *testing.T) {
	lease, err := NoopLocker{}.Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, lease.Release(context.Background()))
}
