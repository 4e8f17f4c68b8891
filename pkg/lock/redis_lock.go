package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog_ingest_v1/internal/config"
)

// ErrLocked 锁已被其他进程持有
var ErrLocked = errors.New("lock held by another process")

// Lease 已获得的锁，用完必须 Release
type Lease interface {
	Release(ctx context.Context) error
}

// Locker 单写者锁
type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
}

// 只有持有者（token 匹配）才能续期和释放
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// NewRedisClient 创建 Redis 客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ==================== Redis 锁 ====================

// RedisLocker 基于 SET NX PX 的锁，持有期间后台按 ttl/3 续期
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, l.key)
	}

	lease := &redisLease{
		locker: l,
		token:  token,
		stop:   make(chan struct{}),
	}
	lease.wg.Add(1)
	go lease.keepAlive()

	l.logger.Debug("lock acquired", zap.String("key", l.key), zap.String("token", token))
	return lease, nil
}

type redisLease struct {
	locker *RedisLocker
	token  string

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (le *redisLease) keepAlive() {
	defer le.wg.Done()

	l := le.locker
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-le.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := refreshScript.Run(ctx, l.client, []string{l.key}, le.token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.logger.Warn("lock refresh failed", zap.String("key", l.key), zap.Error(err))
				continue
			}
			if n == 0 {
				l.logger.Error("lock lost", zap.String("key", l.key))
				return
			}
		}
	}
}

func (le *redisLease) Release(ctx context.Context) error {
	var err error
	le.once.Do(func() {
		close(le.stop)
		le.wg.Wait()

		l := le.locker
		if _, rerr := releaseScript.Run(ctx, l.client, []string{l.key}, le.token).Result(); rerr != nil {
			err = fmt.Errorf("release lock %s: %w", l.key, rerr)
			return
		}
		l.logger.Debug("lock released", zap.String("key", l.key))
	})
	return err
}

// ==================== 空锁 ====================

// NoopLocker 未配置 Redis 时使用，总是成功
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release(context.Context) error {
	return nil
}
