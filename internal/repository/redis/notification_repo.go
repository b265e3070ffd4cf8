package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// 回源与失效并发时可能回填旧值，TTL 限定旧值最多存活的时间
	UnreadCntTTL       = 30 * time.Second
	UnreadCntKeyPrefix = "notify:unread:user" // 缓存用户未读通知数
)

// UnreadCacheRepository 未读数缓存：读侧回填，写侧删除
type UnreadCacheRepository struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewUnreadCacheRepository(client *redis.Client) *UnreadCacheRepository {
	return &UnreadCacheRepository{Client: client, ttl: UnreadCntTTL}
}

func (r *UnreadCacheRepository) key(userID uint64) string {
	return fmt.Sprintf("%s:%d", UnreadCntKeyPrefix, userID)
}

// Get 返回 (值, 是否命中, err)
func (r *UnreadCacheRepository) Get(ctx context.Context, userID uint64) (int64, bool, error) {
	val, err := r.Client.Get(ctx, r.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func (r *UnreadCacheRepository) Set(ctx context.Context, userID uint64, cnt int64) error {
	return r.Client.Set(ctx, r.key(userID), cnt, r.ttl).Err()
}

// Invalidate 写库后删除计数Key，交给读侧惰性回填
func (r *UnreadCacheRepository) Invalidate(ctx context.Context, userID uint64) error {
	if err := r.Client.Del(ctx, r.key(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
