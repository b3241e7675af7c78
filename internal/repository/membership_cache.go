package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key 前缀
const membershipKeyPrefix = "kb:members:"

// MembershipStore 成员关系缓存使用的 Redis 命令
type MembershipStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ MembershipStore = (*redis.Client)(nil)

// CachedKnowledgeRepository 在 Redis 中缓存成员关系查询结果
// 缓存期内撤销的成员仍保留访问权限，最长 ttl
type CachedKnowledgeRepository struct {
	inner KnowledgeRepository
	redis MembershipStore
	ttl   time.Duration
}

// NewCachedKnowledgeRepository 创建带缓存的知识库仓库
// store 为 nil 或 ttl 为 0 时直接透传
func NewCachedKnowledgeRepository(inner KnowledgeRepository, store MembershipStore, ttl time.Duration) *CachedKnowledgeRepository {
	return &CachedKnowledgeRepository{
		inner: inner,
		redis: store,
		ttl:   ttl,
	}
}

// ListKnowledgeBaseIDs 先查缓存，未命中再查数据库
func (r *CachedKnowledgeRepository) ListKnowledgeBaseIDs(ctx context.Context, userID, permission string) ([]string, error) {
	if !r.enabled() {
		return r.inner.ListKnowledgeBaseIDs(ctx, userID, permission)
	}

	key := membershipKey(userID, permission)
	if ids, ok := r.load(ctx, key); ok {
		return ids, nil
	}

	ids, err := r.inner.ListKnowledgeBaseIDs(ctx, userID, permission)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(ids)
	if err == nil {
		if err := r.redis.Set(ctx, key, data, r.ttl).Err(); err != nil {
			log.Printf("Warning: failed to cache memberships for %s: %v", userID, err)
		}
	}
	return ids, nil
}

func (r *CachedKnowledgeRepository) enabled() bool {
	return r.redis != nil && r.ttl > 0
}

// load 缓存读取失败一律视为未命中
func (r *CachedKnowledgeRepository) load(ctx context.Context, key string) ([]string, bool) {
	val, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Warning: membership cache read failed: %v", err)
		}
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal([]byte(val), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func membershipKey(userID, permission string) string {
	return fmt.Sprintf("%s%s:%s", membershipKeyPrefix, userID, permission)
}
