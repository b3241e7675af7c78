package repository

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB        *gorm.DB // 直接访问数据库
	File      FileRepository
	Knowledge KnowledgeRepository
	Auth      UserRepository
}

// NewRepositories 创建所有仓库
// redisClient 可为 nil，此时成员关系不做缓存
func NewRepositories(db *gorm.DB, redisClient *redis.Client, membershipTTL time.Duration) *Repositories {
	var store MembershipStore
	if redisClient != nil {
		store = redisClient
	}
	return &Repositories{
		DB:        db,
		File:      NewFileRepository(db),
		Knowledge: NewCachedKnowledgeRepository(NewKnowledgeRepository(db), store, membershipTTL),
		Auth:      NewAuthRepository(db),
	}
}
