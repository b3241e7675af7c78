// Package repository 定义数据访问接口
// 服务层只依赖这些接口，测试时可替换为内存实现
package repository

import (
	"context"
	"errors"

	"github.com/ashwinyue/next-files/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ========== FileRepository 接口 ==========

// FileRepository 文件元数据访问接口
type FileRepository interface {
	GetByID(ctx context.Context, id string) (*model.File, error)
	Insert(ctx context.Context, ownerID string, form *model.FileForm) (*model.File, error)
	List(ctx context.Context) ([]*model.File, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.File, error)
	Update(ctx context.Context, file *model.File) error
	DeleteByID(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// ========== KnowledgeRepository 接口 ==========

// KnowledgeRepository 知识库成员关系查询
type KnowledgeRepository interface {
	// ListKnowledgeBaseIDs 返回用户拥有指定权限的知识库 ID
	ListKnowledgeBaseIDs(ctx context.Context, userID, permission string) ([]string, error)
}

// ========== UserRepository 接口 ==========

// UserRepository 用户查询
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// 确保实现了接口
var (
	_ FileRepository      = (*fileRepositoryImpl)(nil)
	_ KnowledgeRepository = (*knowledgeRepositoryImpl)(nil)
	_ KnowledgeRepository = (*CachedKnowledgeRepository)(nil)
	_ UserRepository      = (*AuthRepository)(nil)
)
