// Package access 判定用户对文件的读写权限
package access

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ashwinyue/next-files/internal/model"
	"github.com/ashwinyue/next-files/internal/repository"
)

// ErrFileNotFound 文件不存在
var ErrFileNotFound = errors.New("file not found")

// Evaluator 文件访问判定
// 所有者与管理员直接放行，其余用户通过文件所属知识库的成员关系判定
type Evaluator struct {
	files       repository.FileRepository
	memberships repository.KnowledgeRepository
}

// NewEvaluator 创建访问判定器
func NewEvaluator(files repository.FileRepository, memberships repository.KnowledgeRepository) *Evaluator {
	return &Evaluator{files: files, memberships: memberships}
}

// CanAccess 加载文件并判定访问权限
func (e *Evaluator) CanAccess(ctx context.Context, fileID string, principal *model.User, accessType string) (bool, error) {
	file, err := e.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrFileNotFound
		}
		return false, fmt.Errorf("failed to load file %s: %w", fileID, err)
	}
	return e.Authorize(ctx, file, principal, accessType), nil
}

// Authorize 对已加载的文件做判定，无副作用
func (e *Evaluator) Authorize(ctx context.Context, file *model.File, principal *model.User, accessType string) bool {
	if file == nil || principal == nil {
		return false
	}
	if principal.ID != "" && principal.ID == file.UserID {
		return true
	}
	if principal.IsAdmin() {
		return true
	}

	collection := file.CollectionName()
	if collection == "" {
		return false
	}

	ids, err := e.memberships.ListKnowledgeBaseIDs(ctx, principal.ID, accessType)
	if err != nil {
		// 查询失败按拒绝处理
		log.Printf("Warning: membership lookup failed for user %s: %v", principal.ID, err)
		return false
	}
	for _, id := range ids {
		if id == collection {
			return true
		}
	}
	return false
}
