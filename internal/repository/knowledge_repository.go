package repository

import (
	"context"

	"github.com/ashwinyue/next-files/internal/model"
	"gorm.io/gorm"
)

// knowledgeRepositoryImpl 知识库成员关系查询
type knowledgeRepositoryImpl struct {
	db *gorm.DB
}

// NewKnowledgeRepository 创建知识库仓库
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepositoryImpl{db: db}
}

// ListKnowledgeBaseIDs 用户自己的知识库，加上以成员身份获得授权的知识库
// write 成员同时拥有 read 权限
func (r *knowledgeRepositoryImpl) ListKnowledgeBaseIDs(ctx context.Context, userID, permission string) ([]string, error) {
	db := r.db.WithContext(ctx)

	var owned []string
	if err := db.Model(&model.KnowledgeBase{}).
		Where("user_id = ?", userID).
		Pluck("id", &owned).Error; err != nil {
		return nil, err
	}

	perms := []string{model.AccessWrite}
	if permission != model.AccessWrite {
		perms = append(perms, model.AccessRead)
	}

	var shared []string
	if err := db.Model(&model.KnowledgeMember{}).
		Where("user_id = ? AND permission IN ?", userID, perms).
		Pluck("knowledge_base_id", &shared).Error; err != nil {
		return nil, err
	}

	return mergeIDs(owned, shared), nil
}

// mergeIDs 合并去重，保持首次出现的顺序
func mergeIDs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
