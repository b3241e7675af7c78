package repository

import (
	"context"
	"errors"

	"github.com/ashwinyue/next-files/internal/model"
	"gorm.io/gorm"
)

// AuthRepository 用户数据访问
type AuthRepository struct {
	db *gorm.DB
}

// NewAuthRepository 创建用户仓库
func NewAuthRepository(db *gorm.DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// GetUserByID 获取用户
func (r *AuthRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
