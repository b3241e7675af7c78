package repository

import (
	"context"
	"errors"

	"github.com/ashwinyue/next-files/internal/model"
	"gorm.io/gorm"
)

// fileRepositoryImpl 文件仓库
type fileRepositoryImpl struct {
	db *gorm.DB
}

// NewFileRepository 创建文件仓库
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepositoryImpl{db: db}
}

// GetByID 根据ID获取文件
func (r *fileRepositoryImpl) GetByID(ctx context.Context, id string) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// Insert 写入新文件记录
func (r *fileRepositoryImpl) Insert(ctx context.Context, ownerID string, form *model.FileForm) (*model.File, error) {
	file := &model.File{
		ID:       form.ID,
		UserID:   ownerID,
		Filename: form.Filename,
		Path:     form.Path,
		Data:     form.Data,
		Meta:     form.Meta,
	}
	if file.Data == nil {
		file.Data = model.JSON{}
	}
	if file.Meta == nil {
		file.Meta = model.JSON{}
	}
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

// List 列出全部文件
func (r *fileRepositoryImpl) List(ctx context.Context) ([]*model.File, error) {
	var files []*model.File
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&files).Error
	return files, err
}

// ListByUserID 列出用户的文件
func (r *fileRepositoryImpl) ListByUserID(ctx context.Context, userID string) ([]*model.File, error) {
	var files []*model.File
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&files).Error
	return files, err
}

// Update 更新文件记录
func (r *fileRepositoryImpl) Update(ctx context.Context, file *model.File) error {
	return r.db.WithContext(ctx).Save(file).Error
}

// DeleteByID 删除文件记录
func (r *fileRepositoryImpl) DeleteByID(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&model.File{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll 删除全部文件记录
func (r *fileRepositoryImpl) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.File{}).Error
}
