// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashwinyue/next-files/internal/model"
	"github.com/ashwinyue/next-files/internal/repository"
)

// ========== 用户 fixtures ==========

// NewUser 创建普通用户
func NewUser(id string) *model.User {
	return &model.User{ID: id, Name: id, Email: id + "@example.com", Role: model.RoleUser, IsActive: true}
}

// NewAdmin 创建管理员
func NewAdmin(id string) *model.User {
	u := NewUser(id)
	u.Role = model.RoleAdmin
	return u
}

// NewFile 创建文件记录
func NewFile(id, ownerID, name, contentType string) *model.File {
	return &model.File{
		ID:       id,
		UserID:   ownerID,
		Filename: name,
		Path:     "/data/uploads/" + id + "_" + name,
		Data:     model.JSON{},
		Meta: model.JSON{
			model.MetaName:        name,
			model.MetaContentType: contentType,
		},
	}
}

// ========== 内存 FileRepository ==========

// MemoryFileRepository 基于 map 的文件仓库
type MemoryFileRepository struct {
	mu    sync.RWMutex
	files map[string]*model.File
	now   time.Time

	// 设置后对应操作直接返回该错误
	GetErr    error
	DeleteErr error
}

// NewMemoryFileRepository 创建内存文件仓库
func NewMemoryFileRepository(files ...*model.File) *MemoryFileRepository {
	r := &MemoryFileRepository{
		files: make(map[string]*model.File),
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, f := range files {
		r.put(f)
	}
	return r
}

func (r *MemoryFileRepository) put(f *model.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.CreatedAt.IsZero() {
		r.now = r.now.Add(time.Second)
		f.CreatedAt = r.now
		f.UpdatedAt = r.now
	}
	r.files[f.ID] = f
}

// GetByID 根据ID获取文件，返回副本
func (r *MemoryFileRepository) GetByID(ctx context.Context, id string) (*model.File, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyFile(f), nil
}

// Insert 写入新文件记录
func (r *MemoryFileRepository) Insert(ctx context.Context, ownerID string, form *model.FileForm) (*model.File, error) {
	f := &model.File{
		ID:       form.ID,
		UserID:   ownerID,
		Filename: form.Filename,
		Path:     form.Path,
		Data:     form.Data,
		Meta:     form.Meta,
	}
	if f.Data == nil {
		f.Data = model.JSON{}
	}
	r.put(f)
	return copyFile(f), nil
}

// List 列出全部文件
func (r *MemoryFileRepository) List(ctx context.Context) ([]*model.File, error) {
	return r.filter(func(*model.File) bool { return true }), nil
}

// ListByUserID 列出用户的文件
func (r *MemoryFileRepository) ListByUserID(ctx context.Context, userID string) ([]*model.File, error) {
	return r.filter(func(f *model.File) bool { return f.UserID == userID }), nil
}

// Update 更新文件记录
func (r *MemoryFileRepository) Update(ctx context.Context, file *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[file.ID]; !ok {
		return repository.ErrNotFound
	}
	r.files[file.ID] = copyFile(file)
	return nil
}

// DeleteByID 删除文件记录
func (r *MemoryFileRepository) DeleteByID(ctx context.Context, id string) error {
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.files, id)
	return nil
}

// DeleteAll 删除全部文件记录
func (r *MemoryFileRepository) DeleteAll(ctx context.Context) error {
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = make(map[string]*model.File)
	return nil
}

// Len 当前记录数
func (r *MemoryFileRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

func (r *MemoryFileRepository) filter(keep func(*model.File) bool) []*model.File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.File
	for _, f := range r.files {
		if keep(f) {
			out = append(out, copyFile(f))
		}
	}
	// 与数据库实现一致，按创建时间倒序
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func copyFile(f *model.File) *model.File {
	c := *f
	c.Data = f.Data.Clone()
	c.Meta = f.Meta.Clone()
	return &c
}

// ========== 内存 KnowledgeRepository ==========

// MemoryKnowledgeRepository 成员关系：userID -> permission -> 知识库 ID
type MemoryKnowledgeRepository struct {
	Grants map[string]map[string][]string
	Err    error
	Calls  int
}

// NewMemoryKnowledgeRepository 创建内存成员关系仓库
func NewMemoryKnowledgeRepository() *MemoryKnowledgeRepository {
	return &MemoryKnowledgeRepository{Grants: make(map[string]map[string][]string)}
}

// Grant 授予用户知识库权限，write 同时授予 read
func (r *MemoryKnowledgeRepository) Grant(userID, kbID, permission string) *MemoryKnowledgeRepository {
	if r.Grants[userID] == nil {
		r.Grants[userID] = make(map[string][]string)
	}
	r.Grants[userID][permission] = append(r.Grants[userID][permission], kbID)
	if permission == model.AccessWrite {
		r.Grants[userID][model.AccessRead] = append(r.Grants[userID][model.AccessRead], kbID)
	}
	return r
}

// ListKnowledgeBaseIDs 返回授予的知识库 ID
func (r *MemoryKnowledgeRepository) ListKnowledgeBaseIDs(ctx context.Context, userID, permission string) ([]string, error) {
	r.Calls++
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Grants[userID][permission], nil
}

// ========== 断言辅助 ==========

// AssertHelper 提供断言相关的测试辅助
type AssertHelper struct {
	t *testing.T
}

// NewAssertHelper 创建断言辅助器
func NewAssertHelper(t *testing.T) *AssertHelper {
	return &AssertHelper{t: t}
}

// NoError 断言没有错误
func (h *AssertHelper) NoError(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("Unexpected error: %v %v", err, msgAndArgs)
	}
}

// ErrorContains 断言错误包含指定字符串
func (h *AssertHelper) ErrorContains(err error, substr string, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), substr) {
		h.t.Fatalf("Error %q does not contain %q %v", err.Error(), substr, msgAndArgs)
	}
}

// Equal 断言相等
func (h *AssertHelper) Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	h.t.Helper()
	if expected != actual {
		h.t.Fatalf("Expected %v, got %v %v", expected, actual, msgAndArgs)
	}
}

// True 断言为真
func (h *AssertHelper) True(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !condition {
		h.t.Fatalf("Expected true, got false %v", msgAndArgs)
	}
}

// False 断言为假
func (h *AssertHelper) False(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if condition {
		h.t.Fatalf("Expected false, got true %v", msgAndArgs)
	}
}
