package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地文件存储
type LocalStorage struct {
	basePath string // 绝对路径
}

// NewLocalStorage 创建本地存储服务
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{basePath: abs}, nil
}

// Upload 保存文件到本地，返回绝对路径
func (s *LocalStorage) Upload(ctx context.Context, r io.Reader, filename string) ([]byte, string, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}

	fullPath := filepath.Join(s.basePath, filepath.Base(filename))
	if err := os.WriteFile(fullPath, contents, 0644); err != nil {
		return nil, "", fmt.Errorf("failed to write file: %w", err)
	}
	return contents, fullPath, nil
}

// Resolve 本地路径原样返回
func (s *LocalStorage) Resolve(ctx context.Context, path string) (string, error) {
	if !s.contains(path) {
		return "", fmt.Errorf("path %s is outside storage", path)
	}
	return path, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if !s.contains(path) {
		return fmt.Errorf("path %s is outside storage", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DeleteAll 清空存储目录，保留目录本身
func (s *LocalStorage) DeleteAll(ctx context.Context) error {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return fmt.Errorf("failed to list storage: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.basePath, e.Name())); err != nil {
			return fmt.Errorf("failed to delete %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *LocalStorage) contains(path string) bool {
	rel, err := filepath.Rel(s.basePath, filepath.Clean(path))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
