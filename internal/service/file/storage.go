package file

import (
	"context"
	"fmt"
	"io"

	"github.com/ashwinyue/next-files/internal/config"
)

// Storage 文件存储接口
type Storage interface {
	// Upload 保存上传内容，返回内容与存储路径
	Upload(ctx context.Context, r io.Reader, filename string) ([]byte, string, error)
	// Resolve 返回可直接读取的本地路径，对象存储会先下载到缓存目录
	Resolve(ctx context.Context, path string) (string, error)
	// Delete 删除文件
	Delete(ctx context.Context, path string) error
	// DeleteAll 删除全部文件
	DeleteAll(ctx context.Context) error
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinIO StorageType = "minio"
)

// NewStorageFromConfig 按配置创建存储
func NewStorageFromConfig(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch StorageType(cfg.Provider) {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.UploadDir)
	case StorageTypeMinIO:
		m := cfg.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return nil, fmt.Errorf("missing required MinIO config")
		}
		return NewMinIOStorage(ctx, &MinIOConfig{
			Endpoint:   m.Endpoint,
			AccessKey:  m.AccessKey,
			SecretKey:  m.SecretKey,
			BucketName: m.Bucket,
			UseSSL:     m.UseSSL,
			CacheDir:   cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Provider)
	}
}
