package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const s3Scheme = "s3://"

// MinIOStorage MinIO 对象存储
// 读取时下载到本地缓存目录，供内容返回和格式转换使用
type MinIOStorage struct {
	client     *minio.Client
	bucketName string
	cacheDir   string
}

// MinIOConfig MinIO 配置
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	CacheDir   string
}

// NewMinIOStorage 创建 MinIO 存储服务
func NewMinIOStorage(ctx context.Context, cfg *MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "next-files-cache")
	}
	if cacheDir, err = filepath.Abs(cacheDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &MinIOStorage{
		client:     client,
		bucketName: cfg.BucketName,
		cacheDir:   cacheDir,
	}, nil
}

// Upload 上传到 MinIO，返回 s3://bucket/key
func (s *MinIOStorage) Upload(ctx context.Context, r io.Reader, filename string) ([]byte, string, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}

	key := filepath.Base(filename)
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(contents), int64(len(contents)), minio.PutObjectOptions{
		ContentType: mimetype.Detect(contents).String(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to upload file to MinIO: %w", err)
	}
	return contents, s3Scheme + s.bucketName + "/" + key, nil
}

// Resolve 下载到缓存目录，缓存不早于对象修改时间时直接复用
func (s *MinIOStorage) Resolve(ctx context.Context, path string) (string, error) {
	bucket, key, err := parseS3Path(path)
	if err != nil {
		return "", err
	}

	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to stat object: %w", err)
	}

	local := s.cachePath(key)
	if st, err := os.Stat(local); err == nil && !st.ModTime().Before(info.LastModified) {
		return local, nil
	}

	if err := s.client.FGetObject(ctx, bucket, key, local, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("failed to get file from MinIO: %w", err)
	}
	// 缓存文件的修改时间与对象一致，派生文件据此判断新旧
	if err := os.Chtimes(local, info.LastModified, info.LastModified); err != nil {
		return "", err
	}
	return local, nil
}

// Delete 删除对象及本地缓存
func (s *MinIOStorage) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	bucket, key, err := parseS3Path(path)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	// 缓存副本和同名派生 PDF 一并清理
	local := s.cachePath(key)
	targets := []string{local}
	if derived := strings.TrimSuffix(local, filepath.Ext(local)) + ".pdf"; derived != local {
		targets = append(targets, derived)
	}
	for _, p := range targets {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete cached file: %w", err)
		}
	}
	return nil
}

// DeleteAll 删除桶内全部对象并清空缓存
func (s *MinIOStorage) DeleteAll(ctx context.Context) error {
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to delete %s: %w", obj.Key, err)
		}
	}

	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		_ = os.RemoveAll(filepath.Join(s.cacheDir, e.Name()))
	}
	return nil
}

func (s *MinIOStorage) cachePath(key string) string {
	return filepath.Join(s.cacheDir, filepath.Base(key))
}

// parseS3Path 解析 s3://bucket/key
func parseS3Path(path string) (string, string, error) {
	if !strings.HasPrefix(path, s3Scheme) {
		return "", "", fmt.Errorf("invalid object path: %s", path)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(path, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object path: %s", path)
	}
	return bucket, key, nil
}
