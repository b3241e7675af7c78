package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path"
	"strings"

	"github.com/ashwinyue/next-files/internal/model"
	"github.com/ashwinyue/next-files/internal/repository"
	"github.com/ashwinyue/next-files/internal/service/access"
	"github.com/ashwinyue/next-files/internal/service/audio"
	"github.com/ashwinyue/next-files/internal/service/delivery"
	"github.com/ashwinyue/next-files/internal/service/event"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

var (
	// ErrFileNotFound 文件不存在或无权访问
	ErrFileNotFound = access.ErrFileNotFound
	// ErrNoMatch 搜索无结果
	ErrNoMatch = errors.New("no files found matching the pattern")
	// ErrInvalidPattern 搜索模式非法
	ErrInvalidPattern = errors.New("invalid filename pattern")
	// ErrUploadFailed 上传失败
	ErrUploadFailed = errors.New("upload failed")
	// ErrDeleteFailed 删除文件记录失败
	ErrDeleteFailed = errors.New("error deleting file")
	// ErrStorageDelete 删除存储内容失败
	ErrStorageDelete = errors.New("error deleting files")
)

// Processor 文件内容处理（文本抽取、索引）
type Processor interface {
	Process(ctx context.Context, fileID, content string) error
}

// Transcriber 语音转写
type Transcriber interface {
	Transcribe(ctx context.Context, localPath string) (*audio.Transcription, error)
}

// Unindexer 删除文件在检索索引中的内容
type Unindexer interface {
	Forget(ctx context.Context, fileID string) error
}

// Evicter 清理派生文件
type Evicter interface {
	Evict(sourcePath string) error
}

// Options 文件服务依赖，可选项为 nil 时跳过对应功能
type Options struct {
	Files       repository.FileRepository
	Storage     Storage
	Access      *access.Evaluator
	Negotiator  *delivery.Negotiator
	Processor   Processor
	Transcriber Transcriber
	Evicter     Evicter
	Unindexer   Unindexer
	Publisher   event.Publisher
}

// Service 文件服务
type Service struct {
	files       repository.FileRepository
	storage     Storage
	access      *access.Evaluator
	negotiator  *delivery.Negotiator
	processor   Processor
	transcriber Transcriber
	evicter     Evicter
	unindexer   Unindexer
	publisher   event.Publisher
}

// NewService 创建文件服务
func NewService(opts Options) *Service {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	negotiator := opts.Negotiator
	if negotiator == nil {
		negotiator = delivery.NewNegotiator(nil)
	}
	return &Service{
		files:       opts.Files,
		storage:     opts.Storage,
		access:      opts.Access,
		negotiator:  negotiator,
		processor:   opts.Processor,
		transcriber: opts.Transcriber,
		evicter:     opts.Evicter,
		unindexer:   opts.Unindexer,
		publisher:   publisher,
	}
}

// UploadRequest 上传请求
type UploadRequest struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Metadata    map[string]interface{} // 调用方附带的元数据，存入 meta.data
	Process     bool
}

// Upload 上传文件并按需处理
// 处理失败不影响上传结果，错误信息放在返回值的 Error 字段
func (s *Service) Upload(ctx context.Context, user *model.User, req *UploadRequest) (*model.FileResponse, error) {
	name := SanitizeFilename(req.Filename)
	if name == "" {
		return nil, fmt.Errorf("%w: empty filename", ErrUploadFailed)
	}

	id := uuid.New().String()
	contents, storedPath, err := s.storage.Upload(ctx, req.Reader, id+"_"+name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = detectContentType(contents)
	}

	data := req.Metadata
	if data == nil {
		data = map[string]interface{}{}
	}
	meta := model.JSON{
		model.MetaName:        name,
		model.MetaContentType: contentType,
		model.MetaSize:        len(contents),
		model.MetaData:        data,
	}

	file, err := s.files.Insert(ctx, user.ID, &model.FileForm{
		ID:       id,
		Filename: name,
		Path:     storedPath,
		Meta:     meta,
	})
	if err != nil {
		// 记录写入失败时清理已保存的内容
		if delErr := s.storage.Delete(ctx, storedPath); delErr != nil {
			log.Printf("Warning: failed to clean up %s: %v", storedPath, delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	event.Emit(ctx, s.publisher, event.New(event.EventFileUploaded, file.ID, user.ID, map[string]interface{}{
		"name":         name,
		"content_type": contentType,
		"size":         len(contents),
	}))

	resp := &model.FileResponse{File: *file}
	if !req.Process || s.processor == nil {
		return resp, nil
	}

	if err := s.process(ctx, file, contentType); err != nil {
		log.Printf("Warning: failed to process file %s: %v", file.ID, err)
		resp.Error = err.Error()
		return resp, nil
	}

	if processed, err := s.files.GetByID(ctx, file.ID); err == nil {
		resp.File = *processed
	}
	event.Emit(ctx, s.publisher, event.New(event.EventFileProcessed, file.ID, user.ID, nil))
	return resp, nil
}

// process 音频先转写，转写文本作为内容交给处理流程
func (s *Service) process(ctx context.Context, file *model.File, contentType string) error {
	content := ""
	if audio.IsAudio(contentType) {
		if s.transcriber == nil {
			return fmt.Errorf("audio transcription is not configured")
		}
		local, err := s.storage.Resolve(ctx, file.Path)
		if err != nil {
			return err
		}
		result, err := s.transcriber.Transcribe(ctx, local)
		if err != nil {
			return err
		}
		content = result.Text
	}
	return s.processor.Process(ctx, file.ID, content)
}

// List 列出可见文件，管理员可见全部
func (s *Service) List(ctx context.Context, user *model.User, withContent bool) ([]*model.File, error) {
	var (
		files []*model.File
		err   error
	)
	if user.IsAdmin() {
		files, err = s.files.List(ctx)
	} else {
		files, err = s.files.ListByUserID(ctx, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	if !withContent {
		for _, f := range files {
			f.StripContent()
		}
	}
	return files, nil
}

// Search 按文件名通配搜索，大小写不敏感
func (s *Service) Search(ctx context.Context, user *model.User, pattern string, withContent bool) ([]*model.File, error) {
	g, err := glob.Compile(fnmatchPattern(strings.ToLower(pattern)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	files, err := s.List(ctx, user, withContent)
	if err != nil {
		return nil, err
	}

	matched := make([]*model.File, 0, len(files))
	for _, f := range files {
		if g.Match(strings.ToLower(f.Filename)) {
			matched = append(matched, f)
		}
	}
	if len(matched) == 0 {
		return nil, ErrNoMatch
	}
	return matched, nil
}

// fnmatchPattern 转换为 fnmatch 语义：只有 * ? 和闭合的 [...] 是通配符
// 花括号、反斜杠和未闭合的 [ 按字面匹配
func fnmatchPattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			end := strings.IndexByte(pattern[j:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(pattern[i : j+end+1])
			i = j + end
		case '{', '}', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DeleteAll 删除全部文件记录和存储内容，仅管理员可调用
func (s *Service) DeleteAll(ctx context.Context, user *model.User) error {
	if err := s.files.DeleteAll(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageDelete, err)
	}
	if err := s.storage.DeleteAll(ctx); err != nil {
		log.Printf("Warning: failed to delete storage contents: %v", err)
		return fmt.Errorf("%w: %v", ErrStorageDelete, err)
	}
	event.Emit(ctx, s.publisher, event.New(event.EventFilesPurged, "", user.ID, nil))
	return nil
}

// Get 获取有读权限的文件
func (s *Service) Get(ctx context.Context, user *model.User, id string) (*model.File, error) {
	return s.authorized(ctx, user, id, model.AccessRead)
}

// DataContent 返回处理后的文本内容
func (s *Service) DataContent(ctx context.Context, user *model.User, id string) (string, error) {
	file, err := s.Get(ctx, user, id)
	if err != nil {
		return "", err
	}
	return file.TextContent(), nil
}

// Content 计算文件内容的返回方案，Word 文档非下载时转为 PDF
func (s *Service) Content(ctx context.Context, user *model.User, id string, attachment bool) (*delivery.Plan, error) {
	file, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if file.Path == "" {
		return nil, delivery.ErrContentNotFound
	}

	local, err := s.storage.Resolve(ctx, file.Path)
	if err != nil {
		log.Printf("Warning: failed to resolve %s: %v", file.Path, err)
		return nil, delivery.ErrContentNotFound
	}
	return s.negotiator.Negotiate(ctx, file, local, attachment)
}

// NamedContent 按下载方式返回的内容
// Plan 为空时 Text 即为内联文本内容
type NamedContent struct {
	Plan *delivery.Plan
	Name string
	Text string
}

// NamedContent 以附件形式返回文件内容，无存储内容时返回内联文本
func (s *Service) NamedContent(ctx context.Context, user *model.User, id string) (*NamedContent, error) {
	file, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if file.Path == "" {
		return &NamedContent{Name: file.DisplayName(), Text: file.TextContent()}, nil
	}

	local, err := s.storage.Resolve(ctx, file.Path)
	if err != nil {
		log.Printf("Warning: failed to resolve %s: %v", file.Path, err)
		return nil, delivery.ErrContentNotFound
	}
	plan, err := s.negotiator.Negotiate(ctx, file, local, true)
	if err != nil {
		return nil, err
	}
	return &NamedContent{Plan: plan, Name: file.DisplayName()}, nil
}

// Delete 删除有写权限的文件，先删记录再删存储内容
func (s *Service) Delete(ctx context.Context, user *model.User, id string) error {
	file, err := s.authorized(ctx, user, id, model.AccessWrite)
	if err != nil {
		return err
	}

	if err := s.files.DeleteByID(ctx, file.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	if err := s.storage.Delete(ctx, file.Path); err != nil {
		log.Printf("Warning: failed to delete %s from storage: %v", file.Path, err)
		return fmt.Errorf("%w: %v", ErrStorageDelete, err)
	}

	if s.evicter != nil && file.Path != "" && !strings.HasPrefix(file.Path, s3Scheme) &&
		delivery.IsWordDocument(file.ContentType(), file.DisplayName()) {
		if err := s.evicter.Evict(file.Path); err != nil {
			log.Printf("Warning: failed to evict derived pdf for %s: %v", file.ID, err)
		}
	}

	if s.unindexer != nil {
		if err := s.unindexer.Forget(ctx, file.ID); err != nil {
			log.Printf("Warning: failed to remove index entries for %s: %v", file.ID, err)
		}
	}

	event.Emit(ctx, s.publisher, event.New(event.EventFileDeleted, file.ID, user.ID, nil))
	return nil
}

// authorized 加载文件并校验权限，无权限与不存在同样返回 ErrFileNotFound
func (s *Service) authorized(ctx context.Context, user *model.User, id, accessType string) (*model.File, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if !s.access.Authorize(ctx, file, user, accessType) {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// SanitizeFilename 取上传文件名的最后一段
func SanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// detectContentType 根据内容推断 MIME 类型，去掉参数部分
func detectContentType(contents []byte) string {
	detected := mimetype.Detect(contents).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}
