// Package retrieval 抽取文件文本并写入检索索引
// 直接使用 eino/eino-ext 组件
package retrieval

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashwinyue/next-files/internal/model"
	"github.com/ashwinyue/next-files/internal/repository"
	"github.com/ashwinyue/next-files/internal/service/convert"
	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
)

// ErrUnsupportedType 无法抽取文本的文件类型
var ErrUnsupportedType = errors.New("unsupported file type")

// 直接按文本读取的扩展名
var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".markdown": {}, ".csv": {}, ".tsv": {}, ".json": {},
	".xml": {}, ".yaml": {}, ".yml": {}, ".log": {}, ".ini": {}, ".toml": {},
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".java": {}, ".c": {}, ".cpp": {},
	".h": {}, ".rs": {}, ".sh": {}, ".sql": {}, ".css": {}, ".rst": {},
}

// Resolver 将存储路径解析为本地路径
type Resolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// Index 向量索引
type Index struct {
	Indexer indexer.Indexer
	// Remove 删除文件的全部分块
	Remove func(ctx context.Context, fileID string) error
}

// Processor 文件处理流程：抽取文本、写回记录、可选写入向量索引
type Processor struct {
	files    repository.FileRepository
	resolver Resolver
	index    *Index // 为 nil 时只抽取文本
}

// NewProcessor 创建文件处理器
func NewProcessor(files repository.FileRepository, resolver Resolver, index *Index) *Processor {
	return &Processor{
		files:    files,
		resolver: resolver,
		index:    index,
	}
}

// Process 处理文件，content 非空时直接使用（如音频转写结果）
func (p *Processor) Process(ctx context.Context, fileID, content string) error {
	file, err := p.files.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}

	text := content
	if text == "" {
		text, err = p.extract(ctx, file)
		if err != nil {
			return err
		}
	}

	data := file.Data.Clone()
	if data == nil {
		data = model.JSON{}
	}
	data[model.DataContent] = text
	file.Data = data
	file.Hash = Hash(text)
	if err := p.files.Update(ctx, file); err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}

	if p.index == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	return p.store(ctx, file, text)
}

// Forget 删除文件在索引中的分块
func (p *Processor) Forget(ctx context.Context, fileID string) error {
	if p.index == nil || p.index.Remove == nil {
		return nil
	}
	return p.index.Remove(ctx, fileID)
}

// extract 解析存储内容，无存储路径时沿用已有的文本
func (p *Processor) extract(ctx context.Context, file *model.File) (string, error) {
	if file.Path == "" {
		return file.TextContent(), nil
	}

	local, err := p.resolver.Resolve(ctx, file.Path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(file.DisplayName()))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(local))
	}
	fileParser, err := newParser(ctx, ext)
	if err != nil {
		return "", err
	}

	f, err := os.Open(local)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	docs, err := safeParse(ctx, fileParser, f, einoparser.WithURI(local))
	if err != nil {
		return "", fmt.Errorf("parser failed: %w", err)
	}

	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if c := strings.TrimSpace(d.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// store 分块后写入索引
func (p *Processor) store(ctx context.Context, file *model.File, text string) error {
	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   512,
		OverlapSize: 50,
		Separators:  []string{"\n\n", "\n", ". ", "。", "? ", "？", "! ", "！", ", ", "，", " ", ""},
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return fmt.Errorf("failed to create splitter: %w", err)
	}

	chunks, err := splitter.Transform(ctx, []*schema.Document{{ID: file.ID, Content: text}})
	if err != nil {
		return fmt.Errorf("splitter failed: %w", err)
	}

	docs := make([]*schema.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, &schema.Document{
			ID:      fmt.Sprintf("%s-%d", file.ID, i),
			Content: c.Content,
			MetaData: map[string]any{
				"file_id":         file.ID,
				"collection_name": file.CollectionName(),
				"name":            file.DisplayName(),
				"chunk_index":     i,
			},
		})
	}

	ids, err := p.index.Indexer.Store(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	log.Printf("Indexed %d chunks for file %s", len(ids), file.ID)
	return nil
}

// newParser 按扩展名创建解析器
func newParser(ctx context.Context, ext string) (einoparser.Parser, error) {
	switch ext {
	case ".pdf":
		return pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	case ".docx":
		p, err := docx.NewDocxParser(ctx, &docx.Config{
			ToSections:      false,
			IncludeComments: false,
			IncludeHeaders:  true,
			IncludeFooters:  false,
			IncludeTables:   true,
		})
		if err != nil {
			return nil, err
		}
		return &docxParser{primary: p}, nil
	case ".html", ".htm":
		bodySelector := "body"
		return html.NewParser(ctx, &html.Config{
			Selector: &bodySelector,
		})
	}
	if _, ok := textExtensions[ext]; ok {
		return &textParser{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// safeParse 把解析器的 panic 转换为错误
func safeParse(ctx context.Context, p einoparser.Parser, r io.Reader, opts ...einoparser.Option) (docs []*schema.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			docs, err = nil, fmt.Errorf("parser panic: %v", rec)
		}
	}()
	return p.Parse(ctx, r, opts...)
}

// docxParser eino docx 解析失败时读取文档中的文本 run
type docxParser struct {
	primary einoparser.Parser
}

func (p *docxParser) Parse(ctx context.Context, reader io.Reader, opts ...einoparser.Option) ([]*schema.Document, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	docs, err := safeParse(ctx, p.primary, bytes.NewReader(raw), opts...)
	if err == nil {
		return docs, nil
	}
	text, rerr := convert.DocxText(raw)
	if rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	log.Printf("Warning: docx parser failed, using raw text runs: %v", err)
	return []*schema.Document{{Content: text, MetaData: make(map[string]any)}}, nil
}

// textParser 纯文本解析器
type textParser struct{}

func (p *textParser) Parse(_ context.Context, reader io.Reader, opts ...einoparser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	text := strings.ToValidUTF8(string(content), "")
	if text == "" {
		return []*schema.Document{}, nil
	}
	return []*schema.Document{{Content: text, MetaData: make(map[string]any)}}, nil
}

// Hash 文本内容的 sha256
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
