// Package delivery 决定文件内容的返回方式
package delivery

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/ashwinyue/next-files/internal/model"
)

// ErrContentNotFound 本地内容不存在
var ErrContentNotFound = errors.New("file content not found")

const (
	mediaPDF         = "application/pdf"
	mediaOctetStream = "application/octet-stream"
	mediaTextPlain   = "text/plain"
)

// PDFConverter Word 文档转 PDF
type PDFConverter interface {
	EnsurePDF(ctx context.Context, sourcePath string, isDocx bool) (string, error)
}

// Plan 内容返回方案
type Plan struct {
	Disposition string // 完整的 Content-Disposition 值，空表示不设置
	MediaType   string
	Path        string
}

// Negotiator 内容协商
type Negotiator struct {
	converter PDFConverter
}

// NewNegotiator 创建内容协商器，converter 为 nil 时不做转换
func NewNegotiator(converter PDFConverter) *Negotiator {
	return &Negotiator{converter: converter}
}

// Negotiate 根据文件类型和 attachment 标志生成返回方案
func (n *Negotiator) Negotiate(ctx context.Context, file *model.File, localPath string, attachment bool) (*Plan, error) {
	info, err := os.Stat(localPath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, ErrContentNotFound
	}

	name := file.DisplayName()
	contentType := file.ContentType()
	if contentType == "" {
		contentType = mediaOctetStream
	}

	if !attachment && n.converter != nil && IsWordDocument(contentType, name) {
		pdfPath, err := n.converter.EnsurePDF(ctx, localPath, IsDocx(contentType, name))
		if err == nil && pdfPath != "" {
			return &Plan{Disposition: Disposition("inline", name), MediaType: mediaPDF, Path: pdfPath}, nil
		}
		log.Printf("Warning: pdf conversion failed for %s, serving original: %v", name, err)
	}

	plan := &Plan{MediaType: contentType, Path: localPath}
	switch {
	case attachment:
		plan.Disposition = Disposition("attachment", name)
	case contentType == mediaPDF || strings.HasSuffix(strings.ToLower(name), ".pdf"):
		plan.Disposition = Disposition("inline", name)
		plan.MediaType = mediaPDF
	case strings.HasPrefix(contentType, "image/"):
		plan.Disposition = Disposition("inline", name)
	case contentType == mediaTextPlain:
		// 浏览器直接显示
	default:
		plan.Disposition = Disposition("attachment", name)
	}
	return plan, nil
}

// IsWordDocument 按 MIME 类型或扩展名判断 Word 文档
func IsWordDocument(contentType, name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(contentType, "application/vnd.openxmlformats-officedocument.wordprocessingml") ||
		contentType == "application/msword" ||
		strings.HasPrefix(contentType, "application/vnd.ms-word") ||
		strings.HasSuffix(lower, ".docx") ||
		strings.HasSuffix(lower, ".doc")
}

// IsDocx OOXML 格式，其余 Word 文档按旧版 .doc 处理
func IsDocx(contentType, name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".docx") ||
		strings.HasPrefix(contentType, "application/vnd.openxmlformats-officedocument.wordprocessingml")
}

// Disposition 生成带 RFC 5987 编码文件名的 Content-Disposition
func Disposition(kind, name string) string {
	return kind + "; filename*=UTF-8''" + QuoteFilename(name)
}

// QuoteFilename 保留字母数字与 _.-~/，其余字节百分号编码
func QuoteFilename(name string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_' || c == '.' || c == '-' || c == '~' || c == '/':
		return true
	}
	return false
}
