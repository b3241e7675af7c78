package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractFunc 从 Word 文档中抽取 Markdown 正文
type ExtractFunc func(ctx context.Context, src []byte) (string, error)

// ErrNoDocumentPart docx 包中没有 word/document.xml
var ErrNoDocumentPart = errors.New("docx has no word/document.xml")

// ExtractDocx 使用 eino docx 解析器抽取正文
// 解析器对缺少 styles.xml 的文档会 panic，这里转换为错误
func ExtractDocx(ctx context.Context, src []byte) (md string, err error) {
	defer func() {
		if r := recover(); r != nil {
			md, err = "", fmt.Errorf("docx parser panic: %v", r)
		}
	}()

	parser, err := docx.NewDocxParser(ctx, &docx.Config{
		ToSections:      false,
		IncludeComments: false,
		IncludeHeaders:  true,
		IncludeFooters:  false,
		IncludeTables:   true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create docx parser: %w", err)
	}

	docs, err := parser.Parse(ctx, bytes.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("docx parser failed: %w", err)
	}

	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if s := strings.TrimSpace(d.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// DocxText 直接读取 word/document.xml 中的文本 run，每个段落一行
func DocxText(src []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", ErrNoDocumentPart
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document part: %w", err)
	}
	defer rc.Close()

	var b strings.Builder
	inText := false
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read document part: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// PlainText 去掉 Markdown 标记，保留段落和换行
func PlainText(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Text:
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			case *ast.String:
				b.Write(node.Value)
			case *ast.AutoLink:
				b.Write(node.URL(src))
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				lines := c.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteByte('\n')
			case *ast.ListItem:
				b.WriteString("- ")
				walk(node)
			case *ast.ThematicBreak:
				b.WriteString("\n")
			case *ast.RawHTML, *ast.HTMLBlock:
			default:
				walk(node)
				if node.Type() == ast.TypeBlock && !endsWithNewline(&b) {
					b.WriteByte('\n')
				}
				if _, ok := node.(*ast.Paragraph); ok {
					b.WriteByte('\n')
				}
				if _, ok := node.(*ast.Heading); ok {
					b.WriteByte('\n')
				}
			}
		}
	}
	walk(doc)

	return strings.TrimRight(b.String(), "\n")
}

func endsWithNewline(b *strings.Builder) bool {
	s := b.String()
	return len(s) > 0 && s[len(s)-1] == '\n'
}

// DecodeLegacy 按 UTF-8 解码原始字节，丢弃非法序列
func DecodeLegacy(src []byte) string {
	return strings.ToValidUTF8(string(src), "")
}
