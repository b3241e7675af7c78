package convert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Strategy 一种 Word 到 PDF 的转换方式
type Strategy struct {
	Name    string
	Convert func(ctx context.Context, src []byte, filename string) ([]byte, error)
}

// Attempt 单次转换尝试的结果
type Attempt struct {
	Strategy string
	Err      error
}

// ConversionError 所有策略都失败
type ConversionError struct {
	Source   string
	Attempts []Attempt
}

func (e *ConversionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("failed to convert %s to pdf (%s)", e.Source, strings.Join(parts, "; "))
}

// Unwrap 支持 errors.Is 匹配任一次尝试的错误
func (e *ConversionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

var errEmptyOutput = errors.New("strategy produced no output")

// RichTextStrategy docx -> Markdown -> 带格式的 PDF
func RichTextStrategy(extract ExtractFunc) Strategy {
	return Strategy{
		Name: "richtext",
		Convert: func(ctx context.Context, src []byte, filename string) ([]byte, error) {
			md, err := extract(ctx, src)
			if err != nil {
				return nil, err
			}
			return RenderMarkdown(md)
		},
	}
}

// PlainTextStrategy docx -> 纯文本 -> 固定宽度 PDF
// extract 失败时直接读取文档中的文本 run
func PlainTextStrategy(extract ExtractFunc) Strategy {
	return Strategy{
		Name: "plaintext",
		Convert: func(ctx context.Context, src []byte, filename string) ([]byte, error) {
			md, err := extract(ctx, src)
			if err == nil {
				return RenderText(PlainText(md))
			}
			text, rerr := DocxText(src)
			if rerr != nil {
				return nil, errors.Join(err, rerr)
			}
			log.Printf("Extract %s failed, using raw text runs: %v", filename, err)
			return RenderText(text)
		},
	}
}

// LegacyTextStrategy .doc 文本抽取，解析失败时按 UTF-8 读取原始字节
func LegacyTextStrategy(extract ExtractFunc) Strategy {
	return Strategy{
		Name: "legacy-text",
		Convert: func(ctx context.Context, src []byte, filename string) ([]byte, error) {
			text := DecodeLegacy(src)
			if md, err := extract(ctx, src); err == nil {
				text = PlainText(md)
			}
			return RenderText(text)
		},
	}
}
