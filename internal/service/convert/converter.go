// Package convert 按需把 Word 文档转换为 PDF
// 转换结果写在源文件旁（扩展名改为 .pdf），源文件更新后重新生成
package convert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashwinyue/next-files/internal/config"
)

const defaultTimeout = 60 * time.Second

// Status 转换器可用状态
type Status struct {
	OfficeAvailable bool     `json:"office_available"`
	Docx            []string `json:"docx"`
	Doc             []string `json:"doc"`
	Timeout         string   `json:"timeout"`
}

// Converter Word 转 PDF 转换器
// 同一源文件的并发转换合并为一次
type Converter struct {
	docx    []Strategy
	doc     []Strategy
	timeout time.Duration
	office  bool
	group   singleflight.Group
}

// New 按配置创建转换器
func New(cfg *config.ConverterConfig) *Converter {
	var docx []Strategy
	office := lookupOffice(cfg.OfficeEnabled, cfg.SofficePath)
	if office != "" {
		docx = append(docx, OfficeStrategy(office, cfg.TempDir))
	} else if cfg.OfficeEnabled {
		log.Printf("Warning: soffice not found (%s), office conversion disabled", cfg.SofficePath)
	}
	docx = append(docx, RichTextStrategy(ExtractDocx), PlainTextStrategy(ExtractDocx))

	c := NewWithStrategies(docx, []Strategy{LegacyTextStrategy(ExtractDocx)}, cfg.Timeout())
	c.office = office != ""
	return c
}

// NewWithStrategies 使用指定策略链创建转换器
func NewWithStrategies(docx, doc []Strategy, timeout time.Duration) *Converter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Converter{docx: docx, doc: doc, timeout: timeout}
}

// DerivedPath 派生 PDF 路径
func DerivedPath(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".pdf"
}

// EnsurePDF 返回最新的派生 PDF 路径，必要时执行转换
func (c *Converter) EnsurePDF(ctx context.Context, sourcePath string, isDocx bool) (string, error) {
	target := DerivedPath(sourcePath)
	if target == sourcePath {
		return "", fmt.Errorf("source %s is already a pdf", sourcePath)
	}

	fresh, err := isFresh(sourcePath, target)
	if err != nil {
		return "", err
	}
	if fresh {
		return target, nil
	}

	_, err, _ = c.group.Do(sourcePath, func() (interface{}, error) {
		// 等待期间其他请求可能已完成转换
		if ok, _ := isFresh(sourcePath, target); ok {
			return nil, nil
		}
		// 客户端断开不取消转换，只受超时约束
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return nil, c.convert(cctx, sourcePath, target, isDocx)
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

func (c *Converter) convert(ctx context.Context, sourcePath, target string, isDocx bool) error {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	chain := c.doc
	if isDocx {
		chain = c.docx
	}
	name := filepath.Base(sourcePath)
	convErr := &ConversionError{Source: name}

	for _, s := range chain {
		start := time.Now()
		out, err := runStrategy(ctx, s, src, name)
		if err == nil && len(out) == 0 {
			err = errEmptyOutput
		}
		if err != nil {
			log.Printf("Convert %s with %s failed: %v", name, s.Name, err)
			convErr.Attempts = append(convErr.Attempts, Attempt{Strategy: s.Name, Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err := writeAtomic(target, out); err != nil {
			return fmt.Errorf("failed to write pdf: %w", err)
		}
		log.Printf("Converted %s to pdf with %s in %v", name, s.Name, time.Since(start))
		return nil
	}

	if len(convErr.Attempts) == 0 {
		convErr.Attempts = append(convErr.Attempts, Attempt{Strategy: "none", Err: errors.New("no strategy configured")})
	}
	return convErr
}

// runStrategy 超时后立即返回，不等待策略结束
func runStrategy(ctx context.Context, s Strategy, src []byte, name string) ([]byte, error) {
	type result struct {
		out []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("strategy panic: %v", r)}
			}
		}()
		out, err := s.Convert(ctx, src, name)
		ch <- result{out: out, err: err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evict 删除派生 PDF，不存在时忽略
func (c *Converter) Evict(sourcePath string) error {
	target := DerivedPath(sourcePath)
	if target == sourcePath {
		return nil
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Status 当前可用的策略
func (c *Converter) Status() Status {
	return Status{
		OfficeAvailable: c.office,
		Docx:            strategyNames(c.docx),
		Doc:             strategyNames(c.doc),
		Timeout:         c.timeout.String(),
	}
}

func strategyNames(chain []Strategy) []string {
	names := make([]string, 0, len(chain))
	for _, s := range chain {
		names = append(names, s.Name)
	}
	return names
}

// isFresh 派生文件存在且不早于源文件
func isFresh(sourcePath, target string) (bool, error) {
	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return false, fmt.Errorf("failed to stat source: %w", err)
	}
	dstInfo, err := os.Stat(target)
	if err != nil {
		return false, nil
	}
	return !dstInfo.ModTime().Before(srcInfo.ModTime()), nil
}

// writeAtomic 先写临时文件再重命名，读者不会看到半个文件
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".convert-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
