// Package callback 记录文件处理流程中 eino 组件的执行情况
package callback

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
)

type startKey struct{}

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录解析、向量化和索引的耗时
type Logger struct {
	EnableDebug bool // 为 true 时记录每次成功调用
}

// NewLogger 创建日志回调处理器
func NewLogger(enableDebug bool) *Logger {
	return &Logger{EnableDebug: enableDebug}
}

// OnStart 记录开始时间
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.EnableDebug && info != nil {
		log.Printf("[Eino] %s %s start: %s", info.Component, info.Name, summarizeInput(info, input))
	}
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEnd 记录结果和耗时
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if l.EnableDebug && info != nil {
		log.Printf("[Eino] %s %s done in %v: %s", info.Component, info.Name, elapsed(ctx), summarizeOutput(info, output))
	}
	return ctx
}

// OnError 出错总是记录
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	if info == nil {
		log.Printf("[Eino] Error: %v", err)
		return ctx
	}
	log.Printf("[Eino] %s %s failed after %v: %v", info.Component, info.Name, elapsed(ctx), err)
	return ctx
}

// OnStartWithStreamInput 流式输入，处理流程中不会出现，直接关闭
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

// OnEndWithStreamOutput 流式输出，直接关闭
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

func elapsed(ctx context.Context) time.Duration {
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		return time.Since(start).Round(time.Millisecond)
	}
	return 0
}

// summarizeInput 只记录数量，不输出文档内容
func summarizeInput(info *callbacks.RunInfo, input callbacks.CallbackInput) string {
	switch info.Component {
	case components.ComponentOfIndexer:
		if in := indexer.ConvCallbackInput(input); in != nil {
			return fmt.Sprintf("%d docs", len(in.Docs))
		}
	case components.ComponentOfEmbedding:
		if in := embedding.ConvCallbackInput(input); in != nil {
			return fmt.Sprintf("%d texts", len(in.Texts))
		}
	}
	return "-"
}

func summarizeOutput(info *callbacks.RunInfo, output callbacks.CallbackOutput) string {
	switch info.Component {
	case components.ComponentOfIndexer:
		if out := indexer.ConvCallbackOutput(output); out != nil {
			return fmt.Sprintf("%d ids", len(out.IDs))
		}
	case components.ComponentOfEmbedding:
		if out := embedding.ConvCallbackOutput(output); out != nil {
			return fmt.Sprintf("%d vectors", len(out.Embeddings))
		}
	}
	return "-"
}

// SetupGlobalCallbacks 注册全局回调
func SetupGlobalCallbacks(enableDebug bool) {
	callbacks.AppendGlobalHandlers(NewLogger(enableDebug))
	log.Printf("[Eino] Global callbacks registered (debug=%v)", enableDebug)
}
