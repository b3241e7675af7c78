// Package event 发布文件生命周期事件
package event

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	// EventFileUploaded 文件上传完成
	EventFileUploaded EventType = "file.uploaded"
	// EventFileProcessed 文件处理完成
	EventFileProcessed EventType = "file.processed"
	// EventFileDeleted 文件删除
	EventFileDeleted EventType = "file.deleted"
	// EventFilesPurged 全部文件被清空
	EventFilesPurged EventType = "files.purged"
)

// Event 文件事件
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	FileID    string                 `json:"file_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// New 创建事件
func New(eventType EventType, fileID, userID string, metadata map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		FileID:    fileID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
}

// PublisherFunc 函数类型的发布器
type PublisherFunc func(ctx context.Context, evt *Event) error

// Publish 实现 Publisher 接口
func (f PublisherFunc) Publish(ctx context.Context, evt *Event) error {
	return f(ctx, evt)
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

// Publish 实现 Publisher 接口
func (NopPublisher) Publish(ctx context.Context, evt *Event) error {
	return nil
}

// Emit 发布事件，失败只记录日志
func Emit(ctx context.Context, p Publisher, evt *Event) {
	if p == nil || evt == nil {
		return
	}
	if err := p.Publish(ctx, evt); err != nil {
		log.Printf("Warning: failed to publish %s event for %s: %v", evt.Type, evt.FileID, err)
	}
}
