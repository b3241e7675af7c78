package model

import "time"

// 知识库访问类型
const (
	AccessRead  = "read"
	AccessWrite = "write"
)

// KnowledgeBase 知识库（仅保留访问判定需要的字段）
type KnowledgeBase struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"index;size:36" json:"user_id"`
	Name        string    `gorm:"size:100" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// KnowledgeMember 知识库成员授权
// write 权限同时隐含 read
type KnowledgeMember struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	KnowledgeBaseID string    `gorm:"uniqueIndex:idx_kb_member;size:36;not null" json:"knowledge_base_id"`
	UserID          string    `gorm:"uniqueIndex:idx_kb_member;index;size:36;not null" json:"user_id"`
	Permission      string    `gorm:"size:10;not null" json:"permission"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}

func (KnowledgeMember) TableName() string {
	return "knowledge_members"
}
