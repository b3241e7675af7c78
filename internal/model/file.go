package model

import (
	"time"
)

// 文件元数据键
const (
	MetaName           = "name"
	MetaContentType    = "content_type"
	MetaSize           = "size"
	MetaData           = "data"
	MetaCollectionName = "collection_name"

	DataContent = "content"
)

// File 用户文件记录
type File struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"index;size:36;not null"`
	Hash      string    `json:"hash,omitempty" gorm:"size:64"`
	Filename  string    `json:"filename" gorm:"size:255;index"`
	Path      string    `json:"path,omitempty" gorm:"size:1024"` // 为空表示内容内联在 Data 中
	Data      JSON      `json:"data,omitempty" gorm:"type:jsonb"`
	Meta      JSON      `json:"meta,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (File) TableName() string {
	return "files"
}

// DisplayName 展示用文件名，优先取 meta.name
func (f *File) DisplayName() string {
	if name := f.Meta.String(MetaName); name != "" {
		return name
	}
	return f.Filename
}

// ContentType 存储时记录的 MIME 类型
func (f *File) ContentType() string {
	return f.Meta.String(MetaContentType)
}

// CollectionName 文件所属知识库 ID
func (f *File) CollectionName() string {
	return f.Meta.String(MetaCollectionName)
}

// TextContent 处理后抽取的文本内容
func (f *File) TextContent() string {
	return f.Data.String(DataContent)
}

// StripContent 去掉 data.content，用于列表接口
func (f *File) StripContent() {
	if f.Data == nil {
		return
	}
	data := f.Data.Clone()
	delete(data, DataContent)
	f.Data = data
}

// FileForm 新建文件记录的表单
type FileForm struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Data     JSON   `json:"data,omitempty"`
	Meta     JSON   `json:"meta,omitempty"`
}

// FileResponse 接口返回的文件信息，处理失败时携带 error
type FileResponse struct {
	File
	Error string `json:"error,omitempty"`
}
