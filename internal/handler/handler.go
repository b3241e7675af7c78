package handler

import (
	"github.com/ashwinyue/next-files/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	File   *FileHandler
	System *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services, db Pinger) *Handlers {
	return &Handlers{
		File:   NewFileHandler(svc.File, svc.Config.Server.MaxUploadSize),
		System: NewSystemHandler(db, svc.Converter),
	}
}
