package router

import (
	"github.com/ashwinyue/next-files/internal/handler"
	"github.com/ashwinyue/next-files/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, auth middleware.TokenValidator, corsOrigins []string) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware(corsOrigins))

	// 健康检查
	r.GET("/health", h.System.Health)

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequireAuth(auth))
	{
		files := v1.Group("/files")
		{
			files.POST("", h.File.UploadFile)
			files.GET("", h.File.ListFiles)
			files.GET("/search", h.File.SearchFiles)
			files.DELETE("/all", middleware.RequireAdmin(), h.File.DeleteAllFiles)
			files.GET("/:id", h.File.GetFile)
			files.GET("/:id/data/content", h.File.GetFileDataContent)
			files.GET("/:id/content", h.File.GetFileContent)
			files.GET("/:id/content/:file_name", h.File.GetFileContentByName)
			files.DELETE("/:id", h.File.DeleteFile)
		}
	}

	return r
}
