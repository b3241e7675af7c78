package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ashwinyue/next-files/internal/middleware"
	"github.com/ashwinyue/next-files/internal/service/delivery"
	filesvc "github.com/ashwinyue/next-files/internal/service/file"
	"github.com/gin-gonic/gin"
)

const msgNotFound = "We could not find what you're looking for :/"

// FileHandler 文件处理器
type FileHandler struct {
	fileSvc       *filesvc.Service
	maxUploadSize int64
}

// NewFileHandler 创建文件处理器，maxUploadSize 为 0 时不限制
func NewFileHandler(fileSvc *filesvc.Service, maxUploadSize int64) *FileHandler {
	return &FileHandler{
		fileSvc:       fileSvc,
		maxUploadSize: maxUploadSize,
	}
}

// UploadFile 上传文件
// POST /api/v1/files?process=true
func (h *FileHandler) UploadFile(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required: "+err.Error())
		return
	}

	var metadata map[string]interface{}
	if raw := c.PostForm("file_metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			BadRequest(c, "invalid file_metadata: "+err.Error())
			return
		}
	}

	f, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	defer f.Close()

	resp, err := h.fileSvc.Upload(c.Request.Context(), user, &filesvc.UploadRequest{
		Reader:      f,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Metadata:    metadata,
		Process:     queryBool(c, "process", true),
	})
	if err != nil {
		fileError(c, err)
		return
	}

	Success(c, resp)
}

// ListFiles 列出文件
// GET /api/v1/files?content=true
func (h *FileHandler) ListFiles(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	files, err := h.fileSvc.List(c.Request.Context(), user, queryBool(c, "content", true))
	if err != nil {
		fileError(c, err)
		return
	}
	Success(c, files)
}

// SearchFiles 按文件名通配搜索
// GET /api/v1/files/search?filename=*.docx&content=true
func (h *FileHandler) SearchFiles(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	pattern := c.Query("filename")
	if pattern == "" {
		BadRequest(c, "filename is required")
		return
	}

	files, err := h.fileSvc.Search(c.Request.Context(), user, pattern, queryBool(c, "content", true))
	if err != nil {
		fileError(c, err)
		return
	}
	Success(c, files)
}

// DeleteAllFiles 删除全部文件（管理员）
// DELETE /api/v1/files/all
func (h *FileHandler) DeleteAllFiles(c *gin.Context) {
	user, _ := middleware.GetCurrentUser(c)
	if err := h.fileSvc.DeleteAll(c.Request.Context(), user); err != nil {
		fileError(c, err)
		return
	}
	Success(c, gin.H{"message": "All files deleted successfully"})
}

// GetFile 获取文件信息
// GET /api/v1/files/:id
func (h *FileHandler) GetFile(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	file, err := h.fileSvc.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		fileError(c, err)
		return
	}
	Success(c, file)
}

// GetFileDataContent 获取文件抽取的文本
// GET /api/v1/files/:id/data/content
func (h *FileHandler) GetFileDataContent(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	content, err := h.fileSvc.DataContent(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		fileError(c, err)
		return
	}
	Success(c, gin.H{"content": content})
}

// GetFileContent 返回文件内容，Word 文档在线查看时转为 PDF
// GET /api/v1/files/:id/content?attachment=false
func (h *FileHandler) GetFileContent(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	plan, err := h.fileSvc.Content(c.Request.Context(), user, c.Param("id"), queryBool(c, "attachment", false))
	if err != nil {
		fileError(c, err)
		return
	}
	servePlan(c, plan)
}

// GetFileContentByName 以附件形式下载文件
// GET /api/v1/files/:id/content/:file_name
func (h *FileHandler) GetFileContentByName(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	named, err := h.fileSvc.NamedContent(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		fileError(c, err)
		return
	}

	if named.Plan != nil {
		servePlan(c, named.Plan)
		return
	}
	c.Header("Content-Disposition", delivery.Disposition("attachment", named.Name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(named.Text))
}

// DeleteFile 删除文件
// DELETE /api/v1/files/:id
func (h *FileHandler) DeleteFile(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		Unauthorized(c, "unauthorized")
		return
	}

	if err := h.fileSvc.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		fileError(c, err)
		return
	}
	Success(c, gin.H{"message": "File deleted successfully"})
}

// servePlan 按返回方案写出文件
func servePlan(c *gin.Context, plan *delivery.Plan) {
	if plan.Disposition != "" {
		c.Header("Content-Disposition", plan.Disposition)
	}
	c.Header("Content-Type", plan.MediaType)
	c.File(plan.Path)
}

// fileError 将文件服务错误映射为 HTTP 响应
// 无权限与不存在返回相同的 404
func fileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, filesvc.ErrFileNotFound),
		errors.Is(err, delivery.ErrContentNotFound):
		NotFound(c, msgNotFound)
	case errors.Is(err, filesvc.ErrNoMatch):
		NotFound(c, "No files found matching the pattern.")
	case errors.Is(err, filesvc.ErrInvalidPattern),
		errors.Is(err, filesvc.ErrUploadFailed),
		errors.Is(err, filesvc.ErrDeleteFailed),
		errors.Is(err, filesvc.ErrStorageDelete):
		BadRequest(c, err.Error())
	default:
		Error(c, err)
	}
}

// queryBool 解析布尔查询参数，缺省或非法时取默认值
func queryBool(c *gin.Context, key string, def bool) bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
