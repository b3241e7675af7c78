package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/ashwinyue/next-files/internal/config"
	"github.com/ashwinyue/next-files/internal/handler"
	"github.com/ashwinyue/next-files/internal/model"
	"github.com/ashwinyue/next-files/internal/service/access"
	"github.com/ashwinyue/next-files/internal/service/convert"
	"github.com/ashwinyue/next-files/internal/service/delivery"
	filesvc "github.com/ashwinyue/next-files/internal/service/file"
	"github.com/ashwinyue/next-files/internal/testutil"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type validatorFunc func(ctx context.Context, token string) (*model.User, error)

func (f validatorFunc) ValidateToken(ctx context.Context, token string) (*model.User, error) {
	return f(ctx, token)
}

type env struct {
	engine *gin.Engine
	files  *testutil.MemoryFileRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	converter := convert.NewWithStrategies([]convert.Strategy{{
		Name: "fake",
		Convert: func(ctx context.Context, src []byte, filename string) ([]byte, error) {
			return []byte("%PDF-fake"), nil
		},
	}}, nil, time.Second)
	return newEnvWithConverter(t, converter)
}

func newEnvWithConverter(t *testing.T, converter *convert.Converter) *env {
	t.Helper()
	storage, err := filesvc.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	files := testutil.NewMemoryFileRepository()
	memberships := testutil.NewMemoryKnowledgeRepository()

	svc := filesvc.NewService(filesvc.Options{
		Files:      files,
		Storage:    storage,
		Access:     access.NewEvaluator(files, memberships),
		Negotiator: delivery.NewNegotiator(converter),
		Evicter:    converter,
	})

	users := map[string]*model.User{
		"alice": testutil.NewUser("alice"),
		"bob":   testutil.NewUser("bob"),
		"root":  testutil.NewAdmin("root"),
	}
	validator := validatorFunc(func(ctx context.Context, token string) (*model.User, error) {
		if u, ok := users[token]; ok {
			return u, nil
		}
		return nil, errors.New("invalid token")
	})

	h := &handler.Handlers{
		File:   handler.NewFileHandler(svc, 1<<20),
		System: handler.NewSystemHandler(nil, converter),
	}
	return &env{engine: SetupRouter(h, validator, nil), files: files}
}

func (e *env) do(method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, name, contentType, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte(content))
	if metadata != "" {
		_ = mw.WriteField("file_metadata", metadata)
	}
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func (e *env) upload(t *testing.T, token, name, contentType, content string) string {
	t.Helper()
	body, ct := multipartBody(t, name, contentType, content, "")
	w := e.do(http.MethodPost, "/api/v1/files?process=false", token, body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data model.FileResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Data.ID
}

// ========== 健康检查与认证 ==========

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"docx":["fake"]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestFilesRequireAuth(t *testing.T) {
	e := newEnv(t)
	if w := e.do(http.MethodGet, "/api/v1/files", "", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/api/v1/files", "stranger", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

// ========== 上传与查询 ==========

func TestUploadAndGet(t *testing.T) {
	e := newEnv(t)
	id := e.upload(t, "alice", "notes.txt", "text/plain", "hello")

	w := e.do(http.MethodGet, "/api/v1/files/"+id, "alice", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"filename":"notes.txt"`) {
		t.Errorf("owner get = %d %s", w.Code, w.Body.String())
	}

	// 无权限与不存在的响应一致
	denied := e.do(http.MethodGet, "/api/v1/files/"+id, "bob", nil, "")
	missing := e.do(http.MethodGet, "/api/v1/files/missing", "bob", nil, "")
	if denied.Code != http.StatusNotFound || denied.Body.String() != missing.Body.String() {
		t.Errorf("denied = %d %s, missing = %d %s", denied.Code, denied.Body.String(), missing.Code, missing.Body.String())
	}

	if w := e.do(http.MethodGet, "/api/v1/files/"+id, "root", nil, ""); w.Code != http.StatusOK {
		t.Errorf("admin get = %d", w.Code)
	}
}

func TestUpload_InvalidMetadata(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartBody(t, "a.txt", "text/plain", "x", "{not json")
	if w := e.do(http.MethodPost, "/api/v1/files", "alice", body, ct); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	e := newEnv(t)
	if w := e.do(http.MethodPost, "/api/v1/files", "alice", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestListAndSearch(t *testing.T) {
	e := newEnv(t)
	e.upload(t, "alice", "Report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "PK")
	e.upload(t, "alice", "notes.txt", "text/plain", "hello")
	e.upload(t, "bob", "bob.docx", "application/msword", "x")

	w := e.do(http.MethodGet, "/api/v1/files?content=false", "alice", nil, "")
	var list struct {
		Data []model.File `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Data) != 2 {
		t.Errorf("alice lists %d files", len(list.Data))
	}

	w = e.do(http.MethodGet, "/api/v1/files/search?filename=*.DOCX", "alice", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Report.docx") || strings.Contains(w.Body.String(), "bob.docx") {
		t.Errorf("search = %d %s", w.Code, w.Body.String())
	}

	if w := e.do(http.MethodGet, "/api/v1/files/search?filename=*.pdf", "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("empty search status = %d", w.Code)
	}
	// 未闭合的方括号按字面匹配
	if w := e.do(http.MethodGet, "/api/v1/files/search?filename=[", "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("unbalanced bracket status = %d", w.Code)
	}
}

// ========== 内容返回 ==========

func TestGetFileContent(t *testing.T) {
	e := newEnv(t)
	docx := e.upload(t, "alice", "report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "PK-original")
	txt := e.upload(t, "alice", "notes.txt", "text/plain", "hello")

	tests := []struct {
		name            string
		path            string
		wantType        string
		wantDisposition string
		wantBody        string
	}{
		{
			name:            "Word 在线查看转为 PDF",
			path:            "/api/v1/files/" + docx + "/content",
			wantType:        "application/pdf",
			wantDisposition: "inline; filename*=UTF-8''report.docx",
			wantBody:        "%PDF-fake",
		},
		{
			name:            "Word 下载返回原文件",
			path:            "/api/v1/files/" + docx + "/content?attachment=true",
			wantType:        "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			wantDisposition: "attachment; filename*=UTF-8''report.docx",
			wantBody:        "PK-original",
		},
		{
			name:            "纯文本不设置 disposition",
			path:            "/api/v1/files/" + txt + "/content",
			wantType:        "text/plain",
			wantDisposition: "",
			wantBody:        "hello",
		},
		{
			name:            "按文件名下载",
			path:            "/api/v1/files/" + txt + "/content/notes.txt",
			wantType:        "text/plain",
			wantDisposition: "attachment; filename*=UTF-8''notes.txt",
			wantBody:        "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodGet, tt.path, "alice", nil, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, tt.wantType) {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if got := w.Header().Get("Content-Disposition"); got != tt.wantDisposition {
				t.Errorf("Content-Disposition = %q, want %q", got, tt.wantDisposition)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}

	if w := e.do(http.MethodGet, "/api/v1/files/"+docx+"/content", "bob", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("denied content status = %d", w.Code)
	}
}

func TestGetFileContent_RealConverter(t *testing.T) {
	e := newEnvWithConverter(t, convert.New(&config.ConverterConfig{TimeoutSec: 30}))
	body := string(testutil.NewDocx(t, false, "Minutes", "Approved unanimously"))
	id := e.upload(t, "alice", "minutes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", body)

	w := e.do(http.MethodGet, "/api/v1/files/"+id+"/content", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/pdf") {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF-") {
		t.Error("body is not a pdf")
	}
}

func TestGetFileContentByName_Inline(t *testing.T) {
	e := newEnv(t)
	_, _ = e.files.Insert(context.Background(), "alice", &model.FileForm{
		ID:       "inline-1",
		Filename: "chat.txt",
		Data:     model.JSON{model.DataContent: "inline body"},
		Meta:     model.JSON{model.MetaName: "chat.txt"},
	})

	w := e.do(http.MethodGet, "/api/v1/files/inline-1/content/chat.txt", "alice", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "inline body" {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename*=UTF-8''chat.txt" {
		t.Errorf("Content-Disposition = %q", got)
	}

	w = e.do(http.MethodGet, "/api/v1/files/inline-1/data/content", "alice", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"content":"inline body"`) {
		t.Errorf("data content = %d %s", w.Code, w.Body.String())
	}

	// 没有存储内容时 /content 返回 404
	if w := e.do(http.MethodGet, "/api/v1/files/inline-1/content", "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("content status = %d", w.Code)
	}
}

// ========== 删除 ==========

func TestDeleteFile(t *testing.T) {
	e := newEnv(t)
	id := e.upload(t, "alice", "notes.txt", "text/plain", "hello")

	if w := e.do(http.MethodDelete, "/api/v1/files/"+id, "bob", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("non-owner delete status = %d", w.Code)
	}
	if w := e.do(http.MethodDelete, "/api/v1/files/"+id, "alice", nil, ""); w.Code != http.StatusOK {
		t.Errorf("owner delete status = %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/api/v1/files/"+id, "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", w.Code)
	}
}

func TestDeleteAllFiles(t *testing.T) {
	e := newEnv(t)
	e.upload(t, "alice", "a.txt", "text/plain", "a")
	e.upload(t, "bob", "b.txt", "text/plain", "b")

	if w := e.do(http.MethodDelete, "/api/v1/files/all", "alice", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("non-admin status = %d", w.Code)
	}
	if e.files.Len() != 2 {
		t.Fatal("non-admin must not delete files")
	}
	if w := e.do(http.MethodDelete, "/api/v1/files/all", "root", nil, ""); w.Code != http.StatusOK {
		t.Errorf("admin status = %d", w.Code)
	}
	if e.files.Len() != 0 {
		t.Error("records should be gone")
	}
}
