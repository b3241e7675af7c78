package file

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ashwinyue/next-files/internal/model"
	"github.com/ashwinyue/next-files/internal/service/access"
	"github.com/ashwinyue/next-files/internal/service/audio"
	"github.com/ashwinyue/next-files/internal/service/delivery"
	"github.com/ashwinyue/next-files/internal/service/event"
	"github.com/ashwinyue/next-files/internal/service/retrieval"
	"github.com/ashwinyue/next-files/internal/testutil"
)

// ========== 测试替身 ==========

type stubProcessor struct {
	process func(ctx context.Context, fileID, content string) error
	calls   []string
}

func (p *stubProcessor) Process(ctx context.Context, fileID, content string) error {
	p.calls = append(p.calls, content)
	if p.process != nil {
		return p.process(ctx, fileID, content)
	}
	return nil
}

type stubTranscriber struct {
	text string
	err  error
	path string
}

func (s *stubTranscriber) Transcribe(ctx context.Context, localPath string) (*audio.Transcription, error) {
	s.path = localPath
	if s.err != nil {
		return nil, s.err
	}
	return &audio.Transcription{Text: s.text}, nil
}

type stubEvicter struct{ evicted []string }

func (e *stubEvicter) Evict(sourcePath string) error {
	e.evicted = append(e.evicted, sourcePath)
	return nil
}

type stubUnindexer struct{ forgotten []string }

func (u *stubUnindexer) Forget(ctx context.Context, fileID string) error {
	u.forgotten = append(u.forgotten, fileID)
	return nil
}

type stubConverter struct{ pdfPath string }

func (c *stubConverter) EnsurePDF(ctx context.Context, sourcePath string, isDocx bool) (string, error) {
	return c.pdfPath, nil
}

// failingStorage 覆盖删除行为
type failingStorage struct {
	Storage
	deleteErr    error
	deleteAllErr error
}

func (s *failingStorage) Delete(ctx context.Context, path string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Storage.Delete(ctx, path)
}

func (s *failingStorage) DeleteAll(ctx context.Context) error {
	if s.deleteAllErr != nil {
		return s.deleteAllErr
	}
	return s.Storage.DeleteAll(ctx)
}

type recorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recorder) Publish(ctx context.Context, evt *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) types() []event.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc         *Service
	files       *testutil.MemoryFileRepository
	memberships *testutil.MemoryKnowledgeRepository
	storage     *failingStorage
	processor   *stubProcessor
	transcriber *stubTranscriber
	evicter     *stubEvicter
	unindexer   *stubUnindexer
	events      *recorder
}

func newFixture(t *testing.T, converter delivery.PDFConverter) *fixture {
	t.Helper()
	local, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		files:       testutil.NewMemoryFileRepository(),
		memberships: testutil.NewMemoryKnowledgeRepository(),
		storage:     &failingStorage{Storage: local},
		processor:   &stubProcessor{},
		transcriber: &stubTranscriber{text: "transcribed"},
		evicter:     &stubEvicter{},
		unindexer:   &stubUnindexer{},
		events:      &recorder{},
	}
	var negotiator *delivery.Negotiator
	if converter != nil {
		negotiator = delivery.NewNegotiator(converter)
	}
	f.svc = NewService(Options{
		Files:       f.files,
		Storage:     f.storage,
		Access:      access.NewEvaluator(f.files, f.memberships),
		Negotiator:  negotiator,
		Processor:   f.processor,
		Transcriber: f.transcriber,
		Evicter:     f.evicter,
		Unindexer:   f.unindexer,
		Publisher:   f.events,
	})
	return f
}

func (f *fixture) upload(t *testing.T, user *model.User, name, contentType, body string) *model.FileResponse {
	t.Helper()
	resp, err := f.svc.Upload(context.Background(), user, &UploadRequest{
		Reader:      strings.NewReader(body),
		Filename:    name,
		ContentType: contentType,
	})
	if err != nil {
		t.Fatalf("Upload(%s) error = %v", name, err)
	}
	return resp
}

// ========== Upload 测试 ==========

func TestUpload_StoresRecordAndBlob(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")

	resp, err := f.svc.Upload(context.Background(), alice, &UploadRequest{
		Reader:      strings.NewReader("hello"),
		Filename:    `C:\Users\alice\notes.txt`,
		ContentType: "text/plain",
		Metadata:    map[string]interface{}{"source": "web"},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if resp.Filename != "notes.txt" {
		t.Errorf("Filename = %q", resp.Filename)
	}
	if !strings.HasSuffix(resp.Path, resp.ID+"_notes.txt") {
		t.Errorf("Path = %q", resp.Path)
	}
	if resp.UserID != "alice" || resp.DisplayName() != "notes.txt" || resp.ContentType() != "text/plain" {
		t.Errorf("unexpected record: %+v", resp.File)
	}
	data, _ := resp.Meta[model.MetaData].(map[string]interface{})
	if data["source"] != "web" {
		t.Errorf("meta.data = %v", resp.Meta[model.MetaData])
	}
	if f.files.Len() != 1 {
		t.Errorf("records = %d", f.files.Len())
	}
	if got := f.events.types(); len(got) < 1 || got[0] != event.EventFileUploaded {
		t.Errorf("events = %v", got)
	}
}

func TestUpload_DetectsContentType(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.upload(t, testutil.NewUser("alice"), "page.bin", "", "%PDF-1.4\n%...")
	if resp.ContentType() != "application/pdf" {
		t.Errorf("ContentType = %q", resp.ContentType())
	}
}

func TestUpload_EmptyFilename(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Upload(context.Background(), testutil.NewUser("alice"), &UploadRequest{
		Reader:   strings.NewReader("x"),
		Filename: "",
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("error = %v, want ErrUploadFailed", err)
	}
}

func TestUpload_ProcessingErrorIsReported(t *testing.T) {
	f := newFixture(t, nil)
	f.processor.process = func(ctx context.Context, fileID, content string) error {
		return errors.New("unsupported file type")
	}

	resp, err := f.svc.Upload(context.Background(), testutil.NewUser("alice"), &UploadRequest{
		Reader:   strings.NewReader("x"),
		Filename: "a.xyz",
		Process:  true,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if resp.Error != "unsupported file type" {
		t.Errorf("Error = %q", resp.Error)
	}
	if f.files.Len() != 1 {
		t.Error("record should be kept when processing fails")
	}
}

func TestUpload_ProcessesDocxWithRealExtractor(t *testing.T) {
	docxType := "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	tests := []struct {
		name        string
		body        []byte
		wantContent string
		wantError   bool
	}{
		{name: "docx without styles part", body: testutil.NewDocx(t, false, "Agenda", "Item one"), wantContent: "Agenda\nItem one"},
		{name: "docx with styles part", body: testutil.NewDocx(t, true, "Agenda"), wantContent: "Agenda"},
		{name: "corrupt docx", body: []byte("PK not really a zip"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.processor.process = retrieval.NewProcessor(f.files, f.storage, nil).Process

			resp, err := f.svc.Upload(context.Background(), testutil.NewUser("alice"), &UploadRequest{
				Reader:      bytes.NewReader(tt.body),
				Filename:    "agenda.docx",
				ContentType: docxType,
				Process:     true,
			})
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if tt.wantError {
				if resp.Error == "" {
					t.Error("processing failure should be reported in the error field")
				}
				if f.files.Len() != 1 {
					t.Error("record should be kept when processing fails")
				}
				return
			}
			if resp.Error != "" {
				t.Fatalf("Error = %q", resp.Error)
			}
			if !strings.Contains(resp.TextContent(), tt.wantContent) {
				t.Errorf("content = %q, want %q", resp.TextContent(), tt.wantContent)
			}
		})
	}
}

func TestUpload_ProcessRefreshesRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.processor.process = func(ctx context.Context, fileID, content string) error {
		file, err := f.files.GetByID(ctx, fileID)
		if err != nil {
			return err
		}
		file.Data = model.JSON{model.DataContent: "extracted"}
		return f.files.Update(ctx, file)
	}

	resp, err := f.svc.Upload(context.Background(), testutil.NewUser("alice"), &UploadRequest{
		Reader:      strings.NewReader("extracted"),
		Filename:    "a.txt",
		ContentType: "text/plain",
		Process:     true,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if resp.TextContent() != "extracted" || resp.Error != "" {
		t.Errorf("response = %+v", resp)
	}
	if f.processor.calls[0] != "" {
		t.Errorf("non-audio files are processed from the blob, got content %q", f.processor.calls[0])
	}
	got := f.events.types()
	if len(got) != 2 || got[1] != event.EventFileProcessed {
		t.Errorf("events = %v", got)
	}
}

func TestUpload_AudioIsTranscribedFirst(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := f.svc.Upload(context.Background(), testutil.NewUser("alice"), &UploadRequest{
		Reader:      strings.NewReader("ID3"),
		Filename:    "memo.mp3",
		ContentType: "audio/mpeg",
		Process:     true,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if f.transcriber.path != resp.Path {
		t.Errorf("transcribed %q, want %q", f.transcriber.path, resp.Path)
	}
	if len(f.processor.calls) != 1 || f.processor.calls[0] != "transcribed" {
		t.Errorf("processor calls = %v", f.processor.calls)
	}
}

func TestUpload_TranscriptionError(t *testing.T) {
	f := newFixture(t, nil)
	f.transcriber.err = errors.New("quota exceeded")

	resp := f.upload(t, testutil.NewUser("alice"), "memo.wav", "audio/wav", "RIFF")
	if resp.Error != "" {
		t.Fatal("process=false must skip transcription")
	}

	resp, err := f.svc.Upload(context.Background(), testutil.NewUser("alice"), &UploadRequest{
		Reader:      strings.NewReader("RIFF"),
		Filename:    "memo.wav",
		ContentType: "audio/wav",
		Process:     true,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if resp.Error != "quota exceeded" {
		t.Errorf("Error = %q", resp.Error)
	}
	if len(f.processor.calls) != 0 {
		t.Error("processor must not run after transcription failure")
	}
}

// ========== List / Search 测试 ==========

func TestList_VisibilityAndContent(t *testing.T) {
	f := newFixture(t, nil)
	alice, bob := testutil.NewUser("alice"), testutil.NewUser("bob")
	a := f.upload(t, alice, "a.txt", "text/plain", "a")
	f.upload(t, bob, "b.txt", "text/plain", "b")

	stored, _ := f.files.GetByID(context.Background(), a.ID)
	stored.Data = model.JSON{model.DataContent: "secret text", "status": "ok"}
	_ = f.files.Update(context.Background(), stored)

	own, err := f.svc.List(context.Background(), alice, true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(own) != 1 || own[0].TextContent() != "secret text" {
		t.Errorf("alice sees %d files", len(own))
	}

	stripped, _ := f.svc.List(context.Background(), alice, false)
	if stripped[0].TextContent() != "" || stripped[0].Data["status"] != "ok" {
		t.Errorf("content=false should drop only data.content: %v", stripped[0].Data)
	}

	all, _ := f.svc.List(context.Background(), testutil.NewAdmin("root"), true)
	if len(all) != 2 {
		t.Errorf("admin sees %d files, want 2", len(all))
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")
	f.upload(t, alice, "Report.DOCX", "", "x")
	f.upload(t, alice, "notes.txt", "text/plain", "y")
	f.upload(t, alice, "draft{1,2}.txt", "text/plain", "w")
	f.upload(t, testutil.NewUser("bob"), "bob-report.docx", "", "z")

	tests := []struct {
		name    string
		pattern string
		want    int
		wantErr error
	}{
		{"大小写不敏感", "*.docx", 1, nil},
		{"大写模式", "REPORT*", 1, nil},
		{"全部", "*", 3, nil},
		{"单字符", "notes.tx?", 1, nil},
		{"字符集合", "[nr]*", 2, nil},
		{"取反字符集合", "[!n]*.txt", 1, nil},
		{"花括号按字面匹配", "draft{1,2}.txt", 1, nil},
		{"花括号不是分支", "draft1.txt", 0, ErrNoMatch},
		{"无匹配", "*.pdf", 0, ErrNoMatch},
		{"未闭合的方括号按字面匹配", "[", 0, ErrNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Search(context.Background(), alice, tt.pattern, false)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("matched %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFnmatchPattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"*.docx", "*.docx"},
		{"a{b,c}", `a\{b,c\}`},
		{"[abc]*", "[abc]*"},
		{"[!a]?", "[!a]?"},
		{"[]a]", "[]a]"},
		{"[", `\[`},
		{"x]", `x\]`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		if got := fnmatchPattern(tt.in); got != tt.want {
			t.Errorf("fnmatchPattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ========== Get / Content 测试 ==========

func TestGet_DeniedLooksLikeNotFound(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, testutil.NewUser("alice"), "a.txt", "text/plain", "a")

	_, err := f.svc.Get(context.Background(), testutil.NewUser("mallory"), a.ID)
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("denied error = %v", err)
	}
	_, err = f.svc.Get(context.Background(), testutil.NewUser("alice"), "missing")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing error = %v", err)
	}
}

func TestGet_CollectionMember(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, testutil.NewUser("alice"), "a.txt", "text/plain", "a")
	stored, _ := f.files.GetByID(context.Background(), a.ID)
	stored.Meta[model.MetaCollectionName] = "kb-1"
	_ = f.files.Update(context.Background(), stored)
	f.memberships.Grant("carol", "kb-1", model.AccessRead)

	if _, err := f.svc.Get(context.Background(), testutil.NewUser("carol"), a.ID); err != nil {
		t.Errorf("member read error = %v", err)
	}
	if err := f.svc.Delete(context.Background(), testutil.NewUser("carol"), a.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("read-only member delete error = %v", err)
	}
}

func TestDataContent(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")
	a := f.upload(t, alice, "a.txt", "text/plain", "a")
	stored, _ := f.files.GetByID(context.Background(), a.ID)
	stored.Data = model.JSON{model.DataContent: "hello"}
	_ = f.files.Update(context.Background(), stored)

	got, err := f.svc.DataContent(context.Background(), alice, a.ID)
	if err != nil || got != "hello" {
		t.Errorf("DataContent() = %q, %v", got, err)
	}
}

func TestContent(t *testing.T) {
	f := newFixture(t, &stubConverter{pdfPath: "/tmp/derived.pdf"})
	alice := testutil.NewUser("alice")
	txt := f.upload(t, alice, "a.txt", "text/plain", "a")
	doc := f.upload(t, alice, "report.docx", "", "PK")

	plan, err := f.svc.Content(context.Background(), alice, txt.ID, false)
	if err != nil {
		t.Fatalf("Content(txt) error = %v", err)
	}
	if plan.Disposition != "" || plan.MediaType != "text/plain" || plan.Path != txt.Path {
		t.Errorf("txt plan = %+v", plan)
	}

	plan, err = f.svc.Content(context.Background(), alice, doc.ID, false)
	if err != nil {
		t.Fatalf("Content(docx) error = %v", err)
	}
	if plan.MediaType != "application/pdf" || plan.Path != "/tmp/derived.pdf" {
		t.Errorf("docx plan = %+v", plan)
	}

	plan, _ = f.svc.Content(context.Background(), alice, doc.ID, true)
	if plan.Path != doc.Path || !strings.HasPrefix(plan.Disposition, "attachment;") {
		t.Errorf("docx attachment plan = %+v", plan)
	}
}

func TestContent_MissingBlob(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")
	a := f.upload(t, alice, "a.txt", "text/plain", "a")
	_ = f.storage.Storage.Delete(context.Background(), a.Path)

	if _, err := f.svc.Content(context.Background(), alice, a.ID, false); !errors.Is(err, delivery.ErrContentNotFound) {
		t.Errorf("error = %v, want ErrContentNotFound", err)
	}
}

func TestNamedContent(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")
	a := f.upload(t, alice, "a.txt", "text/plain", "a")

	named, err := f.svc.NamedContent(context.Background(), alice, a.ID)
	if err != nil {
		t.Fatalf("NamedContent() error = %v", err)
	}
	if named.Plan == nil || !strings.HasPrefix(named.Plan.Disposition, "attachment;") {
		t.Errorf("plan = %+v", named.Plan)
	}

	// 没有存储路径时返回内联文本
	inline, _ := f.files.Insert(context.Background(), "alice", &model.FileForm{
		ID:       "inline-1",
		Filename: "chat.txt",
		Data:     model.JSON{model.DataContent: "inline body"},
		Meta:     model.JSON{model.MetaName: "chat.txt"},
	})
	named, err = f.svc.NamedContent(context.Background(), alice, inline.ID)
	if err != nil {
		t.Fatalf("NamedContent(inline) error = %v", err)
	}
	if named.Plan != nil || named.Text != "inline body" || named.Name != "chat.txt" {
		t.Errorf("inline = %+v", named)
	}
}

// ========== Delete 测试 ==========

func TestDelete(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")
	doc := f.upload(t, alice, "report.docx", "", "PK")

	if err := f.svc.Delete(context.Background(), testutil.NewUser("bob"), doc.ID); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("non-owner delete error = %v", err)
	}
	if err := f.svc.Delete(context.Background(), alice, doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if f.files.Len() != 0 {
		t.Error("record should be deleted")
	}
	if len(f.evicter.evicted) != 1 || f.evicter.evicted[0] != doc.Path {
		t.Errorf("evicted = %v", f.evicter.evicted)
	}
	if len(f.unindexer.forgotten) != 1 || f.unindexer.forgotten[0] != doc.ID {
		t.Errorf("forgotten = %v", f.unindexer.forgotten)
	}
	got := f.events.types()
	if got[len(got)-1] != event.EventFileDeleted {
		t.Errorf("events = %v", got)
	}
}

func TestDelete_StorageFailureKeepsRecordDeleted(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")
	a := f.upload(t, alice, "a.txt", "text/plain", "a")
	f.storage.deleteErr = errors.New("disk busy")

	err := f.svc.Delete(context.Background(), alice, a.ID)
	if !errors.Is(err, ErrStorageDelete) {
		t.Fatalf("error = %v, want ErrStorageDelete", err)
	}
	if f.files.Len() != 0 {
		t.Error("metadata deletion is not rolled back")
	}
}

func TestDelete_RepositoryFailure(t *testing.T) {
	f := newFixture(t, nil)
	alice := testutil.NewUser("alice")
	a := f.upload(t, alice, "a.txt", "text/plain", "a")
	f.files.DeleteErr = errors.New("db down")

	if err := f.svc.Delete(context.Background(), alice, a.ID); !errors.Is(err, ErrDeleteFailed) {
		t.Errorf("error = %v, want ErrDeleteFailed", err)
	}
}

func TestDeleteAll(t *testing.T) {
	f := newFixture(t, nil)
	assert := testutil.NewAssertHelper(t)
	admin := testutil.NewAdmin("root")
	f.upload(t, testutil.NewUser("alice"), "a.txt", "text/plain", "a")
	f.upload(t, testutil.NewUser("bob"), "b.txt", "text/plain", "b")

	assert.NoError(f.svc.DeleteAll(context.Background(), admin))
	assert.Equal(0, f.files.Len(), "records should be gone")
	got := f.events.types()
	assert.True(len(got) > 0)
	assert.Equal(event.EventFilesPurged, got[len(got)-1])

	f.storage.deleteAllErr = errors.New("bucket locked")
	err := f.svc.DeleteAll(context.Background(), admin)
	assert.True(errors.Is(err, ErrStorageDelete), err)
	assert.ErrorContains(err, "bucket locked")
	assert.False(errors.Is(err, ErrFileNotFound))
}

// ========== SanitizeFilename 测试 ==========

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.docx", "report.docx"},
		{"/tmp/a/b.txt", "b.txt"},
		{`C:\docs\plan.doc`, "plan.doc"},
		{"../../etc/passwd", "passwd"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
