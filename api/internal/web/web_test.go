package web

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/config"
	"med-vision/api/internal/llm"
	"med-vision/api/internal/session"
	"med-vision/api/internal/upload"
)

type fakeGen struct {
	mu      sync.Mutex
	replies map[string]error
	text    map[string]string
	calls   []string
}

func (f *fakeGen) Name() string { return "fake" }

func (f *fakeGen) Generate(_ context.Context, model string, _ llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, model)
	if err := f.replies[model]; err != nil {
		return "", err
	}
	return f.text[model], nil
}

type testEnv struct {
	router   *gin.Engine
	dir      string
	gen      *fakeGen
	sessions *session.Store
	cookie   *http.Cookie
}

func newTestEnv(t *testing.T, gen *fakeGen) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	svc := analysis.NewService(gen, analysis.Options{
		Vision: analysis.Route{Primary: "vision-primary", Fallback: "vision-fallback"},
		Text:   analysis.Route{Primary: "text-primary", Fallback: "text-fallback"},
	})
	sessions := session.NewStore()
	r := NewRouter(Deps{
		Service:        svc,
		Uploads:        upload.New(dir, 1<<20),
		Sessions:       sessions,
		RequestTimeout: 5 * time.Second,
		SessionTTL:     time.Hour,
		MaxUploadBytes: 1 << 20,
	})
	return &testEnv{router: r, dir: dir, gen: gen, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			e.cookie = c
		}
	}
	return w
}

func (e *testEnv) upload(t *testing.T, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req)
}

func (e *testEnv) page(t *testing.T) string {
	t.Helper()
	w := e.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", w.Code)
	}
	return w.Body.String()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestAnalyzeFlowRendersReportAndRemovesUpload(t *testing.T) {
	gen := &fakeGen{text: map[string]string{
		"vision-primary": "**Тип изображения:** рентген",
		"text-primary":   "Это картинка твоих косточек.",
	}}
	env := newTestEnv(t, gen)

	env.page(t)
	if w := env.upload(t, "scan.PNG", pngBytes(t)); w.Code != http.StatusSeeOther {
		t.Fatalf("upload status = %d", w.Code)
	}
	if got := dirEntries(t, env.dir); got != 1 {
		t.Fatalf("expected 1 temp file after upload, got %d", got)
	}
	body := env.page(t)
	if !strings.Contains(body, "/upload/preview") {
		t.Fatalf("expected preview on page")
	}

	if w := env.post(t, "/analyze", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("analyze status = %d", w.Code)
	}
	if got := dirEntries(t, env.dir); got != 0 {
		t.Fatalf("expected temp file removed after analysis, got %d entries", got)
	}
	body = env.page(t)
	if !strings.Contains(body, "<strong>Тип изображения:</strong> рентген") {
		t.Fatalf("report not rendered: %s", body)
	}
	if !strings.Contains(body, `action="/eli5"`) {
		t.Fatalf("expected ELI5 form after a successful analysis")
	}

	env.post(t, "/eli5", url.Values{"choice": {"Да"}})
	body = env.page(t)
	if !strings.Contains(body, "Это картинка твоих косточек.") {
		t.Fatalf("simplified text missing")
	}

	env.post(t, "/eli5", url.Values{"choice": {"Нет"}})
	body = env.page(t)
	if strings.Contains(body, "Это картинка твоих косточек.") {
		t.Fatalf("simplified text should be hidden after choosing Нет")
	}
}

func TestAnalyzeQuotaShowsNoticeAndAdvisory(t *testing.T) {
	quota := errors.New("googleapi: Error 429: Resource has been exhausted (e.g. check quota).")
	gen := &fakeGen{replies: map[string]error{"vision-primary": quota, "vision-fallback": quota}}
	env := newTestEnv(t, gen)

	env.upload(t, "scan.png", pngBytes(t))
	env.post(t, "/analyze", nil)
	body := env.page(t)

	if !strings.Contains(body, "Превышена квота для модели vision-primary") {
		t.Fatalf("fallback notice missing")
	}
	if !strings.Contains(body, analysis.QuotaHeadline) {
		t.Fatalf("quota advisory missing")
	}
	if !strings.Contains(body, "Решения проблемы с квотой") {
		t.Fatalf("quota help missing")
	}
	if strings.Contains(body, `action="/eli5"`) {
		t.Fatalf("ELI5 must not be offered for a quota advisory")
	}
	if got := dirEntries(t, env.dir); got != 0 {
		t.Fatalf("expected temp file removed, got %d entries", got)
	}
}

func TestAnalyzeGenericFailure(t *testing.T) {
	gen := &fakeGen{replies: map[string]error{"vision-primary": errors.New("500 Internal")}}
	env := newTestEnv(t, gen)

	env.upload(t, "scan.jpg", pngBytes(t))
	env.post(t, "/analyze", nil)
	body := env.page(t)

	if !strings.Contains(body, "Произошла ошибка при анализе изображения: 500 Internal") {
		t.Fatalf("failure line missing: %s", body)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("fallback must not be called, calls = %v", gen.calls)
	}
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t, &fakeGen{})

	tests := []struct {
		name string
		file string
		data []byte
		code string
	}{
		{"wrong extension", "scan.gif", pngBytes(t), "type"},
		{"empty file", "scan.png", nil, "empty"},
		{"too large", "scan.png", bytes.Repeat([]byte{1}, 1<<20+10), "size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.upload(t, tt.file, tt.data)
			if w.Code != http.StatusSeeOther {
				t.Fatalf("status = %d", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/?err="+tt.code {
				t.Fatalf("Location = %q, want err=%s", loc, tt.code)
			}
		})
	}
	if got := dirEntries(t, env.dir); got != 0 {
		t.Fatalf("rejected uploads left %d files", got)
	}
}

func TestUploadBodyLimit(t *testing.T) {
	gen := &fakeGen{}
	env := newTestEnv(t, gen)

	w := env.upload(t, "scan.png", bytes.Repeat([]byte{1}, 3<<20))
	if loc := w.Header().Get("Location"); loc != "/?err=size" {
		t.Fatalf("Location = %q, want err=size", loc)
	}
	if got := dirEntries(t, env.dir); got != 0 {
		t.Fatalf("oversized body left %d files", got)
	}
	path, _ := env.sessions.Get("web:" + env.cookie.Value).Upload()
	if path != "" {
		t.Fatalf("oversized upload must not be recorded, got %q", path)
	}
}

func TestAnalyzeWithoutUpload(t *testing.T) {
	gen := &fakeGen{}
	env := newTestEnv(t, gen)

	w := env.post(t, "/analyze", nil)
	if loc := w.Header().Get("Location"); loc != "/?err=noupload" {
		t.Fatalf("Location = %q", loc)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("model must not be called without an upload")
	}
}

func TestReuploadDiscardsPrevious(t *testing.T) {
	env := newTestEnv(t, &fakeGen{})
	env.upload(t, "a.png", pngBytes(t))
	env.upload(t, "b.png", pngBytes(t))
	if got := dirEntries(t, env.dir); got != 1 {
		t.Fatalf("expected only the latest upload kept, got %d", got)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	gen := &fakeGen{text: map[string]string{"vision-primary": "report one"}}
	a := newTestEnv(t, gen)
	a.upload(t, "scan.png", pngBytes(t))
	a.post(t, "/analyze", nil)

	b := &testEnv{router: a.router}
	if body := b.page(t); strings.Contains(body, "report one") {
		t.Fatalf("another session must not see the result")
	}
	if a.sessions.Len() != 2 {
		t.Fatalf("sessions = %d, want 2", a.sessions.Len())
	}
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{
		Sessions: session.NewStore(),
		Health:   func(context.Context) error { return errors.New("down") },
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStartupErrorRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewStartupErrorRouter(config.MissingAPIKeyMessage)

	for _, path := range []string{"/", "/upload"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "API-ключ Gemini не найден") {
			t.Fatalf("%s body missing credential message", path)
		}
	}
}

func TestRenderMarkdownDropsRawHTML(t *testing.T) {
	out := string(renderMarkdown("<script>alert(1)</script>\n\n**ok**"))
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html must be omitted: %s", out)
	}
	if !strings.Contains(out, "<strong>ok</strong>") {
		t.Fatalf("markdown not rendered: %s", out)
	}
}

func TestStartupErrorRouterShowsEngineSetupError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewStartupErrorRouter(config.EngineSetupMessage(errors.New("invalid key format")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Ошибка конфигурации API Gemini: invalid key format") {
		t.Fatalf("body missing setup error: %s", w.Body.String())
	}
}
