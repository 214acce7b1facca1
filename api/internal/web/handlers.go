package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/upload"
)

type Handler struct {
	svc      *analysis.Service
	uploads  *upload.Store
	timeout  time.Duration
	maxBytes int64
}

// error codes passed through the redirect after POST
var flashMessages = map[string]string{
	"nofile":   "Выберите файл для загрузки.",
	"type":     "Поддерживаются только изображения jpg, jpeg и png.",
	"size":     "Файл слишком большой.",
	"empty":    "Файл пустой.",
	"upload":   "Не удалось сохранить файл. Попробуйте ещё раз.",
	"noupload": "Сначала загрузите изображение.",
	"noresult": "Нет результата анализа для упрощения.",
}

type pageView struct {
	Title string
	Error string

	HasUpload  bool
	UploadName string

	Result        template.HTML
	ResultIsQuota bool
	QuotaHelp     template.HTML
	Notices       []string

	ShowELI5          bool
	ELI5Yes           bool
	Simplified        template.HTML
	SimplifiedIsQuota bool
	SimplifiedNotices []string
}

func (h *Handler) Index(c *gin.Context) {
	sess := sessionFrom(c)
	v := pageView{Title: pageTitle, Error: flashMessages[c.Query("err")]}

	path, name := sess.Upload()
	v.HasUpload = upload.Exists(path)
	v.UploadName = name

	if rep, ok := sess.Result(); ok {
		v.Result = renderMarkdown(rep.Text)
		v.ResultIsQuota = rep.QuotaExceeded()
		v.Notices = rep.Notices
		if v.ResultIsQuota {
			v.QuotaHelp = renderMarkdown(analysis.QuotaSolutions)
		}
	}
	v.ShowELI5 = sess.CanSimplify()
	if simp, ok := sess.Simplified(); ok && v.ShowELI5 {
		v.ELI5Yes = true
		v.Simplified = renderMarkdown(simp.Text)
		v.SimplifiedIsQuota = simp.QuotaExceeded()
		v.SimplifiedNotices = simp.Notices
	}
	c.HTML(http.StatusOK, "index.html", v)
}

func (h *Handler) Upload(c *gin.Context) {
	sess := sessionFrom(c)
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(err) {
			redirectWithError(c, "size")
			return
		}
		redirectWithError(c, "nofile")
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		redirectWithError(c, "size")
		return
	}
	f, err := fh.Open()
	if err != nil {
		redirectWithError(c, "upload")
		return
	}
	defer f.Close()

	path, err := h.uploads.Save(fh.Filename, f)
	if err != nil {
		redirectWithError(c, uploadErrorCode(err))
		return
	}
	if prev := sess.SetUpload(path, fh.Filename); prev != "" {
		_ = upload.Discard(prev)
	}
	telemetry.Info("upload.saved", map[string]any{
		"request_id": c.GetString(requestIDKey),
		"size_bytes": fh.Size,
	})
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Preview(c *gin.Context) {
	path, _ := sessionFrom(c).Upload()
	if !upload.Exists(path) {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.File(path)
}

func (h *Handler) Analyze(c *gin.Context) {
	sess := sessionFrom(c)
	path, err := sess.TakeUpload()
	if err != nil {
		redirectWithError(c, "noupload")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	rep := h.svc.AnalyzeFile(ctx, path, "")
	sess.SetResult(rep)

	telemetry.Info("analysis.done", map[string]any{
		"request_id": c.GetString(requestIDKey),
		"status":     rep.Status.String(),
		"model":      rep.Model,
		"cached":     rep.Cached,
	})
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) ELI5(c *gin.Context) {
	sess := sessionFrom(c)
	if c.PostForm("choice") != "Да" {
		sess.SetSimplified(nil)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if !sess.CanSimplify() {
		redirectWithError(c, "noresult")
		return
	}
	rep, _ := sess.Result()

	ctx, cancel := h.requestContext(c)
	defer cancel()
	simp := h.svc.Simplify(ctx, rep.Text)
	sess.SetSimplified(&simp)

	telemetry.Info("simplify.done", map[string]any{
		"request_id": c.GetString(requestIDKey),
		"status":     simp.Status.String(),
		"model":      simp.Model,
	})
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Reset(c *gin.Context) {
	_ = upload.Discard(sessionFrom(c).Reset())
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func uploadErrorCode(err error) string {
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		return "type"
	case errors.Is(err, upload.ErrTooLarge):
		return "size"
	case errors.Is(err, upload.ErrEmpty):
		return "empty"
	default:
		return "upload"
	}
}

func bodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func redirectWithError(c *gin.Context, code string) {
	c.Redirect(http.StatusSeeOther, "/?err="+url.QueryEscape(code))
}
