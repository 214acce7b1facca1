package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/session"
	"med-vision/api/internal/upload"
)

const pageTitle = "Медицинский анализ с использованием Gemini"

// room for multipart headers and the other form fields
const multipartOverhead = 1 << 20

//go:embed templates/*.html
var templateFS embed.FS

// Registrar mounts extra route groups (the JSON API) on the router.
type Registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

type Deps struct {
	Service  *analysis.Service
	Uploads  *upload.Store
	Sessions *session.Store

	RequestTimeout time.Duration
	SessionTTL     time.Duration
	MaxUploadBytes int64

	API    Registrar
	Health func(ctx context.Context) error
}

// NewRouter constructs the gin engine with middleware and routes registered.
func NewRouter(d Deps) *gin.Engine {
	r := newEngine()
	if d.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = d.MaxUploadBytes + multipartOverhead
	}

	h := &Handler{
		svc:      d.Service,
		uploads:  d.Uploads,
		timeout:  d.RequestTimeout,
		maxBytes: d.MaxUploadBytes,
	}

	r.GET("/healthz", healthz(d.Health))

	ui := r.Group("/", Sessions(d.Sessions, d.SessionTTL))
	ui.GET("/", h.Index)
	ui.POST("/upload", h.Upload)
	ui.GET("/upload/preview", h.Preview)
	ui.POST("/analyze", h.Analyze)
	ui.POST("/eli5", h.ELI5)
	ui.POST("/reset", h.Reset)

	if d.API != nil {
		d.API.RegisterRoutes(r.Group("/api/v1"))
	}
	return r
}

// NewStartupErrorRouter serves only the startup error; used when the
// service cannot be configured (missing credential).
func NewStartupErrorRouter(msg string) *gin.Engine {
	r := newEngine()
	page := func(c *gin.Context) {
		c.HTML(http.StatusServiceUnavailable, "error.html", gin.H{"Title": pageTitle, "Error": msg})
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusServiceUnavailable, msg)
	})
	r.NoRoute(page)
	return r
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logging(), Recovery())
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(templateFS, "templates/*.html")))
	return r
}

func healthz(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.String(http.StatusServiceUnavailable, "db: not ok\n"+err.Error())
				return
			}
		}
		c.String(http.StatusOK, "ok")
	}
}
