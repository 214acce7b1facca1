package handle

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/upload"
)

const defaultDeadline = 180 * time.Second

type Handle struct {
	svc      *analysis.Service
	uploads  *upload.Store
	deadline time.Duration
}

func New(svc *analysis.Service, uploads *upload.Store, deadline time.Duration) *Handle {
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	return &Handle{svc: svc, uploads: uploads, deadline: deadline}
}

func (h *Handle) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.Analyze)
	rg.POST("/simplify", h.Simplify)
}

// ReportResponse is the JSON shape of an analysis.Report.
type ReportResponse struct {
	Text    string   `json:"text"`
	Status  string   `json:"status"`
	Model   string   `json:"model,omitempty"`
	Notices []string `json:"notices,omitempty"`
	Cached  bool     `json:"cached,omitempty"`
}

func writeReport(c *gin.Context, rep analysis.Report) {
	code := http.StatusOK
	switch rep.Status {
	case analysis.StatusQuota:
		code = http.StatusTooManyRequests
	case analysis.StatusFailed:
		code = http.StatusBadGateway
	}
	c.JSON(code, ReportResponse{
		Text:    rep.Text,
		Status:  rep.Status.String(),
		Model:   rep.Model,
		Notices: rep.Notices,
		Cached:  rep.Cached,
	})
}

func writeError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// requestContext applies X-Request-Timeout (or ?timeoutSec=) in seconds,
// falling back to the configured deadline.
func (h *Handle) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	deadline := h.deadline
	if ts := c.GetHeader("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := c.Query("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(c.Request.Context(), deadline)
}
