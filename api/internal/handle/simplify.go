package handle

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"med-vision/api/internal/telemetry"
)

type SimplifyRequest struct {
	Text string `json:"text"`
}

func (h *Handle) Simplify(c *gin.Context) {
	var req SimplifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(c, http.StatusBadRequest, "text is required")
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	rep := h.svc.Simplify(ctx, req.Text)

	telemetry.Info("api.simplify", map[string]any{
		"status": rep.Status.String(),
		"model":  rep.Model,
	})
	writeReport(c, rep)
}
