package handle

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/upload"
	"med-vision/api/internal/util"
)

type AnalyzeRequest struct {
	ImageB64 string `json:"image_b64"`
	Mime     string `json:"mime,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

func (h *Handle) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	img, hint, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
	if err != nil || len(img) == 0 {
		writeError(c, http.StatusBadRequest, "bad image_b64")
		return
	}
	name := uploadName(req.FileName, util.PickMIME(req.Mime, hint, img))
	if name == "" {
		writeError(c, http.StatusUnsupportedMediaType, upload.ErrUnsupportedType.Error())
		return
	}

	path, err := h.uploads.SaveBytes(name, img)
	if err != nil {
		code := http.StatusBadRequest
		switch {
		case errors.Is(err, upload.ErrTooLarge):
			code = http.StatusRequestEntityTooLarge
		case errors.Is(err, upload.ErrUnsupportedType):
			code = http.StatusUnsupportedMediaType
		case !errors.Is(err, upload.ErrEmpty):
			code = http.StatusInternalServerError
		}
		writeError(c, code, err.Error())
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	rep := h.svc.AnalyzeFile(ctx, path, "")

	telemetry.Info("api.analyze", map[string]any{
		"status": rep.Status.String(),
		"model":  rep.Model,
		"cached": rep.Cached,
		"bytes":  len(img),
	})
	writeReport(c, rep)
}

// uploadName keeps the client's name when it has an accepted suffix,
// otherwise derives one from the detected MIME type.
func uploadName(fileName, mime string) string {
	if fileName = strings.TrimSpace(fileName); fileName != "" {
		if upload.AllowedExt(fileName) {
			return filepath.Base(fileName)
		}
		return ""
	}
	if ext := util.ExtForMIME(mime); ext != "" {
		return "image" + ext
	}
	return ""
}
