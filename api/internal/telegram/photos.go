package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/upload"
	"med-vision/api/internal/util"
)

func (r *Router) acceptDocument(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	name := strings.TrimSpace(doc.FileName)
	if !upload.AllowedExt(name) {
		ext := util.ExtForMIME(doc.MimeType)
		if ext == "" {
			r.send(chatID, "Поддерживаются только изображения jpg, jpeg и png.")
			return
		}
		name = "document" + ext
	}
	r.acceptImage(ctx, chatID, doc.FileID, name)
}

// acceptImage stores the file as the chat's upload and analyzes it right away;
// the temp file is gone once the report is sent.
func (r *Router) acceptImage(ctx context.Context, chatID int64, fileID, name string) {
	r.send(chatID, acceptedText)

	data, err := r.Download(ctx, fileID)
	if err != nil {
		telemetry.Error("telegram.download.failed", map[string]any{"chat_id": chatID, "err": err})
		r.SendError(chatID, err)
		return
	}
	path, err := r.Uploads.SaveBytes(name, data)
	if err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			r.send(chatID, "Файл слишком большой.")
			return
		}
		r.SendError(chatID, err)
		return
	}

	sess := r.session(chatID)
	if prev := sess.SetUpload(path, name); prev != "" {
		_ = upload.Discard(prev)
	}
	path, err = sess.TakeUpload()
	if err != nil {
		r.SendError(chatID, err)
		return
	}

	cctx, cancel := r.callContext(ctx)
	defer cancel()
	rep := r.Service.AnalyzeFile(cctx, path, "")
	sess.SetResult(rep)

	telemetry.Info("telegram.analysis.done", map[string]any{
		"chat_id": chatID,
		"status":  rep.Status.String(),
		"model":   rep.Model,
		"cached":  rep.Cached,
	})

	r.sendReport(chatID, rep)
	switch {
	case rep.QuotaExceeded():
		r.sendMarkdown(chatID, analysis.QuotaSolutions, nil)
	case sess.CanSimplify():
		r.sendMarkdown(chatID, eli5Question, makeELI5Keyboard())
	}
}

func (r *Router) sendReport(chatID int64, rep analysis.Report) {
	for _, n := range rep.Notices {
		r.send(chatID, "⚠️ "+n)
	}
	for _, chunk := range splitMessage(rep.Text, maxMessageRunes) {
		r.sendMarkdown(chatID, chunk, nil)
	}
}
