package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/session"
	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/upload"
)

// Sender is the part of *tgbotapi.BotAPI the router talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// DownloadFunc fetches the bytes of a Telegram file by its file id.
type DownloadFunc func(ctx context.Context, fileID string) ([]byte, error)

type Router struct {
	Bot      Sender
	Download DownloadFunc
	Service  *analysis.Service
	Uploads  *upload.Store
	Sessions *session.Store

	// per-update deadline for model calls
	Timeout time.Duration
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.HandleCommand(cid, msg.Command())
		return
	}

	switch {
	case len(msg.Photo) > 0:
		// the last size is the largest
		ph := msg.Photo[len(msg.Photo)-1]
		r.acceptImage(ctx, cid, ph.FileID, "photo.jpg")
	case msg.Document != nil:
		r.acceptDocument(ctx, cid, msg.Document)
	case msg.Text != "":
		r.send(cid, hintText)
	}
}

func (r *Router) HandleCommand(chatID int64, cmd string) {
	switch cmd {
	case "start":
		r.send(chatID, startText)
	case "health":
		r.send(chatID, "✅ OK")
	case "reset":
		_ = upload.Discard(r.session(chatID).Reset())
		r.send(chatID, "Сессия очищена. Пришлите новое изображение.")
	default:
		r.send(chatID, "Неизвестная команда")
	}
}

func (r *Router) session(chatID int64) *session.Session {
	return r.Sessions.Get(sessionKey(chatID))
}

func sessionKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (r *Router) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		telemetry.Warn("telegram.send.failed", map[string]any{"chat_id": chatID, "err": err})
	}
}

// sendMarkdown tries Markdown first and resends as plain text when
// Telegram rejects the entities.
func (r *Router) sendMarkdown(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := r.Bot.Send(msg); err == nil {
		return
	}
	msg.ParseMode = ""
	if _, err := r.Bot.Send(msg); err != nil {
		telemetry.Warn("telegram.send.failed", map[string]any{"chat_id": chatID, "err": err})
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Ошибка: %v", err))
}
