package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"med-vision/api/internal/telemetry"
)

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	switch cb.Data {
	case cbELI5Yes:
		r.clearKeyboard(cid, cb.Message.MessageID)
		r.onELI5Yes(ctx, cid)
	case cbELI5No:
		r.clearKeyboard(cid, cb.Message.MessageID)
		r.session(cid).SetSimplified(nil)
		r.send(cid, eli5NoText)
	}
}

func (r *Router) onELI5Yes(ctx context.Context, chatID int64) {
	sess := r.session(chatID)
	if !sess.CanSimplify() {
		r.send(chatID, "Нет результата анализа для упрощения. Пришлите изображение.")
		return
	}
	rep, _ := sess.Result()

	cctx, cancel := r.callContext(ctx)
	defer cancel()
	simp := r.Service.Simplify(cctx, rep.Text)
	sess.SetSimplified(&simp)

	telemetry.Info("telegram.simplify.done", map[string]any{
		"chat_id": chatID,
		"status":  simp.Status.String(),
		"model":   simp.Model,
	})
	r.sendReport(chatID, simp)
}

func (r *Router) clearKeyboard(chatID int64, msgID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	_, _ = r.Bot.Send(edit)
}
