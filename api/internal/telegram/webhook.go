package telegram

import (
	"context"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"med-vision/api/internal/telemetry"
)

// UpdateParser decodes a webhook request; *tgbotapi.BotAPI implements it.
type UpdateParser interface {
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// WebhookHandler accepts Telegram webhook POSTs and queues updates for a
// single worker so they are handled in order, as with polling.
func WebhookHandler(ctx context.Context, p UpdateParser, handle func(context.Context, tgbotapi.Update)) http.Handler {
	queue := make(chan tgbotapi.Update, 100)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-queue:
				handle(ctx, upd)
			}
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		upd, err := p.HandleUpdate(r)
		if err != nil {
			telemetry.Warn("telegram.webhook.bad_update", map[string]any{"err": err})
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case queue <- *upd:
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
}
