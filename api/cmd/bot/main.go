package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"med-vision/api/internal/app"
	"med-vision/api/internal/config"
	"med-vision/api/internal/httpserver"
	"med-vision/api/internal/telegram"
	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/web"
)

func main() {
	defer telemetry.Sync()

	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		telemetry.Error(config.MissingAPIKeyMessage, nil)
		os.Exit(1)
	}
	if err != nil {
		telemetry.Error("config.load.failed", map[string]any{"err": err})
		os.Exit(1)
	}
	if cfg.TelegramBotToken == "" {
		telemetry.Error("missing required env TELEGRAM_BOT_TOKEN", nil)
		os.Exit(1)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		telemetry.Error("app.init.failed", map[string]any{"err": err})
		os.Exit(1)
	}
	defer a.Close()
	go a.RunJanitor(ctx, time.Minute)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		telemetry.Error("telegram.init.failed", map[string]any{"err": err})
		os.Exit(1)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:      bot,
		Download: telegram.NewDownloader(bot, cfg.MaxUploadBytes),
		Service:  a.Service,
		Uploads:  a.Uploads,
		Sessions: a.Sessions,
		Timeout:  cfg.RequestTimeout,
	}

	// healthz is served in both modes
	mux := gin.New()
	mux.Use(web.RequestID(), web.Logging(), web.Recovery())
	mux.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.Health(hctx); err != nil {
			c.String(http.StatusServiceUnavailable, "db: not ok\n"+err.Error())
			return
		}
		c.String(http.StatusOK, "ok")
	})

	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL != "" {
		path := telegram.WebhookPath(bot.Token)
		wh, err := tgbotapi.NewWebhook(strings.TrimRight(webhookURL, "/") + path)
		if err != nil {
			telemetry.Error("telegram.webhook.failed", map[string]any{"err": err})
			os.Exit(1)
		}
		wh.DropPendingUpdates = true
		if _, err := bot.Request(wh); err != nil {
			telemetry.Error("telegram.webhook.failed", map[string]any{"err": err})
			os.Exit(1)
		}
		mux.POST(path, gin.WrapH(telegram.WebhookHandler(ctx, bot, r.HandleUpdate)))
		telemetry.Info("telegram.mode", map[string]any{"mode": "webhook"})
	} else {
		// a webhook left from a previous deploy blocks getUpdates
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			telemetry.Warn("telegram.delete_webhook.failed", map[string]any{"err": err})
		}
		go telegram.RunPolling(ctx, bot, r.HandleUpdate)
		telemetry.Info("telegram.mode", map[string]any{"mode": "polling"})
	}

	if err := httpserver.Run(ctx, cfg.Addr(), mux); err != nil {
		telemetry.Error("server.failed", map[string]any{"err": err})
		os.Exit(1)
	}
	telemetry.Info("bot.stopped", nil)
}
