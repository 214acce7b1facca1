package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"med-vision/api/internal/app"
	"med-vision/api/internal/config"
	"med-vision/api/internal/handle"
	"med-vision/api/internal/httpserver"
	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/web"
)

func main() {
	defer telemetry.Sync()

	cfg, err := config.Load()
	if cfg == nil {
		telemetry.Error("config.load.failed", map[string]any{"err": err})
		os.Exit(1)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var router http.Handler
	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		// nothing but the credential message is served
		telemetry.Error("config.missing_api_key", nil)
		router = web.NewStartupErrorRouter(config.MissingAPIKeyMessage)
	case err != nil:
		telemetry.Error("config.load.failed", map[string]any{"err": err})
		os.Exit(1)
	default:
		a, err := app.New(ctx, cfg)
		var setupErr *app.EngineSetupError
		if errors.As(err, &setupErr) {
			telemetry.Error("gemini.setup.failed", map[string]any{"err": setupErr.Err})
			router = web.NewStartupErrorRouter(config.EngineSetupMessage(setupErr.Err))
			break
		}
		if err != nil {
			telemetry.Error("app.init.failed", map[string]any{"err": err})
			os.Exit(1)
		}
		defer a.Close()
		go a.RunJanitor(ctx, time.Minute)

		router = web.NewRouter(web.Deps{
			Service:        a.Service,
			Uploads:        a.Uploads,
			Sessions:       a.Sessions,
			RequestTimeout: cfg.RequestTimeout,
			SessionTTL:     cfg.SessionTTL,
			MaxUploadBytes: cfg.MaxUploadBytes,
			API:            handle.New(a.Service, a.Uploads, cfg.RequestTimeout),
			Health:         a.Health,
		})
	}

	if err := httpserver.Run(ctx, cfg.Addr(), router); err != nil {
		telemetry.Error("server.failed", map[string]any{"err": err})
		os.Exit(1)
	}
}
