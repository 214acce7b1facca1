package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/config"
	"med-vision/api/internal/llm"
	"med-vision/api/internal/llm/gemini"
	"med-vision/api/internal/session"
	"med-vision/api/internal/store"
	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/upload"
)

// App holds the pieces shared by the web server and the bot.
type App struct {
	Config   *config.Config
	Service  *analysis.Service
	Uploads  *upload.Store
	Sessions *session.Store

	db      *sql.DB
	reports *store.ReportRepo
	engine  *gemini.Engine
}

// New opens the Gemini client and, when DATABASE_URL is set, the report
// cache. A database that cannot be reached is logged and the cache skipped.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	eng, err := gemini.New(ctx, cfg.GoogleAPIKey)
	if err != nil {
		return nil, &EngineSetupError{Err: err}
	}
	db, err := openCache(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	a := build(cfg, eng, db)
	a.engine = eng
	return a, nil
}

// EngineSetupError means the Gemini client could not be created.
type EngineSetupError struct {
	Err error
}

func (e *EngineSetupError) Error() string { return e.Err.Error() }
func (e *EngineSetupError) Unwrap() error { return e.Err }

func openCache(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := store.Open(ctx, dsn)
	if err != nil {
		telemetry.Warn("db.unavailable", map[string]any{"dsn": store.SafeDSNSummary(dsn), "err": err})
		return nil, nil
	}
	if err := store.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	telemetry.Info("db.connected", map[string]any{"dsn": store.SafeDSNSummary(dsn)})
	return db, nil
}

func build(cfg *config.Config, gen llm.Generator, db *sql.DB) *App {
	a := &App{
		Config:   cfg,
		Uploads:  upload.New(cfg.UploadDir, cfg.MaxUploadBytes),
		Sessions: session.NewStore(),
		db:       db,
	}
	opts := analysis.Options{
		Vision:      analysis.Route{Primary: cfg.VisionModel, Fallback: cfg.VisionFallbackModel},
		Text:        analysis.Route{Primary: cfg.TextModel, Fallback: cfg.TextFallbackModel},
		CacheMaxAge: cfg.CacheMaxAge,
	}
	if db != nil {
		a.reports = store.NewReportRepo(db)
		opts.Cache = a.reports
	}
	a.Service = analysis.NewService(gen, opts)
	return a
}

// Health pings the database when one is configured.
func (a *App) Health(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}

// RunJanitor drops idle sessions (and their leftover uploads) and purges
// stale cache rows every interval until ctx is done.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.sweep(ctx)
		}
	}
}

func (a *App) sweep(ctx context.Context) {
	if n := a.Sessions.Sweep(a.Config.SessionTTL); n > 0 {
		telemetry.Info("sessions.expired", map[string]any{"count": n})
	}
	if a.reports == nil || a.Config.CacheMaxAge <= 0 {
		return
	}
	n, err := a.reports.PurgeOlderThan(ctx, a.Config.CacheMaxAge)
	if err != nil {
		telemetry.Warn("cache.purge.failed", map[string]any{"err": err})
		return
	}
	if n > 0 {
		telemetry.Info("cache.purged", map[string]any{"rows": n})
	}
}

func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	return errors.Join(errs...)
}
