package analysis

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"med-vision/api/internal/llm"
	"med-vision/api/internal/telemetry"
	"med-vision/api/internal/upload"
	"med-vision/api/internal/util"
)

// Route is a primary model and the model tried after a quota rejection.
type Route struct {
	Primary  string
	Fallback string
}

// Cache stores successful answers keyed by a hash of the request.
type Cache interface {
	Find(ctx context.Context, inputHash, kind string, maxAge time.Duration) (model, text string, err error)
	Upsert(ctx context.Context, inputHash, kind, model, text string) error
}

type Options struct {
	Vision      Route
	Text        Route
	Cache       Cache
	CacheMaxAge time.Duration
}

type Service struct {
	gen         llm.Generator
	vision      Route
	text        Route
	cache       Cache
	cacheMaxAge time.Duration
}

func NewService(gen llm.Generator, opts Options) *Service {
	return &Service{
		gen:         gen,
		vision:      opts.Vision,
		text:        opts.Text,
		cache:       opts.Cache,
		cacheMaxAge: opts.CacheMaxAge,
	}
}

const (
	KindAnalysis = "analysis"
	KindSimplify = "simplify"
)

// SDK errors can carry whole response bodies.
const maxLoggedError = 500

type callKind struct {
	name          string
	route         Route
	quotaAdvisory string
	failedPrefix  string
}

func (k callKind) failed(err error) Report {
	return Report{Text: k.failedPrefix + err.Error(), Status: StatusFailed}
}

// Analyze sends the image with prompt (DiagnosticPrompt when empty) to the
// vision route and always returns a displayable report.
func (s *Service) Analyze(ctx context.Context, imagePath, prompt string) Report {
	if prompt == "" {
		prompt = DiagnosticPrompt
	}
	k := callKind{
		name:          KindAnalysis,
		route:         s.vision,
		quotaAdvisory: analysisQuotaAdvisory,
		failedPrefix:  analysisFailedPrefix,
	}
	return s.call(ctx, k, func() (llm.Request, error) {
		img, err := LoadImage(imagePath)
		if err != nil {
			return llm.Request{}, err
		}
		return llm.Request{Prompt: prompt, Images: []llm.Image{img}}, nil
	})
}

// AnalyzeFile is Analyze followed by removal of the uploaded temp file,
// whatever the outcome.
func (s *Service) AnalyzeFile(ctx context.Context, imagePath, prompt string) Report {
	defer func() {
		if err := upload.Discard(imagePath); err != nil {
			telemetry.Warn("upload.discard.failed", map[string]any{"path": imagePath, "err": err})
		}
	}()
	return s.Analyze(ctx, imagePath, prompt)
}

// Simplify rewrites a previous report for a five-year-old via the text route.
func (s *Service) Simplify(ctx context.Context, text string) Report {
	k := callKind{
		name:          KindSimplify,
		route:         s.text,
		quotaAdvisory: simplifyQuotaAdvisory,
		failedPrefix:  simplifyFailedPrefix,
	}
	return s.call(ctx, k, func() (llm.Request, error) {
		return llm.Request{Prompt: ELI5Prefix + text}, nil
	})
}

// call is the single primary→fallback path shared by both callers.
func (s *Service) call(ctx context.Context, k callKind, build func() (llm.Request, error)) Report {
	req, err := build()
	if err != nil {
		telemetry.Error("analysis.request.failed", map[string]any{"kind": k.name, "err": err})
		return k.failed(err)
	}

	key := cacheKey(k.name, req)
	if rep, ok := s.lookup(ctx, k.name, key); ok {
		return rep
	}

	text, err := s.gen.Generate(ctx, k.route.Primary, req)
	if err == nil {
		return s.succeed(ctx, k.name, key, k.route.Primary, text, nil)
	}
	if !IsQuotaError(err) {
		telemetry.Error("analysis.call.failed", map[string]any{"kind": k.name, "model": k.route.Primary, "err": util.Truncate(err.Error(), maxLoggedError)})
		return k.failed(err)
	}

	notices := []string{fallbackNotice(k.route.Primary)}
	telemetry.Warn("analysis.quota.fallback", map[string]any{
		"kind":     k.name,
		"primary":  k.route.Primary,
		"fallback": k.route.Fallback,
		"err":      err,
	})
	if k.route.Fallback == "" {
		return Report{Text: k.quotaAdvisory, Status: StatusQuota, Model: k.route.Primary, Notices: notices}
	}

	text, err = s.gen.Generate(ctx, k.route.Fallback, req)
	if err != nil {
		telemetry.Error("analysis.fallback.failed", map[string]any{"kind": k.name, "model": k.route.Fallback, "err": util.Truncate(err.Error(), maxLoggedError)})
		return Report{Text: k.quotaAdvisory, Status: StatusQuota, Model: k.route.Fallback, Notices: notices}
	}
	return s.succeed(ctx, k.name, key, k.route.Fallback, text, notices)
}

func (s *Service) succeed(ctx context.Context, kind, key, model, text string, notices []string) Report {
	text = util.StripCodeFences(text)
	if s.cache != nil {
		if err := s.cache.Upsert(ctx, key, kind, model, text); err != nil {
			telemetry.Warn("analysis.cache.store_failed", map[string]any{"kind": kind, "err": err})
		}
	}
	return Report{Text: text, Status: StatusOK, Model: model, Notices: notices}
}

func (s *Service) lookup(ctx context.Context, kind, key string) (Report, bool) {
	if s.cache == nil {
		return Report{}, false
	}
	model, text, err := s.cache.Find(ctx, key, kind, s.cacheMaxAge)
	if err != nil || text == "" {
		return Report{}, false
	}
	return Report{Text: text, Status: StatusOK, Model: model, Cached: true}, true
}

func cacheKey(kind string, req llm.Request) string {
	parts := [][]byte{[]byte(kind), []byte(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, img.Data)
	}
	return util.SHA256Hex(parts...)
}

// LoadImage reads a jpeg/png file and checks that it decodes.
func LoadImage(path string) (llm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Image{}, err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return llm.Image{}, fmt.Errorf("cannot identify image file %q: %w", path, err)
	}
	return llm.Image{MIMEType: "image/" + format, Data: data}, nil
}
