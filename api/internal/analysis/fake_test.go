package analysis

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"med-vision/api/internal/llm"
)

type reply struct {
	text string
	err  error
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []string
	reqs    []llm.Request
}

func newFakeGenerator(replies map[string]reply) *fakeGenerator {
	return &fakeGenerator{replies: replies}
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, model string, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, model)
	f.reqs = append(f.reqs, req)
	r, ok := f.replies[model]
	if !ok {
		return "", errors.New("unexpected model " + model)
	}
	return r.text, r.err
}

func (f *fakeGenerator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memCache struct {
	rows    map[string][2]string
	upserts int
}

func newMemCache() *memCache { return &memCache{rows: map[string][2]string{}} }

func (c *memCache) Find(_ context.Context, hash, kind string, _ time.Duration) (string, string, error) {
	row, ok := c.rows[kind+"|"+hash]
	if !ok {
		return "", "", errors.New("not found")
	}
	return row[0], row[1], nil
}

func (c *memCache) Upsert(_ context.Context, hash, kind, model, text string) error {
	c.upserts++
	c.rows[kind+"|"+hash] = [2]string{model, text}
	return nil
}

var testRoutes = Options{
	Vision: Route{Primary: "vision-primary", Fallback: "vision-fallback"},
	Text:   Route{Primary: "text-primary", Fallback: "text-fallback"},
}

func writePNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}
