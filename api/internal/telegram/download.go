package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FileURLResolver resolves a file id to a direct download URL.
// *tgbotapi.BotAPI implements it.
type FileURLResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

// NewDownloader returns a DownloadFunc that reads at most maxBytes+1 bytes
// so the upload store can reject oversized files.
func NewDownloader(bot FileURLResolver, maxBytes int64) DownloadFunc {
	client := &http.Client{Timeout: 60 * time.Second}
	return func(ctx context.Context, fileID string) ([]byte, error) {
		url, err := bot.GetFileDirectURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("get file: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
		}
		var body io.Reader = resp.Body
		if maxBytes > 0 {
			body = io.LimitReader(resp.Body, maxBytes+1)
		}
		return io.ReadAll(body)
	}
}
