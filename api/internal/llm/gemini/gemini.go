package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"med-vision/api/internal/llm"
)

type Engine struct {
	cl *genai.Client
}

// New opens one client for the process; the key is validated by the first call.
func New(ctx context.Context, apiKey string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Engine{cl: cl}, nil
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Close() error {
	if e == nil || e.cl == nil {
		return nil
	}
	return e.cl.Close()
}

// Generate returns the text of the first candidate. SDK errors are returned
// untouched: callers classify them by message.
func (e *Engine) Generate(ctx context.Context, model string, req llm.Request) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("gemini: model is empty")
	}
	m := e.cl.GenerativeModel(model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}

	resp, err := m.GenerateContent(ctx, Parts(req)...)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// Parts converts a request into SDK parts: prompt first, then images.
func Parts(req llm.Request) []genai.Part {
	parts := make([]genai.Part, 0, 1+len(req.Images))
	if req.Prompt != "" {
		parts = append(parts, genai.Text(req.Prompt))
	}
	for _, img := range req.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: img.Data})
	}
	return parts
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("gemini: prompt blocked: %s", pf.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini: empty response")
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		if c != nil {
			return "", fmt.Errorf("gemini: empty response (finish reason %s)", c.FinishReason)
		}
		return "", errors.New("gemini: empty response")
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("gemini: empty response (finish reason %s)", c.FinishReason)
	}
	return b.String(), nil
}
