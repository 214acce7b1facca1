package llm

import "context"

// Image is an inline image payload.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is one generateContent call: a prompt and optional images,
// sent in that order.
type Request struct {
	Prompt string
	Images []Image
}

// Generator sends a request to the named model and returns its text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, model string, req Request) (string, error)
}
