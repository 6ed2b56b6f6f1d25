package reasoning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const defaultTimeout = 40 * time.Second

// Gemini calls Google's Gemini API through the official SDK.
type Gemini struct {
	client       *genai.Client
	defaultModel string
}

// NewGemini builds a Gemini client. Returns an error when the API is
// unreachable or the key is rejected at client construction.
func NewGemini(ctx context.Context, apiKey, defaultModel string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, defaultModel: defaultModel}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
