// Package reasoning is the boundary to the generative model. Callers hand in
// a prompt and get back raw text that is probably, but not certainly, the
// JSON they asked for. Everything downstream treats the output as untrusted.
package reasoning

import (
	"context"
	"errors"
	"time"
)

// Model failure modes. Services map these onto their deterministic fallbacks
// or surface them as coded errors.
var (
	// ErrUnavailable: no client configured or the provider rejected the call.
	ErrUnavailable = errors.New("reasoning unavailable")
	// ErrMalformed: output was not parseable even after fence stripping.
	ErrMalformed = errors.New("reasoning output malformed")
	// ErrTimeout: the call exceeded its deadline.
	ErrTimeout = errors.New("reasoning timed out")
	// ErrEmpty: the model returned no text at all.
	ErrEmpty = errors.New("reasoning output empty")
)

// Request describes one model call. JSONResponse asks the provider for a JSON
// MIME type; it raises the odds of clean output but guarantees nothing.
type Request struct {
	Model        string
	System       string
	Prompt       string
	JSONResponse bool
	MaxTokens    int
	Timeout      time.Duration
}

// Client generates text from a prompt. Implementations must honor ctx
// cancellation and the per-request timeout.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Unavailable is the null client used when no API key is configured. Every
// call fails fast with ErrUnavailable so services exercise their fallbacks.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}
