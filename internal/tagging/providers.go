// Package tagging is the boundary to vision-capable inference services. A
// provider turns (image, instruction) into raw model text; the Client wraps
// it with timeouts, bounded retry and response parsing.
package tagging

import (
	"context"
	"errors"
	"fmt"
)

// Request carries one inference call.
type Request struct {
	Model       string
	Prompt      string
	ImagePath   string
	Temperature float64
	MaxTokens   int
}

// Provider defines the interface for a vision LLM provider.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// transientError marks a failure worth retrying (timeouts, connection
// resets, 5xx). Anything else is permanent: retrying a malformed request or
// a missing model will not help.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the retry layer knows another attempt may succeed.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// New returns the provider named by the configuration.
func New(name string) (Provider, error) {
	switch name {
	case "ollama":
		return NewOllama(), nil
	case "gemini":
		return NewGemini(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}
