package llm

import (
	"context"
	"iter"

	"github.com/songer666/jobs-ai/internal/models"
)

// Request is one generation call: a system instruction plus the conversation so far.
type Request struct {
	System   string
	Messages []models.Message
}

// defines the interface for LLM providers
type Provider interface {
	// Generate returns the complete response text.
	Generate(ctx context.Context, req Request) (string, error)
	// Stream yields response chunks as they arrive. The sequence ends after the
	// first error.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
	GetProviderName() string
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeTimeout      = "timeout"
	ErrCodeEmpty        = "empty_response"
)
