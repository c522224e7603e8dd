package gemini

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/songer666/jobs-ai/internal/llm"
	"github.com/songer666/jobs-ai/internal/models"
)

const providerName = "gemini"

// Client represents a Gemini LLM client
type Client struct {
	client *genai.Client
	config *Config
}

func NewClient(config *Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	return &Client{
		client: client,
		config: config,
	}, nil
}

func (c *Client) GetProviderName() string {
	return providerName
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	contents, cfg, err := buildRequest(req)
	if err != nil {
		return "", err
	}

	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, cfg)
	if err != nil {
		return "", classify(ctx, err, "Failed to generate content")
	}

	text := responseText(result)
	if strings.TrimSpace(text) == "" {
		return "", &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeEmpty,
			Message:  "Empty response generated",
		}
	}
	return text, nil
}

func (c *Client) Stream(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents, cfg, err := buildRequest(req)
		if err != nil {
			yield("", err)
			return
		}
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.config.Model, contents, cfg) {
			if err != nil {
				yield("", classify(ctx, err, "Stream interrupted"))
				return
			}
			chunk := responseText(resp)
			if chunk == "" {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

func buildRequest(req llm.Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if len(req.Messages) == 0 {
		return nil, nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeInvalidInput,
			Message:  "At least one message is required",
		}
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		content := &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: m.Content}},
		}
		if m.Role == models.RoleAssistant {
			content.Role = genai.RoleModel
		}
		contents = append(contents, content)
	}

	var cfg *genai.GenerateContentConfig
	if req.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		}
	}
	return contents, cfg, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
		// only the first candidate is used
		break
	}
	return b.String()
}

// classify maps transport and API failures onto the shared provider error codes.
func classify(ctx context.Context, err error, message string) error {
	code := llm.ErrCodeServiceDown
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		code = llm.ErrCodeTimeout
	case errors.As(err, &apiErr):
		code = codeForStatus(apiErr.Code)
	case errors.As(err, &apiErrPtr):
		code = codeForStatus(apiErrPtr.Code)
	}
	return &llm.ProviderError{
		Provider: providerName,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return llm.ErrCodeAPIKey
	case status == http.StatusTooManyRequests:
		return llm.ErrCodeRateLimit
	case status == http.StatusBadRequest:
		return llm.ErrCodeInvalidInput
	case status == http.StatusGatewayTimeout:
		return llm.ErrCodeTimeout
	default:
		return llm.ErrCodeServiceDown
	}
}
