package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// QStashClient publishes messages through the Upstash QStash REST API.
type QStashClient struct {
	baseURL    string
	token      string
	resolve    URLResolver
	httpClient *http.Client
	logger     *zap.Logger
}

type QStashOption func(*QStashClient)

// WithHTTPClient overrides the client used to reach QStash.
func WithHTTPClient(c *http.Client) QStashOption {
	return func(q *QStashClient) { q.httpClient = c }
}

func NewQStashClient(baseURL, token string, resolve URLResolver, logger *zap.Logger, opts ...QStashOption) *QStashClient {
	q := &QStashClient{
		baseURL:    baseURL,
		token:      token,
		resolve:    resolve,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

func (q *QStashClient) Publish(ctx context.Context, target string, payload any, retries int) (string, error) {
	return q.send(ctx, target, payload, 0, retries)
}

func (q *QStashClient) Schedule(ctx context.Context, target string, payload any, delay time.Duration, retries int) (string, error) {
	return q.send(ctx, target, payload, delay, retries)
}

func (q *QStashClient) send(ctx context.Context, target string, payload any, delay time.Duration, retries int) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &EnqueueError{Target: target, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	destination := q.resolve(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/v2/publish/"+destination, bytes.NewReader(body))
	if err != nil {
		return "", &EnqueueError{Target: target, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+q.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Retries", strconv.Itoa(max(0, retries)))
	if secs := delaySeconds(delay); secs > 0 {
		req.Header.Set("Upstash-Delay", strconv.FormatInt(secs, 10)+"s")
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return "", &EnqueueError{Target: target, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &EnqueueError{Target: target, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out publishResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		q.logger.Warn("Unexpected QStash response body", zap.String("target", target), zap.Error(err))
	}
	q.logger.Info("Message enqueued",
		zap.String("target", target),
		zap.String("message_id", out.MessageID),
		zap.Duration("delay", delay),
		zap.Int("retries", retries),
	)
	return out.MessageID, nil
}
