package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalDispatcher delivers messages from inside the process. It is used in
// development when no QStash token is configured: payloads are POSTed to the
// service's own webhook URLs after the requested delay.
type LocalDispatcher struct {
	resolve    URLResolver
	signingKey string
	httpClient *http.Client
	logger     *zap.Logger
	backoff    time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	closed  bool
}

func NewLocalDispatcher(resolve URLResolver, signingKey string, logger *zap.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		resolve:    resolve,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
		backoff:    time.Second,
		pending:    make(map[string]*time.Timer),
	}
}

// WithBackoff sets the base wait between delivery attempts.
func (d *LocalDispatcher) WithBackoff(b time.Duration) *LocalDispatcher {
	d.backoff = b
	return d
}

func (d *LocalDispatcher) Publish(ctx context.Context, target string, payload any, retries int) (string, error) {
	return d.enqueue(target, payload, 0, retries)
}

func (d *LocalDispatcher) Schedule(ctx context.Context, target string, payload any, delay time.Duration, retries int) (string, error) {
	return d.enqueue(target, payload, delay, retries)
}

func (d *LocalDispatcher) enqueue(target string, payload any, delay time.Duration, retries int) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &EnqueueError{Target: target, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", &EnqueueError{Target: target, Err: fmt.Errorf("dispatcher closed")}
	}

	id := "local_" + uuid.NewString()
	url := d.resolve(target)
	d.wg.Add(1)
	d.pending[id] = time.AfterFunc(max(delay, 0), func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		d.deliver(id, target, url, body, retries)
	})

	d.logger.Info("Message enqueued locally",
		zap.String("target", target),
		zap.String("message_id", id),
		zap.Duration("delay", delay),
		zap.Int("retries", retries),
	)
	return id, nil
}

func (d *LocalDispatcher) deliver(id, target, url string, body []byte, retries int) {
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * d.backoff)
		}
		err := d.post(url, body)
		if err == nil {
			d.logger.Info("Message delivered", zap.String("target", target), zap.String("message_id", id), zap.Int("attempt", attempt+1))
			return
		}
		d.logger.Warn("Message delivery failed",
			zap.String("target", target),
			zap.String("message_id", id),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	d.logger.Error("Message dropped after retries", zap.String("target", target), zap.String("message_id", id))
}

func (d *LocalDispatcher) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.signingKey != "" {
		sig, err := Sign(d.signingKey, url, body, time.Now())
		if err != nil {
			return err
		}
		req.Header.Set(SignatureHeader, sig)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

func (d *LocalDispatcher) pendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close cancels undelivered messages and waits for in-flight deliveries.
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	if len(d.pending) > 0 {
		d.logger.Warn("Dropping undelivered messages", zap.Int("count", len(d.pending)))
	}
	for id, t := range d.pending {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.pending, id)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
