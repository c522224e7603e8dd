package dispatch

import (
	"context"
	"fmt"
	"time"
)

// webhook targets served by this service
const (
	TargetEvaluateInterview = "evaluate-interview"
	TargetAutoEndInterview  = "auto-end-interview"
)

// Dispatcher hands payloads to an out-of-process delivery mechanism that later
// POSTs them to a webhook target. Both calls only report whether the enqueue step
// succeeded; delivery is at-least-once.
type Dispatcher interface {
	// Publish delivers as soon as possible, retrying delivery up to retries times.
	Publish(ctx context.Context, target string, payload any, retries int) (string, error)
	// Schedule delivers after delay.
	Schedule(ctx context.Context, target string, payload any, delay time.Duration, retries int) (string, error)
}

// URLResolver maps a webhook target to its absolute callback URL.
type URLResolver func(target string) string

// EnqueueError is returned when the dispatcher refused or could not accept a message.
type EnqueueError struct {
	Target     string
	StatusCode int
	Body       string
	Err        error
}

func (e *EnqueueError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("enqueue %s: status %d: %s", e.Target, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("enqueue %s: %v", e.Target, e.Err)
}

func (e *EnqueueError) Unwrap() error {
	return e.Err
}

func delaySeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
