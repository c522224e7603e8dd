package timer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/songer666/jobs-ai/internal/kv"
)

const keyPrefix = "interview:timer:"

func Key(interviewID string) string {
	return keyPrefix + interviewID
}

// Elapsed is a snapshot of an interview's session clock.
type Elapsed struct {
	Started  bool
	Start    time.Time
	Elapsed  time.Duration
	Max      time.Duration
	Exceeded bool
}

// SessionTimer stores one start timestamp (epoch ms) per interview. The record
// lives for twice the max session duration so stale entries clean themselves up.
type SessionTimer struct {
	store       kv.Store
	maxDuration time.Duration
	now         func() time.Time
}

func New(store kv.Store, maxDuration time.Duration) *SessionTimer {
	return &SessionTimer{store: store, maxDuration: maxDuration, now: time.Now}
}

// WithClock replaces the time source.
func (t *SessionTimer) WithClock(now func() time.Time) *SessionTimer {
	t.now = now
	return t
}

func (t *SessionTimer) Now() time.Time {
	return t.now()
}

// Get returns the recorded start time, if any.
func (t *SessionTimer) Get(ctx context.Context, interviewID string) (time.Time, bool, error) {
	val, ok, err := t.store.Get(ctx, Key(interviewID))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt timer for interview %s: %w", interviewID, err)
	}
	return time.UnixMilli(ms), true, nil
}

// Start records start for the interview unless a record already exists. It returns
// the start time that is in effect and whether this call wrote it. A record is
// never overwritten.
func (t *SessionTimer) Start(ctx context.Context, interviewID string, start time.Time) (time.Time, bool, error) {
	value := strconv.FormatInt(start.UnixMilli(), 10)
	won, err := t.store.SetNX(ctx, Key(interviewID), value, 2*t.maxDuration)
	if err != nil {
		return time.Time{}, false, err
	}
	if won {
		return time.UnixMilli(start.UnixMilli()), true, nil
	}
	existing, ok, err := t.Get(ctx, interviewID)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, fmt.Errorf("timer for interview %s vanished after conflicting start", interviewID)
	}
	return existing, false, nil
}

// Elapsed reads the clock. A missing record reports zero elapsed time.
func (t *SessionTimer) Elapsed(ctx context.Context, interviewID string) (Elapsed, error) {
	out := Elapsed{Max: t.maxDuration}
	start, ok, err := t.Get(ctx, interviewID)
	if err != nil || !ok {
		return out, err
	}
	out.Started = true
	out.Start = start
	out.Elapsed = t.Since(start)
	out.Exceeded = out.Elapsed >= t.maxDuration
	return out, nil
}

// Since returns now-start clamped to [0, max].
func (t *SessionTimer) Since(start time.Time) time.Duration {
	d := t.now().Sub(start)
	if d < 0 {
		return 0
	}
	if d > t.maxDuration {
		return t.maxDuration
	}
	return d
}

// Clear removes the timer record.
func (t *SessionTimer) Clear(ctx context.Context, interviewID string) error {
	return t.store.Del(ctx, Key(interviewID))
}
