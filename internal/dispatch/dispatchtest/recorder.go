// Package dispatchtest provides an in-memory Dispatcher that records calls.
package dispatchtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Call struct {
	Kind    string // "publish" or "schedule"
	Target  string
	Payload json.RawMessage
	Delay   time.Duration
	Retries int
}

// Decode unmarshals the recorded payload into v.
func (c Call) Decode(v any) error {
	return json.Unmarshal(c.Payload, v)
}

type Recorder struct {
	mu          sync.Mutex
	calls       []Call
	PublishErr  error
	ScheduleErr error
}

func (r *Recorder) Publish(ctx context.Context, target string, payload any, retries int) (string, error) {
	return r.record("publish", target, payload, 0, retries, r.PublishErr)
}

func (r *Recorder) Schedule(ctx context.Context, target string, payload any, delay time.Duration, retries int) (string, error) {
	return r.record("schedule", target, payload, delay, retries, r.ScheduleErr)
}

func (r *Recorder) record(kind, target string, payload any, delay time.Duration, retries int, fail error) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: kind, Target: target, Payload: raw, Delay: delay, Retries: retries})
	if fail != nil {
		return "", fail
	}
	return fmt.Sprintf("msg_%d", len(r.calls)), nil
}

// Calls returns the recorded calls of the given kind, or all calls when kind is empty.
func (r *Recorder) Calls(kind string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if kind == "" || c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) SetPublishErr(err error) {
	r.mu.Lock()
	r.PublishErr = err
	r.mu.Unlock()
}

func (r *Recorder) SetScheduleErr(err error) {
	r.mu.Lock()
	r.ScheduleErr = err
	r.mu.Unlock()
}
