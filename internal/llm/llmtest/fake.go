// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/songer666/jobs-ai/internal/llm"
)

// Fake replays Chunks for every call. When Err is set, Generate fails and Stream
// yields Err after the chunks.
type Fake struct {
	Name   string
	Chunks []string
	Err    error

	mu       sync.Mutex
	requests []llm.Request
}

func (f *Fake) GetProviderName() string {
	if f.Name == "" {
		return "fake"
	}
	return f.Name
}

func (f *Fake) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.record(req)
	if f.Err != nil {
		return "", f.Err
	}
	return strings.Join(f.Chunks, ""), nil
}

func (f *Fake) Stream(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
	f.record(req)
	return func(yield func(string, error) bool) {
		for _, c := range f.Chunks {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if f.Err != nil {
			yield("", f.Err)
		}
	}
}

func (f *Fake) record(req llm.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

// Requests returns every request received so far.
func (f *Fake) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}
