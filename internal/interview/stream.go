package interview

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync/atomic"
)

var errStreamAborted = errors.New("question stream abandoned before completion")

// QuestionStream is the lazy, single-use sequence of chunks of one generated
// question. The question only counts once the sequence has been drained to the
// end with non-empty content and the request context is still alive.
type QuestionStream struct {
	Number int
	Stage  string

	ctx      context.Context
	source   iter.Seq2[string, error]
	commit   func(ctx context.Context, text string) error
	consumed atomic.Bool

	text      strings.Builder
	err       error
	committed bool
}

func newQuestionStream(ctx context.Context, number int, stage string, source iter.Seq2[string, error], commit func(context.Context, string) error) *QuestionStream {
	return &QuestionStream{
		Number: number,
		Stage:  stage,
		ctx:    ctx,
		source: source,
		commit: commit,
	}
}

// Chunks yields the generated text. A second call yields ErrStreamConsumed.
func (s *QuestionStream) Chunks() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}

		for chunk, err := range s.source {
			if err != nil {
				s.err = err
				yield("", err)
				return
			}
			s.text.WriteString(chunk)
			if !yield(chunk, nil) {
				s.err = errStreamAborted
				return
			}
		}

		if err := s.ctx.Err(); err != nil {
			s.err = err
			return
		}
		if strings.TrimSpace(s.text.String()) == "" {
			s.err = ErrEmptyGeneration
			yield("", s.err)
			return
		}
		if err := s.commit(s.ctx, s.text.String()); err != nil {
			s.err = err
			yield("", err)
			return
		}
		s.committed = true
	}
}

// Text is everything received so far.
func (s *QuestionStream) Text() string {
	return s.text.String()
}

// Err is the reason the stream did not commit, if any.
func (s *QuestionStream) Err() error {
	return s.err
}

// Committed reports whether the question was counted.
func (s *QuestionStream) Committed() bool {
	return s.committed
}
