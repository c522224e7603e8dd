package interview

import (
	"errors"
	"fmt"

	"github.com/songer666/jobs-ai/internal/quota"
)

var (
	ErrNotOwner           = errors.New("interview belongs to another user")
	ErrNotFound           = errors.New("interview not found")
	ErrJobNotFound        = errors.New("job posting not found")
	ErrQuestionCapReached = errors.New("question limit reached for this interview")
	ErrInvalidState       = errors.New("operation not allowed in the current interview status")
	ErrStreamConsumed     = errors.New("question stream already consumed")
	ErrEmptyGeneration    = errors.New("language model returned no content")
	ErrModelUnavailable   = errors.New("no provider is configured for the requested model")
)

// Feedback stored when an interview is forced to completed without a score.
const (
	FeedbackSchedulingFailed   = "Evaluation could not be scheduled. Please contact support."
	FeedbackEvaluationFailed   = "Sorry, we could not generate an evaluation for this interview. Please try again later or contact support."
	FeedbackEvaluationTimedOut = "The evaluation did not finish in time. Please contact support."
)

// QuotaExceededError reports a used-up daily allowance.
type QuotaExceededError struct {
	Kind      quota.Kind
	Limit     int
	Remaining int
	Message   string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %s", e.Kind, e.Message)
}

// QuestionCapError reports the per-interview question limit. It matches
// ErrQuestionCapReached under errors.Is.
type QuestionCapError struct {
	Limit int
	Asked int
}

func (e *QuestionCapError) Error() string {
	return fmt.Sprintf("this interview has reached its limit of %d questions, please finish the interview to see your feedback", e.Limit)
}

func (e *QuestionCapError) Is(target error) bool {
	return target == ErrQuestionCapReached
}

// SchedulingError wraps a failed dispatcher enqueue.
type SchedulingError struct {
	Target string
	Err    error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling %s failed: %v", e.Target, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// EvaluationError wraps a failed language model call or an unusable result
// inside the evaluation webhook.
type EvaluationError struct {
	InterviewID string
	Err         error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation of interview %s failed: %v", e.InterviewID, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
