package interview

// Observer receives domain events for metrics.
type Observer interface {
	InterviewCreated()
	InterviewStarted()
	QuestionGenerated(stage string)
	EvaluationDispatched(trigger string)
	EvaluationCompleted(outcome string)
	QuotaRejected(kind string)
}

// evaluation outcomes
const (
	OutcomeScored    = "scored"
	OutcomeUnscored  = "unscored"
	OutcomeFailed    = "failed"
	OutcomeFallback  = "fallback"
	OutcomeTimedOut  = "timed_out"
	OutcomeDuplicate = "duplicate"
)

type nopObserver struct{}

func (nopObserver) InterviewCreated() {}
func (nopObserver) InterviewStarted() {}
func (nopObserver) QuestionGenerated(string) {}
func (nopObserver) EvaluationDispatched(string) {}
func (nopObserver) EvaluationCompleted(string) {}
func (nopObserver) QuotaRejected(string) {}
