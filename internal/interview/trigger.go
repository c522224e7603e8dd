package interview

import "github.com/songer666/jobs-ai/internal/models"

// Trigger is the origin of an end-session request. Both origins converge on
// Service.endSession, which owns the in_progress -> evaluating edge.
type Trigger interface {
	Name() string
	isTrigger()
}

// ManualCompletion is the candidate pressing "finish".
type ManualCompletion struct {
	Caller models.Caller
	// Transcript as seen by the client; the stored transcript is used when empty.
	Transcript []models.Message
	// Duration in seconds; the session timer is used when nil.
	Duration *int
}

func (ManualCompletion) Name() string { return "manual" }
func (ManualCompletion) isTrigger() {}

// AutoEndTrigger is the scheduled deadline firing.
type AutoEndTrigger struct{}

func (AutoEndTrigger) Name() string { return "auto_end" }
func (AutoEndTrigger) isTrigger() {}

// EndResult describes what an end-session call did.
type EndResult struct {
	Status models.InterviewStatus
	// Dispatched is true when this call published the evaluation.
	Dispatched bool
	// Fallback is true when publishing failed and the interview was forced to completed.
	Fallback bool
	// Skipped is true when the call had no effect because another trigger won.
	Skipped bool
}
