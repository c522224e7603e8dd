package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/llm"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/prompts"
	"github.com/songer666/jobs-ai/internal/repositories"
	"github.com/songer666/jobs-ai/internal/scoring"
)

// RequestCompletion is the candidate ending the interview.
func (s *Service) RequestCompletion(ctx context.Context, caller models.Caller, id string, req *models.CompleteInterviewRequest) (EndResult, error) {
	iv, err := s.Get(ctx, caller, id)
	if err != nil {
		return EndResult{}, err
	}
	if iv.Status != models.StatusInProgress {
		return EndResult{Status: iv.Status}, ErrInvalidState
	}
	if req.UserName != "" {
		caller.Name = req.UserName
	}
	return s.endSession(ctx, iv, ManualCompletion{
		Caller:     caller,
		Transcript: req.ConversationHistory,
		Duration:   req.Duration,
	})
}

// AutoEnd is the scheduled deadline. Anything but an in-progress interview is a
// successful no-op, including one that no longer exists.
func (s *Service) AutoEnd(ctx context.Context, id string) (EndResult, error) {
	iv, err := s.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("Auto-end for missing interview ignored", zap.String("interview_id", id))
		return EndResult{Skipped: true}, nil
	}
	if err != nil {
		return EndResult{}, err
	}
	if iv.Status != models.StatusInProgress {
		s.logger.Info("Auto-end ignored",
			zap.String("interview_id", id),
			zap.String("status", string(iv.Status)),
		)
		return EndResult{Status: iv.Status, Skipped: true}, nil
	}
	return s.endSession(ctx, iv, AutoEndTrigger{})
}

// endSession owns the in_progress -> evaluating edge. The conditional write picks
// one winner among concurrent triggers; only the winner publishes.
func (s *Service) endSession(ctx context.Context, iv *models.Interview, trigger Trigger) (EndResult, error) {
	log := s.logger.With(
		zap.String("interview_id", iv.ID),
		zap.String("user_id", iv.UserID),
		zap.String("trigger", trigger.Name()),
	)

	var (
		duration   int
		transcript []models.Message
		userName   = models.DefaultCandidateName
	)
	switch t := trigger.(type) {
	case ManualCompletion:
		userName = t.Caller.DisplayName()
		transcript = t.Transcript
		if t.Duration != nil {
			duration = *t.Duration
		} else {
			elapsed, err := s.timer.Elapsed(ctx, iv.ID)
			if err != nil {
				log.Warn("Failed to read session timer", zap.Error(err))
			}
			duration = int(elapsed.Elapsed / time.Second)
		}
	case AutoEndTrigger:
		duration = int(s.cfg.MaxDuration / time.Second)
	}

	if len(transcript) == 0 {
		stored, err := s.transcripts.ListByInterview(ctx, iv.ID)
		if err != nil {
			return EndResult{}, fmt.Errorf("load transcript: %w", err)
		}
		transcript = toMessages(stored)
	}

	won, err := s.interviews.TransitionStatus(ctx, iv.ID,
		models.SourcesOf(models.StatusEvaluating), models.StatusEvaluating,
		repositories.StatusUpdate{Duration: &duration})
	if err != nil {
		return EndResult{}, fmt.Errorf("begin evaluation: %w", err)
	}
	if !won {
		log.Info("End session lost the race, another trigger already ended it")
		if _, ok := trigger.(AutoEndTrigger); ok {
			return EndResult{Skipped: true}, nil
		}
		return EndResult{}, ErrInvalidState
	}

	payload := models.EvaluateInterviewPayload{
		InterviewID:         iv.ID,
		JobInfo:             iv.JobInfo.Context(),
		ConversationHistory: transcript,
		UserName:            userName,
		Language:            iv.Language,
		Model:               iv.Model,
	}
	if _, err := s.dispatcher.Publish(ctx, dispatch.TargetEvaluateInterview, payload, s.cfg.EvaluationRetries); err != nil {
		log.Error("Failed to publish evaluation, completing without a score", zap.Error(err))
		if _, ferr := s.ForceComplete(ctx, iv.ID, FeedbackSchedulingFailed); ferr != nil {
			return EndResult{}, fmt.Errorf("fallback completion: %w", ferr)
		}
		s.observer.EvaluationCompleted(OutcomeFallback)
		return EndResult{Status: models.StatusCompleted, Fallback: true}, nil
	}

	s.observer.EvaluationDispatched(trigger.Name())
	log.Info("Evaluation dispatched",
		zap.Int("duration", duration),
		zap.Int("messages", len(transcript)),
	)
	return EndResult{Status: models.StatusEvaluating, Dispatched: true}, nil
}

// ApplyEvaluationResult completes the interview with the evaluation. It reports
// false when the interview was already completed.
func (s *Service) ApplyEvaluationResult(ctx context.Context, id, feedback string, score *int) (bool, error) {
	return s.interviews.TransitionStatus(ctx, id, models.SourcesOf(models.StatusCompleted), models.StatusCompleted,
		repositories.StatusUpdate{Feedback: &feedback, Score: score, ClearScore: score == nil})
}

// ForceComplete takes the escape edge to completed with a diagnostic message and no score.
func (s *Service) ForceComplete(ctx context.Context, id, feedback string) (bool, error) {
	return s.interviews.TransitionStatus(ctx, id, models.SourcesOf(models.StatusCompleted), models.StatusCompleted,
		repositories.StatusUpdate{Feedback: &feedback, ClearScore: true})
}

// failEvaluation completes the interview with the diagnostic message after the
// evaluation could not be produced.
func (s *Service) failEvaluation(ctx context.Context, log *zap.Logger, id string, cause error) (Evaluation, error) {
	log.Error("Evaluation failed, completing without a score", zap.Error(cause))
	if _, err := s.ForceComplete(ctx, id, FeedbackEvaluationFailed); err != nil {
		return Evaluation{}, fmt.Errorf("fallback completion: %w", err)
	}
	s.observer.EvaluationCompleted(OutcomeFailed)
	return Evaluation{
		Outcome:  OutcomeFailed,
		Feedback: FeedbackEvaluationFailed,
		Err:      &EvaluationError{InterviewID: id, Err: cause},
	}, nil
}

// Evaluation is the result of one evaluate-interview delivery.
type Evaluation struct {
	Outcome  string
	Score    *int
	Feedback string
	// Err is set when no evaluation could be produced; the interview has still been completed.
	Err error
}

// Evaluate scores an interview from the webhook payload. Redeliveries for a
// completed interview are no-ops. A model failure is absorbed by completing the
// interview with a diagnostic message; only store failures are returned.
func (s *Service) Evaluate(ctx context.Context, p *models.EvaluateInterviewPayload) (Evaluation, error) {
	log := s.logger.With(zap.String("interview_id", p.InterviewID))

	iv, err := s.load(ctx, p.InterviewID)
	if errors.Is(err, ErrNotFound) {
		log.Info("Evaluation for missing interview ignored")
		return Evaluation{Outcome: OutcomeDuplicate}, nil
	}
	if err != nil {
		return Evaluation{}, err
	}
	if iv.Status == models.StatusCompleted {
		log.Info("Interview already completed, evaluation skipped")
		s.observer.EvaluationCompleted(OutcomeDuplicate)
		return Evaluation{Outcome: OutcomeDuplicate, Score: iv.Score}, nil
	}

	duration := 0
	if iv.Duration != nil {
		duration = *iv.Duration
	}
	system, err := s.prompts.BuildPrompt(prompts.ModeEvaluation, prompts.DefaultVariant, p.Language, prompts.EvaluationData{
		Job:             promptJob(p.JobInfo),
		CandidateName:   p.UserName,
		DurationMinutes: duration / 60,
		Transcript:      renderTranscript(p.ConversationHistory),
	})
	if err != nil {
		return s.failEvaluation(ctx, log, iv.ID, fmt.Errorf("build evaluation prompt: %w", err))
	}

	model := p.Model
	if model == "" {
		model = iv.Model
	}
	text, err := s.provider(model).Generate(ctx, llm.Request{
		System:   system,
		Messages: []models.Message{{Role: models.RoleUser, Content: "Please evaluate the interview above."}},
	})
	if err != nil {
		return s.failEvaluation(ctx, log, iv.ID, err)
	}

	score := scoring.Parse(text)
	applied, err := s.ApplyEvaluationResult(ctx, iv.ID, text, score)
	if err != nil {
		return Evaluation{}, fmt.Errorf("store evaluation: %w", err)
	}
	if !applied {
		log.Info("Interview completed concurrently, evaluation discarded")
		s.observer.EvaluationCompleted(OutcomeDuplicate)
		return Evaluation{Outcome: OutcomeDuplicate}, nil
	}

	outcome := OutcomeScored
	if score == nil {
		outcome = OutcomeUnscored
		log.Warn("No score found in evaluation")
	}
	s.observer.EvaluationCompleted(outcome)
	fields := []zap.Field{zap.String("outcome", outcome)}
	if score != nil {
		fields = append(fields, zap.Int("score", *score))
	}
	log.Info("Interview evaluated", fields...)
	return Evaluation{Outcome: outcome, Score: score, Feedback: text}, nil
}

func toMessages(stored []models.ChatMessage) []models.Message {
	out := make([]models.Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, models.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func renderTranscript(msgs []models.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		speaker := "Candidate"
		if m.Role == models.RoleAssistant {
			speaker = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", speaker, strings.TrimSpace(m.Content))
	}
	return strings.TrimSpace(b.String())
}
