package interview

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/songer666/jobs-ai/internal/config"
	"github.com/songer666/jobs-ai/internal/dispatch"
	"github.com/songer666/jobs-ai/internal/llm"
	"github.com/songer666/jobs-ai/internal/models"
	"github.com/songer666/jobs-ai/internal/prompts"
	"github.com/songer666/jobs-ai/internal/quota"
	"github.com/songer666/jobs-ai/internal/repositories"
	"github.com/songer666/jobs-ai/internal/timer"
)

// InterviewStore is the durable record store for interviews.
type InterviewStore interface {
	Create(ctx context.Context, interview *models.Interview) error
	GetByID(ctx context.Context, id string) (*models.Interview, error)
	ListByUser(ctx context.Context, userID string) ([]models.Interview, error)
	TransitionStatus(ctx context.Context, id string, from []models.InterviewStatus, to models.InterviewStatus, upd repositories.StatusUpdate) (bool, error)
	IncrementQuestionCount(ctx context.Context, id string, limit int) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteIfStatus(ctx context.Context, id string, status models.InterviewStatus) (bool, error)
	ListStale(ctx context.Context, status models.InterviewStatus, before time.Time, limit int) ([]models.Interview, error)
}

// TranscriptLog is the append-only message log of an interview.
type TranscriptLog interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	ListByInterview(ctx context.Context, interviewID string) ([]models.ChatMessage, error)
}

type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.JobInfo, error)
}

// PromptBuilder renders the system prompt for a mode and variant.
type PromptBuilder interface {
	BuildPrompt(mode, variant, language string, data any) (string, error)
}

// Deps are the collaborators of the Service.
type Deps struct {
	Interviews  InterviewStore
	Transcripts TranscriptLog
	Jobs        JobStore
	Quota       *quota.Counter
	Timer       *timer.SessionTimer
	Dispatcher  dispatch.Dispatcher
	Providers   *llm.Set
	Prompts     PromptBuilder
	Observer    Observer
}

// Service is the interview state machine. Every status change is a conditional
// write, so concurrent triggers racing for the same edge resolve to one winner.
type Service struct {
	interviews  InterviewStore
	transcripts TranscriptLog
	jobs        JobStore
	quota       *quota.Counter
	timer       *timer.SessionTimer
	dispatcher  dispatch.Dispatcher
	providers   *llm.Set
	prompts     PromptBuilder
	observer    Observer
	cfg         config.InterviewConfig
	logger      *zap.Logger
}

func NewService(deps Deps, cfg config.InterviewConfig, logger *zap.Logger) *Service {
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{
		interviews:  deps.Interviews,
		transcripts: deps.Transcripts,
		jobs:        deps.Jobs,
		quota:       deps.Quota,
		timer:       deps.Timer,
		dispatcher:  deps.Dispatcher,
		providers:   deps.Providers,
		prompts:     deps.Prompts,
		observer:    observer,
		cfg:         cfg,
		logger:      logger,
	}
}

// Create records a pending interview. The interview-start quota is checked but not charged.
func (s *Service) Create(ctx context.Context, caller models.Caller, req *models.CreateInterviewRequest) (*models.Interview, error) {
	// the model choice is fixed for the interview's lifetime
	if !s.providers.Has(req.Model) {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, req.Model)
	}

	job, err := s.jobs.GetByID(ctx, req.JobInfoID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", req.JobInfoID, err)
	}
	if !job.AccessibleBy(caller.ID) {
		return nil, ErrJobNotFound
	}

	if err := s.checkQuota(ctx, caller, quota.KindInterview); err != nil {
		return nil, err
	}

	iv := &models.Interview{
		UserID:    caller.ID,
		JobInfoID: job.ID,
		Status:    models.StatusPending,
		Language:  req.Language,
		Model:     req.Model,
	}
	if err := s.interviews.Create(ctx, iv); err != nil {
		return nil, fmt.Errorf("create interview: %w", err)
	}
	iv.JobInfo = job

	s.observer.InterviewCreated()
	s.logger.Info("Interview created",
		zap.String("interview_id", iv.ID),
		zap.String("user_id", caller.ID),
		zap.String("job_info_id", job.ID),
	)
	return iv, nil
}

// Get returns the interview if the caller owns it.
func (s *Service) Get(ctx context.Context, caller models.Caller, id string) (*models.Interview, error) {
	iv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !iv.OwnedBy(caller.ID) {
		return nil, ErrNotOwner
	}
	return iv, nil
}

func (s *Service) List(ctx context.Context, caller models.Caller) ([]models.Interview, error) {
	return s.interviews.ListByUser(ctx, caller.ID)
}

// Delete removes the interview with its transcript and session timer. A pending
// auto-end delivery for it becomes a no-op.
func (s *Service) Delete(ctx context.Context, caller models.Caller, id string) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	if err := s.interviews.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete interview %s: %w", id, err)
	}
	if err := s.timer.Clear(ctx, id); err != nil {
		s.logger.Warn("Failed to clear session timer", zap.String("interview_id", id), zap.Error(err))
	}
	s.logger.Info("Interview deleted", zap.String("interview_id", id), zap.String("user_id", caller.ID))
	return nil
}

// TimerStart is the result of StartTimer.
type TimerStart struct {
	Start          time.Time
	Elapsed        time.Duration
	AlreadyStarted bool
}

// StartTimer starts the session clock once. The auto-end delivery is scheduled
// before the timer is written and the quota charged, so a failed schedule leaves
// nothing behind.
func (s *Service) StartTimer(ctx context.Context, caller models.Caller, id string) (TimerStart, error) {
	iv, err := s.Get(ctx, caller, id)
	if err != nil {
		return TimerStart{}, err
	}

	start, ok, err := s.timer.Get(ctx, id)
	if err != nil {
		return TimerStart{}, fmt.Errorf("read timer: %w", err)
	}
	if ok {
		return TimerStart{Start: start, Elapsed: s.timer.Since(start), AlreadyStarted: true}, nil
	}

	if iv.Status != models.StatusPending && iv.Status != models.StatusInProgress {
		return TimerStart{}, ErrInvalidState
	}
	if err := s.checkQuota(ctx, caller, quota.KindInterview); err != nil {
		return TimerStart{}, err
	}

	payload := models.AutoEndInterviewPayload{InterviewID: id}
	if _, err := s.dispatcher.Schedule(ctx, dispatch.TargetAutoEndInterview, payload, s.cfg.MaxDuration, 0); err != nil {
		s.logger.Error("Failed to schedule auto-end",
			zap.String("interview_id", id),
			zap.String("user_id", caller.ID),
			zap.Error(err),
		)
		return TimerStart{}, &SchedulingError{Target: dispatch.TargetAutoEndInterview, Err: err}
	}

	start, created, err := s.timer.Start(ctx, id, s.timer.Now())
	if err != nil {
		return TimerStart{}, fmt.Errorf("write timer: %w", err)
	}
	if !created {
		// a concurrent start won; its schedule covers the session and ours will no-op
		return TimerStart{Start: start, Elapsed: s.timer.Since(start), AlreadyStarted: true}, nil
	}

	if _, err := s.quota.Increment(ctx, caller.ID, quota.KindInterview); err != nil {
		s.logger.Warn("Failed to charge interview quota", zap.String("user_id", caller.ID), zap.Error(err))
	}

	s.observer.InterviewStarted()
	s.logger.Info("Interview timer started",
		zap.String("interview_id", id),
		zap.String("user_id", caller.ID),
		zap.Time("start", start),
	)
	return TimerStart{Start: start}, nil
}

// Elapsed reads the session clock.
func (s *Service) Elapsed(ctx context.Context, caller models.Caller, id string) (timer.Elapsed, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return timer.Elapsed{}, err
	}
	return s.timer.Elapsed(ctx, id)
}

// GenerateQuestion prepares the next question. Question n = question_count+1; the
// last slot is the closing question, which skips the daily question quota.
func (s *Service) GenerateQuestion(ctx context.Context, caller models.Caller, id, difficulty string) (*QuestionStream, error) {
	iv, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if iv.Status != models.StatusPending && iv.Status != models.StatusInProgress {
		return nil, ErrInvalidState
	}

	limit := s.cfg.MaxQuestions
	number := iv.QuestionCount + 1
	if number > limit {
		return nil, &QuestionCapError{Limit: limit, Asked: iv.QuestionCount}
	}
	closing := number == limit
	if !closing {
		if err := s.checkQuota(ctx, caller, quota.KindQuestion); err != nil {
			return nil, err
		}
	}

	if iv.Status == models.StatusPending {
		moved, err := s.interviews.TransitionStatus(ctx, id, models.SourcesOf(models.StatusInProgress), models.StatusInProgress, repositories.StatusUpdate{})
		if err != nil {
			return nil, fmt.Errorf("start interview %s: %w", id, err)
		}
		if !moved {
			if iv, err = s.load(ctx, id); err != nil {
				return nil, err
			}
			if iv.Status != models.StatusInProgress {
				return nil, ErrInvalidState
			}
		}
	}

	history, err := s.transcripts.ListByInterview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	stage := prompts.QuestionStage(number, limit)
	system, err := s.prompts.BuildPrompt(prompts.ModeQuestion, stage, iv.Language, prompts.QuestionData{
		Job:            promptJob(iv.JobInfo.Context()),
		Difficulty:     difficulty,
		QuestionNumber: number,
		MaxQuestions:   limit,
		CandidateName:  caller.DisplayName(),
	})
	if err != nil {
		return nil, err
	}

	provider := s.provider(iv.Model)
	req := llm.Request{System: system, Messages: conversation(history, fmt.Sprintf("Please ask question %d.", number))}
	source := provider.Stream(ctx, req)

	commit := func(ctx context.Context, text string) error {
		counted, err := s.interviews.IncrementQuestionCount(ctx, id, limit)
		if err != nil {
			return fmt.Errorf("count question: %w", err)
		}
		if !counted {
			s.logger.Warn("Question generated but not counted",
				zap.String("interview_id", id),
				zap.Int("question", number),
			)
			return ErrInvalidState
		}
		if !closing {
			if _, err := s.quota.Increment(ctx, caller.ID, quota.KindQuestion); err != nil {
				s.logger.Warn("Failed to charge question quota", zap.String("user_id", caller.ID), zap.Error(err))
			}
		}
		s.observer.QuestionGenerated(stage)
		s.logger.Info("Question generated",
			zap.String("interview_id", id),
			zap.Int("question", number),
			zap.String("stage", stage),
			zap.Int("length", len(text)),
		)
		return nil
	}
	return newQuestionStream(ctx, number, stage, source, commit), nil
}

// AnswerFeedback streams short feedback on one answer. It touches no counters.
func (s *Service) AnswerFeedback(ctx context.Context, caller models.Caller, id string, req *models.AnswerFeedbackRequest) (iter.Seq2[string, error], error) {
	iv, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	system, err := s.prompts.BuildPrompt(prompts.ModeAnswerFeedback, prompts.DefaultVariant, iv.Language, prompts.AnswerFeedbackData{
		Job:      promptJob(iv.JobInfo.Context()),
		Question: req.Question,
		Answer:   req.Answer,
	})
	if err != nil {
		return nil, err
	}
	msgs := []models.Message{{Role: models.RoleUser, Content: req.Answer}}
	return s.provider(iv.Model).Stream(ctx, llm.Request{System: system, Messages: msgs}), nil
}

// Messages returns the transcript in creation order.
func (s *Service) Messages(ctx context.Context, caller models.Caller, id string) ([]models.ChatMessage, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.transcripts.ListByInterview(ctx, id)
}

// AppendMessage adds one entry to the transcript of an unfinished interview.
func (s *Service) AppendMessage(ctx context.Context, caller models.Caller, id string, req *models.AppendMessageRequest) (*models.ChatMessage, error) {
	iv, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if iv.Status == models.StatusCompleted {
		return nil, ErrInvalidState
	}
	msg := &models.ChatMessage{InterviewID: id, Role: req.Role, Content: req.Content}
	if err := s.transcripts.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// Usage reports today's quota counters for the caller.
func (s *Service) Usage(ctx context.Context, caller models.Caller) (*models.UsageResponse, error) {
	usage, err := s.quota.Usage(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := &models.UsageResponse{
		Date:      s.quota.Today(),
		Unlimited: s.quota.Unlimited(caller),
		Usage:     make(map[string]models.UsageEntry, len(usage)),
	}
	for kind, entry := range usage {
		out.Usage[string(kind)] = entry
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Interview, error) {
	iv, err := s.interviews.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load interview %s: %w", id, err)
	}
	return iv, nil
}

func (s *Service) checkQuota(ctx context.Context, caller models.Caller, kind quota.Kind) error {
	res, err := s.quota.Check(ctx, caller, kind)
	if err != nil {
		return fmt.Errorf("check %s quota: %w", kind, err)
	}
	if !res.Allowed {
		s.observer.QuotaRejected(string(kind))
		return &QuotaExceededError{Kind: kind, Limit: res.Limit, Remaining: 0, Message: res.Message}
	}
	return nil
}

func (s *Service) provider(model string) llm.Provider {
	p, dedicated := s.providers.For(model)
	if !dedicated {
		s.logger.Debug("No dedicated provider for model, using default",
			zap.String("model", model),
			zap.String("provider", p.GetProviderName()),
		)
	}
	return p
}

func promptJob(j models.JobContext) prompts.Job {
	return prompts.Job{Title: j.Title, Description: j.Description, ExperienceLevel: j.ExperienceLevel}
}

// conversation turns the transcript into model input, making sure it ends with a
// user turn.
func conversation(history []models.ChatMessage, nudge string) []models.Message {
	msgs := toMessages(history)
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != models.RoleUser {
		msgs = append(msgs, models.Message{Role: models.RoleUser, Content: nudge})
	}
	return msgs
}
