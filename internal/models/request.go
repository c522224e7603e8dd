package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct tags and converts failures into an ErrorResponse
// carrying one detail per offending field.
func validateStruct(code string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ErrorResponse{Code: code, Message: err.Error()}
	}
	details := make([]ValidationErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, ValidationErrorDetail{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
		})
	}
	return &ErrorResponse{
		Code:    code,
		Message: fmt.Sprintf("%s is invalid", verrs[0].Field()),
		Details: details,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type CreateInterviewRequest struct {
	JobInfoID string `json:"jobInfoId" validate:"required"`
	Language  string `json:"language"`
	Model     string `json:"model"`
}

// implements the Validator interface
func (r *CreateInterviewRequest) Validate() error {
	r.Language = normalize(r.Language)
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	r.Model = normalize(r.Model)
	if r.Model == "" {
		r.Model = DefaultModel
	}
	if err := validateStruct("invalid_interview", r); err != nil {
		return err
	}
	if !SupportedLanguages[r.Language] {
		return &ErrorResponse{
			Code:    "unsupported_language",
			Message: "Language not supported. Supported languages: " + strings.Join(SupportedLanguagesList(), ", "),
		}
	}
	if !SupportedModels[r.Model] {
		return &ErrorResponse{
			Code:    "unsupported_model",
			Message: "Model not supported. Supported models: " + strings.Join(SupportedModelsList(), ", "),
		}
	}
	return nil
}

type GenerateQuestionRequest struct {
	Difficulty string `json:"difficulty"`
}

func (r *GenerateQuestionRequest) Validate() error {
	r.Difficulty = normalize(r.Difficulty)
	if r.Difficulty == "" {
		r.Difficulty = DefaultDifficulty
	}
	if !ValidDifficulties[r.Difficulty] {
		return &ErrorResponse{
			Code:    "invalid_difficulty",
			Message: "Difficulty must be one of: easy, medium, hard",
		}
	}
	return nil
}

type AnswerFeedbackRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}

func (r *AnswerFeedbackRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	r.Answer = strings.TrimSpace(r.Answer)
	return validateStruct("invalid_answer", r)
}

type CompleteInterviewRequest struct {
	Duration            *int      `json:"duration" validate:"omitempty,min=0"`
	UserName            string    `json:"userName"`
	ConversationHistory []Message `json:"conversationHistory" validate:"dive"`
}

func (r *CompleteInterviewRequest) Validate() error {
	r.UserName = strings.TrimSpace(r.UserName)
	return validateStruct("invalid_completion", r)
}

type AppendMessageRequest struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

func (r *AppendMessageRequest) Validate() error {
	r.Role = normalize(r.Role)
	return validateStruct("invalid_message", r)
}

// EvaluateInterviewPayload is the body delivered to the evaluate-interview webhook.
type EvaluateInterviewPayload struct {
	InterviewID         string     `json:"interviewId" validate:"required"`
	JobInfo             JobContext `json:"jobInfo"`
	ConversationHistory []Message  `json:"conversationHistory"`
	UserName            string     `json:"userName"`
	Language            string     `json:"language"`
	Model               string     `json:"model"`
}

func (p *EvaluateInterviewPayload) Validate() error {
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.UserName == "" {
		p.UserName = DefaultCandidateName
	}
	return validateStruct("invalid_payload", p)
}

// AutoEndInterviewPayload is the body delivered to the auto-end-interview webhook.
type AutoEndInterviewPayload struct {
	InterviewID string `json:"interviewId" validate:"required"`
}

func (p *AutoEndInterviewPayload) Validate() error {
	return validateStruct("invalid_payload", p)
}
