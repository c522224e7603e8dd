package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InterviewStatus is the lifecycle state of an interview. It only moves forward,
// except that any non-terminal state may be forced to completed.
type InterviewStatus string

const (
	StatusPending    InterviewStatus = "pending"
	StatusInProgress InterviewStatus = "in_progress"
	StatusEvaluating InterviewStatus = "evaluating"
	StatusCompleted  InterviewStatus = "completed"
)

var statusOrder = []InterviewStatus{StatusPending, StatusInProgress, StatusEvaluating, StatusCompleted}

var statusRank = map[InterviewStatus]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusEvaluating: 2,
	StatusCompleted:  3,
}

// CanTransitionTo reports whether the edge s -> next exists in the state diagram.
// Regular edges advance exactly one step; the escape edge to completed is open
// from every state except completed itself.
func (s InterviewStatus) CanTransitionTo(next InterviewStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	if next == StatusCompleted {
		return s != StatusCompleted
	}
	return to == from+1
}

// SourcesOf lists, in lifecycle order, every status with an edge into next.
// Conditional status writes use it as their expected-previous set.
func SourcesOf(next InterviewStatus) []InterviewStatus {
	var out []InterviewStatus
	for _, s := range statusOrder {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// Interview is the durable record of one mock interview session.
type Interview struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string          `gorm:"not null;index" json:"userId"`
	JobInfoID     string          `gorm:"not null;index" json:"jobInfoId"`
	JobInfo       *JobInfo        `gorm:"foreignKey:JobInfoID" json:"jobInfo,omitempty"`
	Duration      *int            `json:"duration"` // seconds
	Feedback      *string         `gorm:"type:text" json:"feedback"`
	Score         *int            `json:"score"`
	Status        InterviewStatus `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	Language      string          `gorm:"type:varchar(8);not null;default:zh" json:"language"`
	Model         string          `gorm:"type:varchar(16);not null;default:gemini" json:"model"`
	QuestionCount int             `gorm:"not null;default:0" json:"questionCount"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (i *Interview) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Status == "" {
		i.Status = StatusPending
	}
	return nil
}

// OwnedBy reports whether userID created the interview.
func (i *Interview) OwnedBy(userID string) bool {
	return i != nil && userID != "" && i.UserID == userID
}

// ChatMessage is one entry of an interview's transcript. Messages are append-only
// and read back in creation order.
type ChatMessage struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	InterviewID string    `gorm:"not null;index" json:"interviewId"`
	Role        string    `gorm:"type:varchar(16);not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		// v7 ids sort by creation time, which breaks created_at ties deterministically
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id.String()
	}
	return nil
}

// JobInfo is the job posting an interview is conducted against.
type JobInfo struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          *string   `gorm:"index" json:"userId,omitempty"`
	IsPublic        bool      `gorm:"not null;default:false" json:"isPublic"`
	Name            string    `gorm:"not null" json:"name"`
	Title           string    `json:"title"`
	Description     string    `gorm:"type:text;not null" json:"description"`
	ExperienceLevel string    `gorm:"type:varchar(16);not null" json:"experienceLevel"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (j *JobInfo) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// AccessibleBy reports whether userID may run interviews against this job.
func (j *JobInfo) AccessibleBy(userID string) bool {
	if j == nil {
		return false
	}
	return j.IsPublic || (j.UserID != nil && *j.UserID == userID)
}

// Context returns the subset of the job posting that is sent to the language model.
func (j *JobInfo) Context() JobContext {
	if j == nil {
		return JobContext{ExperienceLevel: DefaultExperienceLevel}
	}
	level := j.ExperienceLevel
	if level == "" {
		level = DefaultExperienceLevel
	}
	return JobContext{Title: j.Title, Description: j.Description, ExperienceLevel: level}
}

// JobContext is the job description carried along with prompts and evaluation payloads.
type JobContext struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ExperienceLevel string `json:"experienceLevel"`
}

// Message is a role/content pair of a conversation, as exchanged with clients,
// the dispatcher and the language model.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}
