package models

// uniform error responses
type ErrorResponse struct {
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	Details   []ValidationErrorDetail `json:"details,omitempty"`
	Retriable bool                    `json:"retriable,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// single field validation error
type ValidationErrorDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// QuotaErrorResponse is returned with 429 when a daily or per-interview limit is hit.
type QuotaErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

type TimerStartResponse struct {
	StartTime      int64 `json:"startTime"`   // epoch milliseconds
	ElapsedTime    int64 `json:"elapsedTime"` // seconds
	AlreadyStarted bool  `json:"alreadyStarted"`
}

type ElapsedResponse struct {
	ElapsedTime int64 `json:"elapsedTime"`
	MaxDuration int64 `json:"maxDuration"`
	Exceeded    bool  `json:"exceeded"`
}

type CompleteInterviewResponse struct {
	Message string          `json:"message"`
	Status  InterviewStatus `json:"status"`
}

// UsageEntry is one resource kind in the usage report. Unlimited callers see -1.
type UsageEntry struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

type UsageResponse struct {
	Date      string                `json:"date"`
	Unlimited bool                  `json:"unlimited"`
	Usage     map[string]UsageEntry `json:"usage"`
}

type InterviewListResponse struct {
	Interviews []Interview `json:"interviews"`
}

type MessageListResponse struct {
	Messages []ChatMessage `json:"messages"`
}

type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Score   *int   `json:"score,omitempty"`
}
