package chi

import "time"

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeParseError        ErrorCode = "parse_error"
	CodeEmptyContent      ErrorCode = "empty_content"
	CodePayloadTooLarge   ErrorCode = "payload_too_large"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeNotFound          ErrorCode = "not_found"
	CodeMethodNotAllowed  ErrorCode = "method_not_allowed"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ScoreRequest is the body of POST /v1/score.
type ScoreRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
}

// TruncationFlags reports which inputs were cut before embedding.
type TruncationFlags struct {
	Resume         bool `json:"resume"`
	JobDescription bool `json:"job_description"`
}

// ScoreResponse is returned by both score endpoints.
type ScoreResponse struct {
	ID                  string          `json:"id"`
	Score               float64         `json:"score"`
	Tier                string          `json:"tier"`
	Message             string          `json:"message"`
	Note                string          `json:"note"`
	ResumeChars         int             `json:"resume_chars"`
	JobDescriptionChars int             `json:"job_description_chars"`
	Truncated           TruncationFlags `json:"truncated"`
	Degraded            bool            `json:"degraded"`
	Error               string          `json:"error,omitempty"`
}

// ExtractResponse is returned by POST /v1/extract.
type ExtractResponse struct {
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	Text      string `json:"text"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
}

// UsageMetrics holds consumption counters.
type UsageMetrics struct {
	Tokens int64 `json:"tokens"`
}

// BudgetStatus is the budget part of a UsageResponse.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// UsageResponse is returned by GET /v1/usage.
type UsageResponse struct {
	Period        string       `json:"period"`
	Provider      string       `json:"provider,omitempty"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Usage         UsageMetrics `json:"usage"`
	Budget        BudgetStatus `json:"budget"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
