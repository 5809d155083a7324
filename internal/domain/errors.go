package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals that a required input is missing or blank.
	ErrValidation = errors.New("validation failed")
	// ErrUnsupportedFormat signals an upload whose extension is neither pdf nor docx.
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrParse signals bytes that cannot be read as the declared document format.
	ErrParse = errors.New("document parse error")
	// ErrEmptyContent signals a document that parsed but holds no readable text.
	ErrEmptyContent = errors.New("no extractable text found")
	// ErrPayloadTooLarge signals an upload above the configured size limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrScoring signals that a score could not be computed; callers fall back to 0.
	ErrScoring = errors.New("scoring failed")
	// ErrDimensionMismatch signals two embeddings of different length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector signals an embedding with zero magnitude.
	ErrZeroVector = errors.New("zero-magnitude vector")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingUnavailable signals that the provider circuit is open.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
)

// ParseError wraps ErrParse with the declared format and the parser's cause.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cannot read %s: %v", ErrParse.Error(), e.Format, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// NewParseError creates a parse error for the given format.
func NewParseError(format string, err error) error {
	return &ParseError{Format: format, Err: err}
}
