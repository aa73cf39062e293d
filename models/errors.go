package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout      = "PEEK_TIMEOUT"
	ErrCodeFetchFailed  = "FETCH_FAILED"
	ErrCodeRenderFailed = "RENDER_FAILED"
	ErrCodeNoDocument   = "NO_DOCUMENT"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PeekError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type PeekError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *PeekError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PeekError) Unwrap() error {
	return e.Err
}

// NewPeekError creates a new PeekError.
func NewPeekError(code, message string, err error) *PeekError {
	return &PeekError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *PeekError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
