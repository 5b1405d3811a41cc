package review

import "fmt"

// ErrorCode identifies a review failure class. Input codes are
// caller-correctable; transport codes come from the AI invoker.
type ErrorCode string

const (
	ErrDocumentNotFound ErrorCode = "document_not_found"
	ErrNoBlocks         ErrorCode = "no_blocks"
	ErrTooManyBlocks    ErrorCode = "too_many_blocks"

	ErrAIRequestFailed   ErrorCode = "ai_request_failed"
	ErrRateLimitExceeded ErrorCode = "rate_limit_exceeded"
	ErrInvalidAPIKey     ErrorCode = "invalid_api_key"
	ErrBillingError      ErrorCode = "billing_error"
)

// Error is a classified review failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified review error wrapping an optional cause.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Retryable reports whether the invoker may retry a failure of this
// class. Only the generic transport class is retryable; rate-limit,
// auth, and billing failures abort immediately.
func (c ErrorCode) Retryable() bool {
	return c == ErrAIRequestFailed
}
