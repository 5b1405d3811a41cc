package cli

import (
	"errors"
	"fmt"

	"github.com/margin-labs/margin/pkg/domain/review"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var revErr *review.Error
	if !errors.As(err, &revErr) {
		return err
	}

	switch revErr.Code {
	case review.ErrDocumentNotFound:
		return NewCLIError(revErr.Message, "Ingest the document first with 'margin review <file>'", err)
	case review.ErrNoBlocks:
		return NewCLIError(revErr.Message, "Add content blocks to the document before reviewing", err)
	case review.ErrTooManyBlocks:
		return NewCLIError(revErr.Message, "Split the document or review a section at a time", err)
	case review.ErrRateLimitExceeded:
		return NewCLIError(revErr.Message, "The provider is rate limiting; wait a minute and retry", err)
	case review.ErrInvalidAPIKey:
		return NewCLIError(revErr.Message, "Check the provider API key in your environment", err)
	case review.ErrBillingError:
		return NewCLIError(revErr.Message, "Check your provider billing and quota", err)
	default:
		return NewCLIError(revErr.Message, "Retry; transient provider failures are already retried with backoff", err)
	}
}
