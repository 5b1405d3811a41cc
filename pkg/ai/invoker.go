package ai

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/margin-labs/margin/pkg/domain/ai"
	"github.com/margin-labs/margin/pkg/domain/review"
)

// Generation policy. These are engine constants, not caller-tunable:
// review prompts want low-temperature, bounded output, and a hard
// per-attempt deadline.
const (
	attemptTimeout    = 60 * time.Second
	temperature       = 0.3
	maxOutputTokens   = 8000
	DefaultMaxRetries = 3
	initialBackoff    = time.Second
)

// classification keyword sets, matched case-insensitively against the
// provider failure text. Substring matching is a known fragility: the
// provider contract exposes no structured error codes, so the message
// is all there is to go on.
var errorKeywords = []struct {
	code     review.ErrorCode
	keywords []string
}{
	{review.ErrRateLimitExceeded, []string{"rate limit", "too many requests"}},
	{review.ErrInvalidAPIKey, []string{"invalid api key", "unauthorized", "authentication"}},
	{review.ErrBillingError, []string{"billing", "payment", "quota exceeded", "insufficient"}},
}

// ClassifyError maps a provider failure onto a review error code.
// Anything not matching a known keyword set is the generic, retryable
// ai_request_failed class.
func ClassifyError(err error) review.ErrorCode {
	msg := strings.ToLower(err.Error())
	for _, class := range errorKeywords {
		for _, kw := range class.keywords {
			if strings.Contains(msg, kw) {
				return class.code
			}
		}
	}
	return review.ErrAIRequestFailed
}

// Invoker wraps a provider with retry, backoff, and failure
// classification. Retries apply only to the generic failure class;
// rate-limit, auth, and billing failures short-circuit.
type Invoker struct {
	provider   ai.Provider
	maxRetries int
	logger     *slog.Logger
	timeout    timeout.Timeout[*ai.CompletionResponse]

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an invoker with the default retry budget.
// maxRetries counts additional attempts after the first; a nil logger
// falls back to slog.Default().
func NewInvoker(provider ai.Provider, maxRetries int, logger *slog.Logger) *Invoker {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		provider:   provider,
		maxRetries: maxRetries,
		logger:     logger,
		timeout: timeout.New[*ai.CompletionResponse](timeout.Config{
			DefaultTimeout: attemptTimeout,
		}),
		sleep: sleepCtx,
	}
}

// Invoke sends the prompt to the provider and returns the raw response
// text. Transient failures are retried with exponential backoff (1s,
// 2s, 4s, ...) up to maxRetries additional attempts; the backoff sleep
// happens before each retry, never before the first attempt. The
// returned error is always a *review.Error.
func (inv *Invoker) Invoke(ctx context.Context, prompt, systemInstruction string) (string, error) {
	var lastErr *review.Error

	for attempt := 0; attempt <= inv.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff << (attempt - 1)
			inv.logger.Debug("retrying AI request",
				"provider", inv.provider.ID(),
				"attempt", attempt+1,
				"backoff", backoff)
			if err := inv.sleep(ctx, backoff); err != nil {
				return "", review.NewError(review.ErrAIRequestFailed, "review cancelled while waiting to retry", err)
			}
		}

		resp, err := inv.complete(ctx, prompt, systemInstruction)
		if err == nil {
			return resp.Text, nil
		}

		code := ClassifyError(err)
		lastErr = review.NewError(code, "AI request failed", err)
		inv.logger.Debug("AI request failed",
			"provider", inv.provider.ID(),
			"attempt", attempt+1,
			"code", string(code),
			"error", err)

		if !code.Retryable() {
			return "", lastErr
		}
	}

	return "", lastErr
}

func (inv *Invoker) complete(ctx context.Context, prompt, systemInstruction string) (*ai.CompletionResponse, error) {
	return inv.timeout.Execute(ctx, attemptTimeout, func(ctx context.Context) (*ai.CompletionResponse, error) {
		return inv.provider.Complete(ctx, ai.CompletionRequest{
			Prompt:      prompt,
			System:      systemInstruction,
			Temperature: temperature,
			MaxTokens:   maxOutputTokens,
		})
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
