// Package application coordinates the review pipeline: prompt
// construction, AI invocation, response validation, and note
// reconciliation.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	infraai "github.com/margin-labs/margin/pkg/ai"
	domainai "github.com/margin-labs/margin/pkg/domain/ai"
	"github.com/margin-labs/margin/pkg/domain/notes"
	"github.com/margin-labs/margin/pkg/domain/review"
	"github.com/margin-labs/margin/pkg/parser"
	"github.com/margin-labs/margin/pkg/prompt"
)

// ReviewService is the top-level coordinator for one review run. It
// holds no cross-call state; every run builds its data fresh and the
// external note store is the only persistence.
type ReviewService struct {
	docs       notes.DocumentRepository
	store      notes.Store
	provider   domainai.Provider
	maxRetries int
	logger     *slog.Logger

	// mock skips the provider entirely and feeds a deterministic canned
	// response through the rest of the pipeline.
	mock bool
}

func NewReviewService(docs notes.DocumentRepository, store notes.Store, provider domainai.Provider, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		docs:       docs,
		store:      store,
		provider:   provider,
		maxRetries: infraai.DefaultMaxRetries,
		logger:     logger,
	}
}

// WithMockMode returns the service with the canned-response mode
// toggled. Mock runs exercise validation, parsing, and reconciliation
// without a network dependency.
func (s *ReviewService) WithMockMode(mock bool) *ReviewService {
	s.mock = mock
	return s
}

// WithMaxRetries overrides the invoker retry budget. Negative values
// keep the default.
func (s *ReviewService) WithMaxRetries(n int) *ReviewService {
	if n >= 0 {
		s.maxRetries = n
	}
	return s
}

// Review runs the full pipeline for one document.
//
// Steps 1-3 (validation, AI invocation) fail the whole operation on
// error. Steps 4-5 degrade instead: an unparseable response is zero
// feedback, and a total note-persistence failure still returns the
// feedback items with NotesError set — once the costly AI call has
// succeeded, some output beats no output.
func (s *ReviewService) Review(ctx context.Context, documentID string, blocks []review.Block, opts review.ReviewOptions) (*review.ReviewResult, error) {
	reviewID := uuid.New().String()
	run, err := review.NewRunStateMachine(reviewID, documentID)
	if err != nil {
		return nil, err
	}

	// 1. Validate
	doc, err := s.docs.GetDocument(documentID)
	if err != nil {
		_ = run.Transition(review.EventFail)
		return nil, review.NewError(review.ErrDocumentNotFound, fmt.Sprintf("document %q could not be resolved", documentID), err)
	}
	if doc == nil {
		_ = run.Transition(review.EventFail)
		return nil, review.NewError(review.ErrDocumentNotFound, fmt.Sprintf("document %q does not exist", documentID), nil)
	}
	if len(blocks) == 0 {
		_ = run.Transition(review.EventFail)
		return nil, review.NewError(review.ErrNoBlocks, "nothing to review: the document has no content blocks", nil)
	}
	if len(blocks) > review.MaxBlocksPerReview {
		_ = run.Transition(review.EventFail)
		return nil, review.NewError(review.ErrTooManyBlocks, fmt.Sprintf("document has %d blocks, the limit is %d", len(blocks), review.MaxBlocksPerReview), nil)
	}

	opts.Normalize()
	if opts.DocumentTitle == "" {
		opts.DocumentTitle = doc.Title
	}
	isContinuation := opts.IsContinuation()

	// 2. Build prompt
	if err := run.Transition(review.EventBuild); err != nil {
		return nil, err
	}
	reviewPrompt := prompt.BuildReviewPrompt(blocks, opts, opts.ExistingFeedback)
	systemInstruction := prompt.SystemInstruction(isContinuation)

	// 3. Invoke AI
	if err := run.Transition(review.EventInvoke); err != nil {
		return nil, err
	}
	var rawResponse string
	if s.mock {
		rawResponse = mockResponse(blocks)
	} else {
		invoker := infraai.NewInvoker(s.provider, s.maxRetries, s.logger)
		rawResponse, err = invoker.Invoke(ctx, reviewPrompt, systemInstruction)
		if err != nil {
			_ = run.Transition(review.EventFail)
			return nil, err
		}
	}

	// 4. Parse & validate
	if err := run.Transition(review.EventParse); err != nil {
		return nil, err
	}
	parsed := parser.Parse(rawResponse, blocks, s.logger)
	s.logger.Debug("parsed AI response",
		"review", reviewID,
		"document", documentID,
		"items", len(parsed.Items))

	// 5. Reconcile notes
	if err := run.Transition(review.EventPersist); err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" && s.provider != nil {
		model = s.provider.ID()
	}
	reconciler := NewReconciler(s.store, s.logger)
	reconciled, notesErr := reconciler.Reconcile(documentID, parsed.Items, isContinuation, reviewID, model)

	// 6. Assemble
	if err := run.Transition(review.EventComplete); err != nil {
		return nil, err
	}
	result := &review.ReviewResult{
		ID:            reviewID,
		DocumentID:    documentID,
		Model:         model,
		Summary:       parsed.Summary,
		Items:         parsed.Items,
		NoteIDs:       reconciled.NoteIDs,
		BlockToNoteID: reconciled.BlockToNoteID,
		Stats:         parser.Summarize(parsed.Items),
		Warnings:      reconciled.Warnings,
		CreatedAt:     time.Now().UTC(),
	}
	if notesErr != nil {
		result.NotesError = notesErr.Error()
	}
	return result, nil
}

// mockResponse builds a deterministic well-formed response targeting
// the first block, for dry runs and tests.
func mockResponse(blocks []review.Block) string {
	payload := map[string]interface{}{
		"summary": "Mock review: the document was not sent to an AI provider.",
		"feedback": []map[string]string{
			{
				"block_id": blocks[0].ID,
				"category": string(review.FocusContent),
				"severity": string(review.SeveritySuggestion),
				"title":    "Mock feedback",
				"feedback": "This item was generated by mock mode to exercise the pipeline end to end.",
			},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
