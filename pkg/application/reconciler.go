package application

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/margin-labs/margin/pkg/domain/notes"
	"github.com/margin-labs/margin/pkg/domain/review"
)

// documentBucket groups items that carry no block reference. Such items
// are persisted against the document as a whole and never appear in the
// block-to-note mapping.
const documentBucket = "document"

// ReconcileResult reports which notes were written and how blocks map
// to their thread roots.
type ReconcileResult struct {
	NoteIDs       []string
	BlockToNoteID map[string]string
	Warnings      []string
}

// Reconciler turns validated feedback items into note threads. Fresh
// reviews open a thread per block; continuation reviews append replies
// under the block's existing thread when one can be found.
type Reconciler struct {
	store  notes.Store
	logger *slog.Logger
}

func NewReconciler(store notes.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile persists the items for one review run. Individual note
// failures become warnings; the returned error is non-nil only when
// every single note creation failed, in which case the caller should
// still surface the unpersisted items.
func (r *Reconciler) Reconcile(documentID string, items []review.FeedbackItem, isContinuation bool, reviewID, model string) (*ReconcileResult, error) {
	result := &ReconcileResult{
		BlockToNoteID: make(map[string]string),
	}
	if len(items) == 0 {
		return result, nil
	}

	groups, order := groupByBlock(items)
	attempted := 0

	for _, blockID := range order {
		group := groups[blockID]

		parentID := ""
		if isContinuation && blockID != documentBucket {
			existing, err := r.store.FindExistingThread(documentID, blockID, group[0].BlockType, group[0].BlockIndex)
			if err != nil {
				r.logger.Debug("thread lookup failed", "document", documentID, "block", blockID, "error", err)
			} else if existing != "" {
				parentID = existing
				result.BlockToNoteID[blockID] = existing
			}
		}

		for _, item := range group {
			attempted++
			noteID, err := r.store.CreateNote(notes.CreateNoteRequest{
				DocumentID: documentID,
				ParentID:   parentID,
				Body:       formatNoteBody(item),
				Author:     notes.AuthorAI,
				Metadata: notes.Metadata{
					Category:   item.Category,
					Severity:   item.Severity,
					BlockID:    item.BlockID,
					BlockType:  item.BlockType,
					BlockIndex: item.BlockIndex,
					ReviewID:   reviewID,
					Model:      model,
					CreatedAt:  time.Now().UTC(),
				},
			})
			if err != nil {
				warning := fmt.Sprintf("note for block %s not saved: %v", blockID, err)
				result.Warnings = append(result.Warnings, warning)
				r.logger.Debug("note creation failed", "document", documentID, "block", blockID, "error", err)
				continue
			}

			result.NoteIDs = append(result.NoteIDs, noteID)
			if parentID == "" {
				// First surviving note of a fresh group roots the thread.
				parentID = noteID
				if blockID != documentBucket {
					result.BlockToNoteID[blockID] = noteID
				}
			}
		}
	}

	if attempted > 0 && len(result.NoteIDs) == 0 {
		return result, fmt.Errorf("all %d note creations failed", attempted)
	}
	return result, nil
}

// groupByBlock buckets items by block id in first-seen order. Items
// without a block id land in the synthetic document bucket.
func groupByBlock(items []review.FeedbackItem) (map[string][]review.FeedbackItem, []string) {
	groups := make(map[string][]review.FeedbackItem)
	var order []string
	for _, item := range items {
		key := item.BlockID
		if key == "" {
			key = documentBucket
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}
	return groups, order
}

// formatNoteBody renders an item as the note text shown to the author.
func formatNoteBody(item review.FeedbackItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n%s\n", item.Title, item.Body)
	if item.Suggestion != "" {
		fmt.Fprintf(&b, "\nSuggestion: %s\n", item.Suggestion)
	}
	fmt.Fprintf(&b, "\n[%s/%s]", item.Category, item.Severity)
	return b.String()
}
