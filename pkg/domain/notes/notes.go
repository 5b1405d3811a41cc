// Package notes defines the note store and document repository
// contracts the review pipeline persists against.
package notes

import (
	"time"

	"github.com/margin-labs/margin/pkg/domain/review"
)

// AuthorAI marks notes created by the review engine rather than a person.
const AuthorAI = "margin-ai"

// Metadata is the structured annotation attached to every AI note.
type Metadata struct {
	Category   review.FocusArea `json:"category"`
	Severity   review.Severity  `json:"severity"`
	BlockID    string           `json:"block_id"`
	BlockType  string           `json:"block_type,omitempty"`
	BlockIndex int              `json:"block_index"`
	ReviewID   string           `json:"review_id"`
	Model      string           `json:"model,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Note is one feedback record attached to a document. ParentID is empty
// for thread roots.
type Note struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	ParentID   string   `json:"parent_id,omitempty"`
	Body       string   `json:"body"`
	Author     string   `json:"author"`
	Metadata   Metadata `json:"metadata"`
}

// CreateNoteRequest carries the fields for one note write.
type CreateNoteRequest struct {
	DocumentID string
	ParentID   string
	Body       string
	Author     string
	Metadata   Metadata
}

// Store is the persistence collaborator for notes. Implementations own
// their storage schema; the pipeline treats note ids as opaque.
type Store interface {
	// CreateNote persists one note and returns its id.
	CreateNote(req CreateNoteRequest) (string, error)

	// FindExistingThread returns the top-level note id for a block, or
	// "" if none exists. Lookup is by exact blockID first; blockType and
	// blockIndex support fallback matching when editor block ids have
	// rotated between sessions.
	FindExistingThread(documentID, blockID, blockType string, blockIndex int) (string, error)
}

// Document is the reviewable unit held by the document repository.
type Document struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Blocks []review.Block `json:"blocks"`
}

// DocumentRepository resolves document ids for review validation.
type DocumentRepository interface {
	// GetDocument returns the document, or nil if the id is unknown.
	GetDocument(id string) (*Document, error)
}
