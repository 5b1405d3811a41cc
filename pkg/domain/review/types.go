// Package review defines the domain model for AI editorial reviews:
// the blocks under review, the options that shape a run, and the
// feedback the run produces.
package review

import "time"

// Block is one unit of document content as supplied by the caller.
// Blocks are read-only inputs; the pipeline never mutates them.
type Block struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// FocusArea is a category of review emphasis.
type FocusArea string

const (
	FocusContent FocusArea = "content"
	FocusTone    FocusArea = "tone"
	FocusFlow    FocusArea = "flow"
	FocusDesign  FocusArea = "design"
)

// AllFocusAreas lists every valid focus area in display order.
var AllFocusAreas = []FocusArea{FocusContent, FocusTone, FocusFlow, FocusDesign}

// IsValid reports whether the focus area is one of the known categories.
func (f FocusArea) IsValid() bool {
	switch f {
	case FocusContent, FocusTone, FocusFlow, FocusDesign:
		return true
	}
	return false
}

// Tone is the target voice the document should be reviewed against.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneAcademic     Tone = "academic"
	ToneFriendly     Tone = "friendly"
)

// Severity classifies how pressing a feedback item is.
type Severity string

const (
	SeveritySuggestion Severity = "suggestion"
	SeverityImportant  Severity = "important"
	SeverityCritical   Severity = "critical"
)

// AllSeverities lists every valid severity.
var AllSeverities = []Severity{SeveritySuggestion, SeverityImportant, SeverityCritical}

// IsValid reports whether the severity is one of the known levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeveritySuggestion, SeverityImportant, SeverityCritical:
		return true
	}
	return false
}

// ReviewOptions shapes a single review run. Construct with defaults via
// Normalize; zero values are filled in, invalid focus areas removed.
type ReviewOptions struct {
	FocusAreas       []FocusArea
	TargetTone       Tone
	DocumentTitle    string
	Model            string
	ExistingFeedback []FeedbackThread
}

// Normalize fills defaulted fields in place and drops unknown focus
// areas. The default focus set is content+tone+flow; the default tone
// is professional.
func (o *ReviewOptions) Normalize() {
	var areas []FocusArea
	for _, a := range o.FocusAreas {
		if a.IsValid() {
			areas = append(areas, a)
		}
	}
	if len(areas) == 0 {
		areas = []FocusArea{FocusContent, FocusTone, FocusFlow}
	}
	o.FocusAreas = areas

	switch o.TargetTone {
	case ToneProfessional, ToneCasual, ToneAcademic, ToneFriendly:
	default:
		o.TargetTone = ToneProfessional
	}
}

// IsContinuation reports whether this run has prior feedback to build on.
func (o *ReviewOptions) IsContinuation() bool {
	return len(o.ExistingFeedback) > 0
}

// FeedbackItem is one validated piece of AI feedback, anchored to a
// block of the document that produced it. BlockType and BlockIndex are
// enriched from the request's blocks, never taken from the AI.
type FeedbackItem struct {
	BlockID    string    `json:"block_id"`
	BlockType  string    `json:"block_type"`
	BlockIndex int       `json:"block_index"`
	Category   FocusArea `json:"category"`
	Severity   Severity  `json:"severity"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// ThreadReply is one reply within an existing feedback thread.
type ThreadReply struct {
	Author   string `json:"author"`
	Body     string `json:"body"`
	IsFromAI bool   `json:"is_from_ai"`
}

// FeedbackThread is the prior-feedback history for one block, supplied
// by the caller when starting a continuation review.
type FeedbackThread struct {
	TopLevelNoteID string        `json:"top_level_note_id"`
	BlockID        string        `json:"block_id"`
	Category       FocusArea     `json:"category"`
	Severity       Severity      `json:"severity"`
	Body           string        `json:"body"`
	Replies        []ThreadReply `json:"replies,omitempty"`
}

// Stats aggregates feedback counts. Buckets are zero-initialized for
// every category and severity so absent ones report 0, not missing.
type Stats struct {
	ByCategory  map[FocusArea]int `json:"by_category"`
	BySeverity  map[Severity]int  `json:"by_severity"`
	HasCritical bool              `json:"has_critical"`
}

// ReviewResult is the immutable outcome of one orchestration run.
type ReviewResult struct {
	ID            string            `json:"id"`
	DocumentID    string            `json:"document_id"`
	Model         string            `json:"model"`
	Summary       string            `json:"summary"`
	Items         []FeedbackItem    `json:"items"`
	NoteIDs       []string          `json:"note_ids"`
	BlockToNoteID map[string]string `json:"block_to_note_id"`
	Stats         Stats             `json:"stats"`
	// NotesError is set when note persistence failed entirely; the
	// feedback items are still returned unpersisted.
	NotesError string    `json:"notes_error,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaxBlocksPerReview bounds prompt size and provider cost.
const MaxBlocksPerReview = 100
