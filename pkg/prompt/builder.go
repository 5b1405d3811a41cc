// Package prompt builds the review prompt and system instruction sent
// to the AI provider. Pure string construction, no side effects.
package prompt

import (
	"fmt"
	"strings"

	"github.com/margin-labs/margin/pkg/domain/review"
)

const (
	// maxBlockTextChars bounds a single block's contribution to the prompt.
	maxBlockTextChars = 2000
	// maxThreadBodyChars bounds a prior feedback body in the continuation section.
	maxThreadBodyChars = 500
	// maxReplyChars bounds a single reply line in the continuation section.
	maxReplyChars = 300

	threadSeparator = "---"
)

var focusExplanations = map[review.FocusArea]string{
	review.FocusContent: "CONTENT: Check accuracy, completeness, and clarity of the ideas. Flag unsupported claims, missing context, and passages a first-time reader could not follow.",
	review.FocusTone:    "TONE: Check that the voice matches the target tone consistently. Flag wording that drifts too formal, too casual, or off-brand for the requested voice.",
	review.FocusFlow:    "FLOW: Check the reading order and transitions. Flag abrupt jumps between ideas, paragraphs that belong elsewhere, and repetitive structure.",
	review.FocusDesign:  "DESIGN: Check the structural presentation. Flag walls of text, missing headings or lists where they would help, and inconsistent formatting.",
}

var toneGuidance = map[review.Tone]string{
	review.ToneProfessional: "The document targets a professional tone: confident, precise, and free of slang. Hold the writing to that standard.",
	review.ToneCasual:       "The document targets a casual tone: conversational and approachable. Do not penalize contractions or informal phrasing that serves readability.",
	review.ToneAcademic:     "The document targets an academic tone: measured, evidence-driven, and formally structured. Flag colloquialisms and unsupported generalizations.",
	review.ToneFriendly:     "The document targets a friendly tone: warm and encouraging without losing clarity. Flag wording that reads cold or bureaucratic.",
}

// BuildReviewPrompt renders the full review instruction for the given
// blocks and options. An empty block list is valid and produces a
// prompt that says so; rejecting it is the orchestrator's job.
func BuildReviewPrompt(blocks []review.Block, opts review.ReviewOptions, existing []review.FeedbackThread) string {
	var b strings.Builder

	b.WriteString("Task: Review the document below and return editorial feedback as JSON.\n")
	if opts.DocumentTitle != "" {
		fmt.Fprintf(&b, "Document title: %s\n", opts.DocumentTitle)
	}
	b.WriteString("\n")

	b.WriteString("FOCUS AREAS:\n")
	for _, area := range opts.FocusAreas {
		explanation, ok := focusExplanations[area]
		if !ok {
			continue
		}
		b.WriteString(explanation)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	guidance, ok := toneGuidance[opts.TargetTone]
	if !ok {
		guidance = toneGuidance[review.ToneProfessional]
	}
	b.WriteString(guidance)
	b.WriteString("\n\n")

	b.WriteString("DOCUMENT BLOCKS:\n")
	wrote := false
	for _, block := range blocks {
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "Block %s [%s]\n%s\n\n", block.ID, block.Type, clip(text, maxBlockTextChars))
		wrote = true
	}
	if !wrote {
		b.WriteString("(no content blocks)\n\n")
	}

	if len(existing) > 0 {
		b.WriteString(renderContinuation(existing))
	}

	b.WriteString(outputContract)
	return b.String()
}

// clip caps s at limit runes, appending a truncation marker when text
// was dropped. Rune counting keeps multibyte text intact.
func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + " [truncated]"
}

func renderContinuation(existing []review.FeedbackThread) string {
	var b strings.Builder
	b.WriteString("PREVIOUS REVIEW FEEDBACK:\n")
	b.WriteString("The document was reviewed before. The threads below show the earlier feedback and any author replies.\n\n")

	for i, thread := range existing {
		if i > 0 {
			b.WriteString(threadSeparator)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Block: %s] [%s/%s]\nAI Feedback: %s\n", thread.BlockID, thread.Category, thread.Severity, clip(thread.Body, maxThreadBodyChars))
		for _, reply := range thread.Replies {
			author := reply.Author
			if reply.IsFromAI || author == "" {
				author = "AI"
			}
			fmt.Fprintf(&b, "  %s: %s\n", author, clip(reply.Body, maxReplyChars))
		}
	}

	b.WriteString("\nDo NOT repeat feedback the author has already addressed or resolved. Only raise an earlier issue again if it is still present in the current blocks, and say it persists. Focus on new issues.\n\n")
	return b.String()
}

const outputContract = `OUTPUT FORMAT:
Return ONLY a JSON object with exactly two top-level keys and no surrounding text, no markdown, and no code fences:
{
  "summary": "One short paragraph summarizing the document's overall state.",
  "feedback": [
    {
      "block_id": "id of the block the feedback targets (must be one of the block ids above)",
      "category": "content | tone | flow | design",
      "severity": "suggestion | important | critical",
      "title": "short headline, at most 50 characters",
      "feedback": "the feedback itself, at most 300 characters",
      "suggestion": "optional concrete rewrite or fix, at most 200 characters"
    }
  ]
}
An empty "feedback" array is a valid answer for a document with no issues.
`

// SystemInstruction returns the fixed reviewer persona. When
// isContinuation is set, rules for follow-up reviews are appended.
func SystemInstruction(isContinuation bool) string {
	s := `You are an experienced editor reviewing a draft document. You are specific, constructive, and brief.

Rules:
- Every feedback item must target exactly one block by its id.
- Titles are headlines, not sentences. "Passive voice weakens claim" is good; "I think this sentence could maybe be improved" is bad.
- Severity "critical" means the document should not ship as-is. "important" means a reader will notice the problem. "suggestion" is polish.
- Never invent facts about the document. If a block is fine, say nothing about it.
- Respond with pure JSON matching the requested format. No prose before or after.`

	if isContinuation {
		s += `

This is a follow-up review:
- Do not repeat feedback that was previously given and has been addressed.
- Reuse the same block ids as the current document blocks.
- Prefer acknowledging improvements by staying silent about fixed issues.`
	}
	return s
}
