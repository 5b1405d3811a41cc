// Package parser extracts and validates feedback from raw AI output.
//
// The AI response is untrusted: it may wrap the JSON in prose or code
// fences, use a legacy bare-array shape, reference blocks that do not
// exist, or be garbage. Extraction and decoding are lenient — a
// response that yields nothing usable is an empty result, not an error.
// Individual items are validated independently; invalid items are
// dropped, never fatal to the batch.
package parser

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/margin-labs/margin/pkg/domain/review"
)

const feedbackSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["feedback"],
  "properties": {
    "summary": { "type": "string" },
    "feedback": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["block_id", "category", "severity", "title", "feedback"],
        "properties": {
          "block_id": { "type": "string" },
          "category": { "type": "string" },
          "severity": { "type": "string" },
          "title": { "type": "string" },
          "feedback": { "type": "string" },
          "suggestion": { "type": "string" }
        }
      }
    }
  }
}`

var feedbackSchemaLoader = gojsonschema.NewStringLoader(feedbackSchemaJSON)

// Result is the parsed and validated outcome of one AI response.
type Result struct {
	Summary string
	Items   []review.FeedbackItem
}

// Parse extracts the feedback payload from raw AI output and validates
// every item against the blocks of the current request. Items whose
// block reference does not resolve are dropped — this is the guard
// against hallucinated references. Drops and schema issues are reported
// through logger at debug level; nil falls back to slog.Default().
func Parse(raw string, blocks []review.Block, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}

	payload := extractJSONPayload(raw)
	if payload == "" {
		logger.Debug("no JSON payload in AI response", "response_len", len(raw))
		return Result{}
	}

	// Schema validation is a fast-path signal only; the lenient decode
	// below handles many non-conforming responses.
	documentLoader := gojsonschema.NewStringLoader(payload)
	if result, err := gojsonschema.Validate(feedbackSchemaLoader, documentLoader); err != nil {
		logger.Debug("feedback schema validation error", "error", err)
	} else if !result.Valid() {
		for _, desc := range result.Errors() {
			logger.Debug("feedback schema issue", "issue", desc.String())
		}
	}

	summary, rawItems := decodePayload(payload)

	blockByID := make(map[string]review.Block, len(blocks))
	for _, b := range blocks {
		blockByID[b.ID] = b
	}

	var items []review.FeedbackItem
	for _, rawItem := range rawItems {
		item, ok := validateItem(rawItem, blockByID)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	if dropped := len(rawItems) - len(items); dropped > 0 {
		logger.Debug("dropped invalid feedback items", "candidates", len(rawItems), "dropped", dropped)
	}

	return Result{
		Summary: Truncate(SanitizeRich(summary), MaxSummaryChars),
		Items:   items,
	}
}

// decodePayload decodes the extracted span, accepting both the current
// {summary, feedback} object shape and the legacy bare-array shape.
// Undecodable payloads yield an empty result.
func decodePayload(payload string) (string, []map[string]interface{}) {
	var envelope map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &envelope); err == nil {
		summary, _ := envelope["summary"].(string)
		list, _ := envelope["feedback"].([]interface{})
		return summary, itemMaps(list)
	}

	var list []interface{}
	if err := json.Unmarshal([]byte(payload), &list); err == nil {
		return "", itemMaps(list)
	}

	return "", nil
}

func itemMaps(list []interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, entry := range list {
		if m, ok := entry.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// validateItem runs the predicate chain for one candidate item. The
// returned item is sanitized, truncated, and enriched with the matched
// block's type and position.
func validateItem(raw map[string]interface{}, blockByID map[string]review.Block) (review.FeedbackItem, bool) {
	blockID := getString(raw, "block_id", "blockId", "block-id")
	if blockID == "" {
		return review.FeedbackItem{}, false
	}
	block, ok := blockByID[blockID]
	if !ok {
		return review.FeedbackItem{}, false
	}

	category := review.FocusArea(strings.ToLower(getString(raw, "category")))
	severity := review.Severity(strings.ToLower(getString(raw, "severity")))
	title := getString(raw, "title")
	body := getString(raw, "feedback", "body")
	if !category.IsValid() || !severity.IsValid() || title == "" || body == "" {
		return review.FeedbackItem{}, false
	}

	item := review.FeedbackItem{
		BlockID:    blockID,
		BlockType:  block.Type,
		BlockIndex: block.Position,
		Category:   category,
		Severity:   severity,
		Title:      Truncate(SanitizePlain(title), MaxTitleChars),
		Body:       Truncate(SanitizeRich(body), MaxBodyChars),
	}
	if item.Title == "" || item.Body == "" {
		return review.FeedbackItem{}, false
	}

	if suggestion := SanitizeRich(getString(raw, "suggestion")); suggestion != "" {
		item.Suggestion = Truncate(suggestion, MaxSuggestionChars)
	}

	return item, true
}

func getString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			if str, ok := value.(string); ok {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

// extractJSONPayload locates the JSON span inside free-form AI output.
// It prefers an object span carrying a feedback or summary key, falls
// back to an array span, and finally to the trimmed text itself when it
// already looks like JSON. Returns "" when no span is found.
func extractJSONPayload(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	if clean == "" {
		return ""
	}

	if span := spanBetween(clean, "{", "}"); span != "" {
		var probe map[string]interface{}
		if err := json.Unmarshal([]byte(span), &probe); err == nil {
			if _, ok := probe["feedback"]; ok {
				return span
			}
			if _, ok := probe["summary"]; ok {
				return span
			}
		}
	}

	if span := spanBetween(clean, "[", "]"); span != "" {
		var probe []interface{}
		if err := json.Unmarshal([]byte(span), &probe); err == nil {
			return span
		}
	}

	if strings.HasPrefix(clean, "{") || strings.HasPrefix(clean, "[") {
		return clean
	}

	return ""
}

func spanBetween(text, open, close string) string {
	start := strings.Index(text, open)
	end := strings.LastIndex(text, close)
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

// Summarize aggregates item counts with zero-initialized buckets for
// every category and severity.
func Summarize(items []review.FeedbackItem) review.Stats {
	stats := review.Stats{
		ByCategory: make(map[review.FocusArea]int, len(review.AllFocusAreas)),
		BySeverity: make(map[review.Severity]int, len(review.AllSeverities)),
	}
	for _, area := range review.AllFocusAreas {
		stats.ByCategory[area] = 0
	}
	for _, severity := range review.AllSeverities {
		stats.BySeverity[severity] = 0
	}
	for _, item := range items {
		stats.ByCategory[item.Category]++
		stats.BySeverity[item.Severity]++
		if item.Severity == review.SeverityCritical {
			stats.HasCritical = true
		}
	}
	return stats
}
