package parser_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/margin-labs/margin/pkg/domain/review"
	"github.com/margin-labs/margin/pkg/parser"
)

var testBlocks = []review.Block{
	{ID: "b1", Type: "paragraph", Text: "Plugins are easy.", Position: 0},
	{ID: "b2", Type: "heading", Text: "Getting started", Position: 1},
}

func TestParse_HappyPath(t *testing.T) {
	raw := `{"summary":"Needs more context.","feedback":[{"block_id":"b1","category":"content","severity":"suggestion","title":"Add context","feedback":"Jumps in too fast.","suggestion":"Explain why first."}]}`

	result := parser.Parse(raw, testBlocks, nil)

	if result.Summary != "Needs more context." {
		t.Errorf("unexpected summary: %q", result.Summary)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.BlockID != "b1" || item.Category != review.FocusContent || item.Severity != review.SeveritySuggestion {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.Suggestion != "Explain why first." {
		t.Errorf("unexpected suggestion: %q", item.Suggestion)
	}
	// Enrichment comes from the request blocks, not the AI.
	if item.BlockType != "paragraph" || item.BlockIndex != 0 {
		t.Errorf("expected enrichment from block b1, got type=%q index=%d", item.BlockType, item.BlockIndex)
	}
}

func TestParse_ProseWrappedJSON(t *testing.T) {
	raw := "Sure! Here is my review:\n```json\n" +
		`{"summary":"Fine.","feedback":[{"block_id":"b2","category":"flow","severity":"important","title":"Abrupt","feedback":"Transition missing."}]}` +
		"\n```\nLet me know if you need anything else."

	result := parser.Parse(raw, testBlocks, nil)
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if result.Items[0].BlockID != "b2" {
		t.Errorf("unexpected block id: %q", result.Items[0].BlockID)
	}
}

func TestParse_LegacyArrayShape(t *testing.T) {
	raw := `[{"block_id":"b1","category":"tone","severity":"suggestion","title":"Too stiff","feedback":"Loosen the phrasing."}]`

	result := parser.Parse(raw, testBlocks, nil)
	if result.Summary != "" {
		t.Errorf("legacy shape has no summary, got %q", result.Summary)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
}

func TestParse_HallucinatedBlockID(t *testing.T) {
	raw := `{"summary":"ok","feedback":[{"block_id":"b99","category":"content","severity":"suggestion","title":"Ghost","feedback":"References a block that does not exist."}]}`

	result := parser.Parse(raw, testBlocks, nil)
	if len(result.Items) != 0 {
		t.Errorf("expected hallucinated reference to be dropped, got %d items", len(result.Items))
	}
}

func TestParse_MalformedOutput(t *testing.T) {
	result := parser.Parse("Sorry, I can't help with that.", testBlocks, nil)
	if result.Summary != "" || len(result.Items) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestParse_EmptyFeedbackIsLegitimate(t *testing.T) {
	result := parser.Parse(`{"summary":"Looks great.","feedback":[]}`, testBlocks, nil)
	if result.Summary != "Looks great." {
		t.Errorf("unexpected summary: %q", result.Summary)
	}
	if len(result.Items) != 0 {
		t.Errorf("expected 0 items, got %d", len(result.Items))
	}
}

func TestParse_DropsInvalidItemsKeepsValid(t *testing.T) {
	raw := `{"summary":"mixed","feedback":[
		{"block_id":"b1","category":"content","severity":"suggestion","title":"Good","feedback":"Valid item."},
		{"block_id":"b1","category":"nonsense","severity":"suggestion","title":"Bad category","feedback":"Dropped."},
		{"block_id":"b1","category":"content","severity":"catastrophic","title":"Bad severity","feedback":"Dropped."},
		{"block_id":"b1","category":"content","severity":"critical","feedback":"Missing title."},
		{"block_id":"","category":"content","severity":"critical","title":"No block","feedback":"Dropped."},
		"not even an object"
	]}`

	result := parser.Parse(raw, testBlocks, nil)
	if len(result.Items) != 1 {
		t.Fatalf("expected only the valid item to survive, got %d", len(result.Items))
	}
	if result.Items[0].Title != "Good" {
		t.Errorf("wrong survivor: %+v", result.Items[0])
	}
}

func TestParse_TruncatesLongFields(t *testing.T) {
	long := strings.Repeat("x", 600)
	raw := `{"summary":"` + long + `","feedback":[{"block_id":"b1","category":"content","severity":"suggestion","title":"` + long + `","feedback":"` + long + `","suggestion":"` + long + `"}]}`

	result := parser.Parse(raw, testBlocks, nil)
	if utf8.RuneCountInString(result.Summary) != parser.MaxSummaryChars || !strings.HasSuffix(result.Summary, "...") {
		t.Errorf("summary not truncated: %d runes", utf8.RuneCountInString(result.Summary))
	}
	item := result.Items[0]
	if utf8.RuneCountInString(item.Title) != parser.MaxTitleChars {
		t.Errorf("title not truncated: %d runes", utf8.RuneCountInString(item.Title))
	}
	if utf8.RuneCountInString(item.Body) != parser.MaxBodyChars {
		t.Errorf("body not truncated: %d runes", utf8.RuneCountInString(item.Body))
	}
	if utf8.RuneCountInString(item.Suggestion) != parser.MaxSuggestionChars {
		t.Errorf("suggestion not truncated: %d runes", utf8.RuneCountInString(item.Suggestion))
	}
}

func TestParse_MultibyteFieldsWithinLimits(t *testing.T) {
	// 40 runes but 80 bytes; within the 50-char title limit.
	title := strings.Repeat("é", 40)
	raw := `{"summary":"ok","feedback":[{"block_id":"b1","category":"content","severity":"suggestion","title":"` + title + `","feedback":"Körper des Feedbacks."}]}`

	result := parser.Parse(raw, testBlocks, nil)
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.Title != title {
		t.Errorf("title within the limit must pass through unchanged, got %q", item.Title)
	}
	if !utf8.ValidString(item.Title) || !utf8.ValidString(item.Body) {
		t.Error("sanitized fields must stay valid UTF-8")
	}
}

func TestParse_MultibyteTruncationKeepsValidUTF8(t *testing.T) {
	title := strings.Repeat("é", 120)
	raw := `{"summary":"ok","feedback":[{"block_id":"b1","category":"content","severity":"suggestion","title":"` + title + `","feedback":"body"}]}`

	result := parser.Parse(raw, testBlocks, nil)
	item := result.Items[0]
	if utf8.RuneCountInString(item.Title) != parser.MaxTitleChars {
		t.Errorf("title should be capped at %d runes, got %d", parser.MaxTitleChars, utf8.RuneCountInString(item.Title))
	}
	if !utf8.ValidString(item.Title) {
		t.Errorf("truncation split a rune: %q", item.Title)
	}
}

func TestParse_DiagnosticsGoThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	parser.Parse("Sorry, I can't help with that.", testBlocks, logger)
	if !strings.Contains(buf.String(), "no JSON payload") {
		t.Errorf("expected a debug record for unusable output, got %q", buf.String())
	}

	buf.Reset()
	raw := `{"summary":"ok","feedback":[{"block_id":"b99","category":"content","severity":"suggestion","title":"Ghost","feedback":"x"}]}`
	parser.Parse(raw, testBlocks, logger)
	if !strings.Contains(buf.String(), "dropped") {
		t.Errorf("expected a debug record for dropped items, got %q", buf.String())
	}
}

func TestParse_CamelCaseBlockID(t *testing.T) {
	raw := `{"summary":"ok","feedback":[{"blockId":"b1","category":"content","severity":"suggestion","title":"Alias","feedback":"Key variant accepted."}]}`

	result := parser.Parse(raw, testBlocks, nil)
	if len(result.Items) != 1 {
		t.Fatalf("expected blockId alias to be accepted, got %d items", len(result.Items))
	}
}

func TestSummarize_ZeroInitializedBuckets(t *testing.T) {
	stats := parser.Summarize(nil)
	if len(stats.ByCategory) != 4 || len(stats.BySeverity) != 3 {
		t.Fatalf("expected all buckets present, got %+v", stats)
	}
	for area, n := range stats.ByCategory {
		if n != 0 {
			t.Errorf("category %s should be 0, got %d", area, n)
		}
	}
	if stats.HasCritical {
		t.Error("empty items should not report critical")
	}
}

func TestSummarize_Counts(t *testing.T) {
	items := []review.FeedbackItem{
		{Category: review.FocusContent, Severity: review.SeveritySuggestion},
		{Category: review.FocusContent, Severity: review.SeverityCritical},
		{Category: review.FocusFlow, Severity: review.SeverityImportant},
	}
	stats := parser.Summarize(items)
	if stats.ByCategory[review.FocusContent] != 2 || stats.ByCategory[review.FocusFlow] != 1 {
		t.Errorf("unexpected category counts: %+v", stats.ByCategory)
	}
	if stats.ByCategory[review.FocusDesign] != 0 {
		t.Errorf("unused category should report 0, got %d", stats.ByCategory[review.FocusDesign])
	}
	if !stats.HasCritical {
		t.Error("expected HasCritical")
	}
}
