package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/margin-labs/margin/internal/infrastructure/config"
	"github.com/margin-labs/margin/internal/infrastructure/logging"
	"github.com/margin-labs/margin/internal/infrastructure/storage"
	"github.com/margin-labs/margin/internal/infrastructure/wiring"
	"github.com/margin-labs/margin/pkg/application"
	domainai "github.com/margin-labs/margin/pkg/domain/ai"
	"github.com/margin-labs/margin/pkg/domain/notes"
	"github.com/margin-labs/margin/pkg/domain/review"
)

var (
	reviewContinue bool
	reviewFocus    []string
	reviewTone     string
	reviewModel    string
	reviewMock     bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <document.json>",
	Short: "Review a document and store feedback as margin notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		ws := storage.NewFilesystemWorkspace(cwd)
		if !ws.IsInitialized() {
			return fmt.Errorf("margin is not initialized here; run 'margin init' first")
		}

		doc, err := loadDocumentFile(args[0])
		if err != nil {
			return err
		}
		if err := ws.SaveDocument(doc); err != nil {
			return fmt.Errorf("ingest document: %w", err)
		}

		opts := review.ReviewOptions{
			TargetTone:    review.Tone(reviewTone),
			DocumentTitle: doc.Title,
			Model:         reviewModel,
		}
		for _, f := range reviewFocus {
			opts.FocusAreas = append(opts.FocusAreas, review.FocusArea(strings.ToLower(strings.TrimSpace(f))))
		}
		if reviewContinue {
			threads, err := ws.ThreadsForDocument(doc.ID)
			if err != nil {
				return fmt.Errorf("load prior feedback: %w", err)
			}
			opts.ExistingFeedback = threads
		}

		var provider domainai.Provider
		if !reviewMock {
			provider, err = wiring.LoadAIProvider(cwd, reviewModel)
			if err != nil {
				return err
			}
		}

		logger := logging.WorkspaceLogger(cwd)
		defer logging.Close() //nolint:errcheck // best-effort flush on exit

		service := application.NewReviewService(ws, ws, provider, logger).WithMockMode(reviewMock)
		if cfg, err := config.LoadAIConfig(cwd); err == nil && cfg != nil && cfg.MaxRetries > 0 {
			service = service.WithMaxRetries(cfg.MaxRetries)
		}
		result, err := service.Review(context.Background(), doc.ID, doc.Blocks, opts)
		if err != nil {
			return MapError(err)
		}

		printResult(result)
		return nil
	},
}

// loadDocumentFile reads a block-document JSON file, deriving the
// document id from the filename when the file carries none and filling
// missing block ids and positions by index.
func loadDocumentFile(path string) (*notes.Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied document path
	if err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}

	var doc notes.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document file: %w", err)
	}

	if doc.ID == "" {
		base := filepath.Base(path)
		doc.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if doc.Title == "" {
		doc.Title = doc.ID
	}
	for i := range doc.Blocks {
		if doc.Blocks[i].ID == "" {
			doc.Blocks[i].ID = fmt.Sprintf("block-%d", i+1)
		}
		doc.Blocks[i].Position = i
		if doc.Blocks[i].Type == "" {
			doc.Blocks[i].Type = "paragraph"
		}
	}
	return &doc, nil
}

func printResult(result *review.ReviewResult) {
	fmt.Printf("Review %s (%s)\n", result.ID, result.Model)
	if result.Summary != "" {
		fmt.Printf("\n%s\n", result.Summary)
	}
	if len(result.Items) == 0 {
		fmt.Println("\nNo feedback — the document looks good.")
		return
	}

	fmt.Printf("\n%d feedback item(s):\n", len(result.Items))
	for _, item := range result.Items {
		fmt.Printf("- [%s/%s] block %s: %s\n", item.Category, item.Severity, item.BlockID, item.Title)
	}
	if result.Stats.HasCritical {
		fmt.Println("\nCritical issues found — the document should not ship as-is.")
	}
	if result.NotesError != "" {
		fmt.Printf("\nWARNING: feedback could not be saved as notes (%s); items above are not persisted.\n", result.NotesError)
	}
	for _, warning := range result.Warnings {
		fmt.Printf("WARNING: %s\n", warning)
	}
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewContinue, "continue", false, "follow-up review using prior feedback threads")
	reviewCmd.Flags().StringSliceVar(&reviewFocus, "focus", nil, "focus areas: content, tone, flow, design (default content,tone,flow)")
	reviewCmd.Flags().StringVar(&reviewTone, "tone", "", "target tone: professional, casual, academic, friendly")
	reviewCmd.Flags().StringVar(&reviewModel, "model", "", "override the configured model identifier")
	reviewCmd.Flags().BoolVar(&reviewMock, "mock", false, "skip the AI provider and run with a canned response")
	RootCmd.AddCommand(reviewCmd)
}
