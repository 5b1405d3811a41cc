package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/margin-labs/margin/internal/infrastructure/config"
	"github.com/margin-labs/margin/internal/infrastructure/logging"
	"github.com/margin-labs/margin/internal/infrastructure/storage"
	"github.com/margin-labs/margin/internal/infrastructure/watch"
	"github.com/margin-labs/margin/internal/infrastructure/wiring"
	"github.com/margin-labs/margin/pkg/application"
	"github.com/margin-labs/margin/pkg/domain/review"
)

var watchDebounceMs int

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and re-review documents as they change",
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

		provider, err := wiring.LoadAIProvider(cwd, "")
		if err != nil {
			return err
		}
		logger := logging.WorkspaceLogger(cwd)
		defer logging.Close() //nolint:errcheck // best-effort flush on exit

		service := application.NewReviewService(ws, ws, provider, logger)
		if cfg, err := config.LoadAIConfig(cwd); err == nil && cfg != nil && cfg.MaxRetries > 0 {
			service = service.WithMaxRetries(cfg.MaxRetries)
		}

		watcher, err := watch.NewDocumentWatcher(time.Duration(watchDebounceMs)*time.Millisecond, func(path string) {
			doc, err := loadDocumentFile(path)
			if err != nil {
				fmt.Printf("skip %s: %v\n", path, err)
				return
			}
			if err := ws.SaveDocument(doc); err != nil {
				fmt.Printf("skip %s: %v\n", path, err)
				return
			}

			// Changed documents always run as continuations so prior
			// threads are extended rather than duplicated.
			threads, err := ws.ThreadsForDocument(doc.ID)
			if err != nil {
				fmt.Printf("skip %s: %v\n", path, err)
				return
			}

			fmt.Printf("Reviewing %s...\n", doc.ID)
			result, err := service.Review(context.Background(), doc.ID, doc.Blocks, review.ReviewOptions{
				DocumentTitle:    doc.Title,
				ExistingFeedback: threads,
			})
			if err != nil {
				fmt.Printf("review %s failed: %v\n", doc.ID, MapError(err))
				return
			}
			printResult(result)
		})
		if err != nil {
			return err
		}
		if err := watcher.WatchRecursive(args[0]); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s for document changes (Ctrl-C to stop)...\n", args[0])
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchDebounceMs, "debounce", 500, "debounce window in milliseconds")
	RootCmd.AddCommand(watchCmd)
}
