package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/margin-labs/margin/internal/infrastructure/storage"
)

var notesCmd = &cobra.Command{
	Use:   "notes <document-id>",
	Short: "Show the feedback threads stored for a document",
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

		threads, err := ws.ThreadsForDocument(args[0])
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			fmt.Println("No notes for this document yet.")
			return nil
		}

		for i, thread := range threads {
			if i > 0 {
				fmt.Println("---")
			}
			fmt.Printf("[Block: %s] [%s/%s]\n%s\n", thread.BlockID, thread.Category, thread.Severity, thread.Body)
			for _, reply := range thread.Replies {
				author := reply.Author
				if reply.IsFromAI {
					author = "AI"
				}
				fmt.Printf("  %s: %s\n", author, reply.Body)
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(notesCmd)
}
