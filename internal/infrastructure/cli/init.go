package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/margin-labs/margin/internal/infrastructure/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a margin workspace in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}

		ws := storage.NewFilesystemWorkspace(cwd)
		if ws.IsInitialized() {
			fmt.Println("margin is already initialized here.")
			return nil
		}
		if err := ws.Initialize(); err != nil {
			return err
		}

		fmt.Println("Initialized empty margin workspace in .margin/")
		fmt.Println("Configure a provider with 'margin ai configure', then run 'margin review <document.json>'.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
}
