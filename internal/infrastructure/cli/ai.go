package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/margin-labs/margin/internal/infrastructure/config"
	"github.com/margin-labs/margin/internal/infrastructure/storage"
	"github.com/margin-labs/margin/internal/infrastructure/wiring"
)

var (
	aiProvider string
	aiModel    string
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Manage AI configuration",
}

var aiConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure the AI provider and model for this workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		ws := storage.NewFilesystemWorkspace(cwd)
		if !ws.IsInitialized() {
			return fmt.Errorf("margin is not initialized here; run 'margin init' first")
		}

		cfg, err := config.LoadAIConfig(cwd)
		if err != nil {
			return err
		}
		if cfg == nil {
			cfg = &config.AIConfig{}
		}

		if aiProvider != "" {
			cfg.Provider = aiProvider
		}
		if aiModel != "" {
			cfg.Model = aiModel
		}

		// Reject unknown provider names before persisting them.
		if cfg.Provider != "" {
			if _, err := wiring.NewProvider(cfg.Provider, cfg.Model); err != nil {
				return err
			}
		}

		if err := config.SaveAIConfig(cwd, cfg); err != nil {
			return err
		}

		fmt.Println("AI configuration saved to .margin/ai.yaml")
		fmt.Println("API keys are read from the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY).")
		return nil
	},
}

func init() {
	aiConfigureCmd.Flags().StringVar(&aiProvider, "provider", "", "provider backend: ollama, openai, anthropic")
	aiConfigureCmd.Flags().StringVar(&aiModel, "model", "", "model identifier for the provider")
	aiCmd.AddCommand(aiConfigureCmd)
	RootCmd.AddCommand(aiCmd)
}
