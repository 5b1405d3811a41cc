// Package wiring assembles infrastructure collaborators from workspace
// configuration.
package wiring

import (
	"fmt"
	"os"

	"github.com/margin-labs/margin/internal/infrastructure/config"
	infraai "github.com/margin-labs/margin/pkg/ai"
	domainai "github.com/margin-labs/margin/pkg/domain/ai"
)

// LoadAIProvider builds the configured provider for a workspace,
// defaulting to a local Ollama instance when no config exists. A
// non-empty modelOverride takes precedence over the configured model.
func LoadAIProvider(root, modelOverride string) (domainai.Provider, error) {
	cfg, err := config.LoadAIConfig(root)
	if err != nil {
		return nil, err
	}

	providerName := "ollama"
	modelName := ""
	if cfg != nil {
		if cfg.Provider != "" {
			providerName = cfg.Provider
		}
		modelName = cfg.Model
	}
	if modelOverride != "" {
		modelName = modelOverride
	}

	return NewProvider(providerName, modelName)
}

// NewProvider selects a provider backend by name. API keys come from
// the environment, never from workspace files.
func NewProvider(name, model string) (domainai.Provider, error) {
	switch name {
	case "ollama":
		return infraai.NewOllamaProvider(model), nil
	case "openai":
		return infraai.NewOpenAIProvider(model, os.Getenv("OPENAI_API_KEY")), nil
	case "anthropic":
		return infraai.NewAnthropicProvider(model, os.Getenv("ANTHROPIC_API_KEY")), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s (supported: ollama, openai, anthropic)", name)
	}
}
