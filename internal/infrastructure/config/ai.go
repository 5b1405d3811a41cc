// Package config loads workspace-level provider defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/margin-labs/margin/internal/infrastructure/storage"
)

const aiConfigFile = "ai.yaml"

// AIConfig stores provider defaults for the workspace.
type AIConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

// LoadAIConfig reads .margin/ai.yaml, returning nil when the file does
// not exist.
func LoadAIConfig(root string) (*AIConfig, error) {
	path := filepath.Join(root, storage.MarginDir, aiConfigFile)

	data, err := os.ReadFile(path) // #nosec G304 -- fixed filename under the workspace dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read AI config: %w", err)
	}

	var cfg AIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal AI config: %w", err)
	}
	return &cfg, nil
}

// SaveAIConfig writes .margin/ai.yaml.
func SaveAIConfig(root string, cfg *AIConfig) error {
	if cfg == nil {
		return fmt.Errorf("AI config is nil")
	}

	path := filepath.Join(root, storage.MarginDir, aiConfigFile)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal AI config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
