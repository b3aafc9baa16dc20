package ai

import (
	"fmt"

	"github.com/kiranshivaraju/sessionlens/internal/ai/anthropic"
	"github.com/kiranshivaraju/sessionlens/internal/ai/ollama"
	"github.com/kiranshivaraju/sessionlens/internal/ai/openai"
	"github.com/kiranshivaraju/sessionlens/internal/config"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// NewProvider constructs the appropriate label provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.LabelProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI)
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic)
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, anthropic", cfg.Provider)
	}
}
