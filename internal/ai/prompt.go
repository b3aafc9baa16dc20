package ai

import (
	"github.com/kiranshivaraju/sessionlens/internal/ai/internal/core"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// BuildLabelPrompt renders the labeling prompt for a sample of segments
// drawn from a single cluster.
func BuildLabelPrompt(sample []models.Segment) string {
	return core.BuildLabelPrompt(sample)
}

// ParseLabelResponse extracts a ClusterLabel from raw model output. Models
// frequently wrap JSON in code fences or prose, so we take the outermost
// JSON object in the text.
func ParseLabelResponse(raw string) (models.ClusterLabel, error) {
	return core.ParseLabelResponse(raw)
}
