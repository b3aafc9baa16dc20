package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// maxSampleContentLen caps how much of each segment goes into the prompt.
const maxSampleContentLen = 500

const labelPromptHeader = `You are labeling a group of user session excerpts that describe the same product issue.
Read the excerpts and produce a short title and a one-paragraph description of the underlying issue.

Respond with ONLY a JSON object in this exact format, no markdown, no extra text:
{"title": "<at most 10 words>", "description": "<one paragraph>"}

Session excerpts:
`

// BuildLabelPrompt renders the labeling prompt for a sample of segments
// drawn from a single cluster.
func BuildLabelPrompt(sample []models.Segment) string {
	var b strings.Builder
	b.WriteString(labelPromptHeader)
	for i, seg := range sample {
		content := seg.Content
		if len(content) > maxSampleContentLen {
			content = content[:maxSampleContentLen] + "..."
		}
		fmt.Fprintf(&b, "\n--- Excerpt %d ---\n%s\n", i+1, content)
	}
	return b.String()
}

type labelResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ParseLabelResponse extracts a ClusterLabel from raw model output. Models
// frequently wrap JSON in code fences or prose, so we take the outermost
// JSON object in the text.
func ParseLabelResponse(raw string) (models.ClusterLabel, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return models.ClusterLabel{}, fmt.Errorf("%w: no JSON object in output", ErrInvalidResponse)
	}

	var parsed labelResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return models.ClusterLabel{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		return models.ClusterLabel{}, fmt.Errorf("%w: empty title", ErrInvalidResponse)
	}

	return models.ClusterLabel{
		Title:       title,
		Description: strings.TrimSpace(parsed.Description),
	}, nil
}
