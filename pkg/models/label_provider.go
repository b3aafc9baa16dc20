package models

import "context"

// LabelProvider is the core interface that all language-model integrations
// must implement. Never call specific providers directly — always inject
// this interface. Implementations must be safe for concurrent use: the
// label generator calls GenerateLabel once per new cluster in parallel.
type LabelProvider interface {
	// GenerateLabel produces a short title and a one-paragraph description
	// summarizing the common issue across the sampled member segments.
	GenerateLabel(ctx context.Context, sample []Segment) (ClusterLabel, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}
