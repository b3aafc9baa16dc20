package mock

import (
	"context"

	"github.com/kiranshivaraju/sessionlens/internal/ai"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// MockProvider satisfies models.LabelProvider for testing.
type MockProvider struct {
	Name_             string
	GenerateLabelFunc func(ctx context.Context, sample []models.Segment) (models.ClusterLabel, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) GenerateLabel(ctx context.Context, sample []models.Segment) (models.ClusterLabel, error) {
	if m.GenerateLabelFunc != nil {
		return m.GenerateLabelFunc(ctx, sample)
	}
	return models.ClusterLabel{}, nil
}

// NewMockProvider returns a MockProvider with sensible default responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateLabelFunc: func(_ context.Context, _ []models.Segment) (models.ClusterLabel, error) {
			return models.ClusterLabel{
				Title:       "Simulated issue title",
				Description: "Mock issue description for testing",
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateLabelFunc: func(_ context.Context, _ []models.Segment) (models.ClusterLabel, error) {
			return models.ClusterLabel{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateLabelFunc: func(ctx context.Context, _ []models.Segment) (models.ClusterLabel, error) {
			<-ctx.Done()
			return models.ClusterLabel{}, ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements LabelProvider.
var _ models.LabelProvider = (*MockProvider)(nil)
