package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/sessionlens/internal/ai"
	"github.com/kiranshivaraju/sessionlens/internal/ai/mock"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSegments() []models.Segment {
	return []models.Segment{
		{
			DocumentID: "doc-1",
			SessionID:  "session-1",
			DistinctID: "user-1",
			Content:    "user retried the payment form three times",
			Timestamp:  time.Now(),
		},
		{
			DocumentID: "doc-2",
			SessionID:  "session-2",
			DistinctID: "user-2",
			Content:    "payment submit button did not respond",
			Timestamp:  time.Now(),
		},
	}
}

// --- NewMockProvider ---

func TestNewMockProvider_Name(t *testing.T) {
	p := mock.NewMockProvider()
	assert.Equal(t, "mock", p.Name())
}

func TestNewMockProvider_GenerateLabel(t *testing.T) {
	p := mock.NewMockProvider()
	label, err := p.GenerateLabel(context.Background(), sampleSegments())

	require.NoError(t, err)
	assert.NotEmpty(t, label.Title)
	assert.NotEmpty(t, label.Description)
}

// --- NewFailingProvider ---

func TestNewFailingProvider_Name(t *testing.T) {
	p := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	assert.Equal(t, "mock-failing", p.Name())
}

func TestNewFailingProvider_GenerateLabel(t *testing.T) {
	p := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	_, err := p.GenerateLabel(context.Background(), sampleSegments())

	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

func TestNewFailingProvider_CustomError(t *testing.T) {
	customErr := errors.New("custom provider error")
	p := mock.NewFailingProvider(customErr)

	_, err := p.GenerateLabel(context.Background(), sampleSegments())
	assert.ErrorIs(t, err, customErr)
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider_Name(t *testing.T) {
	p := mock.NewTimeoutProvider()
	assert.Equal(t, "mock-timeout", p.Name())
}

func TestNewTimeoutProvider_GenerateLabel(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.GenerateLabel(ctx, sampleSegments())
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

// --- Sentinel errors ---

func TestSentinelErrors(t *testing.T) {
	assert.NotNil(t, ai.ErrProviderUnavailable)
	assert.NotNil(t, ai.ErrInferenceTimeout)
	assert.NotNil(t, ai.ErrInvalidResponse)

	// Ensure they are distinct
	assert.NotEqual(t, ai.ErrProviderUnavailable, ai.ErrInferenceTimeout)
	assert.NotEqual(t, ai.ErrInferenceTimeout, ai.ErrInvalidResponse)
}

// --- Zero-value MockProvider ---

func TestMockProvider_NilFunc(t *testing.T) {
	p := &mock.MockProvider{Name_: "bare"}

	label, err := p.GenerateLabel(context.Background(), sampleSegments())
	assert.NoError(t, err)
	assert.Equal(t, models.ClusterLabel{}, label)
}

// --- Interface compliance ---

func TestMockProvider_ImplementsLabelProvider(t *testing.T) {
	var _ models.LabelProvider = mock.NewMockProvider()
	var _ models.LabelProvider = mock.NewFailingProvider(nil)
	var _ models.LabelProvider = mock.NewTimeoutProvider()
}
