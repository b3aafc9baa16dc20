package ai

import "github.com/kiranshivaraju/sessionlens/internal/ai/internal/core"

// Sentinel errors re-exported from the core package so that the factory can
// live alongside them without creating an import cycle with the providers.
var (
	ErrProviderUnavailable = core.ErrProviderUnavailable
	ErrInferenceTimeout    = core.ErrInferenceTimeout
	ErrInvalidResponse     = core.ErrInvalidResponse
)
