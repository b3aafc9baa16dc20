// Package core holds the prompt helpers and sentinel errors shared by the
// ai package and its provider subpackages, so that providers do not need to
// import the parent ai package (which imports them via the factory).
package core

import "errors"

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)
