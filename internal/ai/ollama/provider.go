// Package ollama provides a label provider backed by a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	ai "github.com/kiranshivaraju/sessionlens/internal/ai/internal/core"
	"github.com/kiranshivaraju/sessionlens/internal/config"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// Provider implements models.LabelProvider using the Ollama /api/generate endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	model   string
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// generateResponse is the Ollama /api/generate response format.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) GenerateLabel(ctx context.Context, sample []models.Segment) (models.ClusterLabel, error) {
	reqBody := generateRequest{
		Model:  p.model,
		Prompt: ai.BuildLabelPrompt(sample),
		Stream: false,
		Options: &options{
			NumPredict:  300,
			Temperature: 0.2,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.ClusterLabel{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.ClusterLabel{}, fmt.Errorf("%w: ollama status %d: %s", ai.ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return models.ClusterLabel{}, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}

	return ai.ParseLabelResponse(genResp.Response)
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ai.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ai.ErrProviderUnavailable, err)
}

var _ models.LabelProvider = (*Provider)(nil)
