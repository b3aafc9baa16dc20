// Package anthropic provides a label provider backed by the Anthropic API.
package anthropic

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

const anthropicVersion = "2023-06-01"

// Provider implements models.LabelProvider using the Anthropic /v1/messages endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model     string            `json:"model"`
	Messages  []messagesMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewProvider(cfg config.AnthropicConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	return &Provider{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) GenerateLabel(ctx context.Context, sample []models.Segment) (models.ClusterLabel, error) {
	reqBody := messagesRequest{
		Model: p.model,
		Messages: []messagesMessage{
			{Role: "user", Content: ai.BuildLabelPrompt(sample)},
		},
		MaxTokens: 512,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return models.ClusterLabel{}, classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("read response: %w", err)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return models.ClusterLabel{}, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}
	if msgResp.Error != nil {
		return models.ClusterLabel{}, fmt.Errorf("%w: anthropic: %s", ai.ErrProviderUnavailable, msgResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return models.ClusterLabel{}, fmt.Errorf("%w: anthropic status %d", ai.ErrProviderUnavailable, resp.StatusCode)
	}
	if len(msgResp.Content) == 0 {
		return models.ClusterLabel{}, fmt.Errorf("%w: no content blocks", ai.ErrInvalidResponse)
	}

	var text bytes.Buffer
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return ai.ParseLabelResponse(text.String())
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
