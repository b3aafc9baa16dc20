// Package openai provides a label provider backed by the OpenAI API.
package openai

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

// Provider implements models.LabelProvider using the OpenAI /chat/completions endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewProvider(cfg config.OpenAIConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	return &Provider{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) GenerateLabel(ctx context.Context, sample []models.Segment) (models.ClusterLabel, error) {
	reqBody := chatCompletionRequest{
		Model: p.model,
		Messages: []chatCompletionMsg{
			{Role: "user", Content: ai.BuildLabelPrompt(sample)},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return models.ClusterLabel{}, classifyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ClusterLabel{}, fmt.Errorf("read response: %w", err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return models.ClusterLabel{}, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}
	if chatResp.Error != nil {
		return models.ClusterLabel{}, fmt.Errorf("%w: openai: %s", ai.ErrProviderUnavailable, chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return models.ClusterLabel{}, fmt.Errorf("%w: openai status %d", ai.ErrProviderUnavailable, resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return models.ClusterLabel{}, fmt.Errorf("%w: no choices", ai.ErrInvalidResponse)
	}

	return ai.ParseLabelResponse(chatResp.Choices[0].Message.Content)
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
