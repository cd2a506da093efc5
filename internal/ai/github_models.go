package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/config"
)

const (
	defaultAPIURL = "https://models.inference.ai.azure.com/chat/completions"

	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultMaxTokens   = 300
)

// GitHubModelsProvider generates text through the GitHub Models chat
// completions API using a personal access token
type GitHubModelsProvider struct {
	pat         string
	model       string
	temperature float64
	maxTokens   int
	apiURL      string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewGitHubModels creates the provider from configuration. The PAT is
// mandatory; model and sampling parameters fall back to defaults.
func NewGitHubModels(cfg *config.AIConfig, logger *zap.Logger) (*GitHubModelsProvider, error) {
	if cfg.GitHubPAT == "" {
		return nil, fmt.Errorf("github_pat is required for the github_models ai provider")
	}

	p := &GitHubModelsProvider{
		pat:         cfg.GitHubPAT,
		model:       cfg.Model,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if cfg.Temperature > 0 {
		p.temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		p.maxTokens = cfg.MaxTokens
	}

	logger.Info("Initialized GitHub Models ai provider", zap.String("model", p.model))
	return p, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate posts a chat completion request and returns the first choice
func (p *GitHubModelsProvider) Generate(ctx context.Context, prompt, systemPrompt string, opts ...GenerateOption) (string, error) {
	o := applyOptions(opts)

	request := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	if o.model != "" {
		request.Model = o.model
	}
	if o.temperature != nil {
		request.Temperature = *o.temperature
	}
	if o.maxTokens != nil {
		request.MaxTokens = *o.maxTokens
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.pat)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ai request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.logger.Error("GitHub Models API rate limit exceeded")
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		p.logger.Error("GitHub Models API authentication failed")
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ai request failed with status %d: %s", resp.StatusCode, snippet)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode ai response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("ai response contained no choices")
	}

	text := result.Choices[0].Message.Content
	p.logger.Debug("Generated text",
		zap.Int("chars", len(text)),
		zap.String("model", request.Model))
	return text, nil
}
