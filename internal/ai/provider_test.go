package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/config"
)

func githubProvider(t *testing.T, url string) *GitHubModelsProvider {
	t.Helper()
	p, err := NewGitHubModels(&config.AIConfig{
		Provider:  "github_models",
		GitHubPAT: "ghp_test",
		Model:     "gpt-4o-mini",
	}, zap.NewNop())
	require.NoError(t, err)
	p.apiURL = url
	return p
}

func TestGitHubModels_RequiresPAT(t *testing.T) {
	_, err := NewGitHubModels(&config.AIConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestGitHubModels_Generate(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "CPU saturated on node-3"}},
			},
		})
	}))
	defer server.Close()

	p := githubProvider(t, server.URL)
	text, err := p.Generate(context.Background(), "summarize this alert", "you are an sre",
		WithTemperature(0.7), WithMaxTokens(150))

	require.NoError(t, err)
	assert.Equal(t, "CPU saturated on node-3", text)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "you are an sre", captured.Messages[0].Content)
	assert.Equal(t, "summarize this alert", captured.Messages[1].Content)
	assert.Equal(t, 0.7, captured.Temperature)
	assert.Equal(t, 150, captured.MaxTokens)
}

func TestGitHubModels_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := githubProvider(t, server.URL).Generate(context.Background(), "p", "s")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGitHubModels_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := githubProvider(t, server.URL).Generate(context.Background(), "p", "s")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGitHubModels_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := githubProvider(t, server.URL).Generate(context.Background(), "p", "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type fakeCaller struct {
	server string
	tool   string
	args   map[string]interface{}
	result *mcpgo.CallToolResult
	err    error
}

func (f *fakeCaller) CallTool(_ context.Context, serverName, toolName string, args map[string]interface{}, _ bool) (*mcpgo.CallToolResult, error) {
	f.server = serverName
	f.tool = toolName
	f.args = args
	return f.result, f.err
}

func TestMCPProvider_Generate(t *testing.T) {
	caller := &fakeCaller{
		result: &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.NewTextContent("disk pressure on ingest-7")},
		},
	}
	p := NewMCPProvider(&config.AIConfig{Provider: "mcp"}, caller, zap.NewNop())

	text, err := p.Generate(context.Background(), "summarize", "you are an sre", WithModel("gpt-4o"))

	require.NoError(t, err)
	assert.Equal(t, "disk pressure on ingest-7", text)
	assert.Equal(t, "ai", caller.server)
	assert.Equal(t, "generate_text", caller.tool)
	assert.Equal(t, "summarize", caller.args["prompt"])
	assert.Equal(t, "you are an sre", caller.args["system_prompt"])
	assert.Equal(t, "gpt-4o", caller.args["model"])
}

func TestMCPProvider_EngineError(t *testing.T) {
	engineErr := errors.New("mcp server \"ai\" unavailable")
	p := NewMCPProvider(&config.AIConfig{Provider: "mcp"}, &fakeCaller{err: engineErr}, zap.NewNop())

	_, err := p.Generate(context.Background(), "p", "s")
	assert.ErrorIs(t, err, engineErr)
}

func TestNew_SelectsProvider(t *testing.T) {
	github, err := New(&config.AIConfig{Provider: "github_models", GitHubPAT: "ghp_x"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GitHubModelsProvider{}, github)

	mcpBased, err := New(&config.AIConfig{Provider: "mcp"}, &fakeCaller{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MCPProvider{}, mcpBased)

	_, err = New(&config.AIConfig{Provider: "mcp"}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = New(&config.AIConfig{Provider: "quantum"}, nil, zap.NewNop())
	assert.Error(t, err)
}
