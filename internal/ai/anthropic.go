package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4000
)

type anthropicProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	streamHTTP *http.Client
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

func (p *anthropicProvider) Model() string {
	return p.model
}

func (p *anthropicProvider) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	resp, err := p.do(ctx, p.httpClient, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("anthropic response has no content")
	}
	return out.Content[0].Text, nil
}

func (p *anthropicProvider) Stream(ctx context.Context, req *ChatRequest) (ChatStream, error) {
	resp, err := p.do(ctx, p.streamHTTP, req, true)
	if err != nil {
		return nil, err
	}
	return newSSEStream(resp.Body, extractAnthropicDelta, nil), nil
}

func (p *anthropicProvider) do(ctx context.Context, client *http.Client, req *ChatRequest, stream bool) (*http.Response, error) {
	if p.apiKey == "" {
		return nil, notConfigured("anthropic")
	}
	system, msgs := req.splitSystem()
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}
	data, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Messages:    msgs,
		System:      system,
		Temperature: Temp(req.temperature()),
		Stream:      stream,
	})
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		return nil, readErrorBody("anthropic", resp)
	}
	return resp, nil
}

func extractAnthropicDelta(payload []byte) (string, bool, error) {
	var ev anthropicEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", false, errSkipChunk
	}
	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" {
			return ev.Delta.Text, false, nil
		}
	case "message_stop":
		return "", true, nil
	case "error":
		return "", false, streamFailure("anthropic", ev.Error.Type, ev.Error.Message)
	}
	return "", false, nil
}

func newAnthropicProvider(apiKey, model, baseURL string, timeout time.Duration) *anthropicProvider {
	return &anthropicProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		streamHTTP: streamHTTPClient(timeout),
	}
}

func createAnthropicFactory(args interface{}) (ChatProvider, error) {
	cfg := &ProviderArgs{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return newAnthropicProvider(strings.TrimSpace(cfg.APIKey), cfg.Model, baseURL, cfg.timeout()), nil
}

func init() {
	Register("anthropic", createAnthropicFactory)
}
