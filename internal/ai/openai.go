package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	ollamaPlaceholderKey = "ollama"
)

// openAIProvider speaks the OpenAI chat wire format. Ollama reuses it
// through its /v1 compatibility endpoint.
type openAIProvider struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	hostURL    string
	client     *openai.Client
	httpClient *http.Client
}

type openAIStreamRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIStreamChunk struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Model() string {
	return p.model
}

func (p *openAIProvider) local() bool {
	return p.name == "ollama"
}

func (p *openAIProvider) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	if p.apiKey == "" {
		return "", notConfigured(p.name)
	}
	msgs := req.withInlineSystem()
	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    chatMsgs,
		Temperature: syncTemperature(req.temperature()),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", p.wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) Stream(ctx context.Context, req *ChatRequest) (ChatStream, error) {
	if p.apiKey == "" {
		return nil, notConfigured(p.name)
	}
	data, err := json.Marshal(openAIStreamRequest{
		Model:       p.model,
		Messages:    req.withInlineSystem(),
		Stream:      true,
		Temperature: Temp(req.temperature()),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.wrapErr(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		return nil, readErrorBody(p.name, resp)
	}
	return newSSEStream(resp.Body, extractOpenAIDelta, nil), nil
}

// syncTemperature works around go-openai omitting a zero temperature, which
// the api would read as its own default of 1.
func syncTemperature(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

func extractOpenAIDelta(payload []byte) (string, bool, error) {
	var chunk openAIStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", false, errSkipChunk
	}
	if chunk.Error != nil {
		return "", false, streamFailure("openai", chunk.Error.Type, chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	return chunk.Choices[0].Delta.Content, false, nil
}

func (p *openAIProvider) wrapErr(err error) error {
	if p.local() && isConnRefused(err) {
		return &UnavailableError{BaseURL: p.hostURL, Err: err}
	}
	return mapOpenAIError(p.name, err)
}

func mapOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: provider, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: provider, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

func newOpenAIProvider(name, apiKey, model, baseURL, hostURL string, timeout time.Duration) *openAIProvider {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &openAIProvider{
		name:       name,
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		hostURL:    hostURL,
		client:     openai.NewClientWithConfig(clientCfg),
		httpClient: streamHTTPClient(timeout),
	}
}

func createOpenAIFactory(args interface{}) (ChatProvider, error) {
	cfg := &ProviderArgs{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return newOpenAIProvider("openai", strings.TrimSpace(cfg.APIKey), cfg.Model, baseURL, baseURL, cfg.timeout()), nil
}

func createOllamaFactory(args interface{}) (ChatProvider, error) {
	cfg := &ProviderArgs{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if host == "" {
		host = defaultOllamaBaseURL
	}
	return newOpenAIProvider("ollama", ollamaPlaceholderKey, cfg.Model, host+"/v1", host, cfg.timeout()), nil
}

func init() {
	Register("openai", createOpenAIFactory)
	Register("ollama", createOllamaFactory)
}
