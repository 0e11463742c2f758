package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGoogleBaseURL = "https://generativelanguage.googleapis.com"
	googleAPIVersion     = "v1beta"
)

type googleProvider struct {
	apiKey     string
	model      string
	baseURL    string
	custom     bool
	httpClient *http.Client
	streamHTTP *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiStreamRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float32 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiStreamChunk struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *googleProvider) Name() string {
	return "google"
}

func (p *googleProvider) Model() string {
	return p.model
}

// geminiRole maps chat roles onto the two roles Gemini accepts.
func geminiRole(role string) string {
	if role == RoleUser {
		return genai.RoleUser
	}
	return genai.RoleModel
}

func (p *googleProvider) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	if p.apiKey == "" {
		return "", notConfigured("google")
	}
	cc := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.custom {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL, APIVersion: googleAPIVersion}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", err
	}
	system, msgs := req.splitSystem()
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, &genai.Content{
			Role:  geminiRole(m.Role),
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	temperature := req.temperature()
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	resp, err := client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", wrapGoogleErr(err)
	}
	return resp.Text(), nil
}

func (p *googleProvider) Stream(ctx context.Context, req *ChatRequest) (ChatStream, error) {
	if p.apiKey == "" {
		return nil, notConfigured("google")
	}
	system, msgs := req.splitSystem()
	body := geminiStreamRequest{Contents: make([]geminiContent, 0, len(msgs))}
	for _, m := range msgs {
		body.Contents = append(body.Contents, geminiContent{Role: geminiRole(m.Role), Parts: []geminiPart{{Text: m.Content}}})
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	body.GenerationConfig.Temperature = req.temperature()
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/%s/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(p.baseURL, "/"), googleAPIVersion, url.PathEscape(p.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.streamHTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		return nil, readErrorBody("google", resp)
	}
	return newSSEStream(resp.Body, extractGeminiDelta, nil), nil
}

func extractGeminiDelta(payload []byte) (string, bool, error) {
	var chunk geminiStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", false, errSkipChunk
	}
	if chunk.Error != nil {
		return "", false, &ProviderError{Provider: "google", StatusCode: chunk.Error.Code, Message: chunk.Error.Message}
	}
	if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 {
		return "", false, nil
	}
	return chunk.Candidates[0].Content.Parts[0].Text, false, nil
}

func wrapGoogleErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "google", StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("google request failed: %w", err)
}

func newGoogleProvider(apiKey, model, baseURL string, timeout time.Duration) *googleProvider {
	custom := baseURL != ""
	if !custom {
		baseURL = defaultGoogleBaseURL
	}
	return &googleProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		custom:     custom,
		httpClient: &http.Client{Timeout: timeout},
		streamHTTP: streamHTTPClient(timeout),
	}
}

func createGoogleFactory(args interface{}) (ChatProvider, error) {
	cfg := &ProviderArgs{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return newGoogleProvider(strings.TrimSpace(cfg.APIKey), cfg.Model, strings.TrimSpace(cfg.BaseURL), cfg.timeout()), nil
}

func init() {
	Register("google", createGoogleFactory)
}
