package ai

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type openAIEmbedBackend struct {
	apiKey string
	model  string
	client *openai.Client
}

func NewOpenAIEmbedBackend(apiKey, baseURL, model string, timeout time.Duration) EmbeddingBackend {
	apiKey = strings.TrimSpace(apiKey)
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &openAIEmbedBackend{
		apiKey: apiKey,
		model:  model,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (b *openAIEmbedBackend) Name() string {
	return "openai"
}

func (b *openAIEmbedBackend) EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error) {
	if b.apiKey == "" {
		return nil, notConfigured("openai")
	}
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: openai.EmbeddingModel(b.model),
	})
	if err != nil {
		return nil, mapOpenAIError("openai", err)
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, 0, len(data))
	for _, item := range data {
		out = append(out, item.Embedding)
	}
	return out, nil
}
