package ai

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notebook/internal/config"
)

type fakeProvider struct {
	name string
	last *ChatRequest
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.name + "-model" }

func (f *fakeProvider) Complete(ctx context.Context, req *ChatRequest) (string, error) {
	f.last = req
	return f.name, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req *ChatRequest) (ChatStream, error) {
	f.last = req
	return newSSEStream(io.NopCloser(strings.NewReader("")), extractOpenAIDelta, nil), nil
}

func fakeProviders() map[string]ChatProvider {
	return map[string]ChatProvider{
		"openai":    &fakeProvider{name: "openai"},
		"anthropic": &fakeProvider{name: "anthropic"},
		"ollama":    &fakeProvider{name: "ollama"},
	}
}

func TestClient_UnknownOverrideUsesDefault(t *testing.T) {
	c := NewClientWithProviders("anthropic", 0, fakeProviders())
	text, err := c.Complete(context.Background(), ChatRequest{Provider: "mistral"})
	require.NoError(t, err)
	require.Equal(t, "anthropic", text)

	text, err = c.Complete(context.Background(), ChatRequest{Provider: " Ollama "})
	require.NoError(t, err)
	require.Equal(t, "ollama", text)
}

func TestClient_UnknownDefaultDegradesToOpenAI(t *testing.T) {
	c := NewClientWithProviders("bogus", 0, fakeProviders())
	require.Equal(t, "openai", c.DefaultProvider())
	require.Equal(t, "openai-model", c.Model(c.DefaultProvider()))
}

func TestClient_AppliesDefaults(t *testing.T) {
	providers := fakeProviders()
	c := NewClientWithProviders("openai", 0, providers)
	_, err := c.Complete(context.Background(), ChatRequest{})
	require.NoError(t, err)
	last := providers["openai"].(*fakeProvider).last
	require.InDelta(t, 0.7, *last.Temperature, 1e-6)
	require.Equal(t, 4000, last.MaxTokens)
}

func TestNewClient_RegistersAllProviders(t *testing.T) {
	cfg := config.Config{}
	config.ApplyDefaults(&cfg)
	c, err := NewClient(cfg.LLM)
	require.NoError(t, err)
	for _, name := range []string{"openai", "anthropic", "google", "ollama"} {
		require.Equal(t, name, c.Resolve(context.Background(), name))
	}
	require.Equal(t, "llama3.2", c.Model("ollama"))
}

func TestClient_KeepsZeroTemperature(t *testing.T) {
	providers := fakeProviders()
	c := NewClientWithProviders("openai", 0, providers)
	_, err := c.Complete(context.Background(), ChatRequest{Temperature: Temp(0)})
	require.NoError(t, err)
	last := providers["openai"].(*fakeProvider).last
	require.NotNil(t, last.Temperature)
	require.Zero(t, *last.Temperature)
}
