package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/config"
)

func TestLLMStatus_CloudProviderNeedsKey(t *testing.T) {
	svc := NewLLMStatusService(config.LLMConfig{Provider: "anthropic"}, &fakeChat{provider: "anthropic"}, &fakeOllama{})
	st := svc.Status(context.Background())
	require.False(t, st.Available)
	require.Equal(t, "model-anthropic", st.Model)
	require.Equal(t, "Anthropic API key not configured", st.Message)

	err := svc.CheckAvailable(context.Background())
	require.ErrorIs(t, err, ai.ErrUnavailable)

	cfg := config.LLMConfig{Provider: "anthropic"}
	cfg.Anthropic.APIKey = "k"
	svc = NewLLMStatusService(cfg, &fakeChat{provider: "anthropic"}, &fakeOllama{})
	require.NoError(t, svc.CheckAvailable(context.Background()))
	require.True(t, svc.Status(context.Background()).Available)
}

func TestLLMStatus_Ollama(t *testing.T) {
	probe := &fakeOllama{}
	svc := NewLLMStatusService(config.LLMConfig{Provider: "ollama"}, &fakeChat{provider: "ollama"}, probe)

	err := svc.CheckAvailable(context.Background())
	require.ErrorIs(t, err, ai.ErrUnavailable)
	require.Equal(t, "Ollama not available at http://ollama:11434. Ensure Ollama is running.", err.Error())

	st := svc.Ollama(context.Background())
	require.False(t, st.Available)
	require.Empty(t, st.Models)
	require.Contains(t, st.Message, "Cannot connect to Ollama at http://ollama:11434")

	probe.up = true
	probe.models = []string{"llama3.2"}
	st = svc.Ollama(context.Background())
	require.True(t, st.Available)
	require.Equal(t, []string{"llama3.2"}, st.Models)
	require.True(t, svc.EmbeddingsUsable())
}

func TestLLMStatus_EmbeddingsNeedOpenAIKey(t *testing.T) {
	svc := NewLLMStatusService(config.LLMConfig{Provider: "google"}, &fakeChat{provider: "google"}, &fakeOllama{})
	require.False(t, svc.EmbeddingsUsable())
}
