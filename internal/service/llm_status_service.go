package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/config"
)

// OllamaChecker is implemented by *ai.OllamaProbe.
type OllamaChecker interface {
	BaseURL() string
	Available(ctx context.Context) bool
	Models(ctx context.Context) []string
}

type LLMStatus struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

type OllamaStatus struct {
	Available bool     `json:"available"`
	BaseURL   string   `json:"base_url"`
	Models    []string `json:"models"`
	Message   string   `json:"message,omitempty"`
}

type LLMStatusService struct {
	cfg    config.LLMConfig
	chat   ChatClient
	ollama OllamaChecker
}

func NewLLMStatusService(cfg config.LLMConfig, chat ChatClient, ollama OllamaChecker) *LLMStatusService {
	return &LLMStatusService{cfg: cfg, chat: chat, ollama: ollama}
}

func (s *LLMStatusService) keyFor(provider string) string {
	switch provider {
	case "openai":
		return s.cfg.OpenAI.APIKey
	case "anthropic":
		return s.cfg.Anthropic.APIKey
	case "google":
		return s.cfg.Google.APIKey
	}
	return ""
}

var providerLabels = map[string]string{
	"openai":    "OpenAI",
	"anthropic": "Anthropic",
	"google":    "Google",
}

// Status reports whether the configured chat provider can serve requests.
func (s *LLMStatusService) Status(ctx context.Context) LLMStatus {
	provider := s.chat.DefaultProvider()
	st := LLMStatus{Provider: provider, Model: s.chat.Model(provider)}
	if provider == "ollama" {
		st.Available = s.ollama.Available(ctx)
		if !st.Available {
			st.Message = fmt.Sprintf("Ollama not reachable at %s", s.ollama.BaseURL())
		}
		return st
	}
	st.Available = s.keyFor(provider) != ""
	if !st.Available {
		st.Message = providerLabels[provider] + " API key not configured"
	}
	return st
}

// CheckAvailable fails with an error matching ai.ErrUnavailable when the
// configured provider cannot be used.
func (s *LLMStatusService) CheckAvailable(ctx context.Context) error {
	provider := s.chat.DefaultProvider()
	if provider == "ollama" {
		if s.ollama.Available(ctx) {
			return nil
		}
		return &kindError{kind: ai.ErrUnavailable,
			msg: fmt.Sprintf("Ollama not available at %s. Ensure Ollama is running.", s.ollama.BaseURL())}
	}
	if s.keyFor(provider) == "" {
		return &kindError{kind: ai.ErrUnavailable, msg: providerLabels[provider] + " API key not configured"}
	}
	return nil
}

func (s *LLMStatusService) Ollama(ctx context.Context) OllamaStatus {
	st := OllamaStatus{BaseURL: s.ollama.BaseURL(), Models: []string{}}
	if !s.ollama.Available(ctx) {
		st.Message = (&ai.UnavailableError{BaseURL: st.BaseURL}).Error()
		return st
	}
	st.Available = true
	st.Models = s.ollama.Models(ctx)
	return st
}

func (s *LLMStatusService) OllamaModels(ctx context.Context) []string {
	return s.ollama.Models(ctx)
}

// EmbeddingsUsable tells whether background embedding can run at all.
func (s *LLMStatusService) EmbeddingsUsable() bool {
	if s.cfg.EmbeddingProvider() == "ollama" {
		return true
	}
	return s.cfg.OpenAI.APIKey != ""
}
