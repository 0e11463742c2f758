package ai

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/config"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4000
	fallbackProvider   = "openai"
)

// Client routes chat calls to the configured provider, or to a per call
// override.
type Client struct {
	defaultName string
	providers   map[string]ChatProvider
	timeout     time.Duration
}

func NewClient(cfg config.LLMConfig) (*Client, error) {
	args := map[string]ProviderArgs{
		"openai":    {APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL, Timeout: cfg.Timeout},
		"anthropic": {APIKey: cfg.Anthropic.APIKey, Model: cfg.Anthropic.Model, BaseURL: cfg.Anthropic.BaseURL, Timeout: cfg.Timeout},
		"google":    {APIKey: cfg.Google.APIKey, Model: cfg.Google.Model, BaseURL: cfg.Google.BaseURL, Timeout: cfg.Timeout},
		"ollama":    {Model: cfg.Ollama.Model, BaseURL: cfg.Ollama.BaseURL, Timeout: cfg.Timeout},
	}
	providers := make(map[string]ChatProvider, len(args))
	for name, a := range args {
		p, err := NewChatProvider(name, a)
		if err != nil {
			return nil, err
		}
		providers[name] = p
	}
	return NewClientWithProviders(cfg.Provider, time.Duration(cfg.Timeout)*time.Second, providers), nil
}

// NewClientWithProviders builds a client over an explicit provider set.
func NewClientWithProviders(defaultName string, timeout time.Duration, providers map[string]ChatProvider) *Client {
	name := normalizeName(defaultName)
	if _, ok := providers[name]; !ok {
		logutil.GetLogger(context.Background()).Warn("unknown llm provider, using default",
			zap.String("provider", defaultName), zap.String("default", fallbackProvider))
		name = fallbackProvider
	}
	return &Client{defaultName: name, providers: providers, timeout: timeout}
}

// DefaultProvider is the provider used when a request names none.
func (c *Client) DefaultProvider() string {
	return c.defaultName
}

// Resolve maps an override to a known provider name.
func (c *Client) Resolve(ctx context.Context, override string) string {
	name := normalizeName(override)
	if name == "" {
		return c.defaultName
	}
	if _, ok := c.providers[name]; !ok {
		logutil.GetLogger(ctx).Warn("unknown llm provider override, using default",
			zap.String("provider", override), zap.String("default", c.defaultName))
		return c.defaultName
	}
	return name
}

// Model returns the model configured for the named provider.
func (c *Client) Model(name string) string {
	if p, ok := c.providers[normalizeName(name)]; ok {
		return p.Model()
	}
	return ""
}

func (c *Client) provider(ctx context.Context, req *ChatRequest) ChatProvider {
	return c.providers[c.Resolve(ctx, req.Provider)]
}

func applyDefaults(req ChatRequest) *ChatRequest {
	if req.Temperature == nil {
		req.Temperature = Temp(defaultTemperature)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	return &req
}

// Complete returns the whole response text.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	p := c.provider(ctx, &req)
	if p == nil {
		return "", ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := p.Complete(ctx, applyDefaults(req))
	observe(p.Name(), "chat", start, err)
	if err != nil {
		logutil.GetLogger(ctx).Error("llm completion failed", zap.String("provider", p.Name()), zap.Error(err))
		return "", err
	}
	return text, nil
}

// CompleteStream opens a token stream. The caller must Close it.
func (c *Client) CompleteStream(ctx context.Context, req ChatRequest) (ChatStream, error) {
	p := c.provider(ctx, &req)
	if p == nil {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	stream, err := p.Stream(ctx, applyDefaults(req))
	observe(p.Name(), "chat_stream", start, err)
	if err != nil {
		logutil.GetLogger(ctx).Error("llm stream failed", zap.String("provider", p.Name()), zap.Error(err))
		return nil, err
	}
	return stream, nil
}
