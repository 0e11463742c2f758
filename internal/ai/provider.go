package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// ChatProvider is one chat backend.
type ChatProvider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req *ChatRequest) (string, error)
	Stream(ctx context.Context, req *ChatRequest) (ChatStream, error)
}

// ProviderArgs is the decoded form of a provider section of the config.
type ProviderArgs struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
	Timeout int    `json:"timeout"`
}

func (a ProviderArgs) timeout() time.Duration {
	if a.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(a.Timeout) * time.Second
}

type ProviderFactory func(args interface{}) (ChatProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func IsRegistered(name string) bool {
	_, ok := registry[normalizeName(name)]
	return ok
}

func NewChatProvider(name string, args interface{}) (ChatProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("llm.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported llm provider: %s", name)
	}
	return factory(args)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}

// streamHTTPClient has no overall deadline; streams are bounded by the
// caller's context instead.
func streamHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

func readErrorBody(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
