package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	ollamaProbeTimeout   = 5 * time.Second
)

type ollamaTags struct {
	reachable bool
	models    []string
}

// OllamaProbe checks a local Ollama server through GET /api/tags. Answers
// are cached for a short ttl.
type OllamaProbe struct {
	baseURL    string
	httpClient *http.Client
	cache      *expirable.LRU[string, ollamaTags]
}

func NewOllamaProbe(baseURL string, ttl time.Duration) *OllamaProbe {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	p := &OllamaProbe{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: ollamaProbeTimeout},
	}
	if ttl > 0 {
		p.cache = expirable.NewLRU[string, ollamaTags](4, nil, ttl)
	}
	return p
}

func (p *OllamaProbe) BaseURL() string {
	return p.baseURL
}

func (p *OllamaProbe) Available(ctx context.Context) bool {
	return p.tags(ctx).reachable
}

// Models lists the installed model names; empty when unreachable.
func (p *OllamaProbe) Models(ctx context.Context) []string {
	models := p.tags(ctx).models
	if models == nil {
		return []string{}
	}
	return append([]string(nil), models...)
}

func (p *OllamaProbe) tags(ctx context.Context) ollamaTags {
	if p.cache != nil {
		if cached, ok := p.cache.Get(p.baseURL); ok {
			return cached
		}
	}
	res := p.fetch(ctx)
	if p.cache != nil {
		p.cache.Add(p.baseURL, res)
	}
	return res
}

func (p *OllamaProbe) fetch(ctx context.Context) ollamaTags {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return ollamaTags{}
	}
	resp, err := p.httpClient.Do(req)
	observe("ollama", "probe", start, err)
	if err != nil {
		logutil.GetLogger(ctx).Debug("ollama probe failed", zap.String("base_url", p.baseURL), zap.Error(err))
		return ollamaTags{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ollamaTags{}
	}
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	res := ollamaTags{reachable: true, models: []string{}}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		logutil.GetLogger(ctx).Warn("decode ollama tags failed", zap.Error(err))
		return res
	}
	for _, m := range out.Models {
		res.models = append(res.models, m.Name)
	}
	return res
}
