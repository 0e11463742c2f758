package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/config"
)

const maxEmbedChars = 32000

// ErrDimensionMismatch is returned when the backend model produces vectors
// of a different size than the configured dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingBackend performs the raw provider call for already cleaned,
// non-empty inputs.
type EmbeddingBackend interface {
	Name() string
	EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error)
}

// sequentialFallback is implemented by backends whose batch answers may be
// incomplete and should then be retried one text at a time.
type sequentialFallback interface {
	allowSequential() bool
}

// Embedder turns text into fixed size vectors.
type Embedder struct {
	backend   EmbeddingBackend
	dimension int
}

func NewEmbedder(backend EmbeddingBackend, dimension int) *Embedder {
	return &Embedder{backend: backend, dimension: dimension}
}

// NewEmbedderFromConfig picks the backend that matches the chat provider.
func NewEmbedderFromConfig(llm config.LLMConfig, emb config.EmbeddingConfig) *Embedder {
	timeout := time.Duration(llm.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	var backend EmbeddingBackend
	switch llm.EmbeddingProvider() {
	case "ollama":
		backend = NewOllamaEmbedBackend(llm.Ollama.BaseURL, llm.Ollama.EmbeddingModel, timeout)
	default:
		backend = NewOpenAIEmbedBackend(llm.OpenAI.APIKey, llm.OpenAI.BaseURL, emb.Model, timeout)
	}
	return NewEmbedder(backend, emb.Dimension)
}

func (e *Embedder) Provider() string {
	return e.backend.Name()
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) zero() []float32 {
	return make([]float32, e.dimension)
}

func (e *Embedder) checkDimension(vec []float32) error {
	if len(vec) != e.dimension {
		return fmt.Errorf("%w: %s returned %d values, expected %d",
			ErrDimensionMismatch, e.backend.Name(), len(vec), e.dimension)
	}
	return nil
}

// CheckDimension embeds a short probe text and verifies the backend model
// matches the configured dimension.
func (e *Embedder) CheckDimension(ctx context.Context) error {
	_, err := e.Embed(ctx, "dimension check")
	return err
}

func cleanEmbedText(text string) string {
	clean := strings.TrimSpace(text)
	if len(clean) > maxEmbedChars {
		runes := []rune(clean)
		if len(runes) > maxEmbedChars {
			clean = string(runes[:maxEmbedChars])
		}
	}
	return clean
}

// Embed returns the vector for text. Blank text maps to the zero vector
// without calling the provider.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := cleanEmbedText(text)
	if clean == "" {
		return e.zero(), nil
	}
	start := time.Now()
	out, err := e.backend.EmbedTexts(ctx, []string{clean})
	observe(e.backend.Name(), "embed", start, err)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		if fb, ok := e.backend.(sequentialFallback); ok && fb.allowSequential() {
			return e.zero(), nil
		}
		return nil, fmt.Errorf("%s returned no embedding", e.backend.Name())
	}
	if err := e.checkDimension(out[0]); err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one call where possible. The result is in
// input order and blank inputs map to zero vectors.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	cleaned := make([]string, len(texts))
	inputs := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = cleanEmbedText(t)
		inputs[i] = cleaned[i]
		if inputs[i] == "" {
			inputs[i] = " "
		}
	}
	start := time.Now()
	out, err := e.backend.EmbedTexts(ctx, inputs)
	observe(e.backend.Name(), "embed_batch", start, err)
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		fb, ok := e.backend.(sequentialFallback)
		if !ok || !fb.allowSequential() {
			return nil, fmt.Errorf("%s returned %d embeddings for %d inputs", e.backend.Name(), len(out), len(texts))
		}
		logutil.GetLogger(ctx).Warn("batch embedding incomplete, falling back to sequential",
			zap.String("provider", e.backend.Name()), zap.Int("expected", len(texts)), zap.Int("got", len(out)))
		out = make([][]float32, 0, len(texts))
		for _, t := range texts {
			vec, err := e.Embed(ctx, t)
			if err != nil {
				return nil, err
			}
			out = append(out, vec)
		}
		return out, nil
	}
	for i, c := range cleaned {
		if c == "" {
			out[i] = e.zero()
			continue
		}
		if err := e.checkDimension(out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
