package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmbedder_BlankTextSkipsProvider(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	e := NewEmbedder(NewOpenAIEmbedBackend("sk", srv.URL, "text-embedding-3-small", time.Second), 4)

	vec, err := e.Embed(context.Background(), "  \n\t ")
	require.NoError(t, err)
	require.Equal(t, []float32{0, 0, 0, 0}, vec)
	require.Zero(t, atomic.LoadInt32(&calls))
}

func TestEmbedder_OpenAIBatchRestoresOrder(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":2,"embedding":[3,3]},
			{"object":"embedding","index":0,"embedding":[1,1]},
			{"object":"embedding","index":1,"embedding":[9,9]}
		],"model":"m"}`))
	}))
	defer srv.Close()
	e := NewEmbedder(NewOpenAIEmbedBackend("sk", srv.URL, "text-embedding-3-small", time.Second), 2)

	out, err := e.EmbedBatch(context.Background(), []string{"first", "", "third"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 1}, {0, 0}, {3, 3}}, out)
	require.Equal(t, []string{"first", " ", "third"}, got.Input)
	require.Equal(t, "text-embedding-3-small", got.Model)
}

func TestEmbedder_EmptyBatch(t *testing.T) {
	e := NewEmbedder(NewOpenAIEmbedBackend("", "", "m", time.Second), 2)
	out, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestEmbedder_OpenAIMissingKey(t *testing.T) {
	e := NewEmbedder(NewOpenAIEmbedBackend("", "", "m", time.Second), 2)
	_, err := e.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestEmbedder_TruncatesLongInput(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"embeddings":[[0.5]]}`))
	}))
	defer srv.Close()
	e := NewEmbedder(NewOllamaEmbedBackend(srv.URL, "nomic-embed-text", time.Second), 1)

	_, err := e.Embed(context.Background(), "  "+strings.Repeat("x", maxEmbedChars+50)+"  ")
	require.NoError(t, err)
	require.Len(t, got.Input[0], maxEmbedChars)
}

func TestEmbedder_OllamaFallsBackToSequential(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		atomic.AddInt32(&calls, 1)
		if len(req.Input) > 1 {
			_, _ = w.Write([]byte(`{"embeddings":[[1]]}`))
			return
		}
		if req.Input[0] == "a" {
			_, _ = w.Write([]byte(`{"embedding":[7]}`))
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[8]]}`))
	}))
	defer srv.Close()
	e := NewEmbedder(NewOllamaEmbedBackend(srv.URL, "nomic-embed-text", time.Second), 1)

	out, err := e.EmbedBatch(context.Background(), []string{"a", "", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{7}, {0}, {8}}, out)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbedder_OllamaUnavailable(t *testing.T) {
	base := closedPortURL(t)
	e := NewEmbedder(NewOllamaEmbedBackend(base, "nomic-embed-text", time.Second), 1)
	_, err := e.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "Cannot connect to Ollama at "+base)
}

type fixedBackend struct {
	size int
}

func (b *fixedBackend) Name() string { return "fixed" }

func (b *fixedBackend) EmbedTexts(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = make([]float32, b.size)
	}
	return out, nil
}

func TestEmbedder_RejectsWrongDimension(t *testing.T) {
	e := NewEmbedder(&fixedBackend{size: 768}, 1536)

	_, err := e.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, ErrDimensionMismatch)
	require.Contains(t, err.Error(), "returned 768 values, expected 1536")

	_, err = e.EmbedBatch(context.Background(), []string{"", "hello"})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	require.ErrorIs(t, e.CheckDimension(context.Background()), ErrDimensionMismatch)

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, 1536)
}

func TestEmbedder_MatchingDimension(t *testing.T) {
	e := NewEmbedder(&fixedBackend{size: 3}, 3)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "", "b"})
	require.NoError(t, err)
	for _, vec := range out {
		require.Len(t, vec, 3)
	}
	require.NoError(t, e.CheckDimension(context.Background()))
}
