package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOllamaProbe_CachesTags(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	probe := NewOllamaProbe(srv.URL+"/", time.Minute)
	require.Equal(t, srv.URL, probe.BaseURL())
	require.True(t, probe.Available(context.Background()))
	require.Equal(t, []string{"llama3.2:latest", "nomic-embed-text:latest"}, probe.Models(context.Background()))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOllamaProbe_Unreachable(t *testing.T) {
	probe := NewOllamaProbe(closedPortURL(t), 0)
	require.False(t, probe.Available(context.Background()))
	require.Equal(t, []string{}, probe.Models(context.Background()))
}
