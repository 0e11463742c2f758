package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

func TestFindRelevantContext_PassesQueryThrough(t *testing.T) {
	notes := newFakeNoteStore()
	notes.matches = []model.NoteMatch{{Note: model.Note{ID: "n1"}, Similarity: 0.9}}
	svc := NewContextService(notes, newFakeSourceStore(), &fakeEmbedder{})

	got, err := svc.FindRelevantContext(context.Background(), "u1", "what is go", 3, 0.4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "u1", notes.lastQuery.OwnerID)
	require.Equal(t, 3, notes.lastQuery.Limit)
	require.Equal(t, 0.4, notes.lastQuery.Threshold)
	require.Empty(t, notes.lastQuery.ExcludeID)
	require.NotEmpty(t, notes.lastQuery.Vector)
}

func TestFindRelevantContext_EmbeddingFailure(t *testing.T) {
	svc := NewContextService(newFakeNoteStore(), newFakeSourceStore(), &fakeEmbedder{err: errBoom})
	_, err := svc.FindRelevantContext(context.Background(), "u1", "q", 5, DefaultContextThreshold)
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	require.ErrorIs(t, err, errBoom)
}

func TestFindRelevantContext_DefaultLimit(t *testing.T) {
	notes := newFakeNoteStore()
	svc := NewContextService(notes, newFakeSourceStore(), &fakeEmbedder{})
	_, err := svc.FindRelevantContext(context.Background(), "u1", "q", 0, DefaultContextThreshold)
	require.NoError(t, err)
	require.Equal(t, DefaultContextLimit, notes.lastQuery.Limit)
}

func TestFindSimilarNotes_UsesStoredEmbedding(t *testing.T) {
	notes := newFakeNoteStore()
	require.NoError(t, notes.Create(context.Background(), &model.Note{ID: "n1", OwnerID: "u1"}))
	notes.embeddings["n1"] = []float32{0.1, 0.2}
	emb := &fakeEmbedder{}
	svc := NewContextService(notes, newFakeSourceStore(), emb)

	_, err := svc.FindSimilarNotes(context.Background(), "u1", "n1", 5)
	require.NoError(t, err)
	require.Equal(t, "n1", notes.lastQuery.ExcludeID)
	require.Equal(t, DefaultSimilarThreshold, notes.lastQuery.Threshold)
	require.Equal(t, []float32{0.1, 0.2}, notes.lastQuery.Vector)
	require.Empty(t, emb.seen())
}

func TestFindSimilarNotes_WithoutEmbedding(t *testing.T) {
	notes := newFakeNoteStore()
	require.NoError(t, notes.Create(context.Background(), &model.Note{ID: "n1", OwnerID: "u1"}))
	svc := NewContextService(notes, newFakeSourceStore(), &fakeEmbedder{})
	got, err := svc.FindSimilarNotes(context.Background(), "u1", "n1", 5)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = svc.FindSimilarNotes(context.Background(), "other", "n1", 5)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestFindRelevantSources(t *testing.T) {
	sources := newFakeSourceStore()
	sources.matches = []model.SourceMatch{{Source: model.Source{ID: "s1"}, Similarity: 0.7}}
	svc := NewContextService(newFakeNoteStore(), sources, &fakeEmbedder{})
	got, err := svc.FindRelevantSources(context.Background(), "u1", "topic", 10, 0.3)
	require.NoError(t, err)
	require.Equal(t, "s1", got[0].ID)
	require.Equal(t, 10, sources.lastQuery.Limit)
}
