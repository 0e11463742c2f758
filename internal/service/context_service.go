package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/model"
)

const (
	DefaultContextThreshold = 0.3
	DefaultSimilarThreshold = 0.5
	DefaultContextLimit     = 5
	maxContextLimit         = 50
)

// ContextService finds the stored documents closest to a piece of text.
type ContextService struct {
	notes    NoteStore
	sources  SourceStore
	embedder Embedder
}

func NewContextService(notes NoteStore, sources SourceStore, embedder Embedder) *ContextService {
	return &ContextService{notes: notes, sources: sources, embedder: embedder}
}

func normalizeLimit(k int) int {
	if k <= 0 {
		return DefaultContextLimit
	}
	if k > maxContextLimit {
		return maxContextLimit
	}
	return k
}

func (s *ContextService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logutil.GetLogger(ctx).Error("embed query failed", zap.String("provider", s.embedder.Provider()), zap.Error(err))
		return nil, embeddingFailed(err)
	}
	return vec, nil
}

// FindRelevantContext returns up to k non archived notes of the owner whose
// similarity to query is at least threshold, best first.
func (s *ContextService) FindRelevantContext(ctx context.Context, ownerID, query string, k int, threshold float64) ([]model.NoteMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalid("query is required")
	}
	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.notes.SearchSimilar(ctx, model.VectorQuery{
		OwnerID:   ownerID,
		Vector:    vec,
		Threshold: threshold,
		Limit:     normalizeLimit(k),
	})
}

// FindSimilarNotes uses the stored embedding of noteID and never returns
// the note itself. A note without an embedding has no neighbours.
func (s *ContextService) FindSimilarNotes(ctx context.Context, ownerID, noteID string, k int) ([]model.NoteMatch, error) {
	vec, err := s.notes.GetEmbedding(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	if vec == nil {
		return []model.NoteMatch{}, nil
	}
	return s.notes.SearchSimilar(ctx, model.VectorQuery{
		OwnerID:   ownerID,
		Vector:    vec,
		Threshold: DefaultSimilarThreshold,
		Limit:     normalizeLimit(k),
		ExcludeID: noteID,
	})
}

func (s *ContextService) FindRelevantSources(ctx context.Context, ownerID, query string, k int, threshold float64) ([]model.SourceMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalid("query is required")
	}
	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.sources.SearchSimilar(ctx, model.VectorQuery{
		OwnerID:   ownerID,
		Vector:    vec,
		Threshold: threshold,
		Limit:     normalizeLimit(k),
	})
}
