package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultReindexBatch = 64

type ReindexStats struct {
	Notes   int
	Sources int
}

// IndexService keeps stored embeddings in step with document text.
type IndexService struct {
	notes    NoteStore
	sources  SourceStore
	embedder Embedder
	worker   *EmbedWorker
}

func NewIndexService(notes NoteStore, sources SourceStore, embedder Embedder, worker *EmbedWorker) *IndexService {
	return &IndexService{notes: notes, sources: sources, embedder: embedder, worker: worker}
}

// ResubmitMissing queues documents that still have no embedding.
func (s *IndexService) ResubmitMissing(ctx context.Context, limit int) (int, error) {
	noteTargets, err := s.notes.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return 0, err
	}
	sourceTargets, err := s.sources.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, t := range append(noteTargets, sourceTargets...) {
		if s.worker.Submit(ctx, t) {
			queued++
		}
	}
	return queued, nil
}

// Reindex recomputes every embedding synchronously with the batch API.
func (s *IndexService) Reindex(ctx context.Context, batch int) (*ReindexStats, error) {
	if batch <= 0 {
		batch = defaultReindexBatch
	}
	stats := &ReindexStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.reindexNotes(gctx, batch)
		stats.Notes = n
		return err
	})
	g.Go(func() error {
		n, err := s.reindexSources(gctx, batch)
		stats.Sources = n
		return err
	})
	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *IndexService) reindexNotes(ctx context.Context, batch int) (int, error) {
	total := 0
	after := ""
	for {
		notes, err := s.notes.ListAfter(ctx, after, batch)
		if err != nil {
			return total, err
		}
		if len(notes) == 0 {
			return total, nil
		}
		texts := make([]string, len(notes))
		for i := range notes {
			texts[i] = notes[i].EmbedText()
		}
		vecs, err := s.embedBatch(ctx, texts)
		if err != nil {
			return total, err
		}
		for i := range notes {
			if err := s.notes.UpdateEmbedding(ctx, notes[i].ID, vecs[i]); err != nil {
				return total, err
			}
		}
		total += len(notes)
		after = notes[len(notes)-1].ID
		logutil.GetLogger(ctx).Info("notes reindexed", zap.Int("count", total))
	}
}

func (s *IndexService) reindexSources(ctx context.Context, batch int) (int, error) {
	total := 0
	after := ""
	for {
		sources, err := s.sources.ListAfter(ctx, after, batch)
		if err != nil {
			return total, err
		}
		if len(sources) == 0 {
			return total, nil
		}
		texts := make([]string, len(sources))
		for i := range sources {
			texts[i] = sources[i].EmbedText()
		}
		vecs, err := s.embedBatch(ctx, texts)
		if err != nil {
			return total, err
		}
		for i := range sources {
			if err := s.sources.UpdateEmbedding(ctx, sources[i].ID, vecs[i]); err != nil {
				return total, err
			}
		}
		total += len(sources)
		after = sources[len(sources)-1].ID
		logutil.GetLogger(ctx).Info("sources reindexed", zap.Int("count", total))
	}
}

func (s *IndexService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, embeddingFailed(err)
	}
	if len(vecs) != len(texts) {
		return nil, embeddingFailed(fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
	}
	return vecs, nil
}
