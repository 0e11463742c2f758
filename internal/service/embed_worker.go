package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/model"
)

const embedTaskTimeout = 2 * time.Minute

type EmbedWorkerConfig struct {
	Workers   int
	QueueSize int
	// Disabled turns Submit into a no-op, for deployments without a
	// usable embedding provider.
	Disabled bool
}

// EmbedWorker computes document embeddings off the request path. Tasks go
// through a bounded queue; failures are logged and dropped, the resync job
// picks the document up again later.
type EmbedWorker struct {
	notes    NoteStore
	sources  SourceStore
	embedder Embedder
	disabled bool

	tasks  chan model.EmbedTarget
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewEmbedWorker(notes NoteStore, sources SourceStore, embedder Embedder, cfg EmbedWorkerConfig) *EmbedWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	w := &EmbedWorker{
		notes:    notes,
		sources:  sources,
		embedder: embedder,
		disabled: cfg.Disabled,
		tasks:    make(chan model.EmbedTarget, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// Submit queues a task without blocking. It reports false when the task was
// dropped.
func (w *EmbedWorker) Submit(ctx context.Context, target model.EmbedTarget) bool {
	if w.disabled {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.tasks <- target:
		return true
	default:
		logutil.GetLogger(ctx).Warn("embed queue full, task dropped",
			zap.String("kind", target.Kind), zap.String("id", target.ID))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (w *EmbedWorker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.tasks)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *EmbedWorker) loop() {
	defer w.wg.Done()
	for target := range w.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), embedTaskTimeout)
		if err := w.Process(ctx, target); err != nil {
			logutil.GetLogger(ctx).Error("embed document failed",
				zap.String("kind", target.Kind), zap.String("id", target.ID), zap.Error(err))
		}
		cancel()
	}
}

// Process embeds one document synchronously.
func (w *EmbedWorker) Process(ctx context.Context, target model.EmbedTarget) error {
	switch target.Kind {
	case model.EmbedKindNote:
		note, err := w.notes.GetByID(ctx, target.OwnerID, target.ID)
		if err != nil {
			return err
		}
		vec, err := w.embedder.Embed(ctx, note.EmbedText())
		if err != nil {
			return embeddingFailed(err)
		}
		return w.notes.UpdateEmbedding(ctx, note.ID, vec)
	case model.EmbedKindSource:
		src, err := w.sources.GetByID(ctx, target.OwnerID, target.ID)
		if err != nil {
			return err
		}
		vec, err := w.embedder.Embed(ctx, src.EmbedText())
		if err != nil {
			return embeddingFailed(err)
		}
		return w.sources.UpdateEmbedding(ctx, src.ID, vec)
	default:
		return fmt.Errorf("unknown embed kind: %s", target.Kind)
	}
}
