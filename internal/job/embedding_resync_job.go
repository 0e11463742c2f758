package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Resubmitter queues documents whose embedding is missing.
type Resubmitter interface {
	ResubmitMissing(ctx context.Context, limit int) (int, error)
}

// EmbeddingResyncJob catches documents the background worker dropped, for
// instance when its queue was full or the provider was down.
type EmbeddingResyncJob struct {
	index  Resubmitter
	usable func() bool
	batch  int
}

func NewEmbeddingResyncJob(index Resubmitter, usable func() bool, batch int) *EmbeddingResyncJob {
	if batch <= 0 {
		batch = 100
	}
	return &EmbeddingResyncJob{index: index, usable: usable, batch: batch}
}

func (j *EmbeddingResyncJob) Name() string {
	return "embedding_resync"
}

func (j *EmbeddingResyncJob) Run(ctx context.Context) error {
	if j.index == nil || (j.usable != nil && !j.usable()) {
		return nil
	}
	n, err := j.index.ResubmitMissing(ctx, j.batch)
	if err != nil {
		return err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Info("resubmitted missing embeddings", zap.Int("count", n))
	}
	return nil
}
