package job

import (
	"context"
	"time"
)

type StaleRecoverer interface {
	RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

type SourceRecoveryJob struct {
	sources StaleRecoverer
	maxAge  time.Duration
}

func NewSourceRecoveryJob(sources StaleRecoverer, maxAge time.Duration) *SourceRecoveryJob {
	return &SourceRecoveryJob{sources: sources, maxAge: maxAge}
}

func (j *SourceRecoveryJob) Name() string {
	return "source_recovery"
}

func (j *SourceRecoveryJob) Run(ctx context.Context) error {
	if j.sources == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	_, err := j.sources.RecoverStale(ctx, maxAge)
	return err
}
