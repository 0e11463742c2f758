package service

import (
	"context"
	"time"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/model"
)

// Embedder turns text into vectors. *ai.Embedder implements it.
type Embedder interface {
	Provider() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatClient is implemented by *ai.Client.
type ChatClient interface {
	DefaultProvider() string
	Model(name string) string
	Complete(ctx context.Context, req ai.ChatRequest) (string, error)
	CompleteStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error)
}

// Synthesizer is implemented by *ai.Speech.
type Synthesizer interface {
	Backend(name string) ai.TTSBackend
	Synthesize(ctx context.Context, req ai.SpeechRequest) ([]byte, error)
}

type NoteStore interface {
	Create(ctx context.Context, note *model.Note) error
	Update(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, ownerID, noteID string) error
	GetByID(ctx context.Context, ownerID, noteID string) (*model.Note, error)
	List(ctx context.Context, ownerID string, filter model.NoteFilter, offset, limit int) ([]model.Note, int, error)
	UpdateEmbedding(ctx context.Context, noteID string, vec []float32) error
	GetEmbedding(ctx context.Context, ownerID, noteID string) ([]float32, error)
	SearchSimilar(ctx context.Context, q model.VectorQuery) ([]model.NoteMatch, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EmbedTarget, error)
	ListAfter(ctx context.Context, afterID string, limit int) ([]model.Note, error)
}

type SourceStore interface {
	Create(ctx context.Context, src *model.Source) error
	Update(ctx context.Context, src *model.Source) error
	Delete(ctx context.Context, ownerID, sourceID string) error
	GetByID(ctx context.Context, ownerID, sourceID string) (*model.Source, error)
	GetMany(ctx context.Context, ownerID string, ids []string) ([]model.Source, error)
	List(ctx context.Context, ownerID, sourceType string, offset, limit int) ([]model.Source, int, error)
	UpdateStatus(ctx context.Context, sourceID, status, errMsg string) error
	FailStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error)
	UpdateEmbedding(ctx context.Context, sourceID string, vec []float32) error
	SearchSimilar(ctx context.Context, q model.VectorQuery) ([]model.SourceMatch, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EmbedTarget, error)
	ListAfter(ctx context.Context, afterID string, limit int) ([]model.Source, error)
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	List(ctx context.Context, skip, limit int) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, userID string) error
}
