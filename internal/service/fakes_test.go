package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeEmbedder) Provider() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEmbedder) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type sliceStream struct {
	parts  []string
	closed bool
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.parts) == 0 {
		return "", io.EOF
	}
	p := s.parts[0]
	s.parts = s.parts[1:]
	return p, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakeChat struct {
	provider string
	reply    string
	err      error
	requests []ai.ChatRequest
}

func (f *fakeChat) DefaultProvider() string {
	if f.provider == "" {
		return "openai"
	}
	return f.provider
}

func (f *fakeChat) Model(name string) string { return "model-" + name }

func (f *fakeChat) Complete(ctx context.Context, req ai.ChatRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeChat) CompleteStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &sliceStream{parts: []string{f.reply}}, nil
}

func (f *fakeChat) last() ai.ChatRequest {
	return f.requests[len(f.requests)-1]
}

type fakeTTS struct {
	mu     sync.Mutex
	delay  func(text string) time.Duration
	err    error
	voices []string
}

func (f *fakeTTS) Name() string         { return "openai" }
func (f *fakeTTS) DefaultVoice() string { return "alloy" }

func (f *fakeTTS) SpeakerVoice(speaker string) string {
	if speaker == ai.SpeakerHostB {
		return "nova"
	}
	return "onyx"
}

// Synthesize returns one 16-bit frame per character, every sample equal to
// the first byte of the text.
func (f *fakeTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if f.delay != nil {
		time.Sleep(f.delay(text))
	}
	f.mu.Lock()
	f.voices = append(f.voices, voice)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]byte, 0, len(text)*2)
	for range text {
		out = append(out, text[0], 0)
	}
	return out, nil
}

type fakeSpeech struct {
	backend *fakeTTS
}

func (f *fakeSpeech) Backend(name string) ai.TTSBackend { return f.backend }

func (f *fakeSpeech) Synthesize(ctx context.Context, req ai.SpeechRequest) ([]byte, error) {
	voice := req.Voice
	if voice == "" {
		voice = f.backend.DefaultVoice()
	}
	return f.backend.Synthesize(ctx, req.Text, voice)
}

type fakeOllama struct {
	up     bool
	models []string
}

func (f *fakeOllama) BaseURL() string                     { return "http://ollama:11434" }
func (f *fakeOllama) Available(ctx context.Context) bool  { return f.up }
func (f *fakeOllama) Models(ctx context.Context) []string { return f.models }

type fakeNoteStore struct {
	mu         sync.Mutex
	notes      map[string]*model.Note
	embeddings map[string][]float32
	matches    []model.NoteMatch
	lastQuery  model.VectorQuery
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{notes: map[string]*model.Note{}, embeddings: map[string][]float32{}}
}

func (f *fakeNoteStore) Create(ctx context.Context, note *model.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *note
	f.notes[note.ID] = &cp
	return nil
}

func (f *fakeNoteStore) Update(ctx context.Context, note *model.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[note.ID]; !ok {
		return appErr.ErrNotFound
	}
	cp := *note
	f.notes[note.ID] = &cp
	return nil
}

func (f *fakeNoteStore) Delete(ctx context.Context, ownerID, noteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return appErr.ErrNotFound
	}
	delete(f.notes, noteID)
	return nil
}

func (f *fakeNoteStore) GetByID(ctx context.Context, ownerID, noteID string) (*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return nil, appErr.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNoteStore) List(ctx context.Context, ownerID string, filter model.NoteFilter, offset, limit int) ([]model.Note, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Note
	for _, n := range f.notes {
		if n.OwnerID == ownerID {
			all = append(all, *n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeNoteStore) UpdateEmbedding(ctx context.Context, noteID string, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddings[noteID] = vec
	return nil
}

func (f *fakeNoteStore) GetEmbedding(ctx context.Context, ownerID, noteID string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[noteID]
	if !ok || n.OwnerID != ownerID {
		return nil, appErr.ErrNotFound
	}
	return f.embeddings[noteID], nil
}

func (f *fakeNoteStore) SearchSimilar(ctx context.Context, q model.VectorQuery) ([]model.NoteMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	return f.matches, nil
}

func (f *fakeNoteStore) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EmbedTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.EmbedTarget
	for _, n := range f.notes {
		if _, ok := f.embeddings[n.ID]; !ok {
			out = append(out, model.EmbedTarget{Kind: model.EmbedKindNote, ID: n.ID, OwnerID: n.OwnerID})
		}
	}
	return out, nil
}

func (f *fakeNoteStore) ListAfter(ctx context.Context, afterID string, limit int) ([]model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Note
	for _, n := range f.notes {
		if n.ID > afterID {
			all = append(all, *n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeNoteStore) embedding(id string) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddings[id]
}

type fakeSourceStore struct {
	mu         sync.Mutex
	sources    map[string]*model.Source
	embeddings map[string][]float32
	matches    []model.SourceMatch
	lastQuery  model.VectorQuery
}

func newFakeSourceStore() *fakeSourceStore {
	return &fakeSourceStore{sources: map[string]*model.Source{}, embeddings: map[string][]float32{}}
}

func (f *fakeSourceStore) Create(ctx context.Context, src *model.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *src
	f.sources[src.ID] = &cp
	return nil
}

func (f *fakeSourceStore) Update(ctx context.Context, src *model.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sources[src.ID]; !ok {
		return appErr.ErrNotFound
	}
	cp := *src
	f.sources[src.ID] = &cp
	return nil
}

func (f *fakeSourceStore) Delete(ctx context.Context, ownerID, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[sourceID]
	if !ok || s.OwnerID != ownerID {
		return appErr.ErrNotFound
	}
	delete(f.sources, sourceID)
	return nil
}

func (f *fakeSourceStore) GetByID(ctx context.Context, ownerID, sourceID string) (*model.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[sourceID]
	if !ok || s.OwnerID != ownerID {
		return nil, appErr.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSourceStore) GetMany(ctx context.Context, ownerID string, ids []string) ([]model.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Source, 0, len(ids))
	for _, id := range ids {
		if s, ok := f.sources[id]; ok && s.OwnerID == ownerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSourceStore) List(ctx context.Context, ownerID, sourceType string, offset, limit int) ([]model.Source, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Source
	for _, s := range f.sources {
		if s.OwnerID == ownerID && (sourceType == "" || s.SourceType == sourceType) {
			all = append(all, *s)
		}
	}
	return all, len(all), nil
}

func (f *fakeSourceStore) UpdateStatus(ctx context.Context, sourceID, status, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[sourceID]
	if !ok {
		return appErr.ErrNotFound
	}
	s.Status = status
	s.Error = errMsg
	return nil
}

func (f *fakeSourceStore) FailStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sources {
		if s.Status == model.SourceStatusLoading && s.UpdatedAt.Before(cutoff) {
			s.Status = model.SourceStatusError
			s.Error = errMsg
			n++
		}
	}
	return n, nil
}

func (f *fakeSourceStore) UpdateEmbedding(ctx context.Context, sourceID string, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddings[sourceID] = vec
	return nil
}

func (f *fakeSourceStore) SearchSimilar(ctx context.Context, q model.VectorQuery) ([]model.SourceMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	return f.matches, nil
}

func (f *fakeSourceStore) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EmbedTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.EmbedTarget
	for _, s := range f.sources {
		if _, ok := f.embeddings[s.ID]; !ok && s.Status == model.SourceStatusSuccess {
			out = append(out, model.EmbedTarget{Kind: model.EmbedKindSource, ID: s.ID, OwnerID: s.OwnerID})
		}
	}
	return out, nil
}

func (f *fakeSourceStore) ListAfter(ctx context.Context, afterID string, limit int) ([]model.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Source
	for _, s := range f.sources {
		if s.ID > afterID && s.Status == model.SourceStatusSuccess {
			all = append(all, *s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeSourceStore) get(id string) model.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.sources[id]
}

func (f *fakeSourceStore) embedding(id string) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeddings[id]
}

type fakeUserStore struct {
	users     map[string]*model.User
	lastLogin map[string]time.Time
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*model.User{}, lastLogin: map[string]time.Time{}}
}

func (f *fakeUserStore) Create(ctx context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return appErr.ErrConflict
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, userID string) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, user *model.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return appErr.ErrNotFound
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	f.lastLogin[userID] = at
	return nil
}

func (f *fakeUserStore) List(ctx context.Context, skip, limit int) ([]model.User, error) {
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserStore) Count(ctx context.Context) (int, error) {
	return len(f.users), nil
}

func (f *fakeUserStore) Delete(ctx context.Context, userID string) error {
	if _, ok := f.users[userID]; !ok {
		return appErr.ErrNotFound
	}
	delete(f.users, userID)
	return nil
}

var errBoom = errors.New("boom")
