package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notebook/internal/config"
	"github.com/xxxsen/notebook/internal/filestore"
	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

type fakePDF struct {
	ex  *Extracted
	err error
}

func (f *fakePDF) Extract(ctx context.Context, filename string, data []byte) (*Extracted, error) {
	return f.ex, f.err
}

type fakeTranscripts struct {
	gotID string
}

func (f *fakeTranscripts) Transcript(ctx context.Context, videoID string) (*Extracted, error) {
	f.gotID = videoID
	return &Extracted{
		Title:     "Video",
		Content:   "# Video\n\n## Transcript\n\nhello there",
		ExtraData: map[string]interface{}{"channel": "chan"},
	}, nil
}

func newTestSourceService(t *testing.T, collab SourceCollaborators) (*SourceService, *fakeSourceStore, filestore.Store, *EmbedWorker) {
	sources := newFakeSourceStore()
	store, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	emb := &fakeEmbedder{}
	worker := NewEmbedWorker(newFakeNoteStore(), sources, emb, EmbedWorkerConfig{Workers: 1, QueueSize: 8})
	contexts := NewContextService(newFakeNoteStore(), sources, emb)
	return NewSourceService(sources, store, contexts, worker, collab), sources, store, worker
}

func TestSourceUpload_TextWithLatin1Fallback(t *testing.T) {
	svc, sources, store, worker := newTestSourceService(t, SourceCollaborators{})
	data := []byte("caf\xe9   au  lait\r\n\r\n\r\n\r\nend")
	src, err := svc.Upload(context.Background(), "u1", "notes.txt", data)
	require.NoError(t, err)
	worker.Close()

	require.Equal(t, model.SourceTypeFile, src.SourceType)
	require.Equal(t, model.SourceStatusSuccess, src.Status)
	require.Equal(t, "notes", src.Title)
	require.Equal(t, "café au lait\n\nend", src.Content)
	require.Equal(t, 4, *src.WordCount)
	require.NotNil(t, sources.embedding(src.ID))

	f, err := store.Open(context.Background(), filestore.SourceKey(src.ID, "notes.txt"))
	require.NoError(t, err)
	defer f.Close()
	raw, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, data, raw)
}

func TestSourceUpload_Rejections(t *testing.T) {
	svc, _, _, worker := newTestSourceService(t, SourceCollaborators{})
	defer worker.Close()
	_, err := svc.Upload(context.Background(), "u1", "image.png", []byte("x"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Equal(t, "File type not allowed. Allowed types: .pdf, .txt, .md", err.Error())

	_, err = svc.Upload(context.Background(), "u1", "big.md", make([]byte, MaxUploadSize+1))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Equal(t, "File too large. Maximum size: 10MB", err.Error())
}

func TestSourceUpload_PDFWithoutExtractorFails(t *testing.T) {
	svc, sources, _, worker := newTestSourceService(t, SourceCollaborators{})
	defer worker.Close()
	_, err := svc.Upload(context.Background(), "u1", "paper.pdf", []byte("%PDF"))
	require.ErrorIs(t, err, errNoExtractor)

	require.Len(t, sources.sources, 1)
	for id := range sources.sources {
		got := sources.get(id)
		require.Equal(t, model.SourceTypePDF, got.SourceType)
		require.Equal(t, model.SourceStatusError, got.Status)
		require.NotEmpty(t, got.Error)
	}
}

func TestSourceUpload_PDFWithExtractor(t *testing.T) {
	pages := 3
	pdf := &fakePDF{ex: &Extracted{Title: "Paper", Content: "one  two\n\n\n\nthree", Pages: &pages}}
	svc, _, _, worker := newTestSourceService(t, SourceCollaborators{PDF: pdf})
	defer worker.Close()
	src, err := svc.Upload(context.Background(), "u1", "paper.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "Paper", src.Title)
	require.Equal(t, "one two\n\nthree", src.Content)
	require.Equal(t, 3, *src.PageCount)
	require.Equal(t, 3, *src.WordCount)
}

func TestSourceAddURL_RoutesYouTube(t *testing.T) {
	yt := &fakeTranscripts{}
	svc, _, _, worker := newTestSourceService(t, SourceCollaborators{Transcripts: yt})
	defer worker.Close()
	src, err := svc.AddURL(context.Background(), "u1", "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, "dQw4w9WgXcQ", yt.gotID)
	require.Equal(t, model.SourceTypeYouTube, src.SourceType)
	require.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", src.URL)
	require.Equal(t, "Video", src.Title)
	require.Equal(t, "chan", src.ExtraData["channel"])
	require.Equal(t, "dQw4w9WgXcQ", src.ExtraData["video_id"])
}

func TestSourceAddURL_WithoutFetcher(t *testing.T) {
	svc, _, _, worker := newTestSourceService(t, SourceCollaborators{})
	defer worker.Close()
	_, err := svc.AddURL(context.Background(), "u1", "https://example.com/post")
	require.ErrorIs(t, err, errNoExtractor)
	require.Contains(t, err.Error(), "Failed to scrape URL")

	_, err = svc.AddYouTube(context.Background(), "u1", "https://example.com/watch")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestSourceTextAndUpdate(t *testing.T) {
	svc, _, _, worker := newTestSourceService(t, SourceCollaborators{})
	defer worker.Close()
	ctx := context.Background()
	src, err := svc.CreateText(ctx, "u1", "Title", "a b c")
	require.NoError(t, err)
	require.Equal(t, 3, *src.WordCount)
	require.Equal(t, model.SourceStatusSuccess, src.Status)

	content := "one two"
	updated, err := svc.Update(ctx, "u1", src.ID, SourcePatch{Content: &content})
	require.NoError(t, err)
	require.Equal(t, 2, *updated.WordCount)

	_, err = svc.Update(ctx, "u2", src.ID, SourcePatch{Content: &content})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSourceResolve(t *testing.T) {
	svc, _, _, worker := newTestSourceService(t, SourceCollaborators{})
	defer worker.Close()
	ctx := context.Background()
	a, err := svc.CreateText(ctx, "u1", "A", "a")
	require.NoError(t, err)
	b, err := svc.CreateText(ctx, "u1", "B", "b")
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, "u1", []string{b.ID, "missing", a.ID})
	require.NoError(t, err)
	require.Equal(t, []string{b.ID, a.ID}, []string{got[0].ID, got[1].ID})

	_, err = svc.Resolve(ctx, "u2", []string{a.ID})
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = svc.Resolve(ctx, "u1", nil)
	require.ErrorIs(t, err, ErrNoSources)
}

func TestYouTubeVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"https://youtube.com/watch?feature=x&v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":         "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ?si=abc": "dQw4w9WgXcQ",
		"dQw4w9WgXcQ": "dQw4w9WgXcQ",
	}
	for in, want := range cases {
		got, ok := YouTubeVideoID(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	_, ok := YouTubeVideoID("https://vimeo.com/123")
	require.False(t, ok)
	require.False(t, IsYouTubeURL("dQw4w9WgXcQ"))
	require.True(t, IsYouTubeURL("https://m.youtube.com/watch?v=dQw4w9WgXcQ"))
}

func TestSourceRecoverStale(t *testing.T) {
	svc, sources, _, worker := newTestSourceService(t, SourceCollaborators{})
	defer worker.Close()
	old := newSource("u1", model.SourceTypeURL, "old")
	old.Status = model.SourceStatusLoading
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	fresh := newSource("u1", model.SourceTypeURL, "fresh")
	fresh.Status = model.SourceStatusLoading
	require.NoError(t, sources.Create(context.Background(), old))
	require.NoError(t, sources.Create(context.Background(), fresh))

	n, err := svc.RecoverStale(context.Background(), time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, model.SourceStatusError, sources.get(old.ID).Status)
	require.Equal(t, model.SourceStatusLoading, sources.get(fresh.ID).Status)
}
