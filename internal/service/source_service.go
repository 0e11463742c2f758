package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/filestore"
	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

const (
	MaxUploadSize  = 10 * 1024 * 1024
	maxSourceError = 500
	maxURLLen      = 2000
)

var allowedUploadExts = []string{".pdf", ".txt", ".md"}

var errNoExtractor = errors.New("no extractor configured")

type SourcePatch struct {
	Title   *string
	Content *string
}

type SourcePage struct {
	Items    []model.Source `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	HasMore  bool           `json:"has_more"`
}

// SourceCollaborators extract text the service cannot read itself. Any of
// them may be nil; sources that need a missing one end in the error state.
type SourceCollaborators struct {
	PDF         TextExtractor
	Pages       PageFetcher
	Transcripts TranscriptFetcher
}

type SourceService struct {
	sources  SourceStore
	files    filestore.Store
	contexts *ContextService
	worker   *EmbedWorker
	collab   SourceCollaborators
}

func NewSourceService(sources SourceStore, files filestore.Store, contexts *ContextService, worker *EmbedWorker, collab SourceCollaborators) *SourceService {
	return &SourceService{sources: sources, files: files, contexts: contexts, worker: worker, collab: collab}
}

func (s *SourceService) submitEmbed(ctx context.Context, src *model.Source) {
	if s.worker == nil {
		return
	}
	s.worker.Submit(ctx, model.EmbedTarget{Kind: model.EmbedKindSource, ID: src.ID, OwnerID: src.OwnerID})
}

func newSource(ownerID, sourceType, title string) *model.Source {
	now := time.Now().UTC()
	return &model.Source{
		ID:         newID(),
		OwnerID:    ownerID,
		SourceType: sourceType,
		Title:      title,
		ExtraData:  map[string]interface{}{},
		Status:     model.SourceStatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// begin stores a new source in the loading state.
func (s *SourceService) begin(ctx context.Context, src *model.Source) error {
	src.Status = model.SourceStatusLoading
	return s.sources.Create(ctx, src)
}

// fail moves a loading source to the error state and returns an invalid
// request error reading "prefix: cause".
func (s *SourceService) fail(ctx context.Context, src *model.Source, prefix string, cause error) error {
	msg := cause.Error()
	if msg == "" {
		msg = "Unknown error"
	}
	msg = truncateRunes(msg, maxSourceError)
	if err := s.sources.UpdateStatus(ctx, src.ID, model.SourceStatusError, msg); err != nil {
		logutil.GetLogger(ctx).Error("mark source failed", zap.String("source_id", src.ID), zap.Error(err))
	}
	src.Status = model.SourceStatusError
	src.Error = msg
	logutil.GetLogger(ctx).Error("source ingestion failed", zap.String("source_id", src.ID),
		zap.String("source_type", src.SourceType), zap.Error(cause))
	return &kindError{kind: appErr.ErrInvalid, msg: fmt.Sprintf("%s: %v", prefix, cause), cause: cause}
}

// complete fills the extracted text and moves the source to success.
func (s *SourceService) complete(ctx context.Context, src *model.Source, ex *Extracted) error {
	if ex.Title != "" {
		src.Title = ex.Title
	}
	if ex.URL != "" {
		src.URL = ex.URL
	}
	src.Content = ex.Content
	src.PageCount = ex.Pages
	src.WordCount = wordCount(ex.Content)
	for k, v := range ex.ExtraData {
		src.ExtraData[k] = v
	}
	src.Status = model.SourceStatusSuccess
	src.Error = ""
	src.UpdatedAt = time.Now().UTC()
	if err := s.sources.Update(ctx, src); err != nil {
		return err
	}
	s.submitEmbed(ctx, src)
	return nil
}

func (s *SourceService) CreateText(ctx context.Context, ownerID, title, content string) (*model.Source, error) {
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, invalid("content is required")
	}
	src := newSource(ownerID, model.SourceTypeText, title)
	src.Content = content
	src.WordCount = wordCount(content)
	src.Status = model.SourceStatusSuccess
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, err
	}
	s.submitEmbed(ctx, src)
	return src, nil
}

func allowedExt(ext string) bool {
	for _, e := range allowedUploadExts {
		if e == ext {
			return true
		}
	}
	return false
}

// Upload stores the raw file and extracts its text. PDF files go through
// the configured extractor; text files are decoded as UTF-8 with a Latin-1
// fallback.
func (s *SourceService) Upload(ctx context.Context, ownerID, filename string, data []byte) (*model.Source, error) {
	if filename == "" {
		filename = "upload"
	}
	ext := fileExt(filename)
	if !allowedExt(ext) {
		return nil, invalid("File type not allowed. Allowed types: %s", strings.Join(allowedUploadExts, ", "))
	}
	if len(data) > MaxUploadSize {
		return nil, invalid("File too large. Maximum size: %dMB", MaxUploadSize/(1024*1024))
	}
	sourceType := model.SourceTypeFile
	if ext == ".pdf" {
		sourceType = model.SourceTypePDF
	}
	src := newSource(ownerID, sourceType, filename)
	src.Filename = filename
	if err := s.begin(ctx, src); err != nil {
		return nil, err
	}
	if s.files != nil {
		key := filestore.SourceKey(src.ID, filename)
		if err := s.files.Save(ctx, key, filestore.BytesReader(data), int64(len(data))); err != nil {
			return nil, s.fail(ctx, src, "Failed to process file", err)
		}
		src.ExtraData["file_key"] = key
	}
	ex, err := s.extractFile(ctx, filename, ext, data)
	if err != nil {
		return nil, s.fail(ctx, src, "Failed to process file", err)
	}
	if err := s.complete(ctx, src, ex); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *SourceService) extractFile(ctx context.Context, filename, ext string, data []byte) (*Extracted, error) {
	if ext == ".pdf" {
		if s.collab.PDF == nil {
			return nil, fmt.Errorf("pdf: %w", errNoExtractor)
		}
		ex, err := s.collab.PDF.Extract(ctx, filename, data)
		if err != nil {
			return nil, err
		}
		ex.Content = cleanText(ex.Content)
		return ex, nil
	}
	return &Extracted{Title: stripExt(filename), Content: cleanText(decodeText(data))}, nil
}

// AddURL ingests a web page. YouTube links are routed to AddYouTube.
func (s *SourceService) AddURL(ctx context.Context, ownerID, url string) (*model.Source, error) {
	url = strings.TrimSpace(url)
	if url == "" || utf8.RuneCountInString(url) > maxURLLen {
		return nil, invalid("url must be between 1 and %d characters", maxURLLen)
	}
	if IsYouTubeURL(url) {
		return s.AddYouTube(ctx, ownerID, url)
	}
	src := newSource(ownerID, model.SourceTypeURL, url)
	src.URL = url
	if err := s.begin(ctx, src); err != nil {
		return nil, err
	}
	if s.collab.Pages == nil {
		return nil, s.fail(ctx, src, "Failed to scrape URL", fmt.Errorf("url: %w", errNoExtractor))
	}
	ex, err := s.collab.Pages.Fetch(ctx, url)
	if err != nil {
		return nil, s.fail(ctx, src, "Failed to scrape URL", err)
	}
	if err := s.complete(ctx, src, ex); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *SourceService) AddYouTube(ctx context.Context, ownerID, url string) (*model.Source, error) {
	videoID, ok := YouTubeVideoID(url)
	if !ok {
		return nil, invalid("Not a valid YouTube URL. Please provide a youtube.com or youtu.be URL.")
	}
	src := newSource(ownerID, model.SourceTypeYouTube, url)
	src.URL = "https://www.youtube.com/watch?v=" + videoID
	src.ExtraData["video_id"] = videoID
	if err := s.begin(ctx, src); err != nil {
		return nil, err
	}
	if s.collab.Transcripts == nil {
		return nil, s.fail(ctx, src, "Failed to extract YouTube transcript", fmt.Errorf("youtube: %w", errNoExtractor))
	}
	ex, err := s.collab.Transcripts.Transcript(ctx, videoID)
	if err != nil {
		return nil, s.fail(ctx, src, "Failed to extract YouTube transcript", err)
	}
	if err := s.complete(ctx, src, ex); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *SourceService) Get(ctx context.Context, ownerID, sourceID string) (*model.Source, error) {
	src, err := s.sources.GetByID(ctx, ownerID, sourceID)
	if err != nil {
		return nil, wrapNotFound(err, "Source not found")
	}
	return src, nil
}

// Update recomputes the word count when content changes and re-embeds when
// title or content changes.
func (s *SourceService) Update(ctx context.Context, ownerID, sourceID string, patch SourcePatch) (*model.Source, error) {
	src, err := s.Get(ctx, ownerID, sourceID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		src.Title = title
	}
	if patch.Content != nil {
		src.Content = *patch.Content
		src.WordCount = wordCount(src.Content)
	}
	src.UpdatedAt = time.Now().UTC()
	if err := s.sources.Update(ctx, src); err != nil {
		return nil, wrapNotFound(err, "Source not found")
	}
	if patch.Title != nil || patch.Content != nil {
		s.submitEmbed(ctx, src)
	}
	return src, nil
}

func (s *SourceService) Delete(ctx context.Context, ownerID, sourceID string) error {
	return wrapNotFound(s.sources.Delete(ctx, ownerID, sourceID), "Source not found")
}

func (s *SourceService) List(ctx context.Context, ownerID, sourceType string, page, pageSize int) (*SourcePage, error) {
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.sources.List(ctx, ownerID, sourceType, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &SourcePage{Items: items, Total: total, Page: page, PageSize: pageSize, HasMore: page*pageSize < total}, nil
}

// Resolve loads the owner's sources in the requested order. Unknown or
// foreign ids are skipped; none found is a not found error.
func (s *SourceService) Resolve(ctx context.Context, ownerID string, ids []string) ([]model.Source, error) {
	if len(ids) == 0 {
		return nil, ErrNoSources
	}
	sources, err := s.sources.GetMany(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, notFound("No sources found")
	}
	return sources, nil
}

// RecoverStale fails sources left in loading for longer than maxAge, which
// happens when the process stops in the middle of an ingestion.
func (s *SourceService) RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := s.sources.FailStale(ctx, time.Now().UTC().Add(-maxAge), "Processing was interrupted")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Warn("failed stale sources", zap.Int64("count", n))
	}
	return n, nil
}

func (s *SourceService) SemanticSearch(ctx context.Context, ownerID, query string, limit int, threshold float64) ([]model.SourceMatch, error) {
	return s.contexts.FindRelevantSources(ctx, ownerID, query, limit, threshold)
}
