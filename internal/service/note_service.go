package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/model"
)

const (
	maxTitleLen     = 500
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type NoteInput struct {
	Title    string
	Content  string
	Tags     []string
	IsPinned bool
}

// NotePatch holds the fields of a partial update; nil means unchanged.
type NotePatch struct {
	Title      *string
	Content    *string
	Tags       []string
	SetTags    bool
	IsPinned   *bool
	IsArchived *bool
}

type NotePage struct {
	Items    []model.Note `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	HasMore  bool         `json:"has_more"`
}

type NoteService struct {
	notes    NoteStore
	contexts *ContextService
	worker   *EmbedWorker
	renderer *markdownRenderer
}

func NewNoteService(notes NoteStore, contexts *ContextService, worker *EmbedWorker) *NoteService {
	return &NoteService{notes: notes, contexts: contexts, worker: worker, renderer: newMarkdownRenderer()}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", invalid("title must be at most %d characters", maxTitleLen)
	}
	return title, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (s *NoteService) submitEmbed(ctx context.Context, note *model.Note) {
	if s.worker == nil {
		return
	}
	s.worker.Submit(ctx, model.EmbedTarget{Kind: model.EmbedKindNote, ID: note.ID, OwnerID: note.OwnerID})
}

func (s *NoteService) Create(ctx context.Context, ownerID string, input NoteInput) (*model.Note, error) {
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	html, err := s.renderer.Render(input.Content)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	note := &model.Note{
		ID:          newID(),
		OwnerID:     ownerID,
		Title:       title,
		Content:     input.Content,
		ContentHTML: html,
		Tags:        cleanTags(input.Tags),
		IsPinned:    input.IsPinned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("note created", zap.String("user_id", ownerID), zap.String("note_id", note.ID))
	s.submitEmbed(ctx, note)
	return note, nil
}

func (s *NoteService) Get(ctx context.Context, ownerID, noteID string) (*model.Note, error) {
	note, err := s.notes.GetByID(ctx, ownerID, noteID)
	if err != nil {
		return nil, wrapNotFound(err, "Note not found")
	}
	return note, nil
}

// Update applies a partial change. The embedding is recomputed only when
// the indexed text changes.
func (s *NoteService) Update(ctx context.Context, ownerID, noteID string, patch NotePatch) (*model.Note, error) {
	note, err := s.Get(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	before := note.EmbedText()
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		note.Title = title
	}
	if patch.Content != nil {
		html, err := s.renderer.Render(*patch.Content)
		if err != nil {
			return nil, err
		}
		note.Content = *patch.Content
		note.ContentHTML = html
	}
	if patch.SetTags {
		note.Tags = cleanTags(patch.Tags)
	}
	if patch.IsPinned != nil {
		note.IsPinned = *patch.IsPinned
	}
	if patch.IsArchived != nil {
		note.IsArchived = *patch.IsArchived
	}
	note.UpdatedAt = time.Now().UTC()
	if err := s.notes.Update(ctx, note); err != nil {
		return nil, wrapNotFound(err, "Note not found")
	}
	if note.EmbedText() != before {
		s.submitEmbed(ctx, note)
	}
	return note, nil
}

func (s *NoteService) SetArchived(ctx context.Context, ownerID, noteID string, archived bool) (*model.Note, error) {
	return s.Update(ctx, ownerID, noteID, NotePatch{IsArchived: &archived})
}

func (s *NoteService) Delete(ctx context.Context, ownerID, noteID string) error {
	return wrapNotFound(s.notes.Delete(ctx, ownerID, noteID), "Note not found")
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func (s *NoteService) List(ctx context.Context, ownerID string, filter model.NoteFilter, page, pageSize int) (*NotePage, error) {
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.notes.List(ctx, ownerID, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &NotePage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  page*pageSize < total,
	}, nil
}

func (s *NoteService) SemanticSearch(ctx context.Context, ownerID, query string, limit int, threshold float64) ([]model.NoteMatch, error) {
	return s.contexts.FindRelevantContext(ctx, ownerID, query, limit, threshold)
}

func (s *NoteService) Similar(ctx context.Context, ownerID, noteID string, limit int) ([]model.NoteMatch, error) {
	if _, err := s.Get(ctx, ownerID, noteID); err != nil {
		return nil, err
	}
	return s.contexts.FindSimilarNotes(ctx, ownerID, noteID, limit)
}
