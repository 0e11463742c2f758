package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/notebook/internal/model"
	"github.com/xxxsen/notebook/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

const noteColumns = "id, owner_id, title, content, content_html, tags, is_pinned, is_archived, embedding IS NOT NULL AS has_embedding, created_at, updated_at"

type NoteRepo struct {
	db *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

func (r *NoteRepo) Create(ctx context.Context, note *model.Note) error {
	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":           note.ID,
		"owner_id":     note.OwnerID,
		"title":        note.Title,
		"content":      note.Content,
		"content_html": note.ContentHTML,
		"tags":         tags,
		"is_pinned":    note.IsPinned,
		"is_archived":  note.IsArchived,
		"created_at":   note.CreatedAt,
		"updated_at":   note.UpdatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("notes", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *NoteRepo) Update(ctx context.Context, note *model.Note) error {
	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}
	where := map[string]interface{}{
		"id":       note.ID,
		"owner_id": note.OwnerID,
	}
	update := map[string]interface{}{
		"title":        note.Title,
		"content":      note.Content,
		"content_html": note.ContentHTML,
		"tags":         tags,
		"is_pinned":    note.IsPinned,
		"is_archived":  note.IsArchived,
		"updated_at":   note.UpdatedAt,
	}
	return execAffected(ctx, r.db, func() (string, []interface{}, error) {
		return builder.BuildUpdate("notes", where, update)
	})
}

func (r *NoteRepo) Delete(ctx context.Context, ownerID, noteID string) error {
	return execAffected(ctx, r.db, func() (string, []interface{}, error) {
		return builder.BuildDelete("notes", map[string]interface{}{"id": noteID, "owner_id": ownerID})
	})
}

func (r *NoteRepo) GetByID(ctx context.Context, ownerID, noteID string) (*model.Note, error) {
	query := sqlx.Rebind(sqlx.DOLLAR, "SELECT "+noteColumns+" FROM notes WHERE id = ? AND owner_id = ?")
	rows, err := r.db.QueryContext(ctx, query, noteID, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanNote(rows)
}

// List returns one page of the owner's notes, pinned first, most recently
// updated next, together with the number of notes matching the filter.
func (r *NoteRepo) List(ctx context.Context, ownerID string, filter model.NoteFilter, offset, limit int) ([]model.Note, int, error) {
	c := &conds{}
	c.add("owner_id = ?", ownerID)
	c.add("is_archived = ?", filter.Archived)
	if filter.PinnedOnly {
		c.add("is_pinned = TRUE")
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		c.add("(title ILIKE ? OR content ILIKE ?)", pattern, pattern)
	}
	if filter.Tag != "" {
		tag, err := encodeTags([]string{filter.Tag})
		if err != nil {
			return nil, 0, err
		}
		c.add("tags @> ?::jsonb", tag)
	}

	var total int
	countQuery := sqlx.Rebind(sqlx.DOLLAR, "SELECT COUNT(*) FROM notes"+c.where())
	if err := r.db.QueryRowContext(ctx, countQuery, c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + noteColumns + " FROM notes" + c.where() + " ORDER BY is_pinned DESC, updated_at DESC LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, c.args...), limit, offset)
	rows, err := r.db.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()
	notes := make([]model.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, *note)
	}
	return notes, total, rows.Err()
}

func (r *NoteRepo) UpdateEmbedding(ctx context.Context, noteID string, vec []float32) error {
	const query = `UPDATE notes SET embedding = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, pgvector.NewVector(vec), noteID)
	return err
}

// GetEmbedding returns the stored vector, or nil when none was computed yet.
func (r *NoteRepo) GetEmbedding(ctx context.Context, ownerID, noteID string) ([]float32, error) {
	const query = `SELECT embedding FROM notes WHERE id = $1 AND owner_id = $2`
	var vec pgvector.Vector
	var raw sql.NullString
	if err := r.db.QueryRowContext(ctx, query, noteID, ownerID).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if !raw.Valid {
		return nil, nil
	}
	if err := vec.Scan([]byte(raw.String)); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vec.Slice(), nil
}

func (r *NoteRepo) SearchSimilar(ctx context.Context, q model.VectorQuery) ([]model.NoteMatch, error) {
	vec := pgvector.NewVector(q.Vector)
	c := &conds{}
	c.add("owner_id = ?", q.OwnerID)
	c.add("embedding IS NOT NULL")
	if !q.IncludeArchived {
		c.add("is_archived = FALSE")
	}
	c.add("1 - (embedding <=> ?) >= ?", vec, q.Threshold)
	if q.ExcludeID != "" {
		c.add("id <> ?", q.ExcludeID)
	}
	query := "SELECT " + noteColumns + ", 1 - (embedding <=> ?) AS similarity FROM notes" + c.where() +
		" ORDER BY similarity DESC, updated_at DESC LIMIT ?"
	args := append([]interface{}{vec}, c.args...)
	args = append(args, q.Limit)
	rows, err := r.db.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	matches := make([]model.NoteMatch, 0)
	for rows.Next() {
		var m model.NoteMatch
		if err := scanNoteInto(rows, &m.Note, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListMissingEmbeddings returns notes that have never been embedded.
func (r *NoteRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EmbedTarget, error) {
	const query = `SELECT id, owner_id FROM notes WHERE embedding IS NULL ORDER BY updated_at ASC LIMIT $1`
	return queryTargets(ctx, r.db, model.EmbedKindNote, query, limit)
}

// ListAfter pages over every note by id, for full reindexing.
func (r *NoteRepo) ListAfter(ctx context.Context, afterID string, limit int) ([]model.Note, error) {
	query := "SELECT " + noteColumns + " FROM notes WHERE id::text > $1 ORDER BY id::text ASC LIMIT $2"
	rows, err := r.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	notes := make([]model.Note, 0, limit)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	return notes, rows.Err()
}

func scanNote(rows *sql.Rows) (*model.Note, error) {
	var note model.Note
	if err := scanNoteInto(rows, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func scanNoteInto(rows *sql.Rows, note *model.Note, extra ...interface{}) error {
	var (
		html sql.NullString
		tags []byte
	)
	dest := []interface{}{&note.ID, &note.OwnerID, &note.Title, &note.Content, &html, &tags, &note.IsPinned, &note.IsArchived, &note.HasEmbed, &note.CreatedAt, &note.UpdatedAt}
	dest = append(dest, extra...)
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	note.ContentHTML = html.String
	note.Tags = make([]string, 0)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &note.Tags); err != nil {
			return fmt.Errorf("decode tags: %w", err)
		}
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func execAffected(ctx context.Context, db *sql.DB, build func() (string, []interface{}, error)) error {
	sqlStr, args, err := build()
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func queryTargets(ctx context.Context, db *sql.DB, kind, query string, args ...interface{}) ([]model.EmbedTarget, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	targets := make([]model.EmbedTarget, 0)
	for rows.Next() {
		t := model.EmbedTarget{Kind: kind}
		if err := rows.Scan(&t.ID, &t.OwnerID); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
