package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/notebook/internal/model"
	"github.com/xxxsen/notebook/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

const sourceColumns = "id, owner_id, source_type, url, filename, title, content, page_count, word_count, extra_data, status, error, embedding IS NOT NULL AS has_embedding, created_at, updated_at"

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) Create(ctx context.Context, src *model.Source) error {
	extra, err := encodeExtra(src.ExtraData)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":          src.ID,
		"owner_id":    src.OwnerID,
		"source_type": src.SourceType,
		"url":         nullString(src.URL),
		"filename":    nullString(src.Filename),
		"title":       src.Title,
		"content":     src.Content,
		"page_count":  nullInt(src.PageCount),
		"word_count":  nullInt(src.WordCount),
		"extra_data":  extra,
		"status":      src.Status,
		"error":       nullString(src.Error),
		"created_at":  src.CreatedAt,
		"updated_at":  src.UpdatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("sources", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// Update writes every mutable column of the source.
func (r *SourceRepo) Update(ctx context.Context, src *model.Source) error {
	extra, err := encodeExtra(src.ExtraData)
	if err != nil {
		return err
	}
	where := map[string]interface{}{
		"id":       src.ID,
		"owner_id": src.OwnerID,
	}
	update := map[string]interface{}{
		"url":        nullString(src.URL),
		"filename":   nullString(src.Filename),
		"title":      src.Title,
		"content":    src.Content,
		"page_count": nullInt(src.PageCount),
		"word_count": nullInt(src.WordCount),
		"extra_data": extra,
		"status":     src.Status,
		"error":      nullString(src.Error),
		"updated_at": src.UpdatedAt,
	}
	return execAffected(ctx, r.db, func() (string, []interface{}, error) {
		return builder.BuildUpdate("sources", where, update)
	})
}

func (r *SourceRepo) Delete(ctx context.Context, ownerID, sourceID string) error {
	return execAffected(ctx, r.db, func() (string, []interface{}, error) {
		return builder.BuildDelete("sources", map[string]interface{}{"id": sourceID, "owner_id": ownerID})
	})
}

func (r *SourceRepo) GetByID(ctx context.Context, ownerID, sourceID string) (*model.Source, error) {
	query := sqlx.Rebind(sqlx.DOLLAR, "SELECT "+sourceColumns+" FROM sources WHERE id = ? AND owner_id = ?")
	rows, err := r.db.QueryContext(ctx, query, sourceID, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanSource(rows)
}

// GetMany loads the owner's sources with the given ids, keeping the order
// of ids. Unknown ids are skipped.
func (r *SourceRepo) GetMany(ctx context.Context, ownerID string, ids []string) ([]model.Source, error) {
	if len(ids) == 0 {
		return []model.Source{}, nil
	}
	query, args, err := sqlx.In("SELECT "+sourceColumns+" FROM sources WHERE owner_id = ? AND id::text IN (?)", ownerID, ids)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	byID := make(map[string]model.Source, len(ids))
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		byID[src.ID] = *src
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Source, 0, len(byID))
	for _, id := range ids {
		if src, ok := byID[id]; ok {
			out = append(out, src)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *SourceRepo) List(ctx context.Context, ownerID, sourceType string, offset, limit int) ([]model.Source, int, error) {
	c := &conds{}
	c.add("owner_id = ?", ownerID)
	if sourceType != "" {
		c.add("source_type = ?", sourceType)
	}
	var total int
	countQuery := sqlx.Rebind(sqlx.DOLLAR, "SELECT COUNT(*) FROM sources"+c.where())
	if err := r.db.QueryRowContext(ctx, countQuery, c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := "SELECT " + sourceColumns + " FROM sources" + c.where() + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, c.args...), limit, offset)
	rows, err := r.db.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()
	sources := make([]model.Source, 0)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, 0, err
		}
		sources = append(sources, *src)
	}
	return sources, total, rows.Err()
}

func (r *SourceRepo) UpdateStatus(ctx context.Context, sourceID, status, errMsg string) error {
	const query = `UPDATE sources SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, nullString(errMsg), sourceID)
	return err
}

// FailStale moves sources stuck in loading since before cutoff to the
// error state.
func (r *SourceRepo) FailStale(ctx context.Context, cutoff time.Time, errMsg string) (int64, error) {
	const query = `UPDATE sources SET status = $1, error = $2, updated_at = NOW() WHERE status = $3 AND updated_at < $4`
	res, err := r.db.ExecContext(ctx, query, model.SourceStatusError, errMsg, model.SourceStatusLoading, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SourceRepo) UpdateEmbedding(ctx context.Context, sourceID string, vec []float32) error {
	const query = `UPDATE sources SET embedding = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, pgvector.NewVector(vec), sourceID)
	return err
}

func (r *SourceRepo) SearchSimilar(ctx context.Context, q model.VectorQuery) ([]model.SourceMatch, error) {
	vec := pgvector.NewVector(q.Vector)
	c := &conds{}
	c.add("owner_id = ?", q.OwnerID)
	c.add("embedding IS NOT NULL")
	c.add("1 - (embedding <=> ?) >= ?", vec, q.Threshold)
	if q.ExcludeID != "" {
		c.add("id <> ?", q.ExcludeID)
	}
	query := "SELECT " + sourceColumns + ", 1 - (embedding <=> ?) AS similarity FROM sources" + c.where() +
		" ORDER BY similarity DESC, updated_at DESC LIMIT ?"
	args := append([]interface{}{vec}, c.args...)
	args = append(args, q.Limit)
	rows, err := r.db.QueryContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	matches := make([]model.SourceMatch, 0)
	for rows.Next() {
		var m model.SourceMatch
		if err := scanSourceInto(rows, &m.Source, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListMissingEmbeddings returns loaded sources that have never been embedded.
func (r *SourceRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]model.EmbedTarget, error) {
	const query = `SELECT id, owner_id FROM sources WHERE embedding IS NULL AND status = 'success' AND content <> '' ORDER BY updated_at ASC LIMIT $1`
	return queryTargets(ctx, r.db, model.EmbedKindSource, query, limit)
}

func (r *SourceRepo) ListAfter(ctx context.Context, afterID string, limit int) ([]model.Source, error) {
	query := "SELECT " + sourceColumns + " FROM sources WHERE id::text > $1 AND status = 'success' ORDER BY id::text ASC LIMIT $2"
	rows, err := r.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	sources := make([]model.Source, 0, limit)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func scanSource(rows *sql.Rows) (*model.Source, error) {
	var src model.Source
	if err := scanSourceInto(rows, &src); err != nil {
		return nil, err
	}
	return &src, nil
}

func scanSourceInto(rows *sql.Rows, src *model.Source, extra ...interface{}) error {
	var (
		url, filename, errMsg sql.NullString
		pages, words          sql.NullInt64
		extraData             []byte
	)
	dest := []interface{}{&src.ID, &src.OwnerID, &src.SourceType, &url, &filename, &src.Title, &src.Content, &pages, &words, &extraData, &src.Status, &errMsg, &src.HasEmbed, &src.CreatedAt, &src.UpdatedAt}
	dest = append(dest, extra...)
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	src.URL = url.String
	src.Filename = filename.String
	src.Error = errMsg.String
	src.PageCount = intPtr(pages)
	src.WordCount = intPtr(words)
	src.ExtraData = map[string]interface{}{}
	if len(extraData) > 0 {
		if err := json.Unmarshal(extraData, &src.ExtraData); err != nil {
			return fmt.Errorf("decode extra_data: %w", err)
		}
	}
	return nil
}

func encodeExtra(extra map[string]interface{}) (string, error) {
	if extra == nil {
		extra = map[string]interface{}{}
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
