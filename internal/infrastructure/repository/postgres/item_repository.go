package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// ItemRepository stores the swipe-item pool with its embeddings.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ItemRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	vector JSONB NOT NULL DEFAULT '[]'::jsonb,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	style JSONB NOT NULL DEFAULT '[]'::jsonb,
	palette JSONB NOT NULL DEFAULT '[]'::jsonb,
	cohort TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, vector, tags, style, palette, cohort
FROM items
WHERE id = $1
`, id)

	item, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get item", fmt.Errorf("item %s", id))
		}
		return nil, err
	}
	return item, nil
}

func (r *ItemRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Item, error) {
	out := make(map[string]domain.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal ids: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, vector, tags, style, palette, cohort
FROM items
WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
`, idsJSON)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[item.ID] = *item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

func (r *ItemRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item ids: %w", err)
	}
	return ids, nil
}

func (r *ItemRepository) UpsertBatch(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO items (id, vector, tags, style, palette, cohort, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	vector = EXCLUDED.vector,
	tags = EXCLUDED.tags,
	style = EXCLUDED.style,
	palette = EXCLUDED.palette,
	cohort = EXCLUDED.cohort,
	updated_at = EXCLUDED.updated_at
`
	now := time.Now().UTC()
	for _, item := range items {
		vectorJSON, tagsJSON, styleJSON, paletteJSON, err := marshalItemFields(item)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			item.ID, vectorJSON, tagsJSON, styleJSON, paletteJSON, item.Cohort, now,
		); err != nil {
			return fmt.Errorf("upsert item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

func marshalItemFields(item domain.Item) (vector, tags, style, palette []byte, err error) {
	if vector, err = json.Marshal(item.Vector); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal vector: %w", err)
	}
	if tags, err = json.Marshal(item.Tags); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal tags: %w", err)
	}
	if style, err = json.Marshal(item.Style); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal style: %w", err)
	}
	if palette, err = json.Marshal(item.Palette); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal palette: %w", err)
	}
	return vector, tags, style, palette, nil
}

func scanItem(scan func(dest ...any) error) (*domain.Item, error) {
	var item domain.Item
	var vectorRaw, tagsRaw, styleRaw, paletteRaw []byte

	if err := scan(&item.ID, &vectorRaw, &tagsRaw, &styleRaw, &paletteRaw, &item.Cohort); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}

	for _, field := range []struct {
		raw []byte
		dst any
	}{
		{vectorRaw, &item.Vector},
		{tagsRaw, &item.Tags},
		{styleRaw, &item.Style},
		{paletteRaw, &item.Palette},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("unmarshal item field: %w", err)
		}
	}
	return &item, nil
}
