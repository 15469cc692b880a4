package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/assistcache/store"
)

func (d *DB) UpsertAssistant(ctx context.Context, upsert *store.Assistant, cachedTs int64) error {
	tags, err := marshalTags(upsert.Tags)
	if err != nil {
		return err
	}

	stmt := `INSERT INTO assistant (
			id, title, description, prompt, tags, visibility, status, author,
			created_ts, updated_ts, version, cached_ts
		)
		VALUES (` + placeholders(12) + `)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			prompt = excluded.prompt,
			tags = excluded.tags,
			visibility = excluded.visibility,
			status = excluded.status,
			author = excluded.author,
			created_ts = excluded.created_ts,
			updated_ts = excluded.updated_ts,
			version = excluded.version,
			cached_ts = excluded.cached_ts`

	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.ID, upsert.Title, upsert.Description, upsert.Prompt, tags,
		upsert.Visibility, upsert.Status, upsert.Author,
		upsert.CreatedTs, upsert.UpdatedTs, upsert.Version, cachedTs,
	); err != nil {
		return fmt.Errorf("failed to upsert assistant: %w", err)
	}
	return nil
}

func (d *DB) ReplaceAssistants(ctx context.Context, list []*store.Assistant, cachedTs int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM assistant"); err != nil {
		return fmt.Errorf("failed to clear assistants: %w", err)
	}

	stmt := `INSERT INTO assistant (
			id, title, description, prompt, tags, visibility, status, author,
			created_ts, updated_ts, version, cached_ts
		) VALUES (` + placeholders(12) + `)`
	for _, assistant := range list {
		tags, err := marshalTags(assistant.Tags)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt,
			assistant.ID, assistant.Title, assistant.Description, assistant.Prompt, tags,
			assistant.Visibility, assistant.Status, assistant.Author,
			assistant.CreatedTs, assistant.UpdatedTs, assistant.Version, cachedTs,
		); err != nil {
			return fmt.Errorf("failed to insert assistant %s: %w", assistant.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (d *DB) GetAssistant(ctx context.Context, id string) (*store.Assistant, int64, error) {
	stmt := `SELECT
			id, title, description, prompt, tags, visibility, status, author,
			created_ts, updated_ts, version, cached_ts
		FROM assistant WHERE id = ?`

	var assistant store.Assistant
	var tags string
	var cachedTs int64
	if err := d.db.QueryRowContext(ctx, stmt, id).Scan(
		&assistant.ID,
		&assistant.Title,
		&assistant.Description,
		&assistant.Prompt,
		&tags,
		&assistant.Visibility,
		&assistant.Status,
		&assistant.Author,
		&assistant.CreatedTs,
		&assistant.UpdatedTs,
		&assistant.Version,
		&cachedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to get assistant: %w", err)
	}
	if err := unmarshalTags(tags, &assistant.Tags); err != nil {
		return nil, 0, err
	}
	return &assistant, cachedTs, nil
}

func (d *DB) ListAssistants(ctx context.Context, find *store.FindAssistant) ([]*store.Assistant, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.Status; v != nil {
		where, args = append(where, "assistant.status = ?"), append(args, *v)
	}
	if v := find.Author; v != nil {
		where, args = append(where, "assistant.author = ?"), append(args, *v)
	}
	if v := find.CachedAfter; v != nil {
		where, args = append(where, "assistant.cached_ts > ?"), append(args, *v)
	}

	query := `SELECT
			id, title, description, prompt, tags, visibility, status, author,
			created_ts, updated_ts, version
		FROM assistant
		WHERE ` + strings.Join(where, " AND ")

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assistants: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Assistant, 0)
	for rows.Next() {
		var assistant store.Assistant
		var tags string
		if err := rows.Scan(
			&assistant.ID,
			&assistant.Title,
			&assistant.Description,
			&assistant.Prompt,
			&tags,
			&assistant.Visibility,
			&assistant.Status,
			&assistant.Author,
			&assistant.CreatedTs,
			&assistant.UpdatedTs,
			&assistant.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assistant: %w", err)
		}
		if err := unmarshalTags(tags, &assistant.Tags); err != nil {
			return nil, err
		}
		list = append(list, &assistant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assistants: %w", err)
	}
	return list, nil
}

func (d *DB) ListAssistantIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id FROM assistant")
	if err != nil {
		return nil, fmt.Errorf("failed to query assistant ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assistant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assistant ids: %w", err)
	}
	return ids, nil
}

func (d *DB) DeleteAssistant(ctx context.Context, id string) (bool, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM assistant WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete assistant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (d *DB) ClearAssistants(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM assistant"); err != nil {
		return fmt.Errorf("failed to clear assistants: %w", err)
	}
	return nil
}

func (d *DB) DeleteExpiredAssistants(ctx context.Context, before int64) (int, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM assistant WHERE cached_ts <= ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired assistants: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(affected), nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	buf, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(buf), nil
}

func unmarshalTags(raw string, out *[]string) error {
	if raw == "" {
		raw = "[]"
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	return nil
}
