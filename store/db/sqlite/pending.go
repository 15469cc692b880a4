package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hrygo/assistcache/store"
)

func (d *DB) CreatePendingAssistant(ctx context.Context, create *store.PendingAssistant) error {
	data, err := json.Marshal(create.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal pending assistant data: %w", err)
	}

	stmt := `INSERT INTO pending_assistant (temp_id, data, created_ts, retry_count, last_error)
		VALUES (` + placeholders(5) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.TempID, string(data), create.CreatedTs, create.RetryCount, create.LastError,
	); err != nil {
		return fmt.Errorf("failed to create pending assistant: %w", err)
	}
	return nil
}

func (d *DB) ListPendingAssistants(ctx context.Context) ([]*store.PendingAssistant, error) {
	stmt := `SELECT temp_id, data, created_ts, retry_count, last_error
		FROM pending_assistant
		ORDER BY created_ts ASC`

	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending assistants: %w", err)
	}
	defer rows.Close()

	list := make([]*store.PendingAssistant, 0)
	for rows.Next() {
		var pending store.PendingAssistant
		var data string
		if err := rows.Scan(
			&pending.TempID,
			&data,
			&pending.CreatedTs,
			&pending.RetryCount,
			&pending.LastError,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending assistant: %w", err)
		}
		pending.Data = &store.AssistantDraft{}
		if err := json.Unmarshal([]byte(data), pending.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending assistant data: %w", err)
		}
		list = append(list, &pending)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending assistants: %w", err)
	}
	return list, nil
}

func (d *DB) DeletePendingAssistant(ctx context.Context, tempID string) (bool, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM pending_assistant WHERE temp_id = ?", tempID)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending assistant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (d *DB) BumpPendingAssistantRetry(ctx context.Context, tempID string, lastError *string) (bool, error) {
	stmt := "UPDATE pending_assistant SET retry_count = retry_count + 1 WHERE temp_id = ?"
	args := []any{tempID}
	if lastError != nil {
		stmt = "UPDATE pending_assistant SET retry_count = retry_count + 1, last_error = ? WHERE temp_id = ?"
		args = []any{*lastError, tempID}
	}

	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("failed to bump pending assistant retry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}
