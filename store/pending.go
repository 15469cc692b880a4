package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// AssistantDraft is the payload of an assistant staged before the server has
// assigned identity and version.
type AssistantDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Prompt      string     `json:"prompt"`
	Tags        []string   `json:"tags"`
	Visibility  Visibility `json:"visibility"`
	Status      Status     `json:"status"`
	Author      string     `json:"author"`
}

// PendingAssistant is a staged write waiting for server sync. It exists until
// sync succeeds and is only ever mutated to bump retry bookkeeping.
type PendingAssistant struct {
	TempID     string
	Data       *AssistantDraft
	CreatedTs  int64
	RetryCount int
	LastError  string
}

// generateTempID builds a locally unique id: epoch-millisecond prefix plus a
// short random suffix. Not globally collision-proof, which is acceptable for
// single-client staging.
func (s *Store) generateTempID() string {
	return fmt.Sprintf("temp_%d_%s", s.now(), shortuuid.New()[:8])
}

// SavePendingAssistant stages a draft locally before server confirmation and
// returns its temporary id.
func (s *Store) SavePendingAssistant(ctx context.Context, data *AssistantDraft) (string, error) {
	if data == nil {
		return "", errors.New("pending assistant data is nil")
	}
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return "", err
	}
	create := &PendingAssistant{
		TempID:    s.generateTempID(),
		Data:      data,
		CreatedTs: s.now(),
	}
	if err := driver.CreatePendingAssistant(ctx, create); err != nil {
		return "", err
	}
	return create.TempID, nil
}

// ListPendingAssistants returns every staged record for a sync process to
// iterate. Order is unspecified.
func (s *Store) ListPendingAssistants(ctx context.Context) ([]*PendingAssistant, error) {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return nil, err
	}
	return driver.ListPendingAssistants(ctx)
}

// RemovePendingAssistant deletes a staged record after a successful sync and
// reports whether it existed.
func (s *Store) RemovePendingAssistant(ctx context.Context, tempID string) (bool, error) {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return false, err
	}
	return driver.DeletePendingAssistant(ctx, tempID)
}

// UpdatePendingAssistantRetry increments the retry count after a failed sync
// attempt and records the failure reason when non-empty. A missing tempID is
// a warning, not an error: a concurrent retry may have already removed it.
func (s *Store) UpdatePendingAssistantRetry(ctx context.Context, tempID string, lastError string) error {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return err
	}
	var errPtr *string
	if lastError != "" {
		errPtr = &lastError
	}
	found, err := driver.BumpPendingAssistantRetry(ctx, tempID, errPtr)
	if err != nil {
		return err
	}
	if !found {
		slog.Warn("pending assistant no longer exists, skipping retry bump", "tempId", tempID)
	}
	return nil
}
