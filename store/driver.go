package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that the cache database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Assistant model related methods.
	UpsertAssistant(ctx context.Context, upsert *Assistant, cachedTs int64) error
	// ReplaceAssistants clears the assistant table and inserts the given list
	// in a single transaction.
	ReplaceAssistants(ctx context.Context, list []*Assistant, cachedTs int64) error
	// GetAssistant returns the assistant and its cache timestamp, or nil when
	// the id is unknown. TTL filtering is the caller's concern.
	GetAssistant(ctx context.Context, id string) (*Assistant, int64, error)
	ListAssistants(ctx context.Context, find *FindAssistant) ([]*Assistant, error)
	ListAssistantIDs(ctx context.Context) ([]string, error)
	DeleteAssistant(ctx context.Context, id string) (bool, error)
	ClearAssistants(ctx context.Context) error
	// DeleteExpiredAssistants removes every row cached at or before the given
	// timestamp and returns the number of rows removed.
	DeleteExpiredAssistants(ctx context.Context, before int64) (int, error)

	// PendingAssistant model related methods.
	CreatePendingAssistant(ctx context.Context, create *PendingAssistant) error
	ListPendingAssistants(ctx context.Context) ([]*PendingAssistant, error)
	DeletePendingAssistant(ctx context.Context, tempID string) (bool, error)
	// BumpPendingAssistantRetry increments the retry count and, when lastError
	// is non-nil, records it. Returns whether the row exists.
	BumpPendingAssistantRetry(ctx context.Context, tempID string, lastError *string) (bool, error)
}
