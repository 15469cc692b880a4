package store

import (
	"context"
	"log/slog"
	"time"
)

// RecordTTL is how long a cached assistant stays visible after its last
// write. Reads hide older entries; CleanExpiredAssistants reclaims them.
const RecordTTL = 7 * 24 * time.Hour

// Visibility of an assistant in the marketplace.
type Visibility string

const (
	Public  Visibility = "PUBLIC"
	Private Visibility = "PRIVATE"
)

// Status is the lifecycle status of an assistant.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDraft    Status = "DRAFT"
	StatusArchived Status = "ARCHIVED"
)

// Assistant is the object representing a cached marketplace assistant.
// The cache write timestamp is store-internal and deliberately not a field
// here: callers never see it.
type Assistant struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Prompt      string     `json:"prompt"`
	Tags        []string   `json:"tags"`
	Visibility  Visibility `json:"visibility"`
	Status      Status     `json:"status"`
	Author      string     `json:"author"`
	CreatedTs   int64      `json:"createdTs"`
	UpdatedTs   int64      `json:"updatedTs"`
	Version     int32      `json:"version"`
}

// FindAssistant is the find condition for assistants.
type FindAssistant struct {
	Status *Status
	Author *string

	// CachedAfter excludes rows cached at or before the given timestamp.
	CachedAfter *int64
}

// ConsistencyReport is the result of reconciling the cache against the
// server-authoritative id set.
type ConsistencyReport struct {
	Removed         int
	Inconsistencies []string
}

// SetAssistant upserts an assistant by id, stamping the cache timestamp.
// Creating and overwriting behave identically.
func (s *Store) SetAssistant(ctx context.Context, upsert *Assistant) error {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return err
	}
	if err := driver.UpsertAssistant(ctx, upsert, s.now()); err != nil {
		return err
	}
	s.assistantCache.Delete(upsert.ID)
	return nil
}

// SetAllAssistants atomically replaces the whole collection with the given
// list. Nothing from the previous snapshot survives.
func (s *Store) SetAllAssistants(ctx context.Context, list []*Assistant) error {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return err
	}
	if err := driver.ReplaceAssistants(ctx, list, s.now()); err != nil {
		return err
	}
	s.assistantCache.Clear()
	return nil
}

// GetAssistantByID returns the assistant, or nil when it is unknown or its
// TTL has elapsed. An expired hit additionally triggers a best-effort
// background delete that never affects this call's result.
func (s *Store) GetAssistantByID(ctx context.Context, id string) (*Assistant, error) {
	now := s.now()
	if entry, ok := s.assistantCache.Get(id); ok {
		if now-entry.cachedTs < RecordTTL.Milliseconds() {
			return entry.assistant, nil
		}
		s.assistantCache.Delete(id)
	}

	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return nil, err
	}
	assistant, cachedTs, err := driver.GetAssistant(ctx, id)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, nil
	}
	if now-cachedTs >= RecordTTL.Milliseconds() {
		// Fire-and-forget cleanup; the read already decided "not found".
		go func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := driver.DeleteAssistant(cleanupCtx, id); err != nil {
				slog.Warn("failed to delete expired assistant", "id", id, "error", err)
			}
		}()
		return nil, nil
	}
	s.assistantCache.Set(id, hotEntry{assistant: assistant, cachedTs: cachedTs})
	return assistant, nil
}

// ListAssistants returns every assistant whose TTL has not elapsed.
func (s *Store) ListAssistants(ctx context.Context) ([]*Assistant, error) {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return nil, err
	}
	cachedAfter := s.now() - RecordTTL.Milliseconds()
	return driver.ListAssistants(ctx, &FindAssistant{CachedAfter: &cachedAfter})
}

// FindAssistants lists non-expired assistants matching the given condition.
func (s *Store) FindAssistants(ctx context.Context, find *FindAssistant) ([]*Assistant, error) {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return nil, err
	}
	if find.CachedAfter == nil {
		cachedAfter := s.now() - RecordTTL.Milliseconds()
		find.CachedAfter = &cachedAfter
	}
	return driver.ListAssistants(ctx, find)
}

// DeleteAssistant removes an assistant and reports whether it existed.
// Deleting an absent id is not an error.
func (s *Store) DeleteAssistant(ctx context.Context, id string) (bool, error) {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return false, err
	}
	s.assistantCache.Delete(id)
	return driver.DeleteAssistant(ctx, id)
}

// ClearAssistants removes every cached assistant unconditionally.
func (s *Store) ClearAssistants(ctx context.Context) error {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return err
	}
	s.assistantCache.Clear()
	return driver.ClearAssistants(ctx)
}

// CleanExpiredAssistants deletes every entry whose TTL has elapsed and
// returns the count removed. Safe on an empty store and safe to repeat.
func (s *Store) CleanExpiredAssistants(ctx context.Context) (int, error) {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return 0, err
	}
	return driver.DeleteExpiredAssistants(ctx, s.now()-RecordTTL.Milliseconds())
}

// ValidateConsistency deletes local assistants absent from the
// server-authoritative id set. It never adds entries; refreshing missing
// records is the write path's job. Per-row delete failures are logged and
// excluded from the report.
func (s *Store) ValidateConsistency(ctx context.Context, serverIDs []string) (*ConsistencyReport, error) {
	driver, err := s.ensureDriver(ctx)
	if err != nil {
		return nil, err
	}
	localIDs, err := driver.ListAssistantIDs(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(serverIDs))
	for _, id := range serverIDs {
		known[id] = struct{}{}
	}

	report := &ConsistencyReport{Inconsistencies: []string{}}
	for _, id := range localIDs {
		if _, ok := known[id]; ok {
			continue
		}
		if _, err := driver.DeleteAssistant(ctx, id); err != nil {
			slog.Warn("failed to delete inconsistent assistant", "id", id, "error", err)
			continue
		}
		s.assistantCache.Delete(id)
		report.Removed++
		report.Inconsistencies = append(report.Inconsistencies, id)
	}
	return report, nil
}
