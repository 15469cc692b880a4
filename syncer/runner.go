// Package syncer drains the pending-write queue against the server.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hrygo/assistcache/store"
)

// SyncFunc pushes one staged draft to the server and returns the
// authoritative record the server created. The HTTP layer behind it is not
// this package's concern.
type SyncFunc func(ctx context.Context, pending *store.PendingAssistant) (*store.Assistant, error)

// Runner periodically drains the pending-write queue. Each staged record is
// pushed through the SyncFunc; success removes it and caches the
// server-confirmed assistant, failure bumps its retry bookkeeping. Records
// over the retry budget are skipped but left staged, so the abandonment
// decision stays with the application.
type Runner struct {
	store      *store.Store
	sync       SyncFunc
	interval   time.Duration
	limiter    *rate.Limiter
	maxRetries int
}

// NewRunner creates a sync runner. The rate limit keeps a long queue from
// hammering the server after connectivity returns.
func NewRunner(store *store.Store, sync SyncFunc) *Runner {
	return &Runner{
		store:      store,
		sync:       sync,
		interval:   30 * time.Second,
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		maxRetries: 10,
	}
}

// Run starts the background loop until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	// Drain once on startup
	r.drain(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.drain(ctx)
		case <-ctx.Done():
			slog.Info("sync runner stopped")
			return
		}
	}
}

// RunOnce drains the queue once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	r.drain(ctx)
}

func (r *Runner) drain(ctx context.Context) {
	pendings, err := r.store.ListPendingAssistants(ctx)
	if err != nil {
		slog.Error("failed to list pending assistants", "error", err)
		return
	}
	if len(pendings) == 0 {
		return
	}

	passID := uuid.NewString()
	slog.Info("draining pending assistants", "pass", passID, "count", len(pendings))

	for _, pending := range pendings {
		select {
		case <-ctx.Done():
			slog.Info("sync drain cancelled", "pass", passID)
			return
		default:
		}

		if pending.RetryCount >= r.maxRetries {
			slog.Warn("pending assistant over retry budget, skipping",
				"pass", passID, "tempId", pending.TempID, "retryCount", pending.RetryCount)
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		r.syncOne(ctx, passID, pending)
	}
}

func (r *Runner) syncOne(ctx context.Context, passID string, pending *store.PendingAssistant) {
	assistant, err := r.sync(ctx, pending)
	if err != nil {
		slog.Warn("sync attempt failed",
			"pass", passID, "tempId", pending.TempID, "error", err)
		if err := r.store.UpdatePendingAssistantRetry(ctx, pending.TempID, err.Error()); err != nil {
			slog.Error("failed to bump pending assistant retry",
				"pass", passID, "tempId", pending.TempID, "error", err)
		}
		return
	}

	if assistant != nil {
		if err := r.store.SetAssistant(ctx, assistant); err != nil {
			// The server accepted the write; a cache failure must not
			// resurrect the pending record.
			slog.Warn("failed to cache synced assistant",
				"pass", passID, "id", assistant.ID, "error", err)
		}
	}
	if _, err := r.store.RemovePendingAssistant(ctx, pending.TempID); err != nil {
		slog.Error("failed to remove synced pending assistant",
			"pass", passID, "tempId", pending.TempID, "error", err)
	}
}
