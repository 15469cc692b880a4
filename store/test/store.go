package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/assistcache/internal/profile"
	"github.com/hrygo/assistcache/store"
	"github.com/hrygo/assistcache/store/db"
)

// NewTestingStore creates a store backed by a throwaway sqlite file.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	ts, _ := NewTestingStoreWithClock(ctx, t)
	return ts
}

// NewTestingStoreWithClock additionally wires a controllable clock so tests
// can age records without sleeping.
func NewTestingStoreWithClock(ctx context.Context, t *testing.T) (*store.Store, *FakeClock) {
	p := &profile.Profile{
		Mode:    "dev",
		Data:    t.TempDir(),
		Driver:  "sqlite",
		Version: "test",
	}
	require.NoError(t, p.Validate())

	clock := &FakeClock{now: time.Now()}
	ts := store.New(p, db.NewDriver)
	ts.SetNowFunc(clock.Now)
	require.NoError(t, ts.Init(ctx))
	t.Cleanup(func() {
		_ = ts.Close()
	})
	return ts, clock
}

func clockNowMilli() int64 {
	return time.Now().UnixMilli()
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
