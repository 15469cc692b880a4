package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/assistcache/store"
)

func newAssistant(id, title string) *store.Assistant {
	return &store.Assistant{
		ID:         id,
		Title:      title,
		Prompt:     "You are a helpful assistant.",
		Tags:       []string{"general"},
		Visibility: store.Public,
		Status:     store.StatusActive,
		Author:     "alice",
		CreatedTs:  1700000000000,
		UpdatedTs:  1700000000000,
		Version:    1,
	}
}

func TestAssistantCRUD(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("a1", "Writer")))

		got, err := ts.GetAssistantByID(ctx, "a1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Writer", got.Title)
		assert.Equal(t, []string{"general"}, got.Tags)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		got, err := ts.GetAssistantByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("a2", "Original")))
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("a2", "Updated")))

		got, err := ts.GetAssistantByID(ctx, "a2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Updated", got.Title)

		list, err := ts.ListAssistants(ctx)
		require.NoError(t, err)
		count := 0
		for _, a := range list {
			if a.ID == "a2" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("UpsertIdempotent", func(t *testing.T) {
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("a3", "Same")))
		before, err := ts.ListAssistants(ctx)
		require.NoError(t, err)

		require.NoError(t, ts.SetAssistant(ctx, newAssistant("a3", "Same")))
		after, err := ts.ListAssistants(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after))
	})

	t.Run("DeleteReturnsExistence", func(t *testing.T) {
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("a4", "Victim")))

		existed, err := ts.DeleteAssistant(ctx, "a4")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = ts.DeleteAssistant(ctx, "a4")
		require.NoError(t, err)
		assert.False(t, existed)

		got, err := ts.GetAssistantByID(ctx, "a4")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("a5", "X")))
		require.NoError(t, ts.ClearAssistants(ctx))

		list, err := ts.ListAssistants(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestSetAllReplaces(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	require.NoError(t, ts.SetAllAssistants(ctx, []*store.Assistant{
		newAssistant("a", "A"),
		newAssistant("b", "B"),
	}))
	require.NoError(t, ts.SetAllAssistants(ctx, []*store.Assistant{
		newAssistant("c", "C"),
	}))

	list, err := ts.ListAssistants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c", list[0].ID)

	got, err := ts.GetAssistantByID(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTTLExpiration(t *testing.T) {
	ctx := context.Background()
	ts, clock := NewTestingStoreWithClock(ctx, t)

	require.NoError(t, ts.SetAssistant(ctx, newAssistant("fresh", "Fresh")))
	require.NoError(t, ts.SetAllAssistants(ctx, []*store.Assistant{
		newAssistant("bulk", "Bulk"),
	}))

	// Just under the TTL both entries are visible.
	clock.Advance(store.RecordTTL - time.Minute)
	list, err := ts.ListAssistants(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1) // SetAll replaced "fresh"

	got, err := ts.GetAssistantByID(ctx, "bulk")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Past the TTL they are hidden, however they were inserted.
	clock.Advance(2 * time.Minute)
	list, err = ts.ListAssistants(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err = ts.GetAssistantByID(ctx, "bulk")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpiredReadTriggersCleanup(t *testing.T) {
	ctx := context.Background()
	ts, clock := NewTestingStoreWithClock(ctx, t)

	require.NoError(t, ts.SetAssistant(ctx, newAssistant("old", "Old")))
	clock.Advance(store.RecordTTL + time.Hour)

	got, err := ts.GetAssistantByID(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The read returns immediately; the row disappears in the background.
	driver, err := ts.GetDriver(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		assistant, _, err := driver.GetAssistant(ctx, "old")
		return err == nil && assistant == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCleanExpired(t *testing.T) {
	ctx := context.Background()
	ts, clock := NewTestingStoreWithClock(ctx, t)

	t.Run("EmptyStore", func(t *testing.T) {
		removed, err := ts.CleanExpiredAssistants(ctx)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("CountsOnlyExpired", func(t *testing.T) {
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("e1", "Expired 1")))
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("e2", "Expired 2")))
		clock.Advance(store.RecordTTL + time.Minute)
		require.NoError(t, ts.SetAssistant(ctx, newAssistant("f1", "Fresh")))

		removed, err := ts.CleanExpiredAssistants(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		list, err := ts.ListAssistants(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "f1", list[0].ID)
	})

	t.Run("Idempotent", func(t *testing.T) {
		removed, err := ts.CleanExpiredAssistants(ctx)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

// Scenario: cache an assistant, read it back, age it past the TTL, confirm
// reads hide it and the sweeper reclaims it.
func TestExpirationScenario(t *testing.T) {
	ctx := context.Background()
	ts, clock := NewTestingStoreWithClock(ctx, t)

	require.NoError(t, ts.SetAssistant(ctx, &store.Assistant{ID: "a1", Title: "X"}))

	got, err := ts.GetAssistantByID(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "X", got.Title)

	clock.Advance(8 * 24 * time.Hour)

	list, err := ts.ListAssistants(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	removed, err := ts.CleanExpiredAssistants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err = ts.GetAssistantByID(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindAssistants(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	a := newAssistant("by-alice", "A")
	b := newAssistant("by-bob", "B")
	b.Author = "bob"
	b.Status = store.StatusDraft
	require.NoError(t, ts.SetAllAssistants(ctx, []*store.Assistant{a, b}))

	author := "bob"
	list, err := ts.FindAssistants(ctx, &store.FindAssistant{Author: &author})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "by-bob", list[0].ID)

	status := store.StatusActive
	list, err = ts.FindAssistants(ctx, &store.FindAssistant{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "by-alice", list[0].ID)
}

func TestReopenAfterClose(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	require.NoError(t, ts.SetAssistant(ctx, newAssistant("survivor", "S")))
	require.NoError(t, ts.Close())

	// Operations after Close re-initialize transparently.
	got, err := ts.GetAssistantByID(ctx, "survivor")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "S", got.Title)
}

func TestInitIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	// The testing store already initialized once.
	require.NoError(t, ts.Init(ctx))
	require.NoError(t, ts.Init(ctx))
}
