package test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hrygo/assistcache/internal/profile"
	"github.com/hrygo/assistcache/store"
	"github.com/hrygo/assistcache/store/db"
)

func TestInitFailsWithOpenError(t *testing.T) {
	ctx := context.Background()
	p := &profile.Profile{
		Mode:    "dev",
		Data:    t.TempDir(),
		DSN:     filepath.Join(t.TempDir(), "missing-dir", "cache.db"),
		Driver:  "sqlite",
		Version: "test",
	}
	require.NoError(t, p.Validate())

	ts := store.New(p, db.NewDriver)
	err := ts.Init(ctx)
	require.Error(t, err)

	var openErr *store.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "sqlite", openErr.Driver)
}

// TestAdditiveUpgrade seeds a database at schema version 1 and verifies that
// opening it applies later migrations without losing cached rows.
func TestAdditiveUpgrade(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	dsn := filepath.Join(dataDir, "assistcache.db")

	// Build a v1 database by hand from the first migration file.
	schema, err := os.ReadFile(filepath.Join("..", "migration", "sqlite", "01__init.sql"))
	require.NoError(t, err)

	seed, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = seed.ExecContext(ctx, string(schema))
	require.NoError(t, err)
	_, err = seed.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES ('schema_version', '1')")
	require.NoError(t, err)
	_, err = seed.ExecContext(ctx,
		"INSERT INTO assistant (id, title, cached_ts) VALUES ('kept', 'Kept', ?)",
		clockNowMilli())
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	p := &profile.Profile{
		Mode:    "dev",
		Data:    dataDir,
		DSN:     dsn,
		Driver:  "sqlite",
		Version: "test",
	}
	require.NoError(t, p.Validate())

	ts := store.New(p, db.NewDriver)
	require.NoError(t, ts.Init(ctx))
	t.Cleanup(func() { _ = ts.Close() })

	// Previously cached data survives the upgrade.
	got, err := ts.GetAssistantByID(ctx, "kept")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kept", got.Title)

	// Schema version advanced and the new index exists.
	driver, err := ts.GetDriver(ctx)
	require.NoError(t, err)

	var version string
	require.NoError(t, driver.GetDB().
		QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'schema_version'").
		Scan(&version))
	assert.Equal(t, "2", version)

	var exists bool
	require.NoError(t, driver.GetDB().
		QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'index' AND name = 'idx_pending_assistant_retry_count')").
		Scan(&exists))
	assert.True(t, exists)
}
