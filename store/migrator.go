package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Migration System Overview:
//
// Schema version is a single integer stored in the meta table. Upgrades are
// additive only: a migration may create tables and indexes but never drops
// previously cached data.
//
// Migration Files:
// - Location: store/migration/{driver}/NN__description.sql
// - Naming: NN is a zero-padded schema version, description is human-readable
// - Ordering: files sorted lexicographically and applied in order
// - LATEST.sql: full schema for new databases (faster than incremental migrations)

//go:embed migration
var migrationFS embed.FS

const (
	// migrateFileNameSplit is the split character between the schema version
	// and the description in the migration file name, e.g. "01__init.sql".
	migrateFileNameSplit = "__"
	// latestSchemaFileName is the name of the latest schema file.
	latestSchemaFileName = "LATEST.sql"

	schemaVersionKey = "schema_version"
)

// migrate brings the database schema up to the latest version. New databases
// get LATEST.sql; existing ones get every migration above their stored
// version, applied in one transaction.
func (s *Store) migrate(ctx context.Context, driver Driver) error {
	initialized, err := driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}

	targetVersion, err := s.latestSchemaVersion()
	if err != nil {
		return errors.Wrap(err, "failed to determine latest schema version")
	}

	if !initialized {
		return s.applyLatestSchema(ctx, driver, targetVersion)
	}

	currentVersion, err := s.readSchemaVersion(ctx, driver.GetDB())
	if err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}
	if currentVersion > targetVersion {
		return errors.Errorf("cannot downgrade schema version from %d to %d", currentVersion, targetVersion)
	}
	if currentVersion == targetVersion {
		return nil
	}
	return s.applyMigrations(ctx, driver, currentVersion, targetVersion)
}

// applyLatestSchema initializes a fresh database with the full schema.
func (s *Store) applyLatestSchema(ctx context.Context, driver Driver, targetVersion int) error {
	filePath := s.migrationBasePath() + latestSchemaFileName
	buf, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema file: %s", filePath)
	}

	tx, err := driver.GetDB().Begin()
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	slog.Info("initializing new database with latest schema", "file", filePath)
	if _, err := tx.ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrapf(err, "failed to execute schema file %s", filePath)
	}
	if err := s.writeSchemaVersion(ctx, tx, targetVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	slog.Info("database initialized", "schemaVersion", targetVersion)
	return nil
}

// applyMigrations applies every migration file with a version greater than
// currentVersion, atomically.
func (s *Store) applyMigrations(ctx context.Context, driver Driver, currentVersion, targetVersion int) error {
	filePaths, err := fs.Glob(migrationFS, s.migrationBasePath()+"*.sql")
	if err != nil {
		return errors.Wrap(err, "failed to read migration files")
	}
	sort.Strings(filePaths)

	tx, err := driver.GetDB().Begin()
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	slog.Info("start migration", "currentSchemaVersion", currentVersion, "targetSchemaVersion", targetVersion)

	migrationsApplied := 0
	for _, filePath := range filePaths {
		if strings.HasSuffix(filePath, latestSchemaFileName) {
			continue
		}
		fileVersion, err := schemaVersionOfMigrateScript(filePath)
		if err != nil {
			return err
		}
		if fileVersion <= currentVersion {
			continue
		}

		slog.Info("applying migration", "file", filePath, "version", fileVersion)
		buf, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file: %s", filePath)
		}
		if _, err := tx.ExecContext(ctx, string(buf)); err != nil {
			return errors.Wrapf(err, "failed to execute migration %s", filePath)
		}
		migrationsApplied++
	}

	if err := s.writeSchemaVersion(ctx, tx, targetVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration transaction")
	}

	slog.Info("migration completed", "migrationsApplied", migrationsApplied)
	return nil
}

func (s *Store) migrationBasePath() string {
	return fmt.Sprintf("migration/%s/", s.profile.Driver)
}

// latestSchemaVersion returns the highest version among the migration files.
func (s *Store) latestSchemaVersion() (int, error) {
	filePaths, err := fs.Glob(migrationFS, s.migrationBasePath()+"*.sql")
	if err != nil {
		return 0, errors.Wrap(err, "failed to read migration files")
	}

	latest := 0
	for _, filePath := range filePaths {
		if strings.HasSuffix(filePath, latestSchemaFileName) {
			continue
		}
		fileVersion, err := schemaVersionOfMigrateScript(filePath)
		if err != nil {
			return 0, err
		}
		if fileVersion > latest {
			latest = fileVersion
		}
	}
	if latest == 0 {
		return 0, errors.Errorf("no migration files found under %s", s.migrationBasePath())
	}
	return latest, nil
}

// schemaVersionOfMigrateScript extracts the integer schema version from a
// migration file name like "01__init.sql".
func schemaVersionOfMigrateScript(filePath string) (int, error) {
	filename := filepath.Base(filePath)
	parts := strings.SplitN(filename, migrateFileNameSplit, 2)
	if len(parts) < 2 {
		return 0, errors.Errorf("invalid migration filename format (missing %s): %s", migrateFileNameSplit, filename)
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Errorf("migration filename must start with a number: %s", filename)
	}
	return version, nil
}

func (s *Store) readSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var raw string
	err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", schemaVersionKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to query schema version")
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid stored schema version: %s", raw)
	}
	return version, nil
}

func (s *Store) writeSchemaVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		schemaVersionKey, strconv.Itoa(version),
	); err != nil {
		return errors.Wrap(err, "failed to update schema version")
	}
	return nil
}
