package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"ledger/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the migration version this build expects.
const SchemaVersion uint = 2

// dsn enables foreign keys on every connection of the pool.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)"
}

// newMigrate opens a dedicated connection for golang-migrate. Closing the
// returned instance also closes that connection.
func newMigrate(dbPath string) (*migrate.Migrate, error) {
	migrateDB, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations brings the schema at dbPath up to SchemaVersion. It is safe to
// call on every startup and never drops existing data.
func RunMigrations(dbPath string) error {
	m, err := newMigrate(dbPath)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: run migrations: %w", core.ErrStorageUnavailable, err)
	}
	return nil
}

// ReadSchemaVersion reports the applied migration version at dbPath. A store
// that was never migrated reports version 0.
func ReadSchemaVersion(dbPath string) (version uint, dirty bool, err error) {
	m, err := newMigrate(dbPath)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}
