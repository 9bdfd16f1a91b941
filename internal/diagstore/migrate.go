package diagstore

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateUp applies every pending migration. Unlike the teacher's
// internal/db, there is no schema-drift detection or baselining here —
// this store only ever runs migrations forward from an empty or
// already-migrated file.
func (s *Store) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("diagstore: iofs source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("diagstore: sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("diagstore: migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	// m.Close() is skipped deliberately: the sqlite driver's Close also
	// closes the underlying *sql.DB, which Store.Close owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("diagstore: migrate up: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[diagstore] "+format, v...) }
func (l *migrateLogger) Verbose() bool                          { return false }
