package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies all up migrations for the dialect. It opens its own handle
// because closing the migrator closes the database it was given.
func Migrate(dialect Dialect, dsn string) error {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return fmt.Errorf("opening database for migration: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case DialectSQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", dialect)
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("preparing migration driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations/"+string(dialect))
	if err != nil {
		db.Close()
		return fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
