package database

import (
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/campuskit/identity/core"
	appfs "github.com/campuskit/identity/fs"
)

// Open connects to Postgres and verifies the connection.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", conf.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	return db, nil
}

// Migrate applies all pending embedded migrations.
func Migrate(db *sqlx.DB) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db.DB, "migrations")
}

// RunMigration runs an arbitrary goose command (up, down, status, ...) against
// the embedded migrations.
func RunMigration(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Run(command, db.DB, "migrations", args...)
}

// isDuplicate reports whether err is a unique-constraint violation, optionally
// on a specific constraint.
func isDuplicate(err error, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	if len(constraint) > 0 {
		return pqErr.Constraint == constraint[0]
	}
	return true
}
