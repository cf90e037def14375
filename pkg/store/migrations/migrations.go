// Package migrations provisions the two schema variants. The normalized
// variant interns URLs and enforces uniqueness on every relationship table;
// the denormalized variant carries raw values on each row and drops the
// constraints that make concurrent upserts contend.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed normalized/*.sql denormalized/*.sql
var files embed.FS

const (
	VariantNormalized   = "normalized"
	VariantDenormalized = "denormalized"
)

// Up migrates db to the latest version of the given schema variant.
func Up(db *sql.DB, variant string) error {
	if variant != VariantNormalized && variant != VariantDenormalized {
		return fmt.Errorf("unknown schema variant %q", variant)
	}
	src, err := iofs.New(files, variant)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
