package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hmscore/internal/model"
	embedsql "github.com/gyeh/hmscore/internal/sql"
)

// pgDuplicateColumn is the SQLSTATE another process racing the same
// guard produces; the column exists, which is the state we wanted.
const pgDuplicateColumn = "42701"

// columnGuard declares one additive column change. Applied only when
// introspection says the column is absent, which keeps the guard
// idempotent without a migration ledger.
type columnGuard struct {
	Table  string
	Column string
	DDL    string
}

// columnGuards lists the additive changes applied after the base
// migrations. Order matters where one guard's DDL references another's.
var columnGuards = []columnGuard{
	{"bill_items", "paid",
		"ALTER TABLE bill_items ADD COLUMN paid BOOLEAN NOT NULL DEFAULT FALSE"},
	{"bill_items", "paid_at",
		"ALTER TABLE bill_items ADD COLUMN paid_at TIMESTAMPTZ"},
	{"bills", "payment_ref",
		"ALTER TABLE bills ADD COLUMN payment_ref TEXT"},
	{"treatments", "prescription_id",
		"ALTER TABLE treatments ADD COLUMN prescription_id BIGINT REFERENCES prescriptions(id) ON DELETE SET NULL"},
	{"prescription_items", "medication_note",
		"ALTER TABLE prescription_items ADD COLUMN medication_note TEXT NOT NULL DEFAULT ''"},
}

// EnsureSchema brings the live schema up to the current shape: base
// migrations in filename order, then additive column guards. It must run
// to completion before any other component touches the store; after it
// returns nil every guarded column and table exists. Any failure is a
// *model.MigrationError and fatal to startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	entries, err := fs.ReadDir(embedsql.Migrations, "migrations")
	if err != nil {
		return &model.MigrationError{Step: "read dir", Err: err}
	}

	// Sort by filename to ensure correct ordering.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		data, err := fs.ReadFile(embedsql.Migrations, "migrations/"+name)
		if err != nil {
			return &model.MigrationError{Step: name, Err: err}
		}

		log.Info().Str("migration", name).Msg("applying migration")
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return &model.MigrationError{Step: name, Err: err}
		}
	}

	applied := 0
	for _, g := range columnGuards {
		ok, err := applyColumnGuard(ctx, pool, g)
		if err != nil {
			return &model.MigrationError{
				Step: fmt.Sprintf("add %s.%s", g.Table, g.Column),
				Err:  err,
			}
		}
		if ok {
			applied++
			log.Info().Str("table", g.Table).Str("column", g.Column).Msg("column guard applied")
		}
	}

	log.Info().
		Int("migrations", len(entries)).
		Int("guards_applied", applied).
		Msg("schema up to date")
	return nil
}

// applyColumnGuard adds the column when introspection says it is
// missing. A concurrent starter may win the race between the check and
// the ALTER; its duplicate-column error counts as success.
func applyColumnGuard(ctx context.Context, pool *pgxpool.Pool, g columnGuard) (bool, error) {
	exists, err := columnExists(ctx, pool, g.Table, g.Column)
	if err != nil {
		return false, fmt.Errorf("introspect: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := pool.Exec(ctx, g.DDL); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateColumn {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, table, column string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name = $1 AND column_name = $2
		)`, table, column).Scan(&exists)
	return exists, err
}
