package billing_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hmscore/internal/billing"
	"github.com/gyeh/hmscore/internal/db"
	"github.com/gyeh/hmscore/internal/logging"
	"github.com/gyeh/hmscore/internal/model"
	"github.com/gyeh/hmscore/internal/registry"
)

const (
	testPort     = 15432
	testDB       = "hmstest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			RuntimePath(filepath.Join(os.TempDir(), "hmscore-pg-billing")).
			CachePath(filepath.Join(os.TempDir(), "hmscore-pg-billing-cache")).
			StartTimeout(30*time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

func setupLog() zerolog.Logger {
	return logging.Setup("text").Level(zerolog.WarnLevel)
}

// setupDB creates a connection pool against a clean schema with all
// migrations and guards applied.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := pool.Exec(ctx, "DROP SCHEMA public CASCADE; CREATE SCHEMA public"); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	if err := db.EnsureSchema(ctx, pool, setupLog()); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

func setupServices(t *testing.T) (*pgxpool.Pool, *billing.Service, *registry.Service) {
	t.Helper()
	pool := setupDB(t)
	log := setupLog()
	return pool, billing.New(pool, log, model.ChargeKindNames()), registry.New(pool, log)
}

// insertPatient is a test helper that registers a patient and returns its ID.
func insertPatient(t *testing.T, reg *registry.Service, first, last string) int64 {
	t.Helper()
	id, err := reg.CreatePatient(context.Background(), registry.NewPatient{
		FirstName: first, LastName: last,
	})
	if err != nil {
		t.Fatalf("insert patient %s %s: %v", first, last, err)
	}
	return id
}

// assertLedgerConsistent checks total_cents == sum(amount_cents) for
// every bill in the store.
func assertLedgerConsistent(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	rows, err := pool.Query(ctx, `
		SELECT b.id, b.total_cents, COALESCE(SUM(bi.amount_cents), 0)
		FROM bills b
		LEFT JOIN bill_items bi ON bi.bill_id = b.id
		GROUP BY b.id, b.total_cents`)
	if err != nil {
		t.Fatalf("ledger query: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var billID, total, sum int64
		if err := rows.Scan(&billID, &total, &sum); err != nil {
			t.Fatalf("ledger scan: %v", err)
		}
		if total != sum {
			t.Errorf("bill %d: total_cents=%d but sum(items)=%d", billID, total, sum)
		}
	}
}

func countOpenBills(t *testing.T, pool *pgxpool.Pool, patientID int64) int64 {
	t.Helper()
	var n int64
	err := pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM bills WHERE patient_id = $1 AND NOT paid", patientID).Scan(&n)
	if err != nil {
		t.Fatalf("count open bills: %v", err)
	}
	return n
}
