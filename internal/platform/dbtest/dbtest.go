// Package dbtest provisions an isolated, migrated PostgreSQL schema per test.
//
// Tests that need a real database call New; it skips the test unless
// HMS_TEST_DATABASE_URL points at a reachable server.
package dbtest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/migrations"
)

const EnvURL = "HMS_TEST_DATABASE_URL"

// DB is a migrated schema and a pool whose connections are pinned to it.
type DB struct {
	Pool   *pgxpool.Pool
	Schema string
	Tx     *db.TxRunner
}

// New creates a fresh schema named after a random uuid, applies every
// migration to it and registers cleanup that drops it again.
func New(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set; skipping PostgreSQL-backed test", EnvURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := db.NewPool(ctx, url, 2, 0)
	if err != nil {
		t.Fatalf("connect admin pool: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize()); err != nil {
		admin.Close()
		t.Fatalf("create schema %s: %v", schema, err)
	}

	pool, err := db.NewPool(ctx, url, 16, 0, db.WithSearchPath(schema), db.WithApplicationName("hms-test"))
	if err != nil {
		admin.Close()
		t.Fatalf("connect test pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer dropCancel()
		if _, err := admin.Exec(dropCtx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE"); err != nil {
			t.Logf("warning: drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	if _, err := db.NewMigrator(pool, migrations.FS, schema).Up(ctx); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}

	return &DB{
		Pool:   pool,
		Schema: schema,
		Tx:     db.NewTxRunner(pool, db.WithMaxAttempts(5), db.WithBackoff(5*time.Millisecond, 100*time.Millisecond)),
	}
}

// Count returns the number of rows in table matching the optional where clause.
func (d *DB) Count(t *testing.T, table, where string, args ...any) int {
	t.Helper()
	q := "SELECT count(*) FROM " + pgx.Identifier{table}.Sanitize()
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := d.Pool.QueryRow(context.Background(), q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
