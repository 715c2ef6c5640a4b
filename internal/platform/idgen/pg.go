package idgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
)

// PGGenerator derives the next identifier from the rows that exist now. The
// per-kind id_sequences row is only a lock: it is taken before the table is
// read and held until the caller's transaction ends, which serializes
// concurrent creates of the same kind and nothing else. last_value records
// the last identifier handed out.
type PGGenerator struct{}

func NewPGGenerator() *PGGenerator {
	return &PGGenerator{}
}

// lockSQL creates the kind's row on first use; the conflicting update takes
// the row lock when it already exists.
const lockSQL = `
INSERT INTO id_sequences AS s (entity_type, last_value)
VALUES ($1, 0)
ON CONFLICT (entity_type) DO UPDATE SET updated_at = NOW()`

// maxSQL reads the highest numeric suffix in the kind's table. Identifiers
// have a fixed prefix and width.
const maxSQL = `SELECT COALESCE(MAX(substring(id FROM %d)::bigint), 0) FROM %s`

const recordSQL = `UPDATE id_sequences SET last_value = $2, updated_at = NOW() WHERE entity_type = $1`

func (g *PGGenerator) Next(ctx context.Context, k Kind) (string, error) {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return "", apperr.Internal("identifier requested outside a transaction", nil)
	}

	if _, err := tx.Exec(ctx, lockSQL, k.Entity); err != nil {
		return "", fmt.Errorf("lock %s id sequence: %w", k.Entity, err)
	}
	var highest int64
	query := fmt.Sprintf(maxSQL, len(k.Prefix)+1, pgx.Identifier{k.Table}.Sanitize())
	if err := tx.QueryRow(ctx, query).Scan(&highest); err != nil {
		return "", fmt.Errorf("read highest %s id: %w", k.Entity, err)
	}
	id, err := Format(k, highest+1)
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, recordSQL, k.Entity, highest+1); err != nil {
		return "", fmt.Errorf("record %s id: %w", k.Entity, err)
	}
	return id, nil
}

// Peek returns the last identifier value handed out for k, or 0.
func Peek(ctx context.Context, q db.Querier, k Kind) (int64, error) {
	var n int64
	err := db.Conn(ctx, q).QueryRow(ctx,
		`SELECT last_value FROM id_sequences WHERE entity_type = $1`, k.Entity).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s id sequence: %w", k.Entity, err)
	}
	return n, nil
}
