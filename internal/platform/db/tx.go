package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Transactor runs fn inside a single database transaction. The context passed
// to fn carries the transaction; repositories pick it up through Conn.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxBeginner is the part of *pgxpool.Pool the runner needs.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxRunner is the production Transactor. Serialization failures and deadlocks
// are retried with exponential backoff; every other error is returned as is.
type TxRunner struct {
	db           TxBeginner
	logger       zerolog.Logger
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// TxOption configures a TxRunner.
type TxOption func(*TxRunner)

func WithMaxAttempts(n int) TxOption {
	return func(r *TxRunner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithBackoff(initial, max time.Duration) TxOption {
	return func(r *TxRunner) {
		r.initialDelay = initial
		r.maxDelay = max
	}
}

func WithLogger(logger zerolog.Logger) TxOption {
	return func(r *TxRunner) { r.logger = logger }
}

func NewTxRunner(db TxBeginner, opts ...TxOption) *TxRunner {
	r := &TxRunner{
		db:           db,
		logger:       zerolog.Nop(),
		maxAttempts:  3,
		initialDelay: 20 * time.Millisecond,
		maxDelay:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InTx runs fn in a read-write READ COMMITTED transaction. A transaction
// already bound to ctx is joined instead of starting a nested one.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// InSnapshot runs fn in a REPEATABLE READ, READ ONLY transaction: every query
// in fn sees the same snapshot and none of them block writers.
func (r *TxRunner) InSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (r *TxRunner) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	delay := r.initialDelay
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.once(ctx, opts, fn)
		if err == nil || !IsRetryable(err) || attempt == r.maxAttempts {
			break
		}

		r.logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction retry aborted: %w (last error: %v)", ctx.Err(), err)
		case <-time.After(delay):
		}
		delay *= 2
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
	return err
}

func (r *TxRunner) once(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) (err error) {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
