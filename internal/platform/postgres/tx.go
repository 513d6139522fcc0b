package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxFunc is the body of a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

type txConfig struct {
	opts         pgx.TxOptions
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

type TxOption func(*txConfig)

// WithIsolation sets the isolation level of the transaction.
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(c *txConfig) { c.opts.IsoLevel = level }
}

// WithMaxAttempts bounds how often a serialization failure or deadlock is retried.
func WithMaxAttempts(n int) TxOption {
	return func(c *txConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithTx runs fn inside a transaction and commits when fn returns nil. The
// whole transaction is retried with jittered exponential backoff when
// PostgreSQL aborts it with a serialization failure or a deadlock.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms plus up to 30% jitter.
func WithTx(ctx context.Context, db Beginner, fn TxFunc, options ...TxOption) error {
	cfg := txConfig{
		opts:         pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, o := range options {
		o(&cfg)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = runTx(ctx, db, cfg.opts, fn)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func runTx(ctx context.Context, db Beginner, opts pgx.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
