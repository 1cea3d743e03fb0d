package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"weHabitAPI/internal/metrics"
	"weHabitAPI/internal/store"
)

// TxRunner retries store transactions that lost a race. Every read-modify-write
// on habits, profiles and challenges goes through it.
type TxRunner struct {
	store      store.Store
	maxRetries int
	log        *zap.Logger
}

func NewTxRunner(s store.Store, maxRetries int, log *zap.Logger) *TxRunner {
	return &TxRunner{store: s, maxRetries: maxRetries, log: log}
}

// Store exposes the underlying store for plain reads and cascade deletes.
func (r *TxRunner) Store() store.Store {
	return r.store
}

// run executes fn in a transaction. Domain errors returned by fn stop the
// retries immediately. Exhausted retries surface as ErrTransactionConflict.
func (r *TxRunner) run(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	operation := func() error {
		err := r.store.RunInTx(ctx, fn)
		if err == nil || store.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx),
		func(err error, d time.Duration) {
			metrics.TxRetries.Inc()
			r.log.Debug("transaction conflict, retrying",
				zap.String("op", op),
				zap.Error(err),
				zap.Duration("backoff", d))
		},
	)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	if store.IsRetryable(err) {
		r.log.Warn("transaction retries exhausted", zap.String("op", op), zap.Error(err))
		return ErrTransactionConflict
	}
	return err
}
