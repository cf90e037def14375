package store

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// BatchState tracks one batch through the commit lifecycle. A batch whose
// transaction aborts on a lock cycle moves through DeadlockDetected and
// Backoff before being submitted again.
type BatchState string

const (
	StatePending          BatchState = "pending"
	StateSubmitted        BatchState = "submitted"
	StateCommitted        BatchState = "committed"
	StateDeadlockDetected BatchState = "deadlock_detected"
	StateBackoff          BatchState = "backoff"
	StateFatalFailure     BatchState = "fatal_failure"
)

// ErrRetryBudgetExhausted marks a batch that kept deadlocking past the
// configured attempt limit.
var ErrRetryBudgetExhausted = errors.New("store: retry budget exhausted")

// Result reports what it took to commit (or abandon) one batch.
type Result struct {
	BatchID   string
	Attempts  int
	Deadlocks int
	State     BatchState
}

// IsDeadlock reports whether err is a transient serialization failure worth
// retrying: Postgres deadlock_detected (40P01) or serialization_failure
// (40001).
func IsDeadlock(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}

// commitWithRetry drives commit through the retry state machine. Deadlocks
// consume an attempt and trigger a randomized exponential backoff; any other
// error fails the batch immediately.
func (w *Writer) commitWithRetry(ctx context.Context, commit func(context.Context) error) (Result, error) {
	res := Result{State: StatePending}
	retryable := w.Retryable
	if retryable == nil {
		retryable = IsDeadlock
	}
	maxAttempts := w.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxRetries
	}

	for attempt := 1; ; attempt++ {
		res.State = StateSubmitted
		res.Attempts = attempt

		err := commit(ctx)
		if err == nil {
			res.State = StateCommitted
			return res, nil
		}
		if !retryable(err) {
			res.State = StateFatalFailure
			return res, err
		}

		res.State = StateDeadlockDetected
		res.Deadlocks++
		if attempt >= maxAttempts {
			res.State = StateFatalFailure
			return res, errors.Join(ErrRetryBudgetExhausted, err)
		}

		res.State = StateBackoff
		if err := w.sleep(ctx, attempt); err != nil {
			res.State = StateFatalFailure
			return res, err
		}
	}
}

// backoffFor returns the delay before the given attempt's retry: the base
// doubled per attempt up to the cap, half fixed and half random jitter so
// retrying writers do not re-collide in lockstep.
func (w *Writer) backoffFor(attempt int) time.Duration {
	base := w.Backoff
	if base <= 0 {
		base = defaultBackoff
	}
	d := base
	// Stop doubling at the cap; an unbounded shift would overflow for
	// large configured retry budgets.
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d <<= 1
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

// sleep waits out the backoff for the given attempt.
func (w *Writer) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(w.backoffFor(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const (
	defaultMaxRetries = 8
	defaultBackoff    = 50 * time.Millisecond
	maxBackoff        = 5 * time.Second
)
