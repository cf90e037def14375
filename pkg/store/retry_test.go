package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var errContended = errors.New("simulated deadlock")

func testWriter() *Writer {
	return &Writer{
		MaxRetries: 5,
		Backoff:    time.Microsecond,
		Retryable:  func(err error) bool { return errors.Is(err, errContended) },
	}
}

func TestCommitWithRetryRecovers(t *testing.T) {
	w := testWriter()
	calls := 0
	res, err := w.commitWithRetry(context.Background(), func(context.Context) error {
		calls++
		if calls <= 3 {
			return errContended
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateCommitted {
		t.Fatalf("state = %s", res.State)
	}
	if res.Attempts != 4 || res.Deadlocks != 3 {
		t.Fatalf("attempts=%d deadlocks=%d", res.Attempts, res.Deadlocks)
	}
}

func TestCommitWithRetryFatal(t *testing.T) {
	w := testWriter()
	boom := errors.New("syntax error")
	calls := 0
	res, err := w.commitWithRetry(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error was retried %d times", calls)
	}
	if res.State != StateFatalFailure || res.Deadlocks != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestCommitWithRetryBudget(t *testing.T) {
	w := testWriter()
	w.MaxRetries = 3
	res, err := w.commitWithRetry(context.Background(), func(context.Context) error {
		return errContended
	})
	if !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, errContended) {
		t.Fatalf("cause not preserved: %v", err)
	}
	if res.Attempts != 3 || res.Deadlocks != 3 || res.State != StateFatalFailure {
		t.Fatalf("res = %+v", res)
	}
}

func TestCommitWithRetryCanceled(t *testing.T) {
	w := testWriter()
	w.Backoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := w.commitWithRetry(ctx, func(context.Context) error {
		return errContended
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res.State != StateFatalFailure {
		t.Fatalf("state = %s", res.State)
	}
}

func TestBackoffStaysBounded(t *testing.T) {
	w := &Writer{}
	// Attempts far past the doubling range must neither overflow nor
	// exceed the cap.
	for _, attempt := range []int{1, 8, 39, 64, 200} {
		d := w.backoffFor(attempt)
		if d <= 0 {
			t.Fatalf("attempt %d: non-positive backoff %v", attempt, d)
		}
		if d > maxBackoff {
			t.Fatalf("attempt %d: backoff %v above cap", attempt, d)
		}
	}
}

func TestIsDeadlock(t *testing.T) {
	if !IsDeadlock(&pgconn.PgError{Code: "40P01"}) {
		t.Fatal("deadlock_detected not recognized")
	}
	if !IsDeadlock(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})) {
		t.Fatal("wrapped serialization_failure not recognized")
	}
	if IsDeadlock(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique_violation treated as deadlock")
	}
	if IsDeadlock(errors.New("plain")) {
		t.Fatal("plain error treated as deadlock")
	}
}
