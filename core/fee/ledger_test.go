package fee

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func Test_obligationLocks_acquire(t *testing.T) {
	locks := newObligationLocks()

	release, err := locks.acquire(context.Background(), "ob-1")
	if err != nil {
		t.Fatalf("acquire() failed: %v", err)
	}

	// a held slot times out a second acquirer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locks.acquire(ctx, "ob-1"); !errors.Is(err, ConcurrencyConflictErr) {
		t.Errorf("acquire() error = %v; want %v", err, ConcurrencyConflictErr)
	}

	// an unrelated obligation is not blocked
	release2, err := locks.acquire(context.Background(), "ob-2")
	if err != nil {
		t.Fatalf("acquire() failed: %v", err)
	}
	release2()
	release()

	// released and timed-out slots are dropped from the map
	locks.mu.Lock()
	n := len(locks.slots)
	locks.mu.Unlock()
	if n != 0 {
		t.Errorf("len(slots) = %d; want 0", n)
	}

	// the slot can be re-acquired immediately after release
	release, err = locks.acquire(context.Background(), "ob-1")
	if err != nil {
		t.Fatalf("acquire() failed: %v", err)
	}
	release()
}

func TestService_Post_lockTimeout(t *testing.T) {
	svc := &Service{lockTimeout: 10 * time.Millisecond, locks: newObligationLocks()}

	release, err := svc.locks.acquire(context.Background(), "ob-1")
	if err != nil {
		t.Fatalf("acquire() failed: %v", err)
	}
	defer release()

	// the repository is nil: a timed-out post must fail before any
	// repository call, committing nothing
	_, err = svc.Post(context.Background(), PostPayment{
		ObligationID: "ob-1",
		Amount:       decimal.NewFromInt(100),
		Method:       MethodCash,
		Date:         time.Now().UTC(),
	})
	if !errors.Is(err, ConcurrencyConflictErr) {
		t.Errorf("Post() error = %v; want %v", err, ConcurrencyConflictErr)
	}
}
