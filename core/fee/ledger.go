package fee

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// obligationLocks serializes ledger mutations per obligation id: at most one
// in-flight balance mutation per obligation, so two concurrent posts can
// never both read the same stale balance. Slots are refcounted by holders and
// waiters and dropped from the map once the last one leaves.
type obligationLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newObligationLocks() *obligationLocks {
	return &obligationLocks{slots: make(map[string]*lockSlot)}
}

// acquire blocks until the obligation's slot is free or ctx expires. On
// success the returned release func must be called; on ctx expiry nothing
// was committed and the caller may safely retry.
func (l *obligationLocks) acquire(ctx context.Context, obligationID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[obligationID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[obligationID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			l.put(obligationID, slot)
		}, nil
	case <-ctx.Done():
		l.put(obligationID, slot)
		return nil, ConcurrencyConflictErr
	}
}

func (l *obligationLocks) put(obligationID string, slot *lockSlot) {
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, obligationID)
	}
	l.mu.Unlock()
}

// outstandingBalance folds the ledger: assessed amount minus the sum of all
// successful transaction amounts. Failed and reversed transactions carry no
// economic effect but remain in the ledger for audit. Balance is always
// derived from the transaction sequence, never stored as mutable state.
func outstandingBalance(assessed decimal.Decimal, txns []FeeTransaction) decimal.Decimal {
	paid := decimal.Zero
	for _, txn := range txns {
		if txn.Status == TxnSuccess {
			paid = paid.Add(txn.Amount)
		}
	}
	return assessed.Sub(paid)
}
