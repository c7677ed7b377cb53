package fee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status derives an obligation's payment status from its assessed amount,
// outstanding balance and due date. Pure: no hidden state, identical inputs
// always yield identical output. today == dueDate is still PENDING; an
// obligation only becomes OVERDUE strictly after its due date.
func Status(assessed, balance decimal.Decimal, dueDate, today time.Time) FeeStatus {
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return StatusPaid
	case balance.LessThan(assessed):
		return StatusPartiallyPaid
	case today.After(dueDate):
		return StatusOverdue
	default:
		return StatusPending
	}
}
