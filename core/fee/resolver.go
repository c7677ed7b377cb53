package fee

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// kind ranks: most favorable to the payer wins ties.
var kindRanks = map[ExceptionKind]int{
	KindWaiver:      4,
	KindScholarship: 3,
	KindDiscount:    2,
	KindAdjustment:  1,
}

func kindRank(k ExceptionKind) int {
	return kindRanks[k]
}

// orderExceptions sorts applicable exceptions deterministically:
// kind rank descending, then validity-window start ascending, then id
// ascending.
func orderExceptions(excs []FeeException) {
	sort.Slice(excs, func(i, j int) bool {
		a, b := excs[i], excs[j]
		if kindRank(a.Kind) != kindRank(b.Kind) {
			return kindRank(a.Kind) > kindRank(b.Kind)
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
}

// resolve computes the net adjustment for a template's base amount from the
// exceptions applicable on asOf. Exceptions that fail the date/status filter
// are excluded silently. A waiver short-circuits and zeroes the base amount.
// Percentage adjustments apply to the current remaining amount, fixed amounts
// subtract directly; each step clamps so the remainder never goes below zero.
// Pure: identical inputs yield an identical result and application order.
func resolve(tpl FeeTemplate, excs []FeeException, asOf time.Time) NetAdjustment {
	applicable := make([]FeeException, 0, len(excs))
	for _, exc := range excs {
		if exc.TemplateID != tpl.ID {
			continue
		}
		if !exc.ActiveOn(asOf) {
			continue
		}
		applicable = append(applicable, exc)
	}
	orderExceptions(applicable)

	remaining := tpl.BaseAmount
	adjustment := decimal.Zero
	applied := make([]string, 0, len(applicable))

	for _, exc := range applicable {
		if exc.Kind == KindWaiver {
			// a waiver zeroes the assessed amount regardless of its stated
			// mode and value
			return NetAdjustment{
				Amount:              tpl.BaseAmount,
				AppliedExceptionIDs: []string{exc.ID},
			}
		}

		var cut decimal.Decimal
		switch exc.Mode {
		case ModePercentage:
			cut = remaining.Mul(exc.Value).Div(decimal.NewFromInt(100))
		case ModeFixedAmount:
			cut = exc.Value
		}
		if cut.GreaterThan(remaining) {
			cut = remaining
		}
		adjustment = adjustment.Add(cut)
		remaining = remaining.Sub(cut)
		applied = append(applied, exc.ID)
	}

	return NetAdjustment{Amount: adjustment, AppliedExceptionIDs: applied}
}
