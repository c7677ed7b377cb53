package fee

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Summarize scans the obligations and transactions matching the filter and
// folds them into collection totals with monthly, class and fee-type
// breakdowns. Read-only and side-effect free: an empty result set yields
// all-zero aggregates, never an error. Each obligation's ledger is folded
// exactly once.
func (svc *Service) Summarize(ctx context.Context, filter SummaryFilter) (CollectionSummary, error) {
	asOf := filter.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	obs, err := svc.repo.QueryObligations(ctx, filter)
	if err != nil {
		return CollectionSummary{}, err
	}
	txns, err := svc.repo.QueryTransactions(ctx, filter)
	if err != nil {
		return CollectionSummary{}, err
	}
	byObligation := make(map[string][]FeeTransaction, len(obs))
	for _, txn := range txns {
		byObligation[txn.ObligationID] = append(byObligation[txn.ObligationID], txn)
	}

	summary := CollectionSummary{
		TotalCollected:      decimal.Zero,
		TotalPending:        decimal.Zero,
		TotalOverdue:        decimal.Zero,
		CollectionByMonth:   []MonthCollection{},
		CollectionByClass:   []ClassCollection{},
		CollectionByFeeType: []FeeTypeCollection{},
	}
	months := make(map[string]*MonthCollection)
	classes := make(map[string]*ClassCollection)
	classStudents := make(map[string]map[string]struct{})
	feeTypes := make(map[string]*FeeTypeCollection)

	monthOf := func(m map[string]*MonthCollection, date time.Time) *MonthCollection {
		key := date.Format("2006-01")
		row, ok := m[key]
		if !ok {
			row = &MonthCollection{Month: key, Collected: decimal.Zero, Pending: decimal.Zero}
			m[key] = row
		}
		return row
	}

	for _, ob := range obs {
		ledger := byObligation[ob.ID]
		balance := outstandingBalance(ob.AssessedAmount, ledger)
		status := Status(ob.AssessedAmount, balance, ob.DueDate, asOf)

		classRow, ok := classes[ob.ClassID]
		if !ok {
			classRow = &ClassCollection{ClassName: ob.ClassName, Collected: decimal.Zero, Pending: decimal.Zero}
			classes[ob.ClassID] = classRow
			classStudents[ob.ClassID] = make(map[string]struct{})
		}
		classStudents[ob.ClassID][ob.StudentID] = struct{}{}

		feeTypeRow, ok := feeTypes[ob.FeeTypeID]
		if !ok {
			feeTypeRow = &FeeTypeCollection{FeeType: ob.FeeTypeID, Amount: decimal.Zero, Percentage: decimal.Zero}
			feeTypes[ob.FeeTypeID] = feeTypeRow
		}

		// collected: successful payments inside the date range
		for _, txn := range ledger {
			if txn.Status != TxnSuccess || !filter.InRange(txn.PaymentDate) {
				continue
			}
			summary.TotalCollected = summary.TotalCollected.Add(txn.Amount)
			classRow.Collected = classRow.Collected.Add(txn.Amount)
			feeTypeRow.Amount = feeTypeRow.Amount.Add(txn.Amount)
			monthly := monthOf(months, txn.PaymentDate)
			monthly.Collected = monthly.Collected.Add(txn.Amount)
		}

		// pending/overdue: positive outstanding balances, split by status
		if balance.IsPositive() {
			switch status {
			case StatusOverdue:
				summary.TotalOverdue = summary.TotalOverdue.Add(balance)
			case StatusPending, StatusPartiallyPaid:
				summary.TotalPending = summary.TotalPending.Add(balance)
			}
			classRow.Pending = classRow.Pending.Add(balance)
			monthly := monthOf(months, ob.DueDate)
			monthly.Pending = monthly.Pending.Add(balance)
		}
	}

	// percentage shares of the grand total collected; 0 when the total is 0
	hundred := decimal.NewFromInt(100)
	for _, row := range feeTypes {
		if summary.TotalCollected.IsPositive() {
			row.Percentage = row.Amount.Mul(hundred).Div(summary.TotalCollected).Round(2)
		}
	}

	for _, row := range months {
		summary.CollectionByMonth = append(summary.CollectionByMonth, *row)
	}
	sort.Slice(summary.CollectionByMonth, func(i, j int) bool {
		return summary.CollectionByMonth[i].Month < summary.CollectionByMonth[j].Month
	})

	for id, row := range classes {
		row.StudentCount = len(classStudents[id])
		summary.CollectionByClass = append(summary.CollectionByClass, *row)
	}
	sort.Slice(summary.CollectionByClass, func(i, j int) bool {
		return summary.CollectionByClass[i].ClassName < summary.CollectionByClass[j].ClassName
	})

	for _, row := range feeTypes {
		summary.CollectionByFeeType = append(summary.CollectionByFeeType, *row)
	}
	sort.Slice(summary.CollectionByFeeType, func(i, j int) bool {
		return summary.CollectionByFeeType[i].FeeType < summary.CollectionByFeeType[j].FeeType
	})

	return summary, nil
}
