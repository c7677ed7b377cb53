package fee

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func exception(id string, kind ExceptionKind, mode AdjustmentMode, value string, start time.Time) FeeException {
	return FeeException{
		ID:         id,
		TemplateID: "tpl",
		StudentID:  "stu",
		Kind:       kind,
		Mode:       mode,
		Value:      dec(value),
		StartDate:  start,
		Status:     ExceptionActive,
	}
}

func Test_resolve(t *testing.T) {
	tpl := FeeTemplate{ID: "tpl", Version: 1, BaseAmount: dec("5000")}
	asOf := date(2024, time.March, 15)

	tests := []struct {
		name        string
		excs        []FeeException
		wantAmount  decimal.Decimal
		wantApplied []string
	}{
		{
			name:        "no exceptions",
			wantAmount:  decimal.Zero,
			wantApplied: []string{},
		},
		{
			name: "single 20% discount", // base 5000 -> assessed 4000
			excs: []FeeException{
				exception("e1", KindDiscount, ModePercentage, "20", date(2024, time.January, 1)),
			},
			wantAmount:  dec("1000"),
			wantApplied: []string{"e1"},
		},
		{
			name: "waiver short-circuits other active exceptions",
			excs: []FeeException{
				exception("e1", KindDiscount, ModePercentage, "20", date(2024, time.January, 1)),
				exception("e2", KindWaiver, ModePercentage, "100", date(2024, time.February, 1)),
			},
			wantAmount:  dec("5000"),
			wantApplied: []string{"e2"},
		},
		{
			name: "percentage applies to remaining amount, not base",
			excs: []FeeException{
				// scholarship first (higher rank): 5000 - 50% = 2500
				// then discount: 2500 - 20% = 2000
				exception("e1", KindDiscount, ModePercentage, "20", date(2024, time.January, 1)),
				exception("e2", KindScholarship, ModePercentage, "50", date(2024, time.January, 1)),
			},
			wantAmount:  dec("3000"),
			wantApplied: []string{"e2", "e1"},
		},
		{
			name: "fixed amounts clamp at zero",
			excs: []FeeException{
				exception("e1", KindDiscount, ModeFixedAmount, "4000", date(2024, time.January, 1)),
				exception("e2", KindAdjustment, ModeFixedAmount, "3000", date(2024, time.January, 1)),
			},
			wantAmount:  dec("5000"),
			wantApplied: []string{"e1", "e2"},
		},
		{
			name: "equal kind ties break by start date then id",
			excs: []FeeException{
				exception("b", KindDiscount, ModeFixedAmount, "100", date(2024, time.February, 1)),
				exception("a", KindDiscount, ModeFixedAmount, "200", date(2024, time.February, 1)),
				exception("c", KindDiscount, ModeFixedAmount, "300", date(2024, time.January, 1)),
			},
			wantAmount:  dec("600"),
			wantApplied: []string{"c", "a", "b"},
		},
		{
			name: "window and status filters are silent",
			excs: []FeeException{
				exception("e1", KindDiscount, ModePercentage, "20", date(2024, time.April, 1)), // not started
				func() FeeException {
					e := exception("e2", KindDiscount, ModePercentage, "20", date(2024, time.January, 1))
					e.EndDate = null.TimeFrom(date(2024, time.February, 1)) // expired window
					return e
				}(),
				func() FeeException {
					e := exception("e3", KindDiscount, ModePercentage, "20", date(2024, time.January, 1))
					e.Status = ExceptionCancelled
					return e
				}(),
				exception("e4", KindDiscount, ModeFixedAmount, "500", date(2024, time.January, 1)),
			},
			wantAmount:  dec("500"),
			wantApplied: []string{"e4"},
		},
		{
			name: "open-ended window includes asOf",
			excs: []FeeException{
				exception("e1", KindScholarship, ModePercentage, "100", date(2020, time.January, 1)),
			},
			wantAmount:  dec("5000"),
			wantApplied: []string{"e1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tpl, tt.excs, asOf)
			if !got.Amount.Equal(tt.wantAmount) {
				t.Errorf("resolve() amount = %s; want %s", got.Amount, tt.wantAmount)
			}
			if !reflect.DeepEqual(got.AppliedExceptionIDs, tt.wantApplied) {
				t.Errorf("resolve() applied = %v; want %v", got.AppliedExceptionIDs, tt.wantApplied)
			}
		})
	}
}

func Test_resolve_idempotent(t *testing.T) {
	tpl := FeeTemplate{ID: "tpl", Version: 1, BaseAmount: dec("8000")}
	excs := []FeeException{
		exception("e3", KindAdjustment, ModeFixedAmount, "250", date(2024, time.January, 10)),
		exception("e1", KindDiscount, ModePercentage, "10", date(2024, time.January, 1)),
		exception("e2", KindScholarship, ModePercentage, "25", date(2024, time.January, 5)),
	}
	asOf := date(2024, time.June, 1)

	first := resolve(tpl, excs, asOf)
	for i := 0; i < 10; i++ {
		got := resolve(tpl, excs, asOf)
		if !got.Amount.Equal(first.Amount) {
			t.Fatalf("resolve() amount = %s; want %s", got.Amount, first.Amount)
		}
		if !reflect.DeepEqual(got.AppliedExceptionIDs, first.AppliedExceptionIDs) {
			t.Fatalf("resolve() applied = %v; want %v", got.AppliedExceptionIDs, first.AppliedExceptionIDs)
		}
	}
}

func Test_outstandingBalance(t *testing.T) {
	assessed := dec("4000")
	txns := []FeeTransaction{
		{ID: "t1", Amount: dec("1000"), Status: TxnSuccess},
		{ID: "t2", Amount: dec("500"), Status: TxnFailed},
		{ID: "t3", Amount: dec("1500"), Status: TxnSuccess},
		{ID: "t4", Amount: dec("800"), Status: TxnReversed},
	}
	if got := outstandingBalance(assessed, txns); !got.Equal(dec("1500")) {
		t.Errorf("outstandingBalance() = %s; want 1500", got)
	}
	if got := outstandingBalance(assessed, nil); !got.Equal(assessed) {
		t.Errorf("outstandingBalance() = %s; want %s", got, assessed)
	}
}
