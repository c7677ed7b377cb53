package fee

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core"
)

// Fee statuses derived by the status engine.
type FeeStatus string

const (
	StatusPaid          FeeStatus = "PAID"
	StatusPartiallyPaid FeeStatus = "PARTIALLY_PAID"
	StatusOverdue       FeeStatus = "OVERDUE"
	StatusPending       FeeStatus = "PENDING"
)

// Exception kinds, most favorable to the payer first.
type ExceptionKind string

const (
	KindWaiver      ExceptionKind = "waiver"
	KindScholarship ExceptionKind = "scholarship"
	KindDiscount    ExceptionKind = "discount"
	KindAdjustment  ExceptionKind = "adjustment"
)

type AdjustmentMode string

const (
	ModePercentage  AdjustmentMode = "percentage"
	ModeFixedAmount AdjustmentMode = "fixed-amount"
)

type ExceptionStatus string

const (
	ExceptionActive    ExceptionStatus = "active"
	ExceptionExpired   ExceptionStatus = "expired"
	ExceptionCancelled ExceptionStatus = "cancelled"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank-transfer"
	MethodMobileMoney  PaymentMethod = "mobile-money"
	MethodCheck        PaymentMethod = "check"
)

type TransactionStatus string

const (
	TxnSuccess  TransactionStatus = "success"
	TxnFailed   TransactionStatus = "failed"
	TxnReversed TransactionStatus = "reversed"
)

// FeeTemplate is one version of a recurring fee definition. Templates are
// superseded, never edited: a new version row deactivates the prior one and
// prior versions are retained for audit.
type FeeTemplate struct {
	ID             string          `json:"id"`
	Version        int             `json:"version"`
	Grades         []string        `json:"grades"`
	Classes        []string        `json:"classes"`
	AcademicYearID string          `json:"academic_year_id"`
	TermID         string          `json:"term_id"`
	FeeTypeID      string          `json:"fee_type_id"`
	Categories     []string        `json:"categories"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	DueDate        time.Time       `json:"due_date"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AppliesTo reports whether the template covers a student's cohort.
// An empty grade/class/category set means no restriction on that axis.
func (t FeeTemplate) AppliesTo(s Student) bool {
	if len(t.Grades) > 0 && !contains(t.Grades, s.GradeID) {
		return false
	}
	if len(t.Classes) > 0 && !contains(t.Classes, s.ClassID) {
		return false
	}
	if len(t.Categories) > 0 && !contains(t.Categories, s.Category) {
		return false
	}
	return true
}

// Overlaps reports whether two templates compete for the same
// (grade-or-class, term, fee-type, category) combination.
func (t FeeTemplate) Overlaps(o FeeTemplate) bool {
	if t.TermID != o.TermID || t.FeeTypeID != o.FeeTypeID || t.AcademicYearID != o.AcademicYearID {
		return false
	}
	if !setsOverlap(t.Categories, o.Categories) {
		return false
	}
	return setsOverlap(t.Grades, o.Grades) || setsOverlap(t.Classes, o.Classes)
}

// FeeException is a time-bounded override tied to one template and one student.
type FeeException struct {
	ID           string          `json:"id"`
	TemplateID   string          `json:"template_id"`
	StudentID    string          `json:"student_id"`
	Kind         ExceptionKind   `json:"kind"`
	Mode         AdjustmentMode  `json:"mode"`
	Value        decimal.Decimal `json:"value"`
	Reason       string          `json:"reason"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      null.Time       `json:"end_date,omitempty"`
	ApprovedBy   string          `json:"approved_by"`
	DocumentRefs []string        `json:"document_refs,omitempty"`
	Status       ExceptionStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ActiveOn reports whether the exception applies on the given date:
// status active and validity window containing it (an absent end date
// means open-ended).
func (e FeeException) ActiveOn(date time.Time) bool {
	if e.Status != ExceptionActive {
		return false
	}
	if date.Before(e.StartDate) {
		return false
	}
	if e.EndDate.Valid && date.After(e.EndDate.Time) {
		return false
	}
	return true
}

// Obligation pairs one template version with one student for one term. It is
// the join point the ledger posts against.
type Obligation struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id"`
	TemplateID      string          `json:"template_id"`
	TemplateVersion int             `json:"template_version"`
	TermID          string          `json:"term_id"`
	AcademicYearID  string          `json:"academic_year_id"`
	ClassID         string          `json:"class_id"`
	ClassName       string          `json:"class_name"`
	GradeID         string          `json:"grade_id"`
	FeeTypeID       string          `json:"fee_type_id"`
	AssessedAmount  decimal.Decimal `json:"assessed_amount"`
	DueDate         time.Time       `json:"due_date"`
	AssessedAt      time.Time       `json:"assessed_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FeeTransaction is an immutable payment event. Corrections are modeled as
// new reversing transactions, never as mutation.
type FeeTransaction struct {
	ID               string            `json:"id"`
	ObligationID     string            `json:"obligation_id"`
	StudentID        string            `json:"student_id"`
	TemplateID       string            `json:"template_id"`
	TermID           string            `json:"term_id"`
	AcademicYearID   string            `json:"academic_year_id"`
	Amount           decimal.Decimal   `json:"amount"`
	Method           PaymentMethod     `json:"method"`
	PaymentDate      time.Time         `json:"payment_date"`
	ReceiptNumber    string            `json:"receipt_number"`
	Status           TransactionStatus `json:"status"`
	BalanceAfter     decimal.Decimal   `json:"balance_after"`
	IsPartialPayment bool              `json:"is_partial_payment"`
	Notes            null.String       `json:"notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

type Student struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
	GradeID   string `json:"grade_id"`
	Category  string `json:"category"`
	IsActive  bool   `json:"is_active"`
}

// NetAdjustment is the override resolver's result: the total reduction and
// the exception ids applied, in application order, for audit.
type NetAdjustment struct {
	Amount              decimal.Decimal `json:"amount"`
	AppliedExceptionIDs []string        `json:"applied_exception_ids"`
}

// NewTemplate contains information needed to create a FeeTemplate.
type NewTemplate struct {
	Grades         []string        `json:"grades"`
	Classes        []string        `json:"classes"`
	AcademicYearID string          `json:"academic_year_id" validate:"required"`
	TermID         string          `json:"term_id" validate:"required"`
	FeeTypeID      string          `json:"fee_type_id" validate:"required"`
	Categories     []string        `json:"categories"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	DueDate        time.Time       `json:"due_date" validate:"required"`
}

func (nt *NewTemplate) Validate() error {
	nt.AcademicYearID = core.CleanString(nt.AcademicYearID)
	nt.TermID = core.CleanString(nt.TermID)
	nt.FeeTypeID = core.CleanString(nt.FeeTypeID)

	if err := core.Validate.Struct(nt); err != nil {
		return err
	}
	if nt.BaseAmount.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{
			Field: "base_amount", Error: "base amount cannot be negative",
		})
	}
	if len(nt.Grades) == 0 && len(nt.Classes) == 0 {
		return core.NewValidationError(nil,
			core.FieldError{Field: "grades", Error: gradeOrClassText},
			core.FieldError{Field: "classes", Error: gradeOrClassText},
		)
	}
	return nil
}

// NewException contains information needed to grant a FeeException.
type NewException struct {
	TemplateID   string          `json:"template_id" validate:"required"`
	StudentID    string          `json:"student_id" validate:"required"`
	Kind         ExceptionKind   `json:"kind" validate:"required,feekind"`
	Mode         AdjustmentMode  `json:"mode" validate:"required,adjmode"`
	Value        decimal.Decimal `json:"value"`
	Reason       string          `json:"reason" validate:"required"`
	StartDate    time.Time       `json:"start_date" validate:"required"`
	EndDate      null.Time       `json:"end_date"`
	ApprovedBy   string          `json:"approved_by" validate:"required"`
	DocumentRefs []string        `json:"document_refs"`
}

func (ne *NewException) Validate() error {
	ne.TemplateID = core.CleanString(ne.TemplateID)
	ne.StudentID = core.CleanString(ne.StudentID)
	ne.Reason = core.CleanString(ne.Reason)
	ne.ApprovedBy = core.CleanString(ne.ApprovedBy)

	if err := core.Validate.Struct(ne); err != nil {
		return err
	}
	if ne.EndDate.Valid && ne.EndDate.Time.Before(ne.StartDate) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "end_date", Error: dateWindowText,
		})
	}
	if ne.Value.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{
			Field: "value", Error: "adjustment value cannot be negative",
		})
	}
	if ne.Mode == ModePercentage && ne.Value.GreaterThan(decimal.NewFromInt(100)) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "value", Error: "percentage cannot exceed 100",
		})
	}
	return nil
}

// PostPayment contains information needed to post a payment transaction.
type PostPayment struct {
	ObligationID string          `json:"obligation_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Method       PaymentMethod   `json:"method" validate:"required,paymethod"`
	Date         time.Time       `json:"date" validate:"required"`
	Notes        string          `json:"notes"`
}

func (pp *PostPayment) Validate() error {
	pp.ObligationID = core.CleanString(pp.ObligationID)

	if err := core.Validate.Struct(pp); err != nil {
		return err
	}
	return nil
}

// SummaryFilter narrows which obligations and transactions a collection
// report covers. Zero values mean "no restriction"; AsOf defaults to the
// service clock and is the date statuses are derived against.
type SummaryFilter struct {
	AcademicYearID string
	TermID         string
	ClassIDs       []string
	GradeIDs       []string
	From           time.Time
	To             time.Time
	AsOf           time.Time
}

// MatchesObligation reports whether an obligation falls inside the filter.
func (f SummaryFilter) MatchesObligation(ob Obligation) bool {
	if f.AcademicYearID != "" && ob.AcademicYearID != f.AcademicYearID {
		return false
	}
	if f.TermID != "" && ob.TermID != f.TermID {
		return false
	}
	if len(f.ClassIDs) > 0 && !contains(f.ClassIDs, ob.ClassID) {
		return false
	}
	if len(f.GradeIDs) > 0 && !contains(f.GradeIDs, ob.GradeID) {
		return false
	}
	return true
}

// InRange reports whether a payment date falls inside the filter's date
// range. Zero bounds are open.
func (f SummaryFilter) InRange(date time.Time) bool {
	if !f.From.IsZero() && date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && date.After(f.To) {
		return false
	}
	return true
}

type (
	MonthCollection struct {
		Month     string          `json:"month"` // YYYY-MM
		Collected decimal.Decimal `json:"collected"`
		Pending   decimal.Decimal `json:"pending"`
	}

	ClassCollection struct {
		ClassName    string          `json:"className"`
		Collected    decimal.Decimal `json:"collected"`
		Pending      decimal.Decimal `json:"pending"`
		StudentCount int             `json:"studentCount"`
	}

	FeeTypeCollection struct {
		FeeType    string          `json:"feeType"`
		Amount     decimal.Decimal `json:"amount"`
		Percentage decimal.Decimal `json:"percentage"`
	}

	// CollectionSummary is computed on demand and never cached across
	// mutations.
	CollectionSummary struct {
		TotalCollected      decimal.Decimal     `json:"totalCollected"`
		TotalPending        decimal.Decimal     `json:"totalPending"`
		TotalOverdue        decimal.Decimal     `json:"totalOverdue"`
		CollectionByMonth   []MonthCollection   `json:"collectionByMonth"`
		CollectionByClass   []ClassCollection   `json:"collectionByClass"`
		CollectionByFeeType []FeeTypeCollection `json:"collectionByFeeType"`
	}
)

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// setsOverlap treats an empty set as "all", so it overlaps everything.
func setsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
