package fee

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core"
)

var (
	// errors
	TemplateNotFoundErr    = errors.New("fee template not found")
	StudentNotFoundErr     = errors.New("student not found")
	ObligationNotFoundErr  = errors.New("obligation not found")
	ExceptionNotFoundErr   = errors.New("fee exception not found")
	TransactionNotFoundErr = errors.New("transaction not found")
	InvalidTemplateErr     = errors.New("fee template is inactive")
	InvalidAmountErr       = errors.New("payment amount must be greater than zero")
	OverpaymentErr         = errors.New("payment exceeds outstanding balance")
	ConcurrencyConflictErr = errors.New("timed out waiting for obligation lock")
	TemplateExistsErr      = errors.New("an active fee template already exists for this combination")
)

type (
	Repository interface {
		CreateTemplate(ctx context.Context, tpl FeeTemplate) (FeeTemplate, error)
		GetTemplate(ctx context.Context, id string, version int) (FeeTemplate, error)
		GetActiveTemplate(ctx context.Context, id string) (FeeTemplate, error)
		GetLatestTemplate(ctx context.Context, id string) (FeeTemplate, error)
		TemplateExists(ctx context.Context, id string) (bool, error)
		QueryActiveTemplates(ctx context.Context, academicYearID, termID string) ([]FeeTemplate, error)
		DeactivateTemplate(ctx context.Context, id string, version int) error

		CreateException(ctx context.Context, exc FeeException) (FeeException, error)
		GetException(ctx context.Context, id string) (FeeException, error)
		QueryExceptions(ctx context.Context, templateID, studentID string) ([]FeeException, error)
		UpdateExceptionStatus(ctx context.Context, id string, status ExceptionStatus) error

		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudentsByClass(ctx context.Context, classID string) ([]Student, error)

		UpsertObligation(ctx context.Context, ob Obligation) (Obligation, error)
		GetObligation(ctx context.Context, id string) (Obligation, error)
		GetObligationByKey(ctx context.Context, studentID, templateID, termID string) (Obligation, error)
		QueryObligations(ctx context.Context, filter SummaryFilter) ([]Obligation, error)

		CreateTransaction(ctx context.Context, txn FeeTransaction) (FeeTransaction, error)
		GetTransaction(ctx context.Context, id string) (FeeTransaction, error)
		QueryTransactionsByObligation(ctx context.Context, obligationID string) ([]FeeTransaction, error)
		QueryTransactions(ctx context.Context, filter SummaryFilter) ([]FeeTransaction, error)
		MarkTransactionReversed(ctx context.Context, id string) error
	}

	Service struct {
		repo        Repository
		log         core.Logger
		strict      bool
		lockTimeout time.Duration
		locks       *obligationLocks
	}
)

func NewService(repo Repository, log core.Logger, conf *core.Config) *Service {
	timeout := conf.Fees.ObligationLockTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		repo:        repo,
		log:         log,
		strict:      conf.Fees.StrictOverpayment,
		lockTimeout: timeout,
		locks:       newObligationLocks(),
	}
}

// ----- templates -----

// CreateTemplate registers version 1 of a new fee template after checking
// that no active template competes for the same cohort/term/fee-type
// combination.
func (svc *Service) CreateTemplate(ctx context.Context, nt NewTemplate) (FeeTemplate, error) {
	if err := nt.Validate(); err != nil {
		return FeeTemplate{}, err
	}

	now := time.Now().UTC()
	tpl := FeeTemplate{
		ID:             uuid.NewString(),
		Version:        1,
		Grades:         nt.Grades,
		Classes:        nt.Classes,
		AcademicYearID: nt.AcademicYearID,
		TermID:         nt.TermID,
		FeeTypeID:      nt.FeeTypeID,
		Categories:     nt.Categories,
		BaseAmount:     nt.BaseAmount,
		DueDate:        nt.DueDate,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	active, err := svc.repo.QueryActiveTemplates(ctx, tpl.AcademicYearID, tpl.TermID)
	if err != nil {
		return FeeTemplate{}, err
	}
	for _, other := range active {
		if tpl.Overlaps(other) {
			return FeeTemplate{}, TemplateExistsErr
		}
	}
	return svc.repo.CreateTemplate(ctx, tpl)
}

// SupersedeTemplate creates the next version of a template and deactivates
// the prior one. Prior versions are retained for audit, never deleted, and
// obligations assessed against them keep reproducing historical amounts.
func (svc *Service) SupersedeTemplate(ctx context.Context, templateID string, nt NewTemplate) (FeeTemplate, error) {
	if err := nt.Validate(); err != nil {
		return FeeTemplate{}, err
	}

	prev, err := svc.repo.GetActiveTemplate(ctx, templateID)
	if err != nil {
		return FeeTemplate{}, err
	}
	if err = svc.repo.DeactivateTemplate(ctx, prev.ID, prev.Version); err != nil {
		return FeeTemplate{}, err
	}

	now := time.Now().UTC()
	next := FeeTemplate{
		ID:             prev.ID,
		Version:        prev.Version + 1,
		Grades:         nt.Grades,
		Classes:        nt.Classes,
		AcademicYearID: nt.AcademicYearID,
		TermID:         nt.TermID,
		FeeTypeID:      nt.FeeTypeID,
		Categories:     nt.Categories,
		BaseAmount:     nt.BaseAmount,
		DueDate:        nt.DueDate,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tpl, err := svc.repo.CreateTemplate(ctx, next)
	if err != nil {
		return FeeTemplate{}, err
	}
	svc.log.Info("fee template superseded", map[string]interface{}{
		"template": tpl.ID, "version": tpl.Version,
	})
	return tpl, nil
}

func (svc *Service) DeactivateTemplate(ctx context.Context, templateID string) error {
	tpl, err := svc.repo.GetActiveTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	return svc.repo.DeactivateTemplate(ctx, tpl.ID, tpl.Version)
}

// ----- exceptions -----

// GrantException records a time-bounded override approved by the asserted
// identity. A waiver is normalized to a 100% reduction at creation so its
// stated value can never matter downstream.
func (svc *Service) GrantException(ctx context.Context, ne NewException) (FeeException, error) {
	if err := ne.Validate(); err != nil {
		return FeeException{}, err
	}
	if exists, err := svc.repo.TemplateExists(ctx, ne.TemplateID); err != nil {
		return FeeException{}, err
	} else if !exists {
		return FeeException{}, TemplateNotFoundErr
	}
	if _, err := svc.repo.GetStudent(ctx, ne.StudentID); err != nil {
		return FeeException{}, err
	}

	mode, value := ne.Mode, ne.Value
	if ne.Kind == KindWaiver {
		mode, value = ModePercentage, decimal.NewFromInt(100)
	}

	now := time.Now().UTC()
	exc := FeeException{
		ID:           uuid.NewString(),
		TemplateID:   ne.TemplateID,
		StudentID:    ne.StudentID,
		Kind:         ne.Kind,
		Mode:         mode,
		Value:        value,
		Reason:       ne.Reason,
		StartDate:    ne.StartDate,
		EndDate:      ne.EndDate,
		ApprovedBy:   ne.ApprovedBy,
		DocumentRefs: ne.DocumentRefs,
		Status:       ExceptionActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateException(ctx, exc)
}

// CancelException retires an exception; the record is kept for audit.
func (svc *Service) CancelException(ctx context.Context, id string) error {
	if _, err := svc.repo.GetException(ctx, id); err != nil {
		return err
	}
	return svc.repo.UpdateExceptionStatus(ctx, id, ExceptionCancelled)
}

// ----- assessment -----

// Resolve computes the net adjustment for (template, student) on asOf. It
// uses the template's active version, or its latest version when the
// template has been deactivated.
func (svc *Service) Resolve(ctx context.Context, templateID, studentID string, asOf time.Time) (NetAdjustment, error) {
	if asOf.IsZero() {
		return NetAdjustment{}, core.NewValidationError(nil, core.FieldError{
			Field: "as_of", Error: "as-of date is required",
		})
	}
	tpl, err := svc.repo.GetActiveTemplate(ctx, templateID)
	if errors.Is(err, TemplateNotFoundErr) {
		tpl, err = svc.repo.GetLatestTemplate(ctx, templateID)
	}
	if err != nil {
		return NetAdjustment{}, err
	}
	if _, err = svc.repo.GetStudent(ctx, studentID); err != nil {
		return NetAdjustment{}, err
	}
	excs, err := svc.repo.QueryExceptions(ctx, templateID, studentID)
	if err != nil {
		return NetAdjustment{}, err
	}
	return resolve(tpl, excs, asOf), nil
}

// Assess computes the student's assessed amount for the template in a term
// and creates or refreshes the obligation. Assessment binds to the template
// version in effect at original assessment time: re-assessing an obligation
// created before the template was superseded or deactivated reproduces the
// historical amount. It never touches the ledger.
func (svc *Service) Assess(ctx context.Context, templateID, studentID, termID, academicYearID string, asOf time.Time) (Obligation, error) {
	if err := requireIDs(termID, academicYearID); err != nil {
		return Obligation{}, err
	}
	if asOf.IsZero() {
		return Obligation{}, core.NewValidationError(nil, core.FieldError{
			Field: "as_of", Error: "as-of date is required",
		})
	}

	student, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Obligation{}, err
	}

	prior, priorErr := svc.repo.GetObligationByKey(ctx, studentID, templateID, termID)
	if priorErr != nil && !errors.Is(priorErr, ObligationNotFoundErr) {
		return Obligation{}, priorErr
	}

	var tpl FeeTemplate
	if priorErr == nil {
		// existing obligation: stay pinned to the version assessed against
		tpl, err = svc.repo.GetTemplate(ctx, templateID, prior.TemplateVersion)
		if err != nil {
			return Obligation{}, err
		}
	} else {
		tpl, err = svc.repo.GetActiveTemplate(ctx, templateID)
		if errors.Is(err, TemplateNotFoundErr) {
			exists, exErr := svc.repo.TemplateExists(ctx, templateID)
			if exErr != nil {
				return Obligation{}, exErr
			}
			if exists {
				// inactive with no prior obligation: nothing to assess against
				return Obligation{}, InvalidTemplateErr
			}
			return Obligation{}, TemplateNotFoundErr
		}
		if err != nil {
			return Obligation{}, err
		}
		if !tpl.AppliesTo(student) {
			return Obligation{}, core.NewValidationError(nil, core.FieldError{
				Field: "student_id", Error: "template does not cover this student's cohort",
			})
		}
	}

	excs, err := svc.repo.QueryExceptions(ctx, templateID, studentID)
	if err != nil {
		return Obligation{}, err
	}
	adj := resolve(tpl, excs, asOf)
	assessed := tpl.BaseAmount.Sub(adj.Amount)
	if assessed.IsNegative() {
		assessed = decimal.Zero
	}

	now := time.Now().UTC()
	ob := Obligation{
		ID:              uuid.NewString(),
		StudentID:       studentID,
		TemplateID:      templateID,
		TemplateVersion: tpl.Version,
		TermID:          termID,
		AcademicYearID:  academicYearID,
		ClassID:         student.ClassID,
		ClassName:       student.ClassName,
		GradeID:         student.GradeID,
		FeeTypeID:       tpl.FeeTypeID,
		AssessedAmount:  assessed,
		DueDate:         tpl.DueDate,
		AssessedAt:      asOf,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if priorErr == nil {
		ob.ID = prior.ID
		ob.CreatedAt = prior.CreatedAt
	}
	return svc.repo.UpsertObligation(ctx, ob)
}

// AssessClass assesses every active student in a class that the template
// covers, creating or refreshing their obligations for the term.
func (svc *Service) AssessClass(ctx context.Context, templateID, classID, termID, academicYearID string, asOf time.Time) ([]Obligation, error) {
	if err := requireIDs(termID, academicYearID); err != nil {
		return nil, err
	}
	students, err := svc.repo.QueryStudentsByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	tpl, err := svc.repo.GetActiveTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	obs := make([]Obligation, 0, len(students))
	for _, student := range students {
		if !student.IsActive || !tpl.AppliesTo(student) {
			continue
		}
		ob, err := svc.Assess(ctx, templateID, student.ID, termID, academicYearID, asOf)
		if err != nil {
			return nil, err
		}
		obs = append(obs, ob)
	}
	svc.log.Info("class assessed", map[string]interface{}{
		"template": templateID, "class": classID, "obligations": len(obs),
	})
	return obs, nil
}

// ----- ledger -----

// Post appends a payment transaction against an obligation. The append is
// the commit point: once the repository confirms it, the payment stands. A
// lock-acquisition timeout commits nothing and is safe to retry.
func (svc *Service) Post(ctx context.Context, pp PostPayment) (FeeTransaction, error) {
	if err := pp.Validate(); err != nil {
		return FeeTransaction{}, err
	}
	if !pp.Amount.IsPositive() {
		return FeeTransaction{}, InvalidAmountErr
	}

	lockCtx, cancel := context.WithTimeout(ctx, svc.lockTimeout)
	defer cancel()
	release, err := svc.locks.acquire(lockCtx, pp.ObligationID)
	if err != nil {
		return FeeTransaction{}, err
	}
	defer release()

	ob, err := svc.repo.GetObligation(ctx, pp.ObligationID)
	if err != nil {
		return FeeTransaction{}, err
	}
	txns, err := svc.repo.QueryTransactionsByObligation(ctx, pp.ObligationID)
	if err != nil {
		return FeeTransaction{}, err
	}

	balance := outstandingBalance(ob.AssessedAmount, txns)
	newBalance := balance.Sub(pp.Amount)
	if svc.strict && newBalance.IsNegative() {
		return FeeTransaction{}, OverpaymentErr
	}

	txn := FeeTransaction{
		ID:               uuid.NewString(),
		ObligationID:     ob.ID,
		StudentID:        ob.StudentID,
		TemplateID:       ob.TemplateID,
		TermID:           ob.TermID,
		AcademicYearID:   ob.AcademicYearID,
		Amount:           pp.Amount,
		Method:           pp.Method,
		PaymentDate:      pp.Date,
		ReceiptNumber:    receiptNumber(),
		Status:           TxnSuccess,
		BalanceAfter:     newBalance,
		IsPartialPayment: newBalance.IsPositive(),
		Notes:            null.NewString(pp.Notes, pp.Notes != ""),
		CreatedAt:        time.Now().UTC(),
	}
	txn, err = svc.repo.CreateTransaction(ctx, txn)
	if err != nil {
		return FeeTransaction{}, err
	}
	svc.log.Info("payment posted", map[string]interface{}{
		"receipt": txn.ReceiptNumber, "obligation": ob.ID, "amount": pp.Amount.String(),
	})
	return txn, nil
}

// Reverse backs out a successful transaction. The original is never deleted:
// its status flips to reversed (removing its economic effect from the
// balance fold) and a negated audit entry is appended recording the event.
// The pair nets to zero by construction, so a reversal can never
// double-count.
func (svc *Service) Reverse(ctx context.Context, transactionID string) (FeeTransaction, error) {
	orig, err := svc.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return FeeTransaction{}, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, svc.lockTimeout)
	defer cancel()
	release, err := svc.locks.acquire(lockCtx, orig.ObligationID)
	if err != nil {
		return FeeTransaction{}, err
	}
	defer release()

	// re-read under the lock: a concurrent reversal may have flipped the
	// status since the first fetch
	orig, err = svc.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return FeeTransaction{}, err
	}
	if orig.Status != TxnSuccess {
		return FeeTransaction{}, core.NewValidationError(nil, core.FieldError{
			Field: "transaction_id", Error: "only successful transactions can be reversed",
		})
	}

	ob, err := svc.repo.GetObligation(ctx, orig.ObligationID)
	if err != nil {
		return FeeTransaction{}, err
	}
	txns, err := svc.repo.QueryTransactionsByObligation(ctx, orig.ObligationID)
	if err != nil {
		return FeeTransaction{}, err
	}

	if err = svc.repo.MarkTransactionReversed(ctx, orig.ID); err != nil {
		return FeeTransaction{}, err
	}
	for i := range txns {
		if txns[i].ID == orig.ID {
			txns[i].Status = TxnReversed
		}
	}
	restored := outstandingBalance(ob.AssessedAmount, txns)

	entry := FeeTransaction{
		ID:             uuid.NewString(),
		ObligationID:   ob.ID,
		StudentID:      ob.StudentID,
		TemplateID:     ob.TemplateID,
		TermID:         ob.TermID,
		AcademicYearID: ob.AcademicYearID,
		Amount:         orig.Amount.Neg(),
		Method:         orig.Method,
		PaymentDate:    time.Now().UTC(),
		ReceiptNumber:  receiptNumber(),
		Status:         TxnReversed,
		BalanceAfter:   restored,
		Notes:          null.StringFrom("reversal of receipt " + orig.ReceiptNumber),
		CreatedAt:      time.Now().UTC(),
	}
	entry, err = svc.repo.CreateTransaction(ctx, entry)
	if err != nil {
		return FeeTransaction{}, err
	}
	svc.log.Info("payment reversed", map[string]interface{}{
		"receipt": orig.ReceiptNumber, "obligation": ob.ID,
	})
	return entry, nil
}

// Balance returns the obligation's outstanding balance: assessed amount
// minus all successful payments. Negative means credit (overpayment under
// the lenient policy).
func (svc *Service) Balance(ctx context.Context, obligationID string) (decimal.Decimal, error) {
	ob, err := svc.repo.GetObligation(ctx, obligationID)
	if err != nil {
		return decimal.Zero, err
	}
	txns, err := svc.repo.QueryTransactionsByObligation(ctx, obligationID)
	if err != nil {
		return decimal.Zero, err
	}
	return outstandingBalance(ob.AssessedAmount, txns), nil
}

// Transactions returns the obligation's full ledger in posting order,
// reversed and failed entries included.
func (svc *Service) Transactions(ctx context.Context, obligationID string) ([]FeeTransaction, error) {
	if _, err := svc.repo.GetObligation(ctx, obligationID); err != nil {
		return nil, err
	}
	return svc.repo.QueryTransactionsByObligation(ctx, obligationID)
}

// StatusOf derives the obligation's payment status as of the given date.
func (svc *Service) StatusOf(ctx context.Context, obligationID string, today time.Time) (FeeStatus, error) {
	ob, err := svc.repo.GetObligation(ctx, obligationID)
	if err != nil {
		return "", err
	}
	txns, err := svc.repo.QueryTransactionsByObligation(ctx, obligationID)
	if err != nil {
		return "", err
	}
	return Status(ob.AssessedAmount, outstandingBalance(ob.AssessedAmount, txns), ob.DueDate, today), nil
}

func receiptNumber() string {
	return "RCT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// requireIDs rejects empty term/year identifiers before any repository call,
// so a malformed assessment can never persist an obligation with empty keys.
func requireIDs(termID, academicYearID string) error {
	var flds []core.FieldError
	if core.CleanString(termID) == "" {
		flds = append(flds, core.FieldError{Field: "term_id", Error: "term id is required"})
	}
	if core.CleanString(academicYearID) == "" {
		flds = append(flds, core.FieldError{Field: "academic_year_id", Error: "academic year id is required"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}
