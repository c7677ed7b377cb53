package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
)

// feeRepository is the postgres fee.Repository.
type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *sql.DB) *feeRepository {
	return &feeRepository{db: sqlx.NewDb(db, "postgres")}
}

type (
	templateRow struct {
		ID             string          `db:"id"`
		Version        int             `db:"version"`
		Grades         pq.StringArray  `db:"grades"`
		Classes        pq.StringArray  `db:"classes"`
		AcademicYearID string          `db:"academic_year_id"`
		TermID         string          `db:"term_id"`
		FeeTypeID      string          `db:"fee_type_id"`
		Categories     pq.StringArray  `db:"categories"`
		BaseAmount     decimal.Decimal `db:"base_amount"`
		DueDate        time.Time       `db:"due_date"`
		IsActive       bool            `db:"is_active"`
		CreatedAt      time.Time       `db:"created_at"`
		UpdatedAt      time.Time       `db:"updated_at"`
	}

	exceptionRow struct {
		ID           string          `db:"id"`
		TemplateID   string          `db:"template_id"`
		StudentID    string          `db:"student_id"`
		Kind         string          `db:"kind"`
		Mode         string          `db:"mode"`
		Value        decimal.Decimal `db:"value"`
		Reason       string          `db:"reason"`
		StartDate    time.Time       `db:"start_date"`
		EndDate      null.Time       `db:"end_date"`
		ApprovedBy   string          `db:"approved_by"`
		DocumentRefs pq.StringArray  `db:"document_refs"`
		Status       string          `db:"status"`
		CreatedAt    time.Time       `db:"created_at"`
		UpdatedAt    time.Time       `db:"updated_at"`
	}

	studentRow struct {
		ID        string `db:"id"`
		Name      string `db:"name"`
		ClassID   string `db:"class_id"`
		ClassName string `db:"class_name"`
		GradeID   string `db:"grade_id"`
		Category  string `db:"category"`
		IsActive  bool   `db:"is_active"`
	}

	obligationRow struct {
		ID              string          `db:"id"`
		StudentID       string          `db:"student_id"`
		TemplateID      string          `db:"template_id"`
		TemplateVersion int             `db:"template_version"`
		TermID          string          `db:"term_id"`
		AcademicYearID  string          `db:"academic_year_id"`
		ClassID         string          `db:"class_id"`
		ClassName       string          `db:"class_name"`
		GradeID         string          `db:"grade_id"`
		FeeTypeID       string          `db:"fee_type_id"`
		AssessedAmount  decimal.Decimal `db:"assessed_amount"`
		DueDate         time.Time       `db:"due_date"`
		AssessedAt      time.Time       `db:"assessed_at"`
		CreatedAt       time.Time       `db:"created_at"`
		UpdatedAt       time.Time       `db:"updated_at"`
	}

	transactionRow struct {
		ID               string          `db:"id"`
		ObligationID     string          `db:"obligation_id"`
		StudentID        string          `db:"student_id"`
		TemplateID       string          `db:"template_id"`
		TermID           string          `db:"term_id"`
		AcademicYearID   string          `db:"academic_year_id"`
		Amount           decimal.Decimal `db:"amount"`
		Method           string          `db:"method"`
		PaymentDate      time.Time       `db:"payment_date"`
		ReceiptNumber    string          `db:"receipt_number"`
		Status           string          `db:"status"`
		BalanceAfter     decimal.Decimal `db:"balance_after"`
		IsPartialPayment bool            `db:"is_partial_payment"`
		Notes            null.String     `db:"notes"`
		CreatedAt        time.Time       `db:"created_at"`
	}
)

func (r templateRow) toModel() fee.FeeTemplate {
	return fee.FeeTemplate{
		ID:             r.ID,
		Version:        r.Version,
		Grades:         r.Grades,
		Classes:        r.Classes,
		AcademicYearID: r.AcademicYearID,
		TermID:         r.TermID,
		FeeTypeID:      r.FeeTypeID,
		Categories:     r.Categories,
		BaseAmount:     r.BaseAmount,
		DueDate:        r.DueDate,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r exceptionRow) toModel() fee.FeeException {
	return fee.FeeException{
		ID:           r.ID,
		TemplateID:   r.TemplateID,
		StudentID:    r.StudentID,
		Kind:         fee.ExceptionKind(r.Kind),
		Mode:         fee.AdjustmentMode(r.Mode),
		Value:        r.Value,
		Reason:       r.Reason,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		ApprovedBy:   r.ApprovedBy,
		DocumentRefs: r.DocumentRefs,
		Status:       fee.ExceptionStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r studentRow) toModel() fee.Student {
	return fee.Student{
		ID:        r.ID,
		Name:      r.Name,
		ClassID:   r.ClassID,
		ClassName: r.ClassName,
		GradeID:   r.GradeID,
		Category:  r.Category,
		IsActive:  r.IsActive,
	}
}

func (r obligationRow) toModel() fee.Obligation {
	return fee.Obligation(r)
}

func (r transactionRow) toModel() fee.FeeTransaction {
	return fee.FeeTransaction{
		ID:               r.ID,
		ObligationID:     r.ObligationID,
		StudentID:        r.StudentID,
		TemplateID:       r.TemplateID,
		TermID:           r.TermID,
		AcademicYearID:   r.AcademicYearID,
		Amount:           r.Amount,
		Method:           fee.PaymentMethod(r.Method),
		PaymentDate:      r.PaymentDate,
		ReceiptNumber:    r.ReceiptNumber,
		Status:           fee.TransactionStatus(r.Status),
		BalanceAfter:     r.BalanceAfter,
		IsPartialPayment: r.IsPartialPayment,
		Notes:            r.Notes,
		CreatedAt:        r.CreatedAt,
	}
}

// ----- templates -----

func (repo feeRepository) CreateTemplate(ctx context.Context, tpl fee.FeeTemplate) (fee.FeeTemplate, error) {
	const q = `
		INSERT INTO fee_template (
			id, version, grades, classes, academic_year_id, term_id, fee_type_id,
			categories, base_amount, due_date, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := repo.db.ExecContext(ctx, q,
		tpl.ID, tpl.Version, pq.StringArray(tpl.Grades), pq.StringArray(tpl.Classes),
		tpl.AcademicYearID, tpl.TermID, tpl.FeeTypeID, pq.StringArray(tpl.Categories),
		tpl.BaseAmount, tpl.DueDate, tpl.IsActive, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fee.FeeTemplate{}, errors.Wrap(err, "inserting fee template")
	}
	return tpl, nil
}

func (repo feeRepository) GetTemplate(ctx context.Context, id string, version int) (fee.FeeTemplate, error) {
	var row templateRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM fee_template WHERE id = $1 AND version = $2`, id, version)
	if err == sql.ErrNoRows {
		return fee.FeeTemplate{}, fee.TemplateNotFoundErr
	}
	if err != nil {
		return fee.FeeTemplate{}, errors.Wrap(err, "getting fee template")
	}
	return row.toModel(), nil
}

func (repo feeRepository) GetActiveTemplate(ctx context.Context, id string) (fee.FeeTemplate, error) {
	var row templateRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM fee_template WHERE id = $1 AND is_active`, id)
	if err == sql.ErrNoRows {
		return fee.FeeTemplate{}, fee.TemplateNotFoundErr
	}
	if err != nil {
		return fee.FeeTemplate{}, errors.Wrap(err, "getting active fee template")
	}
	return row.toModel(), nil
}

func (repo feeRepository) GetLatestTemplate(ctx context.Context, id string) (fee.FeeTemplate, error) {
	var row templateRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM fee_template WHERE id = $1 ORDER BY version DESC LIMIT 1`, id)
	if err == sql.ErrNoRows {
		return fee.FeeTemplate{}, fee.TemplateNotFoundErr
	}
	if err != nil {
		return fee.FeeTemplate{}, errors.Wrap(err, "getting latest fee template")
	}
	return row.toModel(), nil
}

func (repo feeRepository) TemplateExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM fee_template WHERE id = $1)`, id)
	if err != nil {
		return false, errors.Wrap(err, "checking fee template")
	}
	return exists, nil
}

func (repo feeRepository) QueryActiveTemplates(ctx context.Context, academicYearID, termID string) ([]fee.FeeTemplate, error) {
	q := `SELECT * FROM fee_template WHERE is_active`
	var args []interface{}
	if academicYearID != "" {
		args = append(args, academicYearID)
		q += fmt.Sprintf(" AND academic_year_id = $%d", len(args))
	}
	if termID != "" {
		args = append(args, termID)
		q += fmt.Sprintf(" AND term_id = $%d", len(args))
	}

	var rows []templateRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying active fee templates")
	}
	res := make([]fee.FeeTemplate, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toModel())
	}
	return res, nil
}

func (repo feeRepository) DeactivateTemplate(ctx context.Context, id string, version int) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE fee_template SET is_active = false, updated_at = $3 WHERE id = $1 AND version = $2`,
		id, version, time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "deactivating fee template")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.TemplateNotFoundErr
	}
	return nil
}

// ----- exceptions -----

func (repo feeRepository) CreateException(ctx context.Context, exc fee.FeeException) (fee.FeeException, error) {
	const q = `
		INSERT INTO fee_exception (
			id, template_id, student_id, kind, mode, value, reason, start_date,
			end_date, approved_by, document_refs, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := repo.db.ExecContext(ctx, q,
		exc.ID, exc.TemplateID, exc.StudentID, string(exc.Kind), string(exc.Mode),
		exc.Value, exc.Reason, exc.StartDate, exc.EndDate, exc.ApprovedBy,
		pq.StringArray(exc.DocumentRefs), string(exc.Status), exc.CreatedAt, exc.UpdatedAt,
	)
	if err != nil {
		return fee.FeeException{}, errors.Wrap(err, "inserting fee exception")
	}
	return exc, nil
}

func (repo feeRepository) GetException(ctx context.Context, id string) (fee.FeeException, error) {
	var row exceptionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM fee_exception WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return fee.FeeException{}, fee.ExceptionNotFoundErr
	}
	if err != nil {
		return fee.FeeException{}, errors.Wrap(err, "getting fee exception")
	}
	return row.toModel(), nil
}

func (repo feeRepository) QueryExceptions(ctx context.Context, templateID, studentID string) ([]fee.FeeException, error) {
	var rows []exceptionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM fee_exception WHERE template_id = $1 AND student_id = $2 ORDER BY start_date, id`,
		templateID, studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee exceptions")
	}
	res := make([]fee.FeeException, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toModel())
	}
	return res, nil
}

func (repo feeRepository) UpdateExceptionStatus(ctx context.Context, id string, status fee.ExceptionStatus) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE fee_exception SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "updating fee exception status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.ExceptionNotFoundErr
	}
	return nil
}

// ----- students -----

func (repo feeRepository) GetStudent(ctx context.Context, id string) (fee.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return fee.Student{}, fee.StudentNotFoundErr
	}
	if err != nil {
		return fee.Student{}, errors.Wrap(err, "getting student")
	}
	return row.toModel(), nil
}

func (repo feeRepository) QueryStudentsByClass(ctx context.Context, classID string) ([]fee.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM student WHERE class_id = $1 ORDER BY name`, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	res := make([]fee.Student, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toModel())
	}
	return res, nil
}

// ----- obligations -----

func (repo feeRepository) UpsertObligation(ctx context.Context, ob fee.Obligation) (fee.Obligation, error) {
	const q = `
		INSERT INTO obligation (
			id, student_id, template_id, template_version, term_id, academic_year_id,
			class_id, class_name, grade_id, fee_type_id, assessed_amount, due_date,
			assessed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (student_id, template_id, term_id) DO UPDATE SET
			template_version = EXCLUDED.template_version,
			assessed_amount  = EXCLUDED.assessed_amount,
			due_date         = EXCLUDED.due_date,
			assessed_at      = EXCLUDED.assessed_at,
			updated_at       = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, q,
		ob.ID, ob.StudentID, ob.TemplateID, ob.TemplateVersion, ob.TermID, ob.AcademicYearID,
		ob.ClassID, ob.ClassName, ob.GradeID, ob.FeeTypeID, ob.AssessedAmount, ob.DueDate,
		ob.AssessedAt, ob.CreatedAt, ob.UpdatedAt,
	)
	if err != nil {
		return fee.Obligation{}, errors.Wrap(err, "upserting obligation")
	}
	return ob, nil
}

func (repo feeRepository) GetObligation(ctx context.Context, id string) (fee.Obligation, error) {
	var row obligationRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM obligation WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return fee.Obligation{}, fee.ObligationNotFoundErr
	}
	if err != nil {
		return fee.Obligation{}, errors.Wrap(err, "getting obligation")
	}
	return row.toModel(), nil
}

func (repo feeRepository) GetObligationByKey(ctx context.Context, studentID, templateID, termID string) (fee.Obligation, error) {
	var row obligationRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM obligation WHERE student_id = $1 AND template_id = $2 AND term_id = $3`,
		studentID, templateID, termID,
	)
	if err == sql.ErrNoRows {
		return fee.Obligation{}, fee.ObligationNotFoundErr
	}
	if err != nil {
		return fee.Obligation{}, errors.Wrap(err, "getting obligation by key")
	}
	return row.toModel(), nil
}

func obligationFilterClauses(filter fee.SummaryFilter, alias string) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		clauses = append(clauses, fmt.Sprintf("%s.academic_year_id = $%d", alias, len(args)))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		clauses = append(clauses, fmt.Sprintf("%s.term_id = $%d", alias, len(args)))
	}
	if len(filter.ClassIDs) > 0 {
		args = append(args, pq.StringArray(filter.ClassIDs))
		clauses = append(clauses, fmt.Sprintf("%s.class_id = ANY($%d)", alias, len(args)))
	}
	if len(filter.GradeIDs) > 0 {
		args = append(args, pq.StringArray(filter.GradeIDs))
		clauses = append(clauses, fmt.Sprintf("%s.grade_id = ANY($%d)", alias, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (repo feeRepository) QueryObligations(ctx context.Context, filter fee.SummaryFilter) ([]fee.Obligation, error) {
	where, args := obligationFilterClauses(filter, "obligation")
	var rows []obligationRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM obligation`+where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying obligations")
	}
	res := make([]fee.Obligation, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toModel())
	}
	return res, nil
}

// ----- transactions -----

func (repo feeRepository) CreateTransaction(ctx context.Context, txn fee.FeeTransaction) (fee.FeeTransaction, error) {
	const q = `
		INSERT INTO fee_transaction (
			id, obligation_id, student_id, template_id, term_id, academic_year_id,
			amount, method, payment_date, receipt_number, status, balance_after,
			is_partial_payment, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := repo.db.ExecContext(ctx, q,
		txn.ID, txn.ObligationID, txn.StudentID, txn.TemplateID, txn.TermID, txn.AcademicYearID,
		txn.Amount, string(txn.Method), txn.PaymentDate, txn.ReceiptNumber, string(txn.Status),
		txn.BalanceAfter, txn.IsPartialPayment, txn.Notes, txn.CreatedAt,
	)
	if err != nil {
		return fee.FeeTransaction{}, errors.Wrap(err, "inserting fee transaction")
	}
	return txn, nil
}

func (repo feeRepository) GetTransaction(ctx context.Context, id string) (fee.FeeTransaction, error) {
	var row transactionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM fee_transaction WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return fee.FeeTransaction{}, fee.TransactionNotFoundErr
	}
	if err != nil {
		return fee.FeeTransaction{}, errors.Wrap(err, "getting fee transaction")
	}
	return row.toModel(), nil
}

func (repo feeRepository) QueryTransactionsByObligation(ctx context.Context, obligationID string) ([]fee.FeeTransaction, error) {
	var rows []transactionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM fee_transaction WHERE obligation_id = $1 ORDER BY created_at, id`,
		obligationID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee transactions")
	}
	res := make([]fee.FeeTransaction, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toModel())
	}
	return res, nil
}

func (repo feeRepository) QueryTransactions(ctx context.Context, filter fee.SummaryFilter) ([]fee.FeeTransaction, error) {
	where, args := obligationFilterClauses(filter, "o")
	q := `
		SELECT t.* FROM fee_transaction t
		JOIN obligation o ON o.id = t.obligation_id` + where + `
		ORDER BY t.created_at, t.id`
	var rows []transactionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying fee transactions")
	}
	res := make([]fee.FeeTransaction, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toModel())
	}
	return res, nil
}

func (repo feeRepository) MarkTransactionReversed(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE fee_transaction SET status = $2 WHERE id = $1`,
		id, string(fee.TxnReversed),
	)
	if err != nil {
		return errors.Wrap(err, "marking fee transaction reversed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.TransactionNotFoundErr
	}
	return nil
}
