package dummydb

import (
	"context"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
)

// feeRepository is an in-memory fee.Repository for tests and local dev.
type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

// ----- templates -----

func (repo feeRepository) CreateTemplate(_ context.Context, tpl fee.FeeTemplate) (fee.FeeTemplate, error) {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	versions, ok := t.templates[tpl.ID]
	if !ok {
		versions = make(map[int]*fee.FeeTemplate)
		t.templates[tpl.ID] = versions
	}
	versions[tpl.Version] = &tpl
	return tpl, nil
}

func (repo feeRepository) GetTemplate(_ context.Context, id string, version int) (fee.FeeTemplate, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	if versions, ok := t.templates[id]; ok {
		if tpl, ok := versions[version]; ok {
			return *tpl, nil
		}
	}
	return fee.FeeTemplate{}, fee.TemplateNotFoundErr
}

func (repo feeRepository) GetActiveTemplate(_ context.Context, id string) (fee.FeeTemplate, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	for _, tpl := range t.templates[id] {
		if tpl.IsActive {
			return *tpl, nil
		}
	}
	return fee.FeeTemplate{}, fee.TemplateNotFoundErr
}

func (repo feeRepository) GetLatestTemplate(_ context.Context, id string) (fee.FeeTemplate, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	var latest *fee.FeeTemplate
	for _, tpl := range t.templates[id] {
		if latest == nil || tpl.Version > latest.Version {
			latest = tpl
		}
	}
	if latest == nil {
		return fee.FeeTemplate{}, fee.TemplateNotFoundErr
	}
	return *latest, nil
}

func (repo feeRepository) TemplateExists(_ context.Context, id string) (bool, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	return len(t.templates[id]) > 0, nil
}

func (repo feeRepository) QueryActiveTemplates(_ context.Context, academicYearID, termID string) ([]fee.FeeTemplate, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	var res []fee.FeeTemplate
	for _, versions := range t.templates {
		for _, tpl := range versions {
			if !tpl.IsActive {
				continue
			}
			if academicYearID != "" && tpl.AcademicYearID != academicYearID {
				continue
			}
			if termID != "" && tpl.TermID != termID {
				continue
			}
			res = append(res, *tpl)
		}
	}
	return res, nil
}

func (repo feeRepository) DeactivateTemplate(_ context.Context, id string, version int) error {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	if versions, ok := t.templates[id]; ok {
		if tpl, ok := versions[version]; ok {
			tpl.IsActive = false
			return nil
		}
	}
	return fee.TemplateNotFoundErr
}

// ----- exceptions -----

func (repo feeRepository) CreateException(_ context.Context, exc fee.FeeException) (fee.FeeException, error) {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	t.exceptions[exc.ID] = &exc
	return exc, nil
}

func (repo feeRepository) GetException(_ context.Context, id string) (fee.FeeException, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	if exc, ok := t.exceptions[id]; ok {
		return *exc, nil
	}
	return fee.FeeException{}, fee.ExceptionNotFoundErr
}

func (repo feeRepository) QueryExceptions(_ context.Context, templateID, studentID string) ([]fee.FeeException, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	var res []fee.FeeException
	for _, exc := range t.exceptions {
		if exc.TemplateID == templateID && exc.StudentID == studentID {
			res = append(res, *exc)
		}
	}
	return res, nil
}

func (repo feeRepository) UpdateExceptionStatus(_ context.Context, id string, status fee.ExceptionStatus) error {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	if exc, ok := t.exceptions[id]; ok {
		exc.Status = status
		return nil
	}
	return fee.ExceptionNotFoundErr
}

// ----- students -----

func (repo feeRepository) CreateStudent(_ context.Context, s fee.Student) (fee.Student, error) {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	t.students[s.ID] = &s
	return s, nil
}

func (repo feeRepository) GetStudent(_ context.Context, id string) (fee.Student, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	if s, ok := t.students[id]; ok {
		return *s, nil
	}
	return fee.Student{}, fee.StudentNotFoundErr
}

func (repo feeRepository) QueryStudentsByClass(_ context.Context, classID string) ([]fee.Student, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	var res []fee.Student
	for _, s := range t.students {
		if s.ClassID == classID {
			res = append(res, *s)
		}
	}
	return res, nil
}

// ----- obligations -----

func (repo feeRepository) UpsertObligation(_ context.Context, ob fee.Obligation) (fee.Obligation, error) {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	t.obligations[ob.ID] = &ob
	return ob, nil
}

func (repo feeRepository) GetObligation(_ context.Context, id string) (fee.Obligation, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	if ob, ok := t.obligations[id]; ok {
		return *ob, nil
	}
	return fee.Obligation{}, fee.ObligationNotFoundErr
}

func (repo feeRepository) GetObligationByKey(_ context.Context, studentID, templateID, termID string) (fee.Obligation, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	for _, ob := range t.obligations {
		if ob.StudentID == studentID && ob.TemplateID == templateID && ob.TermID == termID {
			return *ob, nil
		}
	}
	return fee.Obligation{}, fee.ObligationNotFoundErr
}

func (repo feeRepository) QueryObligations(_ context.Context, filter fee.SummaryFilter) ([]fee.Obligation, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	var res []fee.Obligation
	for _, ob := range t.obligations {
		if filter.MatchesObligation(*ob) {
			res = append(res, *ob)
		}
	}
	return res, nil
}

// ----- transactions -----

func (repo feeRepository) CreateTransaction(_ context.Context, txn fee.FeeTransaction) (fee.FeeTransaction, error) {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	t.transactions[txn.ID] = &txn
	t.txnOrder = append(t.txnOrder, txn.ID)
	return txn, nil
}

func (repo feeRepository) GetTransaction(_ context.Context, id string) (fee.FeeTransaction, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	if txn, ok := t.transactions[id]; ok {
		return *txn, nil
	}
	return fee.FeeTransaction{}, fee.TransactionNotFoundErr
}

func (repo feeRepository) QueryTransactionsByObligation(_ context.Context, obligationID string) ([]fee.FeeTransaction, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	var res []fee.FeeTransaction
	for _, id := range t.txnOrder {
		if txn := t.transactions[id]; txn.ObligationID == obligationID {
			res = append(res, *txn)
		}
	}
	return res, nil
}

func (repo feeRepository) QueryTransactions(_ context.Context, filter fee.SummaryFilter) ([]fee.FeeTransaction, error) {
	t := repo.db.fees
	t.RLock()
	defer t.RUnlock()

	var res []fee.FeeTransaction
	for _, id := range t.txnOrder {
		txn := t.transactions[id]
		ob, ok := t.obligations[txn.ObligationID]
		if !ok || !filter.MatchesObligation(*ob) {
			continue
		}
		res = append(res, *txn)
	}
	return res, nil
}

func (repo feeRepository) MarkTransactionReversed(_ context.Context, id string) error {
	t := repo.db.fees
	t.Lock()
	defer t.Unlock()

	if txn, ok := t.transactions[id]; ok {
		txn.Status = fee.TxnReversed
		return nil
	}
	return fee.TransactionNotFoundErr
}
