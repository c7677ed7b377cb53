package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core"
	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
	logsvc "github.com/Owinogoddie/full-stack-school-app-sub002/services/logger"
	"github.com/Owinogoddie/full-stack-school-app-sub002/storage/database/dummy"
)

// NewFeeService wires a fee.Service over the in-memory repository.
func NewFeeService(t *testing.T, conf ...*core.Config) (*fee.Service, fee.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("NewFeeService() failed: %v", err)
	}
	repo := dummydb.NewFeeRepository(db)

	c := &core.Config{}
	if len(conf) > 0 {
		c = conf[0]
	}
	logger := logsvc.NewConsoleLogger(log.New(io.Discard, "", 0))
	return fee.NewService(repo, logger, c), repo
}

type studentStore interface {
	CreateStudent(ctx context.Context, s fee.Student) (fee.Student, error)
}

func CreateStudent(t *testing.T, repo fee.Repository, id, name, classID, gradeID, category string) fee.Student {
	t.Helper()

	store, ok := repo.(studentStore)
	if !ok {
		t.Fatalf("CreateStudent() failed: repository cannot create students")
	}
	s, err := store.CreateStudent(context.Background(), fee.Student{
		ID:        id,
		Name:      name,
		ClassID:   classID,
		ClassName: "Class " + classID,
		GradeID:   gradeID,
		Category:  category,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreateTemplate(
	t *testing.T,
	svc *fee.Service,
	grades, classes []string,
	yearID, termID, feeTypeID string,
	baseAmount decimal.Decimal,
	dueDate time.Time,
) fee.FeeTemplate {
	t.Helper()

	tpl, err := svc.CreateTemplate(context.Background(), fee.NewTemplate{
		Grades:         grades,
		Classes:        classes,
		AcademicYearID: yearID,
		TermID:         termID,
		FeeTypeID:      feeTypeID,
		BaseAmount:     baseAmount,
		DueDate:        dueDate,
	})
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tpl
}

// Date builds a UTC date fixture.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
