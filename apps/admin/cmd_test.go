package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
	testutil "github.com/Owinogoddie/full-stack-school-app-sub002/tests"
)

var feeRepo fee.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	svc, repo := testutil.NewFeeService(t)
	feeRepo = repo

	out := new(bytes.Buffer)
	return &commandLine{
		feeSvc: svc,
		out:    out,
	}, out
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	wantOut string
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var called bool
	migrateFunc = func(db *sql.DB) error {
		called = true
		return nil
	}

	if err := cli.run([]string{"admin", "migrate"}); err != nil {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
	if !called {
		t.Error("migrate was not invoked")
	}
}

func Test_commandLine_assess(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateStudent(t, feeRepo, "stu-1", "Asha", "c-1a", "g-1", "day")
	testutil.CreateStudent(t, feeRepo, "stu-2", "Ben", "c-1a", "g-1", "day")
	tpl := testutil.CreateTemplate(t, cli.feeSvc, nil, []string{"c-1a"}, "y-2024", "t-1", "tuition",
		decimal.NewFromInt(5000), testutil.Date(2024, time.May, 1))

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"assess"}, wantErr: errHelp},
		{name: "missing term", args: []string{"assess", "-template", tpl.ID, "-student", "stu-1"}, wantErr: errHelp},
		{name: "student and class are exclusive", args: []string{"assess", "-template", tpl.ID, "-term", "t-1", "-year", "y-2024", "-student", "stu-1", "-class", "c-1a"}, wantErr: errHelp},
		{name: "template not found", args: []string{"assess", "-template", "lol", "-term", "t-1", "-year", "y-2024", "-student", "stu-1"}, wantErr: fee.TemplateNotFoundErr},
		{name: "student not found", args: []string{"assess", "-template", tpl.ID, "-term", "t-1", "-year", "y-2024", "-student", "lol"}, wantErr: fee.StudentNotFoundErr},
		{name: "assess student", args: []string{"assess", "-template", tpl.ID, "-term", "t-1", "-year", "y-2024", "-student", "stu-1", "-date", "2024-02-01"}, wantOut: "student=stu-1 amount=5000"},
		{name: "assess class", args: []string{"assess", "-template", tpl.ID, "-term", "t-1", "-year", "y-2024", "-class", "c-1a", "-date", "2024-02-01"}, wantOut: "student=stu-2"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}
			if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("cli.run() output = %q, want it to contain %q", out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_payments(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateStudent(t, feeRepo, "stu-1", "Asha", "c-1a", "g-1", "day")
	tpl := testutil.CreateTemplate(t, cli.feeSvc, nil, []string{"c-1a"}, "y-2024", "t-1", "tuition",
		decimal.NewFromInt(5000), testutil.Date(2024, time.May, 1))
	if err := cli.run([]string{"admin", "assess", "-template", tpl.ID, "-term", "t-1", "-year", "y-2024", "-student", "stu-1", "-date", "2024-02-01"}); err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	ob, err := feeRepo.GetObligationByKey(context.Background(), "stu-1", tpl.ID, "t-1")
	if err != nil {
		t.Fatalf("GetObligationByKey() failed: %v", err)
	}
	obID := ob.ID

	tests := []cliTest{
		{name: "no args", args: []string{"post"}, wantErr: errHelp},
		{name: "obligation but no amount", args: []string{"post", "-obligation", obID}, wantErr: errHelp},
		{name: "obligation not found", args: []string{"post", "-obligation", "lol", "-amount", "1000"}, wantErr: fee.ObligationNotFoundErr},
		{name: "non-positive amount", args: []string{"post", "-obligation", obID, "-amount", "0"}, wantErr: fee.InvalidAmountErr},
		{name: "post partial", args: []string{"post", "-obligation", obID, "-amount", "2000", "-date", "2024-03-01"}, wantOut: "balance=3000"},
		{name: "post remainder", args: []string{"post", "-obligation", obID, "-amount", "3000", "-method", "mobile-money", "-date", "2024-03-15"}, wantOut: "balance=0"},
		{name: "reverse: no args", args: []string{"reverse"}, wantErr: errHelp},
		{name: "reverse: not found", args: []string{"reverse", "-transaction", "lol"}, wantErr: fee.TransactionNotFoundErr},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}
			if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("cli.run() output = %q, want it to contain %q", out.String(), tt.wantOut)
			}
		})
	}

	// reverse the last payment and confirm the balance is restored
	txns, err := cli.feeSvc.Transactions(context.Background(), obID)
	if err != nil {
		t.Fatalf("Transactions() failed: %v", err)
	}
	out.Reset()
	if err := cli.run([]string{"admin", "reverse", "-transaction", txns[len(txns)-1].ID}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	if !strings.Contains(out.String(), "balance=3000") {
		t.Errorf("cli.run() output = %q, want restored balance", out.String())
	}
}

func Test_commandLine_report(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateStudent(t, feeRepo, "stu-1", "Asha", "c-1a", "g-1", "day")
	tpl := testutil.CreateTemplate(t, cli.feeSvc, nil, []string{"c-1a"}, "y-2024", "t-1", "tuition",
		decimal.NewFromInt(5000), testutil.Date(2024, time.May, 1))
	if err := cli.run([]string{"admin", "assess", "-template", tpl.ID, "-term", "t-1", "-year", "y-2024", "-class", "c-1a", "-date", "2024-02-01"}); err != nil {
		t.Fatalf("assess failed: %v", err)
	}

	out.Reset()
	if err := cli.run([]string{"admin", "report", "-year", "y-2024", "-term", "t-1", "-classes", "c-1a"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	var summary fee.CollectionSummary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("report output is not valid JSON: %v", err)
	}
	if len(summary.CollectionByClass) != 1 {
		t.Errorf("len(CollectionByClass) = %d, want 1", len(summary.CollectionByClass))
	}

	// a filter matching nothing still yields a valid, all-zero summary
	out.Reset()
	if err := cli.run([]string{"admin", "report", "-year", "lol"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("report output is not valid JSON: %v", err)
	}
	if !summary.TotalCollected.IsZero() {
		t.Errorf("TotalCollected = %s, want 0", summary.TotalCollected)
	}
}
