package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	feeSvc *fee.Service
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate - apply pending database migrations")
	fmt.Fprintln(cli.out, "  assess -template ID -term ID -year ID [-student ID | -class ID] [-date YYYY-MM-DD] - assess fee obligations")
	fmt.Fprintln(cli.out, "  post -obligation ID -amount AMOUNT -method METHOD [-date YYYY-MM-DD] [-notes TEXT] - post a payment")
	fmt.Fprintln(cli.out, "  reverse -transaction ID - reverse a posted payment")
	fmt.Fprintln(cli.out, "  report [-year ID] [-term ID] [-classes IDS] [-grades IDS] [-from YYYY-MM-DD] [-to YYYY-MM-DD] - print a collection summary")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "assess":
		return cli.assess(args[2:])
	case "post":
		return cli.post(args[2:])
	case "reverse":
		return cli.reverse(args[2:])
	case "report":
		return cli.report(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", s)
}
