package main

import (
	"context"
	"encoding/json"
	"flag"
	"strings"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
)

func (cli *commandLine) report(args []string) error {
	reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
	year := reportCmd.String("year", "", "Restrict to an academic year id.")
	term := reportCmd.String("term", "", "Restrict to a term id.")
	classes := reportCmd.String("classes", "", "Comma-separated class ids.")
	grades := reportCmd.String("grades", "", "Comma-separated grade ids.")
	from := reportCmd.String("from", "", "Start of the payment date range (YYYY-MM-DD).")
	to := reportCmd.String("to", "", "End of the payment date range (YYYY-MM-DD).")

	if err := reportCmd.Parse(args); err != nil {
		return err
	}

	filter := fee.SummaryFilter{
		AcademicYearID: *year,
		TermID:         *term,
		ClassIDs:       splitIDs(*classes),
		GradeIDs:       splitIDs(*grades),
	}
	var err error
	if filter.From, err = parseDate(*from, filter.From); err != nil {
		return err
	}
	if filter.To, err = parseDate(*to, filter.To); err != nil {
		return err
	}

	summary, err := cli.feeSvc.Summarize(context.Background(), filter)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
