package main

import (
	"context"
	"flag"
	"fmt"
	"time"
)

func (cli *commandLine) assess(args []string) error {
	assessCmd := flag.NewFlagSet("assess", flag.ExitOnError)
	template := assessCmd.String("template", "", "The fee template id.")
	student := assessCmd.String("student", "", "The student id. Mutually exclusive with -class.")
	class := assessCmd.String("class", "", "The class id; assesses every covered student in it.")
	term := assessCmd.String("term", "", "The term id.")
	year := assessCmd.String("year", "", "The academic year id.")
	date := assessCmd.String("date", "", "The assessment date (YYYY-MM-DD). Defaults to today.")

	if err := assessCmd.Parse(args); err != nil {
		return err
	}
	if *template == "" || *term == "" || *year == "" || (*student == "") == (*class == "") {
		assessCmd.Usage()
		return errHelp
	}
	asOf, err := parseDate(*date, time.Now().UTC())
	if err != nil {
		return err
	}

	ctx := context.Background()
	if *class != "" {
		obs, err := cli.feeSvc.AssessClass(ctx, *template, *class, *term, *year, asOf)
		if err != nil {
			return err
		}
		for _, ob := range obs {
			fmt.Fprintf(cli.out, "assessed %s: student=%s amount=%s due=%s\n",
				ob.ID, ob.StudentID, ob.AssessedAmount, ob.DueDate.Format("2006-01-02"))
		}
		return nil
	}

	ob, err := cli.feeSvc.Assess(ctx, *template, *student, *term, *year, asOf)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "assessed %s: student=%s amount=%s due=%s\n",
		ob.ID, ob.StudentID, ob.AssessedAmount, ob.DueDate.Format("2006-01-02"))
	return nil
}
