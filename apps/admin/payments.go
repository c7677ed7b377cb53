package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
)

func (cli *commandLine) post(args []string) error {
	postCmd := flag.NewFlagSet("post", flag.ExitOnError)
	obligation := postCmd.String("obligation", "", "The obligation id.")
	amount := postCmd.String("amount", "", "The payment amount.")
	method := postCmd.String("method", string(fee.MethodCash), "Payment method: cash, bank-transfer, mobile-money or check.")
	date := postCmd.String("date", "", "The payment date (YYYY-MM-DD). Defaults to today.")
	notes := postCmd.String("notes", "", "Optional notes.")

	if err := postCmd.Parse(args); err != nil {
		return err
	}
	if *obligation == "" || *amount == "" {
		postCmd.Usage()
		return errHelp
	}
	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		return err
	}
	paidOn, err := parseDate(*date, time.Now().UTC())
	if err != nil {
		return err
	}

	txn, err := cli.feeSvc.Post(context.Background(), fee.PostPayment{
		ObligationID: *obligation,
		Amount:       amt,
		Method:       fee.PaymentMethod(*method),
		Date:         paidOn,
		Notes:        *notes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "posted %s: amount=%s balance=%s\n", txn.ReceiptNumber, txn.Amount, txn.BalanceAfter)
	return nil
}

func (cli *commandLine) reverse(args []string) error {
	reverseCmd := flag.NewFlagSet("reverse", flag.ExitOnError)
	transaction := reverseCmd.String("transaction", "", "The transaction id to reverse.")

	if err := reverseCmd.Parse(args); err != nil {
		return err
	}
	if *transaction == "" {
		reverseCmd.Usage()
		return errHelp
	}

	entry, err := cli.feeSvc.Reverse(context.Background(), *transaction)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "reversed: %s balance=%s\n", entry.Notes.String, entry.BalanceAfter)
	return nil
}
