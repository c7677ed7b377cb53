package main

import (
	"log"
	"os"

	"github.com/Owinogoddie/full-stack-school-app-sub002/core"
	"github.com/Owinogoddie/full-stack-school-app-sub002/core/fee"
	logsvc "github.com/Owinogoddie/full-stack-school-app-sub002/services/logger"
	"github.com/Owinogoddie/full-stack-school-app-sub002/storage/database"
	sqlxrepos "github.com/Owinogoddie/full-stack-school-app-sub002/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.LoadConfig()

	var appLog core.Logger
	if conf.RollbarToken != "" {
		appLog = logsvc.NewRollbarLogger(logger, conf)
	} else {
		appLog = logsvc.NewConsoleLogger(logger)
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		db:     db,
		feeSvc: fee.NewService(sqlxrepos.NewFeeRepository(db), appLog, conf),
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
