package main

import (
	"github.com/Owinogoddie/full-stack-school-app-sub002/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate() error {
	return migrateFunc(cli.db)
}
