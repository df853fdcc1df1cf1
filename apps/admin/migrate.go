package main

import (
	"github.com/trezcool/hifdh/storage/database"
)

var gooseRunFunc database.GooseFunc = database.RunGoose // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLStore
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, arguments...)
}
