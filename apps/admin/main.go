package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/user"
	emailsvc "github.com/trezcool/hifdh/services/email"
	logsvc "github.com/trezcool/hifdh/services/logger"
	"github.com/trezcool/hifdh/storage"
	"github.com/trezcool/hifdh/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger, err := logsvc.NewLogger(conf, "ADMIN")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	if conf.Storage.Backend == core.StoragePostgres {
		errAndDie(logger, database.CreateIfNotExist(ctx, conf))
	}
	repos, err := storage.Open(ctx, conf, logger)
	errAndDie(logger, err)

	// start CLI
	cli := commandLine{
		logger: logger,
		usrSvc: user.NewService(repos.User, emailsvc.NewService(conf, logger), conf),
	}
	if repos.SQL != nil {
		cli.db = repos.SQL.DB
	}
	err = cli.run(os.Args)
	_ = repos.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
