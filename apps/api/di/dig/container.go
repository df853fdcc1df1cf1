package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/hifdh/apps/api/echo"
	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
	emailsvc "github.com/trezcool/hifdh/services/email"
	logsvc "github.com/trezcool/hifdh/services/logger"
	"github.com/trezcool/hifdh/storage"
	"github.com/trezcool/hifdh/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     *user.Service
	ProgressSvc *progress.Service
}

func newLogger(conf *core.Config) (core.Logger, error) {
	logger, err := logsvc.NewLogger(conf, "API")
	if err != nil {
		return nil, err
	}
	logger.Enable(!conf.Debug)
	return logger, nil
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	logger, err := logsvc.NewLogger(conf, "DB")
	if err != nil {
		return nil, err
	}
	logger.Enable(!conf.Debug)
	return logger, nil
}

// newRepos opens the configured store. The postgres database is created and migrated when needed.
func newRepos(conf *core.Config, loggerParam DBLoggerParam) *storage.Repos {
	logger := loggerParam.Logger
	setUp := func() (*storage.Repos, error) {
		ctx := context.Background()
		if conf.Storage.Backend == core.StoragePostgres {
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return nil, err
			}
		}

		repos, err := storage.Open(ctx, conf, logger)
		if err != nil {
			return nil, err
		}

		if repos.SQL != nil {
			if err = database.Migrate(repos.SQL.DB); err != nil {
				return nil, err
			}
		}
		return repos, nil
	}

	repos, err := setUp()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	return repos
}

func userRepository(repos *storage.Repos) user.Repository         { return repos.User }
func progressRepository(repos *storage.Repos) progress.Repository { return repos.Progress }

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		ProgressSvc: p.ProgressSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepos))
	must(c.Provide(userRepository))
	must(c.Provide(progressRepository))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(progress.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
