// Package storage opens the repositories of the configured backend.
package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
	"github.com/trezcool/hifdh/storage/database"
	"github.com/trezcool/hifdh/storage/database/firestore"
	"github.com/trezcool/hifdh/storage/database/inmem"
	"github.com/trezcool/hifdh/storage/database/sqlx"
)

type Repos struct {
	User     user.Repository
	Progress progress.Repository

	// SQL is set for the postgres backend only.
	SQL *sqlx.DB
	// Mem is set for the memory backend only.
	Mem *inmemdb.DB

	close func() error
}

func (r *Repos) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Open connects to conf.Storage.Backend and returns its repositories.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Repos, error) {
	switch conf.Storage.Backend {
	case core.StorageFirestore:
		client, err := firestoredb.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		logger.Info("storage opened", map[string]interface{}{"backend": conf.Storage.Backend, "project": conf.Storage.FirestoreProjectID})
		return &Repos{
			User:     firestoredb.NewUserRepository(client),
			Progress: firestoredb.NewProgressRepository(client),
			close:    client.Close,
		}, nil

	case core.StoragePostgres:
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		logger.Info("storage opened", map[string]interface{}{"backend": conf.Storage.Backend, "database": conf.Database.Name})
		return &Repos{
			User:     sqlxrepos.NewUserRepository(db),
			Progress: sqlxrepos.NewProgressRepository(db),
			SQL:      db,
			close:    db.Close,
		}, nil

	case core.StorageMemory:
		db := inmemdb.Open()
		logger.Info("storage opened", map[string]interface{}{"backend": conf.Storage.Backend})
		return &Repos{
			User:     inmemdb.NewUserRepository(db),
			Progress: inmemdb.NewProgressRepository(db),
			Mem:      db,
			close:    db.Close,
		}, nil
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}
