package firestoredb

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
)

const (
	usersCollection = "users"
	logsCollection  = "logs"
)

// Open connects to the Firestore project of conf.
// FIRESTORE_EMULATOR_HOST, when set, points the client to an emulator.
func Open(ctx context.Context, conf *core.Config) (*firestore.Client, error) {
	if conf.Storage.FirestoreProjectID == "" {
		return nil, errors.New("firestore project ID not set")
	}
	var opts []option.ClientOption
	if conf.Storage.FirestoreCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Storage.FirestoreCredentialsFile))
	}
	client, err := firestore.NewClient(ctx, conf.Storage.FirestoreProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating firestore client")
	}
	return client, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// domainErrs are returned by the repositories and transaction callbacks as they are.
var domainErrs = []error{
	user.ErrNotFound,
	user.ErrEmailExists,
	progress.ErrLogNotFound,
	progress.ErrNoGoal,
}

// storeErr wraps err in a core.StoreError unless it is one of the domain errors.
func storeErr(err error, msg string) error {
	if err == nil || core.IsStoreUnavailable(err) {
		return err
	}
	cause := errors.Cause(err)
	if _, ok := cause.(*core.ValidationError); ok {
		return err
	}
	for _, derr := range domainErrs {
		if cause == derr {
			return err
		}
	}
	return core.NewStoreError(err, msg)
}

func mergePaths(fields []string) firestore.SetOption {
	fps := make([]firestore.FieldPath, 0, len(fields))
	for _, f := range fields {
		fps = append(fps, firestore.FieldPath{f})
	}
	return firestore.Merge(fps...)
}
