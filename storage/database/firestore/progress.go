package firestoredb

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
)

// logDoc is the users/{uid}/logs/{dateKey} document.
type logDoc struct {
	DateKey             string    `firestore:"dateKey"`
	Sabak               string    `firestore:"sabak"`
	SabakDhor           string    `firestore:"sabakDhor"`
	Dhor                string    `firestore:"dhor"`
	SabakDhorMistakes   string    `firestore:"sabakDhorMistakes"`
	DhorMistakes        string    `firestore:"dhorMistakes"`
	WeeklyGoalCompleted bool      `firestore:"weeklyGoalCompleted"`
	UpdatedBy           string    `firestore:"updatedBy"`
	UpdatedByEmail      string    `firestore:"updatedByEmail"`
	CreatedAt           time.Time `firestore:"createdAt"`
	goalDoc
}

func newLogDoc(entry progress.LogEntry) logDoc {
	return logDoc{
		DateKey:             entry.DateKey,
		Sabak:               entry.Metrics.Sabak,
		SabakDhor:           entry.Metrics.SabakDhor,
		Dhor:                entry.Metrics.Dhor,
		SabakDhorMistakes:   entry.Metrics.SabakDhorMistakes,
		DhorMistakes:        entry.Metrics.DhorMistakes,
		WeeklyGoalCompleted: entry.GoalCompleted,
		UpdatedBy:           entry.UpdatedBy,
		UpdatedByEmail:      entry.UpdatedByEmail,
		CreatedAt:           entry.CreatedAt,
		goalDoc:             newGoalDoc(entry.Goal),
	}
}

func (d logDoc) entry(id string) progress.LogEntry {
	dateKey := d.DateKey
	if dateKey == "" {
		dateKey = id
	}
	return progress.LogEntry{
		DateKey: dateKey,
		Metrics: progress.Metrics{
			Sabak:             d.Sabak,
			SabakDhor:         d.SabakDhor,
			Dhor:              d.Dhor,
			SabakDhorMistakes: d.SabakDhorMistakes,
			DhorMistakes:      d.DhorMistakes,
		},
		Goal:           d.goalDoc.goal(),
		GoalCompleted:  d.WeeklyGoalCompleted,
		UpdatedBy:      d.UpdatedBy,
		UpdatedByEmail: d.UpdatedByEmail,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

func decodeLog(ds *firestore.DocumentSnapshot) (progress.LogEntry, error) {
	var doc logDoc
	if err := ds.DataTo(&doc); err != nil {
		return progress.LogEntry{}, errors.Wrapf(err, "decoding log %s", ds.Ref.Path)
	}
	return doc.entry(ds.Ref.ID), nil
}

type progressRepository struct {
	client *firestore.Client
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(client *firestore.Client) progress.Repository {
	return &progressRepository{client: client}
}

func (repo *progressRepository) userRef(studentID string) *firestore.DocumentRef {
	return repo.client.Collection(usersCollection).Doc(studentID)
}

func (repo *progressRepository) logRef(studentID, dateKey string) *firestore.DocumentRef {
	return repo.userRef(studentID).Collection(logsCollection).Doc(dateKey)
}

func (repo *progressRepository) GetSnapshot(ctx context.Context, studentID string) (progress.Snapshot, error) {
	if studentID == "" {
		return progress.Snapshot{}, user.ErrNotFound
	}
	ds, err := repo.userRef(studentID).Get(ctx)
	return snapshotFrom(ds, err, studentID)
}

func snapshotFrom(ds *firestore.DocumentSnapshot, err error, studentID string) (progress.Snapshot, error) {
	if err != nil {
		if isNotFound(err) {
			return progress.Snapshot{}, user.ErrNotFound
		}
		return progress.Snapshot{}, storeErr(err, "getting snapshot")
	}
	doc, err := decodeUser(ds)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return doc.snapshot(studentID), nil
}

func (repo *progressRepository) GetLog(ctx context.Context, studentID, dateKey string) (progress.LogEntry, error) {
	if studentID == "" || dateKey == "" {
		return progress.LogEntry{}, progress.ErrLogNotFound
	}
	ds, err := repo.logRef(studentID, dateKey).Get(ctx)
	return logFrom(ds, err)
}

func logFrom(ds *firestore.DocumentSnapshot, err error) (progress.LogEntry, error) {
	if err != nil {
		if isNotFound(err) {
			return progress.LogEntry{}, progress.ErrLogNotFound
		}
		return progress.LogEntry{}, storeErr(err, "getting log")
	}
	return decodeLog(ds)
}

func (repo *progressRepository) QueryLogs(ctx context.Context, studentID string) ([]progress.LogEntry, error) {
	iter := repo.userRef(studentID).Collection(logsCollection).OrderBy(firestore.DocumentID, firestore.Desc).Documents(ctx)
	defer iter.Stop()

	logs := make([]progress.LogEntry, 0)
	for {
		ds, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storeErr(err, "querying logs")
		}
		entry, err := decodeLog(ds)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (repo *progressRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx progress.Tx) error) error {
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		return fn(ctx, &fsTx{repo: repo, txn: txn})
	})
	return storeErr(err, "running transaction")
}

// fsTx performs its reads and writes in a Firestore transaction.
// Firestore requires every read to happen before the first write.
type fsTx struct {
	repo *progressRepository
	txn  *firestore.Transaction
}

func (tx *fsTx) GetSnapshot(_ context.Context, studentID string) (progress.Snapshot, error) {
	if studentID == "" {
		return progress.Snapshot{}, user.ErrNotFound
	}
	ds, err := tx.txn.Get(tx.repo.userRef(studentID))
	return snapshotFrom(ds, err, studentID)
}

func (tx *fsTx) GetLog(_ context.Context, studentID, dateKey string) (progress.LogEntry, error) {
	if studentID == "" || dateKey == "" {
		return progress.LogEntry{}, progress.ErrLogNotFound
	}
	ds, err := tx.txn.Get(tx.repo.logRef(studentID, dateKey))
	return logFrom(ds, err)
}

func (tx *fsTx) MergeLog(_ context.Context, studentID string, entry progress.LogEntry, fields []string) error {
	return tx.txn.Set(tx.repo.logRef(studentID, entry.DateKey), newLogDoc(entry), mergePaths(fields))
}

func (tx *fsTx) MergeSnapshot(_ context.Context, studentID string, snap progress.Snapshot, fields []string) error {
	return tx.txn.Set(tx.repo.userRef(studentID), newSnapshotDoc(snap), mergePaths(fields))
}
