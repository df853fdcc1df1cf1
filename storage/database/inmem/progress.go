package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

// the helpers below must be called with the lock held

func (db *DB) getSnapshot(studentID string) (progress.Snapshot, error) {
	if err := db.failure(OpGetSnapshot); err != nil {
		return progress.Snapshot{}, err
	}
	if _, ok := db.users[studentID]; !ok {
		return progress.Snapshot{}, user.ErrNotFound
	}
	snap := progress.Snapshot{StudentID: studentID}
	if s, ok := db.snapshots[studentID]; ok {
		progress.MergeSnapshot(&snap, *s, progress.AllSnapshotFields)
	}
	return snap, nil
}

func (db *DB) getLog(studentID, dateKey string) (progress.LogEntry, error) {
	if err := db.failure(OpGetLog); err != nil {
		return progress.LogEntry{}, err
	}
	if entry, ok := db.logs[studentID][dateKey]; ok {
		var cp progress.LogEntry
		progress.MergeLog(&cp, *entry, progress.AllLogFields)
		return cp, nil
	}
	return progress.LogEntry{}, progress.ErrLogNotFound
}

func (repo *progressRepository) GetSnapshot(_ context.Context, studentID string) (progress.Snapshot, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.getSnapshot(studentID)
}

func (repo *progressRepository) GetLog(_ context.Context, studentID, dateKey string) (progress.LogEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.getLog(studentID, dateKey)
}

func (repo *progressRepository) QueryLogs(_ context.Context, studentID string) ([]progress.LogEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if err := repo.db.failure(OpQueryLogs); err != nil {
		return nil, err
	}
	logs := make([]progress.LogEntry, 0, len(repo.db.logs[studentID]))
	for _, entry := range repo.db.logs[studentID] {
		var cp progress.LogEntry
		progress.MergeLog(&cp, *entry, progress.AllLogFields)
		logs = append(logs, cp)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].DateKey > logs[j].DateKey })
	return logs, nil
}

// RunInTx holds the write lock while fn runs. Writes are staged and applied only when fn succeeds.
func (repo *progressRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx progress.Tx) error) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	tx := &memTx{db: repo.db}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, w := range tx.writes {
		w()
	}
	return nil
}

type memTx struct {
	db     *DB
	writes []func()
}

func (tx *memTx) GetSnapshot(_ context.Context, studentID string) (progress.Snapshot, error) {
	return tx.db.getSnapshot(studentID)
}

func (tx *memTx) GetLog(_ context.Context, studentID, dateKey string) (progress.LogEntry, error) {
	return tx.db.getLog(studentID, dateKey)
}

func (tx *memTx) MergeLog(_ context.Context, studentID string, entry progress.LogEntry, fields []string) error {
	if err := tx.db.failure(OpMergeLog); err != nil {
		return err
	}
	if _, ok := tx.db.users[studentID]; !ok {
		return user.ErrNotFound
	}
	tx.writes = append(tx.writes, func() {
		days, ok := tx.db.logs[studentID]
		if !ok {
			days = make(map[string]*progress.LogEntry)
			tx.db.logs[studentID] = days
		}
		dst, ok := days[entry.DateKey]
		if !ok {
			dst = &progress.LogEntry{DateKey: entry.DateKey}
			days[entry.DateKey] = dst
		}
		progress.MergeLog(dst, entry, fields)
	})
	return nil
}

func (tx *memTx) MergeSnapshot(_ context.Context, studentID string, snap progress.Snapshot, fields []string) error {
	if err := tx.db.failure(OpMergeSnapshot); err != nil {
		return err
	}
	if _, ok := tx.db.users[studentID]; !ok {
		return user.ErrNotFound
	}
	tx.writes = append(tx.writes, func() {
		dst, ok := tx.db.snapshots[studentID]
		if !ok {
			dst = &progress.Snapshot{StudentID: studentID}
			tx.db.snapshots[studentID] = dst
		}
		progress.MergeSnapshot(dst, snap, fields)
	})
	return nil
}
