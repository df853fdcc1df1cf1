package inmemdb

import (
	"sync"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
)

// Operations that can be made to fail with DB.Fail.
const (
	OpGetUser       = "GetUser"
	OpQueryStudents = "QueryStudents"
	OpGetSnapshot   = "GetSnapshot"
	OpGetLog        = "GetLog"
	OpQueryLogs     = "QueryLogs"
	OpMergeLog      = "MergeLog"
	OpMergeSnapshot = "MergeSnapshot"
)

// DB keeps users, snapshots and log entries in memory.
// A single lock guards all tables so a transaction sees and writes them atomically.
type DB struct {
	sync.RWMutex
	users     map[string]*user.User
	snapshots map[string]*progress.Snapshot
	logs      map[string]map[string]*progress.LogEntry
	failures  map[string]error
}

func Open() *DB {
	return &DB{
		users:     make(map[string]*user.User),
		snapshots: make(map[string]*progress.Snapshot),
		logs:      make(map[string]map[string]*progress.LogEntry),
		failures:  make(map[string]error),
	}
}

// Fail makes every later call of op return a store error wrapping err.
// A nil err clears the failure.
func (db *DB) Fail(op string, err error) {
	db.Lock()
	defer db.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

// failure must be called with the lock held.
func (db *DB) failure(op string) error {
	if err, ok := db.failures[op]; ok {
		return core.NewStoreError(err, op)
	}
	return nil
}

// Reset drops every record.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.users = make(map[string]*user.User)
	db.snapshots = make(map[string]*progress.Snapshot)
	db.logs = make(map[string]map[string]*progress.LogEntry)
	db.failures = make(map[string]error)
}

func (db *DB) Close() error { return nil }
