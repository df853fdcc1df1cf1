package sqlxrepos

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
	"github.com/trezcool/hifdh/storage/database"
)

// openDB connects to the database configured by the TEST_DATABASE_* variables and migrates it.
func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE_HOST") == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	conf, err := core.LoadConfig("TEST", core.Getwd())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(ctx, conf)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db.DB))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSqlx_users(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	suffix := uuid.NewString()[:8]
	now := time.Now().UTC().Truncate(time.Microsecond)
	student, err := repo.CreateUser(ctx, user.User{
		Name: "Yusuf", Email: "yusuf-" + suffix + "@test.za", Role: user.RoleStudent, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, user.User{Email: student.Email, Role: user.RoleStudent, CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, user.ErrEmailExists, err)

	got, err := repo.GetUserByEmail(ctx, student.Email)
	require.NoError(t, err)
	assert.Equal(t, student.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.LastLogin.IsZero())

	_, err = repo.GetUserByID(ctx, "missing-"+suffix)
	assert.Equal(t, user.ErrNotFound, err)

	got.LastLogin = now
	got, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	assert.True(t, got.LastLogin.Equal(now))

	students, err := repo.QueryStudents(ctx, 500)
	require.NoError(t, err)
	for i := 1; i < len(students); i++ {
		assert.True(t, students[i-1].Email <= students[i].Email, "students must be ordered by email")
	}
}

func TestSqlx_progress(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	student, err := NewUserRepository(db).CreateUser(ctx, user.User{
		Name: "Amina", Email: "amina-" + uuid.NewString()[:8] + "@test.za", Role: user.RoleStudent, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	repo := NewProgressRepository(db)

	_, err = repo.GetLog(ctx, student.ID, "2026-10-18")
	assert.Equal(t, progress.ErrLogNotFound, err)

	days := 2
	entry := progress.LogEntry{
		DateKey:   "2026-10-18",
		Metrics:   progress.Metrics{Sabak: "p. 12", DhorMistakes: "3"},
		Goal:      progress.Goal{Text: "Juz 30", WeekKey: "2026-W42", StartDateKey: "2026-10-16", CompletedDateKey: "2026-10-18", DurationDays: &days},
		UpdatedBy: student.ID,
		CreatedAt: now,
	}
	err = repo.RunInTx(ctx, func(ctx context.Context, tx progress.Tx) error {
		if _, err := tx.GetSnapshot(ctx, student.ID); err != nil {
			return err
		}
		if err := tx.MergeLog(ctx, student.ID, entry, progress.LogSubmitFields); err != nil {
			return err
		}
		return tx.MergeSnapshot(ctx, student.ID, progress.Snapshot{Current: entry.Metrics, Goal: entry.Goal, UpdatedAt: now}, progress.SnapshotSubmitFields)
	})
	require.NoError(t, err)

	errAbort := errors.New("abort")
	err = repo.RunInTx(ctx, func(ctx context.Context, tx progress.Tx) error {
		if err := tx.MergeLog(ctx, student.ID, progress.LogEntry{DateKey: "2026-10-19", CreatedAt: now}, progress.LogSubmitFields); err != nil {
			return err
		}
		return errAbort
	})
	assert.Equal(t, errAbort, err)

	logs, err := repo.QueryLogs(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, entry.Metrics, logs[0].Metrics)
	assert.Equal(t, entry.Goal, logs[0].Goal)

	snap, err := repo.GetSnapshot(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Metrics, snap.Current)
	assert.Equal(t, "Completed in 2 days", snap.Goal.Status())
}
