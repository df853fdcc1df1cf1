package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/datekey"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
	appfs "github.com/trezcool/hifdh/fs"
	"github.com/trezcool/hifdh/services/email"
	"github.com/trezcool/hifdh/services/logger"
	"github.com/trezcool/hifdh/storage/database/inmem"
	"github.com/trezcool/hifdh/testutil"
)

type fixture struct {
	db      *inmemdb.DB
	svc     *progress.Service
	admin   user.User
	student user.User
	other   user.User
	nobody  user.User
}

// 2026-10-18 08:00 in Johannesburg
var day1 = time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)

func setup(t *testing.T) fixture {
	t.Helper()
	testutil.FreezeTime(t, day1)
	emailsvc.ResetSentMessages()

	conf := testutil.Config(t)
	lg := logsvc.NewNopLogger()
	core.ParseEmailTemplates(appfs.FS, lg, true)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	f := fixture{
		db:      db,
		svc:     progress.NewService(inmemdb.NewProgressRepository(db), usrRepo, emailsvc.NewConsoleServiceMock(conf, lg), lg),
		admin:   testutil.CreateUser(t, usrRepo, "Ustadh Ismail", "ismail@test.za", "", user.RoleAdmin),
		student: testutil.CreateUser(t, usrRepo, "Yusuf Patel", "yusuf@test.za", "", user.RoleStudent),
		other:   testutil.CreateUser(t, usrRepo, "Amina Dawood", "amina@test.za", "", user.RoleStudent),
		nobody:  testutil.CreateUser(t, usrRepo, "Visitor", "visitor@test.za", "", user.RoleNone),
	}
	return f
}

func access(usr user.User) user.Access {
	return user.Access{UserID: usr.ID, Email: usr.Email, Role: usr.Role}
}

func at(t *testing.T, now time.Time) {
	t.Helper()
	core.NowFunc = func() time.Time { return now }
}

func TestService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sub := progress.Submission{Sabak: "p. 12", SabakDhor: "p. 10-11", Dhor: "Juz 1", DhorMistakes: "2", WeeklyGoal: "Juz 30"}
	res, err := f.svc.Submit(ctx, access(f.student), f.student.ID, sub)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-18", res.Log.DateKey)
	assert.Equal(t, sub.Metrics(), res.Log.Metrics)
	assert.Equal(t, f.student.ID, res.Log.UpdatedBy)
	assert.Equal(t, f.student.Email, res.Log.UpdatedByEmail)
	assert.Equal(t, "2026-W42", res.Log.Goal.WeekKey)
	assert.Equal(t, "2026-10-18", res.Log.Goal.StartDateKey)
	assert.False(t, res.Log.GoalCompleted)

	// the snapshot mirrors the submitted values
	assert.Equal(t, res.Log.Metrics, res.Snapshot.Current)
	assert.Equal(t, res.Log.Goal, res.Snapshot.Goal)
	assert.Equal(t, f.student.ID, res.Snapshot.LastUpdatedBy)

	form, err := f.svc.Prefill(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.FromLog, form.Source)
	assert.Equal(t, sub.Metrics(), form.Metrics)
	assert.Equal(t, "Juz 30", form.WeeklyGoal)
}

func TestService_Submit_overwritesTheDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 12", Dhor: "Juz 1"})
	require.NoError(t, err)
	at(t, day1.Add(2*time.Hour))
	_, err = f.svc.Submit(ctx, access(f.admin), f.student.ID, progress.Submission{Sabak: "p. 13"})
	require.NoError(t, err)

	logs, err := f.svc.History(ctx, access(f.admin), f.student.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, progress.Metrics{Sabak: "p. 13"}, logs[0].Metrics)
	assert.Equal(t, f.admin.ID, logs[0].UpdatedBy)
	assert.Equal(t, f.admin.Email, logs[0].UpdatedByEmail)
	assert.Equal(t, day1.Add(2*time.Hour), logs[0].CreatedAt)
}

func TestService_Submit_rejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := progress.Submission{Sabak: "p. 12"}

	tests := []struct {
		name      string
		acc       user.Access
		studentID string
		sub       progress.Submission
		check     func(t *testing.T, err error)
	}{
		{
			name: "student for another student", acc: access(f.student), studentID: f.other.ID, sub: sub,
			check: func(t *testing.T, err error) { assert.Equal(t, progress.ErrForbidden, err) },
		},
		{
			name: "user without role", acc: access(f.nobody), studentID: f.nobody.ID, sub: sub,
			check: func(t *testing.T, err error) { assert.Equal(t, progress.ErrForbidden, err) },
		},
		{
			name: "anonymous", acc: user.Access{}, studentID: f.student.ID, sub: sub,
			check: func(t *testing.T, err error) { assert.Equal(t, progress.ErrForbidden, err) },
		},
		{
			name: "unknown student", acc: access(f.admin), studentID: "missing", sub: sub,
			check: func(t *testing.T, err error) { assert.Equal(t, user.ErrNotFound, errors.Cause(err)) },
		},
		{
			name: "admin for a user without role", acc: access(f.admin), studentID: f.nobody.ID, sub: sub,
			check: func(t *testing.T, err error) { assert.Equal(t, user.ErrNotFound, errors.Cause(err)) },
		},
		{
			name: "admin for an admin", acc: access(f.admin), studentID: f.admin.ID, sub: sub,
			check: func(t *testing.T, err error) { assert.Equal(t, user.ErrNotFound, errors.Cause(err)) },
		},
		{
			name: "two days ago", acc: access(f.student), studentID: f.student.ID,
			sub: progress.Submission{DateKey: "2026-10-16", Sabak: "p. 12"},
			check: func(t *testing.T, err error) {
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, progress.ErrDateKey, vErr.Err)
			},
		},
		{
			name: "tomorrow", acc: access(f.student), studentID: f.student.ID,
			sub: progress.Submission{DateKey: "2026-10-19", Sabak: "p. 12"},
			check: func(t *testing.T, err error) {
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, progress.ErrDateKey, vErr.Err)
			},
		},
		{
			name: "malformed date", acc: access(f.student), studentID: f.student.ID,
			sub: progress.Submission{DateKey: "18/10/2026", Sabak: "p. 12"},
			check: func(t *testing.T, err error) {
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, datekey.ErrInvalid, vErr.Err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.acc, tt.studentID, tt.sub)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	// nothing was written
	for _, usr := range []user.User{f.student, f.other} {
		logs, err := f.svc.History(ctx, access(f.admin), usr.ID)
		require.NoError(t, err)
		assert.Empty(t, logs)
	}
}

func TestService_Submit_yesterday(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// a form loaded before midnight and saved after it
	at(t, day1.Add(18*time.Hour)) // 2026-10-19 02:00 in Johannesburg
	res, err := f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{DateKey: "2026-10-18", Sabak: "p. 12"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", res.Log.DateKey)
	assert.Equal(t, progress.Metrics{Sabak: "p. 12"}, res.Snapshot.Current, "yesterday is the latest logged day")
}

func TestService_Submit_yesterdayAfterToday(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	at(t, day1.Add(24*time.Hour)) // 2026-10-19
	_, err := f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 14", WeeklyGoal: "Juz 29"})
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, access(f.admin), f.student.ID,
		progress.Submission{DateKey: "2026-10-18", Sabak: "p. 12", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", res.Log.DateKey)
	assert.Equal(t, progress.Metrics{Sabak: "p. 12"}, res.Log.Metrics)
	assert.Equal(t, "Juz 30", res.Log.Goal.Text)

	// the snapshot still mirrors today's log
	ov, err := f.svc.Overview(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.Metrics{Sabak: "p. 14"}, ov.Snapshot.Current)
	assert.Equal(t, "Juz 29", ov.Snapshot.Goal.Text)
	assert.Equal(t, "2026-10-19", ov.Snapshot.Goal.StartDateKey)
	assert.Equal(t, f.student.ID, ov.Snapshot.LastUpdatedBy)
	assert.Equal(t, res.Snapshot, ov.Snapshot)

	require.Len(t, ov.Logs, 2)
	assert.Equal(t, "2026-10-19", ov.Logs[0].DateKey)
	assert.Equal(t, progress.Metrics{Sabak: "p. 14"}, ov.Logs[0].Metrics)
	assert.Equal(t, "2026-10-18", ov.Logs[1].DateKey)
	assert.Equal(t, progress.Metrics{Sabak: "p. 12"}, ov.Logs[1].Metrics)
}

func TestService_Submit_atomic(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.db.Fail(inmemdb.OpMergeSnapshot, errors.New("deadline exceeded"))
	_, err := f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 12"})
	require.Error(t, err)
	assert.True(t, core.IsStoreUnavailable(err))

	f.db.Fail(inmemdb.OpMergeSnapshot, nil)
	logs, err := f.svc.History(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Empty(t, logs, "the log entry must not be written without the snapshot")

	form, err := f.svc.Prefill(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.FromNothing, form.Source)
}

func TestService_Prefill(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	form, err := f.svc.Prefill(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.Form{StudentID: f.student.ID, DateKey: "2026-10-18", Source: progress.FromNothing}, form)

	_, err = f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 12", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)

	// on the next day the form starts from the snapshot
	at(t, day1.Add(24*time.Hour))
	form, err = f.svc.Prefill(ctx, access(f.admin), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", form.DateKey)
	assert.Equal(t, progress.FromSnapshot, form.Source)
	assert.Equal(t, progress.Metrics{Sabak: "p. 12"}, form.Metrics)
	assert.Equal(t, "Juz 30", form.WeeklyGoal)

	// once the day is logged, its log entry wins
	_, err = f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 13", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)
	form, err = f.svc.Prefill(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.FromLog, form.Source)
	assert.Equal(t, progress.Metrics{Sabak: "p. 13"}, form.Metrics)

	_, err = f.svc.Prefill(ctx, access(f.other), f.student.ID)
	assert.Equal(t, progress.ErrForbidden, err)
}

func TestService_History(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 12"})
	require.NoError(t, err)
	at(t, day1.Add(24*time.Hour))
	_, err = f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 14"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, access(f.other), f.other.ID, progress.Submission{Sabak: "p. 40"})
	require.NoError(t, err)

	logs, err := f.svc.History(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2026-10-19", logs[0].DateKey)
	assert.Equal(t, "2026-10-18", logs[1].DateKey)

	_, err = f.svc.History(ctx, access(f.student), f.other.ID)
	assert.Equal(t, progress.ErrForbidden, err)

	_, err = f.svc.History(ctx, access(f.admin), "missing")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	_, err = f.svc.History(ctx, access(f.admin), f.admin.ID)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err), "admins have no progress")
}

func TestService_CompleteGoal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CompleteGoal(ctx, access(f.student), f.student.ID)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, progress.ErrNoGoal, vErr.Err)

	// goal set on day 1, kept on day 3
	_, err = f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 12", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)
	at(t, day1.Add(48*time.Hour))
	_, err = f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 14", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)

	snap, err := f.svc.CompleteGoal(ctx, access(f.admin), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.GoalCompleted, snap.Goal.State())
	assert.Equal(t, "2026-10-18", snap.Goal.StartDateKey)
	assert.Equal(t, "2026-10-20", snap.Goal.CompletedDateKey)
	require.NotNil(t, snap.Goal.DurationDays)
	assert.Equal(t, 2, *snap.Goal.DurationDays)
	assert.Equal(t, "Completed in 2 days", snap.Goal.Status())
	assert.Equal(t, progress.Metrics{Sabak: "p. 14"}, snap.Current, "completion keeps the metrics")

	// today's log records the completion; earlier logs are untouched
	logs, err := f.svc.History(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].GoalCompleted)
	assert.Equal(t, "2026-10-20", logs[0].Goal.CompletedDateKey)
	assert.Equal(t, progress.Metrics{Sabak: "p. 14"}, logs[0].Metrics)
	assert.False(t, logs[1].GoalCompleted)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, f.student.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "Completed in 2 days")

	// completing again changes nothing and sends nothing
	emailsvc.ResetSentMessages()
	at(t, day1.Add(72*time.Hour))
	again, err := f.svc.CompleteGoal(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Goal, again.Goal)
	_, ok = emailsvc.LastSentMessage()
	assert.False(t, ok)

	// resubmitting the same goal keeps it completed
	res, err := f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 15", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)
	assert.True(t, res.Log.GoalCompleted)
	assert.Equal(t, "Completed in 2 days", res.Snapshot.Goal.Status())

	// a new goal starts over
	res, err = f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 15", WeeklyGoal: "Juz 29"})
	require.NoError(t, err)
	assert.Equal(t, progress.GoalInProgress, res.Snapshot.Goal.State())
	assert.Equal(t, "2026-10-21", res.Snapshot.Goal.StartDateKey)
}

func TestService_CompleteGoal_withoutLogToday(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, access(f.student), f.student.ID, progress.Submission{Sabak: "p. 12", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)

	at(t, day1.Add(24*time.Hour))
	snap, err := f.svc.CompleteGoal(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Completed in 1 day", snap.Goal.Status())

	// no log entry is created for the day
	logs, err := f.svc.History(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2026-10-18", logs[0].DateKey)

	form, err := f.svc.Prefill(ctx, access(f.student), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.FromSnapshot, form.Source)
	assert.True(t, form.Goal.Completed())
}

func TestService_Overview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, access(f.admin), f.student.ID, progress.Submission{Sabak: "p. 12", WeeklyGoal: "Juz 30"})
	require.NoError(t, err)

	ov, err := f.svc.Overview(ctx, access(f.admin), f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, f.student.Email, ov.Email)
	assert.Equal(t, f.student.Name, ov.Name)
	assert.Equal(t, "in_progress", ov.GoalState)
	assert.Equal(t, "Juz 30", ov.GoalStatus)
	assert.Equal(t, f.admin.ID, ov.Snapshot.LastUpdatedBy)
	require.Len(t, ov.Logs, 1)

	empty, err := f.svc.Overview(ctx, access(f.other), f.other.ID)
	require.NoError(t, err)
	assert.Equal(t, "no_goal", empty.GoalState)
	assert.Equal(t, "No goal set", empty.GoalStatus)
	assert.Empty(t, empty.Logs)
}
