package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
)

const uniqueViolation = "23505"

type goalCols struct {
	WeeklyGoal                 string   `db:"weekly_goal"`
	WeeklyGoalWeekKey          string   `db:"weekly_goal_week_key"`
	WeeklyGoalStartDateKey     string   `db:"weekly_goal_start_date_key"`
	WeeklyGoalCompletedDateKey string   `db:"weekly_goal_completed_date_key"`
	WeeklyGoalDurationDays     null.Int `db:"weekly_goal_duration_days"`
}

func newGoalCols(g progress.Goal) goalCols {
	return goalCols{
		WeeklyGoal:                 g.Text,
		WeeklyGoalWeekKey:          g.WeekKey,
		WeeklyGoalStartDateKey:     g.StartDateKey,
		WeeklyGoalCompletedDateKey: g.CompletedDateKey,
		WeeklyGoalDurationDays:     null.IntFromPtr(g.DurationDays),
	}
}

func (c goalCols) goal() progress.Goal {
	return progress.Goal{
		Text:             c.WeeklyGoal,
		WeekKey:          c.WeeklyGoalWeekKey,
		StartDateKey:     c.WeeklyGoalStartDateKey,
		CompletedDateKey: c.WeeklyGoalCompletedDateKey,
		DurationDays:     c.WeeklyGoalDurationDays.Ptr(),
	}
}

// userRow is a row of the users table: the identity and the progress snapshot.
type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`

	CurrentSabak             string    `db:"current_sabak"`
	CurrentSabakDhor         string    `db:"current_sabak_dhor"`
	CurrentDhor              string    `db:"current_dhor"`
	CurrentSabakDhorMistakes string    `db:"current_sabak_dhor_mistakes"`
	CurrentDhorMistakes      string    `db:"current_dhor_mistakes"`
	LastUpdatedBy            string    `db:"last_updated_by"`
	ProgressUpdatedAt        null.Time `db:"progress_updated_at"`
	goalCols
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         string(usr.Role),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         user.Role(r.Role),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func (r userRow) snapshot() progress.Snapshot {
	snap := progress.Snapshot{
		StudentID: r.ID,
		Current: progress.Metrics{
			Sabak:             r.CurrentSabak,
			SabakDhor:         r.CurrentSabakDhor,
			Dhor:              r.CurrentDhor,
			SabakDhorMistakes: r.CurrentSabakDhorMistakes,
			DhorMistakes:      r.CurrentDhorMistakes,
		},
		Goal:          r.goalCols.goal(),
		LastUpdatedBy: r.LastUpdatedBy,
	}
	if r.ProgressUpdatedAt.Valid {
		snap.UpdatedAt = r.ProgressUpdatedAt.Time.UTC()
	}
	return snap
}

func (r *userRow) setSnapshot(snap progress.Snapshot) {
	r.CurrentSabak = snap.Current.Sabak
	r.CurrentSabakDhor = snap.Current.SabakDhor
	r.CurrentDhor = snap.Current.Dhor
	r.CurrentSabakDhorMistakes = snap.Current.SabakDhorMistakes
	r.CurrentDhorMistakes = snap.Current.DhorMistakes
	r.LastUpdatedBy = snap.LastUpdatedBy
	r.ProgressUpdatedAt = nullTime(snap.UpdatedAt)
	r.goalCols = newGoalCols(snap.Goal)
}

// logRow is a row of the progress_logs table.
type logRow struct {
	UserID              string    `db:"user_id"`
	DateKey             string    `db:"date_key"`
	Sabak               string    `db:"sabak"`
	SabakDhor           string    `db:"sabak_dhor"`
	Dhor                string    `db:"dhor"`
	SabakDhorMistakes   string    `db:"sabak_dhor_mistakes"`
	DhorMistakes        string    `db:"dhor_mistakes"`
	WeeklyGoalCompleted bool      `db:"weekly_goal_completed"`
	UpdatedBy           string    `db:"updated_by"`
	UpdatedByEmail      string    `db:"updated_by_email"`
	CreatedAt           time.Time `db:"created_at"`
	goalCols
}

func newLogRow(studentID string, entry progress.LogEntry) logRow {
	return logRow{
		UserID:              studentID,
		DateKey:             entry.DateKey,
		Sabak:               entry.Metrics.Sabak,
		SabakDhor:           entry.Metrics.SabakDhor,
		Dhor:                entry.Metrics.Dhor,
		SabakDhorMistakes:   entry.Metrics.SabakDhorMistakes,
		DhorMistakes:        entry.Metrics.DhorMistakes,
		WeeklyGoalCompleted: entry.GoalCompleted,
		UpdatedBy:           entry.UpdatedBy,
		UpdatedByEmail:      entry.UpdatedByEmail,
		CreatedAt:           entry.CreatedAt.UTC(),
		goalCols:            newGoalCols(entry.Goal),
	}
}

func (r logRow) entry() progress.LogEntry {
	return progress.LogEntry{
		DateKey: r.DateKey,
		Metrics: progress.Metrics{
			Sabak:             r.Sabak,
			SabakDhor:         r.SabakDhor,
			Dhor:              r.Dhor,
			SabakDhorMistakes: r.SabakDhorMistakes,
			DhorMistakes:      r.DhorMistakes,
		},
		Goal:           r.goalCols.goal(),
		GoalCompleted:  r.WeeklyGoalCompleted,
		UpdatedBy:      r.UpdatedBy,
		UpdatedByEmail: r.UpdatedByEmail,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

// storeErr maps database errors: missing rows and unique violations become domain errors,
// anything else a core.StoreError.
func storeErr(err error, msg string, notFound error) error {
	if err == nil {
		return nil
	}
	cause := errors.Cause(err)
	if cause == sql.ErrNoRows {
		return notFound
	}
	if pqErr, ok := cause.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return user.ErrEmailExists
	}
	return core.NewStoreError(err, msg)
}
