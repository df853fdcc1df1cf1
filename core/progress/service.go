package progress

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/datekey"
	"github.com/trezcool/hifdh/core/user"
)

var (
	// errors
	ErrForbidden   = errors.New("permission denied")
	ErrLogNotFound = errors.New("log entry not found")
	ErrDateKey     = errors.New("progress can only be saved for today or yesterday")
)

type (
	// Repository reads and writes the progress of students.
	// A missing student yields user.ErrNotFound; a missing log entry yields ErrLogNotFound.
	Repository interface {
		GetSnapshot(ctx context.Context, studentID string) (Snapshot, error)
		GetLog(ctx context.Context, studentID, dateKey string) (LogEntry, error)
		// QueryLogs returns every log entry of the student, ordered by date key descending.
		QueryLogs(ctx context.Context, studentID string) ([]LogEntry, error)
		// RunInTx runs fn in a transaction: either all the writes of fn are applied, or none.
		RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	}

	// Tx is a repository transaction. All reads must happen before the first write.
	Tx interface {
		GetSnapshot(ctx context.Context, studentID string) (Snapshot, error)
		GetLog(ctx context.Context, studentID, dateKey string) (LogEntry, error)
		// MergeLog upserts the entry at (studentID, entry.DateKey), writing only the named fields.
		MergeLog(ctx context.Context, studentID string, entry LogEntry, fields []string) error
		// MergeSnapshot writes the named snapshot fields onto the student's user record.
		MergeSnapshot(ctx context.Context, studentID string, snap Snapshot, fields []string) error
	}

	Service struct {
		repo    Repository
		usrRepo user.Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, usrRepo user.Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func today() string {
	return datekey.Today(core.NowFunc())
}

func authorize(acc user.Access, studentID string) error {
	if !acc.CanActFor(studentID) {
		return ErrForbidden
	}
	return nil
}

// findStudent returns the user studentID. A user without the student role is not found.
func (svc *Service) findStudent(ctx context.Context, studentID string) (user.User, error) {
	usr, err := svc.usrRepo.GetUserByID(ctx, studentID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return user.User{}, errors.Wrap(user.ErrNotFound, "finding student")
	}
	return usr, nil
}

// Prefill returns the values the edit view of today starts from: the student's snapshot,
// overridden by today's log entry when one exists.
func (svc *Service) Prefill(ctx context.Context, acc user.Access, studentID string) (Form, error) {
	if err := authorize(acc, studentID); err != nil {
		return Form{}, err
	}
	if _, err := svc.findStudent(ctx, studentID); err != nil {
		return Form{}, err
	}

	form := Form{StudentID: studentID, DateKey: today(), Source: FromNothing}

	snap, err := svc.repo.GetSnapshot(ctx, studentID)
	if err != nil {
		return Form{}, errors.Wrap(err, "getting snapshot")
	}
	if snap.Current != (Metrics{}) || snap.Goal.Text != "" {
		form.Metrics = snap.Current
		form.WeeklyGoal = snap.Goal.Text
		form.Source = FromSnapshot
	}
	form.Goal = snap.Goal

	entry, err := svc.repo.GetLog(ctx, studentID, form.DateKey)
	switch errors.Cause(err) {
	case nil:
		form.Metrics = entry.Metrics
		form.WeeklyGoal = entry.Goal.Text
		form.Source = FromLog
	case ErrLogNotFound:
	default:
		return Form{}, errors.Wrap(err, "getting today's log")
	}
	return form, nil
}

// checkDateKey defaults an empty key to today and accepts today or yesterday only,
// so a form loaded before midnight can still be saved after it.
func checkDateKey(key, now string) (string, error) {
	if key == "" {
		return now, nil
	}
	if !datekey.Valid(key) {
		return "", core.NewValidationError(datekey.ErrInvalid, core.FieldError{Field: "date_key", Error: datekey.ErrInvalid.Error()})
	}
	yesterday, err := datekey.AddDays(now, -1)
	if err != nil {
		return "", err
	}
	if key != now && key != yesterday {
		return "", core.NewValidationError(ErrDateKey, core.FieldError{Field: "date_key", Error: ErrDateKey.Error()})
	}
	return key, nil
}

// Submit saves one day of progress for studentID.
// The log entry of the day and the snapshot on the user record are written in the same
// transaction; on failure neither is. The snapshot is left as is when a later day is
// already logged.
func (svc *Service) Submit(ctx context.Context, acc user.Access, studentID string, sub Submission) (Result, error) {
	if err := authorize(acc, studentID); err != nil {
		return Result{}, err
	}
	todayKey := today()
	dateKey, err := checkDateKey(sub.DateKey, todayKey)
	if err != nil {
		return Result{}, err
	}
	if _, err = svc.findStudent(ctx, studentID); err != nil {
		return Result{}, err
	}

	var (
		res    Result
		latest bool
	)
	err = svc.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		prev, err := tx.GetSnapshot(ctx, studentID)
		if err != nil {
			return errors.Wrap(err, "getting snapshot")
		}

		latest = true
		if dateKey != todayKey {
			_, err = tx.GetLog(ctx, studentID, todayKey)
			switch errors.Cause(err) {
			case nil:
				latest = false
			case ErrLogNotFound:
			default:
				return errors.Wrap(err, "getting today's log")
			}
		}

		goal, err := prev.Goal.Next(sub.WeeklyGoal, dateKey)
		if err != nil {
			return errors.Wrap(err, "deriving weekly goal")
		}
		if !latest && goal.CompletedDateKey > dateKey {
			goal.CompletedDateKey = ""
			goal.DurationDays = nil
		}

		now := core.NowFunc().UTC()
		entry := LogEntry{
			DateKey:        dateKey,
			Metrics:        sub.Metrics(),
			Goal:           goal,
			GoalCompleted:  goal.Completed(),
			UpdatedBy:      acc.UserID,
			UpdatedByEmail: acc.Email,
			CreatedAt:      now,
		}
		snap := Snapshot{
			StudentID:     studentID,
			Current:       entry.Metrics,
			Goal:          goal,
			LastUpdatedBy: acc.UserID,
			UpdatedAt:     now,
		}

		if err := tx.MergeLog(ctx, studentID, entry, LogSubmitFields); err != nil {
			return errors.Wrap(err, "writing log entry")
		}
		if latest {
			if err := tx.MergeSnapshot(ctx, studentID, snap, SnapshotSubmitFields); err != nil {
				return errors.Wrap(err, "writing snapshot")
			}
			MergeSnapshot(&prev, snap, SnapshotSubmitFields)
		}

		prev.StudentID = studentID
		res = Result{Log: entry, Snapshot: prev}
		return nil
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "submitting progress")
	}

	svc.logger.Info("progress saved", map[string]interface{}{
		"student_id":       studentID,
		"date_key":         dateKey,
		"writer_id":        acc.UserID,
		"snapshot_updated": latest,
	})
	return res, nil
}

// CompleteGoal marks the student's weekly goal as completed today.
// Today's log entry, when there is one, records the completion as well.
func (svc *Service) CompleteGoal(ctx context.Context, acc user.Access, studentID string) (Snapshot, error) {
	if err := authorize(acc, studentID); err != nil {
		return Snapshot{}, err
	}
	student, err := svc.findStudent(ctx, studentID)
	if err != nil {
		return Snapshot{}, err
	}
	dateKey := today()

	var (
		snap        Snapshot
		transitions bool
	)
	err = svc.repo.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		prev, err := tx.GetSnapshot(ctx, studentID)
		if err != nil {
			return errors.Wrap(err, "getting snapshot")
		}
		_, logErr := tx.GetLog(ctx, studentID, dateKey)
		if logErr != nil && errors.Cause(logErr) != ErrLogNotFound {
			return errors.Wrap(logErr, "getting today's log")
		}

		goal, err := prev.Goal.Complete(dateKey)
		if err != nil {
			if err == ErrNoGoal {
				return core.NewValidationError(ErrNoGoal, core.FieldError{Field: "weekly_goal", Error: ErrNoGoal.Error()})
			}
			return errors.Wrap(err, "completing weekly goal")
		}
		prev.StudentID = studentID
		if prev.Goal.Completed() {
			snap = prev
			return nil
		}
		transitions = true

		now := core.NowFunc().UTC()
		next := Snapshot{StudentID: studentID, Goal: goal, LastUpdatedBy: acc.UserID, UpdatedAt: now}
		if logErr == nil {
			entry := LogEntry{
				DateKey:        dateKey,
				Goal:           goal,
				GoalCompleted:  true,
				UpdatedBy:      acc.UserID,
				UpdatedByEmail: acc.Email,
			}
			if err := tx.MergeLog(ctx, studentID, entry, LogGoalFields); err != nil {
				return errors.Wrap(err, "writing log entry")
			}
		}
		if err := tx.MergeSnapshot(ctx, studentID, next, SnapshotGoalFields); err != nil {
			return errors.Wrap(err, "writing snapshot")
		}

		MergeSnapshot(&prev, next, SnapshotGoalFields)
		snap = prev
		return nil
	})
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "completing goal")
	}

	if transitions {
		svc.logger.Info("weekly goal completed", map[string]interface{}{
			"student_id": studentID,
			"date_key":   dateKey,
			"writer_id":  acc.UserID,
		})
		svc.notifyGoalCompleted(student, snap.Goal)
	}
	return snap, nil
}

func (svc *Service) notifyGoalCompleted(student user.User, goal Goal) {
	if svc.mailSvc == nil || student.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Weekly goal completed",
		TemplateName: "goal_completed",
		TemplateData: map[string]interface{}{
			"Goal":             goal.Text,
			"CompletedDateKey": goal.CompletedDateKey,
			"Status":           goal.Status(),
		},
	})
}

// History returns every log entry of the student, latest day first.
func (svc *Service) History(ctx context.Context, acc user.Access, studentID string) ([]LogEntry, error) {
	if err := authorize(acc, studentID); err != nil {
		return nil, err
	}
	if _, err := svc.findStudent(ctx, studentID); err != nil {
		return nil, err
	}
	logs, err := svc.repo.QueryLogs(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying logs")
	}
	sortLogs(logs)
	return logs, nil
}

// Overview returns the snapshot, goal status and history of the student.
func (svc *Service) Overview(ctx context.Context, acc user.Access, studentID string) (Overview, error) {
	if err := authorize(acc, studentID); err != nil {
		return Overview{}, err
	}
	student, err := svc.findStudent(ctx, studentID)
	if err != nil {
		return Overview{}, err
	}
	snap, err := svc.repo.GetSnapshot(ctx, studentID)
	if err != nil {
		return Overview{}, errors.Wrap(err, "getting snapshot")
	}
	logs, err := svc.repo.QueryLogs(ctx, studentID)
	if err != nil {
		return Overview{}, errors.Wrap(err, "querying logs")
	}
	sortLogs(logs)

	return Overview{
		StudentID:  studentID,
		Email:      student.Email,
		Name:       student.Name,
		Snapshot:   snap,
		GoalState:  snap.Goal.State().String(),
		GoalStatus: snap.Goal.Status(),
		Logs:       logs,
	}, nil
}
