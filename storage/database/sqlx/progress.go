package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/hifdh/core/progress"
	"github.com/trezcool/hifdh/core/user"
)

const logCols = `user_id, date_key, sabak, sabak_dhor, dhor, sabak_dhor_mistakes, dhor_mistakes,
	weekly_goal, weekly_goal_week_key, weekly_goal_start_date_key, weekly_goal_completed_date_key,
	weekly_goal_duration_days, weekly_goal_completed, updated_by, updated_by_email, created_at`

const (
	snapshotQuery = "SELECT " + userCols + " FROM users WHERE id = $1"
	logQuery      = "SELECT " + logCols + " FROM progress_logs WHERE user_id = $1 AND date_key = $2"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func getSnapshot(ctx context.Context, q sqlx.QueryerContext, query, studentID string) (userRow, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, q, &row, query, studentID); err != nil {
		return userRow{}, storeErr(err, "getting snapshot", user.ErrNotFound)
	}
	return row, nil
}

func getLog(ctx context.Context, q sqlx.QueryerContext, query, studentID, dateKey string) (logRow, error) {
	var row logRow
	if err := sqlx.GetContext(ctx, q, &row, query, studentID, dateKey); err != nil {
		return logRow{}, storeErr(err, "getting log", progress.ErrLogNotFound)
	}
	return row, nil
}

func (repo *progressRepository) GetSnapshot(ctx context.Context, studentID string) (progress.Snapshot, error) {
	row, err := getSnapshot(ctx, repo.db, snapshotQuery, studentID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return row.snapshot(), nil
}

func (repo *progressRepository) GetLog(ctx context.Context, studentID, dateKey string) (progress.LogEntry, error) {
	row, err := getLog(ctx, repo.db, logQuery, studentID, dateKey)
	if err != nil {
		return progress.LogEntry{}, err
	}
	return row.entry(), nil
}

func (repo *progressRepository) QueryLogs(ctx context.Context, studentID string) ([]progress.LogEntry, error) {
	var rows []logRow
	q := "SELECT " + logCols + " FROM progress_logs WHERE user_id = $1 ORDER BY date_key DESC"
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, storeErr(err, "querying logs", progress.ErrLogNotFound)
	}
	logs := make([]progress.LogEntry, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, r.entry())
	}
	return logs, nil
}

func (repo *progressRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx progress.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr(err, "beginning transaction", nil)
	}
	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err, "committing transaction", nil)
	}
	return nil
}

// sqlTx locks the rows it reads until the transaction ends.
type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) GetSnapshot(ctx context.Context, studentID string) (progress.Snapshot, error) {
	row, err := getSnapshot(ctx, t.tx, snapshotQuery+" FOR UPDATE", studentID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return row.snapshot(), nil
}

func (t *sqlTx) GetLog(ctx context.Context, studentID, dateKey string) (progress.LogEntry, error) {
	row, err := getLog(ctx, t.tx, logQuery+" FOR UPDATE", studentID, dateKey)
	if err != nil {
		return progress.LogEntry{}, err
	}
	return row.entry(), nil
}

// MergeLog reads the current row, applies the named fields and upserts the result.
func (t *sqlTx) MergeLog(ctx context.Context, studentID string, entry progress.LogEntry, fields []string) error {
	var current progress.LogEntry
	row, err := getLog(ctx, t.tx, logQuery+" FOR UPDATE", studentID, entry.DateKey)
	switch err {
	case nil:
		current = row.entry()
	case progress.ErrLogNotFound:
		current = progress.LogEntry{DateKey: entry.DateKey, CreatedAt: entry.CreatedAt}
	default:
		return err
	}
	progress.MergeLog(&current, entry, fields)

	const q = `INSERT INTO progress_logs (` + logCols + `)
		VALUES (:user_id, :date_key, :sabak, :sabak_dhor, :dhor, :sabak_dhor_mistakes, :dhor_mistakes,
			:weekly_goal, :weekly_goal_week_key, :weekly_goal_start_date_key, :weekly_goal_completed_date_key,
			:weekly_goal_duration_days, :weekly_goal_completed, :updated_by, :updated_by_email, :created_at)
		ON CONFLICT (user_id, date_key) DO UPDATE SET
			sabak = EXCLUDED.sabak, sabak_dhor = EXCLUDED.sabak_dhor, dhor = EXCLUDED.dhor,
			sabak_dhor_mistakes = EXCLUDED.sabak_dhor_mistakes, dhor_mistakes = EXCLUDED.dhor_mistakes,
			weekly_goal = EXCLUDED.weekly_goal, weekly_goal_week_key = EXCLUDED.weekly_goal_week_key,
			weekly_goal_start_date_key = EXCLUDED.weekly_goal_start_date_key,
			weekly_goal_completed_date_key = EXCLUDED.weekly_goal_completed_date_key,
			weekly_goal_duration_days = EXCLUDED.weekly_goal_duration_days,
			weekly_goal_completed = EXCLUDED.weekly_goal_completed,
			updated_by = EXCLUDED.updated_by, updated_by_email = EXCLUDED.updated_by_email,
			created_at = EXCLUDED.created_at`
	if _, err := t.tx.NamedExecContext(ctx, q, newLogRow(studentID, current)); err != nil {
		return storeErr(err, "writing log", user.ErrNotFound)
	}
	return nil
}

// MergeSnapshot applies the named fields onto the snapshot columns of the user row.
func (t *sqlTx) MergeSnapshot(ctx context.Context, studentID string, snap progress.Snapshot, fields []string) error {
	row, err := getSnapshot(ctx, t.tx, snapshotQuery+" FOR UPDATE", studentID)
	if err != nil {
		return err
	}
	current := row.snapshot()
	progress.MergeSnapshot(&current, snap, fields)
	row.setSnapshot(current)

	const q = `UPDATE users SET
		current_sabak = :current_sabak, current_sabak_dhor = :current_sabak_dhor, current_dhor = :current_dhor,
		current_sabak_dhor_mistakes = :current_sabak_dhor_mistakes, current_dhor_mistakes = :current_dhor_mistakes,
		weekly_goal = :weekly_goal, weekly_goal_week_key = :weekly_goal_week_key,
		weekly_goal_start_date_key = :weekly_goal_start_date_key,
		weekly_goal_completed_date_key = :weekly_goal_completed_date_key,
		weekly_goal_duration_days = :weekly_goal_duration_days,
		last_updated_by = :last_updated_by, progress_updated_at = :progress_updated_at
		WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, q, row); err != nil {
		return storeErr(err, "writing snapshot", user.ErrNotFound)
	}
	return nil
}
