package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/hifdh/core/user"
)

const userCols = `id, name, email, role, password_hash, created_at, updated_at, last_login,
	current_sabak, current_sabak_dhor, current_dhor, current_sabak_dhor_mistakes, current_dhor_mistakes,
	weekly_goal, weekly_goal_week_key, weekly_goal_start_date_key, weekly_goal_completed_date_key,
	weekly_goal_duration_days, last_updated_by, progress_updated_at`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	const q = `INSERT INTO users (id, name, email, role, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :email, :role, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, newUserRow(usr)); err != nil {
		return user.User{}, storeErr(err, "creating user", user.ErrNotFound)
	}
	return usr, nil
}

func (repo *userRepository) getBy(ctx context.Context, col, val string) (user.User, error) {
	var row userRow
	q := "SELECT " + userCols + " FROM users WHERE " + col + " = $1"
	if err := repo.db.GetContext(ctx, &row, q, val); err != nil {
		return user.User{}, storeErr(err, "getting user by "+col, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, "id", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, "email", email)
}

func (repo *userRepository) QueryStudents(ctx context.Context, limit int) ([]user.User, error) {
	var rows []userRow
	q := "SELECT " + userCols + " FROM users WHERE role = $1 ORDER BY email ASC"
	args := []interface{}{string(user.RoleStudent)}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, storeErr(err, "querying students", user.ErrNotFound)
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	const q = `UPDATE users SET
		name = :name, email = :email, role = :role, password_hash = COALESCE(:password_hash, password_hash),
		updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newUserRow(usr))
	if err != nil {
		return user.User{}, storeErr(err, "updating user", user.ErrNotFound)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}
