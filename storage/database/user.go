package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Email             string         `db:"email"`
	Role              string         `db:"role"`
	SchoolID          sql.NullString `db:"school_id"`
	IsActive          bool           `db:"is_active"`
	CanChangePassword bool           `db:"can_change_password"`
	PasswordHash      []byte         `db:"password_hash"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	LastLogin         sql.NullTime   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:                r.ID,
		Name:              r.Name,
		Email:             r.Email,
		Role:              user.Role(r.Role),
		SchoolID:          r.SchoolID.String,
		IsActive:          r.IsActive,
		CanChangePassword: r.CanChangePassword,
		PasswordHash:      r.PasswordHash,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:                usr.ID,
		Name:              usr.Name,
		Email:             usr.Email,
		Role:              string(usr.Role),
		IsActive:          usr.IsActive,
		CanChangePassword: usr.CanChangePassword,
		PasswordHash:      usr.PasswordHash,
		CreatedAt:         usr.CreatedAt,
		UpdatedAt:         usr.UpdatedAt,
	}
	if usr.SchoolID != "" {
		row.SchoolID = sql.NullString{String: usr.SchoolID, Valid: true}
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = sql.NullTime{Time: usr.LastLogin, Valid: true}
	}
	return row
}

const userColumns = `id, name, email, role, school_id, is_active, can_change_password,
	password_hash, created_at, updated_at, last_login`

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids, `SELECT id FROM principal WHERE email = $1`, email)
	if err != nil {
		return errors.Wrap(err, "querying principals by email")
	}
	for _, id := range ids {
		if !isExcluded(id, excludedUsers) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	return createUser(ctx, repo.db, usr)
}

// createUser also serves the transactional paths (school approval, member
// provisioning) which insert principals inside a surrounding tx.
func createUser(ctx context.Context, ext sqlx.ExtContext, usr user.User) (user.User, error) {
	_, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO principal (`+userColumns+`)
		VALUES (:id, :name, :email, :role, :school_id, :is_active, :can_change_password,
			:password_hash, :created_at, :updated_at, :last_login)`,
		newUserRow(usr))
	if err != nil {
		if isDuplicate(err, "principal_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting principal")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM principal WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "querying principal by id")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM principal WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "querying principal by email")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsersBySchool(ctx context.Context, schoolID string) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+` FROM principal WHERE school_id = $1 ORDER BY created_at`, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying principals by school")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) QueryUsersByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+` FROM principal WHERE role = $1 ORDER BY created_at`, string(role))
	if err != nil {
		return nil, errors.Wrap(err, "querying principals by role")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	row := newUserRow(usr)
	var active sql.NullBool
	if isActive != nil {
		active = sql.NullBool{Bool: *isActive, Valid: true}
	}

	var updated userRow
	err := repo.db.GetContext(ctx, &updated, `
		UPDATE principal SET
			name = $2,
			email = $3,
			password_hash = COALESCE($4, password_hash),
			is_active = COALESCE($5, is_active),
			updated_at = $6,
			last_login = COALESCE($7, last_login)
		WHERE id = $1
		RETURNING `+userColumns,
		row.ID, row.Name, row.Email, row.PasswordHash, active, row.UpdatedAt, row.LastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		if isDuplicate(err, "principal_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating principal")
	}
	return updated.toUser(), nil
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}

func isExcluded(id string, excludedUsers []user.User) bool {
	for _, usr := range excludedUsers {
		if usr.ID == id {
			return true
		}
	}
	return false
}
