package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core/otp"
)

type otpRepository struct {
	db *sqlx.DB
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *sqlx.DB) *otpRepository {
	return &otpRepository{db: db}
}

type otpRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	Purpose   string    `db:"purpose"`
	Attempts  int       `db:"attempts"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r otpRow) toCode() otp.Code {
	return otp.Code{
		ID:        r.ID,
		Email:     r.Email,
		Code:      r.Code,
		Purpose:   otp.Purpose(r.Purpose),
		Attempts:  r.Attempts,
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

const otpColumns = `id, email, code, purpose, attempts, expires_at, created_at`

// CreateCode deletes any previous code for (email, purpose) and inserts the
// new one in a single transaction, so at most one active code exists.
func (repo *otpRepository) CreateCode(ctx context.Context, code otp.Code) (otp.Code, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return otp.Code{}, errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`DELETE FROM otp_code WHERE email = $1 AND purpose = $2`, code.Email, string(code.Purpose))
	if err != nil {
		return otp.Code{}, errors.Wrap(err, "deleting previous codes")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO otp_code (`+otpColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		code.ID, code.Email, code.Code, string(code.Purpose), code.Attempts,
		code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return otp.Code{}, errors.Wrap(err, "inserting code")
	}

	if err := tx.Commit(); err != nil {
		return otp.Code{}, errors.Wrap(err, "committing code")
	}
	return code, nil
}

func (repo *otpRepository) GetActiveCode(ctx context.Context, email string, purpose otp.Purpose) (otp.Code, error) {
	var row otpRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT `+otpColumns+` FROM otp_code
		WHERE email = $1 AND purpose = $2
		ORDER BY created_at DESC LIMIT 1`, email, string(purpose))
	if err != nil {
		if err == sql.ErrNoRows {
			return otp.Code{}, otp.ErrNotFound
		}
		return otp.Code{}, errors.Wrap(err, "querying active code")
	}
	return row.toCode(), nil
}

// IncrementAttempts is a per-row atomic update: concurrent mismatches cannot
// lose counts.
func (repo *otpRepository) IncrementAttempts(ctx context.Context, id string) (otp.Code, error) {
	var row otpRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE otp_code SET attempts = attempts + 1
		WHERE id = $1
		RETURNING `+otpColumns, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return otp.Code{}, otp.ErrNotFound
		}
		return otp.Code{}, errors.Wrap(err, "incrementing attempts")
	}
	return row.toCode(), nil
}

func (repo *otpRepository) DeleteCode(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM otp_code WHERE id = $1`, id)
	return errors.Wrap(err, "deleting code")
}
