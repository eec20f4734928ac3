package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

type schoolRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	ContactName  string    `db:"contact_name"`
	ContactEmail string    `db:"contact_email"`
	Status       string    `db:"status"`
	AdminEmail   string    `db:"admin_email"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r schoolRow) toSchool() school.School {
	return school.School{
		ID:           r.ID,
		Name:         r.Name,
		ContactName:  r.ContactName,
		ContactEmail: r.ContactEmail,
		Status:       school.Status(r.Status),
		AdminEmail:   r.AdminEmail,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const schoolColumns = `id, name, contact_name, contact_email, status, admin_email, created_at, updated_at`

func (repo *schoolRepository) CheckContactEmailUniqueness(ctx context.Context, email string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM school WHERE contact_email = $1)`, email)
	if err != nil {
		return errors.Wrap(err, "querying schools by contact email")
	}
	if exists {
		return school.ErrEmailExists
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO school (`+schoolColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sch.ID, sch.Name, sch.ContactName, sch.ContactEmail, string(sch.Status),
		sch.AdminEmail, sch.CreatedAt, sch.UpdatedAt)
	if err != nil {
		if isDuplicate(err, "school_contact_email_key") {
			return school.School{}, school.ErrEmailExists
		}
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+schoolColumns+` FROM school WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "querying school by id")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) QuerySchoolsByStatus(ctx context.Context, status school.Status) ([]school.School, error) {
	var rows []schoolRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+schoolColumns+` FROM school WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, errors.Wrap(err, "querying schools by status")
	}
	return toSchools(rows), nil
}

func (repo *schoolRepository) QueryAllSchools(ctx context.Context) ([]school.School, error) {
	var rows []schoolRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT `+schoolColumns+` FROM school ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	return toSchools(rows), nil
}

// ApproveSchool flips pending->approved with a conditional update and inserts
// the admin principal in the same transaction, so two concurrent approvals
// cannot both succeed and an approved school always has its admin.
func (repo *schoolRepository) ApproveSchool(ctx context.Context, id, adminEmail string, admin user.User) (school.School, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return school.School{}, errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var row schoolRow
	err = tx.GetContext(ctx, &row, `
		UPDATE school SET status = $2, admin_email = $3, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+schoolColumns,
		id, string(school.StatusApproved), adminEmail, time.Now().UTC(), string(school.StatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, repo.notPendingOrMissing(ctx, id)
		}
		return school.School{}, errors.Wrap(err, "approving school")
	}

	if _, err := createUser(ctx, tx, admin); err != nil {
		return school.School{}, err
	}

	if err := tx.Commit(); err != nil {
		return school.School{}, errors.Wrap(err, "committing approval")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) RejectSchool(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE school SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+schoolColumns,
		id, string(school.StatusRejected), time.Now().UTC(), string(school.StatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, repo.notPendingOrMissing(ctx, id)
		}
		return school.School{}, errors.Wrap(err, "rejecting school")
	}
	return row.toSchool(), nil
}

// notPendingOrMissing disambiguates a zero-row conditional update.
func (repo *schoolRepository) notPendingOrMissing(ctx context.Context, id string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM school WHERE id = $1)`, id)
	if err != nil {
		return errors.Wrap(err, "querying school by id")
	}
	if exists {
		return school.ErrNotPending
	}
	return school.ErrNotFound
}

func toSchools(rows []schoolRow) []school.School {
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.toSchool())
	}
	return schools
}
