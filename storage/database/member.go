package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/user"
)

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

type memberRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	Kind        string    `db:"kind"`
	Name        string    `db:"name"`
	Email       string    `db:"email"`
	RegNo       string    `db:"reg_no"`
	PrincipalID string    `db:"principal_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r memberRow) toMember() member.Member {
	return member.Member{
		ID:          r.ID,
		SchoolID:    r.SchoolID,
		Kind:        member.Kind(r.Kind),
		Name:        r.Name,
		Email:       r.Email,
		RegNo:       r.RegNo,
		PrincipalID: r.PrincipalID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const memberColumns = `id, school_id, kind, name, email, reg_no, principal_id, created_at, updated_at`

func (repo *memberRepository) RegNoExists(ctx context.Context, regNo string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM member WHERE reg_no = $1)`, regNo)
	if err != nil {
		return false, errors.Wrap(err, "querying members by reg no")
	}
	return exists, nil
}

// CreateMemberWithPrincipal inserts the member record and its paired principal
// in one transaction: either both exist afterwards or neither does.
func (repo *memberRepository) CreateMemberWithPrincipal(ctx context.Context, m member.Member, usr user.User) (member.Member, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// principal first: member.principal_id references it
	if _, err := createUser(ctx, tx, usr); err != nil {
		return member.Member{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO member (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.SchoolID, string(m.Kind), m.Name, m.Email, m.RegNo, m.PrincipalID,
		m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isDuplicate(err, "member_reg_no_key") {
			return member.Member{}, errors.Wrap(err, "registration number collided after uniqueness check")
		}
		return member.Member{}, errors.Wrap(err, "inserting member")
	}

	if err := tx.Commit(); err != nil {
		return member.Member{}, errors.Wrap(err, "committing member provisioning")
	}
	return m, nil
}

func (repo *memberRepository) GetMemberByID(ctx context.Context, id string) (member.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+memberColumns+` FROM member WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return member.Member{}, member.ErrNotFound
		}
		return member.Member{}, errors.Wrap(err, "querying member by id")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) QueryMembersBySchool(ctx context.Context, schoolID string) ([]member.Member, error) {
	var rows []memberRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+memberColumns+` FROM member WHERE school_id = $1 ORDER BY created_at`, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "querying members by school")
	}
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}
