package dummydb

import (
	"context"

	"github.com/campuskit/identity/core/otp"
)

type otpRepository struct {
	db *otpTable
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *DB) *otpRepository {
	return &otpRepository{db: db.otp}
}

// CreateCode replaces any previous code for (email, purpose) under one lock,
// so at most one active code exists.
func (repo *otpRepository) CreateCode(_ context.Context, code otp.Code) (otp.Code, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, c := range repo.db.table {
		if c.Email == code.Email && c.Purpose == code.Purpose {
			delete(repo.db.table, id)
		}
	}
	repo.db.table[code.ID] = &code
	return code, nil
}

func (repo *otpRepository) GetActiveCode(_ context.Context, email string, purpose otp.Purpose) (otp.Code, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *otp.Code
	for _, c := range repo.db.table {
		if c.Email != email || c.Purpose != purpose {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return otp.Code{}, otp.ErrNotFound
	}
	return *latest, nil
}

func (repo *otpRepository) IncrementAttempts(_ context.Context, id string) (otp.Code, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.table[id]
	if !ok {
		return otp.Code{}, otp.ErrNotFound
	}
	c.Attempts++
	return *c, nil
}

func (repo *otpRepository) DeleteCode(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, id)
	return nil
}
