package dummydb

import (
	"context"
	"time"

	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
)

type schoolRepository struct {
	db      *schoolTable
	userTbl *userTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school, userTbl: db.user}
}

func (repo *schoolRepository) query() []school.School {
	schools := make([]school.School, 0, len(repo.db.table))
	for _, sch := range repo.db.table {
		schools = append(schools, *sch)
	}
	return schools
}

func (repo *schoolRepository) CheckContactEmailUniqueness(_ context.Context, email string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sch := range repo.query() {
		if sch.ContactEmail == email {
			return school.ErrEmailExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.table {
		if s.ContactEmail == sch.ContactEmail {
			return school.School{}, school.ErrEmailExists
		}
	}
	repo.db.table[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, id string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sch, ok := repo.db.table[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySchoolsByStatus(_ context.Context, status school.Status) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var schools []school.School
	for _, sch := range repo.query() {
		if sch.Status == status {
			schools = append(schools, sch)
		}
	}
	return schools, nil
}

func (repo *schoolRepository) QueryAllSchools(_ context.Context) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

// ApproveSchool holds both table locks for the duration so the status flip and
// the admin insert are observed together, mirroring the transactional variant.
func (repo *schoolRepository) ApproveSchool(_ context.Context, id, adminEmail string, admin user.User) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.userTbl.Lock()
	defer repo.userTbl.Unlock()

	sch, ok := repo.db.table[id]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	if sch.Status != school.StatusPending {
		return school.School{}, school.ErrNotPending
	}
	for _, u := range repo.userTbl.table {
		if u.Email == admin.Email {
			return school.School{}, user.ErrEmailExists
		}
	}

	sch.Status = school.StatusApproved
	sch.AdminEmail = adminEmail
	sch.UpdatedAt = time.Now().UTC()
	repo.userTbl.table[admin.ID] = &admin
	return *sch, nil
}

func (repo *schoolRepository) RejectSchool(_ context.Context, id string) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sch, ok := repo.db.table[id]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	if sch.Status != school.StatusPending {
		return school.School{}, school.ErrNotPending
	}
	sch.Status = school.StatusRejected
	sch.UpdatedAt = time.Now().UTC()
	return *sch, nil
}
