package dummydb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/user"
)

type memberRepository struct {
	db      *memberTable
	userTbl *userTable
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *DB) *memberRepository {
	return &memberRepository{db: db.member, userTbl: db.user}
}

func (repo *memberRepository) query() []member.Member {
	members := make([]member.Member, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		members = append(members, *m)
	}
	return members
}

func (repo *memberRepository) RegNoExists(_ context.Context, regNo string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.query() {
		if m.RegNo == regNo {
			return true, nil
		}
	}
	return false, nil
}

// CreateMemberWithPrincipal holds both table locks so the member and its
// principal appear together or not at all.
func (repo *memberRepository) CreateMemberWithPrincipal(_ context.Context, m member.Member, usr user.User) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.userTbl.Lock()
	defer repo.userTbl.Unlock()

	for _, u := range repo.userTbl.table {
		if u.Email == usr.Email {
			return member.Member{}, user.ErrEmailExists
		}
	}
	for _, existing := range repo.db.table {
		if existing.RegNo == m.RegNo {
			return member.Member{}, errors.New("registration number collided after uniqueness check")
		}
	}

	repo.userTbl.table[usr.ID] = &usr
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *memberRepository) GetMemberByID(_ context.Context, id string) (member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) QueryMembersBySchool(_ context.Context, schoolID string) ([]member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var members []member.Member
	for _, m := range repo.query() {
		if m.SchoolID == schoolID {
			members = append(members, m)
		}
	}
	return members, nil
}
