// Package dummydb provides in-memory repositories for tests and local dev.
package dummydb

import (
	"sync"

	"github.com/campuskit/identity/core/member"
	"github.com/campuskit/identity/core/otp"
	"github.com/campuskit/identity/core/school"
	"github.com/campuskit/identity/core/user"
)

type (
	DB struct {
		user   *userTable
		school *schoolTable
		member *memberTable
		otp    *otpTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]*school.School
	}

	memberTable struct {
		sync.RWMutex
		table map[string]*member.Member
	}

	otpTable struct {
		sync.RWMutex
		table map[string]*otp.Code
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{table: make(map[string]*school.School)},
		member: &memberTable{table: make(map[string]*member.Member)},
		otp:    &otpTable{table: make(map[string]*otp.Code)},
	}
	return db, nil
}
