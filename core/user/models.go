package user

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/identity/core"
)

// Role is the closed set of principal roles. Free-form role strings are not
// accepted anywhere; every comparison goes through this type.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleSchoolAdmin Role = "school_admin"
	RoleTeacher     Role = "teacher"
	RoleParent      Role = "parent"
	RoleStudent     Role = "student"
)

var (
	AllRoles   = []Role{RoleSuperAdmin, RoleSchoolAdmin, RoleTeacher, RoleParent, RoleStudent}
	AdminRoles = []Role{RoleSuperAdmin, RoleSchoolAdmin}

	Roles = []RoleInfo{
		{Name: "Super Admin", Value: RoleSuperAdmin},
		{Name: "School Admin", Value: RoleSchoolAdmin},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Parent", Value: RoleParent},
		{Name: "Student", Value: RoleStudent},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleSchoolAdmin, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

// RequiresSchool reports whether a principal with this role must be bound to a tenant.
// Only the super admin lives outside tenant boundaries.
func (r Role) RequiresSchool() bool { return r != RoleSuperAdmin }

func (r Role) IsAdmin() bool { return r == RoleSuperAdmin || r == RoleSchoolAdmin }

// In reports whether r is in the allowed list.
func (r Role) In(allowed []Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// User is an authenticated principal: super admin, school admin, teacher,
// parent or student. Email is unique across all tenants (one person, one
// account; see DESIGN.md).
type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	SchoolID          string    `json:"school_id,omitempty"` // empty for super admin only
	IsActive          bool      `json:"is_active"`
	CanChangePassword bool      `json:"can_change_password"`
	PasswordHash      []byte    `json:"-"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
	LastLogin         time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }
func (u *User) IsAdmin() bool      { return u.Role.IsAdmin() }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Role              Role   `json:"role" validate:"required,role"`
	SchoolID          string `json:"school_id"`
	Password          string `json:"password" validate:"required"`
	CanChangePassword *bool  `json:"-"`
}

func (nu *NewUser) Validate(ctx context.Context, chk UniquenessChecker) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	if nu.Role.RequiresSchool() && nu.SchoolID == "" {
		return core.NewValidationError(ErrSchoolRequired,
			core.FieldError{Field: "school_id", Error: ErrSchoolRequired.Error()})
	}
	return chk.CheckEmailUniqueness(ctx, nu.Email)
}

// ChangePassword defines what a principal may provide to change their own password.
type ChangePassword struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp ChangePassword) Validate() error { return core.Validate.Struct(cp) }
