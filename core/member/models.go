package member

import (
	"context"
	"time"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/user"
)

// Kind is the closed set of dependent-identity kinds a tenant admin can provision.
type Kind string

const (
	KindStudent Kind = "student"
	KindTeacher Kind = "teacher"
	KindParent  Kind = "parent"
	KindStaff   Kind = "staff"
)

func (k Kind) Valid() bool {
	switch k {
	case KindStudent, KindTeacher, KindParent, KindStaff:
		return true
	}
	return false
}

// Tag is the entity marker embedded in generated registration numbers.
func (k Kind) Tag() string {
	switch k {
	case KindStudent:
		return "STU"
	case KindTeacher:
		return "TCH"
	case KindParent:
		return "PAR"
	case KindStaff:
		return "STF"
	}
	return ""
}

// Role maps the member kind to the principal role paired with it. Staff
// members operate the school-admin portal.
func (k Kind) Role() user.Role {
	switch k {
	case KindStudent:
		return user.RoleStudent
	case KindTeacher:
		return user.RoleTeacher
	case KindParent:
		return user.RoleParent
	case KindStaff:
		return user.RoleSchoolAdmin
	}
	return ""
}

// Member is the tenant-scoped domain record backing a provisioned identity.
// Every member has exactly one paired principal; the pair is created
// atomically.
type Member struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RegNo       string    `json:"reg_no"` // generated, unique external identifier
	PrincipalID string    `json:"principal_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewMember contains information needed to provision a dependent identity.
type NewMember struct {
	SchoolID string `json:"school_id" validate:"required"`
	Kind     Kind   `json:"kind" validate:"required,memberkind"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

func (nm *NewMember) Validate(ctx context.Context, chk user.UniquenessChecker) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)

	if err := core.Validate.Struct(nm); err != nil {
		return err
	}
	// contact email must be free of principals across ALL tenants
	return chk.CheckEmailUniqueness(ctx, nm.Email)
}
