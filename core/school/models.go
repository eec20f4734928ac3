package school

import (
	"context"
	"time"

	"github.com/campuskit/identity/core"
)

// Status is the tenant lifecycle state. Transitions are one-way:
// pending -> approved or pending -> rejected; there is no un-approve path.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// School is one onboarded tenant, the unit of data isolation.
type School struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	Status       Status    `json:"status"`
	AdminEmail   string    `json:"admin_email,omitempty"` // set at approval time
	CreatedAt    time.Time `json:"created_at"`            // UTC
	UpdatedAt    time.Time `json:"updated_at"`            // UTC
}

// RegisterSchool contains information submitted by public self-registration.
type RegisterSchool struct {
	Name         string `json:"name" validate:"required"`
	ContactName  string `json:"contact_name" validate:"required"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
}

func (rs *RegisterSchool) Validate(ctx context.Context, svc *Service) error {
	rs.Name = core.CleanString(rs.Name)
	rs.ContactName = core.CleanString(rs.ContactName)
	rs.ContactEmail = core.CleanString(rs.ContactEmail, true /* lower */)

	if err := core.Validate.Struct(rs); err != nil {
		return err
	}
	return svc.checkContactEmailUniqueness(ctx, rs.ContactEmail)
}

// ApproveSchool contains the admin credentials supplied by a super admin for
// the manual approval variant.
type ApproveSchool struct {
	AdminName     string `json:"admin_name"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPassword string `json:"admin_password" validate:"required"`
}

func (as *ApproveSchool) Validate() error {
	as.AdminName = core.CleanString(as.AdminName)
	as.AdminEmail = core.CleanString(as.AdminEmail, true /* lower */)
	return core.Validate.Struct(as)
}
