package school

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/campuskit/identity/core"
	"github.com/campuskit/identity/core/credential"
	"github.com/campuskit/identity/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("school not found")
	ErrEmailExists = errors.New("a school with this contact email is already registered")
	ErrNotPending  = errors.New("school is not pending approval")
)

type (
	Repository interface {
		CheckContactEmailUniqueness(ctx context.Context, email string) error
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		QuerySchoolsByStatus(ctx context.Context, status Status) ([]School, error)
		QueryAllSchools(ctx context.Context) ([]School, error)
		// ApproveSchool atomically flips pending->approved, records the admin
		// login email and creates the admin principal, all in one transaction.
		// Returns ErrNotPending when the school is not pending: two concurrent
		// approvals cannot both succeed.
		ApproveSchool(ctx context.Context, id, adminEmail string, admin user.User) (School, error)
		// RejectSchool atomically flips pending->rejected under the same
		// conditional-update discipline.
		RejectSchool(ctx context.Context, id string) (School, error)
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		mailSvc core.EmailService
		logger  core.Logger
	}

	// ApprovalResult reports the outcome of an approval. FallbackPassword is
	// only set when credential dispatch failed: the caller must surface it
	// exactly once for manual delivery and never log or persist it.
	ApprovalResult struct {
		School               School
		Admin                user.User
		CredentialsDelivered bool
		FallbackPassword     string
	}
)

func NewService(repo Repository, usrSvc *user.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, mailSvc: mailSvc, logger: logger}
}

func (svc *Service) checkContactEmailUniqueness(ctx context.Context, email string) error {
	if err := svc.repo.CheckContactEmailUniqueness(ctx, email); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "contact_email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register persists a self-registered school as pending and notifies the
// registrant plus every super admin. No principal is created at this stage.
// Notification failures are logged, never surfaced.
func (svc *Service) Register(ctx context.Context, rs RegisterSchool) (School, error) {
	now := time.Now().UTC()
	sch, err := svc.repo.CreateSchool(ctx, School{
		ID:           uuid.New().String(),
		Name:         rs.Name,
		ContactName:  rs.ContactName,
		ContactEmail: rs.ContactEmail,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return School{}, err
	}

	messages := []*core.EmailMessage{{
		To:      []mail.Address{{Name: sch.ContactName, Address: sch.ContactEmail}},
		Subject: "Registration received",
		BodyStr: fmt.Sprintf(
			"Hello %s,\n\nWe received the registration of %q. "+
				"You will be notified once it has been reviewed.\n", sch.ContactName, sch.Name),
	}}
	if admins, err := svc.usrSvc.QueryByRole(ctx, user.RoleSuperAdmin); err != nil {
		svc.logger.Warn("listing super admins for registration notice", err)
	} else {
		for _, admin := range admins {
			messages = append(messages, &core.EmailMessage{
				To:      []mail.Address{{Name: admin.Name, Address: admin.Email}},
				Subject: "School registration pending review",
				BodyStr: fmt.Sprintf("School %q (%s) is awaiting approval.\n", sch.Name, sch.ContactEmail),
			})
		}
	}
	svc.mailSvc.SendMessages(messages...)

	return sch, nil
}

// Approve is the manual approval variant: a super admin supplies the admin
// credentials. The status flip and the admin principal share one transaction.
func (svc *Service) Approve(ctx context.Context, id string, as ApproveSchool) (ApprovalResult, error) {
	return svc.approve(ctx, id, as.AdminName, as.AdminEmail, as.AdminPassword)
}

// AutoApprove derives the admin login from the school's contact details and a
// generated password.
func (svc *Service) AutoApprove(ctx context.Context, id string) (ApprovalResult, error) {
	sch, err := svc.repo.GetSchoolByID(ctx, id)
	if err != nil {
		return ApprovalResult{}, err
	}
	pwd, err := credential.Password(12)
	if err != nil {
		return ApprovalResult{}, pkgerrors.Wrap(err, "generating admin password")
	}
	return svc.approve(ctx, id, sch.ContactName, sch.ContactEmail, pwd)
}

func (svc *Service) approve(ctx context.Context, id, adminName, adminEmail, adminPwd string) (ApprovalResult, error) {
	adminEmail = core.CleanString(adminEmail, true /* lower */)
	if err := svc.usrSvc.CheckEmailUniqueness(ctx, adminEmail); err != nil {
		return ApprovalResult{}, err
	}

	sch, err := svc.repo.GetSchoolByID(ctx, id)
	if err != nil {
		return ApprovalResult{}, err
	}

	now := time.Now().UTC()
	admin := user.User{
		ID:                uuid.New().String(),
		Name:              adminName,
		Email:             adminEmail,
		Role:              user.RoleSchoolAdmin,
		SchoolID:          sch.ID,
		IsActive:          true,
		CanChangePassword: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if admin.Name == "" {
		admin.Name = sch.Name + " Admin"
	}
	if err := admin.SetPassword(adminPwd); err != nil {
		return ApprovalResult{}, err
	}

	sch, err = svc.repo.ApproveSchool(ctx, sch.ID, adminEmail, admin)
	if err != nil {
		return ApprovalResult{}, err
	}

	res := ApprovalResult{School: sch, Admin: admin, CredentialsDelivered: true}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: admin.Name, Address: admin.Email}},
		Subject: "Your school has been approved",
		BodyStr: fmt.Sprintf(
			"Hello %s,\n\n%q has been approved.\n\nLogin: %s\nPassword: %s\n\n"+
				"Please change your password after the first login.\n",
			admin.Name, sch.Name, admin.Email, adminPwd),
	}
	if err := svc.mailSvc.SendMessage(msg); err != nil {
		// The school IS approved; surface the credential once for manual
		// delivery instead of failing the request.
		svc.logger.Warn("dispatching admin credentials", err)
		res.CredentialsDelivered = false
		res.FallbackPassword = adminPwd
	}
	return res, nil
}

// Reject flips a pending school to rejected.
func (svc *Service) Reject(ctx context.Context, id string) (School, error) {
	return svc.repo.RejectSchool(ctx, id)
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *Service) Pending(ctx context.Context) ([]School, error) {
	return svc.repo.QuerySchoolsByStatus(ctx, StatusPending)
}

func (svc *Service) All(ctx context.Context) ([]School, error) {
	return svc.repo.QueryAllSchools(ctx)
}
